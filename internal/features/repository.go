package features

import (
	"context"
	"time"

	"crystal-ball/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/trace"
)

type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct {
	pool   pool
	tracer trace.Tracer
}

func NewRepository(pool pool, tracer trace.Tracer) *Repository {
	return &Repository{pool: pool, tracer: tracer}
}

func (r *Repository) UpsertRows(ctx context.Context, rows []domain.FeatureDay) error {
	if len(rows) == 0 {
		return nil
	}
	_, span := r.tracer.Start(ctx, "feature-repo.upsert")
	defer span.End()

	for i := range rows {
		row := rows[i]
		_, err := r.pool.Exec(ctx, `
INSERT INTO feature_days (
    date, btc_close,
    btc_nasdaq_beta_10d, sent_q5_flag, roc_1d, high_low_range, roc_3d,
    sent_5d, sent_cross_up_x_high_low_range, btc_nasdaq_corr_5d, bb_width,
    sent_accel, sent_vol, sent_neg_x_high_low_range, sent_q2_flag_x_close_to_sma10,
    target_up, updated_at
) VALUES (
    $1, $2,
    $3, $4, $5, $6, $7,
    $8, $9, $10, $11,
    $12, $13, $14, $15,
    $16, NOW()
)
ON CONFLICT (date) DO UPDATE SET
    btc_close = EXCLUDED.btc_close,
    btc_nasdaq_beta_10d = EXCLUDED.btc_nasdaq_beta_10d,
    sent_q5_flag = EXCLUDED.sent_q5_flag,
    roc_1d = EXCLUDED.roc_1d,
    high_low_range = EXCLUDED.high_low_range,
    roc_3d = EXCLUDED.roc_3d,
    sent_5d = EXCLUDED.sent_5d,
    sent_cross_up_x_high_low_range = EXCLUDED.sent_cross_up_x_high_low_range,
    btc_nasdaq_corr_5d = EXCLUDED.btc_nasdaq_corr_5d,
    bb_width = EXCLUDED.bb_width,
    sent_accel = EXCLUDED.sent_accel,
    sent_vol = EXCLUDED.sent_vol,
    sent_neg_x_high_low_range = EXCLUDED.sent_neg_x_high_low_range,
    sent_q2_flag_x_close_to_sma10 = EXCLUDED.sent_q2_flag_x_close_to_sma10,
    target_up = EXCLUDED.target_up,
    updated_at = NOW()`,
			domain.UTCDate(row.Date),
			row.BTCClose,
			row.BTCNasdaqBeta10D,
			row.SentQ5Flag,
			row.ROC1D,
			row.HighLowRange,
			row.ROC3D,
			row.Sent5D,
			row.SentCrossUpXRange,
			row.BTCNasdaqCorr5D,
			row.BBWidth,
			row.SentAccel,
			row.SentVol,
			row.SentNegXRange,
			row.SentQ2FlagXSMARatio,
			row.TargetUp,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) ListRows(ctx context.Context, from, to time.Time) ([]domain.FeatureDay, error) {
	_, span := r.tracer.Start(ctx, "feature-repo.list")
	defer span.End()

	rows, err := r.pool.Query(ctx, featureSelect+`
WHERE date >= $1 AND date <= $2
ORDER BY date ASC`, domain.UTCDate(from), domain.UTCDate(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanFeatureRows(rows)
}

// LatestRows returns the newest n rows, oldest first, the shape window
// models consume.
func (r *Repository) LatestRows(ctx context.Context, n int) ([]domain.FeatureDay, error) {
	_, span := r.tracer.Start(ctx, "feature-repo.latest")
	defer span.End()

	rows, err := r.pool.Query(ctx, featureSelect+`
ORDER BY date DESC
LIMIT $1`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out, err := scanFeatureRows(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Watermark is the newest persisted feature date; ok is false on an empty
// table.
func (r *Repository) Watermark(ctx context.Context) (time.Time, bool, error) {
	_, span := r.tracer.Start(ctx, "feature-repo.watermark")
	defer span.End()

	var max pgtype.Timestamptz
	if err := r.pool.QueryRow(ctx, `SELECT MAX(date) FROM feature_days`).Scan(&max); err != nil {
		return time.Time{}, false, err
	}
	if !max.Valid {
		return time.Time{}, false, nil
	}
	return max.Time.UTC(), true, nil
}

const featureSelect = `
SELECT date, btc_close,
       btc_nasdaq_beta_10d, sent_q5_flag, roc_1d, high_low_range, roc_3d,
       sent_5d, sent_cross_up_x_high_low_range, btc_nasdaq_corr_5d, bb_width,
       sent_accel, sent_vol, sent_neg_x_high_low_range, sent_q2_flag_x_close_to_sma10,
       target_up, created_at, updated_at
FROM feature_days`

func scanFeatureRows(rows pgx.Rows) ([]domain.FeatureDay, error) {
	result := make([]domain.FeatureDay, 0)
	for rows.Next() {
		var row domain.FeatureDay
		var target pgtype.Bool
		if err := rows.Scan(
			&row.Date,
			&row.BTCClose,
			&row.BTCNasdaqBeta10D,
			&row.SentQ5Flag,
			&row.ROC1D,
			&row.HighLowRange,
			&row.ROC3D,
			&row.Sent5D,
			&row.SentCrossUpXRange,
			&row.BTCNasdaqCorr5D,
			&row.BBWidth,
			&row.SentAccel,
			&row.SentVol,
			&row.SentNegXRange,
			&row.SentQ2FlagXSMARatio,
			&target,
			&row.CreatedAt,
			&row.UpdatedAt,
		); err != nil {
			return nil, err
		}
		row.Date = row.Date.UTC()
		row.CreatedAt = row.CreatedAt.UTC()
		row.UpdatedAt = row.UpdatedAt.UTC()
		if target.Valid {
			v := target.Bool
			row.TargetUp = &v
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
