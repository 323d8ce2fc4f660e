package indicator

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
}

type Repository struct {
	pool   pool
	tracer trace.Tracer
}

func NewRepository(pool pool, tracer trace.Tracer) *Repository {
	return &Repository{pool: pool, tracer: tracer}
}

func (r *Repository) UpsertRows(ctx context.Context, rows []domain.IndicatorDay) error {
	if len(rows) == 0 {
		return nil
	}
	_, span := r.tracer.Start(ctx, "indicator-repo.upsert")
	defer span.End()

	for i := range rows {
		row := rows[i]
		_, err := r.pool.Exec(ctx, `
INSERT INTO indicator_days (
    date, close, close_to_sma10_ratio, high_low_range,
    roc_1d, roc_3d, volume_change_1d, bb_width,
    btc_nasdaq_corr_5d, btc_nasdaq_beta_10d, btc_gld_corr_5d, updated_at
) VALUES (
    $1, $2, $3, $4,
    $5, $6, $7, $8,
    $9, $10, $11, NOW()
)
ON CONFLICT (date) DO UPDATE SET
    close = EXCLUDED.close,
    close_to_sma10_ratio = EXCLUDED.close_to_sma10_ratio,
    high_low_range = EXCLUDED.high_low_range,
    roc_1d = EXCLUDED.roc_1d,
    roc_3d = EXCLUDED.roc_3d,
    volume_change_1d = EXCLUDED.volume_change_1d,
    bb_width = EXCLUDED.bb_width,
    btc_nasdaq_corr_5d = EXCLUDED.btc_nasdaq_corr_5d,
    btc_nasdaq_beta_10d = EXCLUDED.btc_nasdaq_beta_10d,
    btc_gld_corr_5d = EXCLUDED.btc_gld_corr_5d,
    updated_at = NOW()`,
			domain.UTCDate(row.Date),
			row.Close,
			row.CloseToSMA10,
			row.HighLowRange,
			row.ROC1D,
			row.ROC3D,
			row.VolumeChange1D,
			row.BBWidth,
			row.BTCNasdaqCorr5D,
			row.BTCNasdaqBeta10,
			row.BTCGoldCorr5D,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) ListRows(ctx context.Context, from, to time.Time) ([]domain.IndicatorDay, error) {
	_, span := r.tracer.Start(ctx, "indicator-repo.list")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
SELECT date, close, close_to_sma10_ratio, high_low_range,
       roc_1d, roc_3d, volume_change_1d, bb_width,
       btc_nasdaq_corr_5d, btc_nasdaq_beta_10d, btc_gld_corr_5d
FROM indicator_days
WHERE date >= $1 AND date <= $2
ORDER BY date ASC`, domain.UTCDate(from), domain.UTCDate(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanIndicatorRows(rows)
}

func scanIndicatorRows(rows pgx.Rows) ([]domain.IndicatorDay, error) {
	result := make([]domain.IndicatorDay, 0)
	for rows.Next() {
		var row domain.IndicatorDay
		var corr, beta, gldCorr pgtype.Float8
		if err := rows.Scan(
			&row.Date,
			&row.Close,
			&row.CloseToSMA10,
			&row.HighLowRange,
			&row.ROC1D,
			&row.ROC3D,
			&row.VolumeChange1D,
			&row.BBWidth,
			&corr,
			&beta,
			&gldCorr,
		); err != nil {
			return nil, err
		}
		row.Date = row.Date.UTC()
		if corr.Valid {
			v := corr.Float64
			row.BTCNasdaqCorr5D = &v
		}
		if beta.Valid {
			v := beta.Float64
			row.BTCNasdaqBeta10 = &v
		}
		if gldCorr.Valid {
			v := gldCorr.Float64
			row.BTCGoldCorr5D = &v
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
