package repository

import (
	"context"
	"time"

	"crystal-ball/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/trace"
)

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// MarketRepository stores one row per UTC calendar day: BTC OHLCV plus the
// nullable reference closes collected alongside it.
type MarketRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewMarketRepository(pool PgxPool, tracer trace.Tracer) *MarketRepository {
	return &MarketRepository{pool: pool, tracer: tracer}
}

func (r *MarketRepository) UpsertDays(ctx context.Context, days []domain.MarketDay) error {
	if len(days) == 0 {
		return nil
	}

	_, span := r.tracer.Start(ctx, "market-repo.upsert-days")
	defer span.End()

	batch := &pgx.Batch{}
	for _, d := range days {
		batch.Queue(
			`INSERT INTO market_days (date, open, high, low, close, volume, nasdaq_close, gold_close)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (date) DO UPDATE SET
			     open = EXCLUDED.open,
			     high = EXCLUDED.high,
			     low = EXCLUDED.low,
			     close = EXCLUDED.close,
			     volume = EXCLUDED.volume,
			     nasdaq_close = COALESCE(EXCLUDED.nasdaq_close, market_days.nasdaq_close),
			     gold_close = COALESCE(EXCLUDED.gold_close, market_days.gold_close)`,
			domain.UTCDate(d.Date), d.Open, d.High, d.Low, d.Close, d.Volume, d.NasdaqClose, d.GoldClose,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range days {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (r *MarketRepository) ListDays(ctx context.Context, from, to time.Time) ([]domain.MarketDay, error) {
	_, span := r.tracer.Start(ctx, "market-repo.list-days")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT date, open, high, low, close, volume, nasdaq_close, gold_close
		 FROM market_days
		 WHERE date >= $1 AND date <= $2
		 ORDER BY date ASC`,
		domain.UTCDate(from), domain.UTCDate(to),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMarketDays(rows)
}

func (r *MarketRepository) LatestDays(ctx context.Context, limit int) ([]domain.MarketDay, error) {
	_, span := r.tracer.Start(ctx, "market-repo.latest-days")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT date, open, high, low, close, volume, nasdaq_close, gold_close
		 FROM market_days
		 ORDER BY date DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	days, err := scanMarketDays(rows)
	if err != nil {
		return nil, err
	}
	// DB returns newest-first, callers want oldest-first
	for i, j := 0, len(days)-1; i < j; i, j = i+1, j-1 {
		days[i], days[j] = days[j], days[i]
	}
	return days, nil
}

// CloseOn returns the BTC close for one date, or domain.ErrNotFound when the
// observation has not arrived yet.
func (r *MarketRepository) CloseOn(ctx context.Context, date time.Time) (float64, error) {
	_, span := r.tracer.Start(ctx, "market-repo.close-on")
	defer span.End()

	var close float64
	err := r.pool.QueryRow(ctx,
		`SELECT close FROM market_days WHERE date = $1`,
		domain.UTCDate(date),
	).Scan(&close)
	if err == pgx.ErrNoRows {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return close, nil
}

func scanMarketDays(rows pgx.Rows) ([]domain.MarketDay, error) {
	var days []domain.MarketDay
	for rows.Next() {
		var d domain.MarketDay
		var nasdaq, gold pgtype.Float8
		if err := rows.Scan(&d.Date, &d.Open, &d.High, &d.Low, &d.Close, &d.Volume, &nasdaq, &gold); err != nil {
			return nil, err
		}
		d.Date = d.Date.UTC()
		if nasdaq.Valid {
			v := nasdaq.Float64
			d.NasdaqClose = &v
		}
		if gold.Valid {
			v := gold.Float64
			d.GoldClose = &v
		}
		days = append(days, d)
	}
	return days, rows.Err()
}
