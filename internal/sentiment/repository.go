package sentiment

import (
	"context"
	"time"

	"crystal-ball/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type Repository struct {
	pool   pool
	tracer trace.Tracer
}

func NewRepository(pool pool, tracer trace.Tracer) *Repository {
	return &Repository{pool: pool, tracer: tracer}
}

// UpsertItems stores scored articles, deduplicated by URL.
func (r *Repository) UpsertItems(ctx context.Context, items []domain.NewsItem) error {
	if len(items) == 0 {
		return nil
	}
	_, span := r.tracer.Start(ctx, "sentiment-repo.upsert-items")
	defer span.End()

	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(`
INSERT INTO news_items (published_at, source, title, url, score)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (url) DO UPDATE SET
    published_at = EXCLUDED.published_at,
    title = EXCLUDED.title,
    score = EXCLUDED.score,
    updated_at = NOW()`,
			item.PublishedAt.UTC(), item.Source, item.Title, item.URL, item.Score)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range items {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ListItems returns every scored article up to and including the given
// date, oldest first. The aggregator wants the whole history.
func (r *Repository) ListItems(ctx context.Context, through time.Time) ([]domain.NewsItem, error) {
	_, span := r.tracer.Start(ctx, "sentiment-repo.list-items")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
SELECT id, published_at, source, title, url, score
FROM news_items
WHERE published_at < $1
ORDER BY published_at ASC`, domain.UTCDate(through).AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.NewsItem
	for rows.Next() {
		var item domain.NewsItem
		if err := rows.Scan(&item.ID, &item.PublishedAt, &item.Source, &item.Title, &item.URL, &item.Score); err != nil {
			return nil, err
		}
		item.PublishedAt = item.PublishedAt.UTC()
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *Repository) UpsertDays(ctx context.Context, days []domain.SentimentDay) error {
	if len(days) == 0 {
		return nil
	}
	_, span := r.tracer.Start(ctx, "sentiment-repo.upsert-days")
	defer span.End()

	for i := range days {
		d := days[i]
		_, err := r.pool.Exec(ctx, `
INSERT INTO sentiment_days (
    date, mean, article_count, provenance,
    mean_3d, mean_5d, vol_5d, delta, accel,
    quantile, q2_flag, q5_flag, cross_up, negative, updated_at
) VALUES (
    $1, $2, $3, $4,
    $5, $6, $7, $8, $9,
    $10, $11, $12, $13, $14, NOW()
)
ON CONFLICT (date) DO UPDATE SET
    mean = EXCLUDED.mean,
    article_count = EXCLUDED.article_count,
    provenance = EXCLUDED.provenance,
    mean_3d = EXCLUDED.mean_3d,
    mean_5d = EXCLUDED.mean_5d,
    vol_5d = EXCLUDED.vol_5d,
    delta = EXCLUDED.delta,
    accel = EXCLUDED.accel,
    quantile = EXCLUDED.quantile,
    q2_flag = EXCLUDED.q2_flag,
    q5_flag = EXCLUDED.q5_flag,
    cross_up = EXCLUDED.cross_up,
    negative = EXCLUDED.negative,
    updated_at = NOW()`,
			domain.UTCDate(d.Date),
			d.Mean,
			d.ArticleCount,
			string(d.Provenance),
			d.Mean3D,
			d.Mean5D,
			d.Vol5D,
			d.Delta,
			d.Accel,
			d.Quantile,
			d.Q2Flag,
			d.Q5Flag,
			d.CrossUp,
			d.Negative,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) ListDays(ctx context.Context, from, to time.Time) ([]domain.SentimentDay, error) {
	_, span := r.tracer.Start(ctx, "sentiment-repo.list-days")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
SELECT date, mean, article_count, provenance,
       mean_3d, mean_5d, vol_5d, delta, accel,
       quantile, q2_flag, q5_flag, cross_up, negative
FROM sentiment_days
WHERE date >= $1 AND date <= $2
ORDER BY date ASC`, domain.UTCDate(from), domain.UTCDate(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []domain.SentimentDay
	for rows.Next() {
		var d domain.SentimentDay
		var provenance string
		if err := rows.Scan(
			&d.Date,
			&d.Mean,
			&d.ArticleCount,
			&provenance,
			&d.Mean3D,
			&d.Mean5D,
			&d.Vol5D,
			&d.Delta,
			&d.Accel,
			&d.Quantile,
			&d.Q2Flag,
			&d.Q5Flag,
			&d.CrossUp,
			&d.Negative,
		); err != nil {
			return nil, err
		}
		d.Date = d.Date.UTC()
		d.Provenance = domain.SentimentProvenance(provenance)
		days = append(days, d)
	}
	return days, rows.Err()
}
