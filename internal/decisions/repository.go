package decisions

import (
	"context"
	"encoding/json"
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

// Repository stores next-day direction calls, one per prediction date.
// Re-running the pipeline for the same date overwrites the earlier call.
type Repository struct {
	pool   pool
	tracer trace.Tracer
}

func NewRepository(pool pool, tracer trace.Tracer) *Repository {
	return &Repository{pool: pool, tracer: tracer}
}

func (r *Repository) UpsertDecision(ctx context.Context, decision domain.Decision) (*domain.Decision, error) {
	_, span := r.tracer.Start(ctx, "decisions.upsert")
	defer span.End()

	components, err := json.Marshal(decision.Components)
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, `
INSERT INTO decisions (
    feature_date, prediction_date,
    direction, prob_up, confidence, threshold,
    components_json, anomalous
) VALUES (
    $1, $2,
    $3, $4, $5, $6,
    $7, $8
)
ON CONFLICT (prediction_date) DO UPDATE SET
    feature_date = EXCLUDED.feature_date,
    direction = EXCLUDED.direction,
    prob_up = EXCLUDED.prob_up,
    confidence = EXCLUDED.confidence,
    threshold = EXCLUDED.threshold,
    components_json = EXCLUDED.components_json,
    anomalous = EXCLUDED.anomalous
RETURNING id, feature_date, prediction_date,
          direction, prob_up, confidence, threshold,
          components_json, anomalous,
          created_at, resolved_at, actual_up, is_correct, realized_return`,
		domain.UTCDate(decision.FeatureDate),
		domain.UTCDate(decision.PredictionDate),
		string(decision.Direction),
		decision.ProbUp,
		decision.Confidence,
		decision.Threshold,
		string(components),
		decision.Anomalous,
	)
	return scanDecisionRow(row)
}

func (r *Repository) LatestDecision(ctx context.Context) (*domain.Decision, error) {
	_, span := r.tracer.Start(ctx, "decisions.latest")
	defer span.End()

	row := r.pool.QueryRow(ctx, decisionSelect+`
ORDER BY prediction_date DESC
LIMIT 1`)
	out, err := scanDecisionRow(row)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return out, err
}

func (r *Repository) DecisionFor(ctx context.Context, predictionDate time.Time) (*domain.Decision, error) {
	_, span := r.tracer.Start(ctx, "decisions.for-date")
	defer span.End()

	row := r.pool.QueryRow(ctx, decisionSelect+`
WHERE prediction_date = $1`, domain.UTCDate(predictionDate))
	out, err := scanDecisionRow(row)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return out, err
}

func (r *Repository) ListDecisions(ctx context.Context, limit int) ([]domain.Decision, error) {
	_, span := r.tracer.Start(ctx, "decisions.list")
	defer span.End()

	if limit <= 0 {
		limit = 30
	}
	rows, err := r.pool.Query(ctx, decisionSelect+`
ORDER BY prediction_date DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Decision, 0, limit)
	for rows.Next() {
		d, err := scanDecisionRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// ListUnresolved returns decisions whose prediction date has passed but
// whose outcome has not been recorded yet.
func (r *Repository) ListUnresolved(ctx context.Context, asOf time.Time, limit int) ([]domain.Decision, error) {
	_, span := r.tracer.Start(ctx, "decisions.list-unresolved")
	defer span.End()

	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, decisionSelect+`
WHERE resolved_at IS NULL
  AND prediction_date <= $1
ORDER BY prediction_date ASC
LIMIT $2`, domain.UTCDate(asOf), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Decision, 0, limit)
	for rows.Next() {
		d, err := scanDecisionRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (r *Repository) ResolveDecision(ctx context.Context, decisionID int64, actualUp, isCorrect bool, realizedReturn float64) error {
	_, span := r.tracer.Start(ctx, "decisions.resolve")
	defer span.End()

	tag, err := r.pool.Exec(ctx, `
UPDATE decisions
SET resolved_at = NOW(),
    actual_up = $2,
    is_correct = $3,
    realized_return = $4
WHERE id = $1
  AND resolved_at IS NULL`, decisionID, actualUp, isCorrect, realizedReturn)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const decisionSelect = `
SELECT id, feature_date, prediction_date,
       direction, prob_up, confidence, threshold,
       components_json, anomalous,
       created_at, resolved_at, actual_up, is_correct, realized_return
FROM decisions`

type scanner interface {
	Scan(dest ...any) error
}

func scanDecisionRow(s scanner) (*domain.Decision, error) {
	var out domain.Decision
	var direction string
	var componentsJSON string
	var resolvedAt pgtype.Timestamptz
	var actualUp pgtype.Bool
	var isCorrect pgtype.Bool
	var realizedReturn pgtype.Float8

	if err := s.Scan(
		&out.ID,
		&out.FeatureDate,
		&out.PredictionDate,
		&direction,
		&out.ProbUp,
		&out.Confidence,
		&out.Threshold,
		&componentsJSON,
		&out.Anomalous,
		&out.CreatedAt,
		&resolvedAt,
		&actualUp,
		&isCorrect,
		&realizedReturn,
	); err != nil {
		return nil, err
	}
	out.Direction = domain.Direction(direction)
	out.FeatureDate = out.FeatureDate.UTC()
	out.PredictionDate = out.PredictionDate.UTC()
	out.CreatedAt = out.CreatedAt.UTC()
	if componentsJSON != "" {
		if err := json.Unmarshal([]byte(componentsJSON), &out.Components); err != nil {
			out.Components = nil
		}
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time.UTC()
		out.ResolvedAt = &t
	}
	if actualUp.Valid {
		v := actualUp.Bool
		out.ActualUp = &v
	}
	if isCorrect.Valid {
		v := isCorrect.Bool
		out.IsCorrect = &v
	}
	if realizedReturn.Valid {
		v := realizedReturn.Float64
		out.RealizedReturn = &v
	}
	return &out, nil
}
