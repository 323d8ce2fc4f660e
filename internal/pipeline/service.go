package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"crystal-ball/internal/domain"
	"crystal-ball/internal/ensemble"
	"crystal-ball/internal/features"
	"crystal-ball/internal/indicator"
	"crystal-ball/internal/ml/registry"
	"crystal-ball/internal/sentiment"

	"go.opentelemetry.io/otel/trace"
)

type MarketStore interface {
	ListDays(ctx context.Context, from, to time.Time) ([]domain.MarketDay, error)
	CloseOn(ctx context.Context, date time.Time) (float64, error)
}

type IndicatorStore interface {
	UpsertRows(ctx context.Context, rows []domain.IndicatorDay) error
}

type NewsStore interface {
	ListItems(ctx context.Context, through time.Time) ([]domain.NewsItem, error)
	UpsertDays(ctx context.Context, days []domain.SentimentDay) error
}

type FeatureStore interface {
	UpsertRows(ctx context.Context, rows []domain.FeatureDay) error
	ListRows(ctx context.Context, from, to time.Time) ([]domain.FeatureDay, error)
	LatestRows(ctx context.Context, n int) ([]domain.FeatureDay, error)
	Watermark(ctx context.Context) (time.Time, bool, error)
}

type ModelRegistry interface {
	GetActiveModel(ctx context.Context, modelKey string) (*domain.ModelVersion, error)
}

type DecisionStore interface {
	UpsertDecision(ctx context.Context, decision domain.Decision) (*domain.Decision, error)
	ListUnresolved(ctx context.Context, asOf time.Time, limit int) ([]domain.Decision, error)
	ResolveDecision(ctx context.Context, decisionID int64, actualUp, isCorrect bool, realizedReturn float64) error
}

type DecisionCache interface {
	SetLatestDecision(ctx context.Context, decision domain.Decision) error
}

// windowRows is how much feature history PredictNextDay hands the
// ensemble. It only has to cover the widest component window.
const windowRows = 30

// anomalyHistoryDays bounds the history the isolation forest is fit on.
const anomalyHistoryDays = 365

// Service runs the daily cycle: assemble feature rows from market and
// news data, combine the active models into a next-day call, and settle
// past calls once the realized close is known.
type Service struct {
	tracer     trace.Tracer
	market     MarketStore
	indicators IndicatorStore
	news       NewsStore
	feats      FeatureStore
	registry   ModelRegistry
	decisions  DecisionStore
	cache      DecisionCache

	indicatorEngine *indicator.Engine
	aggregator      *sentiment.Aggregator
	assembler       *features.Assembler
	engine          *ensemble.Engine
	guard           *features.AnomalyGuard

	now func() time.Time
}

func NewService(
	tracer trace.Tracer,
	market MarketStore,
	indicators IndicatorStore,
	news NewsStore,
	feats FeatureStore,
	modelRegistry ModelRegistry,
	decisionStore DecisionStore,
	cache DecisionCache,
	threshold float64,
) *Service {
	return &Service{
		tracer:          tracer,
		market:          market,
		indicators:      indicators,
		news:            news,
		feats:           feats,
		registry:        modelRegistry,
		decisions:       decisionStore,
		cache:           cache,
		indicatorEngine: indicator.NewEngine(),
		aggregator:      sentiment.NewAggregator(),
		assembler:       features.NewAssembler(time.Now),
		engine:          ensemble.NewEngine(nil, threshold),
		guard:           features.NewAnomalyGuard(),
		now:             time.Now,
	}
}

type AssembleResult struct {
	From        time.Time
	To          time.Time
	RowsBuilt   int
	RowsDropped int
}

// AssembleFeatures recomputes indicator, sentiment and feature rows up
// to today. With updateOnly set it only re-derives rows from ten days
// before the feature watermark onward; re-deriving a row it has already
// written produces the identical row, so overlap is harmless.
func (s *Service) AssembleFeatures(ctx context.Context, updateOnly bool) (AssembleResult, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.assemble-features")
	defer span.End()

	today := domain.UTCDate(s.now())
	from := time.Time{}
	if updateOnly {
		watermark, ok, err := s.feats.Watermark(ctx)
		if err != nil {
			return AssembleResult{}, err
		}
		if ok {
			from = watermark.AddDate(0, 0, -domain.SentimentBuffer)
		}
	}

	marketFrom := from
	if !marketFrom.IsZero() {
		marketFrom = marketFrom.AddDate(0, 0, -domain.LookbackBuffer)
	}
	days, err := s.market.ListDays(ctx, marketFrom, today)
	if err != nil {
		return AssembleResult{}, err
	}
	if len(days) == 0 {
		return AssembleResult{}, fmt.Errorf("assemble features: no market days on record: %w", domain.ErrMissingUpstreamData)
	}

	indicatorRows := s.indicatorEngine.BuildRows(days)
	if err := s.indicators.UpsertRows(ctx, indicatorRows); err != nil {
		return AssembleResult{}, err
	}

	// Sentiment always re-derives from the whole news history. Rolling
	// stats and quantile buckets depend on everything before a day, so a
	// partial recompute could disagree with a full rebuild.
	items, err := s.news.ListItems(ctx, today)
	if err != nil {
		return AssembleResult{}, err
	}
	sentimentRows := s.aggregator.BuildDays(items, days[0].Date, today)
	if err := s.news.UpsertDays(ctx, sentimentRows); err != nil {
		return AssembleResult{}, err
	}

	featureRows, dropped := s.assembler.BuildRows(indicatorRows, sentimentRows)
	if !from.IsZero() {
		featureRows = rowsFrom(featureRows, from)
	}
	if err := s.feats.UpsertRows(ctx, featureRows); err != nil {
		return AssembleResult{}, err
	}

	result := AssembleResult{From: from, To: today, RowsBuilt: len(featureRows), RowsDropped: dropped}
	if len(featureRows) > 0 {
		result.From = featureRows[0].Date
		result.To = featureRows[len(featureRows)-1].Date
	}
	return result, nil
}

// PredictNextDay combines the active models over the newest feature
// rows and stores the resulting call for the following day. Models that
// fail to load or run are skipped; the call fails only when no
// component survives.
func (s *Service) PredictNextDay(ctx context.Context) (*domain.Decision, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.predict-next-day")
	defer span.End()

	history, err := s.feats.LatestRows(ctx, windowRows)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("predict: no feature rows on record: %w", domain.ErrMissingUpstreamData)
	}

	components := s.loadComponents(ctx)
	outcome, err := s.engine.Decide(components, history)
	if err != nil {
		return nil, err
	}

	latest := history[len(history)-1]
	decision := domain.Decision{
		FeatureDate:    latest.Date,
		PredictionDate: latest.Date.AddDate(0, 0, 1),
		Direction:      outcome.Direction,
		ProbUp:         outcome.ProbUp,
		Confidence:     outcome.Confidence,
		Threshold:      outcome.Threshold,
		Components:     outcome.Components,
		Anomalous:      s.flagAnomalous(ctx, latest),
	}

	stored, err := s.decisions.UpsertDecision(ctx, decision)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetLatestDecision(ctx, *stored); err != nil {
			log.Printf("pipeline: cache latest decision: %v", err)
		}
	}
	return stored, nil
}

// ResolveOutcomes settles past calls whose prediction date has a close
// on record. Calls whose close is not yet available stay unresolved.
func (s *Service) ResolveOutcomes(ctx context.Context, limit int) (int, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.resolve-outcomes")
	defer span.End()

	pending, err := s.decisions.ListUnresolved(ctx, s.now(), limit)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, d := range pending {
		baseClose, err := s.market.CloseOn(ctx, d.FeatureDate)
		if err != nil {
			if err == domain.ErrNotFound {
				continue
			}
			return resolved, err
		}
		nextClose, err := s.market.CloseOn(ctx, d.PredictionDate)
		if err != nil {
			if err == domain.ErrNotFound {
				continue
			}
			return resolved, err
		}
		if baseClose == 0 {
			continue
		}

		actualUp := nextClose > baseClose
		isCorrect := actualUp == (d.Direction == domain.DirectionUp)
		realizedReturn := nextClose/baseClose - 1
		if err := s.decisions.ResolveDecision(ctx, d.ID, actualUp, isCorrect, realizedReturn); err != nil {
			return resolved, err
		}
		resolved++
	}
	if resolved > 0 {
		log.Printf("pipeline: resolved %d decision outcome(s)", resolved)
	}
	return resolved, nil
}

func (s *Service) loadComponents(ctx context.Context) []ensemble.Component {
	keys := []string{registry.KeyGRU, registry.KeyLogReg, registry.KeyXGBoost}
	components := make([]ensemble.Component, 0, len(keys))
	for _, key := range keys {
		active, err := s.registry.GetActiveModel(ctx, key)
		if err != nil {
			log.Printf("pipeline: load active model %s: %v", key, err)
			continue
		}
		if active == nil {
			continue
		}
		component, err := ensemble.BuildComponent(*active)
		if err != nil {
			log.Printf("pipeline: hydrate model %s v%d: %v", active.ModelKey, active.Version, err)
			continue
		}
		components = append(components, component)
	}
	return components
}

func (s *Service) flagAnomalous(ctx context.Context, latest domain.FeatureDay) bool {
	from := domain.UTCDate(s.now()).AddDate(0, 0, -anomalyHistoryDays)
	history, err := s.feats.ListRows(ctx, from, latest.Date)
	if err != nil {
		log.Printf("pipeline: anomaly history unavailable: %v", err)
		return false
	}
	s.guard.Fit(history)
	return s.guard.IsAnomalous(latest)
}

func rowsFrom(rows []domain.FeatureDay, from time.Time) []domain.FeatureDay {
	out := rows[:0:0]
	for _, row := range rows {
		if !row.Date.Before(from) {
			out = append(out, row)
		}
	}
	return out
}
