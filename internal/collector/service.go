package collector

import (
	"context"
	"fmt"
	"log"
	"time"

	"crystal-ball/internal/domain"
	"crystal-ball/internal/sentiment"

	"go.opentelemetry.io/otel/trace"
)

type MarketSource interface {
	FetchDailyDays(ctx context.Context, days int) ([]domain.MarketDay, error)
}

type ReferenceSource interface {
	FetchDailyCloses(ctx context.Context, symbol string, from time.Time) (map[time.Time]float64, error)
}

type NewsSource interface {
	FetchFeed(ctx context.Context, feedURL string, maxItems int) ([]domain.NewsItem, error)
}

type MarketStore interface {
	UpsertDays(ctx context.Context, days []domain.MarketDay) error
}

type NewsStore interface {
	UpsertItems(ctx context.Context, items []domain.NewsItem) error
}

type Config struct {
	// Trailing window requested from the market source on every run.
	MarketDays int
	FeedURLs   []string
	MaxPerFeed int
}

// Service pulls raw upstream data: BTC daily candles, Nasdaq and gold
// reference closes, and news headlines. Everything lands in the store
// via upserts, so re-running a window is harmless.
type Service struct {
	tracer     trace.Tracer
	market     MarketSource
	references ReferenceSource
	news       NewsSource
	scorer     *sentiment.Scorer
	marketRepo MarketStore
	newsRepo   NewsStore
	cfg        Config
}

type RunResult struct {
	MarketDays    int
	NewsItems     int
	FeedsFailed   int
	ReferenceGaps int
}

func NewService(
	tracer trace.Tracer,
	market MarketSource,
	references ReferenceSource,
	news NewsSource,
	scorer *sentiment.Scorer,
	marketRepo MarketStore,
	newsRepo NewsStore,
	cfg Config,
) *Service {
	if cfg.MarketDays <= 0 {
		cfg.MarketDays = 90
	}
	if cfg.MaxPerFeed <= 0 {
		cfg.MaxPerFeed = 40
	}
	if scorer == nil {
		scorer = sentiment.NewScorer(nil, 0)
	}
	return &Service{
		tracer:     tracer,
		market:     market,
		references: references,
		news:       news,
		scorer:     scorer,
		marketRepo: marketRepo,
		newsRepo:   newsRepo,
		cfg:        cfg,
	}
}

// RunCollect runs one collection cycle. Reference closes that cannot be
// fetched leave the nasdaq/gold columns NULL for the new days; the
// indicator engine reindexes over the gaps.
func (s *Service) RunCollect(ctx context.Context) (RunResult, error) {
	ctx, span := s.tracer.Start(ctx, "collector.run-collect")
	defer span.End()

	result := RunResult{}

	days, err := s.market.FetchDailyDays(ctx, s.cfg.MarketDays)
	if err != nil {
		return result, fmt.Errorf("collect market days: %w", err)
	}
	if len(days) > 0 {
		s.attachReferences(ctx, days, &result)
		if err := s.marketRepo.UpsertDays(ctx, days); err != nil {
			return result, fmt.Errorf("store market days: %w", err)
		}
		result.MarketDays = len(days)
	}

	items := s.collectNews(ctx, &result)
	if len(items) > 0 {
		if err := s.newsRepo.UpsertItems(ctx, items); err != nil {
			return result, fmt.Errorf("store news items: %w", err)
		}
		result.NewsItems = len(items)
	}

	return result, nil
}

func (s *Service) attachReferences(ctx context.Context, days []domain.MarketDay, result *RunResult) {
	if s.references == nil || len(days) == 0 {
		return
	}
	from := days[0].Date
	for _, symbol := range []string{domain.SymbolNasdaq, domain.SymbolGold} {
		closes, err := s.references.FetchDailyCloses(ctx, symbol, from)
		if err != nil {
			log.Printf("collector: reference closes for %s unavailable: %v", symbol, err)
			result.ReferenceGaps++
			continue
		}
		for i := range days {
			close, ok := closes[domain.UTCDate(days[i].Date)]
			if !ok {
				continue
			}
			v := close
			switch symbol {
			case domain.SymbolNasdaq:
				days[i].NasdaqClose = &v
			case domain.SymbolGold:
				days[i].GoldClose = &v
			}
		}
	}
}

func (s *Service) collectNews(ctx context.Context, result *RunResult) []domain.NewsItem {
	if s.news == nil {
		return nil
	}
	var items []domain.NewsItem
	for _, feedURL := range s.cfg.FeedURLs {
		fetched, err := s.news.FetchFeed(ctx, feedURL, s.cfg.MaxPerFeed)
		if err != nil {
			log.Printf("collector: feed %s failed: %v", feedURL, err)
			result.FeedsFailed++
			continue
		}
		items = append(items, fetched...)
	}
	if len(items) == 0 {
		return nil
	}

	// Fresh items have no database ID yet; hand the scorer positional IDs
	// so LLM batch results can be matched back.
	for i := range items {
		items[i].ID = int64(i)
	}
	scores, err := s.scorer.Score(ctx, items)
	if err != nil {
		log.Printf("collector: scoring failed, keeping heuristic zeroes: %v", err)
		return items
	}
	byID := make(map[int64]float64, len(scores))
	for _, sc := range scores {
		byID[sc.ItemID] = sc.Score
	}
	for i := range items {
		items[i].Score = byID[items[i].ID]
		items[i].ID = 0
	}
	return items
}
