package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"crystal-ball/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type marketSourceStub struct {
	days []domain.MarketDay
	err  error
}

func (s *marketSourceStub) FetchDailyDays(ctx context.Context, days int) ([]domain.MarketDay, error) {
	return s.days, s.err
}

type referenceSourceStub struct {
	closes map[string]map[time.Time]float64
	err    error
}

func (s *referenceSourceStub) FetchDailyCloses(ctx context.Context, symbol string, from time.Time) (map[time.Time]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.closes[symbol], nil
}

type newsSourceStub struct {
	byFeed map[string][]domain.NewsItem
	errFor string
}

func (s *newsSourceStub) FetchFeed(ctx context.Context, feedURL string, maxItems int) ([]domain.NewsItem, error) {
	if feedURL == s.errFor {
		return nil, errors.New("feed unreachable")
	}
	return s.byFeed[feedURL], nil
}

type marketStoreStub struct {
	upserted []domain.MarketDay
}

func (s *marketStoreStub) UpsertDays(ctx context.Context, days []domain.MarketDay) error {
	s.upserted = days
	return nil
}

type newsStoreStub struct {
	upserted []domain.NewsItem
}

func (s *newsStoreStub) UpsertItems(ctx context.Context, items []domain.NewsItem) error {
	s.upserted = items
	return nil
}

func testDay(date time.Time, close float64) domain.MarketDay {
	return domain.MarketDay{Date: date, Open: close - 10, High: close + 20, Low: close - 30, Close: close, Volume: 1e9}
}

func TestRunCollectAttachesReferences(t *testing.T) {
	day1 := time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	market := &marketSourceStub{days: []domain.MarketDay{testDay(day1, 50000), testDay(day2, 50500)}}
	refs := &referenceSourceStub{closes: map[string]map[time.Time]float64{
		domain.SymbolNasdaq: {day1: 21000},
		domain.SymbolGold:   {day1: 190, day2: 191},
	}}
	store := &marketStoreStub{}
	svc := NewService(trace.NewNoopTracerProvider().Tracer("test"), market, refs, nil, nil, store, &newsStoreStub{}, Config{})

	res, err := svc.RunCollect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if res.MarketDays != 2 {
		t.Fatalf("market days = %d, want 2", res.MarketDays)
	}
	if store.upserted[0].NasdaqClose == nil || *store.upserted[0].NasdaqClose != 21000 {
		t.Fatalf("day 1 nasdaq close not attached: %+v", store.upserted[0])
	}
	// Nasdaq had no close for day 2 (holiday), column stays NULL.
	if store.upserted[1].NasdaqClose != nil {
		t.Fatalf("day 2 nasdaq close should be nil, got %v", *store.upserted[1].NasdaqClose)
	}
	if store.upserted[1].GoldClose == nil || *store.upserted[1].GoldClose != 191 {
		t.Fatalf("day 2 gold close not attached: %+v", store.upserted[1])
	}
}

func TestRunCollectReferenceFailureIsNotFatal(t *testing.T) {
	day := time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC)
	market := &marketSourceStub{days: []domain.MarketDay{testDay(day, 50000)}}
	refs := &referenceSourceStub{err: errors.New("stooq down")}
	store := &marketStoreStub{}
	svc := NewService(trace.NewNoopTracerProvider().Tracer("test"), market, refs, nil, nil, store, &newsStoreStub{}, Config{})

	res, err := svc.RunCollect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if res.ReferenceGaps != 2 {
		t.Fatalf("reference gaps = %d, want 2", res.ReferenceGaps)
	}
	if len(store.upserted) != 1 || store.upserted[0].NasdaqClose != nil {
		t.Fatalf("market day should persist without references: %+v", store.upserted)
	}
}

func TestRunCollectScoresNews(t *testing.T) {
	published := time.Date(2026, 2, 12, 9, 0, 0, 0, time.UTC)
	news := &newsSourceStub{
		byFeed: map[string][]domain.NewsItem{
			"https://a/rss": {
				{Title: "Bitcoin rally continues as adoption surges", URL: "https://a/1", Source: "A", PublishedAt: published},
				{Title: "Bitcoin crash deepens after hack", URL: "https://a/2", Source: "A", PublishedAt: published},
			},
		},
		errFor: "https://b/rss",
	}
	newsStore := &newsStoreStub{}
	svc := NewService(
		trace.NewNoopTracerProvider().Tracer("test"),
		&marketSourceStub{}, nil, news, nil, &marketStoreStub{}, newsStore,
		Config{FeedURLs: []string{"https://a/rss", "https://b/rss"}},
	)

	res, err := svc.RunCollect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if res.FeedsFailed != 1 {
		t.Fatalf("feeds failed = %d, want 1", res.FeedsFailed)
	}
	if res.NewsItems != 2 || len(newsStore.upserted) != 2 {
		t.Fatalf("news items = %d, want 2", res.NewsItems)
	}
	if newsStore.upserted[0].Score <= 0 {
		t.Fatalf("bullish headline score = %v, want > 0", newsStore.upserted[0].Score)
	}
	if newsStore.upserted[1].Score >= 0 {
		t.Fatalf("bearish headline score = %v, want < 0", newsStore.upserted[1].Score)
	}
	for _, item := range newsStore.upserted {
		if item.ID != 0 {
			t.Fatalf("temporary scoring ID leaked into stored item: %+v", item)
		}
	}
}

func TestRunCollectMarketFetchErrorIsFatal(t *testing.T) {
	svc := NewService(
		trace.NewNoopTracerProvider().Tracer("test"),
		&marketSourceStub{err: errors.New("429")}, nil, nil, nil, &marketStoreStub{}, &newsStoreStub{},
		Config{},
	)
	if _, err := svc.RunCollect(context.Background()); err == nil {
		t.Fatal("expected error when market source fails")
	}
}
