package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
)

func TestBuildDaysFromMarketChart(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	prices := [][]float64{
		{float64(base.Add(1 * time.Hour).UnixMilli()), 10},
		{float64(base.Add(6 * time.Hour).UnixMilli()), 12},
		{float64(base.Add(20 * time.Hour).UnixMilli()), 8},
		{float64(base.Add(25 * time.Hour).UnixMilli()), 9},
		{float64(base.Add(30 * time.Hour).UnixMilli()), 11},
	}
	volumes := [][]float64{
		{float64(base.Add(24 * time.Hour).UnixMilli()), 100},
		{float64(base.Add(48 * time.Hour).UnixMilli()), 200},
	}

	days := buildDaysFromMarketChart(prices, volumes)
	if len(days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(days))
	}

	first := days[0]
	if !first.Date.Equal(base) {
		t.Fatalf("unexpected first date: %v", first.Date)
	}
	if first.Open != 10 || first.High != 12 || first.Low != 8 || first.Close != 8 {
		t.Fatalf("unexpected first day: %+v", first)
	}
	if first.Volume != 100 {
		t.Fatalf("expected volume 100, got %f", first.Volume)
	}

	second := days[1]
	if !second.Date.Equal(base.AddDate(0, 0, 1)) {
		t.Fatalf("unexpected second date: %v", second.Date)
	}
	if second.Open != 9 || second.Close != 11 {
		t.Fatalf("unexpected second day: %+v", second)
	}
}

func TestFindClosestVolume(t *testing.T) {
	volumes := []volumePoint{
		{ts: 1000, vol: 1},
		{ts: 1500, vol: 5},
		{ts: 2000, vol: 10},
	}
	vol := findClosestVolume(volumes, 1600)
	if vol != 5 {
		t.Fatalf("expected volume 5, got %f", vol)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestCoinGeckoProviderFetchDailyDays(t *testing.T) {
	t.Parallel()

	provider := NewCoinGeckoProvider(trace.NewNoopTracerProvider().Tracer("test"))
	provider.baseURL = "http://example"
	provider.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if !strings.Contains(req.URL.Path, "/coins/bitcoin/market_chart") {
				t.Fatalf("unexpected path: %s", req.URL.Path)
			}
			if req.URL.Query().Get("days") != "30" {
				t.Fatalf("unexpected days param: %s", req.URL.RawQuery)
			}
			resp := map[string]interface{}{
				"prices": [][]float64{
					{float64(time.Now().Add(-36 * time.Hour).UnixMilli()), 50000},
					{float64(time.Now().Add(-12 * time.Hour).UnixMilli()), 51000},
					{float64(time.Now().UnixMilli()), 50500},
				},
				"total_volumes": [][]float64{
					{float64(time.Now().UnixMilli()), 1e9},
				},
			}
			data, _ := json.Marshal(resp)
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(bytes.NewReader(data)),
				Header:     make(http.Header),
			}, nil
		}),
	}
	provider.limiter = NewRateLimiter(10, time.Millisecond)

	days, err := provider.FetchDailyDays(context.Background(), 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(days) < 2 {
		t.Fatalf("expected at least 2 days, got %d", len(days))
	}
	for _, d := range days {
		if !d.Date.Equal(d.Date.Truncate(24 * time.Hour)) {
			t.Fatalf("date not aligned to UTC midnight: %v", d.Date)
		}
	}
}

func TestCoinGeckoProviderErrorStatus(t *testing.T) {
	t.Parallel()

	provider := NewCoinGeckoProvider(trace.NewNoopTracerProvider().Tracer("test"))
	provider.baseURL = "http://example"
	provider.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusTooManyRequests,
				Body:       io.NopCloser(bytes.NewBufferString("rate limited")),
				Header:     make(http.Header),
			}, nil
		}),
	}
	provider.limiter = NewRateLimiter(10, time.Millisecond)

	if _, err := provider.FetchDailyDays(context.Background(), 30); err == nil {
		t.Fatal("expected error on 429 response")
	}
}
