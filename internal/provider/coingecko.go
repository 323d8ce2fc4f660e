package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"time"

	"crystal-ball/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const (
	coingeckoBaseURL = "https://api.coingecko.com/api/v3"
	coingeckoBTCID   = "bitcoin"
)

// CoinGeckoProvider fetches daily BTC price history from the CoinGecko
// free API.
type CoinGeckoProvider struct {
	client  *http.Client
	baseURL string
	tracer  trace.Tracer
	limiter *RateLimiter
}

// NewCoinGeckoProvider creates a new provider with built-in rate limiting.
// Rate limited to 8 requests per minute (one token every 7.5 seconds).
func NewCoinGeckoProvider(tracer trace.Tracer) *CoinGeckoProvider {
	return &CoinGeckoProvider{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: coingeckoBaseURL,
		tracer:  tracer,
		limiter: NewRateLimiter(8, 7500*time.Millisecond),
	}
}

// FetchDailyDays fetches market_chart data for the trailing window and
// folds the raw price points into one OHLCV row per UTC day. The last
// row covers today and is still accumulating, so callers normally drop
// it or let the next run overwrite it.
func (p *CoinGeckoProvider) FetchDailyDays(ctx context.Context, days int) ([]domain.MarketDay, error) {
	_, span := p.tracer.Start(ctx, "coingecko.fetch-daily-days")
	defer span.End()

	if days <= 0 {
		days = 90
	}
	url := fmt.Sprintf("%s/coins/%s/market_chart?vs_currency=usd&days=%d",
		p.baseURL, coingeckoBTCID, days)

	body, err := p.doRequest(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch daily days: %w", err)
	}

	var raw struct {
		Prices       [][]float64 `json:"prices"`
		TotalVolumes [][]float64 `json:"total_volumes"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse market chart: %w", err)
	}

	return buildDaysFromMarketChart(raw.Prices, raw.TotalVolumes), nil
}

func (p *CoinGeckoProvider) doRequest(ctx context.Context, url string) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("coingecko API error %d: %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}

type volumePoint struct {
	ts  int64
	vol float64
}

// buildDaysFromMarketChart buckets raw price points into UTC calendar
// days. The first price of a day becomes the open and the last the
// close; volume is the closest total_volumes point to the day boundary.
func buildDaysFromMarketChart(prices, volumes [][]float64) []domain.MarketDay {
	if len(prices) == 0 {
		return nil
	}

	volPoints := make([]volumePoint, 0, len(volumes))
	for _, v := range volumes {
		if len(v) >= 2 {
			volPoints = append(volPoints, volumePoint{ts: int64(v[0]), vol: v[1]})
		}
	}

	sort.Slice(prices, func(i, j int) bool {
		return prices[i][0] < prices[j][0]
	})

	type bucket struct {
		open  float64
		high  float64
		low   float64
		close float64
	}
	buckets := make(map[int64]*bucket)

	for _, pt := range prices {
		if len(pt) < 2 {
			continue
		}
		price := pt[1]
		day := domain.UTCDate(time.UnixMilli(int64(pt[0]))).Unix()

		b, exists := buckets[day]
		if !exists {
			buckets[day] = &bucket{open: price, high: price, low: price, close: price}
			continue
		}
		b.high = math.Max(b.high, price)
		b.low = math.Min(b.low, price)
		b.close = price
	}

	sortedKeys := make([]int64, 0, len(buckets))
	for k := range buckets {
		sortedKeys = append(sortedKeys, k)
	}
	sort.Slice(sortedKeys, func(i, j int) bool { return sortedKeys[i] < sortedKeys[j] })

	days := make([]domain.MarketDay, 0, len(sortedKeys))
	for _, k := range sortedKeys {
		b := buckets[k]
		date := time.Unix(k, 0).UTC()
		days = append(days, domain.MarketDay{
			Date:   date,
			Open:   b.open,
			High:   b.high,
			Low:    b.low,
			Close:  b.close,
			Volume: findClosestVolume(volPoints, date.AddDate(0, 0, 1).UnixMilli()),
		})
	}
	return days
}

func findClosestVolume(volumes []volumePoint, targetMs int64) float64 {
	if len(volumes) == 0 {
		return 0
	}
	closest := volumes[0]
	minDiff := int64(math.MaxInt64)
	for _, v := range volumes {
		diff := v.ts - targetMs
		if diff < 0 {
			diff = -diff
		}
		if diff < minDiff {
			minDiff = diff
			closest = v
		}
	}
	return closest.vol
}
