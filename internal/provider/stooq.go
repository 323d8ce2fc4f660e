package provider

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"crystal-ball/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const stooqBaseURL = "https://stooq.com/q/d/l/"

// stooqTickers maps our reference symbols onto Stooq's naming.
var stooqTickers = map[string]string{
	domain.SymbolNasdaq: "^ixic",
	domain.SymbolGold:   "gld.us",
}

// StooqProvider fetches daily equity and ETF closes from Stooq's CSV
// download endpoint. Stooq only has rows for trading days; weekend and
// holiday gaps are filled downstream.
type StooqProvider struct {
	client  *http.Client
	baseURL string
	tracer  trace.Tracer
}

func NewStooqProvider(tracer trace.Tracer) *StooqProvider {
	return &StooqProvider{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: stooqBaseURL,
		tracer:  tracer,
	}
}

// FetchDailyCloses returns close-by-date for the given reference symbol
// from the given date onward.
func (p *StooqProvider) FetchDailyCloses(ctx context.Context, symbol string, from time.Time) (map[time.Time]float64, error) {
	_, span := p.tracer.Start(ctx, "stooq.fetch-daily-closes")
	defer span.End()

	ticker, ok := stooqTickers[symbol]
	if !ok {
		return nil, fmt.Errorf("unsupported reference symbol: %s", symbol)
	}

	url := fmt.Sprintf("%s?s=%s&d1=%s&i=d", p.baseURL, ticker, domain.UTCDate(from).Format("20060102"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("stooq error %d for %s: %s", resp.StatusCode, symbol, string(body))
	}

	return parseStooqCSV(resp.Body)
}

// parseStooqCSV reads Stooq's Date,Open,High,Low,Close,Volume payload.
// Unparseable rows are skipped rather than failing the whole fetch.
func parseStooqCSV(r io.Reader) (map[time.Time]float64, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse stooq csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty stooq payload")
	}

	header := records[0]
	dateIdx, closeIdx := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "date":
			dateIdx = i
		case "close":
			closeIdx = i
		}
	}
	if dateIdx < 0 || closeIdx < 0 {
		return nil, fmt.Errorf("unexpected stooq header: %v", header)
	}

	out := make(map[time.Time]float64, len(records)-1)
	for _, row := range records[1:] {
		if len(row) <= dateIdx || len(row) <= closeIdx {
			continue
		}
		date, err := time.Parse("2006-01-02", strings.TrimSpace(row[dateIdx]))
		if err != nil {
			continue
		}
		close, err := strconv.ParseFloat(strings.TrimSpace(row[closeIdx]), 64)
		if err != nil {
			continue
		}
		out[domain.UTCDate(date)] = close
	}
	return out, nil
}
