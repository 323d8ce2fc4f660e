package sentiment

import (
	"context"
	"errors"
	"testing"

	"crystal-ball/internal/domain"
)

type fakeLLM struct {
	scores []ArticleScore
	err    error
	calls  int
}

func (f *fakeLLM) ScoreBatch(_ context.Context, items []domain.NewsItem) ([]ArticleScore, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.scores, nil
}

func TestHeuristicScoreSigns(t *testing.T) {
	if s := HeuristicScore("Bitcoin ETF inflow sparks rally to all-time high"); s <= 0 {
		t.Errorf("bullish headline scored %v", s)
	}
	if s := HeuristicScore("Exchange hack triggers mass liquidation and sell-off"); s >= 0 {
		t.Errorf("bearish headline scored %v", s)
	}
	if s := HeuristicScore("Bitcoin unchanged on quiet weekend"); s != 0 {
		t.Errorf("neutral headline scored %v", s)
	}
}

func TestScorerLLMOverridesHeuristic(t *testing.T) {
	llm := &fakeLLM{scores: []ArticleScore{{ItemID: 1, Score: -0.9, Model: "llm:test"}}}
	scorer := NewScorer(llm, 10)

	out, err := scorer.Score(context.Background(), []domain.NewsItem{
		{ID: 1, Title: "Bitcoin rally continues"},
	})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if len(out) != 1 || out[0].Score != -0.9 || out[0].Model != "llm:test" {
		t.Fatalf("unexpected output: %+v", out)
	}
}

func TestScorerFallsBackOnLLMError(t *testing.T) {
	llm := &fakeLLM{err: errors.New("rate limited")}
	scorer := NewScorer(llm, 10)

	out, err := scorer.Score(context.Background(), []domain.NewsItem{
		{ID: 7, Title: "Bitcoin surge and breakout"},
	})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if len(out) != 1 || out[0].Score <= 0 || out[0].Model != "heuristic:v1" {
		t.Fatalf("expected heuristic fallback, got %+v", out)
	}
	if llm.calls != 1 {
		t.Fatalf("expected one llm call, got %d", llm.calls)
	}
}

func TestScorerClampsLLMScores(t *testing.T) {
	llm := &fakeLLM{scores: []ArticleScore{{ItemID: 3, Score: 4.2, Model: "llm:test"}}}
	scorer := NewScorer(llm, 10)

	out, err := scorer.Score(context.Background(), []domain.NewsItem{{ID: 3, Title: "x"}})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if out[0].Score != 1 {
		t.Fatalf("expected clamp to 1, got %v", out[0].Score)
	}
}
