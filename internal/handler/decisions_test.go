package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crystal-ball/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type decisionReaderStub struct {
	latest  *domain.Decision
	byDate  map[string]*domain.Decision
	history []domain.Decision
}

func (s *decisionReaderStub) LatestDecision(ctx context.Context) (*domain.Decision, error) {
	if s.latest == nil {
		return nil, domain.ErrNotFound
	}
	return s.latest, nil
}

func (s *decisionReaderStub) DecisionFor(ctx context.Context, date time.Time) (*domain.Decision, error) {
	d, ok := s.byDate[date.Format("2006-01-02")]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return d, nil
}

func (s *decisionReaderStub) ListDecisions(ctx context.Context, limit int) ([]domain.Decision, error) {
	if limit < len(s.history) {
		return s.history[:limit], nil
	}
	return s.history, nil
}

type cacheStub struct {
	decision *domain.Decision
}

func (s *cacheStub) GetLatestDecision(ctx context.Context) (*domain.Decision, error) {
	if s.decision == nil {
		return nil, domain.ErrNotFound
	}
	return s.decision, nil
}

func testDecision(prob float64) *domain.Decision {
	return &domain.Decision{
		ID:             1,
		FeatureDate:    time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC),
		PredictionDate: time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC),
		Direction:      domain.DirectionUp,
		ProbUp:         prob,
		Confidence:     prob,
		Threshold:      0.5,
	}
}

func newTestRouter(h *Handler) *gin.Engine {
	return newTestRouterWithKey(h, "")
}

func newTestRouterWithKey(h *Handler, key string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterRoutes(r, key)
	return r
}

func TestGetDecisionLatestFromCache(t *testing.T) {
	cached := testDecision(0.61)
	h := New(trace.NewNoopTracerProvider().Tracer("test"), &decisionReaderStub{}, nil, &cacheStub{decision: cached})
	r := newTestRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/decision", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got domain.Decision
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.ProbUp != 0.61 || got.Direction != domain.DirectionUp {
		t.Fatalf("unexpected decision: %+v", got)
	}
}

func TestGetDecisionFallsBackToStore(t *testing.T) {
	stored := testDecision(0.58)
	h := New(trace.NewNoopTracerProvider().Tracer("test"), &decisionReaderStub{latest: stored}, nil, &cacheStub{})
	r := newTestRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/decision", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestGetDecisionByDate(t *testing.T) {
	d := testDecision(0.4)
	d.Direction = domain.DirectionDown
	d.Confidence = 0.6
	store := &decisionReaderStub{byDate: map[string]*domain.Decision{"2026-02-14": d}}
	h := New(trace.NewNoopTracerProvider().Tracer("test"), store, nil, nil)
	r := newTestRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/decision?date=2026-02-14", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/decision?date=2026-02-15", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing date, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/decision?date=tomorrow", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", w.Code)
	}
}

func TestGetDecisionHistoryHitRate(t *testing.T) {
	yes, no := true, false
	store := &decisionReaderStub{history: []domain.Decision{
		{ID: 3, Direction: domain.DirectionUp, IsCorrect: &yes},
		{ID: 2, Direction: domain.DirectionDown, IsCorrect: &no},
		{ID: 1, Direction: domain.DirectionUp},
	}}
	h := New(trace.NewNoopTracerProvider().Tracer("test"), store, nil, nil)
	r := newTestRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/decisions", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Decisions []domain.Decision `json:"decisions"`
		Resolved  int               `json:"resolved"`
		HitRate   float64           `json:"hit_rate"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(body.Decisions) != 3 || body.Resolved != 2 {
		t.Fatalf("unexpected payload: %+v", body)
	}
	if body.HitRate != 0.5 {
		t.Fatalf("hit rate = %v, want 0.5", body.HitRate)
	}
}
