package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crystal-ball/internal/domain"
	"crystal-ball/internal/pipeline"

	"go.opentelemetry.io/otel/trace"
)

type pipelineStub struct {
	assembleErr error
	predictErr  error
	updateOnly  *bool
}

func (s *pipelineStub) AssembleFeatures(ctx context.Context, updateOnly bool) (pipeline.AssembleResult, error) {
	s.updateOnly = &updateOnly
	if s.assembleErr != nil {
		return pipeline.AssembleResult{}, s.assembleErr
	}
	return pipeline.AssembleResult{RowsBuilt: 12, RowsDropped: 1, To: time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC)}, nil
}

func (s *pipelineStub) PredictNextDay(ctx context.Context) (*domain.Decision, error) {
	if s.predictErr != nil {
		return nil, s.predictErr
	}
	return testDecision(0.61), nil
}

func (s *pipelineStub) ResolveOutcomes(ctx context.Context, limit int) (int, error) {
	return 2, nil
}

func TestTriggerPipelineRunUnavailable(t *testing.T) {
	h := New(trace.NewNoopTracerProvider().Tracer("test"), &decisionReaderStub{}, nil, nil)
	r := newTestRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/pipeline/run", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestTriggerPipelineRunSuccess(t *testing.T) {
	h := New(trace.NewNoopTracerProvider().Tracer("test"), &decisionReaderStub{}, nil, nil)
	stub := &pipelineStub{}
	h.SetPipelineRunner(stub)
	r := newTestRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/pipeline/run", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if stub.updateOnly == nil || !*stub.updateOnly {
		t.Fatal("default run should be update-only")
	}

	var body struct {
		Status    string          `json:"status"`
		RowsBuilt int             `json:"rows_built"`
		Decision  domain.Decision `json:"decision"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if body.Status != "ok" || body.RowsBuilt != 12 || body.Decision.ProbUp != 0.61 {
		t.Fatalf("unexpected payload: %+v", body)
	}
}

func TestTriggerPipelineRunFullRebuild(t *testing.T) {
	h := New(trace.NewNoopTracerProvider().Tracer("test"), &decisionReaderStub{}, nil, nil)
	stub := &pipelineStub{}
	h.SetPipelineRunner(stub)
	r := newTestRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/pipeline/run?full=true", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if stub.updateOnly == nil || *stub.updateOnly {
		t.Fatal("full=true should disable update-only")
	}
}

func TestTriggerPipelineRunConflicts(t *testing.T) {
	h := New(trace.NewNoopTracerProvider().Tracer("test"), &decisionReaderStub{}, nil, nil)
	h.SetPipelineRunner(&pipelineStub{assembleErr: domain.ErrMissingUpstreamData})
	r := newTestRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/pipeline/run", nil))
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for missing upstream data, got %d", w.Code)
	}

	h2 := New(trace.NewNoopTracerProvider().Tracer("test"), &decisionReaderStub{}, nil, nil)
	h2.SetPipelineRunner(&pipelineStub{predictErr: domain.ErrNoViableComponents})
	r2 := newTestRouter(h2)

	w = httptest.NewRecorder()
	r2.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/pipeline/run", nil))
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 when no component survives, got %d", w.Code)
	}
}

func TestTriggerOutcomeResolve(t *testing.T) {
	h := New(trace.NewNoopTracerProvider().Tracer("test"), &decisionReaderStub{}, nil, nil)
	h.SetPipelineRunner(&pipelineStub{})
	r := newTestRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/pipeline/resolve", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Resolved int `json:"resolved"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if body.Resolved != 2 {
		t.Fatalf("resolved = %d, want 2", body.Resolved)
	}
}

func TestAPIKeyAuthGuardsTriggers(t *testing.T) {
	h := New(trace.NewNoopTracerProvider().Tracer("test"), &decisionReaderStub{}, nil, nil)
	h.SetPipelineRunner(&pipelineStub{})

	r := newTestRouterWithKey(h, "secret")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/pipeline/run", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/pipeline/run", nil)
	req.Header.Set("X-API-Key", "secret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with key, got %d", w.Code)
	}
}
