package job

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"crystal-ball/internal/collector"
	"crystal-ball/internal/domain"
	"crystal-ball/internal/pipeline"

	"go.opentelemetry.io/otel/trace"
)

func TestCollectorJobRunsAtLeastOnce(t *testing.T) {
	var calls int32
	runner := &collectorRunnerStub{calls: &calls}
	job := NewCollectorJob(trace.NewNoopTracerProvider().Tracer("test"), runner, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		job.Start(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	if atomic.LoadInt32(&calls) == 0 {
		t.Fatal("expected at least one collector run")
	}
}

func TestOutcomeResolverJobRunsAtLeastOnce(t *testing.T) {
	var calls int32
	svc := &resolverStub{calls: &calls}
	job := NewOutcomeResolverJob(trace.NewNoopTracerProvider().Tracer("test"), svc, 50*time.Millisecond, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		job.Start(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	if atomic.LoadInt32(&calls) == 0 {
		t.Fatal("expected at least one resolver run")
	}
}

func TestDailyPipelineJobRunNow(t *testing.T) {
	runner := &pipelineRunnerStub{}
	job := NewDailyPipelineJob(trace.NewNoopTracerProvider().Tracer("test"), runner, 1)

	job.RunNow(context.Background())

	if runner.assembles != 1 || runner.predicts != 1 {
		t.Fatalf("assembles = %d, predicts = %d, want 1 and 1", runner.assembles, runner.predicts)
	}
}

func TestDailyPipelineJobAnnouncesFreshCall(t *testing.T) {
	runner := &pipelineRunnerStub{}
	announcer := &announcerStub{}
	job := NewDailyPipelineJob(trace.NewNoopTracerProvider().Tracer("test"), runner, 1)
	job.SetAnnouncer(announcer)

	job.RunNow(context.Background())

	if announcer.last == nil || !announcer.last.PredictionDate.Equal(time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("announcer not invoked with the fresh call: %+v", announcer.last)
	}
}

func TestDailyPipelineJobSkipsPredictionOnAssembleError(t *testing.T) {
	runner := &pipelineRunnerStub{assembleErr: context.DeadlineExceeded}
	job := NewDailyPipelineJob(trace.NewNoopTracerProvider().Tracer("test"), runner, 1)

	job.RunNow(context.Background())

	if runner.predicts != 0 {
		t.Fatalf("prediction ran despite assemble failure")
	}
}

func TestNextRunUTC(t *testing.T) {
	now := time.Date(2026, 2, 13, 10, 30, 0, 0, time.UTC)
	next := nextRunUTC(now, 12)
	if next.Day() != 13 || next.Hour() != 12 {
		t.Fatalf("expected same-day 12:00, got %v", next)
	}
	next = nextRunUTC(now, 9)
	if next.Day() != 14 || next.Hour() != 9 {
		t.Fatalf("expected next-day 09:00, got %v", next)
	}
}

type collectorRunnerStub struct {
	calls *int32
}

func (s *collectorRunnerStub) RunCollect(ctx context.Context) (collector.RunResult, error) {
	atomic.AddInt32(s.calls, 1)
	return collector.RunResult{}, nil
}

type resolverStub struct {
	calls *int32
}

func (s *resolverStub) ResolveOutcomes(ctx context.Context, limit int) (int, error) {
	atomic.AddInt32(s.calls, 1)
	return 0, nil
}

type announcerStub struct {
	last *domain.Decision
}

func (s *announcerStub) AnnounceDecision(decision *domain.Decision) {
	s.last = decision
}

type pipelineRunnerStub struct {
	assembles   int
	predicts    int
	assembleErr error
}

func (s *pipelineRunnerStub) AssembleFeatures(ctx context.Context, updateOnly bool) (pipeline.AssembleResult, error) {
	s.assembles++
	return pipeline.AssembleResult{RowsBuilt: 3, To: time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC)}, s.assembleErr
}

func (s *pipelineRunnerStub) PredictNextDay(ctx context.Context) (*domain.Decision, error) {
	s.predicts++
	return &domain.Decision{
		PredictionDate: time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC),
		Direction:      domain.DirectionUp,
		ProbUp:         0.61,
		Confidence:     0.61,
	}, nil
}
