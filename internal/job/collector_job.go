package job

import (
	"context"
	"log"
	"time"

	"crystal-ball/internal/collector"

	"go.opentelemetry.io/otel/trace"
)

type CollectorRunner interface {
	RunCollect(ctx context.Context) (collector.RunResult, error)
}

type CollectorJob struct {
	tracer       trace.Tracer
	runner       CollectorRunner
	pollInterval time.Duration
}

func NewCollectorJob(tracer trace.Tracer, runner CollectorRunner, pollInterval time.Duration) *CollectorJob {
	if pollInterval <= 0 {
		pollInterval = time.Hour
	}
	return &CollectorJob{tracer: tracer, runner: runner, pollInterval: pollInterval}
}

func (j *CollectorJob) Start(ctx context.Context) {
	if j.runner == nil {
		log.Println("Collector job disabled: no runner")
		<-ctx.Done()
		return
	}

	j.runOnce(ctx)
	ticker := time.NewTicker(j.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *CollectorJob) runOnce(ctx context.Context) {
	_, span := j.tracer.Start(ctx, "collector-job.run-once")
	defer span.End()

	result, err := j.runner.RunCollect(ctx)
	if err != nil {
		log.Printf("Collector cycle error: %v", err)
		return
	}
	if result.MarketDays > 0 || result.NewsItems > 0 {
		log.Printf(
			"Collector cycle complete market_days=%d news_items=%d feeds_failed=%d reference_gaps=%d",
			result.MarketDays,
			result.NewsItems,
			result.FeedsFailed,
			result.ReferenceGaps,
		)
	}
}
