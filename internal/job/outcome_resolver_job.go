package job

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type OutcomeResolver interface {
	ResolveOutcomes(ctx context.Context, limit int) (int, error)
}

// OutcomeResolverJob settles past direction calls once the realized
// close shows up in the market table.
type OutcomeResolverJob struct {
	tracer       trace.Tracer
	service      OutcomeResolver
	pollInterval time.Duration
	batchSize    int
}

func NewOutcomeResolverJob(tracer trace.Tracer, service OutcomeResolver, pollInterval time.Duration, batchSize int) *OutcomeResolverJob {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	return &OutcomeResolverJob{tracer: tracer, service: service, pollInterval: pollInterval, batchSize: batchSize}
}

func (j *OutcomeResolverJob) Start(ctx context.Context) {
	if j.service == nil {
		log.Println("Outcome resolver job disabled: no service")
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

func (j *OutcomeResolverJob) runOnce(ctx context.Context) {
	ctx, span := j.tracer.Start(ctx, "outcome-resolver-job.run-once")
	defer span.End()

	resolved, err := j.service.ResolveOutcomes(ctx, j.batchSize)
	if err != nil {
		log.Printf("Outcome resolver error: %v", err)
		return
	}
	if resolved > 0 {
		log.Printf("Outcome resolver settled %d decisions", resolved)
	}
}
