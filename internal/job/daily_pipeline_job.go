package job

import (
	"context"
	"log"
	"time"

	"crystal-ball/internal/domain"
	"crystal-ball/internal/pipeline"

	"go.opentelemetry.io/otel/trace"
)

type PipelineRunner interface {
	AssembleFeatures(ctx context.Context, updateOnly bool) (pipeline.AssembleResult, error)
	PredictNextDay(ctx context.Context) (*domain.Decision, error)
}

// Announcer pushes a fresh call to subscribers.
type Announcer interface {
	AnnounceDecision(decision *domain.Decision)
}

// DailyPipelineJob assembles the feature table and emits the next-day
// call once per day at a fixed UTC hour, after the daily candle has
// closed.
type DailyPipelineJob struct {
	tracer    trace.Tracer
	runner    PipelineRunner
	runHour   int
	announcer Announcer
}

func NewDailyPipelineJob(tracer trace.Tracer, runner PipelineRunner, runHourUTC int) *DailyPipelineJob {
	if runHourUTC < 0 || runHourUTC > 23 {
		runHourUTC = 0
	}
	return &DailyPipelineJob{tracer: tracer, runner: runner, runHour: runHourUTC}
}

// SetAnnouncer enables pushing each fresh call to an external channel.
func (j *DailyPipelineJob) SetAnnouncer(a Announcer) {
	j.announcer = a
}

func (j *DailyPipelineJob) Start(ctx context.Context) {
	if j.runner == nil {
		log.Println("Daily pipeline job disabled: no runner")
		<-ctx.Done()
		return
	}
	for {
		next := nextRunUTC(time.Now().UTC(), j.runHour)
		wait := time.Until(next)
		if wait < time.Second {
			wait = time.Second
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			j.runOnce(ctx)
		}
	}
}

// RunNow triggers one cycle outside the schedule.
func (j *DailyPipelineJob) RunNow(ctx context.Context) {
	if j.runner == nil {
		return
	}
	j.runOnce(ctx)
}

func (j *DailyPipelineJob) runOnce(ctx context.Context) {
	ctx, span := j.tracer.Start(ctx, "daily-pipeline-job.run-once")
	defer span.End()

	res, err := j.runner.AssembleFeatures(ctx, true)
	if err != nil {
		log.Printf("Daily pipeline assemble error: %v", err)
		return
	}
	log.Printf("Daily pipeline assembled %d feature rows (%d dropped) through %s",
		res.RowsBuilt, res.RowsDropped, res.To.Format("2006-01-02"))

	decision, err := j.runner.PredictNextDay(ctx)
	if err != nil {
		log.Printf("Daily pipeline prediction error: %v", err)
		return
	}
	log.Printf("Daily pipeline call for %s: %s (prob_up=%.4f confidence=%.4f anomalous=%v)",
		decision.PredictionDate.Format("2006-01-02"),
		decision.Direction,
		decision.ProbUp,
		decision.Confidence,
		decision.Anomalous,
	)

	if j.announcer != nil {
		j.announcer.AnnounceDecision(decision)
	}
}

func nextRunUTC(now time.Time, hour int) time.Time {
	run := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !run.After(now) {
		run = run.Add(24 * time.Hour)
	}
	return run
}
