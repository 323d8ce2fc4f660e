package handler

import (
	"context"
	"time"

	"crystal-ball/internal/domain"
	"crystal-ball/internal/pipeline"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type DecisionReader interface {
	LatestDecision(ctx context.Context) (*domain.Decision, error)
	DecisionFor(ctx context.Context, predictionDate time.Time) (*domain.Decision, error)
	ListDecisions(ctx context.Context, limit int) ([]domain.Decision, error)
}

type LatestDecisionCache interface {
	GetLatestDecision(ctx context.Context) (*domain.Decision, error)
}

type FeatureReader interface {
	LatestRows(ctx context.Context, n int) ([]domain.FeatureDay, error)
}

type PipelineRunner interface {
	AssembleFeatures(ctx context.Context, updateOnly bool) (pipeline.AssembleResult, error)
	PredictNextDay(ctx context.Context) (*domain.Decision, error)
	ResolveOutcomes(ctx context.Context, limit int) (int, error)
}

type Handler struct {
	tracer     trace.Tracer
	decisions  DecisionReader
	features   FeatureReader
	cache      LatestDecisionCache
	pipeline   PipelineRunner
	models     ModelRegistryAdmin
	sentiment  SentimentReader
	indicators IndicatorReader
}

func New(tracer trace.Tracer, decisions DecisionReader, features FeatureReader, cache LatestDecisionCache) *Handler {
	return &Handler{
		tracer:    tracer,
		decisions: decisions,
		features:  features,
		cache:     cache,
	}
}

// SetPipelineRunner wires the manual trigger endpoints. Without it they
// answer 503.
func (h *Handler) SetPipelineRunner(runner PipelineRunner) {
	h.pipeline = runner
}

// SetModelRegistry wires the model import and activation endpoints.
// Without it they answer 503.
func (h *Handler) SetModelRegistry(reg ModelRegistryAdmin) {
	h.models = reg
}

// SetSeriesReaders wires the sentiment and indicator series endpoints.
func (h *Handler) SetSeriesReaders(sentiment SentimentReader, indicators IndicatorReader) {
	h.sentiment = sentiment
	h.indicators = indicators
}

func (h *Handler) RegisterRoutes(r *gin.Engine, apiKey string) {
	r.GET("/health", h.Health)
	r.GET("/api/decision", h.GetDecision)
	r.GET("/api/decisions", h.GetDecisionHistory)
	r.GET("/api/features/latest", h.GetLatestFeatures)
	r.GET("/api/sentiment", h.GetSentimentDays)
	r.GET("/api/indicators", h.GetIndicatorDays)

	authed := r.Group("/api", APIKeyAuth(apiKey))
	authed.POST("/pipeline/run", h.TriggerPipelineRun)
	authed.POST("/pipeline/resolve", h.TriggerOutcomeResolve)
	authed.GET("/models/:key", h.GetModelInfo)
	authed.POST("/models/:key", h.UploadModelVersion)
	authed.POST("/models/:key/activate", h.ActivateModelVersion)
}
