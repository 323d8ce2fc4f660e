package handler

import (
	"errors"
	"net/http"

	"crystal-ball/internal/domain"

	"github.com/gin-gonic/gin"
)

// TriggerPipelineRun godoc
// @Summary      Run the daily pipeline manually
// @Description  Reassembles feature rows and emits a fresh next-day call
// @Tags         pipeline
// @Produce      json
// @Param        full  query  bool  false  "Rebuild the whole feature table instead of the trailing window"
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/pipeline/run [post]
func (h *Handler) TriggerPipelineRun(c *gin.Context) {
	if h.pipeline == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "pipeline service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.trigger-pipeline-run")
	defer span.End()

	updateOnly := c.Query("full") != "true"
	res, err := h.pipeline.AssembleFeatures(ctx, updateOnly)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrMissingUpstreamData) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	decision, err := h.pipeline.PredictNextDay(ctx)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrNoViableComponents) || errors.Is(err, domain.ErrMissingUpstreamData) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"rows_built":   res.RowsBuilt,
		"rows_dropped": res.RowsDropped,
		"through":      res.To.Format("2006-01-02"),
		"decision":     decision,
	})
}

// TriggerOutcomeResolve godoc
// @Summary      Settle past calls manually
// @Description  Resolves pending calls whose realized close is on record
// @Tags         pipeline
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/pipeline/resolve [post]
func (h *Handler) TriggerOutcomeResolve(c *gin.Context) {
	if h.pipeline == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "pipeline service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.trigger-outcome-resolve")
	defer span.End()

	resolved, err := h.pipeline.ResolveOutcomes(ctx, 200)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "resolved": resolved})
}
