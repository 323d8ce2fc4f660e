package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"crystal-ball/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetDecision godoc
// @Summary      Get a next-day direction call
// @Description  Returns the latest call, or the call for a specific prediction date when ?date=YYYY-MM-DD is given
// @Tags         decisions
// @Produce      json
// @Param        date  query  string  false  "Prediction date (YYYY-MM-DD)"
// @Success      200  {object}  domain.Decision
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/decision [get]
func (h *Handler) GetDecision(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-decision")
	defer span.End()

	if raw := c.Query("date"); raw != "" {
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		span.SetAttributes(attribute.String("date", raw))

		decision, err := h.decisions.DecisionFor(ctx, date)
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no decision for " + raw})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, decision)
		return
	}

	if h.cache != nil {
		if decision, err := h.cache.GetLatestDecision(ctx); err == nil {
			c.JSON(http.StatusOK, decision)
			return
		}
	}

	decision, err := h.decisions.LatestDecision(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no decisions yet"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, decision)
}

// GetDecisionHistory godoc
// @Summary      List past direction calls
// @Description  Returns recent calls newest first, including resolved outcomes
// @Tags         decisions
// @Produce      json
// @Param        limit  query  int  false  "Number of calls (default 30, max 200)"  default(30)
// @Success      200  {object}  map[string]interface{}
// @Router       /api/decisions [get]
func (h *Handler) GetDecisionHistory(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-decision-history")
	defer span.End()

	limit := 30
	if l := c.Query("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	history, err := h.decisions.ListDecisions(ctx, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	correct, resolved := 0, 0
	for _, d := range history {
		if d.IsCorrect == nil {
			continue
		}
		resolved++
		if *d.IsCorrect {
			correct++
		}
	}
	payload := gin.H{"decisions": history, "resolved": resolved}
	if resolved > 0 {
		payload["hit_rate"] = float64(correct) / float64(resolved)
	}
	c.JSON(http.StatusOK, payload)
}
