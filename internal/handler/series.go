package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"crystal-ball/internal/domain"

	"github.com/gin-gonic/gin"
)

type SentimentReader interface {
	ListDays(ctx context.Context, from, to time.Time) ([]domain.SentimentDay, error)
}

type IndicatorReader interface {
	ListRows(ctx context.Context, from, to time.Time) ([]domain.IndicatorDay, error)
}

// GetSentimentDays godoc
// @Summary      Get recent daily sentiment rows
// @Description  Returns the aggregated sentiment series, oldest first
// @Tags         series
// @Produce      json
// @Param        days  query  int  false  "Trailing window in days (default 30, max 365)"  default(30)
// @Success      200  {object}  map[string]interface{}
// @Router       /api/sentiment [get]
func (h *Handler) GetSentimentDays(c *gin.Context) {
	if h.sentiment == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sentiment store unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-sentiment-days")
	defer span.End()

	from, to := seriesRange(c)
	rows, err := h.sentiment.ListDays(ctx, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": rows})
}

// GetIndicatorDays godoc
// @Summary      Get recent daily indicator rows
// @Description  Returns the technical indicator series, oldest first
// @Tags         series
// @Produce      json
// @Param        days  query  int  false  "Trailing window in days (default 30, max 365)"  default(30)
// @Success      200  {object}  map[string]interface{}
// @Router       /api/indicators [get]
func (h *Handler) GetIndicatorDays(c *gin.Context) {
	if h.indicators == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "indicator store unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-indicator-days")
	defer span.End()

	from, to := seriesRange(c)
	rows, err := h.indicators.ListRows(ctx, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": rows})
}

func seriesRange(c *gin.Context) (time.Time, time.Time) {
	days := 30
	if d := c.Query("days"); d != "" {
		if n, err := strconv.Atoi(d); err == nil && n > 0 && n <= 365 {
			days = n
		}
	}
	to := domain.UTCDate(time.Now())
	return to.AddDate(0, 0, -(days - 1)), to
}
