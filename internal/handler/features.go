package handler

import (
	"net/http"
	"strconv"

	"crystal-ball/internal/features"

	"github.com/gin-gonic/gin"
)

// GetLatestFeatures godoc
// @Summary      Get the newest feature rows
// @Description  Returns the most recent assembled feature rows, oldest first, with the feature name order
// @Tags         features
// @Produce      json
// @Param        limit  query  int  false  "Number of rows (default 10, max 100)"  default(10)
// @Success      200  {object}  map[string]interface{}
// @Router       /api/features/latest [get]
func (h *Handler) GetLatestFeatures(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-latest-features")
	defer span.End()

	limit := 10
	if l := c.Query("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	rows, err := h.features.LatestRows(ctx, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"contract_version": features.ContractVersion,
		"feature_names":    features.ContractNames(),
		"rows":             rows,
	})
}
