package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"crystal-ball/internal/domain"
	"crystal-ball/internal/ensemble"

	"github.com/gin-gonic/gin"
)

type ModelRegistryAdmin interface {
	NextVersion(ctx context.Context, modelKey string) (int, error)
	InsertModelVersion(ctx context.Context, model domain.ModelVersion) (*domain.ModelVersion, error)
	GetLatestModel(ctx context.Context, modelKey string) (*domain.ModelVersion, error)
	ActivateModel(ctx context.Context, modelKey string, version int) error
}

type modelUploadRequest struct {
	ContractName   string  `json:"contract_name"`
	Weight         float64 `json:"weight"`
	InputShape     string  `json:"input_shape"`
	ArtifactFormat string  `json:"artifact_format"`
	Artifact       []byte  `json:"artifact"`
	AliasJSON      string  `json:"alias_json"`
	Activate       bool    `json:"activate"`
}

// UploadModelVersion godoc
// @Summary      Import a trained model artifact
// @Description  Stores the artifact under the next version for the key; the artifact must hydrate before it is accepted
// @Tags         models
// @Accept       json
// @Produce      json
// @Param        key      path  string              true  "Model key"
// @Param        payload  body  modelUploadRequest  true  "Artifact and metadata, artifact base64-encoded"
// @Success      201  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/models/{key} [post]
func (h *Handler) UploadModelVersion(c *gin.Context) {
	if h.models == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model registry unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.upload-model-version")
	defer span.End()

	var req modelUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Artifact) == 0 || req.ArtifactFormat == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "artifact and artifact_format are required"})
		return
	}
	if req.Weight == 0 {
		req.Weight = 1
	}

	version, err := h.models.NextVersion(ctx, c.Param("key"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	model := domain.ModelVersion{
		ModelKey:       c.Param("key"),
		Version:        version,
		ContractName:   req.ContractName,
		Weight:         req.Weight,
		InputShape:     req.InputShape,
		ArtifactFormat: req.ArtifactFormat,
		ArtifactBlob:   req.Artifact,
		AliasJSON:      req.AliasJSON,
	}

	// A blob that cannot hydrate would only surface at prediction time,
	// where the ensemble silently skips it. Reject it here instead.
	if _, err := ensemble.BuildComponent(model); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stored, err := h.models.InsertModelVersion(ctx, model)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if req.Activate {
		if err := h.models.ActivateModel(ctx, stored.ModelKey, stored.Version); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		stored.IsActive = true
	}

	c.JSON(http.StatusCreated, modelInfo(stored))
}

// ActivateModelVersion godoc
// @Summary      Activate a stored model version
// @Description  Makes the given version the one the ensemble loads for its key, deactivating the rest
// @Tags         models
// @Produce      json
// @Param        key      path   string  true  "Model key"
// @Param        version  query  int     true  "Version to activate"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/models/{key}/activate [post]
func (h *Handler) ActivateModelVersion(c *gin.Context) {
	if h.models == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model registry unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.activate-model-version")
	defer span.End()

	version, err := strconv.Atoi(c.Query("version"))
	if err != nil || version <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "version must be a positive integer"})
		return
	}

	key := c.Param("key")
	if err := h.models.ActivateModel(ctx, key, version); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no such model version"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "model_key": key, "version": version})
}

// GetModelInfo godoc
// @Summary      Get the newest stored version for a model key
// @Tags         models
// @Produce      json
// @Param        key  path  string  true  "Model key"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/models/{key} [get]
func (h *Handler) GetModelInfo(c *gin.Context) {
	if h.models == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model registry unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-model-info")
	defer span.End()

	model, err := h.models.GetLatestModel(ctx, c.Param("key"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if model == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no versions for model key"})
		return
	}

	c.JSON(http.StatusOK, modelInfo(model))
}

func modelInfo(m *domain.ModelVersion) gin.H {
	return gin.H{
		"model_key":       m.ModelKey,
		"version":         m.Version,
		"contract_name":   m.ContractName,
		"weight":          m.Weight,
		"input_shape":     m.InputShape,
		"artifact_format": m.ArtifactFormat,
		"artifact_bytes":  len(m.ArtifactBlob),
		"is_active":       m.IsActive,
		"activated_at":    m.ActivatedAt,
		"created_at":      m.CreatedAt,
	}
}
