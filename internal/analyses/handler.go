package analyses

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chartlens-backend/internal/imaging"
	"chartlens-backend/internal/shared/server/middleware"
	"chartlens-backend/internal/shared/server/respond"
	"chartlens-backend/internal/shared/telemetry"
	"chartlens-backend/internal/usage"
	"chartlens-backend/internal/vision"
)

// Handler serves the analyze route.
type Handler struct {
	service *Service
}

// NewHandler creates an analysis handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the analyze route on the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyze", h.analyze)
}

// The analyze endpoint speaks the model's own result contract: errors come
// back as {isValid:false, reason, suggestion} so clients handle model
// rejections and server rejections with one code path.
func (h *Handler) analyze(c *gin.Context) {
	var body struct {
		Image any    `json:"image"`
		Lang  string `json:"lang"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.Rejection(c, http.StatusBadRequest, "the request body is not valid JSON", "")
		return
	}

	image, ok := body.Image.(string)
	if body.Image != nil && !ok {
		respond.Rejection(c, http.StatusBadRequest, "the image field must be a string", "send the image as a base64 data URI")
		return
	}

	req := Request{
		Subject:  middleware.UserIDFromContext(c),
		Email:    middleware.UserEmailFromContext(c),
		Authed:   !middleware.IsGuest(c),
		Image:    image,
		Language: body.Lang,
	}

	outcome, err := h.service.Analyze(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if outcome.ID != "" {
		c.Set("analysisId", outcome.ID)
		c.Header("X-Analysis-Id", outcome.ID)
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", outcome.Result.Raw)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var verr *imaging.ValidationError
	switch {
	case errors.As(err, &verr):
		status := http.StatusBadRequest
		if verr.Oversize {
			status = http.StatusRequestEntityTooLarge
		}
		respond.Rejection(c, status, verr.Reason, verr.Suggestion)

	case errors.Is(err, usage.ErrLimitReached):
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": "limit_reached",
			"code":  "FREE_LIMIT_REACHED",
		})

	case errors.Is(err, vision.ErrNotConfigured):
		respond.Rejection(c, http.StatusServiceUnavailable, "analysis is not configured on this server", "")

	default:
		telemetry.Error("analysis.failed", map[string]any{
			"error":      err.Error(),
			"request_id": c.GetString("requestId"),
		})
		respond.Rejection(c, http.StatusInternalServerError, "the analysis could not be completed", "try again in a moment")
	}
}
