package waitlist

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chartlens-backend/internal/shared/server/respond"
	"chartlens-backend/internal/shared/telemetry"
)

// Handler serves the waitlist route.
type Handler struct {
	repo Repo
}

// NewHandler creates a waitlist handler.
func NewHandler(repo Repo) *Handler {
	return &Handler{repo: repo}
}

// RegisterRoutes mounts the waitlist route on the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/waitlist", h.join)
}

// join captures a lead. Storage trouble is logged but the caller always
// gets a success-shaped response; losing a lead beats losing a signup flow.
func (h *Handler) join(c *gin.Context) {
	var body struct {
		Email string `json:"email"`
		Phone string `json:"phone"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Email) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "email is required", nil)
		return
	}

	lead := Lead{
		Email: strings.TrimSpace(body.Email),
		Phone: strings.TrimSpace(body.Phone),
	}
	if err := h.repo.Upsert(c.Request.Context(), lead); err != nil {
		telemetry.Error("waitlist.store_failed", map[string]any{"error": err.Error()})
	}

	respond.OK(c, gin.H{"success": true})
}
