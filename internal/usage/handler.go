package usage

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chartlens-backend/internal/shared/server/middleware"
	"chartlens-backend/internal/shared/server/respond"
)

// Handler serves the usage route.
type Handler struct {
	service *Service
}

// NewHandler creates a usage handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the usage routes on the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/usage", h.snapshot)
}

func (h *Handler) snapshot(c *gin.Context) {
	subject := middleware.UserIDFromContext(c)
	email := middleware.UserEmailFromContext(c)

	snap, err := h.service.Snapshot(c.Request.Context(), subject, email)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "could not load usage", nil)
		return
	}
	respond.OK(c, snap)
}
