package history

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"chartlens-backend/internal/shared/server/middleware"
	"chartlens-backend/internal/shared/server/respond"
)

// Handler serves the history routes.
type Handler struct {
	service *Service
}

// NewHandler creates a history handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the history routes on the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/history", h.list)
	rg.GET("/history/:id", h.get)
	rg.GET("/history/:id/thumbnail", h.thumbnail)
	rg.DELETE("/history/:id", h.delete)
	rg.DELETE("/history", h.clear)
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	entries, err := h.service.List(c.Request.Context(), userID, !middleware.IsGuest(c))
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "could not load history", nil)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	respond.OK(c, gin.H{"history": entries, "count": len(entries)})
}

func (h *Handler) get(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	entry, err := h.service.Get(c.Request.Context(), userID, c.Param("id"), !middleware.IsGuest(c))
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "could not load history entry", nil)
		return
	}
	if entry == nil {
		respond.Error(c, http.StatusNotFound, "not_found", "history entry not found", nil)
		return
	}
	respond.OK(c, entry)
}

func (h *Handler) thumbnail(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	rc, err := h.service.OpenThumbnail(c.Request.Context(), userID, c.Param("id"), !middleware.IsGuest(c))
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "could not load thumbnail", nil)
		return
	}
	if rc == nil {
		respond.Error(c, http.StatusNotFound, "not_found", "thumbnail not found", nil)
		return
	}
	defer rc.Close()

	c.Header("Content-Type", "image/jpeg")
	c.Header("Cache-Control", "private, max-age=86400")
	c.Status(http.StatusOK)
	io.Copy(c.Writer, rc)
}

func (h *Handler) delete(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	deleted, err := h.service.Delete(c.Request.Context(), userID, c.Param("id"), !middleware.IsGuest(c))
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "could not delete history entry", nil)
		return
	}
	if !deleted {
		respond.Error(c, http.StatusNotFound, "not_found", "history entry not found", nil)
		return
	}
	respond.OK(c, gin.H{"deleted": true})
}

func (h *Handler) clear(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if err := h.service.Clear(c.Request.Context(), userID, !middleware.IsGuest(c)); err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "could not clear history", nil)
		return
	}
	respond.OK(c, gin.H{"cleared": true})
}
