package admin

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"chartlens-backend/internal/entitlements"
	"chartlens-backend/internal/shared/server/respond"
	"chartlens-backend/internal/shared/telemetry"
	"chartlens-backend/internal/waitlist"
)

// Handler serves the admin routes behind the shared-secret header.
type Handler struct {
	adminKey     string
	stats        StatsSource
	waitlist     waitlist.Repo
	entitlements *entitlements.Service
}

// NewHandler creates an admin handler.
func NewHandler(adminKey string, stats StatsSource, waitlistRepo waitlist.Repo, ents *entitlements.Service) *Handler {
	return &Handler{
		adminKey:     adminKey,
		stats:        stats,
		waitlist:     waitlistRepo,
		entitlements: ents,
	}
}

// RegisterRoutes mounts the admin routes on the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/admin/stats", h.requireKey, h.getStats)
}

func (h *Handler) requireKey(c *gin.Context) {
	provided := c.GetHeader("x-admin-key")
	if h.adminKey == "" ||
		subtle.ConstantTimeCompare([]byte(provided), []byte(h.adminKey)) != 1 {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "invalid admin key", nil)
		return
	}
	c.Next()
}

func (h *Handler) getStats(c *gin.Context) {
	ctx := c.Request.Context()

	analysisStats, err := h.stats.AnalysisStats(ctx)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "could not load stats", nil)
		return
	}

	waitlistCount := 0
	if h.waitlist != nil {
		waitlistCount, err = h.waitlist.Count(ctx)
		if err != nil {
			telemetry.Warn("admin.waitlist_count_failed", map[string]any{"error": err.Error()})
		}
	}

	premiumCount := 0
	if h.entitlements != nil {
		premiumCount, err = h.entitlements.CountPremium(ctx)
		if err != nil {
			telemetry.Warn("admin.premium_count_failed", map[string]any{"error": err.Error()})
		}
	}

	respond.OK(c, gin.H{
		"analyses": analysisStats,
		"waitlist": gin.H{"count": waitlistCount},
		"premium":  gin.H{"count": premiumCount},
	})
}
