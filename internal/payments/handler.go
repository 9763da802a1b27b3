package payments

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"chartlens-backend/internal/entitlements"
	"chartlens-backend/internal/shared/server/respond"
	"chartlens-backend/internal/shared/telemetry"
)

// Handler serves the checkout and webhook routes.
type Handler struct {
	checkout      *CheckoutClient
	entitlements  *entitlements.Service
	webhookSecret string
}

// NewHandler creates a payments handler.
func NewHandler(checkout *CheckoutClient, ents *entitlements.Service, webhookSecret string) *Handler {
	return &Handler{
		checkout:      checkout,
		entitlements:  ents,
		webhookSecret: webhookSecret,
	}
}

// RegisterRoutes mounts the payment routes on the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/checkout", h.createCheckout)
	rg.POST("/payments/webhook", h.webhook)
}

func (h *Handler) createCheckout(c *gin.Context) {
	var body struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Email) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "email is required", nil)
		return
	}

	url, err := h.checkout.CreateSession(c.Request.Context(), strings.TrimSpace(body.Email))
	if err != nil {
		telemetry.Error("checkout.failed", map[string]any{"error": err.Error()})
		respond.Error(c, http.StatusInternalServerError, "checkout_failed", "failed to create checkout session", nil)
		return
	}
	respond.OK(c, gin.H{"url": url})
}

// webhook handles signed Stripe events. Nothing mutates before the
// signature verifies.
func (h *Handler) webhook(c *gin.Context) {
	if h.webhookSecret == "" {
		respond.Error(c, http.StatusBadRequest, "webhook_not_configured", "webhook secret is not configured", nil)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_payload", "could not read payload", nil)
		return
	}

	event, err := ConstructEvent(payload, c.GetHeader("Stripe-Signature"), h.webhookSecret, DefaultTolerance)
	if err != nil {
		telemetry.Warn("webhook.signature_rejected", map[string]any{"error": err.Error()})
		respond.Error(c, http.StatusBadRequest, "invalid_signature", "webhook signature verification failed", nil)
		return
	}

	if event.Type == "checkout.session.completed" {
		var session CheckoutSession
		if err := json.Unmarshal(event.Data.Object, &session); err != nil {
			respond.Error(c, http.StatusBadRequest, "invalid_payload", "could not decode session", nil)
			return
		}

		email := session.Email()
		if email == "" {
			telemetry.Warn("webhook.no_email", map[string]any{"event_id": event.ID, "session_id": session.ID})
		} else {
			if err := h.entitlements.Grant(c.Request.Context(), email); err != nil {
				telemetry.Error("webhook.grant_failed", map[string]any{"event_id": event.ID, "error": err.Error()})
				respond.Error(c, http.StatusInternalServerError, "internal_error", "could not record entitlement", nil)
				return
			}
			telemetry.Info("webhook.premium_granted", map[string]any{
				"event_id":   event.ID,
				"session_id": session.ID,
				"granted_at": time.Now().UTC().Format(time.RFC3339),
			})
		}
	}

	respond.OK(c, gin.H{"received": true})
}
