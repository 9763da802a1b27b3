package payments

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"chartlens-backend/internal/shared/telemetry"
)

const (
	stripeBaseURL = "https://api.stripe.com"

	// One-time lifetime purchase, $47.00.
	checkoutAmountCents = 4700
	checkoutCurrency    = "usd"
	checkoutProductName = "ChartLens Lifetime Access"
	checkoutProductDesc = "Unlimited lifetime access to ChartLens AI chart analysis"
)

// CheckoutClient creates Stripe checkout sessions over the REST API.
type CheckoutClient struct {
	http       *resty.Client
	secretKey  string
	successURL string
	cancelURL  string
	now        func() time.Time
}

// CheckoutOptions configures the checkout client.
type CheckoutOptions struct {
	SecretKey  string
	BaseURL    string
	SuccessURL string
	CancelURL  string
}

// NewCheckoutClient builds a checkout client. With no secret key the client
// stays usable and simulates sessions for development.
func NewCheckoutClient(opts CheckoutOptions) *CheckoutClient {
	base := opts.BaseURL
	if base == "" {
		base = stripeBaseURL
	}
	return &CheckoutClient{
		http: resty.New().
			SetBaseURL(base).
			SetTimeout(15 * time.Second),
		secretKey:  opts.SecretKey,
		successURL: opts.SuccessURL,
		cancelURL:  opts.CancelURL,
		now:        time.Now,
	}
}

// Configured reports whether a real Stripe key is present.
func (c *CheckoutClient) Configured() bool {
	return c.secretKey != ""
}

type checkoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type stripeErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateSession creates a checkout session for the email and returns the
// hosted payment page URL. Without a configured key it returns a simulated
// dev success URL instead.
func (c *CheckoutClient) CreateSession(ctx context.Context, email string) (string, error) {
	if !c.Configured() {
		telemetry.Info("checkout.simulated", map[string]any{"email": email})
		u, _ := url.Parse(c.successURL)
		if u == nil {
			u = &url.URL{Path: "/success"}
		}
		q := u.Query()
		q.Set("session_id", "dev_"+strconv.FormatInt(c.now().UnixMilli(), 10))
		q.Set("email", email)
		u.RawQuery = q.Encode()
		return u.String(), nil
	}

	form := map[string]string{
		"mode":                     "payment",
		"payment_method_types[0]":  "card",
		"customer_email":           email,
		"success_url":              c.successURL,
		"cancel_url":               c.cancelURL,
		"metadata[email]":          email,
		"line_items[0][quantity]":  "1",
		"line_items[0][price_data][currency]":                   checkoutCurrency,
		"line_items[0][price_data][unit_amount]":                strconv.Itoa(checkoutAmountCents),
		"line_items[0][price_data][product_data][name]":         checkoutProductName,
		"line_items[0][price_data][product_data][description]":  checkoutProductDesc,
	}

	var session checkoutSession
	var apiErr stripeErrorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.secretKey).
		SetFormData(form).
		SetResult(&session).
		SetError(&apiErr).
		Post("/v1/checkout/sessions")
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("create checkout session: stripe %d: %s", resp.StatusCode(), apiErr.Error.Message)
	}
	if session.URL == "" {
		return "", errors.New("create checkout session: no url in response")
	}

	telemetry.Info("checkout.session_created", map[string]any{"session_id": session.ID})
	return session.URL, nil
}
