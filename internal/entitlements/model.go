package entitlements

import "time"

// Entitlement is the paid status of an email address. Email is the key:
// checkout happens before signup, so entitlements attach to whatever email
// Stripe collected.
type Entitlement struct {
	Email        string     `json:"email"`
	IsPremium    bool       `json:"isPremium"`
	PremiumSince *time.Time `json:"premiumSince,omitempty"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}
