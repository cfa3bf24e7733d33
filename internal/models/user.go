package models

import (
	"time"

	"github.com/google/uuid"
)

// Subscription tiers.
const (
	TierFree       = "free"
	TierPro        = "pro"
	TierEnterprise = "enterprise"
)

type User struct {
	ID              uuid.UUID `json:"id"`
	Email           string    `json:"email"`
	PolarCustomerID *string   `json:"polar_customer_id,omitempty"`
	Tier            string    `json:"tier"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
