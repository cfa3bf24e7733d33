package models

import (
	"time"

	"github.com/google/uuid"
)

const BillingStatusActive = "active"

// Billing is the single subscription record of a user.
type Billing struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	PolarOrderID    *string    `json:"polar_order_id,omitempty"`
	Tier            string     `json:"tier"`
	Status          string     `json:"status"`
	NextBillingDate *time.Time `json:"next_billing_date,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
