package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	AgentStatusActive   = "active"
	AgentStatusInactive = "inactive"
	AgentStatusError    = "error"

	DefaultAgentModel    = "claude-haiku-4-5"
	DefaultAgentProvider = "anthropic"
)

type Agent struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Model       string          `json:"model"`
	Provider    string          `json:"provider"`
	Status      string          `json:"status"`
	Config      json.RawMessage `json:"config,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
