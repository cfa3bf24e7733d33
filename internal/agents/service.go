// Package agents implements per-tenant agent management. Every operation
// takes the authenticated user id and the user id named in the request path
// and refuses to act unless they are the same user.
package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/goclaw/backend/internal/apierr"
	"github.com/goclaw/backend/internal/auth"
	"github.com/goclaw/backend/internal/models"
	"github.com/goclaw/backend/internal/repository"
	"github.com/goclaw/backend/internal/validation"
)

// Store is satisfied by repository.AgentRepo.
type Store interface {
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Agent, error)
	Create(ctx context.Context, ag *models.Agent) error
	GetForUser(ctx context.Context, userID, id uuid.UUID) (*models.Agent, error)
	UpdateStatusForUser(ctx context.Context, userID, id uuid.UUID, status string) (*models.Agent, error)
	DeleteForUser(ctx context.Context, userID, id uuid.UUID) error
}

type CreateInput struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Description *string         `json:"description"`
	Model       string          `json:"model" validate:"max=100"`
	Provider    string          `json:"provider" validate:"max=100"`
	Config      json.RawMessage `json:"config"`
}

type StatusInput struct {
	Status string `json:"status" validate:"required,oneof=active inactive error"`
}

type Service interface {
	List(ctx context.Context, authUserID, pathUserID string) ([]*models.Agent, error)
	Create(ctx context.Context, authUserID, pathUserID string, in CreateInput) (*models.Agent, error)
	Get(ctx context.Context, authUserID, pathUserID, agentID string) (*models.Agent, error)
	UpdateStatus(ctx context.Context, authUserID, pathUserID, agentID string, in StatusInput) (*models.Agent, error)
	Delete(ctx context.Context, authUserID, pathUserID, agentID string) error
}

type service struct {
	store    Store
	validate *validator.Validate
}

func NewService(store Store) *service {
	return &service{store: store, validate: validation.New()}
}

var _ Service = (*service)(nil)

func (s *service) List(ctx context.Context, authUserID, pathUserID string) ([]*models.Agent, error) {
	userID, err := tenant(authUserID, pathUserID)
	if err != nil {
		return nil, err
	}
	list, err := s.store.ListByUserID(ctx, userID)
	if err != nil {
		return nil, apierr.Internal("failed to fetch agents", fmt.Errorf("list agents: %w", err))
	}
	return list, nil
}

func (s *service) Create(ctx context.Context, authUserID, pathUserID string, in CreateInput) (*models.Agent, error) {
	userID, err := tenant(authUserID, pathUserID)
	if err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Model = strings.TrimSpace(in.Model)
	in.Provider = strings.TrimSpace(in.Provider)
	if err := s.validate.Struct(in); err != nil {
		return nil, apierr.Validation(validation.Message(err))
	}
	cfg, err := normalizeConfig(in.Config)
	if err != nil {
		return nil, err
	}

	ag := &models.Agent{
		UserID:      userID,
		Name:        in.Name,
		Description: in.Description,
		Model:       in.Model,
		Provider:    in.Provider,
		Status:      models.AgentStatusActive,
		Config:      cfg,
	}
	if ag.Model == "" {
		ag.Model = models.DefaultAgentModel
	}
	if ag.Provider == "" {
		ag.Provider = models.DefaultAgentProvider
	}
	if err := s.store.Create(ctx, ag); err != nil {
		return nil, apierr.Internal("failed to create agent", fmt.Errorf("create agent: %w", err))
	}
	return ag, nil
}

func (s *service) Get(ctx context.Context, authUserID, pathUserID, agentID string) (*models.Agent, error) {
	userID, id, err := tenantAgent(authUserID, pathUserID, agentID)
	if err != nil {
		return nil, err
	}
	ag, err := s.store.GetForUser(ctx, userID, id)
	if err != nil {
		return nil, storeErr("failed to fetch agent", err)
	}
	return ag, nil
}

func (s *service) UpdateStatus(ctx context.Context, authUserID, pathUserID, agentID string, in StatusInput) (*models.Agent, error) {
	userID, id, err := tenantAgent(authUserID, pathUserID, agentID)
	if err != nil {
		return nil, err
	}
	in.Status = strings.TrimSpace(in.Status)
	if err := s.validate.Struct(in); err != nil {
		return nil, apierr.Validation(validation.Message(err))
	}
	ag, err := s.store.UpdateStatusForUser(ctx, userID, id, in.Status)
	if err != nil {
		return nil, storeErr("failed to update agent", err)
	}
	return ag, nil
}

func (s *service) Delete(ctx context.Context, authUserID, pathUserID, agentID string) error {
	userID, id, err := tenantAgent(authUserID, pathUserID, agentID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteForUser(ctx, userID, id); err != nil {
		return storeErr("failed to delete agent", err)
	}
	return nil
}

func tenant(authUserID, pathUserID string) (uuid.UUID, error) {
	if err := auth.CheckTenant(authUserID, pathUserID); err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(pathUserID)
	if err != nil {
		return uuid.Nil, apierr.Unauthorized("unauthorized")
	}
	return id, nil
}

// tenantAgent checks the tenant first so a foreign path never reveals
// whether an agent id exists.
func tenantAgent(authUserID, pathUserID, agentID string) (uuid.UUID, uuid.UUID, error) {
	userID, err := tenant(authUserID, pathUserID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	id, err := uuid.Parse(agentID)
	if err != nil {
		return uuid.Nil, uuid.Nil, apierr.NotFound("agent not found")
	}
	return userID, id, nil
}

func storeErr(msg string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apierr.NotFound("agent not found")
	}
	return apierr.Internal(msg, err)
}

func normalizeConfig(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	if !json.Valid([]byte(trimmed)) {
		return nil, apierr.Validation("config must be valid JSON")
	}
	return json.RawMessage(trimmed), nil
}
