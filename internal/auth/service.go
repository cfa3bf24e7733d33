package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/goclaw/backend/internal/apierr"
	"github.com/goclaw/backend/internal/models"
	"github.com/goclaw/backend/internal/repository"
	"github.com/goclaw/backend/internal/validation"
)

// UserStore is the subset of the user repository the issuer needs.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
}

type IssueRequest struct {
	Email           string  `json:"email" validate:"required,max=255,email"`
	PolarCustomerID *string `json:"polarCustomerId" validate:"omitempty,max=255"`
	Tier            string  `json:"tier" validate:"omitempty,oneof=free pro enterprise"`
}

type IssueResult struct {
	Token   string
	UserID  string
	Created bool
}

type Service interface {
	// Issue resolves or creates the user for req.Email and mints a token.
	Issue(ctx context.Context, req IssueRequest) (*IssueResult, error)
	// Verify takes an Authorization header value and returns its session,
	// or nil if the header does not carry a valid bearer token.
	Verify(authorization string) *Session
	VerifyToken(token string) (*Session, error)
}

type service struct {
	users    UserStore
	tokens   *TokenManager
	validate *validator.Validate
	log      *slog.Logger
}

func NewService(users UserStore, tokens *TokenManager, log *slog.Logger) *service {
	if log == nil {
		log = slog.Default()
	}
	return &service{users: users, tokens: tokens, validate: validation.New(), log: log}
}

var _ Service = (*service)(nil)

func (s *service) Issue(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Tier = strings.TrimSpace(req.Tier)
	if req.PolarCustomerID != nil && strings.TrimSpace(*req.PolarCustomerID) == "" {
		req.PolarCustomerID = nil
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, apierr.Validation(validation.Message(err))
	}
	if req.Tier == "" {
		req.Tier = models.TierFree
	}

	user, err := s.users.GetByEmail(ctx, req.Email)
	created := false
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		user, created, err = s.create(ctx, req)
		if err != nil {
			return nil, err
		}
	default:
		return nil, apierr.Internal("signup failed", fmt.Errorf("lookup user: %w", err))
	}

	token, err := s.tokens.Sign(Session{UserID: user.ID.String(), Email: user.Email, Tier: user.Tier})
	if err != nil {
		return nil, apierr.Internal("signup failed", fmt.Errorf("sign token: %w", err))
	}
	return &IssueResult{Token: token, UserID: user.ID.String(), Created: created}, nil
}

// create inserts the user. Losing a concurrent race for the same email
// yields the winner's row.
func (s *service) create(ctx context.Context, req IssueRequest) (*models.User, bool, error) {
	user := &models.User{
		Email:           req.Email,
		PolarCustomerID: req.PolarCustomerID,
		Tier:            req.Tier,
		Active:          true,
	}
	err := s.users.Create(ctx, user)
	if err == nil {
		s.log.Info("user created", "user_id", user.ID, "tier", user.Tier)
		return user, true, nil
	}
	if !errors.Is(err, repository.ErrDuplicate) {
		return nil, false, apierr.Internal("signup failed", fmt.Errorf("create user: %w", err))
	}
	existing, lookupErr := s.users.GetByEmail(ctx, req.Email)
	if lookupErr != nil {
		if errors.Is(lookupErr, repository.ErrNotFound) {
			// The conflict was on polar_customer_id, not email.
			return nil, false, apierr.Validation("polarCustomerId is already linked to another user")
		}
		return nil, false, apierr.Internal("signup failed", fmt.Errorf("reload user: %w", lookupErr))
	}
	return existing, false, nil
}

func (s *service) Verify(authorization string) *Session {
	token := extractBearer(authorization)
	if token == "" {
		return nil
	}
	sess, err := s.VerifyToken(token)
	if err != nil {
		s.log.Debug("token rejected", "error", err)
		return nil
	}
	return sess
}

func (s *service) VerifyToken(token string) (*Session, error) {
	return s.tokens.Parse(token)
}

// CheckTenant rejects a request whose path user differs from the
// authenticated user.
func CheckTenant(authUserID, pathUserID string) error {
	if authUserID == "" || authUserID != pathUserID {
		return apierr.Unauthorized("unauthorized")
	}
	return nil
}

func extractBearer(h string) string {
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
