package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Session is the identity carried by a verified token.
type Session struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Tier   string `json:"tier"`
}

type claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Tier   string `json:"tier"`
}

// TokenManager signs and parses HS256 session tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret []byte, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: secret, ttl: ttl, now: time.Now}
}

// Sign mints a token for s that expires after the manager's TTL.
func (m *TokenManager) Sign(s Session) (string, error) {
	if len(m.secret) == 0 {
		return "", errors.New("token signing key is not configured")
	}
	now := m.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   s.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		UserID: s.UserID,
		Email:  s.Email,
		Tier:   s.Tier,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
}

// Parse verifies signature, algorithm and expiry and returns the claims.
func (m *TokenManager) Parse(token string) (*Session, error) {
	if len(m.secret) == 0 {
		return nil, ErrInvalidToken
	}
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if c.UserID == "" {
		return nil, fmt.Errorf("%w: missing userId", ErrInvalidToken)
	}
	return &Session{UserID: c.UserID, Email: c.Email, Tier: c.Tier}, nil
}
