package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goclaw/backend/internal/auth"
	"github.com/goclaw/backend/internal/billing"
	"github.com/goclaw/backend/internal/memstore"
	"github.com/goclaw/backend/internal/middleware"
	"github.com/goclaw/backend/internal/models"
)

func get(h *Handler, sessionUser, pathUser string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/goclaw/{userId}/summary", h.GetSummary)
	req := httptest.NewRequest(http.MethodGet, "/api/goclaw/"+pathUser+"/summary", nil)
	if sessionUser != "" {
		req = req.WithContext(middleware.WithSession(req.Context(), &auth.Session{UserID: sessionUser}))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func seed(t *testing.T) (*memstore.Store, *models.User) {
	t.Helper()
	s := memstore.New()
	u := &models.User{Email: "a@x.com", Tier: models.TierFree, Active: true}
	require.NoError(t, s.Users().Create(context.Background(), u))
	return s, u
}

func newHandler(s *memstore.Store) *Handler {
	return NewHandler(s.Users(), s.Billing(), s.Agents(), nil)
}

func TestSummary_FreshUser(t *testing.T) {
	s, u := seed(t)
	rec := get(newHandler(s), u.ID.String(), u.ID.String())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Equal(t, "null", string(raw["billing"]))
	assert.JSONEq(t, `{"total":0,"by_status":{}}`, string(raw["agents"]))
}

func TestSummary_WithAgentsAndBilling(t *testing.T) {
	s, u := seed(t)
	ctx := context.Background()
	for _, status := range []string{"active", "active", "error"} {
		require.NoError(t, s.Agents().Create(ctx, &models.Agent{UserID: u.ID, Name: "bot", Status: status}))
	}
	require.NoError(t, s.Webhooks().InTx(ctx, func(tx billing.Tx) error {
		return tx.UpsertBilling(ctx, u.ID, nil, models.TierPro)
	}))

	rec := get(newHandler(s), u.ID.String(), u.ID.String())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sum Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(t, "a@x.com", sum.User.Email)
	require.NotNil(t, sum.Billing)
	assert.Equal(t, models.TierPro, sum.Billing.Tier)
	assert.Equal(t, 3, sum.Agents.Total)
	assert.Equal(t, map[string]int{"active": 2, "error": 1}, sum.Agents.ByStatus)
}

func TestSummary_Unauthorized(t *testing.T) {
	s, u := seed(t)
	h := newHandler(s)
	other := uuid.NewString()

	assert.Equal(t, http.StatusUnauthorized, get(h, "", u.ID.String()).Code)
	assert.Equal(t, http.StatusUnauthorized, get(h, other, u.ID.String()).Code)
	// a valid token for a user that no longer exists
	assert.Equal(t, http.StatusUnauthorized, get(h, other, other).Code)
}

type brokenBilling struct{}

func (brokenBilling) GetByUserID(context.Context, uuid.UUID) (*models.Billing, error) {
	return nil, errors.New("connection reset")
}

func TestSummary_StoreFailure(t *testing.T) {
	s, u := seed(t)
	h := NewHandler(s.Users(), brokenBilling{}, s.Agents(), nil)
	rec := get(h, u.ID.String(), u.ID.String())
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"failed to load summary"}`, rec.Body.String())
}
