package agents

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goclaw/backend/internal/auth"
	"github.com/goclaw/backend/internal/middleware"
	"github.com/goclaw/backend/internal/models"
)

// serve routes req through a mux so path values are populated, with the
// session for sessionUser already in the context.
func serve(h *Handler, sessionUser string, method, target, body string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/goclaw/{userId}/agents", h.ListAgents)
	mux.HandleFunc("POST /api/goclaw/{userId}/agents", h.CreateAgent)
	mux.HandleFunc("GET /api/goclaw/{userId}/agents/{agentId}", h.GetAgent)
	mux.HandleFunc("PATCH /api/goclaw/{userId}/agents/{agentId}", h.UpdateAgentStatus)
	mux.HandleFunc("DELETE /api/goclaw/{userId}/agents/{agentId}", h.DeleteAgent)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if sessionUser != "" {
		req = req.WithContext(middleware.WithSession(req.Context(), &auth.Session{UserID: sessionUser}))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error
}

func TestHandler_CreateAndList(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc, nil)
	base := "/api/goclaw/" + f.a + "/agents"

	rec := serve(h, f.a, http.MethodPost, base, `{"name":"bot1"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Agent models.Agent `json:"agent"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "bot1", created.Agent.Name)
	assert.Equal(t, "claude-haiku-4-5", created.Agent.Model)
	assert.Equal(t, "anthropic", created.Agent.Provider)
	assert.Equal(t, "active", created.Agent.Status)

	rec = serve(h, f.a, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Agents []models.Agent `json:"agents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Agents, 1)
	assert.Equal(t, created.Agent.ID, listed.Agents[0].ID)
}

func TestHandler_EmptyListIsArray(t *testing.T) {
	f := newFixture(t)
	rec := serve(NewHandler(f.svc, nil), f.a, http.MethodGet, "/api/goclaw/"+f.a+"/agents", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"agents":[]}`, rec.Body.String())
}

func TestHandler_CreateErrors(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc, nil)
	own := "/api/goclaw/" + f.a + "/agents"
	foreign := "/api/goclaw/" + f.b + "/agents"

	cases := []struct {
		name    string
		session string
		target  string
		body    string
		status  int
		msg     string
	}{
		{"no session", "", own, `{"name":"x"}`, http.StatusUnauthorized, "unauthorized"},
		{"foreign path", f.a, foreign, `{"name":"x"}`, http.StatusUnauthorized, "unauthorized"},
		{"foreign path with bad body", f.a, foreign, `{`, http.StatusUnauthorized, "unauthorized"},
		{"invalid JSON", f.a, own, `{`, http.StatusBadRequest, "invalid JSON"},
		{"missing name", f.a, own, `{}`, http.StatusBadRequest, "name is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(h, tc.session, http.MethodPost, tc.target, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, tc.msg, errorBody(t, rec))
		})
	}

	rec := serve(h, f.a, http.MethodGet, own, "")
	assert.JSONEq(t, `{"agents":[]}`, rec.Body.String())
}

func TestHandler_SingleAgent(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc, nil)
	ag := f.create(t, f.a, "bot")
	target := "/api/goclaw/" + f.a + "/agents/" + ag.ID.String()

	rec := serve(h, f.a, http.MethodGet, target, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(h, f.a, http.MethodPatch, target, `{"status":"error"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var patched struct {
		Agent models.Agent `json:"agent"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &patched))
	assert.Equal(t, "error", patched.Agent.Status)

	rec = serve(h, f.a, http.MethodPatch, target, `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, f.b, http.MethodDelete, target, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(h, f.a, http.MethodDelete, target, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = serve(h, f.a, http.MethodGet, target, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "agent not found", errorBody(t, rec))
}
