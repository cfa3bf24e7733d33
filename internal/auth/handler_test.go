package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doSignup(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Signup(rec, req)
	return rec
}

func TestSignup_CreatedThenExisting(t *testing.T) {
	h := NewHandler(newTestService(newStubUserStore()), nil)

	rec := doSignup(t, h, `{"email":"a@x.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var first SignupResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.NotEmpty(t, first.Token)
	assert.NotEmpty(t, first.UserID)

	rec = doSignup(t, h, `{"email":"a@x.com"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var second SignupResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.Equal(t, first.UserID, second.UserID)
}

func TestSignup_AcceptsOptionalFields(t *testing.T) {
	store := newStubUserStore()
	h := NewHandler(newTestService(store), nil)

	rec := doSignup(t, h, `{"email":"c@x.com","polarCustomerId":"cus_9","tier":"pro"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	u := store.byEmail["c@x.com"]
	require.NotNil(t, u)
	assert.Equal(t, "pro", u.Tier)
	require.NotNil(t, u.PolarCustomerID)
	assert.Equal(t, "cus_9", *u.PolarCustomerID)
}

func TestSignup_BadRequests(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"invalid JSON", `{"email":`, "invalid JSON"},
		{"missing email", `{}`, "email is required"},
		{"bad email", `{"email":"nope"}`, "email must be a valid email address"},
		{"bad tier", `{"email":"a@x.com","tier":"platinum"}`, "tier must be one of: free, pro, enterprise"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newStubUserStore()
			h := NewHandler(newTestService(store), nil)

			rec := doSignup(t, h, tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.want, body["error"])
			assert.Zero(t, store.creates)
		})
	}
}
