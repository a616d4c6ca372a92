package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/set-night/adbazaar/internal/config"
	"github.com/set-night/adbazaar/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokens map[string]uuid.UUID

func (f fakeTokens) ParseToken(token string) (uuid.UUID, error) {
	id, ok := f[token]
	if !ok {
		return uuid.Nil, domain.ErrUnauthorized
	}
	return id, nil
}

type fakeUsers map[uuid.UUID]*domain.User

func (f fakeUsers) Me(_ context.Context, id uuid.UUID) (*domain.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	return body.Error
}

func TestAuthenticate(t *testing.T) {
	user := &domain.User{ID: uuid.New(), Email: "ana@example.com"}
	deleted := uuid.New()
	tokens := fakeTokens{"good": user.ID, "orphan": deleted}
	users := fakeUsers{user.ID: user}

	var seen *domain.User
	h := Authenticate(tokens, users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUser(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer good", http.StatusNoContent},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"empty token", "Bearer   ", http.StatusUnauthorized},
		{"unknown token", "Bearer bad", http.StatusUnauthorized},
		{"user gone", "Bearer orphan", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusNoContent {
				assert.Equal(t, user, seen)
				return
			}
			assert.Nil(t, seen)
			assert.NotEmpty(t, errorBody(t, rec))
		})
	}
}

func TestGetUser_Empty(t *testing.T) {
	assert.Nil(t, GetUser(context.Background()))
}

func TestRecover(t *testing.T) {
	h := Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(errors.New("boom"))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", errorBody(t, rec))
}

func TestRecover_AbortHandlerPropagates(t *testing.T) {
	h := Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestRateLimitAuth(t *testing.T) {
	h := RateLimitAuth()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < config.RateLimitAuth; i++ {
		require.Equal(t, http.StatusOK, send("192.0.2.1:4000"), "request %d", i)
	}
	assert.Equal(t, http.StatusTooManyRequests, send("192.0.2.1:4000"))
	assert.Equal(t, http.StatusOK, send("192.0.2.2:4000"))
}

func TestRateLimitAI_KeysByUser(t *testing.T) {
	h := RateLimitAI()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	alice := &domain.User{ID: uuid.New()}
	bob := &domain.User{ID: uuid.New()}
	send := func(u *domain.User) int {
		req := httptest.NewRequest(http.MethodPost, "/api/ai/deals", nil)
		req = req.WithContext(WithUser(req.Context(), u))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < config.RateLimitAI; i++ {
		require.Equal(t, http.StatusOK, send(alice))
	}
	assert.Equal(t, http.StatusTooManyRequests, send(alice))
	assert.Equal(t, http.StatusOK, send(bob))
}

func TestLogging_PassesThrough(t *testing.T) {
	h := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "short and stout", rec.Body.String())
}
