package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mentorhive/relay/internal/config"
	"github.com/mentorhive/relay/internal/store"
	"github.com/mentorhive/relay/internal/testutil"
)

var testSigningKey = []byte("test-signing-key")

func newTestApp(t *testing.T) (*RelayApp, *store.MockMessageStore) {
	t.Helper()

	st := &store.MockMessageStore{}
	dir := &store.MockProfileDirectory{}
	cfg := &config.Config{
		ServerAddr:      ":0",
		SigningKey:      testSigningKey,
		AllowedOrigins:  []string{"http://localhost:3000"},
		CallRingTimeout: time.Minute,
	}

	app := NewRelayApp(http.NewServeMux(), testutil.TestLogger(t), nil, st, dir, cfg)
	return app, st
}

func mintToken(t *testing.T, userId string) *http.Cookie {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user-id": userId})
	signed, err := token.SignedString(testSigningKey)
	require.NoError(t, err)
	return &http.Cookie{Name: "token", Value: signed}
}

func TestAuthMiddleware(t *testing.T) {
	app, _ := newTestApp(t)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userId, ok := UserId(r.Context())
		assert.True(t, ok)
		assert.Equal(t, "u1", userId)
		w.WriteHeader(http.StatusNoContent)
	})
	handler := app.authMiddleware(next)

	t.Run("missing cookie", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/messages", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
		req.AddCookie(&http.Cookie{Name: "token", Value: "not-a-jwt"})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("token signed with wrong key", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user-id": "u1"})
		signed, err := token.SignedString([]byte("some-other-key"))
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
		req.AddCookie(&http.Cookie{Name: "token", Value: signed})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
		req.AddCookie(mintToken(t, "u1"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestGetMessages(t *testing.T) {
	app, st := newTestApp(t)

	stored := []store.Message{
		{Id: "m1", Kind: store.KindProject, ProjectId: "p1", SenderId: "u2", Content: "hello"},
	}
	st.On("ProjectMessages", mock.Anything, "p1", int64(50)).Return(stored, nil)
	st.On("Conversation", mock.Anything, "u1", "u2", int64(10)).Return([]store.Message{}, nil)
	st.On("ProjectMessages", mock.Anything, "p-broken", int64(50)).
		Return([]store.Message{}, errors.New("connection reset"))

	do := func(target string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.AddCookie(mintToken(t, "u1"))
		rec := httptest.NewRecorder()
		req = req.WithContext(WithUserId(req.Context(), "u1"))
		app.getMessages(rec, req)
		return rec
	}

	t.Run("project history", func(t *testing.T) {
		rec := do("/api/messages?project_id=p1")
		require.Equal(t, http.StatusOK, rec.Code)
		var got []store.Message
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		assert.Equal(t, stored, got)
	})

	t.Run("conversation with limit", func(t *testing.T) {
		rec := do("/api/messages?peer_id=u2&limit=10")
		assert.Equal(t, http.StatusOK, rec.Code)
		st.AssertCalled(t, "Conversation", mock.Anything, "u1", "u2", int64(10))
	})

	t.Run("no scope", func(t *testing.T) {
		rec := do("/api/messages")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("both scopes", func(t *testing.T) {
		rec := do("/api/messages?project_id=p1&peer_id=u2")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad limit", func(t *testing.T) {
		rec := do("/api/messages?project_id=p1&limit=zero")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		rec := do("/api/messages?project_id=p-broken")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHealthz(t *testing.T) {
	app, st := newTestApp(t)
	st.On("Ping", mock.Anything).Return(nil).Once()

	rec := httptest.NewRecorder()
	app.healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	st.On("Ping", mock.Anything).Return(errors.New("server selection timeout")).Once()
	rec = httptest.NewRecorder()
	app.healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestErrorHandlerRecoversPanic(t *testing.T) {
	app, _ := newTestApp(t)
	handler := app.errorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
