package session_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/memorialkit/pkg/account"
	"github.com/dmitrymomot/memorialkit/pkg/plan"
	"github.com/dmitrymomot/memorialkit/pkg/session"
)

func identityEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(session.AccountID(r)))
	})
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	m := newManager(t, fixedNow)
	token, err := m.Issue(&account.Account{ID: "acc_1", PlanID: plan.Base, Status: account.StatusActive})
	require.NoError(t, err)

	h := session.Middleware(m)(identityEcho())

	tests := []struct {
		name    string
		prepare func(r *http.Request)
		want    string
	}{
		{
			name:    "bearer",
			prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) },
			want:    "acc_1",
		},
		{
			name:    "lowercase scheme",
			prepare: func(r *http.Request) { r.Header.Set("Authorization", "bearer "+token) },
			want:    "acc_1",
		},
		{
			name:    "cookie",
			prepare: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "session", Value: token}) },
			want:    "acc_1",
		},
		{
			name:    "anonymous",
			prepare: func(*http.Request) {},
			want:    "",
		},
		{
			name:    "invalid token passes through anonymously",
			prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer broken") },
			want:    "",
		},
		{
			name:    "basic auth ignored",
			prepare: func(r *http.Request) { r.Header.Set("Authorization", "Basic "+token) },
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.prepare(req)
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, rec.Body.String())
		})
	}
}

func TestMiddleware_CustomExtractor(t *testing.T) {
	t.Parallel()

	m := newManager(t, fixedNow)
	token, err := m.Issue(&account.Account{ID: "acc_1", PlanID: plan.Base, Status: account.StatusActive})
	require.NoError(t, err)

	h := session.Middleware(m, session.WithExtractor(func(r *http.Request) string {
		return r.Header.Get("X-Session")
	}))(identityEcho())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Session", token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "acc_1", rec.Body.String())
}

func TestMiddleware_NilManagerPanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { session.Middleware(nil) })
}

func TestRequire(t *testing.T) {
	t.Parallel()

	called := false
	h := session.Require()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("rejects anonymous", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, called)

		var body struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "unauthorized", body.Error.Code)
	})

	t.Run("passes identity", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(session.WithIdentity(req.Context(), &session.Identity{AccountID: "acc_1"}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.True(t, called)
	})
}

func TestFromContext_Nil(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := session.WithIdentity(req.Context(), nil)
	_, ok := session.FromContext(ctx)
	assert.False(t, ok)
}
