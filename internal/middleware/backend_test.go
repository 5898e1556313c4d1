package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/account-portal/internal/auth"
	"github.com/sakif/account-portal/internal/supabase"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newProvider starts a provider stub that answers every token request with
// a session and sets a mix of allowed and unknown headers.
func newProvider(t *testing.T) *supabase.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Range", "0-0/1")
		w.Header().Set("X-Supabase-Api-Version", "2024-01-01")
		w.Header().Set("X-Internal-Trace", "secret")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
	}))
	t.Cleanup(srv.Close)

	c, err := supabase.New(supabase.Options{URL: srv.URL, Key: "service-key"})
	require.NoError(t, err)
	return c
}

func TestRequestCookies(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "incoming", Value: "from-browser"})
	rr := httptest.NewRecorder()
	c := newRequestCookies(rr, req)

	v, ok := c.Get("incoming")
	assert.True(t, ok)
	assert.Equal(t, "from-browser", v)

	_, ok = c.Get("missing")
	assert.False(t, ok)

	c.Set("verifier", "abc", supabase.CookieOptions{Path: "/account/login", MaxAge: 60})
	v, ok = c.Get("verifier")
	assert.True(t, ok, "a cookie set in this request should be readable")
	assert.Equal(t, "abc", v)

	c.Remove("incoming", supabase.CookieOptions{Path: "/somewhere"})
	_, ok = c.Get("incoming")
	assert.False(t, ok, "a removed cookie should be gone for the rest of the request")

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 2)
	for _, ck := range cookies {
		assert.Equal(t, "/", ck.Path, "cookie %s should be pinned to /", ck.Name)
	}
	assert.Equal(t, "verifier", cookies[0].Name)
	assert.Equal(t, 60, cookies[0].MaxAge)
	assert.Equal(t, "incoming", cookies[1].Name)
	assert.Equal(t, -1, cookies[1].MaxAge)
}

func TestBackend_InstallsScope(t *testing.T) {
	base := newProvider(t)

	var scope *auth.Scope
	h := Backend(base, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ok bool
		scope, ok = auth.FromContext(r.Context())
		require.True(t, ok)

		_, err := scope.Client.SignInWithPassword(r.Context(), "a@b.c", "pw")
		require.NoError(t, err)

		// the session written above is visible within the same request
		s, err := scope.Client.GetSession(r.Context())
		require.NoError(t, err)
		assert.Equal(t, "tok", s.AccessToken)

		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/account/login/email", nil))

	require.NotNil(t, scope)
	assert.NotNil(t, scope.Validator)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, base.StorageKey(), cookies[0].Name)
	assert.Equal(t, "/", cookies[0].Path)
}

func TestBackend_HeaderPassThrough(t *testing.T) {
	base := newProvider(t)

	h := Backend(base, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope, _ := auth.FromContext(r.Context())
		_, _ = scope.Client.SignInWithPassword(r.Context(), "a@b.c", "pw")
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "0-0/1", rr.Header().Get("Content-Range"))
	assert.Equal(t, "2024-01-01", rr.Header().Get("X-Supabase-Api-Version"))
	assert.Empty(t, rr.Header().Get("X-Internal-Trace"))
	assert.Empty(t, rr.Header().Get("Content-Type"))
}
