package server

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/account-portal/internal/config"
	"github.com/sakif/account-portal/internal/supabase"
)

const testUserID = "7f9c2b4e-3a1d-4c5e-9b8a-1f2e3d4c5b6a"

// newTestServer wires a Server against a provider stub that knows one
// access token, "good-token", with an in-memory SQLite user store.
func newTestServer(t *testing.T) (*Server, *supabase.Client) {
	t.Helper()

	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/v1/user" && r.Header.Get("Authorization") == "Bearer good-token" {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{"id": testUserID, "email": "ada@example.com"})
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"msg":"invalid JWT"}`)
	}))
	t.Cleanup(provider.Close)

	base, err := supabase.New(supabase.Options{URL: provider.URL, Key: "service-key"})
	require.NoError(t, err)

	cfg := &config.Config{
		Port:          8080,
		PublicAddress: "http://localhost:8080",
		Supabase: config.SupabaseConfig{
			URL:                provider.URL,
			ServiceRoleKey:     "service-key",
			ProfileImageBucket: "profile-images",
			OAuthRedirect:      "account/auth/callback",
		},
		Store:  config.StoreConfig{Driver: config.StoreSQLite, SQLitePath: ":memory:"},
		Upload: config.UploadConfig{MaxBytes: 1 << 20},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := New(cfg, base, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s, base
}

// sessionCookie builds the cookie the provider client persists a session in.
func sessionCookie(t *testing.T, base *supabase.Client, token string) *http.Cookie {
	t.Helper()
	raw, err := json.Marshal(supabase.Session{
		AccessToken: token,
		ExpiresAt:   time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, err)
	return &http.Cookie{
		Name:  base.StorageKey(),
		Value: "base64-" + base64.RawURLEncoding.EncodeToString(raw),
	}
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}

func TestErrorsPage(t *testing.T) {
	s, _ := newTestServer(t)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/errors?error=Failed+to+create+user", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to create user"}`, rec.Body.String())

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/errors", nil))
	assert.JSONEq(t, `{"error":null}`, rec.Body.String())
}

func TestGuards_Anonymous(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		method, path string
		wantStatus   int
		wantLocation string
	}{
		{http.MethodGet, "/account", http.StatusSeeOther, "/"},
		{http.MethodPost, "/account/upload", http.StatusSeeOther, "/"},
		{http.MethodGet, "/account/logout", http.StatusSeeOther, "/"},
		{http.MethodGet, "/account/login", http.StatusOK, ""},
		{http.MethodGet, "/account/register", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := serve(s, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))
		})
	}
}

func TestGuards_SignedIn(t *testing.T) {
	s, base := newTestServer(t)

	tests := []struct {
		method, path string
		wantStatus   int
		wantLocation string
	}{
		{http.MethodGet, "/account/login", http.StatusSeeOther, "/"},
		{http.MethodGet, "/account/register", http.StatusSeeOther, "/"},
		{http.MethodGet, "/account/logout", http.StatusOK, ""},
		{http.MethodGet, "/account", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.AddCookie(sessionCookie(t, base, "good-token"))

			rec := serve(s, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))
		})
	}
}

func TestAccount_MissingRowIsNull(t *testing.T) {
	s, base := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/account", nil)
	req.AddCookie(sessionCookie(t, base, "good-token"))

	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":null}`, rec.Body.String())
}

func TestLayout(t *testing.T) {
	s, base := newTestServer(t)

	t.Run("anonymous", func(t *testing.T) {
		rec := serve(s, httptest.NewRequest(http.MethodGet, "/layout", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"session":null}`, rec.Body.String())
	})

	t.Run("rejected token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/layout", nil)
		req.AddCookie(sessionCookie(t, base, "forged-token"))

		rec := serve(s, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"session":null}`, rec.Body.String())
	})

	t.Run("signed in without a row", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/layout", nil)
		req.AddCookie(sessionCookie(t, base, "good-token"))

		rec := serve(s, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Contains(t, body, "session")
		assert.NotContains(t, body, "user")
	})
}

func TestNew_BadSQLitePath(t *testing.T) {
	base, err := supabase.New(supabase.Options{URL: "https://abcd.supabase.co", Key: "k"})
	require.NoError(t, err)

	cfg := &config.Config{
		Store: config.StoreConfig{Driver: config.StoreSQLite, SQLitePath: "/nonexistent-dir/sub/users.db"},
	}
	_, err = New(cfg, base, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
