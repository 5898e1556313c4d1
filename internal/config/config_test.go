package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("SUPABASE_URL", "https://abcd.supabase.co")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "service-key")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, c.Port)
	assert.Equal(t, ":8080", c.Addr())
	assert.Equal(t, "http://localhost:8080", c.PublicAddress)
	assert.Equal(t, "https://abcd.supabase.co", c.Supabase.URL)
	assert.Equal(t, "service-key", c.Supabase.ServiceRoleKey)
	assert.Equal(t, "profile-images", c.Supabase.ProfileImageBucket)
	assert.Equal(t, "account/auth/callback", c.Supabase.OAuthRedirect)
	assert.Equal(t, 10*time.Second, c.Provider.Timeout)
	assert.Equal(t, StoreREST, c.Store.Driver)
	assert.Equal(t, int64(10<<20), c.Upload.MaxBytes)

	level, err := c.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "9090")
	t.Setenv("PUBLIC_ADDRESS", "https://portal.example.com/")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SUPABASE_PROFILE_IMAGE_BUCKET", "avatars")
	t.Setenv("PROVIDER_TIMEOUT", "3s")
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("STORE_SQLITE_PATH", "/tmp/users.db")
	t.Setenv("UPLOAD_MAX_BYTES", "1024")

	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, c.Port)
	assert.Equal(t, "https://portal.example.com", c.PublicAddress)
	assert.Equal(t, "avatars", c.Supabase.ProfileImageBucket)
	assert.Equal(t, 3*time.Second, c.Provider.Timeout)
	assert.Equal(t, StoreSQLite, c.Store.Driver)
	assert.Equal(t, "/tmp/users.db", c.Store.SQLitePath)
	assert.Equal(t, int64(1024), c.Upload.MaxBytes)

	level, err := c.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 7000
supabase:
  url: https://fromfile.supabase.co
  service_role_key: file-key
  profile_image_bucket: file-bucket
`), 0o600))

	// the environment still wins over the file
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "env-key")

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7000, c.Port)
	assert.Equal(t, "https://fromfile.supabase.co", c.Supabase.URL)
	assert.Equal(t, "env-key", c.Supabase.ServiceRoleKey)
	assert.Equal(t, "file-bucket", c.Supabase.ProfileImageBucket)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing url", map[string]string{"SUPABASE_SERVICE_ROLE_KEY": "k"}},
		{"missing key", map[string]string{"SUPABASE_URL": "https://abcd.supabase.co"}},
		{"relative url", map[string]string{"SUPABASE_URL": "abcd.supabase.co", "SUPABASE_SERVICE_ROLE_KEY": "k"}},
		{"unknown driver", map[string]string{"SUPABASE_URL": "https://a.b", "SUPABASE_SERVICE_ROLE_KEY": "k", "STORE_DRIVER": "mongo"}},
		{"bad log level", map[string]string{"SUPABASE_URL": "https://a.b", "SUPABASE_SERVICE_ROLE_KEY": "k", "LOG_LEVEL": "loud"}},
		{"bad timeout", map[string]string{"SUPABASE_URL": "https://a.b", "SUPABASE_SERVICE_ROLE_KEY": "k", "PROVIDER_TIMEOUT": "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SUPABASE_URL", "")
			t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	setRequired(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err, "an explicitly named file must exist")
}
