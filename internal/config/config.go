// Package config loads the server configuration from an optional YAML file
// and the environment. Environment variables win over the file; nested keys
// map to upper-case names with "." replaced by "_" (supabase.url → SUPABASE_URL).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers.
const (
	StoreREST   = "rest"
	StoreSQLite = "sqlite"
)

type Config struct {
	Port          int            `mapstructure:"port"`
	PublicAddress string         `mapstructure:"public_address"`
	Log           LogConfig      `mapstructure:"log"`
	Supabase      SupabaseConfig `mapstructure:"supabase"`
	Provider      ProviderConfig `mapstructure:"provider"`
	Store         StoreConfig    `mapstructure:"store"`
	Upload        UploadConfig   `mapstructure:"upload"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type SupabaseConfig struct {
	URL                string `mapstructure:"url"`
	ServiceRoleKey     string `mapstructure:"service_role_key"`
	ProfileImageBucket string `mapstructure:"profile_image_bucket"`
	// OAuthRedirect is the callback path below PublicAddress, without the
	// provider segment.
	OAuthRedirect string `mapstructure:"oauth_redirect"`
}

type ProviderConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type StoreConfig struct {
	Driver     string `mapstructure:"driver"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

type UploadConfig struct {
	MaxBytes int64 `mapstructure:"max_bytes"`
}

// Load reads the configuration. If path is empty, config.yaml is looked up
// in the working directory and /etc/account-portal; a missing file is fine.
func Load(path string) (*Config, error) {
	v := viper.New()

	// keys without a default are invisible to AutomaticEnv unless bound
	v.MustBindEnv("supabase.url", "SUPABASE_URL")
	v.MustBindEnv("supabase.service_role_key", "SUPABASE_SERVICE_ROLE_KEY")

	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/account-portal")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: unmarshalling: %w", err)
	}

	c.PublicAddress = strings.TrimRight(c.PublicAddress, "/")
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))

	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("public_address", "http://localhost:8080")
	v.SetDefault("log.level", "info")

	v.SetDefault("supabase.profile_image_bucket", "profile-images")
	v.SetDefault("supabase.oauth_redirect", "account/auth/callback")

	v.SetDefault("provider.timeout", "10s")

	v.SetDefault("store.driver", StoreREST)
	v.SetDefault("store.sqlite_path", "data/users.db")

	v.SetDefault("upload.max_bytes", 10<<20) // 10 MiB
}

func (c *Config) validate() error {
	var errs []error

	if c.Supabase.URL == "" {
		errs = append(errs, errors.New("supabase.url (SUPABASE_URL) is required"))
	} else if u, err := url.Parse(c.Supabase.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("supabase.url %q must be an absolute URL", c.Supabase.URL))
	}
	if c.Supabase.ServiceRoleKey == "" {
		errs = append(errs, errors.New("supabase.service_role_key (SUPABASE_SERVICE_ROLE_KEY) is required"))
	}
	if c.Supabase.ProfileImageBucket == "" {
		errs = append(errs, errors.New("supabase.profile_image_bucket must not be empty"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d is out of range", c.Port))
	}
	if c.Provider.Timeout <= 0 {
		errs = append(errs, errors.New("provider.timeout must be positive"))
	}
	if c.Upload.MaxBytes <= 0 {
		errs = append(errs, errors.New("upload.max_bytes must be positive"))
	}
	switch c.Store.Driver {
	case StoreREST:
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("store.sqlite_path is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q must be %q or %q", c.Store.Driver, StoreREST, StoreSQLite))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// LogLevel parses log.level ("debug", "info", "warn", "error").
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level %q: %w", c.Log.Level, err)
	}
	return level, nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
