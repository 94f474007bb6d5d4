package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"golang.org/x/crypto/bcrypt"
)

// Store backends
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

type Config struct {
	Env       string `mapstructure:"SITE_ENV"`
	LogLevel  string `mapstructure:"SITE_LOG_LEVEL"`
	HTTPAddr  string `mapstructure:"SITE_HTTP_ADDR"`
	PublicURL string `mapstructure:"SITE_PUBLIC_ORIGIN"`

	Store    StoreConfig    `mapstructure:",squash"`
	Cache    CacheConfig    `mapstructure:",squash"`
	Posts    PostsConfig    `mapstructure:",squash"`
	Contact  ContactConfig  `mapstructure:",squash"`
	Security SecurityConfig `mapstructure:",squash"`
}

type StoreConfig struct {
	Backend     string `mapstructure:"SITE_STORE_BACKEND"` // "memory", "postgres", "sqlite"
	PostgresDSN string `mapstructure:"SITE_POSTGRES_DSN"`
	SQLitePath  string `mapstructure:"SITE_SQLITE_PATH"`
}

type CacheConfig struct {
	RedisAddr string `mapstructure:"SITE_REDIS_ADDR"`
}

type PostsConfig struct {
	Seed     bool          `mapstructure:"SITE_POSTS_SEED"`      // Load the default or file seed at startup
	SeedFile string        `mapstructure:"SITE_POSTS_SEED_FILE"` // JSON array of posts replacing the default seed
	CacheTTL time.Duration `mapstructure:"SITE_POSTS_CACHE_TTL"` // 0 disables the list cache
}

type ContactConfig struct {
	InboxLimit int           `mapstructure:"SITE_CONTACT_INBOX_LIMIT"`
	Retention  time.Duration `mapstructure:"SITE_CONTACT_RETENTION"` // inbox expires this long after the last message; 0 keeps it
}

type SecurityConfig struct {
	RateLimitRPM       int      `mapstructure:"SITE_RATE_LIMIT_RPM"`
	CORSAllowedOrigins []string `mapstructure:"SITE_CORS_ALLOWED_ORIGINS"`
	AdminPasswordHash  string   `mapstructure:"SITE_ADMIN_PASSWORD_HASH"` // bcrypt; empty leaves editing open
	TrustProxyHeaders  bool     `mapstructure:"SITE_TRUST_PROXY_HEADERS"` // honour X-Forwarded-For behind a reverse proxy
}

func loadDotEnvFiles() {
	candidates := []string{
		".env",
		filepath.Join("..", ".env"),
		filepath.Join("..", "..", ".env"),
	}

	seen := make(map[string]struct{})
	for _, path := range candidates {
		abs := path
		if resolved, err := filepath.Abs(path); err == nil {
			abs = resolved
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}

		if _, err := os.Stat(path); err == nil {
			_ = gotenv.Load(path) // env vars already set take precedence
		}
	}
}

func Load() (*Config, error) {
	loadDotEnvFiles()

	v := viper.New()
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("SITE_ENV", "dev")
	v.SetDefault("SITE_LOG_LEVEL", "")
	v.SetDefault("SITE_HTTP_ADDR", ":8080")
	v.SetDefault("SITE_PUBLIC_ORIGIN", "http://localhost:3000")
	v.SetDefault("SITE_STORE_BACKEND", BackendMemory)
	v.SetDefault("SITE_POSTGRES_DSN", "")
	v.SetDefault("SITE_SQLITE_PATH", "site.db")
	v.SetDefault("SITE_REDIS_ADDR", "127.0.0.1:6379")
	v.SetDefault("SITE_POSTS_SEED", true)
	v.SetDefault("SITE_POSTS_SEED_FILE", "")
	v.SetDefault("SITE_POSTS_CACHE_TTL", "30s")
	v.SetDefault("SITE_CONTACT_INBOX_LIMIT", 500)
	v.SetDefault("SITE_CONTACT_RETENTION", "720h")
	v.SetDefault("SITE_RATE_LIMIT_RPM", 120)
	v.SetDefault("SITE_CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("SITE_ADMIN_PASSWORD_HASH", "")
	v.SetDefault("SITE_TRUST_PROXY_HEADERS", false)

	// Comma-separated list
	if origins := v.GetString("SITE_CORS_ALLOWED_ORIGINS"); origins != "" {
		parts := strings.Split(origins, ",")
		cleaned := parts[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		v.Set("SITE_CORS_ALLOWED_ORIGINS", cleaned)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("SITE_POSTGRES_DSN is required for the postgres backend")
		}
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("SITE_SQLITE_PATH is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("invalid SITE_STORE_BACKEND %q (must be memory, postgres, or sqlite)", c.Store.Backend)
	}

	if c.Posts.CacheTTL < 0 {
		return fmt.Errorf("SITE_POSTS_CACHE_TTL must not be negative")
	}
	if c.Contact.InboxLimit <= 0 {
		return fmt.Errorf("SITE_CONTACT_INBOX_LIMIT must be positive")
	}
	if c.Contact.Retention < 0 {
		return fmt.Errorf("SITE_CONTACT_RETENTION must not be negative")
	}
	if c.Security.RateLimitRPM <= 0 {
		return fmt.Errorf("SITE_RATE_LIMIT_RPM must be positive")
	}
	if c.Security.AdminPasswordHash != "" {
		if _, err := bcrypt.Cost([]byte(c.Security.AdminPasswordHash)); err != nil {
			return fmt.Errorf("SITE_ADMIN_PASSWORD_HASH is not a bcrypt hash: %w", err)
		}
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

// AllowedOrigins is the CORS list plus the public origin, used for WebSocket upgrades
func (c *Config) AllowedOrigins() []string {
	origins := append([]string{}, c.Security.CORSAllowedOrigins...)
	if c.PublicURL != "" {
		for _, o := range origins {
			if o == c.PublicURL {
				return origins
			}
		}
		origins = append(origins, c.PublicURL)
	}
	return origins
}

// AdminGated reports whether post editing requires the admin password
func (c *Config) AdminGated() bool {
	return c.Security.AdminPasswordHash != ""
}
