package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir()) // keep stray .env files out

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.True(t, cfg.Posts.Seed)
	assert.Equal(t, 30*time.Second, cfg.Posts.CacheTTL)
	assert.Equal(t, 500, cfg.Contact.InboxLimit)
	assert.Equal(t, 720*time.Hour, cfg.Contact.Retention)
	assert.Equal(t, 120, cfg.Security.RateLimitRPM)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.Security.CORSAllowedOrigins)
	assert.False(t, cfg.AdminGated())
	assert.False(t, cfg.Security.TrustProxyHeaders)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.AllowedOrigins())
}

func TestLoadFromEnv(t *testing.T) {
	chdir(t, t.TempDir())

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	t.Setenv("SITE_ENV", "prod")
	t.Setenv("SITE_STORE_BACKEND", "SQLite")
	t.Setenv("SITE_SQLITE_PATH", "/tmp/site.db")
	t.Setenv("SITE_POSTS_SEED", "false")
	t.Setenv("SITE_POSTS_CACHE_TTL", "5s")
	t.Setenv("SITE_CONTACT_RETENTION", "0")
	t.Setenv("SITE_CORS_ALLOWED_ORIGINS", "https://trossachsgroup.com, https://www.trossachsgroup.com")
	t.Setenv("SITE_ADMIN_PASSWORD_HASH", string(hash))
	t.Setenv("SITE_TRUST_PROXY_HEADERS", "true")
	t.Setenv("SITE_PUBLIC_ORIGIN", "https://site.trossachsgroup.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProd())
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "/tmp/site.db", cfg.Store.SQLitePath)
	assert.False(t, cfg.Posts.Seed)
	assert.Equal(t, 5*time.Second, cfg.Posts.CacheTTL)
	assert.Zero(t, cfg.Contact.Retention)
	assert.Equal(t, []string{"https://trossachsgroup.com", "https://www.trossachsgroup.com"}, cfg.Security.CORSAllowedOrigins)
	assert.True(t, cfg.AdminGated())
	assert.True(t, cfg.Security.TrustProxyHeaders)
	assert.Equal(t, []string{
		"https://trossachsgroup.com",
		"https://www.trossachsgroup.com",
		"https://site.trossachsgroup.com",
	}, cfg.AllowedOrigins())
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown backend", map[string]string{"SITE_STORE_BACKEND": "mongo"}},
		{"postgres without dsn", map[string]string{"SITE_STORE_BACKEND": "postgres"}},
		{"negative ttl", map[string]string{"SITE_POSTS_CACHE_TTL": "-1s"}},
		{"negative retention", map[string]string{"SITE_CONTACT_RETENTION": "-1h"}},
		{"zero rate limit", map[string]string{"SITE_RATE_LIMIT_RPM": "0"}},
		{"plaintext admin password", map[string]string{"SITE_ADMIN_PASSWORD_HASH": "hunter2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdir(t, t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(".env", []byte("SITE_HTTP_ADDR=:9999\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("SITE_HTTP_ADDR") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
}

// chdir changes the working directory for the duration of the test,
// restoring it on cleanup (testing.T.Chdir needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { require.NoError(t, os.Chdir(prev)) })
}
