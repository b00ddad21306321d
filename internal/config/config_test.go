package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "[Orca Lead]", cfg.Contact.SubjectPrefix)
	assert.Equal(t, "memory", cfg.RateLimit.Backend)
	assert.Equal(t, 6, cfg.RateLimit.Max)
	assert.Equal(t, 10*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 8*time.Second, cfg.Turnstile.Timeout)
	assert.Empty(t, cfg.Turnstile.SecretKey)
	assert.Equal(t, 12*time.Second, cfg.Scrape.Timeout)
}

func TestLoadContactEnv(t *testing.T) {
	t.Setenv("CONTACT_TO_EMAIL", "sales@example.com")
	t.Setenv("ACS_EMAIL_SENDER", "noreply@example.com")
	t.Setenv("ACS_EMAIL_CONNECTION_STRING", "endpoint=https://x.communication.azure.com/;accesskey=a2V5")
	t.Setenv("CONTACT_SUBJECT_PREFIX", "[Test]")
	t.Setenv("TURNSTILE_SECRET_KEY", "shh")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sales@example.com", cfg.Contact.ToEmail)
	assert.Equal(t, "noreply@example.com", cfg.Contact.Sender)
	assert.Contains(t, cfg.Contact.ConnectionString, "accesskey=")
	assert.Equal(t, "[Test]", cfg.Contact.SubjectPrefix)
	assert.Equal(t, "shh", cfg.Turnstile.SecretKey)
}

func TestLoadPrefixedEnvAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rate_limit:\n  max: 3\nhttp:\n  addr: \":9000\"\n"), 0o600))
	t.Setenv("LEADGW_HTTP_ADDR", ":9100")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.RateLimit.Max)
	assert.Equal(t, ":9100", cfg.HTTP.Addr)
}
