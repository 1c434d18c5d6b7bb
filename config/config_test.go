package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webb-auth/websso/session"
)

// clearEnv blanks every variable FromEnv reads so tests start from a known
// environment.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"WEBSSO_ADDR",
		"WEBSSO_LOGIN_EXPIRY",
		"WEBSSO_INSECURE_DEV",
		"OPENID_ISSUER",
		"OPENID_CONFIG_URL",
		"OPENID_CLIENT_ID",
		"OPENID_CLIENT_SECRET",
		"OPENID_PROVIDER_CA_FILE",
		"SESSION_SECRET",
		"SESSION_LIFETIME",
		"SESSION_REDIS_URL",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		require := require.New(t)
		clearEnv(t)
		t.Setenv("OPENID_ISSUER", "https://idp.example.com")
		t.Setenv("OPENID_CLIENT_ID", "websso-client")
		t.Setenv("SESSION_SECRET", "secret")

		c, err := FromEnv()
		require.NoError(err)
		assert.Equal(t, ":3000", c.Addr)
		assert.Equal(t, "https://idp.example.com", c.Issuer)
		assert.Equal(t, "websso-client", c.ClientID)
		assert.Equal(t, session.DefaultLifetime, c.SessionLifetime)
		assert.Equal(t, 2*time.Minute, c.LoginExpiry)
		assert.Empty(t, c.RedisURL)
		assert.False(t, c.InsecureDev)
	})
	t.Run("config-url-yields-issuer", func(t *testing.T) {
		require := require.New(t)
		clearEnv(t)
		t.Setenv("OPENID_CONFIG_URL", "https://idp.example.com/realms/main/.well-known/openid-configuration")
		t.Setenv("OPENID_CLIENT_ID", "websso-client")
		t.Setenv("SESSION_SECRET", "secret")

		c, err := FromEnv()
		require.NoError(err)
		assert.Equal(t, "https://idp.example.com/realms/main", c.Issuer)
	})
	t.Run("issuer-wins-over-config-url", func(t *testing.T) {
		require := require.New(t)
		clearEnv(t)
		t.Setenv("OPENID_ISSUER", "https://idp.example.com")
		t.Setenv("OPENID_CONFIG_URL", "https://other.example.com/.well-known/openid-configuration")
		t.Setenv("OPENID_CLIENT_ID", "websso-client")
		t.Setenv("SESSION_SECRET", "secret")

		c, err := FromEnv()
		require.NoError(err)
		assert.Equal(t, "https://idp.example.com", c.Issuer)
	})
	t.Run("overrides", func(t *testing.T) {
		require := require.New(t)
		clearEnv(t)
		t.Setenv("OPENID_ISSUER", "https://idp.example.com")
		t.Setenv("OPENID_CLIENT_ID", "websso-client")
		t.Setenv("OPENID_CLIENT_SECRET", "hush")
		t.Setenv("SESSION_SECRET", "secret")
		t.Setenv("WEBSSO_ADDR", ":8080")
		t.Setenv("SESSION_LIFETIME", "1h")
		t.Setenv("SESSION_REDIS_URL", "redis://localhost:6379/0")
		t.Setenv("WEBSSO_LOGIN_EXPIRY", "5m")
		t.Setenv("WEBSSO_INSECURE_DEV", "true")

		c, err := FromEnv()
		require.NoError(err)
		assert.Equal(t, ":8080", c.Addr)
		assert.Equal(t, time.Hour, c.SessionLifetime)
		assert.Equal(t, "redis://localhost:6379/0", c.RedisURL)
		assert.Equal(t, 5*time.Minute, c.LoginExpiry)
		assert.True(t, c.InsecureDev)
		assert.Equal(t, "hush", string(c.ClientSecret))
	})
	t.Run("provider-ca-file", func(t *testing.T) {
		require := require.New(t)
		clearEnv(t)
		caFile := t.TempDir() + "/ca.pem"
		require.NoError(os.WriteFile(caFile, []byte("-----BEGIN CERTIFICATE-----"), 0o600))
		t.Setenv("OPENID_ISSUER", "https://idp.example.com")
		t.Setenv("OPENID_CLIENT_ID", "websso-client")
		t.Setenv("SESSION_SECRET", "secret")
		t.Setenv("OPENID_PROVIDER_CA_FILE", caFile)

		c, err := FromEnv()
		require.NoError(err)
		assert.Contains(t, c.ProviderCA, "BEGIN CERTIFICATE")
	})
	t.Run("missing-provider-ca-file", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OPENID_ISSUER", "https://idp.example.com")
		t.Setenv("OPENID_CLIENT_ID", "websso-client")
		t.Setenv("SESSION_SECRET", "secret")
		t.Setenv("OPENID_PROVIDER_CA_FILE", "/does/not/exist.pem")

		_, err := FromEnv()
		require.Error(t, err)
	})
	t.Run("bad-duration", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SESSION_LIFETIME", "not-a-duration")

		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SESSION_LIFETIME")
	})
	t.Run("collects-every-fault", func(t *testing.T) {
		clearEnv(t)

		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "OPENID_ISSUER")
		assert.Contains(t, err.Error(), "OPENID_CLIENT_ID")
		assert.Contains(t, err.Error(), "SESSION_SECRET")
	})
	t.Run("non-http-issuer", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OPENID_ISSUER", "ldap://idp.example.com")
		t.Setenv("OPENID_CLIENT_ID", "websso-client")
		t.Setenv("SESSION_SECRET", "secret")

		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "http(s)")
	})
}
