// Package config loads the process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/webb-auth/websso/oidc"
	"github.com/webb-auth/websso/session"
)

const (
	defaultAddr        = ":3000"
	defaultLoginExpiry = 2 * time.Minute

	// wellKnownSuffix is trimmed from OPENID_CONFIG_URL so deployments may
	// hand us either the issuer or the full discovery document URL.
	wellKnownSuffix = "/.well-known/openid-configuration"
)

// Config is everything the process needs to run.
type Config struct {
	// Addr is the listen address, WEBSSO_ADDR.
	Addr string

	// Issuer is the OIDC provider's issuer URL, from OPENID_ISSUER or
	// derived from OPENID_CONFIG_URL.
	Issuer string

	// ClientID and ClientSecret are the relying party credentials,
	// OPENID_CLIENT_ID and OPENID_CLIENT_SECRET.  The secret is optional
	// for providers that accept public clients.
	ClientID     string
	ClientSecret oidc.ClientSecret

	// ProviderCA is an optional PEM bundle for the provider's TLS
	// certificate, read from the file named by OPENID_PROVIDER_CA_FILE.
	ProviderCA string

	// SessionSecret signs the browser cookie, SESSION_SECRET.
	SessionSecret string

	// SessionLifetime bounds authenticated sessions, SESSION_LIFETIME.
	SessionLifetime time.Duration

	// RedisURL selects the shared session store when set,
	// SESSION_REDIS_URL.  Empty means the in-process store.
	RedisURL string

	// LoginExpiry bounds a login attempt between redirect and callback,
	// WEBSSO_LOGIN_EXPIRY.
	LoginExpiry time.Duration

	// InsecureDev disables the Secure flag on the browser cookie for
	// local plain-http development, WEBSSO_INSECURE_DEV.
	InsecureDev bool
}

// FromEnv reads the configuration from the environment and validates it,
// collecting every fault rather than stopping at the first.
func FromEnv() (*Config, error) {
	lifetime, err := getEnvAsDuration("SESSION_LIFETIME", session.DefaultLifetime)
	if err != nil {
		return nil, fmt.Errorf("config: invalid SESSION_LIFETIME: %w", err)
	}
	loginExpiry, err := getEnvAsDuration("WEBSSO_LOGIN_EXPIRY", defaultLoginExpiry)
	if err != nil {
		return nil, fmt.Errorf("config: invalid WEBSSO_LOGIN_EXPIRY: %w", err)
	}
	insecureDev, err := getEnvAsBool("WEBSSO_INSECURE_DEV", false)
	if err != nil {
		return nil, fmt.Errorf("config: invalid WEBSSO_INSECURE_DEV: %w", err)
	}

	issuer := os.Getenv("OPENID_ISSUER")
	if issuer == "" {
		issuer = strings.TrimSuffix(os.Getenv("OPENID_CONFIG_URL"), wellKnownSuffix)
	}
	issuer = strings.TrimSuffix(issuer, "/")

	c := &Config{
		Addr:            getEnvOrDefault("WEBSSO_ADDR", defaultAddr),
		Issuer:          issuer,
		ClientID:        os.Getenv("OPENID_CLIENT_ID"),
		ClientSecret:    oidc.ClientSecret(os.Getenv("OPENID_CLIENT_SECRET")),
		SessionSecret:   os.Getenv("SESSION_SECRET"),
		SessionLifetime: lifetime,
		RedisURL:        os.Getenv("SESSION_REDIS_URL"),
		LoginExpiry:     loginExpiry,
		InsecureDev:     insecureDev,
	}

	if caFile := os.Getenv("OPENID_PROVIDER_CA_FILE"); caFile != "" {
		pem, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("config: reading OPENID_PROVIDER_CA_FILE: %w", err)
		}
		c.ProviderCA = string(pem)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate reports every configuration fault at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	if c.Issuer == "" {
		result = multierror.Append(result, errors.New("one of OPENID_ISSUER or OPENID_CONFIG_URL must be set"))
	} else if u, err := url.Parse(c.Issuer); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		result = multierror.Append(result, fmt.Errorf("issuer %q is not an http(s) URL", c.Issuer))
	}
	if c.ClientID == "" {
		result = multierror.Append(result, errors.New("OPENID_CLIENT_ID must be set"))
	}
	if c.SessionSecret == "" {
		result = multierror.Append(result, errors.New("SESSION_SECRET must be set"))
	}
	if c.SessionLifetime <= 0 {
		result = multierror.Append(result, errors.New("SESSION_LIFETIME must be greater than zero"))
	}
	if c.LoginExpiry <= 0 {
		result = multierror.Append(result, errors.New("WEBSSO_LOGIN_EXPIRY must be greater than zero"))
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr, ok := os.LookupEnv(key)
	if !ok || valueStr == "" {
		return defaultValue, nil
	}
	return time.ParseDuration(valueStr)
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	valueStr, ok := os.LookupEnv(key)
	if !ok || valueStr == "" {
		return defaultValue, nil
	}
	return strconv.ParseBool(valueStr)
}
