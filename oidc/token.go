package oidc

import (
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// DefaultTokenExpirySkew defines a default time skew when checking a Token's
// expiration.
const DefaultTokenExpirySkew = 10 * time.Second

// Token represents the set of tokens returned by the provider's token
// endpoint for one authorization code.  It is consumed immediately to derive
// Claims and is not persisted; refresh tokens are deliberately not retained.
type Token struct {
	idToken     IDToken
	accessToken string
	expiry      time.Time
}

// NewToken creates a Token from an id_token and the enclosing oauth2 token
// returned by the exchange.
func NewToken(idToken IDToken, t *oauth2.Token) (*Token, error) {
	const op = "oidc.NewToken"
	if idToken == "" {
		return nil, fmt.Errorf("%s: id_token is empty: %w", op, ErrInvalidParameter)
	}
	if t == nil {
		return nil, fmt.Errorf("%s: oauth2 token is nil: %w", op, ErrNilParameter)
	}
	return &Token{
		idToken:     idToken,
		accessToken: t.AccessToken,
		expiry:      t.Expiry,
	}, nil
}

// IDToken returns the token's id_token
func (t *Token) IDToken() IDToken { return t.idToken }

// AccessToken returns the token's access_token
func (t *Token) AccessToken() string { return t.accessToken }

// Expiry returns the expiration of the token's access_token.  A zero value
// means the provider did not report one.
func (t *Token) Expiry() time.Time { return t.expiry }

// IsExpired returns true if the token's access_token has expired. Supports
// the WithExpirySkew option and if none is provided it will use the
// DefaultTokenExpirySkew.
func (t *Token) IsExpired(opt ...Option) bool {
	opts := getTokenOpts(opt...)
	if t.expiry.IsZero() {
		return false
	}
	return t.expiry.Round(0).Before(time.Now().Add(opts.withExpirySkew))
}

// tokenOptions is the set of available options for Token functions
type tokenOptions struct {
	withExpirySkew time.Duration
}

// tokenDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func tokenDefaults() tokenOptions {
	return tokenOptions{
		withExpirySkew: DefaultTokenExpirySkew,
	}
}

// getTokenOpts gets the token defaults and applies the opt overrides passed
// in.
func getTokenOpts(opt ...Option) tokenOptions {
	opts := tokenDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}
