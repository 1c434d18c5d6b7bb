package oidc

import (
	"fmt"
	"time"
)

// DefaultRequestExpirySkew defines a default time skew when checking a
// Request's expiration.
const DefaultRequestExpirySkew = 1 * time.Second

// Request represents one in-flight authorization code flow for a single
// browser.  Its State() is sent to the provider and mirrored back in the
// authorization response, correlating the callback with this attempt; its
// Nonce() binds the resulting id_token to the attempt.  State and Nonce are
// never equal.  A Request is single use: it must be discarded once the
// callback for it has been processed, successfully or not.
type Request struct {
	// state is a unique identifier and an opaque value used to maintain
	// state between the authorization request and the callback.
	state string

	// nonce associates the id_token issued for this attempt with the attempt
	// itself, mitigating replay.
	nonce string

	// redirectURL is the callback URL for this attempt.  It is derived from
	// the inbound request's externally visible origin, not static config, so
	// the flow works behind proxies and on non-default ports.
	redirectURL string

	// returnTo is the resource the browser originally asked for, restored
	// after the flow completes.
	returnTo string

	// expiration is the expiration time for the Request
	expiration time.Time
}

// NewRequest creates a new Request for one authorization attempt.  The
// redirectURL is the callback URL the provider should redirect back to.  The
// returnTo is the originally requested URL the browser is sent to once the
// flow completes; it defaults to "/".
func NewRequest(expireIn time.Duration, redirectURL string, returnTo string) (*Request, error) {
	const op = "oidc.NewRequest"
	if expireIn <= 0 {
		return nil, fmt.Errorf("%s: expireIn not greater than zero: %w", op, ErrInvalidParameter)
	}
	if redirectURL == "" {
		return nil, fmt.Errorf("%s: redirect URL is empty: %w", op, ErrInvalidParameter)
	}
	if returnTo == "" {
		returnTo = "/"
	}
	state, err := NewID(WithPrefix("st"))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate a request's state: %w", op, err)
	}
	nonce, err := NewID(WithPrefix("n"))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate a request's nonce: %w", op, err)
	}
	return &Request{
		state:       state,
		nonce:       nonce,
		redirectURL: redirectURL,
		returnTo:    returnTo,
		expiration:  time.Now().Add(expireIn),
	}, nil
}

// State is the opaque value maintaining state between the authorization
// request and the callback.
func (r *Request) State() string { return r.state }

// Nonce is the value used to associate this attempt with its id_token.
func (r *Request) Nonce() string { return r.nonce }

// RedirectURL is the callback URL for this attempt.
func (r *Request) RedirectURL() string { return r.redirectURL }

// ReturnTo is the originally requested URL for this attempt.
func (r *Request) ReturnTo() string { return r.returnTo }

// IsExpired returns true if the request has expired. Supports the
// WithExpirySkew option and if none is provided it will use the
// DefaultRequestExpirySkew.
func (r *Request) IsExpired(opt ...Option) bool {
	opts := getReqOpts(opt...)
	return r.expiration.Before(time.Now().Add(opts.withExpirySkew))
}

// reqOptions is the set of available options for Request functions
type reqOptions struct {
	withExpirySkew time.Duration
}

// reqDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func reqDefaults() reqOptions {
	return reqOptions{
		withExpirySkew: DefaultRequestExpirySkew,
	}
}

// getReqOpts gets the request defaults and applies the opt overrides passed
// in.
func getReqOpts(opt ...Option) reqOptions {
	opts := reqDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}
