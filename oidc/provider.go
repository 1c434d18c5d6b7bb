package oidc

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Provider provides integration with an OIDC provider using the typical
// 3-legged authorization code flow.  Discovery against the provider's
// well-known configuration document happens once, when the Provider is
// created; the discovered metadata is never refetched for the lifetime of
// the Provider.
type Provider struct {
	config   *Config
	provider *oidc.Provider

	// endSessionEndpoint is the provider's RP-initiated logout endpoint,
	// taken from the discovery document.
	endSessionEndpoint string

	mu sync.Mutex

	// backgroundCtx is the context used by the provider for background
	// activities like refreshing JWKS key sets.
	backgroundCtx context.Context

	// backgroundCtxCancel is used to cancel any background activities
	// running in spawned go routines.
	backgroundCtxCancel context.CancelFunc
}

// NewProvider creates and initializes a Provider for the OIDC authorization
// code flow.  Initializing the provider includes a discovery request to the
// issuer's well-known configuration document; any failure to reach, parse or
// validate that document is reported as ErrDiscovery.  Discovery failures
// are meant to be fatal at startup: a process must not serve traffic without
// a provider configuration.
//
// See Provider.Done() which must be called to release provider resources.
func NewProvider(c *Config) (*Provider, error) {
	const op = "oidc.NewProvider"
	if c == nil {
		return nil, fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: provider config is invalid: %w", op, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	// initializing the Provider with its background ctx/cancel allows
	// p.Done() to release resources when returning errors from this
	// function.
	p := &Provider{
		config:              c,
		backgroundCtx:       ctx,
		backgroundCtxCancel: cancel,
	}

	client, err := c.HTTPClient()
	if err != nil {
		p.Done()
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}

	provider, err := oidc.NewProvider(HTTPClientContext(p.backgroundCtx, client), c.Issuer)
	if err != nil {
		p.Done()
		return nil, fmt.Errorf("%s: unable to discover provider for issuer %q (%s): %w", op, c.Issuer, err, ErrDiscovery)
	}
	p.provider = provider

	var discovered struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := provider.Claims(&discovered); err != nil {
		p.Done()
		return nil, fmt.Errorf("%s: unable to parse discovery document (%s): %w", op, err, ErrDiscovery)
	}
	if discovered.EndSessionEndpoint == "" {
		p.Done()
		return nil, fmt.Errorf("%s: discovery document is missing end_session_endpoint: %w", op, ErrDiscovery)
	}
	p.endSessionEndpoint = discovered.EndSessionEndpoint

	return p, nil
}

// Done with the provider's background resources and must be called for every
// Provider created.
func (p *Provider) Done() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.backgroundCtxCancel != nil {
		p.backgroundCtxCancel()
		p.backgroundCtxCancel = nil
	}
}

// Endpoint returns the provider's discovered authorization and token
// endpoints.
func (p *Provider) Endpoint() oauth2.Endpoint {
	return p.provider.Endpoint()
}

// EndSessionEndpoint returns the provider's discovered RP-initiated logout
// endpoint.
func (p *Provider) EndSessionEndpoint() string {
	return p.endSessionEndpoint
}

// AuthURL generates a URL that will kick off an authorization code flow with
// the provider for the given Request.  The browser is redirected to the
// returned URL; the provider redirects back to the Request's redirect URL
// when the user has authenticated.
func (p *Provider) AuthURL(ctx context.Context, r *Request) (string, error) {
	const op = "oidc.(Provider).AuthURL"
	if r == nil {
		return "", fmt.Errorf("%s: request is nil: %w", op, ErrNilParameter)
	}
	if r.State() == r.Nonce() {
		return "", fmt.Errorf("%s: request state and nonce cannot be equal: %w", op, ErrInvalidParameter)
	}
	if r.IsExpired() {
		return "", fmt.Errorf("%s: %w", op, ErrExpiredRequest)
	}
	oauth2Config := p.oauth2Config(r.RedirectURL())
	return oauth2Config.AuthCodeURL(r.State(), oidc.Nonce(r.Nonce())), nil
}

// Exchange completes the authorization code flow for the Request: it
// validates the authorization response state against the Request, exchanges
// the authorization code at the provider's token endpoint, verifies the
// returned id_token (signature, issuer, audience, expiry and nonce) and
// extracts the verified Claims.
//
// A state that does not match the Request fails with ErrStateMismatch and
// must be treated as a possible CSRF or stale callback.  HTTP-level failures
// from the token endpoint fail with ErrTokenExchange and are not retried.
// Claims or signature inconsistencies fail with ErrTokenValidation (or the
// more specific ErrInvalidNonce/ErrInvalidAudience).
func (p *Provider) Exchange(ctx context.Context, r *Request, responseState string, responseCode string) (*Token, Claims, error) {
	const op = "oidc.(Provider).Exchange"
	if r == nil {
		return nil, Claims{}, fmt.Errorf("%s: request is nil: %w", op, ErrNilParameter)
	}
	if responseState != r.State() {
		return nil, Claims{}, fmt.Errorf("%s: %w", op, ErrStateMismatch)
	}
	if r.IsExpired() {
		return nil, Claims{}, fmt.Errorf("%s: %w", op, ErrExpiredRequest)
	}

	client, err := p.config.HTTPClient()
	if err != nil {
		return nil, Claims{}, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}
	oidcCtx := HTTPClientContext(ctx, client)

	oauth2Config := p.oauth2Config(r.RedirectURL())
	oauth2Token, err := oauth2Config.Exchange(oidcCtx, responseCode)
	if err != nil {
		return nil, Claims{}, fmt.Errorf("%s: unable to exchange auth code with provider (%s): %w", op, err, ErrTokenExchange)
	}

	idToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok || idToken == "" {
		return nil, Claims{}, fmt.Errorf("%s: id_token is missing from auth code exchange: %w", op, ErrMissingIDToken)
	}
	t, err := NewToken(IDToken(idToken), oauth2Token)
	if err != nil {
		return nil, Claims{}, fmt.Errorf("%s: unable to create new token: %w", op, err)
	}
	claims, err := p.VerifyIDToken(ctx, t.IDToken(), r.Nonce())
	if err != nil {
		return nil, Claims{}, fmt.Errorf("%s: id_token failed verification: %w", op, err)
	}
	return t, claims, nil
}

// VerifyIDToken verifies the inbound id_token: it checks the signature
// against the provider's published keys, validates the issuer, audience and
// expiry, and validates the nonce against the one issued for the attempt.
// On success it returns the Claims asserted by the token.
//
// See: https://openid.net/specs/openid-connect-core-1_0.html#IDTokenValidation
func (p *Provider) VerifyIDToken(ctx context.Context, t IDToken, nonce string) (Claims, error) {
	const op = "oidc.(Provider).VerifyIDToken"
	if t == "" {
		return Claims{}, fmt.Errorf("%s: id_token is empty: %w", op, ErrInvalidParameter)
	}
	if nonce == "" {
		return Claims{}, fmt.Errorf("%s: nonce is empty: %w", op, ErrInvalidParameter)
	}
	algs := make([]string, 0, len(p.config.SupportedSigningAlgs))
	for _, a := range p.config.SupportedSigningAlgs {
		algs = append(algs, string(a))
	}
	verifier := p.provider.Verifier(&oidc.Config{
		ClientID:             p.config.ClientID,
		SupportedSigningAlgs: algs,
	})

	verified, err := verifier.Verify(ctx, string(t))
	if err != nil {
		return Claims{}, fmt.Errorf("%s: invalid id_token (%s): %w", op, err, ErrTokenValidation)
	}

	if verified.Nonce != nonce {
		return Claims{}, fmt.Errorf("%s: %w", op, ErrInvalidNonce)
	}

	if len(p.config.Audiences) > 0 {
		found := false
		for _, v := range p.config.Audiences {
			if strListContains(verified.Audience, v) {
				found = true
				break
			}
		}
		if !found {
			return Claims{}, fmt.Errorf("%s: %w", op, ErrInvalidAudience)
		}
	}

	claims := Claims{
		Subject:   verified.Subject,
		Issuer:    verified.Issuer,
		Audience:  verified.Audience,
		ExpiresAt: verified.Expiry.Unix(),
	}
	// profile/email claims are not part of the verifier's standard set
	var extra struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := verified.Claims(&extra); err == nil {
		claims.Email = extra.Email
		claims.Name = extra.Name
	}
	return claims, nil
}

// EndSessionURL builds the provider's RP-initiated logout URL.  The
// postLogoutRedirectURI is where the provider sends the user agent once the
// provider-side session has been terminated; it should be built from the
// current request's externally visible origin.
func (p *Provider) EndSessionURL(postLogoutRedirectURI string) (string, error) {
	const op = "oidc.(Provider).EndSessionURL"
	if postLogoutRedirectURI == "" {
		return "", fmt.Errorf("%s: post logout redirect URI is empty: %w", op, ErrInvalidParameter)
	}
	u, err := url.Parse(p.endSessionEndpoint)
	if err != nil {
		return "", fmt.Errorf("%s: end session endpoint %s is invalid: %w", op, p.endSessionEndpoint, err)
	}
	q := u.Query()
	q.Set("post_logout_redirect_uri", postLogoutRedirectURI)
	q.Set("client_id", p.config.ClientID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// oauth2Config assembles the oauth2 client config for one attempt.  The
// redirect URL varies per attempt because it is derived from the inbound
// request's origin.
func (p *Provider) oauth2Config(redirectURL string) oauth2.Config {
	scopes := append([]string{oidc.ScopeOpenID}, p.config.Scopes...)
	return oauth2.Config{
		ClientID:     p.config.ClientID,
		ClientSecret: string(p.config.ClientSecret),
		RedirectURL:  redirectURL,
		Endpoint:     p.provider.Endpoint(),
		Scopes:       scopes,
	}
}
