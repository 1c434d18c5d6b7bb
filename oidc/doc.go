// Package oidc implements the relying-party side of the OpenID Connect
// Authorization Code flow: provider discovery, authorization request
// construction, authorization code exchange and ID token verification.
//
// A Provider is created once at startup from a Config and performs discovery
// against the issuer's well-known configuration document.  Each login attempt
// is represented by a single-use Request which carries the state, nonce and
// redirect URL for that attempt.  A successful exchange yields the verified
// Claims for the authenticated subject.
package oidc
