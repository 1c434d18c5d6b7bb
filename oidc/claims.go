package oidc

// Claims is the verified identity assertion for an authenticated subject,
// extracted from an id_token after its signature and standard claims have
// been validated.  It is the only identity data written into a session.
type Claims struct {
	// Subject is the provider's stable identifier for the user.
	Subject string `json:"sub"`

	// Email is the user's email address, when the provider released the
	// email scope.
	Email string `json:"email,omitempty"`

	// Name is the user's display name, when released via the profile scope.
	Name string `json:"name,omitempty"`

	// Issuer identifies the provider that asserted this identity.
	Issuer string `json:"iss"`

	// Audience is the list of audiences the id_token was issued for.
	Audience []string `json:"aud"`

	// ExpiresAt is the unix expiration of the id_token the claims were
	// derived from.
	ExpiresAt int64 `json:"exp"`
}

// DisplayName returns the email when present and the subject otherwise.
func (c Claims) DisplayName() string {
	if c.Email != "" {
		return c.Email
	}
	return c.Subject
}
