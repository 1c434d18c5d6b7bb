package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/webb-auth/websso/oidc"
)

// DefaultLifetime is the absolute session lifetime, matching the session
// cookie's max-age.
const DefaultLifetime = 30 * time.Minute

// Manager establishes, resolves and destroys sessions over a Store.  It owns
// the expiry policy: a stored record whose expiry has passed resolves as
// absent, regardless of what the store still holds.
type Manager struct {
	store    Store
	lifetime time.Duration
}

// NewManager creates a Manager over the given store.
//
// Supported options: WithLifetime
func NewManager(store Store, opt ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.New("session store is nil")
	}
	opts := getOpts(opt...)
	if opts.withLifetime <= 0 {
		return nil, errors.New("session lifetime not greater than zero")
	}
	return &Manager{
		store:    store,
		lifetime: opts.withLifetime,
	}, nil
}

// Lifetime returns the configured absolute session lifetime.
func (m *Manager) Lifetime() time.Duration { return m.lifetime }

// Establish creates a new session for the claims and returns its identifier,
// for the caller to deliver as an HTTP-only cookie.  A store failure here is
// an error: failing to persist a newly authenticated session must not
// silently claim success.
func (m *Manager) Establish(ctx context.Context, claims oidc.Claims) (string, error) {
	const op = "session.(Manager).Establish"
	id, err := oidc.NewID(oidc.WithPrefix("s"))
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate session id: %w", op, err)
	}
	rec := Record{
		Claims:    claims,
		ExpiresAt: time.Now().Add(m.lifetime),
	}
	if err := m.store.Put(ctx, id, rec); err != nil {
		return "", fmt.Errorf("%s: unable to persist session: %w", op, err)
	}
	return id, nil
}

// Resolve returns the claims for a session identifier when the session
// exists and has not expired.  Absence is not an error: missing, expired and
// unreadable sessions all resolve to ("", false) semantics so callers treat
// them identically to "no session".
func (m *Manager) Resolve(ctx context.Context, id string) (oidc.Claims, bool) {
	if id == "" {
		return oidc.Claims{}, false
	}
	rec, err := m.store.Get(ctx, id)
	if err != nil {
		return oidc.Claims{}, false
	}
	if rec.Expired() {
		// best effort cleanup; the record already reads as absent
		_ = m.store.Delete(ctx, id)
		return oidc.Claims{}, false
	}
	return rec.Claims, true
}

// Destroy removes the session unconditionally.  It is idempotent: destroying
// an absent or expired session is a no-op, not an error.
func (m *Manager) Destroy(ctx context.Context, id string) error {
	const op = "session.(Manager).Destroy"
	if id == "" {
		return nil
	}
	if err := m.store.Delete(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%s: unable to delete session: %w", op, err)
	}
	return nil
}

// Option defines a common functional options type for the Manager.
type Option func(*options)

type options struct {
	withLifetime time.Duration
}

func getOpts(opt ...Option) options {
	opts := options{
		withLifetime: DefaultLifetime,
	}
	for _, o := range opt {
		if o != nil {
			o(&opts)
		}
	}
	return opts
}

// WithLifetime overrides the default absolute session lifetime.
func WithLifetime(d time.Duration) Option {
	return func(o *options) {
		o.withLifetime = d
	}
}
