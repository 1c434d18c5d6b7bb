package session

import (
	"context"
	"errors"
	"time"

	"github.com/webb-auth/websso/oidc"
)

// ErrNotFound keeps storage-specific lookup misses consistent across store
// implementations.
var ErrNotFound = errors.New("session not found")

// Record is one persisted session: the verified claims for the subject plus
// an absolute expiry.  A Record must be treated as absent once ExpiresAt has
// passed, even if it is physically still stored.
type Record struct {
	Claims    oidc.Claims `json:"claims"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Expired reports whether the record's absolute expiry has passed.
func (r Record) Expired() bool {
	return !r.ExpiresAt.After(time.Now())
}

// Store persists session Records keyed by session identifier.  Accesses are
// keyed by identifier, so concurrent requests for different sessions never
// contend; concurrent writes for the same identifier are last-writer-wins.
type Store interface {
	// Put stores the record under id, replacing any existing record.
	Put(ctx context.Context, id string, rec Record) error

	// Get returns the record stored under id, or ErrNotFound.  Get does not
	// filter expired records; that policy belongs to the Manager.
	Get(ctx context.Context, id string) (Record, error)

	// Delete removes the record stored under id.  Deleting an absent id is
	// not an error.
	Delete(ctx context.Context, id string) error
}
