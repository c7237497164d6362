package credential

import (
	"context"
	"time"
)

// Kind names a credential collection.
type Kind string

const (
	// KindAccess is the short-lived access token collection.
	KindAccess Kind = "access"
	// KindRefresh is the long-lived refresh token collection.
	KindRefresh Kind = "refresh"
)

func (k Kind) valid() bool {
	return k == KindAccess || k == KindRefresh
}

// Credential is a token bound to an owner with an absolute expiry.
type Credential struct {
	Token     string
	OwnerID   string
	ExpiresAt time.Time
}

// ExpiresAtMillis returns the expiry as epoch milliseconds.
func (c Credential) ExpiresAtMillis() int64 {
	return c.ExpiresAt.UnixMilli()
}

// Store abstracts persistence for one credential kind.
//
// Lookups return ErrNotFound when nothing matches.
type Store interface {
	// Save inserts c, or replaces the record already held by c.OwnerID.
	Save(ctx context.Context, c Credential) (Credential, error)

	// FindByOwner returns the first record owned by ownerID.
	FindByOwner(ctx context.Context, ownerID string) (Credential, error)

	// FindByValue returns the record whose token equals token.
	FindByValue(ctx context.Context, token string) (Credential, error)

	// UpdateExpiry slides the record's expiry to now+ttl and returns it.
	// The expiry never decreases.
	UpdateExpiry(ctx context.Context, token string, ttl time.Duration) (Credential, error)

	// Compact removes records that expired before now minus the store's grace.
	Compact(ctx context.Context) (int, error)
}

// ExpiryAfter returns now+ttl in UTC at millisecond precision, the resolution
// every backend persists.
func ExpiryAfter(now time.Time, ttl time.Duration) time.Time {
	return now.Add(ttl).UTC().Truncate(time.Millisecond)
}

func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
