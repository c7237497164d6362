package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"console/cmd/internal/auth/credential"
	"console/cmd/internal/metrics"
	"console/cmd/security/token"
)

const saveAttempts = 3

// Pair is the credential pair of one owner.
type Pair struct {
	Access  credential.Credential
	Refresh credential.Credential
}

// Manager owns the access and refresh stores.
type Manager struct {
	access  credential.Store
	refresh credential.Store
	cfg     Config

	now     func() time.Time
	mint    func() (string, error)
	log     *slog.Logger
	metrics *metrics.Metrics

	locks *keyedMutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithMetrics attaches counters for minted and extended credentials.
func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mx }
}

// WithTokenSource overrides how new token values are generated.
func WithTokenSource(mint func() (string, error)) Option {
	return func(m *Manager) {
		if mint != nil {
			m.mint = mint
		}
	}
}

// NewManager wires the two stores.
func NewManager(access, refresh credential.Store, cfg Config, opts ...Option) (*Manager, error) {
	if access == nil || refresh == nil {
		return nil, errors.New("lifecycle: access and refresh stores are required")
	}
	m := &Manager{
		access:  access,
		refresh: refresh,
		cfg:     cfg.withDefaults(),
		now:     time.Now,
		mint:    token.New,
		log:     slog.Default(),
		locks:   newKeyedMutex(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

// Config returns the effective TTLs.
func (m *Manager) Config() Config { return m.cfg }

// GetOrCreateAccessToken returns the owner's access credential with its expiry
// slid to now+AccessTTL, minting one when none exists.
func (m *Manager) GetOrCreateAccessToken(ctx context.Context, ownerID string) (credential.Credential, error) {
	return m.getOrCreate(ctx, credential.KindAccess, m.access, m.cfg.AccessTTL, ownerID)
}

// GetOrCreateRefreshToken is GetOrCreateAccessToken for the refresh kind.
func (m *Manager) GetOrCreateRefreshToken(ctx context.Context, ownerID string) (credential.Credential, error) {
	return m.getOrCreate(ctx, credential.KindRefresh, m.refresh, m.cfg.RefreshTTL, ownerID)
}

// Issue resolves g into a credential pair.
func (m *Manager) Issue(ctx context.Context, g Grant) (Pair, error) {
	if g == nil {
		return Pair{}, ErrInvalidGrant
	}
	if g.owner() == "" {
		return Pair{}, ErrMissingOwner
	}

	switch g := g.(type) {
	case ExternalGrant:
		return m.adopt(ctx, g)
	case InternalGrant:
		access, err := m.GetOrCreateAccessToken(ctx, g.OwnerID)
		if err != nil {
			return Pair{}, err
		}
		refresh, err := m.GetOrCreateRefreshToken(ctx, g.OwnerID)
		if err != nil {
			return Pair{}, err
		}
		return Pair{Access: access, Refresh: refresh}, nil
	default:
		return Pair{}, ErrInvalidGrant
	}
}

// adopt keeps provider tokens untouched. Nothing is persisted for them; a
// provider that sends no refresh token gets a local one.
func (m *Manager) adopt(ctx context.Context, g ExternalGrant) (Pair, error) {
	if g.AccessToken == "" {
		return Pair{}, ErrInvalidGrant
	}

	now := m.now()
	accessExp := credential.ExpiryAfter(now, m.cfg.AccessTTL)
	refreshExp := credential.ExpiryAfter(now, m.cfg.RefreshTTL)
	if g.ExpiresAtSeconds > 0 {
		accessExp = time.UnixMilli(g.ExpiresAtSeconds * 1000).UTC()
		refreshExp = accessExp
	}

	p := Pair{
		Access:  credential.Credential{Token: g.AccessToken, OwnerID: g.OwnerID, ExpiresAt: accessExp},
		Refresh: credential.Credential{Token: g.RefreshToken, OwnerID: g.OwnerID, ExpiresAt: refreshExp},
	}
	if g.RefreshToken == "" {
		refresh, err := m.GetOrCreateRefreshToken(ctx, g.OwnerID)
		if err != nil {
			return Pair{}, err
		}
		p.Refresh = refresh
	}

	m.log.Info("lifecycle.grant.adopted",
		"owner_id", g.OwnerID,
		"access_fp", token.Fingerprint(p.Access.Token),
	)
	return p, nil
}

func (m *Manager) getOrCreate(ctx context.Context, kind credential.Kind, store credential.Store, ttl time.Duration, ownerID string) (credential.Credential, error) {
	if ownerID == "" {
		return credential.Credential{}, ErrMissingOwner
	}

	unlock := m.locks.Lock(string(kind) + "\x00" + ownerID)
	defer unlock()

	var lastErr error
	for attempt := 0; attempt < saveAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return credential.Credential{}, err
		}

		existing, err := store.FindByOwner(ctx, ownerID)
		switch {
		case err == nil:
			c, err := store.UpdateExpiry(ctx, existing.Token, ttl)
			if errors.Is(err, credential.ErrNotFound) {
				// Replaced or compacted between the two calls.
				lastErr = err
				continue
			}
			if err != nil {
				return credential.Credential{}, fmt.Errorf("lifecycle: extend %s: %w", kind, err)
			}
			m.metrics.TokenExtended(string(kind))
			return c, nil

		case errors.Is(err, credential.ErrNotFound):
			c, err := m.create(ctx, kind, store, ttl, ownerID)
			if errors.Is(err, credential.ErrConflict) {
				lastErr = err
				continue
			}
			return c, err

		default:
			return credential.Credential{}, fmt.Errorf("lifecycle: find %s: %w", kind, err)
		}
	}
	return credential.Credential{}, fmt.Errorf("lifecycle: %s for owner: %w", kind, lastErr)
}

func (m *Manager) create(ctx context.Context, kind credential.Kind, store credential.Store, ttl time.Duration, ownerID string) (credential.Credential, error) {
	value, err := m.mint()
	if err != nil {
		return credential.Credential{}, err
	}

	c, err := store.Save(ctx, credential.Credential{
		Token:     value,
		OwnerID:   ownerID,
		ExpiresAt: credential.ExpiryAfter(m.now(), ttl),
	})
	if err != nil {
		if !errors.Is(err, credential.ErrConflict) {
			err = fmt.Errorf("lifecycle: save %s: %w", kind, err)
		}
		return credential.Credential{}, err
	}

	m.metrics.TokenMinted(string(kind))
	m.log.Info("lifecycle.token.minted",
		"kind", string(kind),
		"owner_id", ownerID,
		"token_fp", token.Fingerprint(value),
	)
	return c, nil
}
