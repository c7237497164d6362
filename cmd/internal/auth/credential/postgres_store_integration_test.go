package credential

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration tests are opt-in and require CONSOLE_DATABASE_URL.

func TestPostgresStoreLifecycle_Integration(t *testing.T) {
	pool := mustOpenTestPool(t)
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	require.NoError(t, Migrate(ctx, pool))

	now := time.Now().UTC().Truncate(time.Millisecond)
	s, err := NewPostgresStore(pool, KindAccess, WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	owner := "it-" + ulid.Make().String()
	other := "it-" + ulid.Make().String()
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM console.access_tokens WHERE user_id = ANY($1)`, []string{owner, other})
	})

	first, err := s.Save(ctx, Credential{Token: owner + "-a", OwnerID: owner, ExpiresAt: now.Add(30 * time.Second)})
	require.NoError(t, err)
	assert.Equal(t, owner+"-a", first.Token)

	second, err := s.Save(ctx, Credential{Token: owner + "-b", OwnerID: owner, ExpiresAt: now.Add(30 * time.Second)})
	require.NoError(t, err)
	assert.Equal(t, owner+"-b", second.Token)
	assert.Equal(t, owner, second.OwnerID)

	_, err = s.FindByValue(ctx, owner+"-a")
	require.ErrorIs(t, err, ErrNotFound)

	got, err := s.FindByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, owner+"-b", got.Token)
	assert.True(t, got.ExpiresAt.Equal(now.Add(30*time.Second)))

	_, err = s.Save(ctx, Credential{Token: owner + "-b", OwnerID: other, ExpiresAt: now.Add(time.Minute)})
	require.ErrorIs(t, err, ErrConflict)

	ext, err := s.UpdateExpiry(ctx, owner+"-b", time.Hour)
	require.NoError(t, err)
	assert.True(t, ext.ExpiresAt.Equal(now.Add(time.Hour)))

	same, err := s.UpdateExpiry(ctx, owner+"-b", time.Second)
	require.NoError(t, err)
	assert.True(t, same.ExpiresAt.Equal(ext.ExpiresAt))

	_, err = s.UpdateExpiry(ctx, "missing-"+owner, time.Second)
	require.ErrorIs(t, err, ErrNotFound)
}

func mustOpenTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("CONSOLE_DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: CONSOLE_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(raw)
	if err != nil {
		t.Fatalf("parse CONSOLE_DATABASE_URL: %v", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer pingCancel()

	c, err := pool.Acquire(pingCtx)
	if err != nil {
		pool.Close()
		var opErr *net.OpError
		if os.Getenv("CI") == "" && errors.As(err, &opErr) {
			t.Skipf("integration test skipped: Postgres unreachable (CONSOLE_DATABASE_URL set): %v", err)
		}
		t.Fatalf("acquire: %v", err)
	}
	c.Release()

	return pool
}
