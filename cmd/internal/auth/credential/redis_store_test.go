package credential

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T, clock *fakeClock, opts ...Option) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	mr.SetTime(clock.Now())
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	opts = append([]Option{WithClock(clock.Now)}, opts...)
	s, err := NewRedisStore(rdb, "test", KindRefresh, opts...)
	require.NoError(t, err)
	return s, mr
}

func TestRedisStoreSaveFindUpsert(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s, mr := newTestRedisStore(t, clock)

	_, err := s.FindByOwner(ctx, "u1")
	require.ErrorIs(t, err, ErrNotFound)

	exp := clock.Now().Add(7 * 24 * time.Hour)
	first, err := s.Save(ctx, Credential{Token: "r1", OwnerID: "u1", ExpiresAt: exp})
	require.NoError(t, err)
	assert.Equal(t, "r1", first.Token)

	fields, err := mr.HKeys("test:refresh:tok:r1")
	require.NoError(t, err)
	assert.Equal(t, []string{fieldExpires, fieldOwner}, fields)

	got, err := s.FindByOwner(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, first, got)

	second, err := s.Save(ctx, Credential{Token: "r2", OwnerID: "u1", ExpiresAt: exp})
	require.NoError(t, err)
	assert.Equal(t, "r2", second.Token)

	assert.False(t, mr.Exists("test:refresh:tok:r1"))
	_, err = s.FindByValue(ctx, "r1")
	require.ErrorIs(t, err, ErrNotFound)

	got, err = s.FindByValue(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.OwnerID)
}

func TestRedisStoreSaveRejectsForeignToken(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s, _ := newTestRedisStore(t, clock)

	_, err := s.Save(ctx, Credential{Token: "r1", OwnerID: "u1", ExpiresAt: clock.Now().Add(time.Hour)})
	require.NoError(t, err)

	_, err = s.Save(ctx, Credential{Token: "r1", OwnerID: "u2", ExpiresAt: clock.Now().Add(time.Hour)})
	require.ErrorIs(t, err, ErrConflict)
}

func TestRedisStoreUpdateExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s, _ := newTestRedisStore(t, clock)

	far := clock.Now().Add(time.Hour)
	_, err := s.Save(ctx, Credential{Token: "r1", OwnerID: "u1", ExpiresAt: far})
	require.NoError(t, err)

	got, err := s.UpdateExpiry(ctx, "r1", time.Minute)
	require.NoError(t, err)
	assert.True(t, got.ExpiresAt.Equal(far))

	clock.Advance(2 * time.Hour)
	got, err = s.UpdateExpiry(ctx, "r1", time.Minute)
	require.NoError(t, err)
	assert.True(t, got.ExpiresAt.Equal(clock.Now().Add(time.Minute)))

	_, err = s.UpdateExpiry(ctx, "nope", time.Minute)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreCompact(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s, _ := newTestRedisStore(t, clock, WithCompactGrace(0))

	_, err := s.Save(ctx, Credential{Token: "gone", OwnerID: "u1", ExpiresAt: clock.Now().Add(time.Second)})
	require.NoError(t, err)
	_, err = s.Save(ctx, Credential{Token: "kept", OwnerID: "u2", ExpiresAt: clock.Now().Add(time.Hour)})
	require.NoError(t, err)

	// miniredis only expires keys on FastForward, so Compact does the work.
	clock.Advance(time.Minute)
	n, err := s.Compact(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.FindByOwner(ctx, "u1")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.FindByOwner(ctx, "u2")
	require.NoError(t, err)
}
