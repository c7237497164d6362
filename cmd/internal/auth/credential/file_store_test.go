package credential

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestFileStore(t *testing.T, clock *fakeClock, opts ...Option) *FileStore {
	t.Helper()
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	s, err := NewFileStore(t.TempDir(), KindAccess, opts...)
	require.NoError(t, err)
	return s
}

func TestFileStoreSaveAndFind(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestFileStore(t, clock)

	_, err := s.FindByOwner(ctx, "u1")
	require.ErrorIs(t, err, ErrNotFound)

	saved, err := s.Save(ctx, Credential{Token: "t1", OwnerID: "u1", ExpiresAt: clock.Now().Add(30 * time.Second)})
	require.NoError(t, err)

	got, err := s.FindByOwner(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, saved, got)

	got, err = s.FindByValue(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.OwnerID)

	assert.Equal(t, "access_token_data.json", filepath.Base(s.Path()))
}

func TestFileStoreSaveUpsertsByOwner(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestFileStore(t, clock)

	exp := clock.Now().Add(time.Minute)
	_, err := s.Save(ctx, Credential{Token: "t1", OwnerID: "u1", ExpiresAt: exp})
	require.NoError(t, err)
	_, err = s.Save(ctx, Credential{Token: "t2", OwnerID: "u1", ExpiresAt: exp})
	require.NoError(t, err)

	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	creds, err := DecodeCollection(raw)
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, "t2", creds[0].Token)

	_, err = s.FindByValue(ctx, "t1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreSaveRejectsForeignToken(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestFileStore(t, clock)

	exp := clock.Now().Add(time.Minute)
	_, err := s.Save(ctx, Credential{Token: "t1", OwnerID: "u1", ExpiresAt: exp})
	require.NoError(t, err)

	_, err = s.Save(ctx, Credential{Token: "t1", OwnerID: "u2", ExpiresAt: exp})
	require.ErrorIs(t, err, ErrConflict)

	var opErr OpError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "Save", opErr.Op)
	assert.Equal(t, KindAccess, opErr.Kind)
}

func TestFileStoreSaveRejectsEmptyInput(t *testing.T) {
	s := newTestFileStore(t, newFakeClock())
	_, err := s.Save(context.Background(), Credential{Token: "", OwnerID: "u1"})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestFileStoreUpdateExpiryNeverDecreases(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestFileStore(t, clock)

	far := clock.Now().Add(time.Hour).Truncate(time.Millisecond)
	_, err := s.Save(ctx, Credential{Token: "t1", OwnerID: "u1", ExpiresAt: far})
	require.NoError(t, err)

	got, err := s.UpdateExpiry(ctx, "t1", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, far, got.ExpiresAt)

	clock.Advance(2 * time.Hour)
	got, err = s.UpdateExpiry(ctx, "t1", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(30*time.Second), got.ExpiresAt)

	_, err = s.UpdateExpiry(ctx, "missing", time.Second)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreCorruptFileIsEmpty(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestFileStore(t, clock)

	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o600))

	_, err := s.FindByOwner(ctx, "u1")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.Save(ctx, Credential{Token: "t1", OwnerID: "u1", ExpiresAt: clock.Now().Add(time.Minute)})
	require.NoError(t, err)

	got, err := s.FindByOwner(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "t1", got.Token)
}

func TestFileStoreCompactsOnWriteAndOnDemand(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestFileStore(t, clock, WithCompactGrace(time.Hour))

	_, err := s.Save(ctx, Credential{Token: "old", OwnerID: "u1", ExpiresAt: clock.Now().Add(time.Second)})
	require.NoError(t, err)
	_, err = s.Save(ctx, Credential{Token: "keep", OwnerID: "u2", ExpiresAt: clock.Now().Add(24 * time.Hour)})
	require.NoError(t, err)

	// Expired but inside the grace window.
	clock.Advance(30 * time.Minute)
	n, err := s.Compact(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	clock.Advance(time.Hour)
	_, err = s.Save(ctx, Credential{Token: "new", OwnerID: "u3", ExpiresAt: clock.Now().Add(time.Minute)})
	require.NoError(t, err)

	_, err = s.FindByValue(ctx, "old")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.FindByValue(ctx, "keep")
	require.NoError(t, err)

	s2 := newTestFileStore(t, clock, WithCompactGrace(0))
	_, err = s2.Save(ctx, Credential{Token: "a", OwnerID: "u1", ExpiresAt: clock.Now().Add(time.Second)})
	require.NoError(t, err)
	clock.Advance(2 * time.Second)
	n, err = s2.Compact(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFileStoreUntouchedFileKeepsBytes(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t, newFakeClock())

	require.NoError(t, os.WriteFile(s.Path(), []byte(sampleCollection), 0o600))

	// No record expires before the cutoff and nothing else changes, so the
	// file is left alone.
	_, err := s.Compact(ctx)
	require.NoError(t, err)
	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, sampleCollection, string(raw))
}

func TestFileStoreSwapRefusesChangedFile(t *testing.T) {
	s := newTestFileStore(t, newFakeClock())
	require.NoError(t, os.WriteFile(s.Path(), []byte(sampleCollection), 0o600))

	prev, existed, err := s.readRaw()
	require.NoError(t, err)
	require.True(t, existed)

	// Another process rewrites the file after prev was read.
	require.NoError(t, os.WriteFile(s.Path(), []byte("[]"), 0o600))

	ok, err := s.swap(prev, existed, []byte(`[{"token":"x","userId":"y","expires":"2024-05-01T10:00:00.000Z"}]`))
	require.NoError(t, err)
	assert.False(t, ok)

	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}

func TestFileStoreConcurrentSavesKeepOneRecordPerOwner(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	dir := t.TempDir()

	a, err := NewFileStore(dir, KindRefresh, WithClock(clock.Now), WithMaxRetries(50))
	require.NoError(t, err)
	b, err := NewFileStore(dir, KindRefresh, WithClock(clock.Now), WithMaxRetries(50))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i, s := range []*FileStore{a, b} {
		wg.Add(1)
		go func(i int, s *FileStore) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				owner := string(rune('a'+i)) + string(rune('a'+j))
				_, err := s.Save(ctx, Credential{Token: "tok-" + owner, OwnerID: owner, ExpiresAt: clock.Now().Add(time.Hour)})
				assert.NoError(t, err)
			}
		}(i, s)
	}
	wg.Wait()

	raw, err := os.ReadFile(a.Path())
	require.NoError(t, err)
	creds, err := DecodeCollection(raw)
	require.NoError(t, err)
	assert.Len(t, creds, 40)
}
