package credential

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const fileBackend = "file"

// FileName returns the collection file name for kind.
func FileName(kind Kind) string {
	return string(kind) + "_token_data.json"
}

// pathLocks shares one mutex per file among all FileStores of this process.
var pathLocks sync.Map

func lockFor(path string) *sync.Mutex {
	mu, _ := pathLocks.LoadOrStore(path, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// FileStore keeps one kind of credential in a flat JSON file.
//
// Every mutation reads the whole file, transforms it in memory and rewrites
// it through a temp file + rename. A per-path mutex serializes all writers in
// this process, which is the guarantee the store makes. Right before the
// rename the file is re-read and its SHA-256 digest compared with the bytes
// the mutation started from; a mismatch retries the cycle. The check and the
// rename are not atomic, so a writer in another process landing between them
// is still lost. Run one process per data directory, or use the Postgres or
// Redis store.
type FileStore struct {
	kind Kind
	path string
	opts options

	mu *sync.Mutex
}

// NewFileStore creates dir if needed and returns a store for kind inside it.
func NewFileStore(dir string, kind Kind, opts ...Option) (*FileStore, error) {
	if !kind.valid() {
		return nil, opErr("NewFileStore", kind, ErrInvalidInput)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("credential: mkdir %s: %w", dir, err)
	}
	path, err := filepath.Abs(filepath.Join(dir, FileName(kind)))
	if err != nil {
		return nil, fmt.Errorf("credential: resolve path: %w", err)
	}
	return &FileStore{
		kind: kind,
		path: path,
		opts: buildOptions(opts),
		mu:   lockFor(path),
	}, nil
}

// Path returns the collection file path.
func (s *FileStore) Path() string { return s.path }

// Save upserts c by owner.
func (s *FileStore) Save(ctx context.Context, c Credential) (Credential, error) {
	if c.Token == "" || c.OwnerID == "" {
		return Credential{}, opErr("Save", s.kind, ErrInvalidInput)
	}
	c.ExpiresAt = c.ExpiresAt.UTC().Truncate(time.Millisecond)

	out, err := s.mutate(ctx, "save", func(recs []Credential) ([]Credential, Credential, bool, error) {
		owner := -1
		for i, r := range recs {
			if r.Token == c.Token && r.OwnerID != c.OwnerID {
				return nil, Credential{}, false, ErrConflict
			}
			if owner < 0 && r.OwnerID == c.OwnerID {
				owner = i
			}
		}
		if owner >= 0 {
			recs[owner] = c
		} else {
			recs = append(recs, c)
		}
		return recs, c, true, nil
	})
	return out, opErr("Save", s.kind, err)
}

// FindByOwner returns the first record owned by ownerID.
func (s *FileStore) FindByOwner(ctx context.Context, ownerID string) (Credential, error) {
	return s.find(ctx, "FindByOwner", func(c Credential) bool { return c.OwnerID == ownerID })
}

// FindByValue returns the record holding token.
func (s *FileStore) FindByValue(ctx context.Context, token string) (Credential, error) {
	return s.find(ctx, "FindByValue", func(c Credential) bool { return c.Token == token })
}

// UpdateExpiry slides the expiry of token to now+ttl.
func (s *FileStore) UpdateExpiry(ctx context.Context, token string, ttl time.Duration) (Credential, error) {
	out, err := s.mutate(ctx, "update_expiry", func(recs []Credential) ([]Credential, Credential, bool, error) {
		for i, r := range recs {
			if r.Token != token {
				continue
			}
			recs[i].ExpiresAt = laterOf(r.ExpiresAt, ExpiryAfter(s.opts.now(), ttl))
			return recs, recs[i], true, nil
		}
		return nil, Credential{}, false, ErrNotFound
	})
	return out, opErr("UpdateExpiry", s.kind, err)
}

// Compact drops records expired before the grace cutoff.
func (s *FileStore) Compact(ctx context.Context) (int, error) {
	removed := 0
	_, err := s.mutate(ctx, "compact", func(recs []Credential) ([]Credential, Credential, bool, error) {
		kept := dropExpired(recs, s.opts.cutoff())
		removed = len(recs) - len(kept)
		return kept, Credential{}, removed > 0, nil
	})
	if err != nil {
		return 0, opErr("Compact", s.kind, err)
	}
	return removed, nil
}

func (s *FileStore) find(ctx context.Context, op string, match func(Credential) bool) (Credential, error) {
	defer s.opts.metrics.ObserveStoreOp(fileBackend, op, time.Now())

	if err := ctx.Err(); err != nil {
		return Credential{}, err
	}
	raw, _, err := s.readRaw()
	if err != nil {
		return Credential{}, opErr(op, s.kind, err)
	}
	for _, c := range s.decode(raw) {
		if match(c) {
			return c, nil
		}
	}
	return Credential{}, opErr(op, s.kind, ErrNotFound)
}

type mutation func(recs []Credential) (next []Credential, out Credential, changed bool, err error)

func (s *FileStore) mutate(ctx context.Context, op string, fn mutation) (Credential, error) {
	defer s.opts.metrics.ObserveStoreOp(fileBackend, op, time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 0; attempt < s.opts.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return Credential{}, err
		}

		raw, exists, err := s.readRaw()
		if err != nil {
			return Credential{}, err
		}

		next, out, changed, err := fn(s.decode(raw))
		if err != nil || !changed {
			return out, err
		}
		if s.opts.compactOnWrite() {
			next = dropExpired(next, s.opts.cutoff())
		}

		enc, err := EncodeCollection(next)
		if err != nil {
			return Credential{}, err
		}

		swapped, err := s.swap(raw, exists, enc)
		if err != nil {
			return Credential{}, err
		}
		if swapped {
			return out, nil
		}

		s.opts.metrics.StoreConflict(fileBackend)
		s.opts.log.Debug("credential.file.cas.retry", "kind", string(s.kind), "op", op, "attempt", attempt+1)
	}
	return Credential{}, ErrConflict
}

// readRaw returns the file bytes and whether the file exists.
func (s *FileStore) readRaw() ([]byte, bool, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

// decode treats unparsable content as an empty collection.
func (s *FileStore) decode(raw []byte) []Credential {
	recs, err := DecodeCollection(raw)
	if err != nil {
		s.opts.log.Warn("credential.file.parse.fail", "kind", string(s.kind), "path", s.path, "err", err)
		return []Credential{}
	}
	return recs
}

// swap writes enc unless the file changed since prev was read. The window
// between the re-read and the rename stays open to other processes.
func (s *FileStore) swap(prev []byte, existed bool, enc []byte) (bool, error) {
	cur, exists, err := s.readRaw()
	if err != nil {
		return false, err
	}
	if exists != existed || sha256.Sum256(cur) != sha256.Sum256(prev) {
		return false, nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".tmp-"+FileName(s.kind)+"-*")
	if err != nil {
		return false, err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(enc); err != nil {
		_ = tmp.Close()
		return false, err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return false, err
	}
	if err := tmp.Close(); err != nil {
		return false, err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return false, err
	}
	return true, nil
}

func dropExpired(recs []Credential, cutoff time.Time) []Credential {
	kept := recs[:0:0]
	for _, r := range recs {
		if r.ExpiresAt.Before(cutoff) {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}
