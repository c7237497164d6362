package credential

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisBackend = "redis"

	fieldOwner   = "owner"
	fieldExpires = "exp"
)

// RedisStore keeps each credential in a hash (<prefix>:<kind>:tok:<token>) with
// an owner index key (<prefix>:<kind>:own:<owner>) pointing at the token.
// Keys expire natively at expiry + grace.
type RedisStore struct {
	rdb    redis.UniversalClient
	kind   Kind
	prefix string
	opts   options
}

// NewRedisStore creates a Redis-backed store for kind under prefix.
func NewRedisStore(rdb redis.UniversalClient, prefix string, kind Kind, opts ...Option) (*RedisStore, error) {
	if rdb == nil || !kind.valid() {
		return nil, opErr("NewRedisStore", kind, ErrInvalidInput)
	}
	if prefix == "" {
		prefix = "console"
	}
	return &RedisStore{rdb: rdb, kind: kind, prefix: prefix, opts: buildOptions(opts)}, nil
}

func (s *RedisStore) tokKey(token string) string {
	return fmt.Sprintf("%s:%s:tok:%s", s.prefix, s.kind, token)
}

func (s *RedisStore) ownKey(owner string) string {
	return fmt.Sprintf("%s:%s:own:%s", s.prefix, s.kind, owner)
}

// keyDeadline is when Redis may drop the keys of a record expiring at exp.
func (s *RedisStore) keyDeadline(exp time.Time) time.Time {
	if s.opts.compactGrace > 0 {
		return exp.Add(s.opts.compactGrace)
	}
	return exp
}

// Save upserts c by owner. The previous token of the owner is deleted in the
// same transaction.
func (s *RedisStore) Save(ctx context.Context, c Credential) (Credential, error) {
	defer s.opts.metrics.ObserveStoreOp(redisBackend, "save", time.Now())

	if c.Token == "" || c.OwnerID == "" {
		return Credential{}, opErr("Save", s.kind, ErrInvalidInput)
	}
	c.ExpiresAt = c.ExpiresAt.UTC().Truncate(time.Millisecond)

	ownKey := s.ownKey(c.OwnerID)
	tokKey := s.tokKey(c.Token)

	var out Credential
	err := s.retry(ctx, func() error {
		return s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			held, err := readRecord(ctx, tx, tokKey, c.Token)
			switch {
			case err == nil && held.OwnerID != c.OwnerID:
				return ErrConflict
			case err != nil && !errors.Is(err, ErrNotFound):
				return err
			}

			prev, err := tx.Get(ctx, ownKey).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			if prev != "" {
				if err := tx.Watch(ctx, s.tokKey(prev)).Err(); err != nil {
					return err
				}
			}

			deadline := s.keyDeadline(c.ExpiresAt)
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if prev != "" && prev != c.Token {
					pipe.Del(ctx, s.tokKey(prev))
				}
				pipe.HSet(ctx, tokKey,
					fieldOwner, c.OwnerID,
					fieldExpires, c.ExpiresAt.UnixMilli(),
				)
				pipe.PExpireAt(ctx, tokKey, deadline)
				pipe.Set(ctx, ownKey, c.Token, 0)
				pipe.PExpireAt(ctx, ownKey, deadline)
				return nil
			})
			if err != nil {
				return err
			}

			out = c
			return nil
		}, ownKey, tokKey)
	})
	return out, opErr("Save", s.kind, err)
}

// FindByOwner resolves the owner index and loads the record.
func (s *RedisStore) FindByOwner(ctx context.Context, ownerID string) (Credential, error) {
	defer s.opts.metrics.ObserveStoreOp(redisBackend, "find_by_owner", time.Now())

	token, err := s.rdb.Get(ctx, s.ownKey(ownerID)).Result()
	if errors.Is(err, redis.Nil) {
		return Credential{}, opErr("FindByOwner", s.kind, ErrNotFound)
	}
	if err != nil {
		return Credential{}, opErr("FindByOwner", s.kind, err)
	}

	c, err := readRecord(ctx, s.rdb, s.tokKey(token), token)
	if err == nil && c.OwnerID != ownerID {
		err = ErrNotFound
	}
	return c, opErr("FindByOwner", s.kind, err)
}

// FindByValue loads the record holding token.
func (s *RedisStore) FindByValue(ctx context.Context, token string) (Credential, error) {
	defer s.opts.metrics.ObserveStoreOp(redisBackend, "find_by_value", time.Now())

	c, err := readRecord(ctx, s.rdb, s.tokKey(token), token)
	return c, opErr("FindByValue", s.kind, err)
}

// UpdateExpiry slides the expiry under WATCH; it never moves backwards.
func (s *RedisStore) UpdateExpiry(ctx context.Context, token string, ttl time.Duration) (Credential, error) {
	defer s.opts.metrics.ObserveStoreOp(redisBackend, "update_expiry", time.Now())

	tokKey := s.tokKey(token)

	var out Credential
	err := s.retry(ctx, func() error {
		return s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			c, err := readRecord(ctx, tx, tokKey, token)
			if err != nil {
				return err
			}

			c.ExpiresAt = laterOf(c.ExpiresAt, ExpiryAfter(s.opts.now(), ttl))
			deadline := s.keyDeadline(c.ExpiresAt)

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, tokKey, fieldExpires, c.ExpiresAt.UnixMilli())
				pipe.PExpireAt(ctx, tokKey, deadline)
				pipe.PExpireAt(ctx, s.ownKey(c.OwnerID), deadline)
				return nil
			})
			if err != nil {
				return err
			}
			out = c
			return nil
		}, tokKey)
	})
	return out, opErr("UpdateExpiry", s.kind, err)
}

// Compact scans the token hashes and removes the ones expired before the grace
// cutoff. Key expiry normally gets there first; this catches keys written
// without a deadline.
func (s *RedisStore) Compact(ctx context.Context) (int, error) {
	defer s.opts.metrics.ObserveStoreOp(redisBackend, "compact", time.Now())

	cutoff := s.opts.cutoff()
	removed := 0

	iter := s.rdb.Scan(ctx, 0, s.tokKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		token := key[len(s.tokKey("")):]

		c, err := readRecord(ctx, s.rdb, key, token)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return removed, opErr("Compact", s.kind, err)
		}
		if !c.ExpiresAt.Before(cutoff) {
			continue
		}

		ownKey := s.ownKey(c.OwnerID)
		err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			cur, err := tx.Get(ctx, ownKey).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				if cur == token {
					pipe.Del(ctx, ownKey)
				}
				return nil
			})
			return err
		}, ownKey)
		if errors.Is(err, redis.TxFailedErr) {
			s.opts.metrics.StoreConflict(redisBackend)
			continue
		}
		if err != nil {
			return removed, opErr("Compact", s.kind, err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, opErr("Compact", s.kind, err)
	}
	return removed, nil
}

// retry reruns fn while the watched keys keep changing under it.
func (s *RedisStore) retry(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt < s.opts.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn()
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		s.opts.metrics.StoreConflict(redisBackend)
		s.opts.log.Debug("credential.redis.tx.retry", "kind", string(s.kind), "attempt", attempt+1)
	}
	return ErrConflict
}

type hashReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

func readRecord(ctx context.Context, r hashReader, key, token string) (Credential, error) {
	fields, err := r.HGetAll(ctx, key).Result()
	if err != nil {
		return Credential{}, err
	}
	if len(fields) == 0 || fields[fieldOwner] == "" {
		return Credential{}, ErrNotFound
	}

	exp, err := strconv.ParseInt(fields[fieldExpires], 10, 64)
	if err != nil {
		return Credential{}, fmt.Errorf("credential: bad expiry on %s: %w", key, err)
	}

	return Credential{
		Token:     token,
		OwnerID:   fields[fieldOwner],
		ExpiresAt: time.UnixMilli(exp).UTC(),
	}, nil
}
