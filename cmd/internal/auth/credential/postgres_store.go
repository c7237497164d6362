package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresBackend = "postgres"

// PostgresStore implements Store on console.access_tokens / console.refresh_tokens.
type PostgresStore struct {
	pool  *pgxpool.Pool
	kind  Kind
	table string
	opts  options
}

// NewPostgresStore creates a Postgres-backed store for kind. Run Migrate first.
func NewPostgresStore(pool *pgxpool.Pool, kind Kind, opts ...Option) (*PostgresStore, error) {
	if pool == nil || !kind.valid() {
		return nil, opErr("NewPostgresStore", kind, ErrInvalidInput)
	}
	return &PostgresStore{
		pool:  pool,
		kind:  kind,
		table: tableName(kind),
		opts:  buildOptions(opts),
	}, nil
}

func tableName(kind Kind) string {
	return "console." + string(kind) + "_tokens"
}

// Save upserts c by owner in one statement. A token already held by another
// owner violates the primary key and maps to ErrConflict.
func (s *PostgresStore) Save(ctx context.Context, c Credential) (Credential, error) {
	defer s.opts.metrics.ObserveStoreOp(postgresBackend, "save", time.Now())

	if c.Token == "" || c.OwnerID == "" {
		return Credential{}, opErr("Save", s.kind, ErrInvalidInput)
	}

	var out Credential
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO %s (token, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET token = EXCLUDED.token,
		    expires_at = EXCLUDED.expires_at
		RETURNING token, user_id, expires_at
	`, s.table), c.Token, c.OwnerID, c.ExpiresAt.UTC().Truncate(time.Millisecond)).Scan(
		&out.Token,
		&out.OwnerID,
		&out.ExpiresAt,
	)
	if isUniqueViolation(err) {
		s.opts.metrics.StoreConflict(postgresBackend)
		return Credential{}, opErr("Save", s.kind, ErrConflict)
	}
	if err != nil {
		return Credential{}, opErr("Save", s.kind, err)
	}
	out.ExpiresAt = out.ExpiresAt.UTC()

	if s.opts.compactOnWrite() {
		if _, err := s.deleteExpired(ctx); err != nil {
			s.opts.log.Warn("credential.postgres.compact.fail", "kind", string(s.kind), "err", err)
		}
	}
	return out, nil
}

// FindByOwner returns the record owned by ownerID.
func (s *PostgresStore) FindByOwner(ctx context.Context, ownerID string) (Credential, error) {
	defer s.opts.metrics.ObserveStoreOp(postgresBackend, "find_by_owner", time.Now())
	out, err := s.queryOne(ctx, "user_id", ownerID)
	return out, opErr("FindByOwner", s.kind, err)
}

// FindByValue returns the record holding token.
func (s *PostgresStore) FindByValue(ctx context.Context, token string) (Credential, error) {
	defer s.opts.metrics.ObserveStoreOp(postgresBackend, "find_by_value", time.Now())
	out, err := s.queryOne(ctx, "token", token)
	return out, opErr("FindByValue", s.kind, err)
}

// UpdateExpiry slides the expiry with GREATEST so it never moves backwards.
func (s *PostgresStore) UpdateExpiry(ctx context.Context, token string, ttl time.Duration) (Credential, error) {
	defer s.opts.metrics.ObserveStoreOp(postgresBackend, "update_expiry", time.Now())

	var out Credential
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE %s
		SET expires_at = GREATEST(expires_at, $2)
		WHERE token = $1
		RETURNING token, user_id, expires_at
	`, s.table), token, ExpiryAfter(s.opts.now(), ttl)).Scan(
		&out.Token,
		&out.OwnerID,
		&out.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Credential{}, opErr("UpdateExpiry", s.kind, ErrNotFound)
	}
	if err != nil {
		return Credential{}, opErr("UpdateExpiry", s.kind, err)
	}
	out.ExpiresAt = out.ExpiresAt.UTC()
	return out, nil
}

// Compact deletes rows expired before the grace cutoff.
func (s *PostgresStore) Compact(ctx context.Context) (int, error) {
	defer s.opts.metrics.ObserveStoreOp(postgresBackend, "compact", time.Now())
	n, err := s.deleteExpired(ctx)
	if err != nil {
		return 0, opErr("Compact", s.kind, err)
	}
	return n, nil
}

func (s *PostgresStore) deleteExpired(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
		DELETE FROM %s
		WHERE expires_at < $1
	`, s.table), s.opts.cutoff())
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) queryOne(ctx context.Context, column, value string) (Credential, error) {
	var out Credential
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT token, user_id, expires_at
		FROM %s
		WHERE %s = $1
	`, s.table, column), value).Scan(
		&out.Token,
		&out.OwnerID,
		&out.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Credential{}, ErrNotFound
	}
	if err != nil {
		return Credential{}, err
	}
	out.ExpiresAt = out.ExpiresAt.UTC()
	return out, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
