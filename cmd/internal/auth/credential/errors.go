package credential

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no record matches a lookup or update.
	ErrNotFound = errors.New("credential not found")

	// ErrConflict is returned when a token value already belongs to another owner,
	// or when optimistic concurrency retries are exhausted.
	ErrConflict = errors.New("credential conflict")

	// ErrInvalidInput is returned for empty tokens/owners or an unknown kind.
	ErrInvalidInput = errors.New("invalid credential input")
)

// OpError carries the failing operation and collection alongside a sentinel kind.
type OpError struct {
	Op   string
	Kind Kind
	Err  error
}

func (e OpError) Error() string {
	return fmt.Sprintf("credential.%s(%s): %v", e.Op, e.Kind, e.Err)
}

func (e OpError) Unwrap() error { return e.Err }

func opErr(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return OpError{Op: op, Kind: kind, Err: err}
}
