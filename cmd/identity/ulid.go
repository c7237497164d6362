package identity

import (
	"time"

	"console/cmd/identity/ids"
)

// NewUserID returns a fresh ULID for a directory entry.
func NewUserID(now time.Time) (string, error) {
	return ids.NewULID(now)
}
