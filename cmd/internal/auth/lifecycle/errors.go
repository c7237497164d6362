package lifecycle

import "errors"

var (
	// ErrMissingOwner is returned when a call carries no owner id.
	ErrMissingOwner = errors.New("lifecycle: missing owner id")

	// ErrInvalidGrant is returned for an ExternalGrant without an access token
	// or an unknown Grant implementation.
	ErrInvalidGrant = errors.New("lifecycle: invalid grant")
)
