package session

import "errors"

// ErrorRefreshAccessToken is the Record.Error tag of a session whose refresh
// failed.
const ErrorRefreshAccessToken = "RefreshAccessTokenError"

var (
	// ErrInvalidToken is returned when a session container fails verification or validation.
	ErrInvalidToken = errors.New("invalid token")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
