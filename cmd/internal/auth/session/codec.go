package session

import "time"

// Codec seals a Record into the string handed to the client and opens it again.
type Codec interface {
	Encode(r Record, now time.Time) (string, error)
	// Decode returns ErrInvalidToken for anything that does not verify.
	Decode(token string, now time.Time) (Record, error)
}

// NewCodec builds the codec named by cfg.Codec.
func NewCodec(cfg Config) (Codec, error) {
	switch cfg.Codec {
	case CodecPaseto, "":
		return NewPasetoCodec(cfg)
	case CodecJWT:
		return NewJWTCodec(cfg)
	default:
		return nil, ErrConfig
	}
}

// containerExpiry is the refresh expiry, so a container whose access token
// lapsed still opens and can be refreshed.
func containerExpiry(r Record, now time.Time, fallback time.Duration) time.Time {
	if r.RefreshTokenExpires > now.UnixMilli() {
		return time.UnixMilli(r.RefreshTokenExpires)
	}
	return now.Add(fallback)
}
