package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

type jwtClaims struct {
	Session Record `json:"session"`
	jwt.RegisteredClaims
}

type jwtCodec struct {
	issuer     string
	clockSkew  time.Duration
	refreshTTL time.Duration
	secret     []byte
}

// NewJWTCodec builds an HS256 JWT Codec.
func NewJWTCodec(cfg Config) (Codec, error) {
	if len(cfg.JWTSecret) < minJWTSecretBytes {
		return nil, ErrConfig
	}
	return &jwtCodec{
		issuer:     cfg.Issuer,
		clockSkew:  cfg.ClockSkew,
		refreshTTL: cfg.RefreshTokenTTL,
		secret:     []byte(cfg.JWTSecret),
	}, nil
}

func (c *jwtCodec) Encode(r Record, now time.Time) (string, error) {
	claims := jwtClaims{
		Session: r,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(containerExpiry(r, now, c.refreshTTL)),
			ID:        ulid.Make().String(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

func (c *jwtCodec) Decode(token string, now time.Time) (Record, error) {
	claims := &jwtClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(c.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return Record{}, ErrInvalidToken
	}
	return claims.Session, nil
}
