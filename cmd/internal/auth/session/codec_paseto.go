package session

import (
	"time"

	paseto "aidanwoods.dev/go-paseto"
	"github.com/oklog/ulid/v2"
)

const sessionClaim = "session"

type pasetoCodec struct {
	issuer     string
	clockSkew  time.Duration
	refreshTTL time.Duration

	secret paseto.V4AsymmetricSecretKey
	public paseto.V4AsymmetricPublicKey
}

// NewPasetoCodec builds a Codec based on PASETO v4.public.
//
// It uses an Ed25519 asymmetric keypair and enforces issuer and validity
// rules. Clock skew is applied during verification via ValidAt.
func NewPasetoCodec(cfg Config) (Codec, error) {
	secret, err := paseto.NewV4AsymmetricSecretKeyFromHex(cfg.PasetoV4SecretKeyHex)
	if err != nil {
		return nil, ErrConfig
	}
	return &pasetoCodec{
		issuer:     cfg.Issuer,
		clockSkew:  cfg.ClockSkew,
		refreshTTL: cfg.RefreshTokenTTL,
		secret:     secret,
		public:     secret.Public(),
	}, nil
}

func (c *pasetoCodec) Encode(r Record, now time.Time) (string, error) {
	tok := paseto.NewToken()
	tok.SetIssuer(c.issuer)
	tok.SetIssuedAt(now)
	tok.SetNotBefore(now)
	tok.SetExpiration(containerExpiry(r, now, c.refreshTTL))
	tok.SetJti(ulid.Make().String())

	if err := tok.Set(sessionClaim, r); err != nil {
		return "", err
	}
	return tok.V4Sign(c.secret, nil), nil
}

func (c *pasetoCodec) Decode(token string, now time.Time) (Record, error) {
	// Fresh parser per call so rules do not accumulate.
	p := paseto.NewParserWithoutExpiryCheck()
	p.AddRule(paseto.IssuedBy(c.issuer))
	p.AddRule(paseto.ValidAt(now.Add(c.clockSkew)))

	parsed, err := p.ParseV4Public(c.public, token, nil)
	if err != nil {
		return Record{}, ErrInvalidToken
	}

	var r Record
	if err := parsed.Get(sessionClaim, &r); err != nil {
		return Record{}, ErrInvalidToken
	}
	return r, nil
}
