package session

import (
	"strings"
	"testing"
	"time"

	paseto "aidanwoods.dev/go-paseto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCodecs(t *testing.T) map[string]Codec {
	t.Helper()

	cfg := DefaultConfig()
	cfg.PasetoV4SecretKeyHex = paseto.NewV4AsymmetricSecretKey().ExportHex()
	cfg.JWTSecret = strings.Repeat("s", 32)

	pc, err := NewPasetoCodec(cfg)
	require.NoError(t, err)
	jc, err := NewJWTCodec(cfg)
	require.NoError(t, err)
	return map[string]Codec{CodecPaseto: pc, CodecJWT: jc}
}

func sampleRecord(now time.Time) Record {
	return Record{
		OwnerID:             "u1",
		AccessToken:         "a-1",
		RefreshToken:        "r-1",
		AccessTokenExpires:  now.Add(30 * time.Second).UnixMilli(),
		RefreshTokenExpires: now.Add(7 * 24 * time.Hour).UnixMilli(),
		User:                &Identity{ID: "u1", Name: "A", Email: "a@x.com"},
	}
}

func TestCodecRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	for name, c := range testCodecs(t) {
		t.Run(name, func(t *testing.T) {
			in := sampleRecord(now)

			tok, err := c.Encode(in, now)
			require.NoError(t, err)

			out, err := c.Decode(tok, now.Add(time.Minute))
			require.NoError(t, err)
			assert.Equal(t, in, out)
		})
	}
}

func TestCodecOpensAfterAccessExpiry(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	for name, c := range testCodecs(t) {
		t.Run(name, func(t *testing.T) {
			tok, err := c.Encode(sampleRecord(now), now)
			require.NoError(t, err)

			// Access token long expired, refresh still alive.
			_, err = c.Decode(tok, now.Add(24*time.Hour))
			require.NoError(t, err)

			_, err = c.Decode(tok, now.Add(8*24*time.Hour))
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestCodecRejectsTampering(t *testing.T) {
	now := time.Now().UTC()
	for name, c := range testCodecs(t) {
		t.Run(name, func(t *testing.T) {
			_, err := c.Decode("garbage", now)
			require.ErrorIs(t, err, ErrInvalidToken)

			tok, err := c.Encode(sampleRecord(now), now)
			require.NoError(t, err)
			_, err = c.Decode(tok[:len(tok)-4]+"AAAA", now)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestCodecRejectsOtherIssuer(t *testing.T) {
	now := time.Now().UTC()

	cfg := DefaultConfig()
	cfg.PasetoV4SecretKeyHex = paseto.NewV4AsymmetricSecretKey().ExportHex()
	cfg.JWTSecret = strings.Repeat("s", 32)
	other := cfg
	other.Issuer = "someone-else"

	for _, build := range []func(Config) (Codec, error){NewPasetoCodec, NewJWTCodec} {
		a, err := build(cfg)
		require.NoError(t, err)
		b, err := build(other)
		require.NoError(t, err)

		tok, err := b.Encode(sampleRecord(now), now)
		require.NoError(t, err)
		_, err = a.Decode(tok, now)
		require.ErrorIs(t, err, ErrInvalidToken)
	}
}

func TestNewCodecSelects(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Codec = "nope"
	_, err := NewCodec(cfg)
	require.ErrorIs(t, err, ErrConfig)

	cfg.Codec = CodecPaseto
	cfg.PasetoV4SecretKeyHex = "zz"
	_, err = NewCodec(cfg)
	require.ErrorIs(t, err, ErrConfig)
}
