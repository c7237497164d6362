package credential

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

// isoMillis is the timestamp layout of persisted collections: UTC, millisecond
// precision, literal Z.
const isoMillis = "2006-01-02T15:04:05.000Z"

// fileRecord is the persisted shape of one credential.
type fileRecord struct {
	Token   string    `json:"token"`
	UserID  string    `json:"userId"`
	Expires timestamp `json:"expires"`
}

type timestamp time.Time

func (t timestamp) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(time.Time(t).UTC().Format(isoMillis))), nil
}

// UnmarshalJSON accepts RFC 3339 strings and epoch milliseconds.
func (t *timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return errors.New("missing timestamp")
	}
	if b[0] != '"' {
		ms, err := strconv.ParseInt(string(b), 10, 64)
		if err != nil {
			return err
		}
		*t = timestamp(time.UnixMilli(ms).UTC())
		return nil
	}
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	*t = timestamp(parsed.UTC())
	return nil
}

// DecodeCollection parses a persisted collection. Empty input is an empty
// collection.
func DecodeCollection(raw []byte) ([]Credential, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return []Credential{}, nil
	}

	var recs []fileRecord
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, err
	}

	out := make([]Credential, 0, len(recs))
	for _, r := range recs {
		out = append(out, Credential{
			Token:     r.Token,
			OwnerID:   r.UserID,
			ExpiresAt: time.Time(r.Expires),
		})
	}
	return out, nil
}

// EncodeCollection renders creds as a two-space indented JSON array with keys
// in token, userId, expires order and millisecond UTC timestamps. Decoding and
// re-encoding its own output reproduces it byte for byte; other inputs (keys
// in another order, epoch millisecond expiries, different spacing) come back
// in that canonical form.
func EncodeCollection(creds []Credential) ([]byte, error) {
	recs := make([]fileRecord, 0, len(creds))
	for _, c := range creds {
		recs = append(recs, fileRecord{
			Token:   c.Token,
			UserID:  c.OwnerID,
			Expires: timestamp(c.ExpiresAt),
		})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(recs); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
