package credential

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCollection = `[
  {
    "token": "8f14e45f-ceea-467a-9af0-5a2e1d3c1b7d",
    "userId": "1",
    "expires": "2024-05-01T10:00:30.123Z"
  },
  {
    "token": "c9f0f895-fb98-4b91-8c3a-0d4d1e0b6f2a",
    "userId": "u<2>&",
    "expires": "2024-05-08T10:00:00.000Z"
  }
]`

func TestCollectionCanonicalRoundTripIsByteIdentical(t *testing.T) {
	creds, err := DecodeCollection([]byte(sampleCollection))
	require.NoError(t, err)
	require.Len(t, creds, 2)

	assert.Equal(t, "1", creds[0].OwnerID)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 30, 123e6, time.UTC), creds[0].ExpiresAt)

	out, err := EncodeCollection(creds)
	require.NoError(t, err)
	assert.Equal(t, sampleCollection, string(out))
}

func TestEncodeCollectionCanonicalizesForeignLayout(t *testing.T) {
	legacy := `[{"expires": 1714557630123, "token": "t1", "userId": "u1"},
{"userId":"u2","expires":"2024-05-08T12:00:00+02:00","token":"t2"}]`

	creds, err := DecodeCollection([]byte(legacy))
	require.NoError(t, err)
	require.Len(t, creds, 2)

	out, err := EncodeCollection(creds)
	require.NoError(t, err)
	assert.NotEqual(t, legacy, string(out))
	assert.Equal(t, `[
  {
    "token": "t1",
    "userId": "u1",
    "expires": "2024-05-01T10:00:30.123Z"
  },
  {
    "token": "t2",
    "userId": "u2",
    "expires": "2024-05-08T10:00:00.000Z"
  }
]`, string(out))

	// Once canonical, the layout is stable.
	again, err := DecodeCollection(out)
	require.NoError(t, err)
	out2, err := EncodeCollection(again)
	require.NoError(t, err)
	assert.Equal(t, string(out), string(out2))
}

func TestDecodeCollectionEmptyInput(t *testing.T) {
	for _, raw := range []string{"", "  \n", "[]"} {
		creds, err := DecodeCollection([]byte(raw))
		require.NoError(t, err, "input %q", raw)
		assert.Empty(t, creds, "input %q", raw)
	}
}

func TestDecodeCollectionAcceptsEpochMillis(t *testing.T) {
	creds, err := DecodeCollection([]byte(`[{"token":"t","userId":"u","expires":1714557630123}]`))
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, int64(1714557630123), creds[0].ExpiresAtMillis())
}

func TestDecodeCollectionRejectsGarbage(t *testing.T) {
	_, err := DecodeCollection([]byte(`{"token":`))
	require.Error(t, err)
}

func TestEncodeCollectionEmpty(t *testing.T) {
	out, err := EncodeCollection(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(out))
}
