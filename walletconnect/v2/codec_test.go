package v2

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	topic, err := randomTopic()
	require.NoError(t, err)
	key, err := hex.DecodeString(topic)
	require.NoError(t, err)
	require.Len(t, key, 32)

	plaintext := []byte(`{"id":1,"jsonrpc":"2.0","method":"wc_sessionPropose"}`)
	sealed, err := seal(plaintext, key)
	require.NoError(t, err)

	got, err := open(sealed, key)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)

	// Every envelope carries a fresh nonce.
	again, err := seal(plaintext, key)
	require.NoError(t, err)
	require.NotEqual(t, sealed, again)
}

func TestOpenRejectsBadEnvelopes(t *testing.T) {
	key := make([]byte, 32)

	t.Run("wrong_key", func(t *testing.T) {
		sealed, err := seal([]byte("hello"), key)
		require.NoError(t, err)
		other := make([]byte, 32)
		other[0] = 1
		_, err = open(sealed, other)
		require.Error(t, err)
	})

	t.Run("not_base64", func(t *testing.T) {
		_, err := open("!!!", key)
		require.Error(t, err)
	})

	t.Run("too_short", func(t *testing.T) {
		_, err := open("AAAA", key)
		require.Error(t, err)
	})

	t.Run("bad_key_size", func(t *testing.T) {
		_, err := seal([]byte("hello"), key[:16])
		require.Error(t, err)
	})
}
