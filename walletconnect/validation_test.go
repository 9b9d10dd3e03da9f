package walletconnect

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateSessionRequestID(t *testing.T) {
	v := NewValidator()

	t.Run("malformed_ids_rejected", func(t *testing.T) {
		for _, id := range []int64{0, -1, 1, 42, 999_999_999_999} {
			require.False(t, v.ValidateSessionRequestID("topic", id), "id %d", id)
		}
	})

	t.Run("well_formed_id_accepted_once", func(t *testing.T) {
		const id = int64(1_700_000_000_000_001)
		require.True(t, v.ValidateSessionRequestID("topic", id))
		// Replay of the same id on the same topic.
		require.False(t, v.ValidateSessionRequestID("topic", id))
		// Same id on a different topic is a different request.
		require.True(t, v.ValidateSessionRequestID("other", id))
	})
}

func TestValidateTransactionRequestID(t *testing.T) {
	v := NewValidator()
	const id = int64(1_700_000_000_000_002)

	// Not outstanding yet.
	require.False(t, v.ValidateTransactionRequestID("topic", id))

	v.Track(Request{ID: id, Topic: "topic", Method: "algo_signTxn"})
	require.True(t, v.ValidateTransactionRequestID("topic", id))
	require.False(t, v.ValidateTransactionRequestID("other", id))

	// Malformed ids never pass, tracked or not.
	v.Track(Request{ID: 7, Topic: "topic"})
	require.False(t, v.ValidateTransactionRequestID("topic", 7))
}

func TestResolveOutstanding(t *testing.T) {
	v := NewValidator()
	const id = int64(1_700_000_000_000_003)

	v.Track(Request{ID: id, Topic: "topic", Method: "algo_signTxn"})
	require.Len(t, v.Outstanding("topic"), 1)
	require.Empty(t, v.Outstanding("other"))

	req, ok := v.Resolve("topic", id)
	require.True(t, ok)
	require.Equal(t, id, req.ID)
	require.Empty(t, v.Outstanding("topic"))

	// A second resolve of the same id reports stale.
	_, ok = v.Resolve("topic", id)
	require.False(t, ok)
}
