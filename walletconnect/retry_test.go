package walletconnect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetryCounterBounds(t *testing.T) {
	r := NewRetryCounter(3)

	var prev time.Duration
	for i := 1; i <= 3; i++ {
		delay, err := r.Next("topic")
		require.NoError(t, err)
		require.GreaterOrEqual(t, delay, prev/2, "backoff should not shrink beyond jitter")
		require.Equal(t, i, r.Attempts("topic"))
		prev = delay
	}

	_, err := r.Next("topic")
	require.ErrorIs(t, err, ErrRetriesExhausted)
	require.Equal(t, 3, r.Attempts("topic"))

	// Topics do not share budgets.
	_, err = r.Next("other")
	require.NoError(t, err)
}

func TestRetryCounterReset(t *testing.T) {
	r := NewRetryCounter(2)

	_, err := r.Next("topic")
	require.NoError(t, err)
	_, err = r.Next("topic")
	require.NoError(t, err)
	_, err = r.Next("topic")
	require.ErrorIs(t, err, ErrRetriesExhausted)

	r.Reset("topic")
	require.Zero(t, r.Attempts("topic"))
	_, err = r.Next("topic")
	require.NoError(t, err)
}
