package params

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	t.Run("missing_algod_url", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.AlgodURL = ""
		require.Error(t, cfg.Validate())
	})

	t.Run("malformed_push_backend_url", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.PushBackendURL = "not-a-url"
		require.Error(t, cfg.Validate())
	})

	t.Run("empty_push_backend_allowed", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.PushBackendURL = ""
		require.NoError(t, cfg.Validate())
	})

	t.Run("zero_retries_rejected", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.MaxSessionRetries = 0
		require.Error(t, cfg.Validate())
	})

	t.Run("zero_durations_defaulted", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.RequestTimeout = 0
		cfg.SessionExpiry = 0
		require.NoError(t, cfg.Validate())
		require.Equal(t, 30*time.Second, cfg.RequestTimeout)
		require.Equal(t, 7*24*time.Hour, cfg.SessionExpiry)
	})
}
