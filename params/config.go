package params

import (
	"time"

	validator "gopkg.in/go-playground/validator.v9"
)

// Config holds everything the wallet core needs to reach the outside world:
// the algod node, the WalletConnect bridge/relay endpoints and the push
// notification backend.
type Config struct {
	// AlgodURL is the address of the algod REST endpoint.
	AlgodURL string `validate:"required,url"`

	// AlgodToken is the API token for algod. May be empty for public nodes.
	AlgodToken string

	// BridgeURL is the default WalletConnect v1 bridge. Pairing URIs carry
	// their own bridge parameter which takes precedence.
	BridgeURL string `validate:"required,url"`

	// RelayURL is the WalletConnect v2 relay websocket endpoint.
	RelayURL string `validate:"required,url"`

	// RelayProjectID identifies the wallet against the v2 relay.
	RelayProjectID string

	// PushBackendURL is the backend used to register sessions for push
	// notifications. Optional; sessions work without it in a degraded mode.
	PushBackendURL string `validate:"omitempty,url"`

	// MaxSessionRetries bounds reconnection attempts per session before the
	// session is surfaced as failed.
	MaxSessionRetries int `validate:"min=1"`

	// RequestTimeout applies to one-shot network operations.
	RequestTimeout time.Duration

	// SessionExpiry is the lifetime granted to new v2 sessions.
	SessionExpiry time.Duration
}

// NewDefaultConfig returns a config pointing at MainNet public endpoints.
func NewDefaultConfig() *Config {
	return &Config{
		AlgodURL:          "https://mainnet-api.algonode.cloud",
		BridgeURL:         "https://bridge.walletconnect.org",
		RelayURL:          "wss://relay.walletconnect.com",
		MaxSessionRetries: 5,
		RequestTimeout:    30 * time.Second,
		SessionExpiry:     7 * 24 * time.Hour,
	}
}

// Validate checks the config field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.SessionExpiry <= 0 {
		c.SessionExpiry = 7 * 24 * time.Hour
	}
	return nil
}
