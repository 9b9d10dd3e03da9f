package v2

import (
	"encoding/json"
	"math/rand"
	"time"
)

// Relay JSON-RPC methods.
const (
	methodSubscribe    = "irn_subscribe"
	methodPublish      = "irn_publish"
	methodSubscription = "irn_subscription"
)

// Sign protocol methods carried inside envelopes.
const (
	methodSessionPropose = "wc_sessionPropose"
	methodSessionSettle  = "wc_sessionSettle"
	methodSessionRequest = "wc_sessionRequest"
	methodSessionDelete  = "wc_sessionDelete"
	methodSessionExtend  = "wc_sessionExtend"
	methodSessionPing    = "wc_sessionPing"
)

// Relay message TTLs in seconds, per sign protocol conventions.
const (
	ttlSessionSettle  = 300
	ttlSessionMessage = 300
)

type relayRequest struct {
	ID      int64           `json:"id"`
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type subscribeParams struct {
	Topic string `json:"topic"`
}

type publishParams struct {
	Topic   string `json:"topic"`
	Message string `json:"message"`
	TTL     int    `json:"ttl"`
	Tag     int    `json:"tag"`
}

type subscriptionData struct {
	Topic   string `json:"topic"`
	Message string `json:"message"`
}

type subscriptionParams struct {
	ID   string           `json:"id"`
	Data subscriptionData `json:"data"`
}

type signRequest struct {
	ID      int64           `json:"id"`
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type signResponse struct {
	ID      int64       `json:"id"`
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result"`
}

type signErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type signError struct {
	ID      int64         `json:"id"`
	JSONRPC string        `json:"jsonrpc"`
	Error   signErrorBody `json:"error"`
}

type relayInfo struct {
	Protocol string `json:"protocol"`
}

type proposer struct {
	PublicKey string   `json:"publicKey"`
	Metadata  metadata `json:"metadata"`
}

type metadata struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Icons       []string `json:"icons"`
}

type proposedNamespace struct {
	Chains  []string `json:"chains"`
	Methods []string `json:"methods"`
	Events  []string `json:"events"`
}

type sessionProposeParams struct {
	Relays             []relayInfo                  `json:"relays"`
	Proposer           proposer                     `json:"proposer"`
	RequiredNamespaces map[string]proposedNamespace `json:"requiredNamespaces"`
	OptionalNamespaces map[string]proposedNamespace `json:"optionalNamespaces,omitempty"`
}

type settledNamespace struct {
	Accounts []string `json:"accounts"`
	Methods  []string `json:"methods"`
	Events   []string `json:"events"`
}

type sessionSettleParams struct {
	Relay      relayInfo                   `json:"relay"`
	Controller proposer                    `json:"controller"`
	Namespaces map[string]settledNamespace `json:"namespaces"`
	Expiry     int64                       `json:"expiry"`
}

type sessionProposeResponse struct {
	Relay              relayInfo `json:"relay"`
	ResponderPublicKey string    `json:"responderPublicKey"`
}

type sessionRequestParams struct {
	Request struct {
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	} `json:"request"`
	ChainID string `json:"chainId"`
}

type sessionDeleteParams struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type sessionExtendParams struct {
	Expiry int64 `json:"expiry"`
}

// rpcID mints ids the way v2 clients do: millisecond timestamp padded with
// three random digits.
func rpcID() int64 {
	return time.Now().UnixMilli()*1000 + rand.Int63n(1000)
}
