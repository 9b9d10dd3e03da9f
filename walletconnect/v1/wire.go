package v1

import (
	"encoding/json"
	"time"
)

// Bridge relay message types.
const (
	messageTypePub = "pub"
	messageTypeSub = "sub"
	messageTypeAck = "ack"
)

// v1 protocol methods.
const (
	methodSessionRequest = "wc_sessionRequest"
	methodSessionUpdate  = "wc_sessionUpdate"
)

// bridgeMessage is the frame the bridge relays between peers. Payload is an
// encryptedPayload JSON string for pub messages, empty for sub/ack.
type bridgeMessage struct {
	Topic   string `json:"topic"`
	Type    string `json:"type"`
	Payload string `json:"payload"`
	Silent  bool   `json:"silent"`
}

func (m *bridgeMessage) marshal() []byte {
	b, _ := json.Marshal(m)
	return b
}

type rpcRequest struct {
	ID      int64             `json:"id"`
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type rpcResponse struct {
	ID      int64       `json:"id"`
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result"`
}

type rpcErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcError struct {
	ID      int64        `json:"id"`
	JSONRPC string       `json:"jsonrpc"`
	Error   rpcErrorBody `json:"error"`
}

// clientMeta mirrors the v1 peerMeta object.
type clientMeta struct {
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Icons       []string `json:"icons"`
	Name        string   `json:"name"`
}

// sessionRequestParams is the first params entry of wc_sessionRequest.
type sessionRequestParams struct {
	PeerID   string     `json:"peerId"`
	PeerMeta clientMeta `json:"peerMeta"`
	ChainID  *int64     `json:"chainId"`
}

// sessionApproval is the result object answering wc_sessionRequest.
type sessionApproval struct {
	Approved bool       `json:"approved"`
	ChainID  int64      `json:"chainId"`
	Accounts []string   `json:"accounts"`
	PeerID   string     `json:"peerId"`
	PeerMeta clientMeta `json:"peerMeta"`
}

// sessionUpdate is the params entry of wc_sessionUpdate; approved=false
// signals disconnect.
type sessionUpdate struct {
	Approved bool     `json:"approved"`
	ChainID  *int64   `json:"chainId"`
	Accounts []string `json:"accounts"`
}

// payloadID mints JSON-RPC ids the way v1 clients do, from the current time
// in microseconds.
func payloadID() int64 {
	return time.Now().UnixNano() / 1000
}
