package walletconnect

import (
	"encoding/json"
	"time"
)

// Version selects which protocol adapter owns a session.
type Version string

const (
	Version1 Version = "1"
	Version2 Version = "2"
)

// Metadata describes the peer dApp.
type Metadata struct {
	Name        string   `json:"name"`
	URL         string   `json:"url"`
	Description string   `json:"description"`
	Icons       []string `json:"icons"`
}

// Namespace is the per-chain permission set agreed at approval time.
// Accounts are in CAIP-10 form, e.g. "algorand:<genesis>:<address>".
type Namespace struct {
	Accounts []string `json:"accounts"`
	Methods  []string `json:"methods"`
	Events   []string `json:"events"`
}

// ProposedNamespace is what the dApp asks for, before intersection with
// wallet capabilities.
type ProposedNamespace struct {
	Chains  []string `json:"chains"`
	Methods []string `json:"methods"`
	Events  []string `json:"events"`
}

// RelayInfo carries the transport parameters needed to re-establish the
// session connection after a restart.
type RelayInfo struct {
	// BridgeURL is set for v1 sessions.
	BridgeURL string `json:"bridge,omitempty"`
	// SymKey is the hex encoded symmetric key protecting session messages.
	SymKey string `json:"symKey,omitempty"`
	// PeerID is the v1 peer client id; ClientID is ours.
	PeerID   string `json:"peerId,omitempty"`
	ClientID string `json:"clientId,omitempty"`
}

// Session is a persisted, approved peer connection.
type Session struct {
	Topic      string               `json:"topic"`
	Version    Version              `json:"version"`
	Peer       Metadata             `json:"peer"`
	Namespaces map[string]Namespace `json:"namespaces"`
	Relay      RelayInfo            `json:"relay"`
	Created    time.Time            `json:"created"`
	// Expiry is a unix timestamp; zero means the session does not expire
	// (v1 sessions).
	Expiry     int64 `json:"expiry,omitempty"`
	Subscribed bool  `json:"subscribed"`

	// Connected is the transient transport state; never persisted.
	Connected bool `json:"-"`
}

// Expired reports whether a v2 session's expiry is in the past. Expired
// sessions are treated as disconnected even when still stored.
func (s *Session) Expired(now time.Time) bool {
	return s.Version == Version2 && s.Expiry > 0 && s.Expiry < now.Unix()
}

// Accounts returns every CAIP-10 account across the session namespaces.
func (s *Session) Accounts() []string {
	var out []string
	for _, ns := range s.Namespaces {
		out = append(out, ns.Accounts...)
	}
	return out
}

// ReferencesAddress reports whether any namespace account ends in the given
// bare address.
func (s *Session) ReferencesAddress(address string) bool {
	for _, acc := range s.Accounts() {
		if caip10Address(acc) == address {
			return true
		}
	}
	return false
}

// Proposal is an ephemeral pairing request. It is consumed within one
// approval or rejection round-trip and never stored.
type Proposal struct {
	ID                 int64                        `json:"id"`
	PairingTopic       string                       `json:"pairingTopic"`
	ProposerPublicKey  string                       `json:"proposerPublicKey"`
	Peer               Metadata                     `json:"peer"`
	RequiredNamespaces map[string]ProposedNamespace `json:"requiredNamespaces"`
	Version            Version                      `json:"version"`
	Relay              RelayInfo                    `json:"relay"`
}

// Request is an inbound signing request tied to a session.
type Request struct {
	ID     int64           `json:"id"`
	Topic  string          `json:"topic"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`

	// ShouldWarn marks requests whose decoded transactions carry close-to
	// or rekey-to fields; the approval UI must call these out.
	ShouldWarn bool `json:"shouldWarn,omitempty"`

	// Origin is the protocol adapter that delivered the request. It lets a
	// reply reach the peer even when no stored session matches the topic.
	Origin Version `json:"-"`
}
