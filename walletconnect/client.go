package walletconnect

import (
	"context"

	"github.com/pkg/errors"
)

// Session-level errors shared by both adapters.
var (
	ErrorChainsNotSupported = errors.New("chains not supported")
	ErrorMethodNotSupported = errors.New("method not supported")
	ErrSessionNotFound      = errors.New("session not found")
	ErrProposalConsumed     = errors.New("proposal already consumed")
	ErrNotConnected         = errors.New("session transport is not connected")
)

// JSON-RPC error codes sent to peers.
const (
	ErrorCodeInvalidRequest = -32600
	ErrorCodeUserRejected   = 4001
	ErrorCodeUnsupported    = 4200
)

// Handler receives adapter-originated events: inbound signing requests and
// peer-initiated disconnects. Implemented by the Manager.
type Handler interface {
	HandleRequest(req Request)
	HandlePeerDisconnect(topic string)
}

// Client is the protocol-version-specific capability surface. Two concrete
// adapters implement it, one per wire protocol; the version tag on each
// session selects which adapter handles its operations.
type Client interface {
	// SetHandler wires inbound traffic to the manager. Must be called
	// before any session operation.
	SetHandler(h Handler)

	// Pair opens the transport named by the URI and waits for the peer's
	// session proposal.
	Pair(ctx context.Context, uri *PairingURI) (*Proposal, error)

	// ApproveSession settles the proposal with the given namespaces and
	// returns the established session. expiry is a unix timestamp, zero
	// for protocols without expiry.
	ApproveSession(ctx context.Context, proposal *Proposal, namespaces map[string]Namespace, expiry int64) (*Session, error)

	// RejectSession answers the proposal negatively. No persisted effect.
	RejectSession(ctx context.Context, proposal *Proposal, reason string) error

	// ApproveRequest sends a JSON-RPC result for an inbound request.
	ApproveRequest(ctx context.Context, session *Session, id int64, result interface{}) error

	// RejectRequest sends a JSON-RPC error for an inbound request.
	RejectRequest(ctx context.Context, session *Session, id int64, code int, message string) error

	// Disconnect tears down the transport and tells the peer. Must be
	// idempotent.
	Disconnect(ctx context.Context, session *Session) error

	// Connect re-establishes the transport for a stored session, e.g.
	// after an app restart.
	Connect(ctx context.Context, session *Session) error

	// Extend refreshes the session expiry on the peer.
	Extend(ctx context.Context, session *Session, expiry int64) error

	// Ping verifies transport liveness.
	Ping(ctx context.Context, session *Session) error

	// Close drops every open transport and stops the adapter's read loops.
	// Called once on manager teardown.
	Close() error
}
