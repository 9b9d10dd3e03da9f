package v2

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/algoline/wallet-core/walletconnect"
)

const (
	relayProtocolName   = "irn"
	defaultWriteTimeout = 10 * time.Second
	pairTimeout         = 5 * time.Minute
)

// Client is the WalletConnect v2 adapter: a sign-protocol client speaking
// JSON-RPC to a shared relay, with per-topic symmetric envelope encryption.
type Client struct {
	relayURL  string
	projectID string
	meta      walletconnect.Metadata
	handler   walletconnect.Handler
	logger    *zap.Logger

	mu        sync.Mutex
	ws        *websocket.Conn
	writeMu   sync.Mutex
	keys      map[string][]byte
	proposals map[string]chan *walletconnect.Proposal
	done      chan struct{}
}

var _ walletconnect.Client = (*Client)(nil)

func NewClient(relayURL, projectID string, meta walletconnect.Metadata, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		relayURL:  relayURL,
		projectID: projectID,
		meta:      meta,
		logger:    logger.Named("wc.v2"),
		keys:      make(map[string][]byte),
		proposals: make(map[string]chan *walletconnect.Proposal),
	}
}

func (c *Client) SetHandler(h walletconnect.Handler) {
	c.handler = h
}

// Pair subscribes to the pairing topic from the URI and waits for the
// peer's session proposal.
func (c *Client) Pair(ctx context.Context, uri *walletconnect.PairingURI) (*walletconnect.Proposal, error) {
	key, err := hex.DecodeString(uri.SymKey)
	if err != nil || len(key) != 32 {
		return nil, errors.Wrap(walletconnect.ErrMalformedPairingURL, "v2 symKey must be 32 hex bytes")
	}
	if uri.RelayProtocol != relayProtocolName {
		return nil, errors.Wrapf(walletconnect.ErrMalformedPairingURL,
			"unsupported relay protocol %q", uri.RelayProtocol)
	}

	if err := c.ensureConn(ctx); err != nil {
		return nil, err
	}

	waiter := make(chan *walletconnect.Proposal, 1)
	c.mu.Lock()
	c.keys[uri.Topic] = key
	c.proposals[uri.Topic] = waiter
	c.mu.Unlock()

	if err := c.subscribe(uri.Topic); err != nil {
		return nil, err
	}

	timeout := pairTimeout
	if d, ok := ctx.Deadline(); ok {
		timeout = time.Until(d)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, errors.New("timed out waiting for session proposal")
	case proposal := <-waiter:
		proposal.Relay = walletconnect.RelayInfo{SymKey: uri.SymKey}
		return proposal, nil
	}
}

// ApproveSession answers the proposal, settles the session on a fresh topic
// and announces the agreed namespaces.
func (c *Client) ApproveSession(ctx context.Context, proposal *walletconnect.Proposal,
	namespaces map[string]walletconnect.Namespace, expiry int64) (*walletconnect.Session, error) {

	c.mu.Lock()
	pairingKey, ok := c.keys[proposal.PairingTopic]
	c.mu.Unlock()
	if !ok {
		return nil, walletconnect.ErrProposalConsumed
	}

	sessionTopic, err := randomTopic()
	if err != nil {
		return nil, err
	}
	responderKey, err := randomKeyHex()
	if err != nil {
		return nil, err
	}

	// The session inherits the pairing key; key rotation via ECDH is not
	// required by the relay for symmetric-only wallets.
	c.mu.Lock()
	c.keys[sessionTopic] = pairingKey
	c.mu.Unlock()

	approval := signResponse{
		ID:      proposal.ID,
		JSONRPC: "2.0",
		Result: sessionProposeResponse{
			Relay:              relayInfo{Protocol: relayProtocolName},
			ResponderPublicKey: responderKey,
		},
	}
	if err := c.publish(proposal.PairingTopic, approval, ttlSessionSettle); err != nil {
		return nil, err
	}

	if err := c.subscribe(sessionTopic); err != nil {
		return nil, err
	}

	settled := make(map[string]settledNamespace, len(namespaces))
	for key, ns := range namespaces {
		settled[key] = settledNamespace{Accounts: ns.Accounts, Methods: ns.Methods, Events: ns.Events}
	}
	settleParams, err := json.Marshal(sessionSettleParams{
		Relay: relayInfo{Protocol: relayProtocolName},
		Controller: proposer{
			PublicKey: responderKey,
			Metadata: metadata{
				Name:        c.meta.Name,
				Description: c.meta.Description,
				URL:         c.meta.URL,
				Icons:       c.meta.Icons,
			},
		},
		Namespaces: settled,
		Expiry:     expiry,
	})
	if err != nil {
		return nil, err
	}
	settle := signRequest{ID: rpcID(), JSONRPC: "2.0", Method: methodSessionSettle, Params: settleParams}
	if err := c.publish(sessionTopic, settle, ttlSessionSettle); err != nil {
		return nil, err
	}

	return &walletconnect.Session{
		Topic:      sessionTopic,
		Version:    walletconnect.Version2,
		Peer:       proposal.Peer,
		Namespaces: namespaces,
		Expiry:     expiry,
		Relay: walletconnect.RelayInfo{
			SymKey: hex.EncodeToString(pairingKey),
		},
	}, nil
}

// RejectSession answers the proposal with a user-rejected error.
func (c *Client) RejectSession(ctx context.Context, proposal *walletconnect.Proposal, reason string) error {
	c.mu.Lock()
	_, ok := c.keys[proposal.PairingTopic]
	c.mu.Unlock()
	if !ok {
		return walletconnect.ErrProposalConsumed
	}
	defer c.forgetTopic(proposal.PairingTopic)

	rejection := signError{
		ID:      proposal.ID,
		JSONRPC: "2.0",
		Error:   signErrorBody{Code: walletconnect.ErrorCodeUserRejected, Message: reason},
	}
	return c.publish(proposal.PairingTopic, rejection, ttlSessionSettle)
}

func (c *Client) ApproveRequest(ctx context.Context, session *walletconnect.Session, id int64, result interface{}) error {
	return c.publish(session.Topic, signResponse{ID: id, JSONRPC: "2.0", Result: result}, ttlSessionMessage)
}

func (c *Client) RejectRequest(ctx context.Context, session *walletconnect.Session, id int64, code int, message string) error {
	return c.publish(session.Topic, signError{
		ID:      id,
		JSONRPC: "2.0",
		Error:   signErrorBody{Code: code, Message: message},
	}, ttlSessionMessage)
}

// Disconnect tells the peer the session is over and forgets its key.
// Unknown topics are a no-op.
func (c *Client) Disconnect(ctx context.Context, session *walletconnect.Session) error {
	c.mu.Lock()
	_, known := c.keys[session.Topic]
	c.mu.Unlock()
	if !known {
		return nil
	}
	defer c.forgetTopic(session.Topic)

	params, _ := json.Marshal(sessionDeleteParams{
		Code:    6000,
		Message: "user disconnected",
	})
	request := signRequest{ID: rpcID(), JSONRPC: "2.0", Method: methodSessionDelete, Params: params}
	if err := c.publish(session.Topic, request, ttlSessionMessage); err != nil {
		c.logger.Debug("session delete not delivered", zap.String("topic", session.Topic), zap.Error(err))
	}
	return nil
}

// Connect restores relay state for a stored session.
func (c *Client) Connect(ctx context.Context, session *walletconnect.Session) error {
	key, err := hex.DecodeString(session.Relay.SymKey)
	if err != nil || len(key) != 32 {
		return errors.New("stored session key does not decode")
	}
	if err := c.ensureConn(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	c.keys[session.Topic] = key
	c.mu.Unlock()
	return c.subscribe(session.Topic)
}

// Extend announces a refreshed expiry to the peer.
func (c *Client) Extend(ctx context.Context, session *walletconnect.Session, expiry int64) error {
	params, err := json.Marshal(sessionExtendParams{Expiry: expiry})
	if err != nil {
		return err
	}
	request := signRequest{ID: rpcID(), JSONRPC: "2.0", Method: methodSessionExtend, Params: params}
	return c.publish(session.Topic, request, ttlSessionMessage)
}

// Ping probes the session path through the relay.
func (c *Client) Ping(ctx context.Context, session *walletconnect.Session) error {
	request := signRequest{ID: rpcID(), JSONRPC: "2.0", Method: methodSessionPing, Params: json.RawMessage(`{}`)}
	return c.publish(session.Topic, request, ttlSessionMessage)
}

// Close drops the relay connection and stops the read loop. Closing a
// client that never connected is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	ws := c.ws
	done := c.done
	c.ws = nil
	c.done = nil
	c.mu.Unlock()

	if done != nil {
		close(done)
	}
	if ws != nil {
		return ws.Close()
	}
	return nil
}

func (c *Client) ensureConn(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws != nil {
		return nil
	}

	url := c.relayURL
	if c.projectID != "" {
		url += "?projectId=" + c.projectID
	}
	dialer := websocket.Dialer{}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return errors.Wrap(err, "dial relay")
	}
	c.ws = ws
	c.done = make(chan struct{})
	go c.readLoop(ws, c.done)
	return nil
}

func (c *Client) forgetTopic(topic string) {
	c.mu.Lock()
	delete(c.keys, topic)
	delete(c.proposals, topic)
	c.mu.Unlock()
}

func (c *Client) subscribe(topic string) error {
	params, err := json.Marshal(subscribeParams{Topic: topic})
	if err != nil {
		return err
	}
	return c.writeRelay(relayRequest{
		ID:      rpcID(),
		JSONRPC: "2.0",
		Method:  methodSubscribe,
		Params:  params,
	})
}

func (c *Client) publish(topic string, payload interface{}, ttl int) error {
	c.mu.Lock()
	key, ok := c.keys[topic]
	ws := c.ws
	c.mu.Unlock()
	if !ok {
		return walletconnect.ErrNotConnected
	}
	if ws == nil {
		return walletconnect.ErrNotConnected
	}

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	message, err := seal(plaintext, key)
	if err != nil {
		return err
	}
	params, err := json.Marshal(publishParams{Topic: topic, Message: message, TTL: ttl})
	if err != nil {
		return err
	}
	return c.writeRelay(relayRequest{
		ID:      rpcID(),
		JSONRPC: "2.0",
		Method:  methodPublish,
		Params:  params,
	})
}

func (c *Client) writeRelay(request relayRequest) error {
	data, err := json.Marshal(request)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return walletconnect.ErrNotConnected
	}
	if err := ws.SetWriteDeadline(time.Now().Add(defaultWriteTimeout)); err != nil {
		return err
	}
	return ws.WriteMessage(websocket.TextMessage, data)
}

// readLoop routes relay subscription frames to the right topic key and
// dispatches decrypted sign-protocol messages.
func (c *Client) readLoop(ws *websocket.Conn, done chan struct{}) {
	defer func() {
		c.mu.Lock()
		if c.ws == ws {
			c.ws = nil
		}
		c.mu.Unlock()
	}()

	for {
		select {
		case <-done:
			return
		default:
		}

		_, data, err := ws.ReadMessage()
		if err != nil {
			c.logger.Debug("relay read loop ended", zap.Error(err))
			return
		}
		if gjson.GetBytes(data, "method").String() != methodSubscription {
			// Relay acks and errors for our own calls; nothing to route.
			continue
		}

		var frame relayRequest
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		var sub subscriptionParams
		if err := json.Unmarshal(frame.Params, &sub); err != nil {
			c.logger.Warn("undecodable subscription frame", zap.Error(err))
			continue
		}

		c.mu.Lock()
		key, known := c.keys[sub.Data.Topic]
		c.mu.Unlock()
		if !known {
			continue
		}

		plaintext, err := open(sub.Data.Message, key)
		if err != nil {
			c.logger.Warn("failed to open envelope", zap.String("topic", sub.Data.Topic), zap.Error(err))
			continue
		}
		c.dispatch(sub.Data.Topic, plaintext)
	}
}

func (c *Client) dispatch(topic string, payload []byte) {
	method := gjson.GetBytes(payload, "method").String()
	switch method {
	case methodSessionPropose:
		var envelope struct {
			ID     int64                `json:"id"`
			Params sessionProposeParams `json:"params"`
		}
		if err := json.Unmarshal(payload, &envelope); err != nil {
			c.logger.Warn("undecodable session proposal", zap.Error(err))
			return
		}
		required := make(map[string]walletconnect.ProposedNamespace, len(envelope.Params.RequiredNamespaces))
		for key, ns := range envelope.Params.RequiredNamespaces {
			required[key] = walletconnect.ProposedNamespace{Chains: ns.Chains, Methods: ns.Methods, Events: ns.Events}
		}
		proposal := &walletconnect.Proposal{
			ID:                envelope.ID,
			PairingTopic:      topic,
			ProposerPublicKey: envelope.Params.Proposer.PublicKey,
			Peer: walletconnect.Metadata{
				Name:        envelope.Params.Proposer.Metadata.Name,
				URL:         envelope.Params.Proposer.Metadata.URL,
				Description: envelope.Params.Proposer.Metadata.Description,
				Icons:       envelope.Params.Proposer.Metadata.Icons,
			},
			RequiredNamespaces: required,
			Version:            walletconnect.Version2,
		}

		c.mu.Lock()
		waiter := c.proposals[topic]
		delete(c.proposals, topic)
		c.mu.Unlock()
		if waiter != nil {
			waiter <- proposal
		}

	case methodSessionRequest:
		var envelope struct {
			ID     int64                `json:"id"`
			Params sessionRequestParams `json:"params"`
		}
		if err := json.Unmarshal(payload, &envelope); err != nil {
			c.logger.Warn("undecodable session request", zap.Error(err))
			return
		}
		if c.handler != nil {
			c.handler.HandleRequest(walletconnect.Request{
				ID:     envelope.ID,
				Topic:  topic,
				Method: envelope.Params.Request.Method,
				Params: envelope.Params.Request.Params,
				Origin: walletconnect.Version2,
			})
		}

	case methodSessionDelete:
		c.forgetTopic(topic)
		if c.handler != nil {
			c.handler.HandlePeerDisconnect(topic)
		}

	case methodSessionPing:
		id := gjson.GetBytes(payload, "id").Int()
		if err := c.publish(topic, signResponse{ID: id, JSONRPC: "2.0", Result: true}, ttlSessionMessage); err != nil {
			c.logger.Debug("failed to answer ping", zap.String("topic", topic), zap.Error(err))
		}
	}
}
