package v1

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/algoline/wallet-core/walletconnect"
)

const (
	defaultReadTimeout  = 5 * time.Minute
	defaultWriteTimeout = 10 * time.Second
)

// Client is the WalletConnect v1 adapter: custom JSON-RPC over a bridge
// relay, with per-session AES-CBC+HMAC payload encryption.
type Client struct {
	meta    walletconnect.Metadata
	chainID int64
	handler walletconnect.Handler
	logger  *zap.Logger

	mu      sync.Mutex
	conns   map[string]*bridgeConn
	pending map[string]*bridgeConn
}

var _ walletconnect.Client = (*Client)(nil)

func NewClient(meta walletconnect.Metadata, chainID int64, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		meta:    meta,
		chainID: chainID,
		logger:  logger.Named("wc.v1"),
		conns:   make(map[string]*bridgeConn),
		pending: make(map[string]*bridgeConn),
	}
}

func (c *Client) SetHandler(h walletconnect.Handler) {
	c.handler = h
}

// bridgeConn is one websocket connection to a bridge, scoped to a session.
type bridgeConn struct {
	ws        *websocket.Conn
	writeMu   sync.Mutex
	key       []byte
	bridgeURL string
	topic     string
	clientID  string
	peerID    string

	// handshakeID is the JSON-RPC id of the wc_sessionRequest awaiting our
	// approval response.
	handshakeID int64

	closeOnce sync.Once
	done      chan struct{}
}

func (bc *bridgeConn) close() {
	bc.closeOnce.Do(func() {
		close(bc.done)
		_ = bc.ws.Close()
	})
}

// Pair dials the bridge named in the URI, subscribes to the handshake topic
// and waits for the dApp's wc_sessionRequest.
func (c *Client) Pair(ctx context.Context, uri *walletconnect.PairingURI) (*walletconnect.Proposal, error) {
	key, err := hex.DecodeString(uri.Key)
	if err != nil || len(key) != 32 {
		return nil, errors.Wrap(walletconnect.ErrMalformedPairingURL, "v1 key must be 32 hex bytes")
	}

	conn, err := c.dial(ctx, uri.Bridge, uri.Topic, key)
	if err != nil {
		return nil, err
	}

	if err := conn.subscribe(uri.Topic); err != nil {
		conn.close()
		return nil, err
	}

	// The session request is the first pub frame on the handshake topic.
	payload, err := conn.readDecrypted(ctx)
	if err != nil {
		conn.close()
		return nil, errors.Wrap(err, "waiting for session request")
	}
	if gjson.GetBytes(payload, "method").String() != methodSessionRequest {
		conn.close()
		return nil, errors.New("peer sent an unexpected handshake method")
	}

	var envelope struct {
		ID     int64                  `json:"id"`
		Params []sessionRequestParams `json:"params"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil || len(envelope.Params) == 0 {
		conn.close()
		return nil, errors.New("session request params do not decode")
	}
	peer := envelope.Params[0]
	conn.handshakeID = envelope.ID
	conn.peerID = peer.PeerID

	c.mu.Lock()
	c.pending[uri.Topic] = conn
	c.mu.Unlock()

	return &walletconnect.Proposal{
		ID:                envelope.ID,
		PairingTopic:      uri.Topic,
		ProposerPublicKey: peer.PeerID,
		Peer: walletconnect.Metadata{
			Name:        peer.PeerMeta.Name,
			URL:         peer.PeerMeta.URL,
			Description: peer.PeerMeta.Description,
			Icons:       peer.PeerMeta.Icons,
		},
		RequiredNamespaces: map[string]walletconnect.ProposedNamespace{
			"algorand": {Methods: []string{"algo_signTxn"}},
		},
		Version: walletconnect.Version1,
		Relay: walletconnect.RelayInfo{
			BridgeURL: uri.Bridge,
			SymKey:    uri.Key,
			PeerID:    peer.PeerID,
		},
	}, nil
}

// ApproveSession answers the handshake positively, subscribes to our fresh
// client id and starts relaying inbound requests.
func (c *Client) ApproveSession(ctx context.Context, proposal *walletconnect.Proposal,
	namespaces map[string]walletconnect.Namespace, expiry int64) (*walletconnect.Session, error) {

	conn, err := c.takePending(proposal.PairingTopic)
	if err != nil {
		return nil, err
	}
	conn.clientID = uuid.NewString()

	approval := sessionApproval{
		Approved: true,
		ChainID:  c.chainID,
		Accounts: bareAccounts(namespaces),
		PeerID:   conn.clientID,
		PeerMeta: clientMeta{
			Description: c.meta.Description,
			URL:         c.meta.URL,
			Icons:       c.meta.Icons,
			Name:        c.meta.Name,
		},
	}
	response := rpcResponse{ID: conn.handshakeID, JSONRPC: "2.0", Result: approval}
	if err := conn.publish(conn.peerID, response); err != nil {
		conn.close()
		return nil, err
	}
	if err := conn.subscribe(conn.clientID); err != nil {
		conn.close()
		return nil, err
	}

	session := &walletconnect.Session{
		Topic:      proposal.PairingTopic,
		Version:    walletconnect.Version1,
		Peer:       proposal.Peer,
		Namespaces: namespaces,
		Relay: walletconnect.RelayInfo{
			BridgeURL: conn.bridgeURL,
			SymKey:    hex.EncodeToString(conn.key),
			PeerID:    conn.peerID,
			ClientID:  conn.clientID,
		},
	}

	c.mu.Lock()
	c.conns[session.Topic] = conn
	c.mu.Unlock()
	go c.readLoop(conn)

	return session, nil
}

// RejectSession answers the handshake negatively and drops the transport.
func (c *Client) RejectSession(ctx context.Context, proposal *walletconnect.Proposal, reason string) error {
	conn, err := c.takePending(proposal.PairingTopic)
	if err != nil {
		return err
	}
	defer conn.close()

	response := rpcResponse{
		ID:      conn.handshakeID,
		JSONRPC: "2.0",
		Result:  sessionApproval{Approved: false},
	}
	return conn.publish(conn.peerID, response)
}

func (c *Client) ApproveRequest(ctx context.Context, session *walletconnect.Session, id int64, result interface{}) error {
	conn, err := c.conn(session.Topic)
	if err != nil {
		return err
	}
	return conn.publish(session.Relay.PeerID, rpcResponse{ID: id, JSONRPC: "2.0", Result: result})
}

func (c *Client) RejectRequest(ctx context.Context, session *walletconnect.Session, id int64, code int, message string) error {
	conn, err := c.conn(session.Topic)
	if err != nil {
		return err
	}
	return conn.publish(session.Relay.PeerID, rpcError{
		ID:      id,
		JSONRPC: "2.0",
		Error:   rpcErrorBody{Code: code, Message: message},
	})
}

// Disconnect sends a terminal wc_sessionUpdate and drops the transport.
// Safe to call when no transport exists.
func (c *Client) Disconnect(ctx context.Context, session *walletconnect.Session) error {
	c.mu.Lock()
	conn := c.conns[session.Topic]
	delete(c.conns, session.Topic)
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	defer conn.close()

	update, _ := json.Marshal(sessionUpdate{Approved: false})
	request := rpcRequest{
		ID:      payloadID(),
		JSONRPC: "2.0",
		Method:  methodSessionUpdate,
		Params:  []json.RawMessage{update},
	}
	if err := conn.publish(session.Relay.PeerID, request); err != nil {
		c.logger.Debug("disconnect update not delivered", zap.String("topic", session.Topic), zap.Error(err))
	}
	return nil
}

// Connect re-establishes the bridge transport for a stored session.
func (c *Client) Connect(ctx context.Context, session *walletconnect.Session) error {
	key, err := hex.DecodeString(session.Relay.SymKey)
	if err != nil {
		return errors.Wrap(err, "stored session key does not decode")
	}

	conn, err := c.dial(ctx, session.Relay.BridgeURL, session.Topic, key)
	if err != nil {
		return err
	}
	conn.clientID = session.Relay.ClientID
	conn.peerID = session.Relay.PeerID

	if err := conn.subscribe(conn.clientID); err != nil {
		conn.close()
		return err
	}

	c.mu.Lock()
	if old := c.conns[session.Topic]; old != nil {
		old.close()
	}
	c.conns[session.Topic] = conn
	c.mu.Unlock()
	go c.readLoop(conn)
	return nil
}

// Extend is a no-op: v1 sessions do not expire.
func (c *Client) Extend(ctx context.Context, session *walletconnect.Session, expiry int64) error {
	return nil
}

// Ping probes the websocket with a control frame.
func (c *Client) Ping(ctx context.Context, session *walletconnect.Session) error {
	conn, err := c.conn(session.Topic)
	if err != nil {
		return err
	}
	conn.writeMu.Lock()
	defer conn.writeMu.Unlock()
	return conn.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(defaultWriteTimeout))
}

// Close drops every bridge connection, settled and pending alike.
func (c *Client) Close() error {
	c.mu.Lock()
	conns := make([]*bridgeConn, 0, len(c.conns)+len(c.pending))
	for _, conn := range c.conns {
		conns = append(conns, conn)
	}
	for _, conn := range c.pending {
		conns = append(conns, conn)
	}
	c.conns = make(map[string]*bridgeConn)
	c.pending = make(map[string]*bridgeConn)
	c.mu.Unlock()

	for _, conn := range conns {
		conn.close()
	}
	return nil
}

func (c *Client) dial(ctx context.Context, bridgeURL, topic string, key []byte) (*bridgeConn, error) {
	dialer := websocket.Dialer{}
	ws, _, err := dialer.DialContext(ctx, websocketURL(bridgeURL), nil)
	if err != nil {
		return nil, errors.Wrap(err, "dial bridge")
	}
	return &bridgeConn{
		ws:        ws,
		key:       key,
		bridgeURL: bridgeURL,
		topic:     topic,
		done:      make(chan struct{}),
	}, nil
}

func (c *Client) conn(topic string) (*bridgeConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn, ok := c.conns[topic]
	if !ok {
		return nil, walletconnect.ErrNotConnected
	}
	return conn, nil
}

func (c *Client) takePending(pairingTopic string) (*bridgeConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn, ok := c.pending[pairingTopic]
	if !ok {
		return nil, walletconnect.ErrProposalConsumed
	}
	delete(c.pending, pairingTopic)
	return conn, nil
}

// readLoop relays decrypted inbound frames to the handler until the
// transport dies.
func (c *Client) readLoop(conn *bridgeConn) {
	for {
		payload, err := conn.readDecrypted(context.Background())
		if err != nil {
			select {
			case <-conn.done:
			default:
				c.logger.Debug("bridge read loop ended", zap.String("topic", conn.topic), zap.Error(err))
			}
			return
		}

		method := gjson.GetBytes(payload, "method").String()
		switch {
		case method == methodSessionUpdate:
			if !gjson.GetBytes(payload, "params.0.approved").Bool() {
				conn.close()
				c.mu.Lock()
				delete(c.conns, conn.topic)
				c.mu.Unlock()
				if c.handler != nil {
					c.handler.HandlePeerDisconnect(conn.topic)
				}
				return
			}
		case method != "":
			var envelope struct {
				ID     int64           `json:"id"`
				Method string          `json:"method"`
				Params json.RawMessage `json:"params"`
			}
			if err := json.Unmarshal(payload, &envelope); err != nil {
				c.logger.Warn("undecodable inbound request", zap.String("topic", conn.topic), zap.Error(err))
				continue
			}
			if c.handler != nil {
				c.handler.HandleRequest(walletconnect.Request{
					ID:     envelope.ID,
					Topic:  conn.topic,
					Method: envelope.Method,
					Params: envelope.Params,
					Origin: walletconnect.Version1,
				})
			}
		}
	}
}

// subscribe registers interest in a topic with the bridge.
func (bc *bridgeConn) subscribe(topic string) error {
	msg := bridgeMessage{Topic: topic, Type: messageTypeSub, Silent: true}
	return bc.write(msg.marshal())
}

// publish encrypts a JSON-RPC payload and sends it to the peer's topic.
func (bc *bridgeConn) publish(topic string, rpc interface{}) error {
	plaintext, err := json.Marshal(rpc)
	if err != nil {
		return err
	}
	sealed, err := encrypt(plaintext, bc.key)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(sealed)
	if err != nil {
		return err
	}
	msg := bridgeMessage{Topic: topic, Type: messageTypePub, Payload: string(payload), Silent: true}
	return bc.write(msg.marshal())
}

func (bc *bridgeConn) ack() error {
	msg := bridgeMessage{Topic: bc.clientID, Type: messageTypeAck, Silent: true}
	return bc.write(msg.marshal())
}

func (bc *bridgeConn) write(data []byte) error {
	bc.writeMu.Lock()
	defer bc.writeMu.Unlock()
	if err := bc.ws.SetWriteDeadline(time.Now().Add(defaultWriteTimeout)); err != nil {
		return err
	}
	return bc.ws.WriteMessage(websocket.TextMessage, data)
}

// readDecrypted blocks for the next pub frame and returns its decrypted
// JSON-RPC payload.
func (bc *bridgeConn) readDecrypted(ctx context.Context) ([]byte, error) {
	deadline := time.Now().Add(defaultReadTimeout)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	for {
		if err := bc.ws.SetReadDeadline(deadline); err != nil {
			return nil, err
		}
		msgType, data, err := bc.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var msg bridgeMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, errors.Wrap(err, "unmarshal bridge message")
		}
		if msg.Type != messageTypePub {
			continue
		}
		if err := bc.ack(); err != nil {
			return nil, err
		}

		var sealed encryptedPayload
		if err := json.Unmarshal([]byte(msg.Payload), &sealed); err != nil {
			return nil, errors.Wrap(err, "unmarshal encrypted payload")
		}
		return decrypt(&sealed, bc.key)
	}
}

func websocketURL(bridgeURL string) string {
	url := bridgeURL
	if strings.HasPrefix(url, "https") {
		url = strings.Replace(url, "https", "wss", 1)
	} else if strings.HasPrefix(url, "http") {
		url = strings.Replace(url, "http", "ws", 1)
	}
	return url + "/?protocol=wc&version=1"
}

func bareAccounts(namespaces map[string]walletconnect.Namespace) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, ns := range namespaces {
		for _, acc := range ns.Accounts {
			parts := strings.Split(acc, ":")
			address := parts[len(parts)-1]
			if _, dup := seen[address]; dup {
				continue
			}
			seen[address] = struct{}{}
			out = append(out, address)
		}
	}
	return out
}
