package walletconnect

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/algoline/wallet-core/account"
	"github.com/algoline/wallet-core/async"
	"github.com/algoline/wallet-core/params"
)

// EventType labels events surfaced to the application layer.
type EventType string

const (
	// EventRequest is an inbound, validated signing request awaiting a
	// user decision.
	EventRequest EventType = "request"
	// EventPeerDisconnected means the peer ended the session.
	EventPeerDisconnected EventType = "peerDisconnected"
	// EventSessionFailed means reconnection attempts are exhausted.
	EventSessionFailed EventType = "sessionFailed"
)

// Event is delivered on Manager.Events.
type Event struct {
	Type    EventType
	Topic   string
	Request *Request
	Err     error
}

const (
	cleanupInterval          = time.Minute
	defaultSubscribeInterval = time.Minute
)

// Manager exposes one capability surface over both protocol adapters. It
// owns the durable session store, validates and correlates inbound
// requests, serializes mutations per topic and bounds reconnection
// attempts.
type Manager struct {
	cfg        *params.Config
	store      *Store
	validator  *Validator
	retries    *RetryCounter
	subscriber *Subscriber
	clients    map[Version]Client
	logger     *zap.Logger

	group  *async.Group
	events chan Event

	// subscribeRetryInterval paces re-registration attempts for sessions
	// whose push subscription failed at approval time.
	subscribeRetryInterval time.Duration

	mu         sync.Mutex
	topicLocks map[string]*sync.Mutex

	// ownsAccount lets the wallet veto namespace accounts it does not
	// actually hold.
	ownsAccount func(account.Address) bool
}

func NewManager(cfg *params.Config, store *Store, subscriber *Subscriber,
	v1, v2 Client, ownsAccount func(account.Address) bool, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		cfg:                    cfg,
		store:                  store,
		validator:              NewValidator(),
		retries:                NewRetryCounter(cfg.MaxSessionRetries),
		subscriber:             subscriber,
		clients:                map[Version]Client{Version1: v1, Version2: v2},
		logger:                 logger.Named("walletconnect"),
		events:                 make(chan Event, 16),
		subscribeRetryInterval: defaultSubscribeInterval,
		topicLocks:             make(map[string]*sync.Mutex),
		ownsAccount:            ownsAccount,
	}
	v1.SetHandler(m)
	v2.SetHandler(m)
	return m
}

// Events surfaces inbound requests and session state changes to the
// application layer.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// Start reconnects stored sessions and begins the periodic expiry cleanup
// pass. The manager runs until ctx is cancelled or Stop is called.
func (m *Manager) Start(ctx context.Context) error {
	if m.group != nil {
		return errors.New("manager already started")
	}
	m.group = async.NewGroup(ctx)

	sessions, err := m.store.GetAll()
	if err != nil {
		return err
	}
	now := time.Now()
	for _, session := range sessions {
		if session.Expired(now) {
			topic := session.Topic
			m.group.Add(func(ctx context.Context) error {
				return m.Disconnect(ctx, topic)
			})
			continue
		}
		m.reconnectAsync(session.Topic)
	}

	m.group.Add(func(ctx context.Context) error {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				m.cleanupExpired(ctx)
			}
		}
	})
	return nil
}

// Stop cancels background work, waits for it to unwind and drops the
// adapter transports.
func (m *Manager) Stop() {
	if m.group != nil {
		m.group.StopAndWait()
		m.group = nil
	}
	for version, client := range m.clients {
		if err := client.Close(); err != nil {
			m.logger.Warn("adapter close failed",
				zap.String("version", string(version)), zap.Error(err))
		}
	}
}

// Pair parses the pairing URI and hands it to the matching adapter. A
// malformed URI fails before any network call. New pairings go through v2
// unless a legacy v1 URI is detected.
func (m *Manager) Pair(ctx context.Context, rawURI string) (*Proposal, error) {
	uri, err := ParsePairingURI(rawURI)
	if err != nil {
		return nil, err
	}
	proposal, err := m.clients[uri.Version].Pair(ctx, uri)
	if err != nil {
		return nil, err
	}
	proposal.Version = uri.Version
	return proposal, nil
}

// ApproveSession builds the approved namespaces for the selected accounts,
// settles the session with the peer and persists it. Approving a topic that
// already has a stored session updates the record in place.
func (m *Manager) ApproveSession(ctx context.Context, proposal *Proposal,
	addresses []account.Address, chains []string) (*Session, error) {

	if m.ownsAccount != nil {
		for _, address := range addresses {
			if !m.ownsAccount(address) {
				return nil, errors.Errorf("account %s is not held by this wallet", address)
			}
		}
	}

	namespaces := BuildApprovedNamespaces(proposal, addresses, chains)
	if len(namespaces) == 0 {
		return nil, ErrorChainsNotSupported
	}

	var expiry int64
	if proposal.Version == Version2 {
		expiry = time.Now().Add(m.cfg.SessionExpiry).Unix()
	}

	unlock := m.lockTopic(proposal.PairingTopic)
	defer unlock()

	session, err := m.clients[proposal.Version].ApproveSession(ctx, proposal, namespaces, expiry)
	if err != nil {
		return nil, err
	}
	session.Created = time.Now().UTC()
	session.Connected = true

	session.Subscribed = m.subscriber.Subscribe(ctx, session)
	if err := m.store.Upsert(session); err != nil {
		return nil, err
	}
	m.retries.Reset(session.Topic)
	if !session.Subscribed && m.subscriber.Enabled() {
		m.resubscribeAsync(session)
	}

	m.logger.Info("session approved",
		zap.String("topic", session.Topic),
		zap.String("version", string(session.Version)),
		zap.String("peer", session.Peer.Name),
		zap.Bool("subscribed", session.Subscribed))
	return session, nil
}

// RejectSession answers the proposal negatively; nothing is persisted.
func (m *Manager) RejectSession(ctx context.Context, proposal *Proposal, reason string) error {
	return m.clients[proposal.Version].RejectSession(ctx, proposal, reason)
}

// HandleRequest receives inbound requests from the adapters. Requests
// failing identifier validation are answered with exactly one rejection and
// never surfaced; a silent drop would leave the peer hanging. The same goes
// for requests on topics with no stored session, answered through the
// adapter that delivered them.
func (m *Manager) HandleRequest(req Request) {
	session, err := m.session(req.Topic)
	if err != nil {
		m.logger.Warn("rejecting request for unknown session", zap.String("topic", req.Topic))
		if client := m.clients[req.Origin]; client != nil {
			ctx, cancel := context.WithTimeout(context.Background(), m.cfg.RequestTimeout)
			defer cancel()
			orphan := &Session{Topic: req.Topic, Version: req.Origin}
			if rejectErr := client.RejectRequest(ctx, orphan, req.ID,
				ErrorCodeInvalidRequest, "invalid request"); rejectErr != nil {
				m.logger.Debug("failed to reject request for unknown session",
					zap.String("topic", req.Topic), zap.Error(rejectErr))
			}
		}
		return
	}

	reject := func(code int, message string) {
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.RequestTimeout)
		defer cancel()
		if err := m.clients[session.Version].RejectRequest(ctx, session, req.ID, code, message); err != nil {
			m.logger.Warn("failed to send rejection", zap.String("topic", req.Topic), zap.Error(err))
		}
	}

	if !m.validator.ValidateSessionRequestID(req.Topic, req.ID) {
		m.logger.Warn("rejecting request with invalid identifier",
			zap.String("topic", req.Topic), zap.Int64("id", req.ID))
		reject(ErrorCodeInvalidRequest, "invalid request")
		return
	}

	if req.Method != params.SignTransactionMethodName {
		reject(ErrorCodeUnsupported, ErrorMethodNotSupported.Error())
		return
	}

	txns, err := DecodeSignTransactionRequests(req.Params)
	if err != nil {
		m.logger.Warn("rejecting undecodable sign request",
			zap.String("topic", req.Topic), zap.Error(err))
		reject(ErrorCodeInvalidRequest, "invalid request")
		return
	}
	for _, txn := range txns {
		if TransactionNeedsWarning(txn) {
			req.ShouldWarn = true
			break
		}
	}

	m.validator.Track(req)
	m.events <- Event{Type: EventRequest, Topic: req.Topic, Request: &req}
}

// HandlePeerDisconnect reacts to a peer-initiated disconnect: the stored
// record and subscription are removed, mirroring a local disconnect.
func (m *Manager) HandlePeerDisconnect(topic string) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.RequestTimeout)
	defer cancel()
	if err := m.Disconnect(ctx, topic); err != nil {
		m.logger.Warn("cleanup after peer disconnect failed", zap.String("topic", topic), zap.Error(err))
	}
	m.events <- Event{Type: EventPeerDisconnected, Topic: topic}
}

// ApproveRequest validates the identifier against the outstanding set and
// sends the signed payload back to the peer.
func (m *Manager) ApproveRequest(ctx context.Context, topic string, id int64, result interface{}) error {
	unlock := m.lockTopic(topic)
	defer unlock()

	session, err := m.session(topic)
	if err != nil {
		return err
	}
	if !m.validator.ValidateTransactionRequestID(topic, id) {
		if rejectErr := m.clients[session.Version].RejectRequest(ctx, session, id,
			ErrorCodeInvalidRequest, "invalid request"); rejectErr != nil {
			m.logger.Warn("failed to send rejection", zap.String("topic", topic), zap.Error(rejectErr))
		}
		return errors.Errorf("request %d is not outstanding for session %s", id, topic)
	}
	if err := m.clients[session.Version].ApproveRequest(ctx, session, id, result); err != nil {
		return err
	}
	m.validator.Resolve(topic, id)
	return nil
}

// RejectRequest answers an outstanding request with an error object.
func (m *Manager) RejectRequest(ctx context.Context, topic string, id int64, code int, message string) error {
	unlock := m.lockTopic(topic)
	defer unlock()

	session, err := m.session(topic)
	if err != nil {
		return err
	}
	m.validator.Resolve(topic, id)
	return m.clients[session.Version].RejectRequest(ctx, session, id, code, message)
}

// CancelRequest is called when the UI flow showing a request is torn down.
// If no response was sent yet the peer still gets a rejection rather than
// being left without any reply.
func (m *Manager) CancelRequest(topic string, id int64) {
	if _, outstanding := m.validator.Resolve(topic, id); !outstanding {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.RequestTimeout)
	defer cancel()

	session, err := m.session(topic)
	if err != nil {
		return
	}
	if err := m.clients[session.Version].RejectRequest(ctx, session, id,
		ErrorCodeUserRejected, "request cancelled"); err != nil {
		m.logger.Warn("failed to send cancellation rejection",
			zap.String("topic", topic), zap.Error(err))
	}
}

// Disconnect deletes the persisted session, revokes the push subscription
// and notifies the peer. Disconnecting an already-disconnected session is a
// no-op, not an error.
func (m *Manager) Disconnect(ctx context.Context, topic string) error {
	unlock := m.lockTopic(topic)
	defer unlock()

	session, err := m.session(topic)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	// Outstanding requests die with the session; answer them first.
	for _, req := range m.validator.Outstanding(topic) {
		m.validator.Resolve(topic, req.ID)
		if rejectErr := m.clients[session.Version].RejectRequest(ctx, session, req.ID,
			ErrorCodeUserRejected, "session disconnected"); rejectErr != nil {
			m.logger.Debug("failed to reject outstanding request on disconnect",
				zap.String("topic", topic), zap.Error(rejectErr))
		}
	}

	if err := m.clients[session.Version].Disconnect(ctx, session); err != nil {
		// The wire message is best effort; local state still goes away.
		m.logger.Warn("disconnect wire message failed", zap.String("topic", topic), zap.Error(err))
	}
	m.subscriber.Unsubscribe(ctx, topic)
	m.retries.Reset(topic)
	if err := m.store.Delete(topic); err != nil {
		return err
	}
	m.logger.Info("session disconnected", zap.String("topic", topic))
	return nil
}

// Extend refreshes the expiry of a v2 session, on the peer and in the
// store together. When the manager runs, wire failures are retried in the
// background and are not fatal; the stored expiry moves only once the peer
// acknowledged the new one, so an expired-but-unextended session still gets
// cleaned up.
func (m *Manager) Extend(ctx context.Context, topic string) error {
	unlock := m.lockTopic(topic)
	defer unlock()

	session, err := m.session(topic)
	if err != nil {
		return err
	}
	if session.Version != Version2 {
		return nil
	}
	expiry := time.Now().Add(m.cfg.SessionExpiry).Unix()
	extend := func(ctx context.Context) error {
		if err := m.clients[session.Version].Extend(ctx, session, expiry); err != nil {
			return err
		}
		session.Expiry = expiry
		return m.store.Upsert(session)
	}
	if err := extend(ctx); err != nil {
		if !m.retryMaintenance(topic, extend) {
			return err
		}
	}
	return nil
}

// Ping verifies liveness of a session transport. Failures are retried per
// the retry counter; exhaustion surfaces the session as failed.
func (m *Manager) Ping(ctx context.Context, topic string) error {
	session, err := m.session(topic)
	if err != nil {
		return err
	}
	if err := m.clients[session.Version].Ping(ctx, session); err != nil {
		m.reconnectAsync(topic)
		return nil
	}
	m.retries.Reset(topic)
	return nil
}

// Sessions returns all stored sessions, flagging expired ones as
// disconnected.
func (m *Manager) Sessions() ([]*Session, error) {
	sessions, err := m.store.GetAll()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	for _, session := range sessions {
		if session.Expired(now) {
			session.Connected = false
		}
	}
	return sessions, nil
}

// OnAccountRemoved disconnects every session referencing the removed
// account.
func (m *Manager) OnAccountRemoved(ctx context.Context, address account.Address) error {
	sessions, err := m.store.GetByAccount(string(address))
	if err != nil {
		return err
	}
	for _, session := range sessions {
		if err := m.Disconnect(ctx, session.Topic); err != nil {
			m.logger.Warn("failed to disconnect session of removed account",
				zap.String("topic", session.Topic), zap.Error(err))
		}
	}
	return nil
}

func (m *Manager) cleanupExpired(ctx context.Context) {
	sessions, err := m.store.GetAll()
	if err != nil {
		m.logger.Warn("expiry cleanup read failed", zap.Error(err))
		return
	}
	now := time.Now()
	for _, session := range sessions {
		if session.Expired(now) {
			if err := m.Disconnect(ctx, session.Topic); err != nil {
				m.logger.Warn("expiry cleanup failed", zap.String("topic", session.Topic), zap.Error(err))
			}
		}
	}
}

// reconnectAsync schedules serialized, bounded reconnection attempts for a
// topic inside the manager scope.
func (m *Manager) reconnectAsync(topic string) {
	if m.group == nil {
		return
	}
	m.group.Add(func(ctx context.Context) error {
		for {
			delay, err := m.retries.Next(topic)
			if err != nil {
				m.logger.Warn("session reconnect attempts exhausted", zap.String("topic", topic))
				m.events <- Event{Type: EventSessionFailed, Topic: topic, Err: ErrRetriesExhausted}
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}

			session, err := m.session(topic)
			if err != nil {
				return err
			}
			if err := m.clients[session.Version].Connect(ctx, session); err != nil {
				m.logger.Debug("reconnect attempt failed",
					zap.String("topic", topic),
					zap.Int("attempt", m.retries.Attempts(topic)),
					zap.Error(err))
				continue
			}
			m.retries.Reset(topic)
			return nil
		}
	})
}

// retryMaintenance schedules bounded background retries of a session
// maintenance operation, serialized with other mutations of the topic.
// Reports whether a retry was scheduled at all; exhaustion surfaces the
// session as failed.
func (m *Manager) retryMaintenance(topic string, op func(context.Context) error) bool {
	if m.group == nil {
		return false
	}
	m.group.Add(func(ctx context.Context) error {
		for {
			delay, err := m.retries.Next(topic)
			if err != nil {
				m.logger.Warn("session maintenance retries exhausted", zap.String("topic", topic))
				m.events <- Event{Type: EventSessionFailed, Topic: topic, Err: ErrRetriesExhausted}
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}

			unlock := m.lockTopic(topic)
			err = op(ctx)
			unlock()
			if err == nil {
				m.retries.Reset(topic)
				return nil
			}
		}
	})
	return true
}

// resubscribeAsync keeps retrying a failed push registration inside the
// manager scope so a degraded session can still be upgraded later.
func (m *Manager) resubscribeAsync(session *Session) {
	if m.group == nil {
		return
	}
	topic := session.Topic
	m.group.Add(async.FiniteCommand{
		Interval: m.subscribeRetryInterval,
		Runable: func(ctx context.Context) error {
			if !m.subscriber.Subscribe(ctx, session) {
				return errors.Errorf("push subscription for %s still failing", topic)
			}
			return m.store.SetSubscribed(topic, true)
		},
	}.Run)
}

func (m *Manager) session(topic string) (*Session, error) {
	session, err := m.store.Get(topic)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	return session, err
}

func (m *Manager) lockTopic(topic string) func() {
	m.mu.Lock()
	lock, ok := m.topicLocks[topic]
	if !ok {
		lock = &sync.Mutex{}
		m.topicLocks[topic] = lock
	}
	m.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}
