package walletconnect

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Subscriber registers sessions with the push notification backend so the
// app can be woken for inbound requests. Registration failure is degraded
// but non-fatal: the session keeps working for signing, it just will not
// receive background wakes.
type Subscriber struct {
	backendURL string
	client     *http.Client
	logger     *zap.Logger
}

func NewSubscriber(backendURL string, timeout time.Duration, logger *zap.Logger) *Subscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Subscriber{
		backendURL: backendURL,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Enabled reports whether a push backend is configured at all.
func (s *Subscriber) Enabled() bool {
	return s.backendURL != ""
}

type subscribeRequest struct {
	Topic    string   `json:"topic"`
	Accounts []string `json:"accounts"`
	Action   string   `json:"action"`
}

// Subscribe registers the session. Returns whether registration succeeded;
// the caller records the flag on the stored session either way.
func (s *Subscriber) Subscribe(ctx context.Context, session *Session) bool {
	if s.backendURL == "" {
		return false
	}
	err := s.post(ctx, subscribeRequest{
		Topic:    session.Topic,
		Accounts: session.Accounts(),
		Action:   "subscribe",
	})
	if err != nil {
		s.logger.Warn("push subscription failed, session degraded",
			zap.String("topic", session.Topic), zap.Error(err))
		return false
	}
	return true
}

// Unsubscribe revokes the registration. Failures are logged only; the
// session record is going away regardless.
func (s *Subscriber) Unsubscribe(ctx context.Context, topic string) {
	if s.backendURL == "" {
		return
	}
	err := s.post(ctx, subscribeRequest{Topic: topic, Action: "unsubscribe"})
	if err != nil {
		s.logger.Warn("push unsubscription failed",
			zap.String("topic", topic), zap.Error(err))
	}
}

func (s *Subscriber) post(ctx context.Context, payload subscribeRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.backendURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("push backend returned status %d", resp.StatusCode)
	}
	return nil
}
