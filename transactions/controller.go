package transactions

import (
	"context"
	"sync"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Result is the terminal outcome of one upload. Exactly one Result is
// delivered per upload, either a transaction id or a typed error.
type Result struct {
	TxID string
	Err  error
}

// Broadcaster is the network-facing half the controller talks to. Satisfied
// by *Transactor.
type Broadcaster interface {
	BroadcastSignedTransaction(ctx context.Context, stx []byte) (string, error)
}

// Controller coordinates one draft at a time between the UI-facing flow and
// the network. Composition runs off the caller's goroutine via Compose;
// Upload submits signed bytes and delivers the outcome on the returned
// channel.
type Controller struct {
	builder     *Builder
	broadcaster Broadcaster
	logger      *zap.Logger

	mu    sync.Mutex
	draft Draft

	inFlight *atomic.Bool
}

func NewController(builder *Builder, broadcaster Broadcaster, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		builder:     builder,
		broadcaster: broadcaster,
		logger:      logger,
		inFlight:    atomic.NewBool(false),
	}
}

// SetDraft stores the current draft, replacing any previous one that was
// never uploaded.
func (c *Controller) SetDraft(d Draft) {
	c.mu.Lock()
	c.draft = d
	c.mu.Unlock()
}

// Draft returns the pending draft, or nil.
func (c *Controller) Draft() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// ClearDraft discards the pending draft, used when the flow is cancelled.
func (c *Controller) ClearDraft() {
	c.mu.Lock()
	c.draft = nil
	c.mu.Unlock()
}

// Compose builds signable bytes from the pending draft.
func (c *Controller) Compose(sp types.SuggestedParams) ([]byte, error) {
	c.mu.Lock()
	d := c.draft
	c.mu.Unlock()
	if d == nil {
		return nil, ErrNoDraft
	}
	return c.builder.Compose(d, sp)
}

// Upload submits signed bytes. Only one upload may be in flight; a second
// call while one is pending does nothing and reports ErrUploadInFlight.
// The terminal outcome is delivered exactly once on the returned channel,
// which is buffered so the upload never blocks on an abandoned caller.
func (c *Controller) Upload(ctx context.Context, signed []byte) (<-chan Result, error) {
	if !c.inFlight.CAS(false, true) {
		return nil, ErrUploadInFlight
	}

	results := make(chan Result, 1)
	go func() {
		txID, err := c.broadcaster.BroadcastSignedTransaction(ctx, signed)

		c.mu.Lock()
		c.draft = nil
		c.mu.Unlock()

		if err != nil {
			c.logger.Warn("upload finished with error", zap.Error(err))
		}
		c.inFlight.Store(false)
		results <- Result{TxID: txID, Err: err}
	}()
	return results, nil
}
