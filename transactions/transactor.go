package transactions

import (
	"context"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/algoline/wallet-core/params"
)

// suggestedParamsTTL is how long fetched network params stay fresh. Params
// change once per round so a few seconds is safe.
const suggestedParamsTTL = 5 * time.Second

// Transactor broadcasts signed transactions and fetches network parameters.
// It never retries on its own; one-shot user actions surface failures to
// the caller.
type Transactor struct {
	client      *algod.Client
	callTimeout time.Duration
	logger      *zap.Logger

	mu        sync.Mutex
	cached    types.SuggestedParams
	fetchedAt time.Time
}

func NewTransactor(cfg *params.Config, logger *zap.Logger) (*Transactor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := algod.MakeClient(cfg.AlgodURL, cfg.AlgodToken)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create algod client")
	}
	return &Transactor{
		client:      client,
		callTimeout: cfg.RequestTimeout,
		logger:      logger,
	}, nil
}

// BroadcastSignedTransaction submits previously signed bytes to the network
// and returns the transaction id. Failures carry a BroadcastError kind so
// the caller can tell transport trouble from node rejection.
func (t *Transactor) BroadcastSignedTransaction(ctx context.Context, stx []byte) (string, error) {
	var signed types.SignedTxn
	if err := msgpack.Decode(stx, &signed); err != nil {
		return "", &BroadcastError{Kind: BroadcastErrorMalformed, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, t.callTimeout)
	defer cancel()

	txID, err := t.client.SendRawTransaction(stx).Do(ctx)
	if err != nil {
		kind := classifyBroadcastError(err)
		t.logger.Warn("transaction broadcast failed",
			zap.String("kind", kind.String()), zap.Error(err))
		return "", &BroadcastError{Kind: kind, Err: err}
	}

	t.logger.Info("transaction broadcast", zap.String("txID", txID))
	return txID, nil
}

// SuggestedParams returns current network transaction parameters, cached
// for a short window.
func (t *Transactor) SuggestedParams(ctx context.Context) (types.SuggestedParams, error) {
	t.mu.Lock()
	if time.Since(t.fetchedAt) < suggestedParamsTTL {
		sp := t.cached
		t.mu.Unlock()
		return sp, nil
	}
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, t.callTimeout)
	defer cancel()

	sp, err := t.client.SuggestedParams().Do(ctx)
	if err != nil {
		return types.SuggestedParams{}, &BroadcastError{Kind: classifyBroadcastError(err), Err: err}
	}

	t.mu.Lock()
	t.cached = sp
	t.fetchedAt = time.Now()
	t.mu.Unlock()
	return sp, nil
}

func classifyBroadcastError(err error) BroadcastErrorKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return BroadcastErrorConnection
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return BroadcastErrorConnection
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return BroadcastErrorConnection
	}
	// Anything the node answered with, it answered on purpose.
	return BroadcastErrorRejected
}
