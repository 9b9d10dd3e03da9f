package transactions

import (
	"context"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/algoline/wallet-core/params"
)

func TestBroadcastMalformedBytes(t *testing.T) {
	cfg := params.NewDefaultConfig()
	cfg.RequestTimeout = time.Second
	transactor, err := NewTransactor(cfg, nil)
	require.NoError(t, err)

	// Not msgpack. Classification happens before anything touches the
	// network.
	_, err = transactor.BroadcastSignedTransaction(context.Background(), []byte{0x01, 0x02})
	var berr *BroadcastError
	require.ErrorAs(t, err, &berr)
	require.Equal(t, BroadcastErrorMalformed, berr.Kind)
}

func TestClassifyBroadcastError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want BroadcastErrorKind
	}{
		{"deadline", context.DeadlineExceeded, BroadcastErrorConnection},
		{"cancelled", context.Canceled, BroadcastErrorConnection},
		{"wrapped_deadline", errors.Wrap(context.DeadlineExceeded, "request"), BroadcastErrorConnection},
		{"net_error", &net.DNSError{Err: "no such host", IsTimeout: true}, BroadcastErrorConnection},
		{"url_error", &url.Error{Op: "Post", URL: "http://localhost", Err: errors.New("refused")}, BroadcastErrorConnection},
		{"node_rejection", errors.New("TransactionPool.Remember: overspend"), BroadcastErrorRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, classifyBroadcastError(tt.err))
		})
	}
}
