package transactions

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/algoline/wallet-core/account"
)

type stubBroadcaster struct {
	txID    string
	err     error
	release chan struct{}
	calls   int
}

func (b *stubBroadcaster) BroadcastSignedTransaction(ctx context.Context, stx []byte) (string, error) {
	b.calls++
	if b.release != nil {
		<-b.release
	}
	return b.txID, b.err
}

func TestControllerUploadDeliversResult(t *testing.T) {
	broadcaster := &stubBroadcaster{txID: "TXID123"}
	c := NewController(NewBuilder(nil), broadcaster, nil)

	c.SetDraft(&PaymentDraft{From: &account.Account{Address: testAddress(1), Balance: 1_000_000}, To: testAddress(2), Amount: 1})
	require.NotNil(t, c.Draft())

	results, err := c.Upload(context.Background(), []byte{0x01})
	require.NoError(t, err)

	select {
	case res := <-results:
		require.NoError(t, res.Err)
		require.Equal(t, "TXID123", res.TxID)
	case <-time.After(time.Second):
		t.Fatal("no result delivered")
	}

	// The draft is consumed by the upload.
	require.Nil(t, c.Draft())
}

func TestControllerSecondUploadIsNoop(t *testing.T) {
	release := make(chan struct{})
	broadcaster := &stubBroadcaster{txID: "TXID123", release: release}
	c := NewController(NewBuilder(nil), broadcaster, nil)

	first, err := c.Upload(context.Background(), []byte{0x01})
	require.NoError(t, err)

	second, err := c.Upload(context.Background(), []byte{0x02})
	require.ErrorIs(t, err, ErrUploadInFlight)
	require.Nil(t, second)

	close(release)

	select {
	case res := <-first:
		require.Equal(t, "TXID123", res.TxID)
	case <-time.After(time.Second):
		t.Fatal("no result delivered")
	}

	// Only the first upload reached the network.
	require.Equal(t, 1, broadcaster.calls)
}

func TestControllerAbandonedResultDoesNotBlockNextUpload(t *testing.T) {
	broadcaster := &stubBroadcaster{txID: "TXID123"}
	c := NewController(NewBuilder(nil), broadcaster, nil)

	// The caller never reads the first result channel.
	_, err := c.Upload(context.Background(), []byte{0x01})
	require.NoError(t, err)

	var results <-chan Result
	require.Eventually(t, func() bool {
		results, err = c.Upload(context.Background(), []byte{0x02})
		return err == nil
	}, time.Second, 5*time.Millisecond)

	select {
	case res := <-results:
		require.Equal(t, "TXID123", res.TxID)
	case <-time.After(time.Second):
		t.Fatal("second upload never finished")
	}
	require.Equal(t, 2, broadcaster.calls)
}

func TestControllerUploadError(t *testing.T) {
	wantErr := &BroadcastError{Kind: BroadcastErrorRejected, Err: errors.New("overspend")}
	c := NewController(NewBuilder(nil), &stubBroadcaster{err: wantErr}, nil)

	results, err := c.Upload(context.Background(), nil)
	require.NoError(t, err)

	select {
	case res := <-results:
		var berr *BroadcastError
		require.ErrorAs(t, res.Err, &berr)
		require.Equal(t, BroadcastErrorRejected, berr.Kind)
	case <-time.After(time.Second):
		t.Fatal("no result delivered")
	}

	// A failed upload releases the slot for the next attempt.
	results, err = c.Upload(context.Background(), nil)
	require.NoError(t, err)
	<-results
}

func TestControllerComposeWithoutDraft(t *testing.T) {
	c := NewController(NewBuilder(nil), &stubBroadcaster{}, nil)
	_, err := c.Compose(testParams(1000))
	require.ErrorIs(t, err, ErrNoDraft)

	c.SetDraft(&PaymentDraft{From: &account.Account{Address: testAddress(1), Balance: 1_000_000}, To: testAddress(2), Amount: 1})
	c.ClearDraft()
	_, err = c.Compose(testParams(1000))
	require.ErrorIs(t, err, ErrNoDraft)
}
