package walletconnect

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/stretchr/testify/require"
)

func wcTestAddress(fill byte) string {
	var addr types.Address
	for i := range addr {
		addr[i] = fill
	}
	return addr.String()
}

func makeSignParams(t *testing.T, grouped bool, txns ...types.Transaction) json.RawMessage {
	t.Helper()
	items := make([]map[string]string, 0, len(txns))
	for i := range txns {
		items = append(items, map[string]string{
			"txn": base64.StdEncoding.EncodeToString(msgpack.Encode(&txns[i])),
		})
	}
	var payload interface{} = items
	if grouped {
		payload = [][]map[string]string{items}
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return raw
}

func makePaymentTxn(t *testing.T, rekeyTo, closeTo string) types.Transaction {
	t.Helper()
	sp := types.SuggestedParams{
		Fee:             1000,
		FlatFee:         true,
		GenesisID:       "testnet-v1.0",
		GenesisHash:     make([]byte, 32),
		FirstRoundValid: 1000,
		LastRoundValid:  2000,
	}
	txn, err := transaction.MakePaymentTxn(wcTestAddress(1), wcTestAddress(2), 1000, nil, closeTo, sp)
	require.NoError(t, err)
	if rekeyTo != "" {
		require.NoError(t, txn.Rekey(rekeyTo))
	}
	return txn
}

func TestDecodeSignTransactionRequests(t *testing.T) {
	txn := makePaymentTxn(t, "", "")

	t.Run("grouped_form", func(t *testing.T) {
		txns, err := DecodeSignTransactionRequests(makeSignParams(t, true, txn, txn))
		require.NoError(t, err)
		require.Len(t, txns, 2)
		require.Equal(t, txn.Receiver, txns[0].Receiver)
	})

	t.Run("flat_form", func(t *testing.T) {
		txns, err := DecodeSignTransactionRequests(makeSignParams(t, false, txn))
		require.NoError(t, err)
		require.Len(t, txns, 1)
	})

	t.Run("rejects_garbage", func(t *testing.T) {
		for _, raw := range []string{`{"no":"txns"}`, `[[{"txn":"!!!not base64"}]]`, `[]`} {
			_, err := DecodeSignTransactionRequests(json.RawMessage(raw))
			require.Error(t, err, "params %s", raw)
		}
	})
}

func TestTransactionNeedsWarning(t *testing.T) {
	require.False(t, TransactionNeedsWarning(makePaymentTxn(t, "", "")))
	require.True(t, TransactionNeedsWarning(makePaymentTxn(t, wcTestAddress(3), "")))
	require.True(t, TransactionNeedsWarning(makePaymentTxn(t, "", wcTestAddress(3))))
}
