package walletconnect

import (
	"encoding/base64"
	"encoding/json"

	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/pkg/errors"
)

// signTxnItem is one entry of an algo_signTxn params payload: the unsigned
// transaction as base64 msgpack plus optional signing hints.
type signTxnItem struct {
	Txn     string   `json:"txn"`
	Message string   `json:"message,omitempty"`
	Signers []string `json:"signers,omitempty"`
}

// DecodeSignTransactionRequests decodes the transactions inside an
// algo_signTxn request. Accepts both the grouped form [[{txn}...]] and the
// flat form [{txn}...].
func DecodeSignTransactionRequests(params json.RawMessage) ([]types.Transaction, error) {
	var groups [][]signTxnItem
	if err := json.Unmarshal(params, &groups); err != nil {
		var flat []signTxnItem
		if err := json.Unmarshal(params, &flat); err != nil {
			return nil, errors.Wrap(err, "sign request params do not decode")
		}
		groups = [][]signTxnItem{flat}
	}

	var txns []types.Transaction
	for _, group := range groups {
		for _, item := range group {
			raw, err := base64.StdEncoding.DecodeString(item.Txn)
			if err != nil {
				return nil, errors.Wrap(err, "sign request txn is not base64")
			}
			var txn types.Transaction
			if err := msgpack.Decode(raw, &txn); err != nil {
				return nil, errors.Wrap(err, "sign request txn does not decode")
			}
			txns = append(txns, txn)
		}
	}
	if len(txns) == 0 {
		return nil, errors.New("sign request carries no transactions")
	}
	return txns, nil
}

// TransactionNeedsWarning reports whether a requested transaction carries
// close-to or rekey-to fields, which the approval UI must call out.
func TransactionNeedsWarning(txn types.Transaction) bool {
	return !txn.CloseRemainderTo.IsZero() ||
		!txn.AssetCloseTo.IsZero() ||
		!txn.RekeyTo.IsZero()
}
