package transactions

import (
	"github.com/algoline/wallet-core/account"
)

// Draft is a user or dApp supplied intent to transact, prior to byte-level
// composition. The set of implementations is closed; Builder.Compose
// switches over it exhaustively.
type Draft interface {
	Sender() *account.Account
	draft()
}

// PaymentDraft sends Algos to a receiver. When Max is set the amount field
// is ignored and the sender balance is drained subject to fee and minimum
// balance reservation.
type PaymentDraft struct {
	From *account.Account
	To   account.Address
	// Amount in microAlgos. Ignored when Max is set.
	Amount uint64
	Note   []byte
	Max    bool
}

func (d *PaymentDraft) Sender() *account.Account { return d.From }
func (d *PaymentDraft) draft()                   {}

// AssetTransferDraft sends an asset. Amount is the human readable decimal
// amount ("12.5"); Decimals is the asset's decimal fraction used to convert
// it to base units.
type AssetTransferDraft struct {
	From     *account.Account
	To       account.Address
	AssetID  uint64
	Amount   string
	Decimals uint32
	Note     []byte
}

func (d *AssetTransferDraft) Sender() *account.Account { return d.From }
func (d *AssetTransferDraft) draft()                   {}

// AssetOptInDraft registers the sender to hold an asset via a zero amount
// self-transfer.
type AssetOptInDraft struct {
	From    *account.Account
	AssetID uint64
	Note    []byte
}

func (d *AssetOptInDraft) Sender() *account.Account { return d.From }
func (d *AssetOptInDraft) draft()                   {}
