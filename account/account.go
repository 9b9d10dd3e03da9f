package account

import (
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/pkg/errors"

	"github.com/algoline/wallet-core/params"
)

// ErrInvalidAddress is returned when an address fails checksum validation.
var ErrInvalidAddress = errors.New("invalid algorand address")

// Address is a base32 encoded Algorand address with embedded checksum.
type Address string

// Validate decodes the address and verifies its checksum.
func (a Address) Validate() error {
	if _, err := types.DecodeAddress(string(a)); err != nil {
		return errors.Wrap(ErrInvalidAddress, err.Error())
	}
	return nil
}

// IsValid reports whether the address passes checksum validation.
func (a Address) IsValid() bool {
	return a.Validate() == nil
}

// AssetHolding is one asset held by an account.
type AssetHolding struct {
	AssetID  uint64 `json:"asset-id"`
	Amount   uint64 `json:"amount"`
	Decimals uint32 `json:"decimals"`
}

// Account is a point-in-time snapshot of an on-chain account, as reported
// by algod. Amounts are in microAlgos.
type Account struct {
	Address Address `json:"address"`
	Balance uint64  `json:"amount"`

	// MinBalance is the protocol-enforced minimum balance as reported by
	// algod. When zero it is derived from the held assets.
	MinBalance uint64 `json:"min-balance"`

	// AuthAddress is set when the spending key differs from the account
	// address, i.e. the account has been rekeyed away.
	AuthAddress Address `json:"auth-addr,omitempty"`

	Assets []AssetHolding `json:"assets,omitempty"`
}

// IsRekeyed reports whether the account's spending authority was moved to a
// different address.
func (a *Account) IsRekeyed() bool {
	return a.AuthAddress != "" && a.AuthAddress != a.Address
}

// MinimumBalance returns the balance the account must retain after a
// transaction. Prefers the algod-reported value when present.
func (a *Account) MinimumBalance() uint64 {
	if a.MinBalance > 0 {
		return a.MinBalance
	}
	return params.MinBalancePerAccount + params.MinBalancePerAsset*uint64(len(a.Assets))
}

// CanSpendFullBalance reports whether the account may be drained to zero.
// Rekeyed accounts and accounts holding assets must keep their minimum
// balance funded.
func (a *Account) CanSpendFullBalance() bool {
	return !a.IsRekeyed() && len(a.Assets) == 0
}

// Holding returns the holding for assetID, if the account opted in.
func (a *Account) Holding(assetID uint64) (AssetHolding, bool) {
	for _, h := range a.Assets {
		if h.AssetID == assetID {
			return h, true
		}
	}
	return AssetHolding{}, false
}

// HasAsset reports whether the account opted in to assetID.
func (a *Account) HasAsset(assetID uint64) bool {
	_, ok := a.Holding(assetID)
	return ok
}
