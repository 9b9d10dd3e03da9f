package transactions

import (
	"math/big"

	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/algoline/wallet-core/params"
)

// Builder turns a validated draft plus current network parameters into
// canonical signable transaction bytes (msgpack, sorted fields, zero values
// omitted). All composition is synchronous and CPU-only.
type Builder struct {
	logger *zap.Logger
}

func NewBuilder(logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{logger: logger}
}

// Compose dispatches on the draft kind. Every kind has a composition path;
// an unhandled kind is a programming error reported as ErrUnknownDraft.
func (b *Builder) Compose(d Draft, sp types.SuggestedParams) ([]byte, error) {
	switch d := d.(type) {
	case *PaymentDraft:
		return b.ComposePayment(d, sp)
	case *AssetTransferDraft:
		return b.ComposeAssetTransfer(d, sp)
	case *AssetOptInDraft:
		return b.ComposeAssetOptIn(d, sp)
	default:
		return nil, ErrUnknownDraft
	}
}

// ComposePayment builds an Algos transfer. For max sends the amount is the
// full balance minus the calculated fee, and additionally minus the minimum
// required balance when the account is rekeyed away or holds assets, since
// such accounts cannot be fully drained.
func (b *Builder) ComposePayment(d *PaymentDraft, sp types.SuggestedParams) ([]byte, error) {
	if d.From == nil {
		return nil, ErrMissingSender
	}
	if err := d.To.Validate(); err != nil {
		return nil, ErrInvalidAddress
	}

	fee := CalculatedFee(sp)

	amount := d.Amount
	if d.Max {
		reserved := fee
		if !d.From.CanSpendFullBalance() {
			reserved += d.From.MinimumBalance()
		}
		if d.From.Balance < reserved {
			return nil, ErrNegativeAmount
		}
		amount = d.From.Balance - reserved

		b.logger.Debug("composed max payment",
			zap.String("sender", string(d.From.Address)),
			zap.Uint64("balance", d.From.Balance),
			zap.Uint64("fee", fee),
			zap.Uint64("reserved", reserved),
			zap.Uint64("amount", amount))
	}

	txn, err := transaction.MakePaymentTxn(
		string(d.From.Address), string(d.To), amount, d.Note, "", flatFeeParams(sp, fee))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build payment transaction")
	}
	return msgpack.Encode(&txn), nil
}

// ComposeAssetTransfer builds an asset transfer. The human readable amount
// is converted into the asset's integer base units, rounding toward zero.
func (b *Builder) ComposeAssetTransfer(d *AssetTransferDraft, sp types.SuggestedParams) ([]byte, error) {
	if d.From == nil {
		return nil, ErrMissingSender
	}
	if d.AssetID == 0 {
		return nil, ErrMissingAssetIndex
	}
	if d.Amount == "" {
		return nil, ErrMissingAmount
	}
	if err := d.To.Validate(); err != nil {
		return nil, ErrInvalidAddress
	}

	amount, err := ToBaseUnits(d.Amount, d.Decimals)
	if err != nil {
		return nil, err
	}

	txn, err := transaction.MakeAssetTransferTxn(
		string(d.From.Address), string(d.To), amount, d.Note,
		flatFeeParams(sp, CalculatedFee(sp)), "", d.AssetID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build asset transfer transaction")
	}
	return msgpack.Encode(&txn), nil
}

// ComposeAssetOptIn builds the zero amount self-transfer registering the
// sender to hold the asset.
func (b *Builder) ComposeAssetOptIn(d *AssetOptInDraft, sp types.SuggestedParams) ([]byte, error) {
	if d.From == nil {
		return nil, ErrMissingSender
	}
	if d.AssetID == 0 {
		return nil, ErrMissingAssetIndex
	}
	if err := d.From.Address.Validate(); err != nil {
		return nil, ErrInvalidAddress
	}

	txn, err := transaction.MakeAssetAcceptanceTxn(
		string(d.From.Address), d.Note, flatFeeParams(sp, CalculatedFee(sp)), d.AssetID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build asset opt-in transaction")
	}
	return msgpack.Encode(&txn), nil
}

// CalculatedFee projects the fee for a transaction of estimated size from
// the suggested params, never below the protocol minimum.
func CalculatedFee(sp types.SuggestedParams) uint64 {
	minFee := sp.MinFee
	if minFee == 0 {
		minFee = params.MinTxnFee
	}
	fee := uint64(sp.Fee)
	if !sp.FlatFee {
		fee *= params.EstimatedTxnSize
	}
	if fee < minFee {
		fee = minFee
	}
	return fee
}

// ToBaseUnits converts a human readable decimal amount into asset base
// units (amount times 10^decimals), rounding toward zero.
func ToBaseUnits(amount string, decimals uint32) (uint64, error) {
	rat, ok := new(big.Rat).SetString(amount)
	if !ok {
		return 0, errors.Errorf("amount %q is not a decimal number", amount)
	}
	if rat.Sign() < 0 {
		return 0, ErrNegativeAmount
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	scaled := new(big.Rat).Mul(rat, new(big.Rat).SetInt(scale))
	base := new(big.Int).Quo(scaled.Num(), scaled.Denom())
	if !base.IsUint64() {
		return 0, errors.Errorf("amount %q overflows base units", amount)
	}
	return base.Uint64(), nil
}

// FromBaseUnits renders base units back as a human readable decimal string.
func FromBaseUnits(amount uint64, decimals uint32) string {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	rat := new(big.Rat).SetFrac(new(big.Int).SetUint64(amount), scale)
	return rat.FloatString(int(decimals))
}

// DecodeTransaction decodes composed bytes back into a transaction object.
func DecodeTransaction(b []byte) (types.Transaction, error) {
	var txn types.Transaction
	err := msgpack.Decode(b, &txn)
	return txn, err
}

func flatFeeParams(sp types.SuggestedParams, fee uint64) types.SuggestedParams {
	sp.FlatFee = true
	sp.Fee = types.MicroAlgos(fee)
	return sp
}
