package transactions

import (
	"fmt"

	"github.com/pkg/errors"
)

// Draft validation errors. These terminate composition before any bytes are
// produced.
var (
	ErrInvalidAddress    = errors.New("receiver address is not a valid algorand address")
	ErrNegativeAmount    = errors.New("amount is negative after fee and minimum balance adjustment")
	ErrMissingAssetIndex = errors.New("asset transaction requires an asset index")
	ErrMissingAmount     = errors.New("asset transfer requires an amount")
	ErrMissingSender     = errors.New("draft has no sender account")
	ErrUnknownDraft      = errors.New("unknown transaction draft kind")
)

// Controller errors.
var (
	ErrNoDraft        = errors.New("no transaction draft is set")
	ErrUploadInFlight = errors.New("an upload is already in flight")
)

// BroadcastErrorKind partitions upload failures so callers can distinguish
// flaky transport from a node that refused the transaction.
type BroadcastErrorKind int

const (
	// BroadcastErrorConnection covers unreachable node, timeouts and
	// cancelled contexts. Retrying may help.
	BroadcastErrorConnection BroadcastErrorKind = iota
	// BroadcastErrorRejected means the node received and refused the
	// transaction. Retrying the same bytes will not help.
	BroadcastErrorRejected
	// BroadcastErrorMalformed means the signed bytes did not decode as a
	// transaction; nothing was sent.
	BroadcastErrorMalformed
)

func (k BroadcastErrorKind) String() string {
	switch k {
	case BroadcastErrorConnection:
		return "connection"
	case BroadcastErrorRejected:
		return "rejected"
	case BroadcastErrorMalformed:
		return "malformed"
	}
	return "unknown"
}

// BroadcastError wraps an upload failure with its kind.
type BroadcastError struct {
	Kind BroadcastErrorKind
	Err  error
}

func (e *BroadcastError) Error() string {
	return fmt.Sprintf("broadcast failed (%s): %v", e.Kind, e.Err)
}

func (e *BroadcastError) Unwrap() error {
	return e.Err
}
