package params

// Algorand protocol constants the wallet relies on for fee and
// minimum-balance accounting. Values are in microAlgos unless noted.
const (
	// MinTxnFee is the protocol-level floor for a transaction fee.
	MinTxnFee uint64 = 1000

	// MinBalancePerAccount is the balance every account must retain.
	MinBalancePerAccount uint64 = 100_000

	// MinBalancePerAsset is the additional balance required per held asset.
	MinBalancePerAsset uint64 = 100_000

	// EstimatedTxnSize is the projected byte size used when deriving a fee
	// from a per-byte fee rate before the final transaction exists.
	EstimatedTxnSize uint64 = 270

	// MaxTxnValidityWindow bounds lastValid - firstValid.
	MaxTxnValidityWindow uint64 = 1000
)

// WalletConnect method and event names this wallet supports.
const (
	SignTransactionMethodName = "algo_signTxn"
)

var (
	SupportedMethods = []string{SignTransactionMethodName}
	SupportedEvents  = []string{"accountsChanged"}
)

// Chain identifiers in CAIP-2 form, as used in session namespaces.
const (
	MainnetChainID = "algorand:wGHE2Pwdvd7S12BL5FaOP20EGYesN73k"
	TestnetChainID = "algorand:SGO1GKSzyE7IEPItTxCByw9x8FmnrCDe"
)
