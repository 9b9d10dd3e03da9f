package deeplink

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/algoline/wallet-core/account"
)

// Mode is what a decoded QR payload asks the wallet to do.
type Mode int

const (
	ModeMnemonic Mode = iota
	ModeAddress
	ModeAlgosRequest
	ModeAssetRequest
	ModeOptInRequest
)

func (m Mode) String() string {
	switch m {
	case ModeMnemonic:
		return "mnemonic"
	case ModeAddress:
		return "address"
	case ModeAlgosRequest:
		return "algosRequest"
	case ModeAssetRequest:
		return "assetRequest"
	case ModeOptInRequest:
		return "optInRequest"
	}
	return "unknown"
}

// Decode errors.
var (
	ErrUnrecognizedPayload = errors.New("unrecognized qr payload")
	ErrMissingAddress      = errors.New("qr payload requires an address")
	ErrMissingAmount       = errors.New("asset request requires an amount")
)

const mnemonicWordCount = 25

// Payload is a decoded QR / deep link payload.
type Payload struct {
	Mode       Mode
	Version    int
	Mnemonic   string
	Address    account.Address
	Label      string
	Amount     uint64
	AssetID    uint64
	Note       string
	LockedNote string
}

// raw mirrors the schema-versioned JSON wire form. Numeric values travel as
// strings.
type raw struct {
	Version  int    `json:"version,omitempty"`
	Mnemonic string `json:"mnemonic,omitempty"`
	Address  string `json:"address,omitempty"`
	Label    string `json:"label,omitempty"`
	Amount   string `json:"amount,omitempty"`
	Asset    string `json:"asset,omitempty"`
	Note     string `json:"note,omitempty"`
	Xnote    string `json:"xnote,omitempty"`
}

// Decode parses QR text. Plain address and mnemonic payloads are accepted
// without JSON wrapping; everything else follows the address/amount/asset
// decision table: asset present means an asset or opt-in request (zero
// amount and no address means opt-in), amount alone means an algos request,
// neither means a plain address.
func Decode(text string) (*Payload, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrUnrecognizedPayload
	}

	var r raw
	if err := json.Unmarshal([]byte(text), &r); err != nil {
		return decodeBare(text)
	}

	if r.Mnemonic != "" {
		return &Payload{Mode: ModeMnemonic, Version: r.Version, Mnemonic: r.Mnemonic}, nil
	}

	payload := &Payload{
		Version:    r.Version,
		Address:    account.Address(r.Address),
		Label:      r.Label,
		Note:       r.Note,
		LockedNote: r.Xnote,
	}

	var amount uint64
	var hasAmount bool
	if r.Amount != "" {
		parsed, err := strconv.ParseUint(r.Amount, 10, 64)
		if err != nil {
			return nil, errors.Wrap(ErrUnrecognizedPayload, "amount is not a number")
		}
		amount = parsed
		hasAmount = true
	}
	payload.Amount = amount

	switch {
	case r.Asset != "":
		assetID, err := strconv.ParseUint(r.Asset, 10, 64)
		if err != nil {
			return nil, errors.Wrap(ErrUnrecognizedPayload, "asset is not a number")
		}
		payload.AssetID = assetID
		if hasAmount && amount == 0 && r.Address == "" {
			payload.Mode = ModeOptInRequest
			return payload, nil
		}
		if !hasAmount {
			return nil, ErrMissingAmount
		}
		payload.Mode = ModeAssetRequest
	case hasAmount:
		payload.Mode = ModeAlgosRequest
	default:
		payload.Mode = ModeAddress
	}

	if payload.Mode != ModeOptInRequest {
		if r.Address == "" {
			return nil, ErrMissingAddress
		}
		if err := payload.Address.Validate(); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

// decodeBare handles unwrapped payloads: a lone address or a 25 word
// mnemonic.
func decodeBare(text string) (*Payload, error) {
	if account.Address(text).IsValid() {
		return &Payload{Mode: ModeAddress, Address: account.Address(text)}, nil
	}
	if len(strings.Fields(text)) == mnemonicWordCount {
		return &Payload{Mode: ModeMnemonic, Mnemonic: text}, nil
	}
	return nil, ErrUnrecognizedPayload
}

// Encode renders the payload back to its JSON wire form.
func Encode(p *Payload) (string, error) {
	r := raw{
		Version:  p.Version,
		Mnemonic: p.Mnemonic,
		Address:  string(p.Address),
		Label:    p.Label,
		Note:     p.Note,
		Xnote:    p.LockedNote,
	}
	switch p.Mode {
	case ModeAlgosRequest:
		r.Amount = strconv.FormatUint(p.Amount, 10)
	case ModeAssetRequest:
		r.Amount = strconv.FormatUint(p.Amount, 10)
		r.Asset = strconv.FormatUint(p.AssetID, 10)
	case ModeOptInRequest:
		r.Amount = "0"
		r.Asset = strconv.FormatUint(p.AssetID, 10)
		r.Address = ""
	}
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// QRCode renders the payload as a PNG of the given size.
func QRCode(p *Payload, size int) ([]byte, error) {
	text, err := Encode(p)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(text, qrcode.Medium, size)
}

// PairingQRCode renders a raw WalletConnect pairing URI as a PNG.
func PairingQRCode(uri string, size int) ([]byte, error) {
	return qrcode.Encode(uri, qrcode.Medium, size)
}
