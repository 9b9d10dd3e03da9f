package v2

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

// randomTopic mints a fresh 32-byte hex session topic.
func randomTopic() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// randomKeyHex mints a fresh 32-byte hex key, used as the responder public
// key announced at settlement.
func randomKeyHex() (string, error) {
	return randomTopic()
}

// seal produces a type-0 envelope: nonce || ChaCha20-Poly1305 ciphertext,
// base64 encoded for the relay.
func seal(plaintext, symKey []byte) (string, error) {
	aead, err := chacha20poly1305.New(symKey)
	if err != nil {
		return "", errors.Wrap(err, "create aead")
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// open reverses seal, authenticating before returning plaintext.
func open(message string, symKey []byte) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(message)
	if err != nil {
		return nil, errors.Wrap(err, "decode envelope base64")
	}
	aead, err := chacha20poly1305.New(symKey)
	if err != nil {
		return nil, errors.Wrap(err, "create aead")
	}
	if len(raw) < aead.NonceSize() {
		return nil, errors.New("envelope shorter than nonce")
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, nil)
}
