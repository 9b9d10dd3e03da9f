package v1

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"github.com/pkg/errors"
)

// encryptedPayload is the v1 bridge envelope: AES-256-CBC ciphertext with
// an HMAC-SHA256 over ciphertext||iv, all hex encoded.
type encryptedPayload struct {
	Data string `json:"data"`
	Hmac string `json:"hmac"`
	IV   string `json:"iv"`
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

func hmacSHA256(data, key []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize || padding > len(data) {
		return nil, errors.New("invalid padding byte")
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, errors.New("inconsistent padding")
		}
	}
	return data[:len(data)-padding], nil
}

// encrypt seals a plaintext JSON-RPC payload for the bridge.
func encrypt(plaintext, key []byte) (*encryptedPayload, error) {
	iv, err := randomBytes(aes.BlockSize)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "create cipher block")
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	mac := hmacSHA256(append(append([]byte{}, ciphertext...), iv...), key)
	return &encryptedPayload{
		Data: hex.EncodeToString(ciphertext),
		IV:   hex.EncodeToString(iv),
		Hmac: hex.EncodeToString(mac),
	}, nil
}

// decrypt opens a bridge envelope, verifying the HMAC before touching the
// ciphertext.
func decrypt(payload *encryptedPayload, key []byte) ([]byte, error) {
	iv, err := hex.DecodeString(payload.IV)
	if err != nil {
		return nil, errors.Wrap(err, "decode iv hex")
	}
	ciphertext, err := hex.DecodeString(payload.Data)
	if err != nil {
		return nil, errors.Wrap(err, "decode data hex")
	}
	wantMac, err := hex.DecodeString(payload.Hmac)
	if err != nil {
		return nil, errors.Wrap(err, "decode hmac hex")
	}

	mac := hmacSHA256(append(append([]byte{}, ciphertext...), iv...), key)
	if !hmac.Equal(mac, wantMac) {
		return nil, errors.New("payload hmac mismatch")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "create cipher block")
	}
	if len(iv) != aes.BlockSize {
		return nil, errors.New("invalid iv length")
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, errors.New("invalid ciphertext length")
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	return pkcs7Unpad(plaintext, aes.BlockSize)
}
