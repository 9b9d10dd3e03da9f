package v1

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	key, err := randomBytes(32)
	require.NoError(t, err)

	plaintexts := [][]byte{
		[]byte(`{"id":1,"jsonrpc":"2.0","method":"wc_sessionRequest"}`),
		[]byte("x"),
		make([]byte, 16), // exactly one block, forces a full padding block
	}
	for _, plaintext := range plaintexts {
		payload, err := encrypt(plaintext, key)
		require.NoError(t, err)

		got, err := decrypt(payload, key)
		require.NoError(t, err)
		require.Equal(t, plaintext, got)
	}
}

func TestDecryptRejectsTamperedPayload(t *testing.T) {
	key, err := randomBytes(32)
	require.NoError(t, err)
	payload, err := encrypt([]byte(`{"id":1}`), key)
	require.NoError(t, err)

	t.Run("flipped_ciphertext", func(t *testing.T) {
		data, err := hex.DecodeString(payload.Data)
		require.NoError(t, err)
		data[0] ^= 0xff
		tampered := *payload
		tampered.Data = hex.EncodeToString(data)
		_, err = decrypt(&tampered, key)
		require.Error(t, err)
	})

	t.Run("flipped_iv", func(t *testing.T) {
		iv, err := hex.DecodeString(payload.IV)
		require.NoError(t, err)
		iv[0] ^= 0xff
		tampered := *payload
		tampered.IV = hex.EncodeToString(iv)
		_, err = decrypt(&tampered, key)
		require.Error(t, err)
	})

	t.Run("wrong_key", func(t *testing.T) {
		other, err := randomBytes(32)
		require.NoError(t, err)
		_, err = decrypt(payload, other)
		require.Error(t, err)
	})

	t.Run("bad_hex", func(t *testing.T) {
		tampered := *payload
		tampered.Hmac = "zz"
		_, err = decrypt(&tampered, key)
		require.Error(t, err)
	})
}

func TestPkcs7(t *testing.T) {
	for _, size := range []int{0, 1, 15, 16, 17, 31} {
		data := make([]byte, size)
		for i := range data {
			data[i] = byte(i)
		}
		padded := pkcs7Pad(data, 16)
		require.Zero(t, len(padded)%16)

		got, err := pkcs7Unpad(padded, 16)
		require.NoError(t, err)
		require.Equal(t, data, got)
	}

	_, err := pkcs7Unpad([]byte{1, 2, 3}, 16)
	require.Error(t, err)
	_, err = pkcs7Unpad(nil, 16)
	require.Error(t, err)
}
