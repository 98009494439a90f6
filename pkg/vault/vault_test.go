package vault

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey(b byte) []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = b
	}
	return key
}

func TestNewRejectsBadKeyLength(t *testing.T) {
	_, err := New([]byte("too short"))
	require.ErrorIs(t, err, ErrBadKey)

	_, err = New(make([]byte, 64))
	require.ErrorIs(t, err, ErrBadKey)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v, err := New(testKey(0x42))
	require.NoError(t, err)

	credentials := map[string]string{
		"access_key": "AKIAEXAMPLE",
		"secret_key": "shhh",
		"region":     "eu-west-1",
	}

	blob, err := v.Encrypt(credentials)
	require.NoError(t, err)
	require.NotContains(t, blob, "AKIAEXAMPLE")

	decrypted, err := v.Decrypt(blob)
	require.NoError(t, err)
	require.Equal(t, credentials, decrypted)
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	v, err := New(testKey(0x42))
	require.NoError(t, err)

	credentials := map[string]string{"token": "abc"}

	first, err := v.Encrypt(credentials)
	require.NoError(t, err)
	second, err := v.Encrypt(credentials)
	require.NoError(t, err)

	require.NotEqual(t, first, second)
}

func TestDecryptRejectsTamperedBlob(t *testing.T) {
	v, err := New(testKey(0x42))
	require.NoError(t, err)

	blob, err := v.Encrypt(map[string]string{"token": "abc"})
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(blob)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01

	_, err = v.Decrypt(base64.StdEncoding.EncodeToString(raw))
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	v1, err := New(testKey(0x42))
	require.NoError(t, err)
	v2, err := New(testKey(0x43))
	require.NoError(t, err)

	blob, err := v1.Encrypt(map[string]string{"token": "abc"})
	require.NoError(t, err)

	_, err = v2.Decrypt(blob)
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestDecryptRejectsGarbage(t *testing.T) {
	v, err := New(testKey(0x42))
	require.NoError(t, err)

	_, err = v.Decrypt("not base64 at all!!!")
	require.ErrorIs(t, err, ErrNotEncoded)

	_, err = v.Decrypt(base64.StdEncoding.EncodeToString([]byte("tiny")))
	require.ErrorIs(t, err, ErrShortBlob)
}
