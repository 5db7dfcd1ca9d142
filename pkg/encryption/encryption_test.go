package encryption

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVault(t *testing.T) *Vault {
	t.Helper()

	v, err := NewVault([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	return v
}

func TestNewVault_KeySize(t *testing.T) {
	_, err := NewVault([]byte("too-short"))
	require.Error(t, err)
}

func TestVault_RoundTrip(t *testing.T) {
	v := testVault(t)

	sealed, err := v.Encrypt("super-secret-api-key")
	require.NoError(t, err)
	require.NotEqual(t, "super-secret-api-key", sealed)

	opened, err := v.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "super-secret-api-key", opened)
}

func TestVault_EncryptIsNotDeterministic(t *testing.T) {
	v := testVault(t)

	a, err := v.Encrypt("value")
	require.NoError(t, err)

	b, err := v.Encrypt("value")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestVault_DecryptBadToken(t *testing.T) {
	v := testVault(t)

	cases := []struct {
		name  string
		input string
	}{
		{name: "not base64", input: "not-base64!!"},
		{name: "plaintext credential", input: "ghp_plaintexttoken"},
		{name: "empty", input: ""},
		{name: "valid base64 garbage", input: "aGVsbG8="},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Decrypt(tt.input)
			assert.ErrorIs(t, err, ErrBadToken)
		})
	}
}

func TestVault_GetOrEncrypt_MigratesPlaintext(t *testing.T) {
	v := testVault(t)

	creds := map[string]any{"apiKey": "legacy-plaintext"}

	plain, err := v.GetOrEncrypt("apiKey", creds)
	require.NoError(t, err)
	assert.Equal(t, "legacy-plaintext", plain)

	// The stored value must now be ciphertext.
	stored := creds["apiKey"].(string)
	require.NotEqual(t, "legacy-plaintext", stored)

	opened, err := v.Decrypt(stored)
	require.NoError(t, err)
	assert.Equal(t, "legacy-plaintext", opened)
}

func TestVault_GetOrEncrypt_Idempotent(t *testing.T) {
	v := testVault(t)

	creds := map[string]any{"apiKey": "legacy-plaintext"}

	_, err := v.GetOrEncrypt("apiKey", creds)
	require.NoError(t, err)

	first := creds["apiKey"]

	plain, err := v.GetOrEncrypt("apiKey", creds)
	require.NoError(t, err)
	assert.Equal(t, "legacy-plaintext", plain)
	assert.Equal(t, first, creds["apiKey"], "already-encrypted value must be left intact")
}

func TestVault_GetOrEncrypt_MissingField(t *testing.T) {
	v := testVault(t)

	_, err := v.GetOrEncrypt("apiKey", map[string]any{})
	require.Error(t, err)
}
