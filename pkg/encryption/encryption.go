// Package encryption implements the credential vault used to protect
// connection account secrets at rest. Values are sealed with AES-GCM and
// stored as base64(nonce || ciphertext).
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// KeySize is the required vault key length in bytes (AES-256).
const KeySize = 32

// ErrBadToken is returned by Decrypt when the input is not a value this
// vault produced: bad base64, truncated payload, or a failed AEAD open.
// Callers use it to detect legacy plaintext credentials that still need
// migration.
var ErrBadToken = errors.New("encryption: bad token")

// Vault seals and opens credential strings with a single process-wide key.
// Construct it once at startup and inject it; the package never reads the
// environment.
type Vault struct {
	aead cipher.AEAD
}

func NewVault(key []byte) (*Vault, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption: key must be exactly %d bytes, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Vault{aead: aead}, nil
}

// Encrypt seals plaintext and returns a base64 encoded nonce+ciphertext.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)

	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. Anything that does not parse
// as vault output yields ErrBadToken.
func (v *Vault) Decrypt(opaque string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(opaque)
	if err != nil {
		return "", ErrBadToken
	}

	if len(raw) < v.aead.NonceSize() {
		return "", ErrBadToken
	}

	nonce, ciphertext := raw[:v.aead.NonceSize()], raw[v.aead.NonceSize():]

	plaintext, err := v.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrBadToken
	}

	return string(plaintext), nil
}

// GetOrEncrypt returns the plaintext of a credential field, migrating
// legacy plaintext values in place. If creds[field] decrypts it is already
// ciphertext and the map is left untouched; if decryption fails with
// ErrBadToken the stored value is assumed to be plaintext and is replaced
// with its ciphertext. The call is idempotent from the caller's view:
// the returned plaintext always roundtrips through Decrypt.
func (v *Vault) GetOrEncrypt(field string, creds map[string]any) (string, error) {
	raw, ok := creds[field]
	if !ok {
		return "", fmt.Errorf("encryption: credential field %q not present", field)
	}

	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("encryption: credential field %q is not a string", field)
	}

	plaintext, err := v.Decrypt(value)
	if err == nil {
		return plaintext, nil
	}

	if !errors.Is(err, ErrBadToken) {
		return "", err
	}

	sealed, err := v.Encrypt(value)
	if err != nil {
		return "", err
	}

	creds[field] = sealed

	return value, nil
}
