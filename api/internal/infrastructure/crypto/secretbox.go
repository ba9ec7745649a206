package crypto

import (
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/zinevault/zinevault/api/internal/core/domain"
)

// SecretboxCipher seals archives with XSalsa20-Poly1305.
type SecretboxCipher struct{}

func NewSecretboxCipher() *SecretboxCipher {
	return &SecretboxCipher{}
}

func (c *SecretboxCipher) Encrypt(plaintext, key, nonce []byte) ([]byte, error) {
	k, n, err := fixedSizes(key, nonce)
	if err != nil {
		return nil, err
	}
	return secretbox.Seal(nil, plaintext, n, k), nil
}

// Decrypt authenticates before returning anything; a failed tag yields domain.ErrAuthentication.
func (c *SecretboxCipher) Decrypt(ciphertext, key, nonce []byte) ([]byte, error) {
	k, n, err := fixedSizes(key, nonce)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < secretbox.Overhead {
		return nil, fmt.Errorf("crypto: ciphertext too short: %w", domain.ErrAuthentication)
	}

	plaintext, ok := secretbox.Open(nil, ciphertext, n, k)
	if !ok {
		return nil, fmt.Errorf("crypto: integrity check failed: %w", domain.ErrAuthentication)
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}

func fixedSizes(key, nonce []byte) (*[domain.KeySize]byte, *[domain.NonceSize]byte, error) {
	if len(key) != domain.KeySize {
		return nil, nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(key), domain.KeySize)
	}
	if len(nonce) != domain.NonceSize {
		return nil, nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidNonceSize, len(nonce), domain.NonceSize)
	}
	var k [domain.KeySize]byte
	var n [domain.NonceSize]byte
	copy(k[:], key)
	copy(n[:], nonce)
	return &k, &n, nil
}
