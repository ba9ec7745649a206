package domain

import "context"

// Fixed sizes for every primitive the vault and archive pipeline use.
const (
	SaltSize           = 32
	KeySize            = 32
	NonceSize          = 24
	RecoverySecretSize = 32
)

// KeyDeriver turns a password and salt into a KeySize key.
// Implementations are deterministic for identical (password, salt, cost) and
// reject salts whose length is not SaltSize.
type KeyDeriver interface {
	Derive(password string, salt []byte) ([]byte, error)
}

// BoundedDeriver is a KeyDeriver behind a worker pool. It honours ctx while waiting for capacity.
type BoundedDeriver interface {
	Derive(ctx context.Context, password string, salt []byte) ([]byte, error)
}

// Cipher is the authenticated symmetric cipher sealing zine archives.
// Decrypt returns ErrAuthentication for any modified ciphertext, key or nonce.
type Cipher interface {
	Encrypt(plaintext, key, nonce []byte) ([]byte, error)
	Decrypt(ciphertext, key, nonce []byte) ([]byte, error)
}

// ArchivePacker serializes zine content into a single archive blob and back.
type ArchivePacker interface {
	Pack(content ZineContent) ([]byte, error)
	Unpack(archive []byte) (ZineContent, error)
}

// LookupSalter yields the deterministic salt used to derive a password's vault lookup key.
// The same password always maps to the same salt for a given server configuration.
type LookupSalter interface {
	Salt(password string) []byte
}

// QRRenderer encodes text as a PNG QR code.
type QRRenderer interface {
	Encode(content string) ([]byte, error)
}
