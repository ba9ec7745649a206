package crypto

import "errors"

var (
	ErrInvalidSaltSize  = errors.New("crypto: invalid salt size")
	ErrInvalidKeySize   = errors.New("crypto: invalid key size")
	ErrInvalidNonceSize = errors.New("crypto: invalid nonce size")
	ErrInvalidCost      = errors.New("crypto: invalid kdf cost parameters")
	ErrInvalidPepper    = errors.New("crypto: invalid lookup pepper")
)
