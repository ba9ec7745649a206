package crypto

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/scrypt"

	"github.com/zinevault/zinevault/api/internal/core/domain"
)

const (
	AlgorithmScrypt   = "scrypt"
	AlgorithmArgon2id = "argon2id"
)

// KDFParams fixes the algorithm and cost of password derivation.
// They come from server configuration only, never from a request.
type KDFParams struct {
	Algorithm string

	ScryptN int
	ScryptR int
	ScryptP int

	ArgonTime      uint32
	ArgonMemoryKiB uint32
	ArgonThreads   uint8
}

// DefaultKDFParams are interactive-strength scrypt settings.
func DefaultKDFParams() KDFParams {
	return KDFParams{
		Algorithm:      AlgorithmScrypt,
		ScryptN:        1 << 15,
		ScryptR:        8,
		ScryptP:        1,
		ArgonTime:      3,
		ArgonMemoryKiB: 64 * 1024,
		ArgonThreads:   1,
	}
}

// NewKeyDeriver builds the deriver selected by p.Algorithm.
func NewKeyDeriver(p KDFParams) (domain.KeyDeriver, error) {
	switch strings.ToLower(p.Algorithm) {
	case "", AlgorithmScrypt:
		d, err := NewScryptDeriver(p.ScryptN, p.ScryptR, p.ScryptP)
		if err != nil {
			return nil, err
		}
		return d, nil
	case AlgorithmArgon2id:
		d, err := NewArgon2idDeriver(p.ArgonTime, p.ArgonMemoryKiB, p.ArgonThreads)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("%w: unknown algorithm %q", ErrInvalidCost, p.Algorithm)
	}
}

// ==============================================================================
// scrypt
// ==============================================================================

type ScryptDeriver struct {
	n, r, p int
}

func NewScryptDeriver(n, r, p int) (*ScryptDeriver, error) {
	if n <= 1 || n&(n-1) != 0 {
		return nil, fmt.Errorf("%w: scrypt N must be a power of two > 1, got %d", ErrInvalidCost, n)
	}
	if r <= 0 || p <= 0 || uint64(r)*uint64(p) >= 1<<30 {
		return nil, fmt.Errorf("%w: scrypt r=%d p=%d", ErrInvalidCost, r, p)
	}
	return &ScryptDeriver{n: n, r: r, p: p}, nil
}

func (d *ScryptDeriver) Derive(password string, salt []byte) ([]byte, error) {
	if len(salt) != domain.SaltSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidSaltSize, len(salt), domain.SaltSize)
	}
	key, err := scrypt.Key([]byte(password), salt, d.n, d.r, d.p, domain.KeySize)
	if err != nil {
		return nil, fmt.Errorf("crypto: scrypt derivation failure: %w", err)
	}
	return key, nil
}

// ==============================================================================
// argon2id
// ==============================================================================

type Argon2idDeriver struct {
	time      uint32
	memoryKiB uint32
	threads   uint8
}

func NewArgon2idDeriver(time, memoryKiB uint32, threads uint8) (*Argon2idDeriver, error) {
	if time == 0 || threads == 0 || memoryKiB < 8*uint32(threads) {
		return nil, fmt.Errorf("%w: argon2id t=%d m=%d p=%d", ErrInvalidCost, time, memoryKiB, threads)
	}
	return &Argon2idDeriver{time: time, memoryKiB: memoryKiB, threads: threads}, nil
}

func (d *Argon2idDeriver) Derive(password string, salt []byte) ([]byte, error) {
	if len(salt) != domain.SaltSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidSaltSize, len(salt), domain.SaltSize)
	}
	return argon2.IDKey([]byte(password), salt, d.time, d.memoryKiB, d.threads, domain.KeySize), nil
}
