package crypto

import (
	"encoding/hex"
	"fmt"

	"github.com/zinevault/zinevault/api/internal/core/domain"
	"github.com/zinevault/zinevault/api/internal/core/utils"
)

// MinPepperSize is the shortest server pepper accepted, in bytes.
const MinPepperSize = 32

var lookupSaltLabel = []byte("zinevault/lookup-salt/v1\x00")

// HMACLookupSalter derives a password's lookup salt as HMAC-SHA256(pepper, label || password).
// The pepper must stay fixed for the life of a vault: changing it orphans every record.
type HMACLookupSalter struct {
	pepper []byte
}

func NewHMACLookupSalter(pepperHex string) (*HMACLookupSalter, error) {
	pepper, err := hex.DecodeString(pepperHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPepper, err)
	}
	if len(pepper) < MinPepperSize {
		return nil, fmt.Errorf("%w: got %d bytes, want at least %d", ErrInvalidPepper, len(pepper), MinPepperSize)
	}
	return &HMACLookupSalter{pepper: pepper}, nil
}

func (s *HMACLookupSalter) Salt(password string) []byte {
	return utils.KeyedDigest(s.pepper, lookupSaltLabel, []byte(password))[:domain.SaltSize]
}
