package qrcode

import (
	"fmt"

	qr "github.com/skip2/go-qrcode"
)

const DefaultSize = 256

// Renderer produces square PNG QR codes at medium error correction.
type Renderer struct {
	size int
}

// NewRenderer returns a renderer for size x size pixel images. Non-positive sizes use DefaultSize.
func NewRenderer(size int) *Renderer {
	if size <= 0 {
		size = DefaultSize
	}
	return &Renderer{size: size}
}

func (r *Renderer) Encode(content string) ([]byte, error) {
	png, err := qr.Encode(content, qr.Medium, r.size)
	if err != nil {
		return nil, fmt.Errorf("qrcode: encode: %w", err)
	}
	return png, nil
}
