package qrcode_test

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zinevault/zinevault/api/internal/infrastructure/qrcode"
)

func TestRenderer_Encode(t *testing.T) {
	data, err := qrcode.NewRenderer(128).Encode("c2VjcmV0LXJlY292ZXJ5LXRva2Vu")
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())
	assert.Equal(t, 128, img.Bounds().Dy())
}

func TestRenderer_DefaultSize(t *testing.T) {
	data, err := qrcode.NewRenderer(0).Encode("x")
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, qrcode.DefaultSize, img.Bounds().Dx())
}

func TestRenderer_RejectsOversizedContent(t *testing.T) {
	_, err := qrcode.NewRenderer(128).Encode(string(bytes.Repeat([]byte("a"), 8000)))
	assert.Error(t, err)
}
