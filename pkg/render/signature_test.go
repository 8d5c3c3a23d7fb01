package render

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeTestPNG(t *testing.T, width, height int, inked func(x, y int) bool) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if inked(x, y) {
				img.Set(x, y, color.RGBA{R: 10, G: 10, B: 120, A: 255})
			} else {
				img.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
			}
		}
	}
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestParseSignatureTyped(t *testing.T) {
	sig, err := ParseSignature("  Dr. Aminah Yusof ", "typed")
	require.NoError(t, err)
	typed, ok := sig.(TypedSignature)
	require.True(t, ok)
	assert.Equal(t, "Dr. Aminah Yusof", typed.Text)
	assert.Equal(t, typedPlacement, sig.Placement())
}

func TestParseSignatureTypedEmpty(t *testing.T) {
	_, err := ParseSignature("   ", "typed")
	require.Error(t, err)
}

func TestParseSignatureDrawn(t *testing.T) {
	encoded := encodeTestPNG(t, 20, 10, func(x, y int) bool { return x == y })
	sig, err := ParseSignature("data:image/png;base64,"+encoded, "drawn")
	require.NoError(t, err)
	_, ok := sig.(DrawnSignature)
	require.True(t, ok)
	assert.Equal(t, drawnPlacement, sig.Placement())
}

func TestParseSignatureImageTrimsBackground(t *testing.T) {
	// Ink confined to a small block; the trim must crop to it.
	encoded := encodeTestPNG(t, 40, 40, func(x, y int) bool {
		return x >= 10 && x < 14 && y >= 20 && y < 26
	})
	sig, err := ParseSignature(encoded, "image")
	require.NoError(t, err)
	img, ok := sig.(ImageSignature)
	require.True(t, ok)
	assert.Equal(t, imagePlacement, sig.Placement())

	decoded, err := png.Decode(bytes.NewReader(img.PNG))
	require.NoError(t, err)
	assert.Equal(t, 4, decoded.Bounds().Dx())
	assert.Equal(t, 6, decoded.Bounds().Dy())
}

func TestParseSignatureImageAllBlankKeptWhole(t *testing.T) {
	encoded := encodeTestPNG(t, 12, 8, func(x, y int) bool { return false })
	sig, err := ParseSignature(encoded, "image")
	require.NoError(t, err)
	img := sig.(ImageSignature)

	decoded, err := png.Decode(bytes.NewReader(img.PNG))
	require.NoError(t, err)
	assert.Equal(t, 12, decoded.Bounds().Dx())
	assert.Equal(t, 8, decoded.Bounds().Dy())
}

func TestParseSignatureMalformedBase64(t *testing.T) {
	_, err := ParseSignature("not-base64!!!", "drawn")
	require.Error(t, err)
	_, err = ParseSignature("not-base64!!!", "image")
	require.Error(t, err)
}

func TestParseSignatureUnknownType(t *testing.T) {
	_, err := ParseSignature("anything", "stamped")
	require.Error(t, err)
}

func TestVariantGeometryIsDistinct(t *testing.T) {
	placements := []Placement{typedPlacement, drawnPlacement, imagePlacement}
	for i := range placements {
		for j := range placements {
			if i == j {
				continue
			}
			assert.NotEqual(t, placements[i], placements[j])
		}
	}
}
