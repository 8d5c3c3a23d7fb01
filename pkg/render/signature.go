package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Placement describes the geometry a signature occupies on a letter,
// in millimetres.
type Placement struct {
	Width   float64
	Height  float64
	Spacing float64
}

// Per-variant geometry. Each variant owns its constants; switching variant
// must never reuse another variant's geometry.
var (
	typedPlacement = Placement{Width: 60, Height: 10, Spacing: 4}
	drawnPlacement = Placement{Width: 50, Height: 18, Spacing: 2}
	imagePlacement = Placement{Width: 45, Height: 20, Spacing: 3}
)

// Signature is the closed variant set for letter signatures: typed text,
// a drawn canvas capture, or an uploaded image. The unexported apply method
// keeps the set closed to this package.
type Signature interface {
	Placement() Placement
	apply(pdf *gofpdf.Fpdf, name string, x, y float64)
}

// TypedSignature renders the signer's name in a styled script font.
type TypedSignature struct {
	Text string
}

// Placement returns the typed variant geometry.
func (s TypedSignature) Placement() Placement { return typedPlacement }

func (s TypedSignature) apply(pdf *gofpdf.Fpdf, name string, x, y float64) {
	pdf.SetFont("Times", "I", 16)
	pdf.Text(x, y+typedPlacement.Height-2, s.Text)
	pdf.SetFont("Arial", "", 10)
}

// DrawnSignature holds a PNG captured from a signing canvas.
type DrawnSignature struct {
	PNG []byte
}

// Placement returns the drawn variant geometry.
func (s DrawnSignature) Placement() Placement { return drawnPlacement }

func (s DrawnSignature) apply(pdf *gofpdf.Fpdf, name string, x, y float64) {
	placeImage(pdf, name, s.PNG, x, y, drawnPlacement)
}

// ImageSignature holds an uploaded PNG with its background trimmed.
type ImageSignature struct {
	PNG []byte
}

// Placement returns the image variant geometry.
func (s ImageSignature) Placement() Placement { return imagePlacement }

func (s ImageSignature) apply(pdf *gofpdf.Fpdf, name string, x, y float64) {
	placeImage(pdf, name, s.PNG, x, y, imagePlacement)
}

func placeImage(pdf *gofpdf.Fpdf, name string, data []byte, x, y float64, p Placement) {
	opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	pdf.ImageOptions(name, x, y, p.Width, p.Height, false, opts, 0, "")
}

// ParseSignature builds the variant matching sigType from a raw submitted
// value: the signer's name for "typed", base64 PNG data (optionally a data
// URI) for "drawn" and "image". Image signatures get their background
// trimmed so only the ink remains.
func ParseSignature(value, sigType string) (Signature, error) {
	switch sigType {
	case "typed":
		if strings.TrimSpace(value) == "" {
			return nil, fmt.Errorf("typed signature requires text")
		}
		return TypedSignature{Text: strings.TrimSpace(value)}, nil
	case "drawn":
		data, err := decodePNG(value)
		if err != nil {
			return nil, fmt.Errorf("drawn signature: %w", err)
		}
		return DrawnSignature{PNG: data}, nil
	case "image":
		data, err := decodePNG(value)
		if err != nil {
			return nil, fmt.Errorf("image signature: %w", err)
		}
		trimmed, err := trimBackground(data)
		if err != nil {
			return nil, fmt.Errorf("image signature: %w", err)
		}
		return ImageSignature{PNG: trimmed}, nil
	default:
		return nil, fmt.Errorf("unknown signature type %q", sigType)
	}
}

func decodePNG(value string) ([]byte, error) {
	raw := value
	if idx := strings.Index(raw, "base64,"); idx >= 0 {
		raw = raw[idx+len("base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	if _, err := png.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	return data, nil
}

// trimBackground crops the image to the bounding box of its ink, dropping
// transparent and near-white pixels. Uploaded scans usually carry a large
// white margin that would dwarf the signature at letter scale.
func trimBackground(data []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}

	bounds := img.Bounds()
	minX, minY := bounds.Max.X, bounds.Max.Y
	maxX, maxY := bounds.Min.X, bounds.Min.Y
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if !isInk(img.At(x, y).RGBA()) {
				continue
			}
			if x < minX {
				minX = x
			}
			if y < minY {
				minY = y
			}
			if x > maxX {
				maxX = x
			}
			if y > maxY {
				maxY = y
			}
		}
	}

	if minX > maxX || minY > maxY {
		// Entirely blank image: keep as-is rather than emit a zero-size crop.
		return data, nil
	}

	crop := image.Rect(minX, minY, maxX+1, maxY+1)
	out := image.NewRGBA(image.Rect(0, 0, crop.Dx(), crop.Dy()))
	for y := 0; y < crop.Dy(); y++ {
		for x := 0; x < crop.Dx(); x++ {
			out.Set(x, y, img.At(crop.Min.X+x, crop.Min.Y+y))
		}
	}

	buf := &bytes.Buffer{}
	if err := png.Encode(buf, out); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func isInk(r, g, b, a uint32) bool {
	if a < 0x1000 {
		return false
	}
	// Near-white counts as background.
	const whiteFloor = 0xf000
	return r < whiteFloor || g < whiteFloor || b < whiteFloor
}
