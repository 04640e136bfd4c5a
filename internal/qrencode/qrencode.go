package qrencode

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/skip2/go-qrcode"
)

// ECCLevel selects the QR error-correction level. Medium is the default
// balance between payload density and scan robustness under print and camera
// degradation.
type ECCLevel int

const (
	ECCLow ECCLevel = iota
	ECCMedium
	ECCHigh
)

func (l ECCLevel) recovery() qrcode.RecoveryLevel {
	switch l {
	case ECCLow:
		return qrcode.Low
	case ECCHigh:
		return qrcode.High
	default:
		return qrcode.Medium
	}
}

func (l ECCLevel) String() string {
	switch l {
	case ECCLow:
		return "low"
	case ECCHigh:
		return "high"
	default:
		return "medium"
	}
}

// Encoder renders ticket codes into QR rasters. Encoding is pure: identical
// (code, size, level) inputs produce identical bytes.
type Encoder struct {
	Size  int
	Level ECCLevel
}

func NewEncoder(size int) *Encoder {
	return &Encoder{Size: size, Level: ECCMedium}
}

// Encode returns the QR symbol for code as PNG bytes.
func (e *Encoder) Encode(code string) ([]byte, error) {
	if code == "" {
		return nil, fmt.Errorf("cannot encode empty code")
	}
	return qrcode.Encode(code, e.Level.recovery(), e.Size)
}

// EncodeImage returns the QR symbol decoded into an image for compositing.
func (e *Encoder) EncodeImage(code string) (image.Image, error) {
	raw, err := e.Encode(code)
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode generated QR: %w", err)
	}
	return img, nil
}
