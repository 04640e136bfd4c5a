package compositor

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"ms-issuance/internal/errs"
)

// Anchor names the square region in template pixel space where the QR symbol
// is drawn.
type Anchor struct {
	X    int `json:"x"`
	Y    int `json:"y"`
	Size int `json:"size"`
}

// qrMargin is the solid padding drawn behind the QR so it stays scannable
// over busy template art.
const qrMargin = 8

// ValidateAnchor rejects anchors that do not fit the template. Mis-specified
// anchors are surfaced as errors, never silently clamped or relocated.
func ValidateAnchor(bounds image.Rectangle, anchor Anchor) error {
	if anchor.Size <= 0 {
		return &errs.TemplateError{Reason: "anchor size must be positive"}
	}
	if anchor.X < 0 || anchor.Y < 0 ||
		anchor.X+anchor.Size > bounds.Dx() ||
		anchor.Y+anchor.Size > bounds.Dy() {
		return &errs.TemplateError{Reason: "anchor lies outside template bounds"}
	}
	return nil
}

// Compose overlays the QR image onto the base template at the anchor and
// returns a new image. The base is never mutated. The QR is resized to the
// anchor square and backed by a white pad so dark artwork does not bleed into
// the symbol's quiet zone.
func Compose(base image.Image, qr image.Image, anchor Anchor) (image.Image, error) {
	if err := ValidateAnchor(base.Bounds(), anchor); err != nil {
		return nil, err
	}

	canvas := imaging.Clone(base)

	pad := imaging.New(anchor.Size+2*qrMargin, anchor.Size+2*qrMargin, color.White)
	canvas = imaging.Paste(canvas, pad, image.Pt(anchor.X-qrMargin, anchor.Y-qrMargin))

	symbol := imaging.Resize(qr, anchor.Size, anchor.Size, imaging.Lanczos)
	canvas = imaging.Paste(canvas, symbol, image.Pt(anchor.X, anchor.Y))

	return canvas, nil
}
