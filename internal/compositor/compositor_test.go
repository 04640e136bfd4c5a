package compositor

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"

	"ms-issuance/internal/errs"
)

func redBase(w, h int) *image.NRGBA {
	return imaging.New(w, h, color.NRGBA{R: 200, A: 255})
}

func blackQR(size int) *image.NRGBA {
	return imaging.New(size, size, color.NRGBA{A: 255})
}

func TestComposePlacesQR(t *testing.T) {
	base := redBase(100, 100)
	qr := blackQR(16)

	out, err := Compose(base, qr, Anchor{X: 40, Y: 40, Size: 20})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	nrgba, ok := out.(*image.NRGBA)
	if !ok {
		t.Fatalf("Compose returned %T, want *image.NRGBA", out)
	}

	// Center of the anchor must now be black, corners of the template red.
	center := nrgba.NRGBAAt(50, 50)
	if center.R > 50 {
		t.Errorf("Anchor center pixel is %v, expected QR black", center)
	}
	corner := nrgba.NRGBAAt(5, 5)
	if corner.R != 200 {
		t.Errorf("Template corner pixel is %v, expected untouched red", corner)
	}
}

func TestComposeDrawsWhitePad(t *testing.T) {
	base := redBase(100, 100)
	qr := blackQR(16)

	out, err := Compose(base, qr, Anchor{X: 40, Y: 40, Size: 20})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	// Just outside the QR square but inside the margin must be white.
	pad := out.(*image.NRGBA).NRGBAAt(36, 50)
	if pad.R != 255 || pad.G != 255 || pad.B != 255 {
		t.Errorf("Pad pixel is %v, expected white backing", pad)
	}
}

func TestComposeDoesNotMutateBase(t *testing.T) {
	base := redBase(100, 100)
	qr := blackQR(16)

	before := base.NRGBAAt(50, 50)
	if _, err := Compose(base, qr, Anchor{X: 40, Y: 40, Size: 20}); err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	after := base.NRGBAAt(50, 50)

	if before != after {
		t.Error("Compose mutated the base template image")
	}
}

func TestComposeRejectsOutOfBoundsAnchor(t *testing.T) {
	base := redBase(100, 100)
	qr := blackQR(16)

	tests := []Anchor{
		{X: 95, Y: 40, Size: 20},  // overflows right edge
		{X: 40, Y: 95, Size: 20},  // overflows bottom edge
		{X: -1, Y: 40, Size: 20},  // negative origin
		{X: 40, Y: 40, Size: 0},   // zero size
		{X: 40, Y: 40, Size: -10}, // negative size
	}

	for _, anchor := range tests {
		_, err := Compose(base, qr, anchor)
		if err == nil {
			t.Errorf("Compose accepted invalid anchor %+v", anchor)
			continue
		}
		var terr *errs.TemplateError
		if !errors.As(err, &terr) {
			t.Errorf("Anchor %+v returned %T, want *errs.TemplateError", anchor, err)
		}
	}
}

func TestValidateAnchorAtEdges(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 100)

	// Exactly filling the template is valid.
	if err := ValidateAnchor(bounds, Anchor{X: 0, Y: 0, Size: 100}); err != nil {
		t.Errorf("Full-bleed anchor rejected: %v", err)
	}
	// One pixel over is not.
	if err := ValidateAnchor(bounds, Anchor{X: 1, Y: 0, Size: 100}); err == nil {
		t.Error("Anchor overflowing by one pixel was accepted")
	}
}
