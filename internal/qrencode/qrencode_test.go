package qrencode

import (
	"bytes"
	"image/png"
	"testing"
)

func TestEncodeDeterministic(t *testing.T) {
	enc := NewEncoder(256)

	first, err := enc.Encode("TKT-ABC123")
	if err != nil {
		t.Fatalf("Failed to encode QR: %v", err)
	}
	second, err := enc.Encode("TKT-ABC123")
	if err != nil {
		t.Fatalf("Failed to encode QR: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Error("Encoding the same code twice produced different bytes")
	}
}

func TestEncodeDistinctCodes(t *testing.T) {
	enc := NewEncoder(256)

	a, err := enc.Encode("TKT-AAAA")
	if err != nil {
		t.Fatalf("Failed to encode QR: %v", err)
	}
	b, err := enc.Encode("TKT-BBBB")
	if err != nil {
		t.Fatalf("Failed to encode QR: %v", err)
	}

	if bytes.Equal(a, b) {
		t.Error("Different codes produced identical QR images")
	}
}

func TestEncodeImageSize(t *testing.T) {
	enc := NewEncoder(128)

	img, err := enc.EncodeImage("TKT-SIZE")
	if err != nil {
		t.Fatalf("Failed to encode QR image: %v", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() != 128 || bounds.Dy() != 128 {
		t.Errorf("QR image is %dx%d, want 128x128", bounds.Dx(), bounds.Dy())
	}
}

func TestEncodeEmptyCode(t *testing.T) {
	enc := NewEncoder(256)

	if _, err := enc.Encode(""); err == nil {
		t.Error("Encoding an empty code should fail")
	}
}

func TestEncodeProducesPNG(t *testing.T) {
	enc := NewEncoder(256)
	enc.Level = ECCHigh

	raw, err := enc.Encode("TKT-PNG")
	if err != nil {
		t.Fatalf("Failed to encode QR: %v", err)
	}

	if _, err := png.Decode(bytes.NewReader(raw)); err != nil {
		t.Errorf("Encoded QR is not valid PNG: %v", err)
	}
}
