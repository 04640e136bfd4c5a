package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"testing"
)

func TestPackageEntryCount(t *testing.T) {
	entries := []Entry{
		{Code: "AAA111", Document: []byte("%PDF-1.4 first")},
		{Code: "BBB222", Document: []byte("%PDF-1.4 second")},
		{Code: "CCC333", Document: []byte("%PDF-1.4 third")},
	}

	data, err := Package(entries)
	if err != nil {
		t.Fatalf("Package failed: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Archive is not readable zip: %v", err)
	}

	if len(zr.File) != len(entries) {
		t.Fatalf("Archive has %d entries, want %d", len(zr.File), len(entries))
	}
}

func TestPackageFilenames(t *testing.T) {
	entries := []Entry{
		{Code: "XYZ789", Document: []byte("doc")},
	}

	data, err := Package(entries)
	if err != nil {
		t.Fatalf("Package failed: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Archive is not readable zip: %v", err)
	}

	if got, want := zr.File[0].Name, "ticket-XYZ789.pdf"; got != want {
		t.Errorf("Entry name is %q, want %q", got, want)
	}
}

func TestPackageRoundTripsContent(t *testing.T) {
	doc := []byte("%PDF-1.4 round trip body")
	data, err := Package([]Entry{{Code: "RT1", Document: doc}})
	if err != nil {
		t.Fatalf("Package failed: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Archive is not readable zip: %v", err)
	}

	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatalf("Failed to open archive entry: %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("Failed to read archive entry: %v", err)
	}
	if !bytes.Equal(got, doc) {
		t.Error("Archive entry content does not match the source document")
	}
}

func TestPackageEmpty(t *testing.T) {
	data, err := Package(nil)
	if err != nil {
		t.Fatalf("Package of empty list failed: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Empty archive is not readable zip: %v", err)
	}
	if len(zr.File) != 0 {
		t.Errorf("Empty archive has %d entries", len(zr.File))
	}
}

func TestPackageManyEntries(t *testing.T) {
	var entries []Entry
	for i := 0; i < 100; i++ {
		entries = append(entries, Entry{
			Code:     fmt.Sprintf("BULK%03d", i),
			Document: []byte(fmt.Sprintf("%%PDF-1.4 doc %d", i)),
		})
	}

	data, err := Package(entries)
	if err != nil {
		t.Fatalf("Package failed: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Archive is not readable zip: %v", err)
	}
	if len(zr.File) != 100 {
		t.Errorf("Archive has %d entries, want 100", len(zr.File))
	}
}
