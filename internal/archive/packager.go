package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// Entry is one successfully rendered ticket document. Failed tickets never
// become entries, so the archive count always matches the completed count.
type Entry struct {
	Code     string
	Document []byte
}

// Filename returns the deterministic archive name for the entry. The ticket
// code is part of the name so every document traces back to a ledger row.
func (e Entry) Filename() string {
	return fmt.Sprintf("ticket-%s.pdf", e.Code)
}

// Package bundles rendered documents into one zip archive.
func Package(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})

	for _, entry := range entries {
		w, err := zw.Create(entry.Filename())
		if err != nil {
			return nil, fmt.Errorf("failed to add %s to archive: %w", entry.Filename(), err)
		}
		if _, err := w.Write(entry.Document); err != nil {
			return nil, fmt.Errorf("failed to write %s into archive: %w", entry.Filename(), err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}
