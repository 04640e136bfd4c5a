package renderer

import (
	"bytes"
	"image"

	"github.com/signintech/gopdf"

	"ms-issuance/internal/errs"
)

// pdfPointsPerInch is fixed by the PDF spec.
const pdfPointsPerInch = 72.0

// PDFRenderer converts a composited ticket image into a single-page PDF whose
// page size matches the image aspect ratio at the configured DPI. Nothing is
// cropped or stretched.
type PDFRenderer struct {
	DPI int
}

func NewPDFRenderer(dpi int) *PDFRenderer {
	if dpi <= 0 {
		dpi = 96
	}
	return &PDFRenderer{DPI: dpi}
}

// Render produces the downloadable document for one ticket. Failures are
// wrapped as RenderError so the scheduler counts them per ticket instead of
// aborting the job.
func (r *PDFRenderer) Render(code string, img image.Image) ([]byte, error) {
	bounds := img.Bounds()
	widthPt := float64(bounds.Dx()) * pdfPointsPerInch / float64(r.DPI)
	heightPt := float64(bounds.Dy()) * pdfPointsPerInch / float64(r.DPI)

	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: gopdf.Rect{W: widthPt, H: heightPt}})
	pdf.AddPage()

	rect := &gopdf.Rect{W: widthPt, H: heightPt}
	if err := pdf.ImageFrom(img, 0, 0, rect); err != nil {
		return nil, &errs.RenderError{Code: code, Err: err}
	}

	var buf bytes.Buffer
	if err := pdf.Write(&buf); err != nil {
		return nil, &errs.RenderError{Code: code, Err: err}
	}

	return buf.Bytes(), nil
}
