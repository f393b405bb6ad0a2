package sheet

import (
	"fmt"
	"image"
	"io"
	"os"

	pdf "github.com/speedata/baseline-pdf"

	"github.com/idphoto/passport-photo/pkg/normalize"
	"github.com/idphoto/passport-photo/pkg/types"
)

// ExportPDF serializes the rendered sheet canvas to a single-page PDF whose
// physical page size matches the canvas at its DPI, so printed output
// measures correctly (an A4 canvas at 300 DPI becomes an A4 page).
func ExportPDF(canvas image.Image, layout types.SheetLayout, w io.Writer) error {
	if layout.DPI <= 0 {
		return fmt.Errorf("layout has no DPI")
	}

	data, err := normalize.EncodeImagePNG(canvas, layout.DPI)
	if err != nil {
		return fmt.Errorf("failed to encode sheet canvas: %w", err)
	}

	// The PDF writer loads images from disk, so the canvas passes through
	// a temp file that is removed before returning.
	tmp, err := os.CreateTemp("", "sheet-*.png")
	if err != nil {
		return fmt.Errorf("failed to create temp image: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp image: %w", err)
	}

	pw := pdf.NewPDFWriter(w)

	imgf, err := pdf.LoadImageFile(pw, tmpName)
	if err != nil {
		return fmt.Errorf("failed to load sheet image: %w", err)
	}

	widthPt := pixelsToPoints(layout.CanvasWidthPx, layout.DPI)
	heightPt := pixelsToPoints(layout.CanvasHeightPx, layout.DPI)

	pageObjectNumber := pw.NextObject()
	st := pw.NewObject()
	st.SetCompression(9)
	fmt.Fprintf(st.Data, "q %f 0 0 %f 0 0 cm %s Do Q\n", widthPt, heightPt, imgf.InternalName())

	page := pw.AddPage(st, pageObjectNumber)
	page.Width = widthPt
	page.Height = heightPt
	page.Images = append(page.Images, imgf)

	if err := pw.Finish(); err != nil {
		return fmt.Errorf("failed to finish PDF: %w", err)
	}
	return nil
}

// pixelsToPoints converts a pixel length at the given DPI to PDF points
// (72 per inch).
func pixelsToPoints(px, dpi int) float64 {
	return float64(px) * 72 / float64(dpi)
}
