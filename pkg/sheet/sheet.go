// Package sheet packs copies of a processed passport photo onto a print
// canvas and exports the result as a single-page PDF.
package sheet

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/idphoto/passport-photo/pkg/types"
)

// A4 print canvas at 300 DPI (210x297 mm).
const (
	A4WidthPx  = 2480
	A4HeightPx = 3508

	// DefaultMarginPx and DefaultGutterPx are the stock sheet geometry.
	DefaultMarginPx = 60
	DefaultGutterPx = 30
)

// guideColor is the thin light gray used for cut lines.
var guideColor = color.NRGBA{200, 200, 200, 255}

// guideOverhang extends cut lines past the grid so they remain visible
// after the first cut.
const guideOverhang = 10

// CapacityError reports that the requested copy count exceeds what the
// canvas physically holds. The layout it accompanies is still valid: the
// sheet is produced with Placed copies and the rest are dropped.
type CapacityError struct {
	Requested int
	Placed    int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("sheet holds %d copies, %d requested", e.Placed, e.Requested)
}

// ComputeLayout derives the grid placement for the given canvas, photo size
// and margin policy. The realized grid never exceeds the physical page: when
// copies exceed capacity the returned layout carries the maximum placeable
// count together with a *CapacityError.
func ComputeLayout(canvasW, canvasH, dpi, photoSize, margin, gutter, copies int) (types.SheetLayout, error) {
	if canvasW <= 0 || canvasH <= 0 {
		return types.SheetLayout{}, fmt.Errorf("invalid canvas size %dx%d", canvasW, canvasH)
	}
	if photoSize <= 0 {
		return types.SheetLayout{}, fmt.Errorf("invalid photo size %d", photoSize)
	}
	if margin < 0 || gutter < 0 {
		return types.SheetLayout{}, fmt.Errorf("negative margin or gutter")
	}
	if copies < 1 {
		return types.SheetLayout{}, fmt.Errorf("invalid copy count %d", copies)
	}

	availW := canvasW - 2*margin
	availH := canvasH - 2*margin
	if availW < photoSize || availH < photoSize {
		return types.SheetLayout{}, fmt.Errorf("photo %dpx does not fit canvas %dx%d with margin %d",
			photoSize, canvasW, canvasH, margin)
	}

	capCols := (availW + gutter) / (photoSize + gutter)
	capRows := (availH + gutter) / (photoSize + gutter)
	capacity := capCols * capRows

	placed := copies
	if placed > capacity {
		placed = capacity
	}

	// Shrink the realized grid to the copies actually placed so the sheet
	// is centered around what is printed, not around empty capacity.
	cols := capCols
	if cols > placed {
		cols = placed
	}
	rows := (placed + cols - 1) / cols

	gridW := cols*photoSize + (cols-1)*gutter
	gridH := rows*photoSize + (rows-1)*gutter

	layout := types.SheetLayout{
		CanvasWidthPx:  canvasW,
		CanvasHeightPx: canvasH,
		DPI:            dpi,
		Rows:           rows,
		Cols:           cols,
		CellSize:       photoSize,
		MarginPx:       margin,
		GutterPx:       gutter,
		OffsetX:        (canvasW - gridW) / 2,
		OffsetY:        (canvasH - gridH) / 2,
		Requested:      copies,
		Placed:         placed,
	}

	if copies > capacity {
		return layout, &CapacityError{Requested: copies, Placed: capacity}
	}
	return layout, nil
}

// Render pastes the same processed photo into every cell of the layout,
// left-to-right and top-to-bottom. The photo has already been through
// segmentation and compositing exactly once; tiling only copies pixels.
func Render(photo image.Image, layout types.SheetLayout, cutGuides bool) *image.NRGBA {
	// Re-fit once; every cell pastes the same pixels.
	if b := photo.Bounds(); b.Dx() != layout.CellSize || b.Dy() != layout.CellSize {
		photo = imaging.Resize(photo, layout.CellSize, layout.CellSize, imaging.Lanczos)
	}
	photos := make([]image.Image, layout.Placed)
	for i := range photos {
		photos[i] = photo
	}
	return RenderMultiple(photos, layout, cutGuides)
}

// RenderMultiple pastes distinct photos into consecutive cells, used for
// batch sheets combining several processed portraits.
func RenderMultiple(photos []image.Image, layout types.SheetLayout, cutGuides bool) *image.NRGBA {
	canvas := imaging.New(layout.CanvasWidthPx, layout.CanvasHeightPx, color.NRGBA{255, 255, 255, 255})

	n := len(photos)
	if n > layout.Placed {
		n = layout.Placed
	}

	for i := 0; i < n; i++ {
		photo := photos[i]
		b := photo.Bounds()
		if b.Dx() != layout.CellSize || b.Dy() != layout.CellSize {
			photo = imaging.Resize(photo, layout.CellSize, layout.CellSize, imaging.Lanczos)
		}

		row := i / layout.Cols
		col := i % layout.Cols
		x, y := layout.CellOrigin(row, col)
		canvas = imaging.Paste(canvas, photo, image.Pt(x, y))
	}

	if cutGuides {
		drawCutGuides(canvas, layout)
	}
	return canvas
}

// drawCutGuides draws thin lines centered in the gutters between cells,
// extending slightly past the grid on both sides.
func drawCutGuides(canvas *image.NRGBA, layout types.SheetLayout) {
	gridW := layout.Cols*layout.CellSize + (layout.Cols-1)*layout.GutterPx
	gridH := layout.Rows*layout.CellSize + (layout.Rows-1)*layout.GutterPx

	y0 := layout.OffsetY - guideOverhang
	y1 := layout.OffsetY + gridH + guideOverhang
	for col := 1; col < layout.Cols; col++ {
		x := layout.OffsetX + col*(layout.CellSize+layout.GutterPx) - layout.GutterPx/2
		drawVLine(canvas, x, y0, y1, guideColor)
	}

	x0 := layout.OffsetX - guideOverhang
	x1 := layout.OffsetX + gridW + guideOverhang
	for row := 1; row < layout.Rows; row++ {
		y := layout.OffsetY + row*(layout.CellSize+layout.GutterPx) - layout.GutterPx/2
		drawHLine(canvas, y, x0, x1, guideColor)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	if x0 < 0 {
		x0 = 0
	}
	if x1 > img.Bounds().Dx() {
		x1 = img.Bounds().Dx()
	}
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	if y0 < 0 {
		y0 = 0
	}
	if y1 > img.Bounds().Dy() {
		y1 = img.Bounds().Dy()
	}
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
