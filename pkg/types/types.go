package types

import (
	"image"
	"math"
)

// Box represents a normalized bounding box with coordinates in [0,1] range,
// as returned by vision model backends.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// BoundingBox is a pixel-space face bounding box with an optional
// detection confidence.
type BoundingBox struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Center returns the center point of the box.
func (b BoundingBox) Center() (float64, float64) {
	return float64(b.X) + float64(b.Width)/2, float64(b.Y) + float64(b.Height)/2
}

// Area returns the box area in square pixels.
func (b BoundingBox) Area() int {
	return b.Width * b.Height
}

// ToPixels converts a normalized box to a pixel-space bounding box for an
// image of the given dimensions.
func (b Box) ToPixels(imgW, imgH int) BoundingBox {
	fw, fh := float64(imgW), float64(imgH)
	x0 := int(clamp(b.X, 0, 1)*fw + 0.5)
	y0 := int(clamp(b.Y, 0, 1)*fh + 0.5)
	x1 := int(clamp(b.X+b.W, 0, 1)*fw + 0.5)
	y1 := int(clamp(b.Y+b.H, 0, 1)*fh + 0.5)
	return BoundingBox{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// CropRegion describes a square sampling frame in original-image pixel
// coordinates. Rotation is applied about the region center before cropping
// and Scale zooms the sampling frame about the same center.
type CropRegion struct {
	X               int     `json:"x"`
	Y               int     `json:"y"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	RotationDegrees float64 `json:"rotation_degrees"`
	Scale           float64 `json:"scale"`
}

// Rect returns the region as an image.Rectangle.
func (r CropRegion) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// IsSquare reports whether the region has equal sides.
func (r CropRegion) IsSquare() bool {
	return r.Width == r.Height
}

// Rotated returns a copy of the region with additional rotation applied.
// Rotation accumulates in exact modular arithmetic so repeated adjustments
// never drift: two 90 degree turns equal a single 180 degree turn.
func (r CropRegion) Rotated(degrees float64) CropRegion {
	r.RotationDegrees = math.Mod(r.RotationDegrees+degrees, 360)
	if r.RotationDegrees < 0 {
		r.RotationDegrees += 360
	}
	return r
}

// Scaled returns a copy of the region with the zoom factor composed
// multiplicatively onto the existing scale.
func (r CropRegion) Scaled(factor float64) CropRegion {
	if factor > 0 {
		r.Scale *= factor
	}
	return r
}

// SheetLayout is the realized grid geometry of a print sheet.
type SheetLayout struct {
	CanvasWidthPx  int `json:"canvas_width_px"`
	CanvasHeightPx int `json:"canvas_height_px"`
	DPI            int `json:"dpi"`
	Rows           int `json:"rows"`
	Cols           int `json:"cols"`
	CellSize       int `json:"cell_size"`
	MarginPx       int `json:"margin_px"`
	GutterPx       int `json:"gutter_px"`
	OffsetX        int `json:"offset_x"`
	OffsetY        int `json:"offset_y"`
	Requested      int `json:"requested"`
	Placed         int `json:"placed"`
}

// CellOrigin returns the top-left pixel of the cell at the given row and
// column, left-to-right, top-to-bottom.
func (l SheetLayout) CellOrigin(row, col int) (int, int) {
	x := l.OffsetX + col*(l.CellSize+l.GutterPx)
	y := l.OffsetY + row*(l.CellSize+l.GutterPx)
	return x, y
}

// ProcessingRequest is the immutable input bundle for one pipeline run.
// It is consumed once and never mutated by any stage.
type ProcessingRequest struct {
	Source       image.Image
	FaceHint     *BoundingBox
	ManualCrop   *CropRegion
	Background   string
	Copies       int
	MakeSheet    bool
	FaceCoverage float64
	Brightness   float64
	Contrast     float64

	// CenterFallback permits a centered square crop when no face is found
	// and no manual crop was supplied. When false such requests fail with
	// a NoFaceDetected error.
	CenterFallback bool
}

// PassportPhoto is the terminal artifact of the single-photo path.
type PassportPhoto struct {
	Image image.Image
	// SizePx is both width and height; passport photos are square.
	SizePx int
	DPI    int
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
