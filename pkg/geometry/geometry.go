// Package geometry derives square crop regions from face bounding boxes or
// manual crop input. All functions are pure and operate in original-image
// pixel coordinates.
package geometry

import (
	"fmt"
	"image"

	"github.com/idphoto/passport-photo/pkg/types"
)

const (
	// DefaultCoverageRatio controls how much larger the square crop is than
	// the raw face box, so the head fills roughly 70-80% of frame height.
	DefaultCoverageRatio = 2.2
	// MinCoverageRatio and MaxCoverageRatio bound the tunable range.
	MinCoverageRatio = 1.5
	MaxCoverageRatio = 3.0

	// centerFallbackRatio is the fraction of the smaller source dimension
	// used when neither a face box nor a manual crop is available.
	centerFallbackRatio = 0.8
)

// DeriveCropRegion maps a face bounding box or a manual crop descriptor to a
// square crop region fully contained in the source bounds.
//
// Priority order: an explicit manual crop always wins, then a face box with
// the given coverage ratio, then a centered square of 80% of the smaller
// source dimension. The returned region is always square.
func DeriveCropRegion(sourceSize image.Point, face *types.BoundingBox, manual *types.CropRegion, coverageRatio float64) (types.CropRegion, error) {
	if sourceSize.X <= 0 || sourceSize.Y <= 0 {
		return types.CropRegion{}, fmt.Errorf("invalid source dimensions %dx%d", sourceSize.X, sourceSize.Y)
	}

	if manual != nil {
		return validateManualCrop(sourceSize, *manual)
	}

	if coverageRatio == 0 {
		coverageRatio = DefaultCoverageRatio
	}
	if coverageRatio < MinCoverageRatio || coverageRatio > MaxCoverageRatio {
		return types.CropRegion{}, fmt.Errorf("coverage ratio %.2f outside valid range [%.1f, %.1f]",
			coverageRatio, MinCoverageRatio, MaxCoverageRatio)
	}

	if face != nil {
		return cropFromFaceBox(sourceSize, *face, coverageRatio), nil
	}

	return CenterCrop(sourceSize), nil
}

// CenterCrop returns the fallback region used when no face was detected:
// a centered square of 80% of the smaller source dimension.
func CenterCrop(sourceSize image.Point) types.CropRegion {
	side := int(float64(min(sourceSize.X, sourceSize.Y)) * centerFallbackRatio)
	return types.CropRegion{
		X:      (sourceSize.X - side) / 2,
		Y:      (sourceSize.Y - side) / 2,
		Width:  side,
		Height: side,
		Scale:  1,
	}
}

// cropFromFaceBox centers a square of max(w,h)*ratio on the face center and
// clamps it into the source bounds. If the derived side exceeds the smaller
// source dimension the region shrinks and recenters toward the image center
// instead of being left partially off-canvas.
func cropFromFaceBox(sourceSize image.Point, face types.BoundingBox, ratio float64) types.CropRegion {
	cx, cy := face.Center()

	side := int(float64(max(face.Width, face.Height)) * ratio)
	if m := min(sourceSize.X, sourceSize.Y); side > m {
		side = m
		// With the largest possible square, bias the center back toward
		// the image center so the frame never favors one edge.
		cx = (cx + float64(sourceSize.X)/2) / 2
		cy = (cy + float64(sourceSize.Y)/2) / 2
	}

	left := clampInt(int(cx-float64(side)/2), 0, sourceSize.X-side)
	top := clampInt(int(cy-float64(side)/2), 0, sourceSize.Y-side)

	return types.CropRegion{X: left, Y: top, Width: side, Height: side, Scale: 1}
}

// validateManualCrop checks explicit user intent and clamps it into bounds.
// The crop must be square and non-empty; a region that cannot be clamped to
// lie fully inside the source is rejected.
func validateManualCrop(sourceSize image.Point, region types.CropRegion) (types.CropRegion, error) {
	if region.Width != region.Height {
		return types.CropRegion{}, fmt.Errorf("manual crop must be square, got %dx%d", region.Width, region.Height)
	}
	if region.Width <= 0 {
		return types.CropRegion{}, fmt.Errorf("manual crop has non-positive size %d", region.Width)
	}
	if region.Scale <= 0 {
		region.Scale = 1
	}
	if region.RotationDegrees < 0 || region.RotationDegrees >= 360 {
		region = types.CropRegion{
			X: region.X, Y: region.Y,
			Width: region.Width, Height: region.Height,
			Scale: region.Scale,
		}.Rotated(region.RotationDegrees)
	}

	side := region.Width
	if side > sourceSize.X || side > sourceSize.Y {
		return types.CropRegion{}, fmt.Errorf("manual crop side %d exceeds source bounds %dx%d",
			side, sourceSize.X, sourceSize.Y)
	}

	region.X = clampInt(region.X, 0, sourceSize.X-side)
	region.Y = clampInt(region.Y, 0, sourceSize.Y-side)
	return region, nil
}

// SampleRect returns the effective pixel rectangle sampled by the region
// after applying its zoom scale. Scale > 1 zooms in by shrinking the sampled
// area about the region center.
func SampleRect(region types.CropRegion) image.Rectangle {
	scale := region.Scale
	if scale <= 0 {
		scale = 1
	}
	side := int(float64(region.Width)/scale + 0.5)
	if side < 1 {
		side = 1
	}
	cx := region.X + region.Width/2
	cy := region.Y + region.Height/2
	return image.Rect(cx-side/2, cy-side/2, cx-side/2+side, cy-side/2+side)
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
