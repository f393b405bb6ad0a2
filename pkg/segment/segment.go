// Package segment separates the photo subject from its background by
// delegating to an opaque background-removal model and normalizing its
// output to an alpha mask aligned with the cropped image.
package segment

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/idphoto/passport-photo/pkg/mask"
)

// Backend is the opaque model capability: given an image, return the
// subject cutout as an image with an alpha channel. The model may work at
// any resolution; the adapter owns all resizing.
type Backend interface {
	Cutout(ctx context.Context, img image.Image) (image.Image, error)
}

// Segmenter produces an alpha mask for a cropped image.
type Segmenter interface {
	Segment(ctx context.Context, img image.Image) (*mask.Alpha, error)
}

// Adapter wraps a Backend and owns the resolution contract: the cropped
// image is downscaled to the model's input size before the call, and the
// resulting mask is smoothly resampled back to the crop's native resolution.
// The mask stays continuous in [0,1]; no thresholding is applied.
type Adapter struct {
	backend Backend
	// inputSize is the long-side limit sent to the model; 0 sends the
	// image unscaled.
	inputSize int
}

// NewAdapter wraps a backend. inputSize is the maximum long side, in
// pixels, submitted to the model (320 suits u2net-class models).
func NewAdapter(backend Backend, inputSize int) *Adapter {
	return &Adapter{backend: backend, inputSize: inputSize}
}

// Segment returns an alpha mask with the exact dimensions of img. A backend
// failure is surfaced, never silently replaced with an unmasked image.
func (a *Adapter) Segment(ctx context.Context, img image.Image) (*mask.Alpha, error) {
	if a.backend == nil {
		return nil, fmt.Errorf("no segmentation backend configured")
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid image dimensions %dx%d", w, h)
	}

	modelInput := img
	if a.inputSize > 0 && (w > a.inputSize || h > a.inputSize) {
		if w >= h {
			modelInput = imaging.Resize(img, a.inputSize, 0, imaging.Lanczos)
		} else {
			modelInput = imaging.Resize(img, 0, a.inputSize, imaging.Lanczos)
		}
	}

	cutout, err := a.backend.Cutout(ctx, modelInput)
	if err != nil {
		return nil, fmt.Errorf("segmentation backend: %w", err)
	}
	if cutout == nil {
		return nil, fmt.Errorf("segmentation backend returned no image")
	}

	m := mask.FromAlphaChannel(cutout)
	return m.ResizeTo(w, h)
}
