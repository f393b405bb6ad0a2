// Package compose flattens a masked subject over a solid background color,
// producing the opaque RGB image required for passport photos.
package compose

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/idphoto/passport-photo/pkg/mask"
)

// Background is a fully opaque solid color. Passport photos never contain
// transparency.
type Background struct {
	R, G, B uint8
}

// Named background presets offered to callers.
var namedBackgrounds = map[string]Background{
	"white":      {255, 255, 255},
	"light-blue": {173, 216, 230},
	"blue":       {0, 102, 204},
	"light-gray": {211, 211, 211},
	"red":        {204, 0, 0},
	"light-rose": {255, 182, 193},
}

// BackgroundNames returns the available preset names.
func BackgroundNames() []string {
	names := make([]string, 0, len(namedBackgrounds))
	for name := range namedBackgrounds {
		names = append(names, name)
	}
	return names
}

// ParseBackground resolves a preset name or a #RRGGBB hex value. Unknown
// colors are an error; the pipeline never substitutes a default silently.
func ParseBackground(spec string) (Background, error) {
	s := strings.ToLower(strings.TrimSpace(spec))
	if s == "" {
		return Background{}, fmt.Errorf("empty background color")
	}

	if bg, ok := namedBackgrounds[s]; ok {
		return bg, nil
	}

	if strings.HasPrefix(s, "#") && len(s) == 7 {
		v, err := strconv.ParseUint(s[1:], 16, 32)
		if err != nil {
			return Background{}, fmt.Errorf("invalid hex color %q: %w", spec, err)
		}
		return Background{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
	}

	return Background{}, fmt.Errorf("unknown background color %q", spec)
}

// Options tunes the foreground before compositing. Brightness and contrast
// default to 1.0 (no change) and are valid in [0.5, 1.5].
type Options struct {
	Brightness float64
	Contrast   float64
}

// DefaultOptions returns neutral adjustment options.
func DefaultOptions() Options {
	return Options{Brightness: 1, Contrast: 1}
}

// Validate checks the adjustment ranges.
func (o Options) Validate() error {
	if o.Brightness < 0.5 || o.Brightness > 1.5 {
		return fmt.Errorf("brightness %.2f outside valid range [0.5, 1.5]", o.Brightness)
	}
	if o.Contrast < 0.5 || o.Contrast > 1.5 {
		return fmt.Errorf("contrast %.2f outside valid range [0.5, 1.5]", o.Contrast)
	}
	return nil
}

func (o Options) neutral() bool {
	return o.Brightness == 1 && o.Contrast == 1
}

// Composite alpha-blends the foreground over the background color using the
// mask: out = fg*m + bg*(1-m), channel-wise. Brightness and contrast apply
// to the foreground only, pre-composite, so the requested background color
// stays exact. All arithmetic happens in float space with a single rounding
// at the end.
//
// For a mask of all ones with neutral options the output equals the input
// exactly; for a mask of all zeros it is a flat fill of the background.
func Composite(foreground image.Image, m *mask.Alpha, bg Background, opts Options) (*image.NRGBA, error) {
	if m == nil {
		return nil, fmt.Errorf("nil mask")
	}
	if !m.Matches(foreground) {
		b := foreground.Bounds()
		return nil, fmt.Errorf("mask %dx%d does not match image %dx%d",
			m.Width, m.Height, b.Dx(), b.Dy())
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	src := imaging.Clone(foreground)
	out := image.NewNRGBA(image.Rect(0, 0, m.Width, m.Height))

	bgR, bgG, bgB := float64(bg.R), float64(bg.G), float64(bg.B)
	contrast := opts.Contrast
	brightOffset := (opts.Brightness - 1) * 128
	adjust := !opts.neutral()

	i := 0
	for y := 0; y < m.Height; y++ {
		srcRow := src.Pix[y*src.Stride : y*src.Stride+m.Width*4]
		outRow := out.Pix[y*out.Stride : y*out.Stride+m.Width*4]
		for x := 0; x < m.Width; x++ {
			a := m.Pix[i]
			i++

			fgR := float64(srcRow[x*4+0])
			fgG := float64(srcRow[x*4+1])
			fgB := float64(srcRow[x*4+2])
			if adjust {
				fgR = clamp255((fgR-128)*contrast + 128 + brightOffset)
				fgG = clamp255((fgG-128)*contrast + 128 + brightOffset)
				fgB = clamp255((fgB-128)*contrast + 128 + brightOffset)
			}

			outRow[x*4+0] = round255(fgR*a + bgR*(1-a))
			outRow[x*4+1] = round255(fgG*a + bgG*(1-a))
			outRow[x*4+2] = round255(fgB*a + bgB*(1-a))
			outRow[x*4+3] = 255
		}
	}

	return out, nil
}

// Flat returns a uniform background fill of the given size, the output for
// an all-zero mask.
func Flat(width, height int, bg Background) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		row := out.Pix[y*out.Stride : y*out.Stride+width*4]
		for x := 0; x < width; x++ {
			row[x*4+0] = bg.R
			row[x*4+1] = bg.G
			row[x*4+2] = bg.B
			row[x*4+3] = 255
		}
	}
	return out
}

func clamp255(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

func round255(v float64) uint8 {
	v += 0.5
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
