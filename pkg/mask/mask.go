// Package mask provides the single-channel alpha mask used to separate the
// photo subject from its background.
package mask

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Alpha is a dense single-channel grid with values in [0,1], where 0 is pure
// background and 1 is pure subject. The mask stays continuous so composite
// edges anti-alias; thresholding is never applied.
type Alpha struct {
	Width  int
	Height int
	Pix    []float64
}

// New returns a zero-valued mask of the given dimensions.
func New(width, height int) (*Alpha, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid mask dimensions %dx%d", width, height)
	}
	return &Alpha{Width: width, Height: height, Pix: make([]float64, width*height)}, nil
}

// Uniform returns a mask of the given dimensions filled with a constant value.
func Uniform(width, height int, value float64) (*Alpha, error) {
	m, err := New(width, height)
	if err != nil {
		return nil, err
	}
	for i := range m.Pix {
		m.Pix[i] = value
	}
	return m, nil
}

// At returns the mask value at (x, y). Out-of-range coordinates read as 0.
func (m *Alpha) At(x, y int) float64 {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return 0
	}
	return m.Pix[y*m.Width+x]
}

// Set writes the mask value at (x, y), clamped to [0,1].
func (m *Alpha) Set(x, y int, v float64) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	m.Pix[y*m.Width+x] = v
}

// FromAlphaChannel extracts the alpha channel of an image as a mask. This
// matches the output convention of background removal models that return an
// RGBA cutout of the subject.
func FromAlphaChannel(img image.Image) *Alpha {
	b := img.Bounds()
	m := &Alpha{Width: b.Dx(), Height: b.Dy(), Pix: make([]float64, b.Dx()*b.Dy())}

	if nrgba, ok := img.(*image.NRGBA); ok {
		i := 0
		for y := 0; y < m.Height; y++ {
			row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+m.Width*4]
			for x := 0; x < m.Width; x++ {
				m.Pix[i] = float64(row[x*4+3]) / 255
				i++
			}
		}
		return m
	}

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			m.Pix[i] = float64(a) / 65535
			i++
		}
	}
	return m
}

// FromGray interprets a grayscale image as a mask, white meaning subject.
func FromGray(img image.Image) *Alpha {
	b := img.Bounds()
	m := &Alpha{Width: b.Dx(), Height: b.Dy(), Pix: make([]float64, b.Dx()*b.Dy())}
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bb, _ := img.At(x, y).RGBA()
			m.Pix[i] = (float64(r) + float64(g) + float64(bb)) / 3 / 65535
			i++
		}
	}
	return m
}

// ToGray renders the mask as an 8-bit grayscale image.
func (m *Alpha) ToGray() *image.Gray {
	gray := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.Pix {
		gray.Pix[i] = uint8(v*255 + 0.5)
	}
	return gray
}

// ResizeTo resamples the mask to the given dimensions using smooth Lanczos
// interpolation, so upscaled mask edges stay soft instead of jagged.
func (m *Alpha) ResizeTo(width, height int) (*Alpha, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid mask dimensions %dx%d", width, height)
	}
	if width == m.Width && height == m.Height {
		return m.Clone(), nil
	}
	resized := imaging.Resize(m.ToGray(), width, height, imaging.Lanczos)
	return FromGray(resized), nil
}

// Clone returns a deep copy of the mask.
func (m *Alpha) Clone() *Alpha {
	pix := make([]float64, len(m.Pix))
	copy(pix, m.Pix)
	return &Alpha{Width: m.Width, Height: m.Height, Pix: pix}
}

// Matches reports whether the mask dimensions equal those of the image.
func (m *Alpha) Matches(img image.Image) bool {
	b := img.Bounds()
	return m.Width == b.Dx() && m.Height == b.Dy()
}
