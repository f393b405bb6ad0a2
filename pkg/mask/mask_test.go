package mask

import (
	"image"
	"image/color"
	"testing"
)

func TestNew(t *testing.T) {
	m, err := New(10, 20)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if m.Width != 10 || m.Height != 20 || len(m.Pix) != 200 {
		t.Errorf("Unexpected mask shape: %dx%d len=%d", m.Width, m.Height, len(m.Pix))
	}

	if _, err := New(0, 10); err == nil {
		t.Error("Expected error for zero width")
	}
	if _, err := New(10, -1); err == nil {
		t.Error("Expected error for negative height")
	}
}

func TestSetAndAt(t *testing.T) {
	m, _ := New(4, 4)

	m.Set(1, 2, 0.5)
	if got := m.At(1, 2); got != 0.5 {
		t.Errorf("Expected 0.5, got %f", got)
	}

	// Values clamp into [0,1].
	m.Set(0, 0, 1.5)
	if got := m.At(0, 0); got != 1 {
		t.Errorf("Expected clamped 1, got %f", got)
	}
	m.Set(0, 1, -0.5)
	if got := m.At(0, 1); got != 0 {
		t.Errorf("Expected clamped 0, got %f", got)
	}

	// Out-of-range reads return 0, writes are ignored.
	if got := m.At(-1, 0); got != 0 {
		t.Errorf("Expected 0 for out-of-range read, got %f", got)
	}
	m.Set(10, 10, 1)
}

func TestFromAlphaChannel(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 3))
	img.SetNRGBA(0, 0, color.NRGBA{255, 0, 0, 255})
	img.SetNRGBA(1, 0, color.NRGBA{255, 0, 0, 0})
	img.SetNRGBA(2, 0, color.NRGBA{255, 0, 0, 51})

	m := FromAlphaChannel(img)

	if m.Width != 3 || m.Height != 3 {
		t.Fatalf("Unexpected mask size %dx%d", m.Width, m.Height)
	}
	if m.At(0, 0) != 1 {
		t.Errorf("Expected alpha 1, got %f", m.At(0, 0))
	}
	if m.At(1, 0) != 0 {
		t.Errorf("Expected alpha 0, got %f", m.At(1, 0))
	}
	if v := m.At(2, 0); v < 0.19 || v > 0.21 {
		t.Errorf("Expected alpha ~0.2, got %f", v)
	}
}

func TestGrayRoundTrip(t *testing.T) {
	m, _ := New(5, 5)
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			m.Set(x, y, float64(x)/4)
		}
	}

	restored := FromGray(m.ToGray())
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			want := m.At(x, y)
			got := restored.At(x, y)
			if got < want-0.01 || got > want+0.01 {
				t.Errorf("Round trip at (%d,%d): want %f, got %f", x, y, want, got)
			}
		}
	}
}

func TestResizeTo(t *testing.T) {
	m, _ := Uniform(32, 32, 1)

	resized, err := m.ResizeTo(128, 128)
	if err != nil {
		t.Fatalf("ResizeTo failed: %v", err)
	}
	if resized.Width != 128 || resized.Height != 128 {
		t.Errorf("Expected 128x128, got %dx%d", resized.Width, resized.Height)
	}

	// A uniform mask stays uniform through resampling.
	for i, v := range resized.Pix {
		if v < 0.99 {
			t.Errorf("Pixel %d dropped to %f after resize of uniform mask", i, v)
			break
		}
	}

	if _, err := m.ResizeTo(0, 10); err == nil {
		t.Error("Expected error for invalid target size")
	}
}

func TestResizeSameSizeReturnsCopy(t *testing.T) {
	m, _ := Uniform(16, 16, 0.5)
	same, err := m.ResizeTo(16, 16)
	if err != nil {
		t.Fatalf("ResizeTo failed: %v", err)
	}

	same.Set(0, 0, 1)
	if m.At(0, 0) != 0.5 {
		t.Error("Resize to identical size must not alias the original pixels")
	}
}

func TestClone(t *testing.T) {
	m, _ := Uniform(8, 8, 0.25)
	c := m.Clone()
	c.Set(3, 3, 1)

	if m.At(3, 3) != 0.25 {
		t.Error("Clone must not share pixel storage with the original")
	}
}

func TestMatches(t *testing.T) {
	m, _ := New(10, 12)

	if !m.Matches(image.NewRGBA(image.Rect(0, 0, 10, 12))) {
		t.Error("Expected mask to match 10x12 image")
	}
	if m.Matches(image.NewRGBA(image.Rect(0, 0, 12, 10))) {
		t.Error("Expected mask not to match 12x10 image")
	}
}
