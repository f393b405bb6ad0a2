package imageio

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
)

func sampleImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), B: 100, A: 255})
		}
	}
	return img
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	img := sampleImage(80, 60)

	for _, name := range []string{"photo.png", "photo.jpg", "photo.webp"} {
		path := filepath.Join(dir, name)
		if err := Save(img, path, 90); err != nil {
			t.Fatalf("Save(%s) failed: %v", name, err)
		}
		loaded, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%s) failed: %v", name, err)
		}
		b := loaded.Bounds()
		if b.Dx() != 80 || b.Dy() != 60 {
			t.Errorf("%s: loaded size = %dx%d, want 80x60", name, b.Dx(), b.Dy())
		}
	}
}

func TestSaveUnknownExtensionDefaultsToPNG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.out")
	if err := Save(sampleImage(10, 10), path, 90); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path + ".png"); err != nil {
		t.Errorf("expected %s.png to exist: %v", path, err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDecodeBytes(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, sampleImage(32, 32), nil); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	img, err := DecodeBytes(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeBytes failed: %v", err)
	}
	if img.Bounds().Dx() != 32 {
		t.Errorf("width = %d, want 32", img.Bounds().Dx())
	}

	if _, err := DecodeBytes([]byte("not an image")); err == nil {
		t.Error("expected error for garbage data")
	}
}

func TestEncodeForModelDownscales(t *testing.T) {
	b64, err := EncodeForModel(sampleImage(1024, 512), 512, 85)
	if err != nil {
		t.Fatalf("EncodeForModel failed: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		t.Fatalf("output is not valid base64: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("output is not a JPEG: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 512 || bounds.Dy() != 256 {
		t.Errorf("encoded size = %dx%d, want 512x256", bounds.Dx(), bounds.Dy())
	}
}

func TestEncodeForModelKeepsSmallImages(t *testing.T) {
	b64, err := EncodeForModel(sampleImage(100, 100), 512, 85)
	if err != nil {
		t.Fatalf("EncodeForModel failed: %v", err)
	}
	raw, _ := base64.StdEncoding.DecodeString(b64)
	img, err := jpeg.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("output is not a JPEG: %v", err)
	}
	if img.Bounds().Dx() != 100 {
		t.Errorf("width = %d, want 100 unscaled", img.Bounds().Dx())
	}
}
