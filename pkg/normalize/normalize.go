// Package normalize resizes a composited photo to the exact passport target
// size and stamps physical resolution metadata on the encoded output.
package normalize

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"

	"github.com/disintegration/imaging"

	"github.com/idphoto/passport-photo/pkg/types"
)

const (
	// DefaultSizePx is the passport photo edge length: 600 px at 300 DPI
	// measures 51x51 mm.
	DefaultSizePx = 600
	// DefaultDPI is the target print resolution.
	DefaultDPI = 300
)

// Normalize resizes an already-square composited image to exactly
// targetSizePx on each side using Lanczos resampling. DPI is metadata only
// and never scales pixels. Non-square input is a programming error upstream
// and is rejected.
func Normalize(img image.Image, targetSizePx, targetDPI int) (*types.PassportPhoto, error) {
	if targetSizePx <= 0 {
		return nil, fmt.Errorf("invalid target size %d", targetSizePx)
	}
	if targetDPI <= 0 {
		return nil, fmt.Errorf("invalid target DPI %d", targetDPI)
	}

	b := img.Bounds()
	if b.Dx() != b.Dy() {
		return nil, fmt.Errorf("input must be square, got %dx%d", b.Dx(), b.Dy())
	}
	if b.Dx() == 0 {
		return nil, fmt.Errorf("empty input image")
	}

	resized := imaging.Resize(img, targetSizePx, targetSizePx, imaging.Lanczos)

	return &types.PassportPhoto{
		Image:  resized,
		SizePx: targetSizePx,
		DPI:    targetDPI,
	}, nil
}

// EncodePNG serializes the photo as PNG with a pHYs chunk carrying the DPI,
// so printed output measures correctly. The stdlib encoder writes no
// physical-size metadata, so the chunk is spliced in after IHDR.
func EncodePNG(photo *types.PassportPhoto) ([]byte, error) {
	if photo == nil || photo.Image == nil {
		return nil, fmt.Errorf("nil photo")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, photo.Image); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}

	return insertPhysChunk(buf.Bytes(), photo.DPI)
}

// EncodeImagePNG encodes an arbitrary image with the given DPI stamped, used
// for intermediate artifacts like the rendered sheet canvas.
func EncodeImagePNG(img image.Image, dpi int) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return insertPhysChunk(buf.Bytes(), dpi)
}

// insertPhysChunk splices a pHYs chunk directly after the IHDR chunk.
// pHYs holds pixels per meter on both axes and a unit flag of 1 (meter).
func insertPhysChunk(data []byte, dpi int) ([]byte, error) {
	// 8-byte signature, then IHDR: 4 length + 4 type + 13 data + 4 CRC.
	const ihdrEnd = 8 + 4 + 4 + 13 + 4
	if len(data) < ihdrEnd || string(data[12:16]) != "IHDR" {
		return nil, fmt.Errorf("malformed PNG stream")
	}

	ppm := uint32(float64(dpi)/0.0254 + 0.5)

	chunk := make([]byte, 4+4+9+4)
	binary.BigEndian.PutUint32(chunk[0:4], 9)
	copy(chunk[4:8], "pHYs")
	binary.BigEndian.PutUint32(chunk[8:12], ppm)
	binary.BigEndian.PutUint32(chunk[12:16], ppm)
	chunk[16] = 1 // unit: meter
	crc := crc32.ChecksumIEEE(chunk[4:17])
	binary.BigEndian.PutUint32(chunk[17:21], crc)

	out := make([]byte, 0, len(data)+len(chunk))
	out = append(out, data[:ihdrEnd]...)
	out = append(out, chunk...)
	out = append(out, data[ihdrEnd:]...)
	return out, nil
}

// DotsPerInch extracts the pHYs DPI tag from an encoded PNG, or 0 if the
// stream carries none.
func DotsPerInch(data []byte) int {
	// Walk the chunk list looking for pHYs.
	pos := 8
	for pos+12 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		typ := string(data[pos+4 : pos+8])
		if typ == "pHYs" && length == 9 && pos+8+9 <= len(data) {
			if data[pos+16] != 1 {
				return 0
			}
			ppm := binary.BigEndian.Uint32(data[pos+8 : pos+12])
			return int(float64(ppm)*0.0254 + 0.5)
		}
		pos += 12 + length
	}
	return 0
}
