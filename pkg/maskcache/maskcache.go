// Package maskcache memoizes segmentation masks per cropped image, so
// repeated composite requests with different background colors never re-run
// segmentation.
package maskcache

import (
	"crypto/sha256"
	"encoding/hex"
	"image"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/disintegration/imaging"
	"github.com/idphoto/passport-photo/pkg/mask"
)

// Fingerprint derives a deterministic content key from a cropped image:
// identical pixels yield identical keys, and any crop change invalidates
// the cached mask's spatial alignment by changing the key.
func Fingerprint(img image.Image) string {
	nrgba := imaging.Clone(img)
	h := sha256.New()

	var dims [8]byte
	w, ht := nrgba.Bounds().Dx(), nrgba.Bounds().Dy()
	for i := 0; i < 4; i++ {
		dims[i] = byte(w >> (8 * i))
		dims[4+i] = byte(ht >> (8 * i))
	}
	h.Write(dims[:])

	rowLen := w * 4
	for y := 0; y < ht; y++ {
		h.Write(nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+rowLen])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Cache stores masks keyed by content fingerprint. It is safe for
// concurrent use: reads never block each other, and concurrent requests for
// the same missing key share a single computation instead of duplicating
// it. Cached masks are treated as immutable by all callers.
type Cache struct {
	mu     sync.RWMutex
	masks  map[string]*mask.Alpha
	group  singleflight.Group
	misses int
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{masks: make(map[string]*mask.Alpha)}
}

// GetOrCompute returns the cached mask for the fingerprint, or runs compute
// exactly once to fill it. A second caller arriving while computation is in
// flight waits for that computation rather than starting its own. Failed
// computations are not cached.
func (c *Cache) GetOrCompute(fingerprint string, compute func() (*mask.Alpha, error)) (*mask.Alpha, error) {
	c.mu.RLock()
	if m, ok := c.masks[fingerprint]; ok {
		c.mu.RUnlock()
		return m, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do(fingerprint, func() (interface{}, error) {
		// Re-check under the write path: a previous flight may have
		// stored the mask between our read miss and this call.
		c.mu.RLock()
		if m, ok := c.masks[fingerprint]; ok {
			c.mu.RUnlock()
			return m, nil
		}
		c.mu.RUnlock()

		m, err := compute()
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.masks[fingerprint] = m
		c.misses++
		c.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*mask.Alpha), nil
}

// Len returns the number of cached masks.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.masks)
}

// Computations returns how many compute calls actually ran, for observability
// and tests.
func (c *Cache) Computations() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.misses
}

// Purge discards all cached masks.
func (c *Cache) Purge() {
	c.mu.Lock()
	c.masks = make(map[string]*mask.Alpha)
	c.mu.Unlock()
}
