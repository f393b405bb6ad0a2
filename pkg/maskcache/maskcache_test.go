package maskcache

import (
	"errors"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/idphoto/passport-photo/pkg/mask"
)

func createTestImage(width, height int, seed uint8) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x) + seed, uint8(y), seed, 255})
		}
	}
	return img
}

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint(createTestImage(64, 64, 1))
	b := Fingerprint(createTestImage(64, 64, 1))
	if a != b {
		t.Error("Identical images must produce identical fingerprints")
	}
}

func TestFingerprintSensitive(t *testing.T) {
	base := Fingerprint(createTestImage(64, 64, 1))

	if Fingerprint(createTestImage(64, 64, 2)) == base {
		t.Error("Different pixel content must change the fingerprint")
	}
	if Fingerprint(createTestImage(32, 64, 1)) == base {
		t.Error("Different dimensions must change the fingerprint")
	}
	// Same pixel bytes, transposed dimensions.
	if Fingerprint(createTestImage(64, 32, 1)) == Fingerprint(createTestImage(32, 64, 1)) {
		t.Error("Transposed dimensions must change the fingerprint")
	}
}

func TestGetOrComputeCachesResult(t *testing.T) {
	cache := New()
	calls := 0
	compute := func() (*mask.Alpha, error) {
		calls++
		return mask.Uniform(10, 10, 0.5)
	}

	first, err := cache.GetOrCompute("key", compute)
	if err != nil {
		t.Fatalf("GetOrCompute failed: %v", err)
	}
	second, err := cache.GetOrCompute("key", compute)
	if err != nil {
		t.Fatalf("GetOrCompute failed: %v", err)
	}

	if calls != 1 {
		t.Errorf("Expected exactly one computation, got %d", calls)
	}
	if first != second {
		t.Error("Cache hit must return the identical mask")
	}
	if cache.Len() != 1 || cache.Computations() != 1 {
		t.Errorf("Unexpected cache stats: len=%d computations=%d", cache.Len(), cache.Computations())
	}
}

func TestGetOrComputeDistinctKeys(t *testing.T) {
	cache := New()
	calls := 0
	compute := func() (*mask.Alpha, error) {
		calls++
		return mask.Uniform(10, 10, 1)
	}

	cache.GetOrCompute("a", compute)
	cache.GetOrCompute("b", compute)

	if calls != 2 {
		t.Errorf("Expected two computations for two keys, got %d", calls)
	}
}

func TestGetOrComputeErrorNotCached(t *testing.T) {
	cache := New()
	fail := errors.New("segmentation offline")
	calls := 0

	_, err := cache.GetOrCompute("key", func() (*mask.Alpha, error) {
		calls++
		return nil, fail
	})
	if !errors.Is(err, fail) {
		t.Fatalf("Expected computation error, got %v", err)
	}

	// A later attempt retries instead of returning the cached failure.
	m, err := cache.GetOrCompute("key", func() (*mask.Alpha, error) {
		calls++
		return mask.Uniform(4, 4, 1)
	})
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if m == nil || calls != 2 {
		t.Errorf("Expected successful retry with 2 calls, got %d", calls)
	}
}

func TestGetOrComputeConcurrent(t *testing.T) {
	cache := New()
	var calls int32
	release := make(chan struct{})

	compute := func() (*mask.Alpha, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return mask.Uniform(16, 16, 0.25)
	}

	const workers = 16
	results := make([]*mask.Alpha, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			m, err := cache.GetOrCompute("shared", compute)
			if err != nil {
				t.Errorf("worker %d: %v", i, err)
				return
			}
			results[i] = m
		}(i)
	}

	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Expected a single in-flight computation, got %d", got)
	}
	for i := 1; i < workers; i++ {
		if results[i] != results[0] {
			t.Errorf("Worker %d received a different mask", i)
		}
	}
}

func TestPurge(t *testing.T) {
	cache := New()
	cache.GetOrCompute("key", func() (*mask.Alpha, error) {
		return mask.Uniform(4, 4, 1)
	})

	cache.Purge()
	if cache.Len() != 0 {
		t.Errorf("Expected empty cache after purge, got %d", cache.Len())
	}
}
