// Package pipeline orchestrates the passport photo stages: crop derivation,
// background segmentation with caching, compositing, normalization, and
// optional sheet assembly. All stages fail fast with typed errors and no
// partial artifact is ever returned alongside an error.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/idphoto/passport-photo/pkg/compose"
	"github.com/idphoto/passport-photo/pkg/detect"
	"github.com/idphoto/passport-photo/pkg/geometry"
	"github.com/idphoto/passport-photo/pkg/mask"
	"github.com/idphoto/passport-photo/pkg/maskcache"
	"github.com/idphoto/passport-photo/pkg/normalize"
	"github.com/idphoto/passport-photo/pkg/segment"
	"github.com/idphoto/passport-photo/pkg/sheet"
	"github.com/idphoto/passport-photo/pkg/types"
)

const (
	// MinSourceDim and MaxSourceDim bound accepted source image dimensions.
	MinSourceDim = 200
	MaxSourceDim = 4000

	// minStdDev rejects near-blank images; a flat frame cannot contain a
	// usable portrait.
	minStdDev = 10.0

	// DefaultBackground is the documented default when the request leaves
	// the background unspecified.
	DefaultBackground = "white"
)

// Config tunes pipeline output geometry and resource limits.
type Config struct {
	PhotoSizePx  int
	DPI          int
	SheetWidthPx int
	SheetHeightPx int
	MarginPx     int
	GutterPx     int
	CutGuides    bool
	// Timeout is the wall-clock budget per request; 0 disables it.
	Timeout time.Duration
	// Workers bounds batch concurrency.
	Workers int
}

// DefaultConfig returns production defaults: 600x600 at 300 DPI on an A4
// sheet with cut guides.
func DefaultConfig() Config {
	return Config{
		PhotoSizePx:   normalize.DefaultSizePx,
		DPI:           normalize.DefaultDPI,
		SheetWidthPx:  sheet.A4WidthPx,
		SheetHeightPx: sheet.A4HeightPx,
		MarginPx:      sheet.DefaultMarginPx,
		GutterPx:      sheet.DefaultGutterPx,
		CutGuides:     true,
		Timeout:       2 * time.Minute,
		Workers:       4,
	}
}

// Result is the terminal artifact bundle of one request. Photo and PhotoPNG
// are always set on success; Layout and SheetPDF only when a sheet was
// requested. Warning carries the CapacityExceeded degradation, the single
// error kind that does not abort the request.
type Result struct {
	Photo    *types.PassportPhoto
	PhotoPNG []byte
	Layout   *types.SheetLayout
	SheetPDF []byte
	Warning  *Error
}

// Pipeline runs processing requests. It is safe for concurrent use; the only
// shared state is the mask cache, which is internally synchronized.
type Pipeline struct {
	detector  detect.FaceDetector
	segmenter segment.Segmenter
	cache     *maskcache.Cache
	log       *zap.SugaredLogger
	cfg       Config
}

// New creates a pipeline with production defaults. Either collaborator may
// be nil: a nil detector limits requests to manual crops or hints, a nil
// segmenter makes segmentation-dependent requests fail.
func New(detector detect.FaceDetector, segmenter segment.Segmenter, logger *zap.SugaredLogger) *Pipeline {
	return NewWithConfig(detector, segmenter, logger, DefaultConfig())
}

// NewWithConfig creates a pipeline with explicit configuration.
func NewWithConfig(detector detect.FaceDetector, segmenter segment.Segmenter, logger *zap.SugaredLogger, cfg Config) *Pipeline {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.PhotoSizePx <= 0 {
		cfg.PhotoSizePx = normalize.DefaultSizePx
	}
	if cfg.DPI <= 0 {
		cfg.DPI = normalize.DefaultDPI
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Pipeline{
		detector:  detector,
		segmenter: segmenter,
		cache:     maskcache.New(),
		log:       logger,
		cfg:       cfg,
	}
}

// Cache exposes the mask cache for inspection and purging.
func (p *Pipeline) Cache() *maskcache.Cache {
	return p.cache
}

// Process runs one request end to end.
func (p *Pipeline) Process(ctx context.Context, req types.ProcessingRequest) (*Result, error) {
	if p.cfg.Timeout > 0 {
		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
			defer cancel()
		}
	}

	res, err := p.process(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, wrapError(ProcessingTimeout, ctx.Err(), "request exceeded its processing budget")
		}
		return nil, err
	}
	return res, nil
}

func (p *Pipeline) process(ctx context.Context, req types.ProcessingRequest) (*Result, error) {
	if err := validateSource(req.Source); err != nil {
		return nil, err
	}

	bgSpec := req.Background
	if bgSpec == "" {
		bgSpec = DefaultBackground
	}
	bg, err := compose.ParseBackground(bgSpec)
	if err != nil {
		return nil, wrapError(InvalidRequest, err, "bad background spec")
	}

	opts := compose.DefaultOptions()
	if req.Brightness != 0 {
		opts.Brightness = req.Brightness
	}
	if req.Contrast != 0 {
		opts.Contrast = req.Contrast
	}
	if err := opts.Validate(); err != nil {
		return nil, wrapError(InvalidRequest, err, "bad adjustment options")
	}

	region, err := p.deriveCrop(ctx, req)
	if err != nil {
		return nil, err
	}

	cropped, err := extractCrop(req.Source, region)
	if err != nil {
		return nil, err
	}
	p.log.Debugw("crop extracted",
		"x", region.X, "y", region.Y, "side", region.Width,
		"rotation", region.RotationDegrees, "scale", region.Scale)

	m, err := p.segmentCached(ctx, cropped)
	if err != nil {
		return nil, err
	}

	composed, err := compose.Composite(cropped, m, bg, opts)
	if err != nil {
		return nil, wrapError(InvalidRequest, err, "compositing failed")
	}

	photo, err := normalize.Normalize(composed, p.cfg.PhotoSizePx, p.cfg.DPI)
	if err != nil {
		return nil, wrapError(UnsupportedImage, err, "normalization failed")
	}
	photoPNG, err := normalize.EncodePNG(photo)
	if err != nil {
		return nil, wrapError(UnsupportedImage, err, "PNG encoding failed")
	}

	res := &Result{Photo: photo, PhotoPNG: photoPNG}
	if !req.MakeSheet {
		return res, nil
	}

	copies := req.Copies
	if copies <= 0 {
		copies = 1
	}
	layout, warning, err := p.computeLayout(copies)
	if err != nil {
		return nil, err
	}
	res.Layout = &layout
	res.Warning = warning

	canvas := sheet.Render(photo.Image, layout, p.cfg.CutGuides)
	var pdf bytes.Buffer
	if err := sheet.ExportPDF(canvas, layout, &pdf); err != nil {
		return nil, wrapError(InvalidRequest, err, "PDF export failed")
	}
	res.SheetPDF = pdf.Bytes()

	p.log.Infow("sheet assembled",
		"requested", layout.Requested, "placed", layout.Placed,
		"rows", layout.Rows, "cols", layout.Cols)
	return res, nil
}

// deriveCrop resolves the square crop region from manual input, a face hint,
// or automatic detection.
func (p *Pipeline) deriveCrop(ctx context.Context, req types.ProcessingRequest) (types.CropRegion, error) {
	b := req.Source.Bounds()
	sourceSize := image.Pt(b.Dx(), b.Dy())

	face := req.FaceHint
	if face == nil && req.ManualCrop == nil && p.detector != nil {
		detected, err := p.detector.DetectFace(ctx, req.Source)
		if err != nil {
			return types.CropRegion{}, wrapError(NoFaceDetected, err, "face detection failed")
		}
		face = detected
	}
	if face == nil && req.ManualCrop == nil && !req.CenterFallback {
		return types.CropRegion{}, newError(NoFaceDetected, "no face found and no manual crop provided")
	}

	region, err := geometry.DeriveCropRegion(sourceSize, face, req.ManualCrop, req.FaceCoverage)
	if err != nil {
		return types.CropRegion{}, wrapError(InvalidCropRegion, err, "crop derivation failed")
	}
	return region, nil
}

// segmentCached computes the subject mask for the cropped image through the
// cache, so repeated requests on the same crop reuse one computation.
func (p *Pipeline) segmentCached(ctx context.Context, cropped *image.NRGBA) (*mask.Alpha, error) {
	if p.segmenter == nil {
		return nil, newError(SegmentationUnavailable, "no segmentation backend configured")
	}

	fp := maskcache.Fingerprint(cropped)
	before := p.cache.Computations()
	m, err := p.cache.GetOrCompute(fp, func() (*mask.Alpha, error) {
		return p.segmenter.Segment(ctx, cropped)
	})
	if err != nil {
		return nil, wrapError(SegmentationUnavailable, err, "segmentation failed")
	}
	if p.cache.Computations() == before {
		p.log.Debugw("mask cache hit", "fingerprint", fp[:12])
	}
	return m, nil
}

// computeLayout derives the sheet grid, degrading gracefully when capacity
// is exceeded.
func (p *Pipeline) computeLayout(copies int) (types.SheetLayout, *Error, error) {
	margin := p.cfg.MarginPx
	if margin <= 0 {
		margin = sheet.DefaultMarginPx
	}
	gutter := p.cfg.GutterPx
	if gutter <= 0 {
		gutter = sheet.DefaultGutterPx
	}

	layout, err := sheet.ComputeLayout(p.cfg.SheetWidthPx, p.cfg.SheetHeightPx, p.cfg.DPI,
		p.cfg.PhotoSizePx, margin, gutter, copies)
	if err != nil {
		var capErr *sheet.CapacityError
		if errors.As(err, &capErr) {
			warning := newError(CapacityExceeded,
				"requested %d copies but the sheet holds %d", capErr.Requested, capErr.Placed)
			p.log.Warnw("sheet capacity exceeded",
				"requested", capErr.Requested, "placed", capErr.Placed)
			return layout, warning, nil
		}
		return types.SheetLayout{}, nil, wrapError(InvalidRequest, err, "sheet layout failed")
	}
	return layout, nil, nil
}

// validateSource enforces the accepted input envelope: present, within the
// supported size range, and not visually blank.
func validateSource(src image.Image) error {
	if src == nil {
		return newError(UnsupportedImage, "no source image")
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < MinSourceDim || h < MinSourceDim {
		return newError(UnsupportedImage, "image %dx%d below minimum %dx%d", w, h, MinSourceDim, MinSourceDim)
	}
	if w > MaxSourceDim || h > MaxSourceDim {
		return newError(UnsupportedImage, "image %dx%d above maximum %dx%d", w, h, MaxSourceDim, MaxSourceDim)
	}
	if stddev := luminanceStdDev(src); stddev < minStdDev {
		return newError(UnsupportedImage, "image appears blank (stddev %.1f)", stddev)
	}
	return nil
}

// luminanceStdDev samples the image on a coarse grid; full-resolution
// statistics are not needed to tell a photo from a blank frame.
func luminanceStdDev(src image.Image) float64 {
	b := src.Bounds()
	step := maxInt(1, minInt(b.Dx(), b.Dy())/256)

	var sum, sumSq float64
	var n int
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			r, g, bb, _ := src.At(x, y).RGBA()
			lum := (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(bb)) / 257
			sum += lum
			sumSq += lum * lum
			n++
		}
	}
	if n == 0 {
		return 0
	}
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// extractCrop samples the region from the source, applying zoom and rotation.
// Areas outside the source fill with white, matching print stock.
func extractCrop(src image.Image, region types.CropRegion) (*image.NRGBA, error) {
	sample := geometry.SampleRect(region)
	bounds := src.Bounds()
	white := color.NRGBA{R: 255, G: 255, B: 255, A: 255}

	if region.RotationDegrees == 0 {
		visible := sample.Intersect(bounds)
		if visible.Empty() {
			return nil, newError(InvalidCropRegion, "crop region lies outside the image")
		}
		if visible == sample {
			return imaging.Crop(src, sample), nil
		}
		canvas := imaging.New(sample.Dx(), sample.Dy(), white)
		part := imaging.Crop(src, visible)
		return imaging.Paste(canvas, part, image.Pt(visible.Min.X-sample.Min.X, visible.Min.Y-sample.Min.Y)), nil
	}

	// Rotation samples a diagonal-sized square about the same center so the
	// rotated frame has full coverage, then cuts the final square from it.
	side := sample.Dx()
	ext := int(float64(side)*math.Sqrt2 + 0.5)
	cx := (sample.Min.X + sample.Max.X) / 2
	cy := (sample.Min.Y + sample.Max.Y) / 2
	exRect := image.Rect(cx-ext/2, cy-ext/2, cx-ext/2+ext, cy-ext/2+ext)

	visible := exRect.Intersect(bounds)
	if visible.Empty() {
		return nil, newError(InvalidCropRegion, "crop region lies outside the image")
	}
	canvas := imaging.New(exRect.Dx(), exRect.Dy(), white)
	part := imaging.Crop(src, visible)
	canvas = imaging.Paste(canvas, part, image.Pt(visible.Min.X-exRect.Min.X, visible.Min.Y-exRect.Min.Y))

	rotated := imaging.Rotate(canvas, -region.RotationDegrees, white)
	return imaging.CropCenter(rotated, side, side), nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
