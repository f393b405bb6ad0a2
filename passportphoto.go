// Package passportphoto turns an ordinary portrait into a print-ready
// passport photo: it derives a square crop around the face, replaces the
// background with a uniform color, normalizes the result to 600x600 pixels
// at 300 DPI, and optionally tiles copies onto an A4 sheet exported as PDF.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		passportphoto "github.com/idphoto/passport-photo"
//	)
//
//	func main() {
//		proc, err := passportphoto.New()
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		// Crop, segment, and normalize a single photo
//		if err := proc.ProcessFile(context.Background(), "portrait.jpg", "passport.png", "white"); err != nil {
//			log.Fatal(err)
//		}
//
//		// Tile 12 copies onto an A4 sheet PDF
//		if err := proc.MakeSheetFile(context.Background(), "portrait.jpg", "sheet.pdf", "white", 12); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// The package consists of five main components:
//
// 1. Geometry (pkg/geometry): derives square crop regions from face boxes
// 2. Segment (pkg/segment, pkg/rembg): subject/background separation
// 3. Compose (pkg/compose): background replacement and tone adjustment
// 4. Normalize (pkg/normalize): fixed-size, fixed-DPI output encoding
// 5. Sheet (pkg/sheet): A4 tiling with cut guides and PDF export
//
// Face detection uses a chat-capable vision model (Ollama or a llama.cpp
// server); background segmentation talks to a rembg-style HTTP service.
// Masks are cached per processor so changing only the background color of
// the same crop never re-runs segmentation.
package passportphoto

import (
	"context"
	"fmt"
	"image"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/idphoto/passport-photo/internal/config"
	"github.com/idphoto/passport-photo/internal/imageio"
	"github.com/idphoto/passport-photo/pkg/client"
	"github.com/idphoto/passport-photo/pkg/detect"
	"github.com/idphoto/passport-photo/pkg/llamacpp"
	"github.com/idphoto/passport-photo/pkg/ollama"
	"github.com/idphoto/passport-photo/pkg/pipeline"
	"github.com/idphoto/passport-photo/pkg/rembg"
	"github.com/idphoto/passport-photo/pkg/segment"
	"github.com/idphoto/passport-photo/pkg/types"
)

// Version of the passport photo library
const Version = "1.0.0"

// Processor is the high-level entry point wiring detection, segmentation,
// and the processing pipeline together.
type Processor struct {
	pipeline *pipeline.Pipeline
	cfg      *config.Config
	log      *zap.SugaredLogger
}

// New creates a Processor with default configuration and no logging.
func New() (*Processor, error) {
	return NewWithConfig(config.Default(), nil)
}

// NewWithConfig creates a Processor from an explicit configuration. A nil
// logger disables logging.
func NewWithConfig(cfg *config.Config, logger *zap.SugaredLogger) (*Processor, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	var visionClient client.VisionClient
	var err error
	switch cfg.Detector.Backend {
	case "llamacpp":
		visionClient, err = llamacpp.NewClient(cfg.Detector.URL)
	default:
		visionClient, err = ollama.NewClient(cfg.Detector.URL)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	detector := detect.NewDetector(visionClient, cfg.Detector.Model)

	cutout, err := rembg.NewClient(cfg.Segmenter.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create segmentation client: %w", err)
	}
	segmenter := segment.NewAdapter(cutout, cfg.Segmenter.ModelSizePx)

	pcfg := pipeline.Config{
		PhotoSizePx:   cfg.Photo.SizePx,
		DPI:           cfg.Photo.DPI,
		SheetWidthPx:  cfg.Sheet.WidthPx,
		SheetHeightPx: cfg.Sheet.HeightPx,
		MarginPx:      cfg.Sheet.MarginPx,
		GutterPx:      cfg.Sheet.GutterPx,
		CutGuides:     cfg.Sheet.CutGuides,
		Timeout:       time.Duration(cfg.Pipeline.TimeoutSeconds) * time.Second,
		Workers:       cfg.Pipeline.Workers,
	}

	return &Processor{
		pipeline: pipeline.NewWithConfig(detector, segmenter, logger, pcfg),
		cfg:      cfg,
		log:      logger,
	}, nil
}

// Pipeline exposes the underlying pipeline for callers that need batch
// processing or direct request control.
func (p *Processor) Pipeline() *pipeline.Pipeline {
	return p.pipeline
}

// LoadImage loads an image from file
func (p *Processor) LoadImage(path string) (image.Image, error) {
	return imageio.Load(path)
}

// SaveImage saves an image to file
func (p *Processor) SaveImage(img image.Image, path string) error {
	return imageio.Save(img, path, 95)
}

// request builds a ProcessingRequest seeded with configured defaults.
func (p *Processor) request(img image.Image, background string) types.ProcessingRequest {
	if background == "" {
		background = p.cfg.Photo.Background
	}
	return types.ProcessingRequest{
		Source:       img,
		Background:   background,
		FaceCoverage: p.cfg.Photo.CoverageRatio,
		Brightness:   p.cfg.Photo.Brightness,
		Contrast:     p.cfg.Photo.Contrast,
	}
}

// ProcessImage runs the single-photo pipeline on a decoded image.
func (p *Processor) ProcessImage(ctx context.Context, img image.Image, background string) (*pipeline.Result, error) {
	return p.pipeline.Process(ctx, p.request(img, background))
}

// Process runs a fully specified request.
func (p *Processor) Process(ctx context.Context, req types.ProcessingRequest) (*pipeline.Result, error) {
	return p.pipeline.Process(ctx, req)
}

// ProcessFile loads an image, processes it, and writes the normalized
// passport photo PNG to outputPath.
func (p *Processor) ProcessFile(ctx context.Context, inputPath, outputPath, background string) error {
	img, err := imageio.Load(inputPath)
	if err != nil {
		return fmt.Errorf("failed to load image: %w", err)
	}

	res, err := p.ProcessImage(ctx, img, background)
	if err != nil {
		return fmt.Errorf("processing failed: %w", err)
	}

	if err := os.WriteFile(outputPath, res.PhotoPNG, 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	p.log.Infow("passport photo written", "path", outputPath,
		"size_px", res.Photo.SizePx, "dpi", res.Photo.DPI)
	return nil
}

// MakeSheet processes a decoded image and tiles copies onto a sheet.
func (p *Processor) MakeSheet(ctx context.Context, img image.Image, background string, copies int) (*pipeline.Result, error) {
	req := p.request(img, background)
	req.MakeSheet = true
	req.Copies = copies
	return p.pipeline.Process(ctx, req)
}

// MakeSheetFile loads an image, tiles copies onto a sheet, and writes the
// sheet PDF to outputPath.
func (p *Processor) MakeSheetFile(ctx context.Context, inputPath, outputPath, background string, copies int) error {
	img, err := imageio.Load(inputPath)
	if err != nil {
		return fmt.Errorf("failed to load image: %w", err)
	}

	res, err := p.MakeSheet(ctx, img, background, copies)
	if err != nil {
		return fmt.Errorf("processing failed: %w", err)
	}
	if res.Warning != nil {
		p.log.Warnw("sheet degraded", "warning", res.Warning.Error())
	}

	if err := os.WriteFile(outputPath, res.SheetPDF, 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	p.log.Infow("sheet written", "path", outputPath,
		"rows", res.Layout.Rows, "cols", res.Layout.Cols, "placed", res.Layout.Placed)
	return nil
}

// BatchSheetFiles processes several portraits and tiles one photo per input
// onto a single sheet PDF written to outputPath.
func (p *Processor) BatchSheetFiles(ctx context.Context, inputPaths []string, outputPath, background string) error {
	reqs := make([]types.ProcessingRequest, 0, len(inputPaths))
	for _, path := range inputPaths {
		img, err := imageio.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		reqs = append(reqs, p.request(img, background))
	}

	res, err := p.pipeline.BatchSheet(ctx, reqs)
	if err != nil {
		return fmt.Errorf("batch processing failed: %w", err)
	}
	if res.Warning != nil {
		p.log.Warnw("sheet degraded", "warning", res.Warning.Error())
	}

	if err := os.WriteFile(outputPath, res.SheetPDF, 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
