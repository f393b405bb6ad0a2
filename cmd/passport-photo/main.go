package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	passportphoto "github.com/idphoto/passport-photo"
	"github.com/idphoto/passport-photo/internal/config"
	"github.com/idphoto/passport-photo/internal/utils"
)

func main() {
	var in, out, bg, configPath string
	var backend, url, model string
	var segURL string
	var copies int
	var makeSheet bool
	var coverage, brightness, contrast float64
	var margin, gutter int
	var noGuides, verbose bool

	flag.StringVar(&in, "in", "", "input portrait path; a directory or comma-separated paths produce a batch sheet (jpg/png/webp)")
	flag.StringVar(&out, "out", "passport.png", "output path (.png for a photo, .pdf for a sheet)")
	flag.StringVar(&bg, "bg", "white", "background: named color (white, light-blue, blue, light-gray, red, light-rose) or #RRGGBB")
	flag.StringVar(&configPath, "config", "", "config file path (JSON), overrides defaults")

	flag.StringVar(&backend, "backend", "ollama", "face detection backend: ollama or llamacpp")
	flag.StringVar(&url, "url", "", "vision model server URL (defaults: ollama=http://localhost:11434, llamacpp=http://localhost:8080)")
	flag.StringVar(&model, "model", "minicpm-v", "vision model name")
	flag.StringVar(&segURL, "seg-url", "", "background removal server URL (default http://localhost:7000)")

	flag.BoolVar(&makeSheet, "sheet", false, "tile copies onto an A4 sheet PDF")
	flag.IntVar(&copies, "copies", 6, "number of copies on the sheet")
	flag.IntVar(&margin, "margin", 0, "sheet margin in px (0=default)")
	flag.IntVar(&gutter, "gutter", 0, "sheet gutter in px (0=default)")
	flag.BoolVar(&noGuides, "no-guides", false, "disable cut guides on the sheet")

	flag.Float64Var(&coverage, "facescale", 0, "crop size relative to the face box (1.5-3.0, 0=default 2.2)")
	flag.Float64Var(&brightness, "brightness", 0, "foreground brightness (0.5-1.5, 0=default 1.0)")
	flag.Float64Var(&contrast, "contrast", 0, "foreground contrast (0.5-1.5, 0=default 1.0)")
	flag.BoolVar(&verbose, "v", false, "verbose logging")

	flag.Parse()
	if in == "" {
		log.Fatalf("usage: %s -in portrait.jpg [-out passport.png] [-bg white] [-sheet -copies 6 -out sheet.pdf] [-backend ollama|llamacpp]", filepath.Base(os.Args[0]))
	}

	logger := zap.NewNop().Sugar()
	if verbose {
		zl, err := zap.NewDevelopment()
		if err != nil {
			log.Fatal(err)
		}
		defer zl.Sync()
		logger = zl.Sugar()
	}

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadFromFile(configPath)
		if err != nil {
			log.Fatal(err)
		}
		cfg = loaded
	}
	cfg.Detector.Backend = backend
	cfg.Detector.Model = model
	if url != "" {
		cfg.Detector.URL = url
	} else if backend == "llamacpp" {
		cfg.Detector.URL = "http://localhost:8080"
	}
	if segURL != "" {
		cfg.Segmenter.URL = segURL
	}
	if coverage != 0 {
		cfg.Photo.CoverageRatio = coverage
	}
	if brightness != 0 {
		cfg.Photo.Brightness = brightness
	}
	if contrast != 0 {
		cfg.Photo.Contrast = contrast
	}
	if margin > 0 {
		cfg.Sheet.MarginPx = margin
	}
	if gutter > 0 {
		cfg.Sheet.GutterPx = gutter
	}
	if noGuides {
		cfg.Sheet.CutGuides = false
	}

	proc, err := passportphoto.NewWithConfig(cfg, logger)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	inputs := strings.Split(in, ",")
	if len(inputs) == 1 && utils.DirExists(in) {
		inputs, err = utils.ListImageFiles(in)
		if err != nil {
			log.Fatal(err)
		}
		if len(inputs) == 0 {
			log.Fatalf("no image files found in %s", in)
		}
	}

	switch {
	case len(inputs) > 1:
		if err := proc.BatchSheetFiles(ctx, inputs, out, bg); err != nil {
			log.Fatal(err)
		}
	case makeSheet:
		if err := proc.MakeSheetFile(ctx, in, out, bg, copies); err != nil {
			log.Fatal(err)
		}
	default:
		if err := proc.ProcessFile(ctx, in, out, bg); err != nil {
			log.Fatal(err)
		}
	}
	log.Printf("wrote %s", out)
}
