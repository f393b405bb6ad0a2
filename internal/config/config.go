package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the application configuration
type Config struct {
	Photo     PhotoConfig     `json:"photo"`
	Sheet     SheetConfig     `json:"sheet"`
	Detector  DetectorConfig  `json:"detector"`
	Segmenter SegmenterConfig `json:"segmenter"`
	Pipeline  PipelineConfig  `json:"pipeline"`
}

// PhotoConfig holds the output photo geometry and defaults
type PhotoConfig struct {
	SizePx        int     `json:"size_px"`
	DPI           int     `json:"dpi"`
	Background    string  `json:"background"`
	CoverageRatio float64 `json:"coverage_ratio"`
	Brightness    float64 `json:"brightness"`
	Contrast      float64 `json:"contrast"`
}

// SheetConfig holds the print sheet geometry
type SheetConfig struct {
	WidthPx   int  `json:"width_px"`
	HeightPx  int  `json:"height_px"`
	MarginPx  int  `json:"margin_px"`
	GutterPx  int  `json:"gutter_px"`
	CutGuides bool `json:"cut_guides"`
}

// DetectorConfig holds the vision model backend settings
type DetectorConfig struct {
	Backend string `json:"backend"` // "ollama" or "llamacpp"
	URL     string `json:"url"`
	Model   string `json:"model"`
}

// SegmenterConfig holds the background removal service settings
type SegmenterConfig struct {
	URL         string `json:"url"`
	ModelSizePx int    `json:"model_size_px"`
}

// PipelineConfig holds execution limits
type PipelineConfig struct {
	TimeoutSeconds int `json:"timeout_seconds"`
	Workers        int `json:"workers"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Photo: PhotoConfig{
			SizePx:        600,
			DPI:           300,
			Background:    "white",
			CoverageRatio: 2.2,
			Brightness:    1.0,
			Contrast:      1.0,
		},
		Sheet: SheetConfig{
			WidthPx:   2480,
			HeightPx:  3508,
			MarginPx:  60,
			GutterPx:  30,
			CutGuides: true,
		},
		Detector: DetectorConfig{
			Backend: "ollama",
			URL:     "http://localhost:11434",
			Model:   "minicpm-v",
		},
		Segmenter: SegmenterConfig{
			URL:         "http://localhost:7000",
			ModelSizePx: 320,
		},
		Pipeline: PipelineConfig{
			TimeoutSeconds: 120,
			Workers:        4,
		},
	}
}

// LoadFromFile loads configuration from a JSON file
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Photo.SizePx < 100 || c.Photo.SizePx > 2000 {
		return fmt.Errorf("photo.size_px must be between 100 and 2000")
	}

	if c.Photo.DPI < 72 || c.Photo.DPI > 1200 {
		return fmt.Errorf("photo.dpi must be between 72 and 1200")
	}

	if c.Photo.CoverageRatio < 1.5 || c.Photo.CoverageRatio > 3.0 {
		return fmt.Errorf("photo.coverage_ratio must be between 1.5 and 3.0")
	}

	if c.Photo.Brightness < 0.5 || c.Photo.Brightness > 1.5 {
		return fmt.Errorf("photo.brightness must be between 0.5 and 1.5")
	}

	if c.Photo.Contrast < 0.5 || c.Photo.Contrast > 1.5 {
		return fmt.Errorf("photo.contrast must be between 0.5 and 1.5")
	}

	if c.Sheet.WidthPx < c.Photo.SizePx || c.Sheet.HeightPx < c.Photo.SizePx {
		return fmt.Errorf("sheet dimensions must fit at least one photo")
	}

	if c.Sheet.MarginPx < 0 || c.Sheet.GutterPx < 0 {
		return fmt.Errorf("sheet margin and gutter must be non-negative")
	}

	if c.Detector.Backend != "ollama" && c.Detector.Backend != "llamacpp" {
		return fmt.Errorf("detector.backend must be \"ollama\" or \"llamacpp\"")
	}

	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be positive")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "passport-photo", "config.json")
}
