package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ivlev/framecomp/internal/compositor"
	"github.com/ivlev/framecomp/internal/frame"
	"github.com/ivlev/framecomp/internal/webp"
)

// Config is the full set of run options. Every component receives the parts
// it needs at construction; nothing reads globals.
type Config struct {
	InputDir  string `yaml:"input_dir"`
	OutputDir string `yaml:"output_dir"`
	FrameDir  string `yaml:"frame_dir"`
	// TempDir holds intermediate PNGs. Defaults to <output_dir>/_framed_png.
	TempDir  string `yaml:"temp_dir"`
	Manifest string `yaml:"manifest"`

	TargetWidth int `yaml:"target_width"`
	Quality     int `yaml:"quality"`
	Method      int `yaml:"method"`

	ContentScaleRatio float64 `yaml:"content_scale_ratio"`
	ExpectedRatio     float64 `yaml:"expected_ratio"`
	RatioTolerance    float64 `yaml:"ratio_tolerance"`

	// Calibration overrides the interior ratios for another frame family.
	Calibration *frame.Calibration `yaml:"calibration"`

	Workers int `yaml:"workers"`
}

// Default returns the stock layout: input/, output/, lib/frames/.
func Default() *Config {
	return &Config{
		InputDir:          "input",
		OutputDir:         "output",
		FrameDir:          filepath.Join("lib", "frames"),
		TargetWidth:       webp.DefaultTargetWidth,
		Quality:           webp.DefaultQuality,
		Method:            webp.DefaultMethod,
		ContentScaleRatio: compositor.DefaultContentScaleRatio,
		ExpectedRatio:     compositor.DefaultExpectedRatio,
		RatioTolerance:    compositor.DefaultRatioTolerance,
	}
}

// ResolvedTempDir returns TempDir or its default under OutputDir.
func (c *Config) ResolvedTempDir() string {
	if c.TempDir != "" {
		return c.TempDir
	}
	return filepath.Join(c.OutputDir, "_framed_png")
}

// CompositorOptions extracts the composition parameters.
func (c *Config) CompositorOptions() compositor.Options {
	return compositor.Options{
		ContentScaleRatio: c.ContentScaleRatio,
		ExpectedRatio:     c.ExpectedRatio,
		RatioTolerance:    c.RatioTolerance,
	}
}

// FrameCalibration returns the configured calibration or the default one.
func (c *Config) FrameCalibration() frame.Calibration {
	if c.Calibration != nil {
		return *c.Calibration
	}
	return frame.DefaultCalibration
}

// WebPOptions extracts the encoder parameters.
func (c *Config) WebPOptions() webp.Options {
	return webp.Options{
		TargetWidth: c.TargetWidth,
		Quality:     c.Quality,
		Method:      c.Method,
	}
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if c.InputDir == "" {
		errs = append(errs, errors.New("input_dir is required"))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output_dir is required"))
	}
	if c.FrameDir == "" {
		errs = append(errs, errors.New("frame_dir is required"))
	}
	if c.TargetWidth < 1 {
		errs = append(errs, fmt.Errorf("target_width must be positive, got %d", c.TargetWidth))
	}
	if c.Quality < 0 || c.Quality > 100 {
		errs = append(errs, fmt.Errorf("quality must be within 0..100, got %d", c.Quality))
	}
	if c.Method < 0 || c.Method > 6 {
		errs = append(errs, fmt.Errorf("method must be within 0..6, got %d", c.Method))
	}
	if c.ContentScaleRatio <= 0 {
		errs = append(errs, fmt.Errorf("content_scale_ratio must be positive, got %g", c.ContentScaleRatio))
	}
	if c.ExpectedRatio <= 0 {
		errs = append(errs, fmt.Errorf("expected_ratio must be positive, got %g", c.ExpectedRatio))
	}
	if c.RatioTolerance < 0 {
		errs = append(errs, fmt.Errorf("ratio_tolerance must not be negative, got %g", c.RatioTolerance))
	}
	if c.Calibration != nil {
		if err := c.Calibration.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("calibration: %w", err))
		}
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if err := c.validateTempDir(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// validateTempDir rejects a temp dir that would take another directory down
// with it; the pipeline removes the temp dir recursively.
func (c *Config) validateTempDir() error {
	if c.OutputDir == "" {
		return nil
	}
	temp, err := filepath.Abs(c.ResolvedTempDir())
	if err != nil {
		return fmt.Errorf("temp_dir: %w", err)
	}
	for _, d := range []struct{ field, path string }{
		{"input_dir", c.InputDir},
		{"output_dir", c.OutputDir},
		{"frame_dir", c.FrameDir},
	} {
		if d.path == "" {
			continue
		}
		abs, err := filepath.Abs(d.path)
		if err != nil {
			return fmt.Errorf("%s: %w", d.field, err)
		}
		if contains(temp, abs) {
			return fmt.Errorf("temp_dir %q must not be or contain %s %q", c.ResolvedTempDir(), d.field, d.path)
		}
	}
	return nil
}

// contains reports whether dir is parent or one of its descendants.
func contains(parent, dir string) bool {
	rel, err := filepath.Rel(parent, dir)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
