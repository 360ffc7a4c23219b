package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ivlev/framecomp/internal/frame"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.TargetWidth != 600 || cfg.Quality != 80 || cfg.Method != 6 {
		t.Errorf("unexpected encoder defaults: %+v", cfg)
	}
	if cfg.ContentScaleRatio != 1.0 || cfg.RatioTolerance != 0.05 || cfg.ExpectedRatio != 0.75 {
		t.Errorf("unexpected composition defaults: %+v", cfg)
	}
	if got := cfg.ResolvedTempDir(); got != filepath.Join("output", "_framed_png") {
		t.Errorf("unexpected temp dir %q", got)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Setenv("FRAMECOMP_TEST_OUT", "/srv/out")
	path := writeTemp(t, "framecomp.yaml", `input_dir: portraits
output_dir: ${FRAMECOMP_TEST_OUT}
frame_dir: ${FRAMECOMP_TEST_UNSET:-assets/frames}
quality: 90
content_scale_ratio: 0.95
workers: 3
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.InputDir != "portraits" {
		t.Errorf("input_dir = %q", cfg.InputDir)
	}
	if cfg.OutputDir != "/srv/out" {
		t.Errorf("output_dir = %q", cfg.OutputDir)
	}
	if cfg.FrameDir != "assets/frames" {
		t.Errorf("frame_dir = %q", cfg.FrameDir)
	}
	if cfg.Quality != 90 || cfg.ContentScaleRatio != 0.95 || cfg.Workers != 3 {
		t.Errorf("numeric overrides lost: %+v", cfg)
	}
	// untouched fields keep defaults
	if cfg.TargetWidth != 600 || cfg.RatioTolerance != 0.05 {
		t.Errorf("defaults lost: %+v", cfg)
	}
	if cfg.ResolvedTempDir() != filepath.Join("/srv/out", "_framed_png") {
		t.Errorf("temp dir = %q", cfg.ResolvedTempDir())
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found error, got %v", err)
	}

	path := writeTemp(t, "bad.yaml", "quality: [1, 2")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "invalid YAML") {
		t.Errorf("expected YAML error, got %v", err)
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.InputDir = ""
	cfg.Quality = 120
	cfg.ContentScaleRatio = 0
	cfg.Workers = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"input_dir", "quality", "content_scale_ratio", "workers"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s: %v", want, err)
		}
	}
}

func TestValidateTempDir(t *testing.T) {
	root := t.TempDir()
	tests := []struct {
		name    string
		temp    string
		wantErr string
	}{
		{"default under output", "", ""},
		{"sibling", filepath.Join(root, "scratch"), ""},
		{"nested in input", filepath.Join(root, "in", "tmp"), ""},
		{"equals output", filepath.Join(root, "out"), "output_dir"},
		{"equals input", filepath.Join(root, "in"), "input_dir"},
		{"equals frames", filepath.Join(root, "frames"), "frame_dir"},
		{"parent of all", root, "input_dir"},
		{"relative parent", filepath.Join(root, "out", ".."), "input_dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.InputDir = filepath.Join(root, "in")
			cfg.OutputDir = filepath.Join(root, "out")
			cfg.FrameDir = filepath.Join(root, "frames")
			cfg.TempDir = tt.temp

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), "temp_dir") || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected temp_dir error naming %s, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("FRAMECOMP_A", "alpha")
	t.Setenv("FRAMECOMP_EMPTY", "")
	tests := []struct {
		in, want string
	}{
		{"${FRAMECOMP_A}", "alpha"},
		{"$FRAMECOMP_A", "alpha"},
		{"x-${FRAMECOMP_A}-y", "x-alpha-y"},
		{"${FRAMECOMP_A:-fallback}", "alpha"},
		{"${FRAMECOMP_NOPE}", ""},
		{"${FRAMECOMP_NOPE:-fallback}", "fallback"},
		{"${FRAMECOMP_EMPTY:-fallback}", "fallback"},
		{"${FRAMECOMP_NOPE:-}", ""},
		{"cost: 5 $", "cost: 5 $"},
	}
	for _, tt := range tests {
		if got := ExpandEnv(tt.in); got != tt.want {
			t.Errorf("ExpandEnv(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadDotEnv(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Errorf("missing .env should be ignored, got %v", err)
	}

	path := writeTemp(t, ".env", "FRAMECOMP_DOTENV_VALUE=from-file\n")
	t.Setenv("FRAMECOMP_DOTENV_VALUE", "")
	os.Unsetenv("FRAMECOMP_DOTENV_VALUE")
	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}
	if got := os.Getenv("FRAMECOMP_DOTENV_VALUE"); got != "from-file" {
		t.Errorf("expected value from .env, got %q", got)
	}
}

func TestLoadCalibration(t *testing.T) {
	path := writeTemp(t, "framecomp.yaml", `calibration:
  inner_width: 0.9
  inner_height: 0.92
  inner_left: 0.05
  inner_top: 0.04
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cal := cfg.FrameCalibration()
	if cal.InnerWidth != 0.9 || cal.InnerTop != 0.04 {
		t.Errorf("calibration not loaded: %+v", cal)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid calibration rejected: %v", err)
	}

	cfg.Calibration.InnerWidth = 1.5
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "calibration") {
		t.Errorf("expected calibration error, got %v", err)
	}

	if Default().FrameCalibration() != frame.DefaultCalibration {
		t.Error("default config should use the default calibration")
	}
}
