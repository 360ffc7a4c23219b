// Package webp re-encodes composed PNGs as web-sized lossy WebP files.
package webp

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
)

const (
	DefaultTargetWidth = 600
	DefaultQuality     = 80
	// DefaultMethod is libwebp's slowest, best-compressing effort level.
	DefaultMethod = 6
)

// Converter turns one raster file into a WebP file, overwriting dst.
type Converter interface {
	Convert(ctx context.Context, src, dst string) error
}

// Options control resizing and encoding.
type Options struct {
	TargetWidth int
	Quality     int
	Method      int
}

// DefaultOptions returns the web output defaults.
func DefaultOptions() Options {
	return Options{
		TargetWidth: DefaultTargetWidth,
		Quality:     DefaultQuality,
		Method:      DefaultMethod,
	}
}

// LibWebPConverter encodes through libwebp.
type LibWebPConverter struct {
	opts Options
}

// NewConverter validates opts and returns a libwebp-backed converter.
func NewConverter(opts Options) (*LibWebPConverter, error) {
	if opts.TargetWidth < 1 {
		return nil, fmt.Errorf("target width must be positive, got %d", opts.TargetWidth)
	}
	if opts.Quality < 0 || opts.Quality > 100 {
		return nil, fmt.Errorf("quality must be within 0..100, got %d", opts.Quality)
	}
	if opts.Method < 0 || opts.Method > 6 {
		return nil, fmt.Errorf("method must be within 0..6, got %d", opts.Method)
	}
	return &LibWebPConverter{opts: opts}, nil
}

// TargetSize scales size to width w keeping the aspect ratio. Height is
// truncated and never below 1.
func TargetSize(size image.Point, w int) image.Point {
	ratio := float64(w) / float64(size.X)
	h := int(float64(size.Y) * ratio)
	if h < 1 {
		h = 1
	}
	return image.Pt(w, h)
}

// Convert decodes src, resizes it to the target width with Lanczos and writes
// a lossy WebP to dst. The file is written next to dst and renamed into place.
func (c *LibWebPConverter) Convert(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	img, err := imaging.Open(src)
	if err != nil {
		return fmt.Errorf("decode %s: %w", src, err)
	}

	size := TargetSize(img.Bounds().Size(), c.opts.TargetWidth)
	resized := imaging.Resize(img, size.X, size.Y, imaging.Lanczos)

	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, float32(c.opts.Quality))
	if err != nil {
		return fmt.Errorf("encoder options: %w", err)
	}
	options.Method = c.opts.Method

	// unique per call so concurrent writers never share a partial file
	f, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.part")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if err := webp.Encode(f, resized, options); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode %s: %w", dst, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0644); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, filepath.Clean(dst))
}
