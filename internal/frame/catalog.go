// Package frame derives interior placement boxes for decorative frame assets
// and keeps the catalog of frames available to a run.
package frame

import (
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"os"
	"strings"

	"github.com/ivlev/framecomp/internal/logging"
	"github.com/ivlev/framecomp/internal/system"
)

// ErrCatalogEmpty is returned when a frame directory yields no usable frame.
var ErrCatalogEmpty = errors.New("no frame assets found")

// Spec describes one frame asset. It is immutable once the catalog is built.
type Spec struct {
	Name string // original file stem, case preserved
	Path string
	BBox BBox
	Size image.Point
}

// Catalog maps lowercased frame stems to specs. Keys keep insertion order,
// which is the sorted file name order of the frame directory.
type Catalog struct {
	specs map[string]Spec
	keys  []string
}

// NewCatalog builds a catalog from already-derived specs. Later specs with the
// same lowercased name replace earlier ones but keep the earlier position.
func NewCatalog(specs ...Spec) *Catalog {
	c := &Catalog{specs: make(map[string]Spec, len(specs))}
	for _, s := range specs {
		c.add(s)
	}
	return c
}

func (c *Catalog) add(s Spec) {
	key := strings.ToLower(s.Name)
	if _, exists := c.specs[key]; !exists {
		c.keys = append(c.keys, key)
	}
	c.specs[key] = s
}

// Keys returns catalog keys in insertion order. The slice is a copy.
func (c *Catalog) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Lookup returns the spec stored under key.
func (c *Catalog) Lookup(key string) (Spec, bool) {
	s, ok := c.specs[key]
	return s, ok
}

// Len is the number of frames.
func (c *Catalog) Len() int {
	return len(c.keys)
}

// Build scans dir (non-recursively) for frame PNGs. Only image headers are
// decoded. Frames with unreadable headers or degenerate interiors are reported
// to sink and left out.
func Build(dir string, sink logging.Sink) (*Catalog, error) {
	return BuildWith(dir, DefaultCalibration, sink)
}

// BuildWith is Build with a calibration for a different frame family.
func BuildWith(dir string, cal Calibration, sink logging.Sink) (*Catalog, error) {
	if sink == nil {
		sink = logging.Nop()
	}
	paths, err := system.ListImages(dir, system.FrameExtensions)
	if err != nil {
		return nil, fmt.Errorf("%w under %s: %v", ErrCatalogEmpty, dir, err)
	}

	c := NewCatalog()
	for _, path := range paths {
		size, err := readSize(path)
		if err != nil {
			sink.Error("frame header unreadable", map[string]any{"frame": path, "error": err})
			continue
		}

		bbox := cal.Derive(size.X, size.Y)
		if err := bbox.Validate(size); err != nil {
			sink.Error("frame rejected", map[string]any{"frame": path, "error": err})
			continue
		}

		c.add(Spec{
			Name: system.Stem(path),
			Path: path,
			BBox: bbox,
			Size: size,
		})
		sink.Debug("frame cataloged", map[string]any{
			"frame": system.Stem(path),
			"size":  fmt.Sprintf("%dx%d", size.X, size.Y),
			"bbox":  bbox.String(),
		})
	}

	if c.Len() == 0 {
		return nil, fmt.Errorf("%w under %s", ErrCatalogEmpty, dir)
	}
	return c, nil
}

func readSize(path string) (image.Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Point{}, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return image.Point{}, err
	}
	return image.Pt(cfg.Width, cfg.Height), nil
}
