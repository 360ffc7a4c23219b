// Package compositor scales a portrait into a frame's interior box and
// alpha-composites the frame on top.
package compositor

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	"github.com/ivlev/framecomp/internal/frame"
	"github.com/ivlev/framecomp/internal/system"
)

// ErrEmptyImage is returned for a base image with no pixels.
var ErrEmptyImage = errors.New("empty base image")

// ErrFrameSizeChanged means the frame file no longer matches its catalog entry.
var ErrFrameSizeChanged = errors.New("frame size differs from catalog")

// Portraits are expected to be 3:4 (width:height).
const (
	DefaultExpectedRatio     = 3.0 / 4.0
	DefaultRatioTolerance    = 0.05
	DefaultContentScaleRatio = 1.0
)

// floorEpsilon absorbs float error in w*(box/w) so the fit-limiting axis
// lands exactly on the box edge.
const floorEpsilon = 1e-9

// Options are the tunable composition parameters.
type Options struct {
	// ContentScaleRatio multiplies the aspect-fit scale. 1.0 fills the box
	// on the limiting axis; smaller values leave a margin.
	ContentScaleRatio float64
	ExpectedRatio     float64
	RatioTolerance    float64
}

// DefaultOptions returns the calibrated defaults.
func DefaultOptions() Options {
	return Options{
		ContentScaleRatio: DefaultContentScaleRatio,
		ExpectedRatio:     DefaultExpectedRatio,
		RatioTolerance:    DefaultRatioTolerance,
	}
}

// Placement is where the scaled portrait lands on the frame canvas.
type Placement struct {
	Scale  float64
	Size   image.Point
	Offset image.Point
}

// Rect is the canvas rectangle covered by the scaled portrait.
func (p Placement) Rect() image.Rectangle {
	return image.Rectangle{Min: p.Offset, Max: p.Offset.Add(p.Size)}
}

// Result is a composed canvas the size of the frame. The canvas is pooled;
// call Release once it has been encoded.
type Result struct {
	Image          *image.RGBA
	Placement      Placement
	Ratio          float64
	RatioDeviation bool
}

// Release returns the canvas to the pool. The Result must not be used after.
func (r *Result) Release() {
	if r == nil || r.Image == nil {
		return
	}
	system.PutCanvas(r.Image)
	r.Image = nil
}

// CheckRatio returns w/h and whether it strays from the expected ratio by
// more than the tolerance.
func CheckRatio(size image.Point, opts Options) (float64, bool) {
	ratio := float64(size.X) / float64(size.Y)
	return ratio, math.Abs(ratio-opts.ExpectedRatio) > opts.RatioTolerance
}

// Place computes the aspect-fit size of a base image inside box and centers
// it, flooring both the scaled size and the centering offset.
func Place(base image.Point, box frame.BBox, contentScale float64) Placement {
	boxW, boxH := box.Dx(), box.Dy()

	fit := math.Min(float64(boxW)/float64(base.X), float64(boxH)/float64(base.Y))
	scale := fit * contentScale

	w := max(1, int(math.Floor(float64(base.X)*scale+floorEpsilon)))
	h := max(1, int(math.Floor(float64(base.Y)*scale+floorEpsilon)))

	return Placement{
		Scale: scale,
		Size:  image.Pt(w, h),
		Offset: image.Pt(
			box.Left+floorDiv(boxW-w, 2),
			box.Top+floorDiv(boxH-h, 2),
		),
	}
}

// Compose places base inside spec's interior box and draws frameImg over it.
// The result always has the frame's dimensions.
func Compose(base, frameImg image.Image, spec frame.Spec, opts Options) (*Result, error) {
	if err := spec.BBox.Validate(spec.Size); err != nil {
		return nil, fmt.Errorf("frame %s: %w", spec.Name, err)
	}

	bounds := base.Bounds()
	if bounds.Empty() {
		return nil, ErrEmptyImage
	}
	if got := frameImg.Bounds().Size(); got != spec.Size {
		return nil, fmt.Errorf("%w: %s is %dx%d, cataloged %dx%d",
			ErrFrameSizeChanged, spec.Name, got.X, got.Y, spec.Size.X, spec.Size.Y)
	}

	ratio, deviates := CheckRatio(bounds.Size(), opts)
	p := Place(bounds.Size(), spec.BBox, opts.ContentScaleRatio)

	resized := imaging.Resize(base, p.Size.X, p.Size.Y, imaging.Lanczos)

	canvas := system.GetCanvas(image.Rectangle{Max: spec.Size})
	draw.Draw(canvas, p.Rect(), resized, image.Point{}, draw.Over)
	draw.Draw(canvas, canvas.Rect, frameImg, frameImg.Bounds().Min, draw.Over)

	return &Result{
		Image:          canvas,
		Placement:      p,
		Ratio:          ratio,
		RatioDeviation: deviates,
	}, nil
}

// ComposeFile decodes the portrait at path and the frame asset, composes them
// and drops both decoded rasters before returning.
func ComposeFile(path string, spec frame.Spec, opts Options) (*Result, error) {
	base, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	frameImg, err := imaging.Open(spec.Path)
	if err != nil {
		return nil, fmt.Errorf("decode frame %s: %w", spec.Path, err)
	}
	return Compose(base, frameImg, spec, opts)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
