package frame

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// ErrDegenerateBBox marks a frame whose derived interior cannot hold any content.
var ErrDegenerateBBox = errors.New("degenerate interior bbox")

// Calibration holds the interior ratios measured on a reference frame.
// Left/top offsets and box sizes are fractions of the frame's own pixel size.
type Calibration struct {
	InnerWidth  float64 `yaml:"inner_width"`
	InnerHeight float64 `yaml:"inner_height"`
	InnerLeft   float64 `yaml:"inner_left"`
	InnerTop    float64 `yaml:"inner_top"`
}

// Validate requires every ratio within (0, 1] for sizes and [0, 1) for offsets.
func (c Calibration) Validate() error {
	var errs []error
	if c.InnerWidth <= 0 || c.InnerWidth > 1 {
		errs = append(errs, fmt.Errorf("inner_width must be within (0, 1], got %g", c.InnerWidth))
	}
	if c.InnerHeight <= 0 || c.InnerHeight > 1 {
		errs = append(errs, fmt.Errorf("inner_height must be within (0, 1], got %g", c.InnerHeight))
	}
	if c.InnerLeft < 0 || c.InnerLeft >= 1 {
		errs = append(errs, fmt.Errorf("inner_left must be within [0, 1), got %g", c.InnerLeft))
	}
	if c.InnerTop < 0 || c.InnerTop >= 1 {
		errs = append(errs, fmt.Errorf("inner_top must be within [0, 1), got %g", c.InnerTop))
	}
	return errors.Join(errs...)
}

// DefaultCalibration was measured on C.png (1559x2078). The box slightly
// overlaps the opaque border so no transparent seam shows around the portrait.
var DefaultCalibration = Calibration{
	InnerWidth:  0.935,
	InnerHeight: 0.935,
	InnerLeft:   67.0 / 1559.0, // ≈ 0.04298
	InnerTop:    70.0 / 2078.0, // ≈ 0.03369
}

// BBox is an interior placement rectangle in frame pixel coordinates.
// Right and Bottom are exclusive.
type BBox struct {
	Left, Top, Right, Bottom int
}

// Dx is the interior width.
func (b BBox) Dx() int { return b.Right - b.Left }

// Dy is the interior height.
func (b BBox) Dy() int { return b.Bottom - b.Top }

// Rect converts to an image.Rectangle.
func (b BBox) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right, b.Bottom)
}

func (b BBox) String() string {
	return fmt.Sprintf("(%d, %d, %d, %d)", b.Left, b.Top, b.Right, b.Bottom)
}

// Validate checks 0 <= left < right <= w and 0 <= top < bottom <= h.
func (b BBox) Validate(size image.Point) error {
	if b.Left < 0 || b.Top < 0 || b.Right > size.X || b.Bottom > size.Y {
		return fmt.Errorf("%w: %s outside %dx%d", ErrDegenerateBBox, b, size.X, size.Y)
	}
	if b.Dx() < 1 || b.Dy() < 1 {
		return fmt.Errorf("%w: %s has zero area", ErrDegenerateBBox, b)
	}
	return nil
}

// Derive applies DefaultCalibration to a frame of w x h pixels.
func Derive(w, h int) BBox {
	return DefaultCalibration.Derive(w, h)
}

// Derive computes the interior bbox for a frame of w x h pixels, clamped to
// the frame bounds. Rounding is half-to-even, matching the measurement tool.
func (c Calibration) Derive(w, h int) BBox {
	boxW := roundInt(float64(w) * c.InnerWidth)
	boxH := roundInt(float64(h) * c.InnerHeight)
	left := roundInt(float64(w) * c.InnerLeft)
	top := roundInt(float64(h) * c.InnerTop)

	return BBox{
		Left:   left,
		Top:    top,
		Right:  min(w, left+boxW),
		Bottom: min(h, top+boxH),
	}
}

func roundInt(v float64) int {
	return int(math.RoundToEven(v))
}
