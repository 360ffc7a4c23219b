// Package calibrate measures the transparent window of a frame asset and
// turns it into interior ratios for frame.Calibration.
package calibrate

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/ivlev/framecomp/internal/frame"
)

// ErrNoInterior means the frame has no enclosed transparent region.
var ErrNoInterior = errors.New("no enclosed transparent region")

// DefaultAlphaThreshold treats pixels at or below this alpha as see-through.
const DefaultAlphaThreshold = 8

// Measurement is the measured window of one frame next to what the current
// calibration derives for it.
type Measurement struct {
	Size        image.Point
	Interior    image.Rectangle
	Calibration frame.Calibration
	Derived     frame.BBox
}

// Detector finds the frame window. MinArea drops specks of transparency in
// the decoration.
type Detector struct {
	AlphaThreshold uint8
	MinArea        int
}

// NewDetector returns a detector with default settings.
func NewDetector() *Detector {
	return &Detector{
		AlphaThreshold: DefaultAlphaThreshold,
		MinArea:        64,
	}
}

// Interior returns the bounding rectangle of the largest 4-connected region
// of transparent pixels that does not touch the image border. Transparent
// margins around the frame are therefore ignored.
func (d *Detector) Interior(img image.Image) (image.Rectangle, error) {
	mask := d.transparencyMask(img)
	bounds := mask.Bounds()
	visited := make([]bool, bounds.Dx()*bounds.Dy())

	var best image.Rectangle
	bestArea := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			i := (y-bounds.Min.Y)*bounds.Dx() + (x - bounds.Min.X)
			if visited[i] || mask.GrayAt(x, y).Y == 0 {
				continue
			}
			rect, area, touches := floodFill(mask, visited, x, y)
			if touches || area < d.MinArea {
				continue
			}
			if area > bestArea {
				best, bestArea = rect, area
			}
		}
	}

	if bestArea == 0 {
		return image.Rectangle{}, ErrNoInterior
	}
	return best, nil
}

// transparencyMask marks see-through pixels with 255.
func (d *Detector) transparencyMask(img image.Image) *image.Gray {
	bounds := img.Bounds()
	mask := image.NewGray(bounds)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			a := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA).A
			if a <= d.AlphaThreshold {
				mask.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}

	return mask
}

// floodFill walks one region and returns its bounds, pixel count and whether
// it reaches the image border.
func floodFill(mask *image.Gray, visited []bool, startX, startY int) (image.Rectangle, int, bool) {
	bounds := mask.Bounds()
	minX, minY := startX, startY
	maxX, maxY := startX, startY
	area := 0
	touches := false

	stack := []image.Point{{X: startX, Y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		x, y := p.X, p.Y
		if x < bounds.Min.X || x >= bounds.Max.X || y < bounds.Min.Y || y >= bounds.Max.Y {
			continue
		}

		i := (y-bounds.Min.Y)*bounds.Dx() + (x - bounds.Min.X)
		if visited[i] || mask.GrayAt(x, y).Y == 0 {
			continue
		}
		visited[i] = true
		area++

		if x == bounds.Min.X || y == bounds.Min.Y || x == bounds.Max.X-1 || y == bounds.Max.Y-1 {
			touches = true
		}
		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, y), max(maxY, y)

		stack = append(stack,
			image.Point{X: x + 1, Y: y},
			image.Point{X: x - 1, Y: y},
			image.Point{X: x, Y: y + 1},
			image.Point{X: x, Y: y - 1},
		)
	}

	return image.Rect(minX, minY, maxX+1, maxY+1), area, touches
}

// FromInterior returns the calibration that derives rect on a frame of size.
func FromInterior(rect image.Rectangle, size image.Point) frame.Calibration {
	w, h := float64(size.X), float64(size.Y)
	return frame.Calibration{
		InnerWidth:  float64(rect.Dx()) / w,
		InnerHeight: float64(rect.Dy()) / h,
		InnerLeft:   float64(rect.Min.X) / w,
		InnerTop:    float64(rect.Min.Y) / h,
	}
}

// Measure decodes a frame PNG and measures its window. current is the
// calibration in use; its derived box is reported for comparison.
func (d *Detector) Measure(path string, current frame.Calibration) (*Measurement, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	interior, err := d.Interior(img)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	size := img.Bounds().Size()

	return &Measurement{
		Size:        size,
		Interior:    interior,
		Calibration: FromInterior(interior, size),
		Derived:     current.Derive(size.X, size.Y),
	}, nil
}
