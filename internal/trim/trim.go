// Package trim crops frame assets to their visible content.
package trim

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/ivlev/framecomp/internal/logging"
	"github.com/ivlev/framecomp/internal/system"
)

// Bounds returns the smallest rectangle holding every visible pixel. For an
// image with transparency a pixel is visible when its alpha is non-zero. A
// fully opaque image has nothing to key on, so there the non-black pixels
// count instead. ok is false when nothing is visible.
func Bounds(img image.Image) (image.Rectangle, bool) {
	visible := hasAlpha
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		visible = nonBlack
	}

	b := img.Bounds()
	minX, minY := b.Max.X, b.Max.Y
	maxX, maxY := b.Min.X-1, b.Min.Y-1

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if !visible(img, x, y) {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}

	if maxX < minX {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

func hasAlpha(img image.Image, x, y int) bool {
	switch src := img.(type) {
	case *image.NRGBA:
		return src.Pix[src.PixOffset(x, y)+3] != 0
	case *image.RGBA:
		return src.Pix[src.PixOffset(x, y)+3] != 0
	}
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA).A != 0
}

func nonBlack(img image.Image, x, y int) bool {
	switch src := img.(type) {
	case *image.Gray:
		return src.Pix[src.PixOffset(x, y)] != 0
	case *image.NRGBA:
		p := src.Pix[src.PixOffset(x, y):]
		return p[0]|p[1]|p[2] != 0
	case *image.RGBA:
		p := src.Pix[src.PixOffset(x, y):]
		return p[0]|p[1]|p[2] != 0
	}
	r, g, b, _ := img.At(x, y).RGBA()
	return r|g|b != 0
}

// File crops src and writes it to dst. An image with nothing visible is copied
// byte for byte. The returned rectangle is the kept region.
func File(src, dst string) (image.Rectangle, error) {
	img, err := imaging.Open(src)
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("open %s: %w", src, err)
	}

	rect, ok := Bounds(img)
	if !ok {
		return img.Bounds(), copyFile(src, dst)
	}

	if err := imaging.Save(imaging.Crop(img, rect), dst); err != nil {
		return image.Rectangle{}, fmt.Errorf("save %s: %w", dst, err)
	}
	return rect, nil
}

// Dir trims every PNG directly under srcDir into dstDir under the same name.
// Per-file failures are logged and skipped. It returns the number written.
func Dir(ctx context.Context, srcDir, dstDir string, sink logging.Sink) (int, error) {
	if sink == nil {
		sink = logging.Nop()
	}

	paths, err := system.ListImages(srcDir, system.FrameExtensions)
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", srcDir, err)
	}
	if err := os.MkdirAll(dstDir, 0755); err != nil {
		return 0, fmt.Errorf("create %s: %w", dstDir, err)
	}

	written := 0
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		name := filepath.Base(path)
		rect, err := File(path, filepath.Join(dstDir, name))
		if err != nil {
			sink.Error("trim failed", map[string]any{"file": name, "error": err})
			continue
		}
		sink.Info("trimmed", map[string]any{"file": name, "bounds": rect.String()})
		written++
	}
	return written, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
