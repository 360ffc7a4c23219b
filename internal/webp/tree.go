package webp

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ivlev/framecomp/internal/logging"
	"github.com/ivlev/framecomp/internal/system"
)

// ConvertTree converts every supported raster below srcRoot into
// dstRoot/<relative dir>/<stem>.webp and returns how many were written.
// Per-file failures are reported to sink and skipped.
func ConvertTree(ctx context.Context, conv Converter, srcRoot, dstRoot string, sink logging.Sink) (int, error) {
	var converted int

	err := filepath.WalkDir(srcRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !system.HasExtension(d.Name(), system.InputExtensions) {
			return nil
		}

		rel, err := filepath.Rel(srcRoot, filepath.Dir(path))
		if err != nil {
			return err
		}
		outDir := filepath.Join(dstRoot, rel)
		if err := os.MkdirAll(outDir, 0755); err != nil {
			return err
		}

		dst := filepath.Join(outDir, system.Stem(path)+".webp")
		if err := conv.Convert(ctx, path, dst); err != nil {
			sink.Error("convert failed", map[string]any{"file": path, "error": err})
			return nil
		}

		converted++
		sink.Info("converted", map[string]any{"src": path, "dst": dst})
		return nil
	})

	return converted, err
}
