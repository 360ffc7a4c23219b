// Package pipeline runs a batch: match inputs to frames, compose them in a
// worker pool, and hand the intermediates to the WebP converter.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/framecomp/internal/compositor"
	"github.com/ivlev/framecomp/internal/config"
	"github.com/ivlev/framecomp/internal/frame"
	"github.com/ivlev/framecomp/internal/logging"
	"github.com/ivlev/framecomp/internal/matcher"
	"github.com/ivlev/framecomp/internal/system"
	"github.com/ivlev/framecomp/internal/webp"
)

// ErrInputDirMissing stops a run before any work when the input dir is absent.
var ErrInputDirMissing = errors.New("input directory not found")

// Pipeline owns nothing mutable between runs; the catalog is shared read-only
// by all workers.
type Pipeline struct {
	Config    *config.Config
	Catalog   *frame.Catalog
	Matcher   matcher.Matcher
	Converter webp.Converter
	Sink      logging.Sink
}

// New wires a pipeline. A nil matcher selects the filename convention.
func New(cfg *config.Config, cat *frame.Catalog, m matcher.Matcher, conv webp.Converter, sink logging.Sink) *Pipeline {
	if m == nil {
		m = matcher.Prefix{}
	}
	if sink == nil {
		sink = logging.Nop()
	}
	return &Pipeline{
		Config:    cfg,
		Catalog:   cat,
		Matcher:   m,
		Converter: conv,
		Sink:      sink,
	}
}

// Report summarizes a run. Composed is the success count.
type Report struct {
	Inputs   int
	Composed int
	Skipped  int
	Failed   int
	Encoded  int
	// Outputs lists written WebP files in input order.
	Outputs []string
	// Files holds one entry per input, in input order.
	Files []FileResult
	// NothingComposed is set when no input produced a composite; not an error.
	NothingComposed bool
	Elapsed         time.Duration
}

// Status is the outcome of one input.
type Status string

const (
	StatusSkipped      Status = "skipped"
	StatusSuperseded   Status = "superseded"
	StatusFailed       Status = "failed"
	StatusComposed     Status = "composed"
	StatusEncoded      Status = "encoded"
	StatusEncodeFailed Status = "encode_failed"
)

// FileResult records what happened to one input.
type FileResult struct {
	Input     string
	Frame     string
	Output    string
	Status    Status
	Placement compositor.Placement
	Ratio     float64
	// RatioWarning is set when the input ratio is outside the tolerance.
	RatioWarning bool
	Err          error
}

// job is one matched input. Index is the position in the sorted input list
// and keeps temp names unique and logs ordered.
type job struct {
	Index int
	Path  string
	Stem  string
	Frame frame.Spec
}

type composeResult struct {
	TempPath  string
	Placement compositor.Placement
	Ratio     float64
	Deviates  bool
	Err       error
}

// Run processes every supported image directly under the input directory in
// name order.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	info, err := os.Stat(p.Config.InputDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrInputDirMissing, p.Config.InputDir)
	}

	paths, err := system.ListImages(p.Config.InputDir, system.InputExtensions)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", p.Config.InputDir, err)
	}
	return p.RunFiles(ctx, paths)
}

// RunFiles processes an explicit list of inputs in the given order.
// The temp directory is recreated at start and removed on every return path.
func (p *Pipeline) RunFiles(ctx context.Context, paths []string) (*Report, error) {
	start := time.Now()
	report := &Report{Inputs: len(paths), Files: make([]FileResult, len(paths))}
	for i, path := range paths {
		report.Files[i] = FileResult{Input: path, Status: StatusSkipped}
	}

	tempDir := p.Config.ResolvedTempDir()
	if err := os.RemoveAll(tempDir); err != nil {
		return nil, fmt.Errorf("reset temp dir: %w", err)
	}
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer p.cleanupTemp(tempDir)

	jobs := p.plan(paths, report)

	results, err := p.composeAll(ctx, tempDir, jobs)
	if err != nil {
		return nil, err
	}

	var composed []job
	var temps []string
	for i, j := range jobs {
		r := results[i]
		file := &report.Files[j.Index]
		file.Frame = j.Frame.Name
		if r.Err != nil {
			file.Status = StatusFailed
			file.Err = r.Err
			report.Failed++
			p.Sink.Error("compose failed", map[string]any{"file": filepath.Base(j.Path), "error": r.Err})
			continue
		}
		if r.Deviates {
			p.Sink.Warn("ratio deviates from expected", map[string]any{
				"file":     filepath.Base(j.Path),
				"ratio":    fmt.Sprintf("%.3f", r.Ratio),
				"expected": fmt.Sprintf("%.3f", p.Config.ExpectedRatio),
			})
		}
		p.Sink.Info("framed", map[string]any{"file": filepath.Base(j.Path), "frame": j.Frame.Name + ".png"})
		file.Status = StatusComposed
		file.Placement = r.Placement
		file.Ratio = r.Ratio
		file.RatioWarning = r.Deviates
		report.Composed++
		composed = append(composed, j)
		temps = append(temps, r.TempPath)
	}

	if report.Composed == 0 {
		report.NothingComposed = true
		report.Elapsed = time.Since(start)
		p.Sink.Warn("no images were composed; ensure filenames start with a frame name", map[string]any{
			"inputs":  report.Inputs,
			"skipped": report.Skipped,
			"failed":  report.Failed,
		})
		return report, nil
	}

	if err := os.MkdirAll(p.Config.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	encodeErrs, err := p.encodeAll(ctx, composed, temps)
	if err != nil {
		return nil, err
	}
	for i, j := range composed {
		dst := p.outputPath(j)
		file := &report.Files[j.Index]
		if encodeErrs[i] != nil {
			file.Status = StatusEncodeFailed
			file.Err = encodeErrs[i]
			p.Sink.Error("encode failed", map[string]any{"file": filepath.Base(j.Path), "error": encodeErrs[i]})
			continue
		}
		file.Status = StatusEncoded
		file.Output = dst
		report.Encoded++
		report.Outputs = append(report.Outputs, dst)
	}

	report.Elapsed = time.Since(start)
	return report, nil
}

// ErrSuperseded marks an input dropped because a later input writes the same
// output file.
var ErrSuperseded = errors.New("superseded by a later input with the same output name")

// plan resolves frames for every input, logging skips in input order. When
// several inputs map to one output name only the last one is kept, so no two
// jobs ever write the same file.
func (p *Pipeline) plan(paths []string, report *Report) []job {
	keys := p.Catalog.Keys()
	outputs := make(map[string]job, len(paths))

	var order []int
	for i, path := range paths {
		stem := system.Stem(path)
		key, err := p.Matcher.Match(stem, keys)
		if err != nil {
			report.Skipped++
			report.Files[i].Err = err
			p.Sink.Warn("no matching frame, skipped", map[string]any{"file": filepath.Base(path), "reason": err.Error()})
			continue
		}
		spec, ok := p.Catalog.Lookup(key)
		if !ok {
			report.Skipped++
			report.Files[i].Err = fmt.Errorf("%w: frame %q not in catalog", matcher.ErrNoMatch, key)
			p.Sink.Warn("no matching frame, skipped", map[string]any{"file": filepath.Base(path), "frame": key})
			continue
		}

		if prev, dup := outputs[stem]; dup {
			p.Sink.Warn("output name collision, later input wins", map[string]any{
				"output": stem + ".webp",
				"first":  filepath.Base(prev.Path),
				"second": filepath.Base(path),
			})
			report.Skipped++
			report.Files[prev.Index].Status = StatusSuperseded
			report.Files[prev.Index].Frame = prev.Frame.Name
			report.Files[prev.Index].Err = fmt.Errorf("%w: %s", ErrSuperseded, filepath.Base(path))
		}
		outputs[stem] = job{Index: i, Path: path, Stem: stem, Frame: spec}
		order = append(order, i)
	}

	jobs := make([]job, 0, len(outputs))
	for _, i := range order {
		if j := outputs[system.Stem(paths[i])]; j.Index == i {
			jobs = append(jobs, j)
		}
	}
	return jobs
}

func (p *Pipeline) workers(n int) int {
	w := p.Config.Workers
	if w <= 0 {
		w = system.DefaultWorkers()
	}
	if w > n {
		w = n
	}
	if w < 1 {
		w = 1
	}
	return w
}

// composeAll composes jobs concurrently. Per-file failures land in the result
// slot; only cancellation aborts the batch.
func (p *Pipeline) composeAll(ctx context.Context, tempDir string, jobs []job) ([]composeResult, error) {
	results := make([]composeResult, len(jobs))
	if len(jobs) == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers(len(jobs)))

	opts := p.Config.CompositorOptions()
	for i, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = p.composeOne(tempDir, j, opts)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Pipeline) composeOne(tempDir string, j job, opts compositor.Options) composeResult {
	res, err := compositor.ComposeFile(j.Path, j.Frame, opts)
	if err != nil {
		return composeResult{Err: err}
	}
	defer res.Release()

	tempPath := filepath.Join(tempDir, fmt.Sprintf("%04d_%s.png", j.Index, j.Stem))
	if err := imaging.Save(res.Image, tempPath); err != nil {
		return composeResult{Err: fmt.Errorf("write intermediate: %w", err)}
	}

	return composeResult{
		TempPath:  tempPath,
		Placement: res.Placement,
		Ratio:     res.Ratio,
		Deviates:  res.RatioDeviation,
	}
}

// encodeAll converts intermediates to WebP. Each intermediate is deleted after
// its conversion whatever the outcome.
func (p *Pipeline) encodeAll(ctx context.Context, jobs []job, temps []string) ([]error, error) {
	errs := make([]error, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers(len(jobs)))

	for i, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			errs[i] = p.Converter.Convert(gctx, temps[i], p.outputPath(j))
			if err := os.Remove(temps[i]); err != nil && !os.IsNotExist(err) {
				p.Sink.Warn("intermediate not removed", map[string]any{"file": temps[i], "error": err})
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return errs, nil
}

func (p *Pipeline) outputPath(j job) string {
	return filepath.Join(p.Config.OutputDir, j.Stem+".webp")
}

func (p *Pipeline) cleanupTemp(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		p.Sink.Warn("temp dir not removed", map[string]any{"dir": dir, "error": err})
	}
}
