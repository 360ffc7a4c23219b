// Package watch composes portraits as they land in the input directory.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ivlev/framecomp/internal/logging"
	"github.com/ivlev/framecomp/internal/pipeline"
	"github.com/ivlev/framecomp/internal/system"
)

// DefaultDebounce is how long a path must stay quiet before it is processed.
const DefaultDebounce = 500 * time.Millisecond

// Runner processes an explicit list of inputs. *pipeline.Pipeline satisfies it.
type Runner interface {
	RunFiles(ctx context.Context, paths []string) (*pipeline.Report, error)
}

// Watcher feeds settled files from one directory to a Runner, one at a time.
type Watcher struct {
	Dir      string
	Runner   Runner
	Sink     logging.Sink
	Debounce time.Duration
}

// New creates a watcher with the default debounce.
func New(dir string, runner Runner, sink logging.Sink) *Watcher {
	if sink == nil {
		sink = logging.Nop()
	}
	return &Watcher{Dir: dir, Runner: runner, Sink: sink, Debounce: DefaultDebounce}
}

// Run blocks until ctx is canceled. Runner errors are logged, not returned,
// so one bad file does not stop the watch.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.Dir); err != nil {
		return fmt.Errorf("failed to watch folder %s: %w", w.Dir, err)
	}
	w.Sink.Info("watching", map[string]any{"dir": w.Dir})

	ready := make(chan string, 16)
	pending := make(map[string]*time.Timer)
	defer func() {
		for _, timer := range pending {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.Sink.Info("watch stopped", nil)
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}

			if timer, exists := pending[event.Name]; exists {
				timer.Stop()
			}
			name := event.Name
			pending[name] = time.AfterFunc(w.Debounce, func() {
				select {
				case ready <- name:
				case <-ctx.Done():
				}
			})

		case path := <-ready:
			delete(pending, path)
			w.process(ctx, path)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.Sink.Warn("watcher error", map[string]any{"error": err})
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return system.HasExtension(base, system.InputExtensions)
}

func (w *Watcher) process(ctx context.Context, path string) {
	report, err := w.Runner.RunFiles(ctx, []string{path})
	if err != nil {
		w.Sink.Error("watch run failed", map[string]any{"file": filepath.Base(path), "error": err})
		return
	}
	w.Sink.Info("watch run finished", map[string]any{
		"file":     filepath.Base(path),
		"composed": report.Composed,
		"encoded":  report.Encoded,
	})
}
