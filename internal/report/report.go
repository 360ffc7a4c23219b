// Package report writes a YAML record of a compose run.
package report

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/framecomp/internal/pipeline"
)

// FormatVersion is bumped when the document layout changes.
const FormatVersion = "1"

// Document is the persisted form of a run.
type Document struct {
	Version string  `yaml:"version"`
	Summary Summary `yaml:"summary"`
	Files   []Entry `yaml:"files"`
}

// Summary mirrors the counters of pipeline.Report.
type Summary struct {
	Inputs          int     `yaml:"inputs"`
	Composed        int     `yaml:"composed"`
	Skipped         int     `yaml:"skipped"`
	Failed          int     `yaml:"failed"`
	Encoded         int     `yaml:"encoded"`
	NothingComposed bool    `yaml:"nothing_composed"`
	ElapsedSeconds  float64 `yaml:"elapsed_seconds"`
}

// Entry describes one input file.
type Entry struct {
	Input        string     `yaml:"input"`
	Frame        string     `yaml:"frame,omitempty"`
	Output       string     `yaml:"output,omitempty"`
	Status       string     `yaml:"status"`
	Scale        float64    `yaml:"scale,omitempty"`
	Placement    *Rectangle `yaml:"placement,omitempty"`
	Ratio        float64    `yaml:"ratio,omitempty"`
	RatioWarning bool       `yaml:"ratio_warning,omitempty"`
	Error        string     `yaml:"error,omitempty"`
}

// Rectangle is where the portrait landed inside the frame canvas.
type Rectangle struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	W int `yaml:"w"`
	H int `yaml:"h"`
}

// FromPipeline converts a run report. Paths are reduced to base names.
func FromPipeline(r *pipeline.Report) *Document {
	doc := &Document{
		Version: FormatVersion,
		Summary: Summary{
			Inputs:          r.Inputs,
			Composed:        r.Composed,
			Skipped:         r.Skipped,
			Failed:          r.Failed,
			Encoded:         r.Encoded,
			NothingComposed: r.NothingComposed,
			ElapsedSeconds:  r.Elapsed.Seconds(),
		},
		Files: make([]Entry, 0, len(r.Files)),
	}

	for _, f := range r.Files {
		e := Entry{
			Input:  filepath.Base(f.Input),
			Frame:  f.Frame,
			Status: string(f.Status),
		}
		if f.Output != "" {
			e.Output = filepath.Base(f.Output)
		}
		if f.Err != nil {
			e.Error = f.Err.Error()
		}
		if f.Status == pipeline.StatusComposed || f.Status == pipeline.StatusEncoded || f.Status == pipeline.StatusEncodeFailed {
			rect := f.Placement.Rect()
			e.Scale = f.Placement.Scale
			e.Placement = &Rectangle{X: rect.Min.X, Y: rect.Min.Y, W: rect.Dx(), H: rect.Dy()}
			e.Ratio = f.Ratio
			e.RatioWarning = f.RatioWarning
		}
		doc.Files = append(doc.Files, e)
	}
	return doc
}

// Write writes a document to a YAML file.
func Write(doc *Document, path string) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Read reads a document from a YAML file.
func Read(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	return &doc, nil
}
