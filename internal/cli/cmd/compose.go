package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/ivlev/framecomp/internal/config"
	"github.com/ivlev/framecomp/internal/frame"
	"github.com/ivlev/framecomp/internal/logging"
	"github.com/ivlev/framecomp/internal/matcher"
	"github.com/ivlev/framecomp/internal/pipeline"
	runreport "github.com/ivlev/framecomp/internal/report"
	"github.com/ivlev/framecomp/internal/webp"
)

// ComposeCommand returns the compose command, the default action.
//
// Exit codes:
//   - 0: at least one image composed
//   - 1: setup failure (config, missing input dir, empty frame catalog)
//   - 2: nothing composed
func ComposeCommand() *cli.Command {
	flags := append(composeFlags(), &cli.StringFlag{
		Name:  "report",
		Usage: "Write a YAML record of the run to this path",
	})
	return &cli.Command{
		Name:   "compose",
		Usage:  "Fit every input portrait into its frame and write WebP output",
		Flags:  flags,
		Action: composeAction,
	}
}

func composeAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	defer logger.Sync()

	p, err := buildPipeline(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(c.Context)
	defer stop()

	report, err := p.Run(ctx)
	if err != nil {
		if errors.Is(err, pipeline.ErrInputDirMissing) {
			return cli.Exit(err.Error(), exitSetup)
		}
		return err
	}

	if path := c.String("report"); path != "" {
		if err := runreport.Write(runreport.FromPipeline(report), path); err != nil {
			logger.Warn("report not written", map[string]any{"path": path, "error": err})
		}
	}

	if report.NothingComposed {
		return cli.Exit("no images were composed; input filenames must start with a frame name", exitNothingComposed)
	}

	logger.Info("batch finished", map[string]any{
		"composed": report.Composed,
		"skipped":  report.Skipped,
		"failed":   report.Failed,
		"encoded":  report.Encoded,
		"elapsed":  report.Elapsed.String(),
	})
	fmt.Fprintf(c.App.Writer, "composed %d image(s), output: %s\n", report.Composed, cfg.OutputDir)
	return nil
}

// buildPipeline loads the frame catalog, the matcher and the encoder.
func buildPipeline(cfg *config.Config, logger *logging.Logger) (*pipeline.Pipeline, error) {
	cat, err := frame.BuildWith(cfg.FrameDir, cfg.FrameCalibration(), logger)
	if err != nil {
		if errors.Is(err, frame.ErrCatalogEmpty) {
			return nil, cli.Exit(err.Error(), exitSetup)
		}
		return nil, err
	}
	logger.Info("frames loaded", map[string]any{"dir": cfg.FrameDir, "count": cat.Len()})

	var m matcher.Matcher = matcher.Prefix{}
	if cfg.Manifest != "" {
		manifest, err := matcher.LoadManifest(cfg.Manifest)
		if err != nil {
			return nil, cli.Exit(err.Error(), exitSetup)
		}
		m = manifest
	}

	conv, err := webp.NewConverter(cfg.WebPOptions())
	if err != nil {
		return nil, cli.Exit(err.Error(), exitSetup)
	}

	return pipeline.New(cfg, cat, m, conv, logger), nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
