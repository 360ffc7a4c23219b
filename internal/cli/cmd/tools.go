package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/framecomp/internal/calibrate"
	"github.com/ivlev/framecomp/internal/frame"
	"github.com/ivlev/framecomp/internal/trim"
	"github.com/ivlev/framecomp/internal/watch"
	"github.com/ivlev/framecomp/internal/webp"
)

func srcDstFlags() []cli.Flag {
	flags := CommonFlags()
	return append(flags,
		&cli.StringFlag{Name: "src", Usage: "Source directory"},
		&cli.StringFlag{Name: "dst", Usage: "Destination directory"},
	)
}

// TrimCommand crops frame PNGs to their visible content.
func TrimCommand() *cli.Command {
	return &cli.Command{
		Name:   "trim",
		Usage:  "Crop PNG frame assets to the bounds of non-transparent pixels",
		Flags:  srcDstFlags(),
		Action: trimAction,
	}
}

func trimAction(c *cli.Context) error {
	if err := requireFlags(c, "src", "dst"); err != nil {
		return err
	}
	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signalContext(c.Context)
	defer stop()

	n, err := trim.Dir(ctx, c.String("src"), c.String("dst"), logger)
	if err != nil {
		return cli.Exit(err.Error(), exitSetup)
	}
	fmt.Fprintf(c.App.Writer, "trimmed %d image(s) into %s\n", n, c.String("dst"))
	return nil
}

// OptimizeCommand converts a directory tree of images to WebP.
func OptimizeCommand() *cli.Command {
	flags := append(srcDstFlags(), tuningFlags()...)
	return &cli.Command{
		Name:   "optimize",
		Usage:  "Convert every image under --src to WebP under --dst, keeping the tree",
		Flags:  flags,
		Action: optimizeAction,
	}
}

func optimizeAction(c *cli.Context) error {
	if err := requireFlags(c, "src", "dst"); err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	defer logger.Sync()

	conv, err := webp.NewConverter(cfg.WebPOptions())
	if err != nil {
		return cli.Exit(err.Error(), exitSetup)
	}

	ctx, stop := signalContext(c.Context)
	defer stop()

	n, err := webp.ConvertTree(ctx, conv, c.String("src"), c.String("dst"), logger)
	if err != nil {
		return cli.Exit(err.Error(), exitSetup)
	}
	fmt.Fprintf(c.App.Writer, "converted %d image(s) into %s\n", n, c.String("dst"))
	return nil
}

// WatchCommand composes new inputs as they appear until interrupted.
func WatchCommand() *cli.Command {
	flags := append(composeFlags(), &cli.BoolFlag{
		Name:  "initial",
		Usage: "Compose the existing input directory before watching",
	})
	return &cli.Command{
		Name:   "watch",
		Usage:  "Watch the input directory and compose files as they arrive",
		Flags:  flags,
		Action: watchAction,
	}
}

func watchAction(c *cli.Context) error {
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

	if c.Bool("initial") {
		if _, err := p.Run(ctx); err != nil {
			return cli.Exit(err.Error(), exitSetup)
		}
	}

	if err := watch.New(cfg.InputDir, p, logger).Run(ctx); err != nil {
		return cli.Exit(err.Error(), exitSetup)
	}
	return nil
}

// CalibrateCommand measures the transparent window of a frame asset.
func CalibrateCommand() *cli.Command {
	flags := append(CommonFlags(), &cli.StringFlag{
		Name:     "frame",
		Usage:    "Frame PNG to measure",
		Required: true,
	})
	return &cli.Command{
		Name:   "calibrate",
		Usage:  "Measure a frame's transparent window and print matching calibration ratios",
		Flags:  flags,
		Action: calibrateAction,
	}
}

func calibrateAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	m, err := calibrate.NewDetector().Measure(c.String("frame"), cfg.FrameCalibration())
	if err != nil {
		return cli.Exit(err.Error(), exitSetup)
	}

	fmt.Fprintf(c.App.Writer, "size:     %dx%d\n", m.Size.X, m.Size.Y)
	fmt.Fprintf(c.App.Writer, "measured: (%d, %d, %d, %d)\n", m.Interior.Min.X, m.Interior.Min.Y, m.Interior.Max.X, m.Interior.Max.Y)
	fmt.Fprintf(c.App.Writer, "derived:  %s\n", m.Derived)

	out, err := yaml.Marshal(struct {
		Calibration frame.Calibration `yaml:"calibration"`
	}{m.Calibration})
	if err != nil {
		return err
	}
	_, err = c.App.Writer.Write(out)
	return err
}
