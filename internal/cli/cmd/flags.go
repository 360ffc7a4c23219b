// Package cmd provides the commands of the framecomp binary.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/ivlev/framecomp/internal/config"
	"github.com/ivlev/framecomp/internal/logging"
)

// Exit codes.
const (
	exitSetup           = 1
	exitNothingComposed = 2
)

// defaultConfigFile is read when present and --config is not given.
const defaultConfigFile = "framecomp.yaml"

// Shared flags for every command.
var (
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "YAML config file (default: ./framecomp.yaml when present)",
	}

	EnvFileFlag = &cli.StringFlag{
		Name:  "env-file",
		Usage: "Load environment variables from this file before reading config",
		Value: ".env",
	}

	LogFormatFlag = &cli.StringFlag{
		Name:  "log-format",
		Usage: "Log format: console, json",
		Value: string(logging.FormatConsole),
	}

	DebugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Enable debug logging",
	}
)

// CommonFlags returns the flags shared by all commands.
func CommonFlags() []cli.Flag {
	return []cli.Flag{ConfigFlag, EnvFileFlag, LogFormatFlag, DebugFlag}
}

// layoutFlags override directory settings from the config file.
func layoutFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "Input directory"},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output directory"},
		&cli.StringFlag{Name: "frames", Usage: "Frame asset directory"},
		&cli.StringFlag{Name: "temp-dir", Usage: "Intermediate PNG directory (default: <output>/_framed_png)"},
		&cli.StringFlag{Name: "manifest", Usage: "YAML file mapping input stems to frame names"},
	}
}

// tuningFlags override composition and encoding settings.
func tuningFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "Parallel workers (0 = auto)"},
		&cli.IntFlag{Name: "width", Usage: "WebP output width"},
		&cli.IntFlag{Name: "quality", Aliases: []string{"q"}, Usage: "WebP quality 0-100"},
		&cli.Float64Flag{Name: "content-scale", Usage: "Multiplier applied to the fit scale"},
	}
}

func composeFlags() []cli.Flag {
	flags := CommonFlags()
	flags = append(flags, layoutFlags()...)
	return append(flags, tuningFlags()...)
}

// loadConfig resolves the effective configuration: .env, then the YAML file,
// then explicit flags.
func loadConfig(c *cli.Context) (*config.Config, error) {
	if err := config.LoadDotEnv(c.String("env-file")); err != nil {
		return nil, cli.Exit(fmt.Sprintf("env file: %v", err), exitSetup)
	}

	cfg := config.Default()
	path := c.String("config")
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, cli.Exit(err.Error(), exitSetup)
		}
		cfg = loaded
	}

	applyFlags(c, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, cli.Exit(fmt.Sprintf("invalid config: %v", err), exitSetup)
	}
	return cfg, nil
}

func applyFlags(c *cli.Context, cfg *config.Config) {
	strs := map[string]*string{
		"input":    &cfg.InputDir,
		"output":   &cfg.OutputDir,
		"frames":   &cfg.FrameDir,
		"temp-dir": &cfg.TempDir,
		"manifest": &cfg.Manifest,
	}
	for name, dst := range strs {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}

	ints := map[string]*int{
		"workers": &cfg.Workers,
		"width":   &cfg.TargetWidth,
		"quality": &cfg.Quality,
	}
	for name, dst := range ints {
		if c.IsSet(name) {
			*dst = c.Int(name)
		}
	}

	if c.IsSet("content-scale") {
		cfg.ContentScaleRatio = c.Float64("content-scale")
	}
}

func newLogger(c *cli.Context) (*logging.Logger, error) {
	format := logging.Format(c.String("log-format"))
	switch format {
	case logging.FormatConsole, logging.FormatJSON:
	default:
		return nil, cli.Exit(fmt.Sprintf("invalid --log-format %q: use console or json", format), exitSetup)
	}
	return logging.New(c.App.ErrWriter, format, c.Bool("debug")), nil
}

// requireFlags fails with exitSetup when a required flag is empty.
func requireFlags(c *cli.Context, names ...string) error {
	var errs []error
	for _, name := range names {
		if c.String(name) == "" {
			errs = append(errs, fmt.Errorf("--%s is required", name))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return cli.Exit(err.Error(), exitSetup)
	}
	return nil
}
