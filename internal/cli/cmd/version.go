package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// Version is the release version of framecomp.
const Version = "0.3.0"

// VersionCommand prints the version and build commit.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			fmt.Fprintf(c.App.Writer, "framecomp %s (commit: %s)\n", Version, commit)
			return nil
		},
	}
}

// App assembles the command tree. compose runs when no command is given.
func App(commit string) *cli.App {
	return &cli.App{
		Name:           "framecomp",
		Usage:          "Compose portraits into decorative frames and publish them as WebP",
		Version:        fmt.Sprintf("%s (commit: %s)", Version, commit),
		DefaultCommand: "compose",
		Commands: []*cli.Command{
			ComposeCommand(),
			TrimCommand(),
			OptimizeCommand(),
			WatchCommand(),
			CalibrateCommand(),
			VersionCommand(commit),
		},
	}
}
