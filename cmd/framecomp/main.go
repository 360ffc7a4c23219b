// Package main provides the framecomp CLI entrypoint.
//
// Usage:
//
//	framecomp [command] [options]
//
// Exit codes for compose:
//   - 0: at least one image composed
//   - 1: setup failure
//   - 2: nothing composed
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/ivlev/framecomp/internal/cli/cmd"
	"github.com/ivlev/framecomp/internal/system"
)

// commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	// Raise the open file limit; workers hold several images at once.
	if _, err := system.InitResourceLimits(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	app := cmd.App(commit)
	app.ExitErrHandler = exitErrHandler

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already exited for cli.ExitCoder errors.
		os.Exit(1)
	}
}

// exitErrHandler preserves exit codes from cli.Exit.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() is "exit status N"; skip those
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
