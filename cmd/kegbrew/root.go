// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the kegbrew command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "kegbrew",
		Short: "Resolve, build and install formulas",
		Long: TitleStyle.Render("kegbrew") + SubtitleStyle.Render(" - resolve, build and install formulas") + `

kegbrew reads formula definitions written in CUE, resolves their
dependencies for the current platform, pours a prebuilt bottle when
one matches and builds from source otherwise.

` + SubtitleStyle.Render("Examples:") + `
  kegbrew install hello          Install hello and its dependencies
  kegbrew install -s hello       Build hello from source
  kegbrew plan hello             Show what an install would do
  kegbrew verify hello           Run the smoke test of an installed formula
  kegbrew fingerprint            Show the detected platform`,
		SilenceUsage: true,
	}
	root.SetOut(app.stdout)
	root.SetErr(app.stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&app.flags.configFile, "config", "", "config file (default is $XDG_CONFIG_HOME/kegbrew/config.cue)")
	pf.BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable debug logging and detailed errors")
	pf.StringVar(&app.flags.prefix, "prefix", "", "install prefix")
	pf.StringArrayVar(&app.flags.formulaDirs, "formula-dir", nil, "directory to load formulas from (repeatable)")
	pf.StringVar(&app.flags.platform.os, "os", "", "target OS family (macos, linux)")
	pf.StringVar(&app.flags.platform.arch, "arch", "", "target architecture (arm64, x86_64)")
	pf.StringVar(&app.flags.platform.osVersion, "os-version", "", "target OS version (sonoma, ubuntu-22.04)")
	pf.StringVar(&app.flags.platform.compiler, "compiler", "", "compiler family (clang, gcc)")
	pf.StringVar(&app.flags.platform.compilerVersion, "compiler-version", "", "compiler version")

	root.AddCommand(
		newInstallCommand(app),
		newPlanCommand(app),
		newInfoCommand(app),
		newVerifyCommand(app),
		newFingerprintCommand(app),
		newConfigCommand(app),
	)
	return root
}

func versionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI against the process environment and exits.
func Execute() {
	root := NewRootCommand(NewApp(Dependencies{}))
	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(versionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(1)
	}
}
