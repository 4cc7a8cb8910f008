// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kegbrew/kegbrew/internal/config"
	"github.com/kegbrew/kegbrew/internal/engine"
	"github.com/kegbrew/kegbrew/internal/keg"
	"github.com/kegbrew/kegbrew/pkg/formula"
)

type installFlags struct {
	buildFromSource bool
	head            bool
	verify          bool
	includeTest     bool
	jobs            int
}

func newInstallCommand(app *App) *cobra.Command {
	var flags installFlags
	c := &cobra.Command{
		Use:   "install <formula>",
		Short: "Install a formula and its dependencies",
		Long: `Install a formula and its dependencies.

A matching bottle is poured when one exists for the current platform.
Otherwise the formula is built from source, after its fails_with
declarations have been checked against the active compiler.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runInstall(cmd, formula.Name(args[0]), flags)
		},
	}
	c.Flags().BoolVarP(&flags.buildFromSource, "build-from-source", "s", false, "build the formula from source even if a bottle exists")
	c.Flags().BoolVar(&flags.head, "HEAD", false, "build from the head reference")
	c.Flags().BoolVar(&flags.verify, "verify", false, "run the smoke test after installing")
	c.Flags().BoolVar(&flags.includeTest, "include-test", false, "also install test-only dependencies")
	c.Flags().IntVarP(&flags.jobs, "jobs", "j", 0, "number of formulas to install in parallel")
	return c
}

func (a *App) runInstall(cmd *cobra.Command, name formula.Name, flags installFlags) error {
	ctx := cmd.Context()
	s, err := a.newSession(ctx, func(cfg *config.Config) {
		if cmd.Flags().Changed("verify") {
			cfg.Verify = flags.verify
		}
		if flags.jobs > 0 {
			cfg.Jobs = flags.jobs
		}
	})
	if err != nil {
		return a.fail(cmd, err)
	}
	defer s.close()

	req := engine.Request{
		Formula:     name,
		Fingerprint: s.fingerprint,
		Head:        flags.head,
		Verify:      s.cfg.Verify,
		IncludeTest: flags.includeTest,
	}
	if flags.buildFromSource {
		req.Preference = engine.ForceBuild
	}

	res, err := s.engine.Install(ctx, req)
	out := cmd.OutOrStdout()
	for _, dep := range res.Dependencies {
		if dep.Status != engine.StatusFailed {
			printResult(out, dep)
		}
	}
	if err != nil {
		return a.failResult(cmd, res)
	}

	printResult(out, res)
	for _, note := range res.Notes {
		fmt.Fprintln(out, WarningStyle.Render("Note: ")+note)
	}
	if res.Verification != "" && res.Verification != keg.VerificationNotRun {
		fmt.Fprintln(out, TitleStyle.Render("==>")+" Verification "+SuccessStyle.Render(string(res.Verification)))
	}
	if res.Caveats != "" {
		fmt.Fprintln(out, TitleStyle.Render("==>")+" Caveats")
		a.renderMarkdown(out, res.Caveats)
	}
	return nil
}

func printResult(w io.Writer, res *engine.Result) {
	switch res.Status {
	case engine.StatusSkipped:
		fmt.Fprintf(w, "%s %s %s is already installed\n", TitleStyle.Render("==>"), NameStyle.Render(string(res.Formula)), res.Version)
	default:
		fmt.Fprintf(w, "%s Installed %s %s (%s)\n", TitleStyle.Render("==>"), NameStyle.Render(string(res.Formula)), res.Version, res.Path)
		fmt.Fprintln(w, "    "+SubtitleStyle.Render(res.KegPath))
	}
}
