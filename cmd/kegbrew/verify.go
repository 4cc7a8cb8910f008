// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kegbrew/kegbrew/internal/issue"
	"github.com/kegbrew/kegbrew/internal/keg"
	"github.com/kegbrew/kegbrew/pkg/formula"
)

func newVerifyCommand(app *App) *cobra.Command {
	var head bool
	c := &cobra.Command{
		Use:   "verify <formula>",
		Short: "Run the smoke test of an installed formula",
		Long: `Run the test block of an installed formula in a scratch directory
and record the outcome in its install receipt.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runVerify(cmd, formula.Name(args[0]), head)
		},
	}
	c.Flags().BoolVar(&head, "HEAD", false, "verify the head keg")
	return c
}

func (a *App) runVerify(cmd *cobra.Command, name formula.Name, head bool) error {
	ctx := cmd.Context()
	s, err := a.newSession(ctx)
	if err != nil {
		return a.fail(cmd, err)
	}
	defer s.close()

	res, err := s.engine.Verify(ctx, name, head)
	if errors.Is(err, keg.ErrNotInstalled) {
		return a.fail(cmd, issue.NewErrorContext().
			WithOperation("verify formula").
			WithResource(string(name)).
			WithSuggestion(fmt.Sprintf("Run 'kegbrew install %s' first", name)).
			Wrap(err).
			BuildError())
	}
	if err != nil {
		return a.failResult(cmd, res)
	}

	out := cmd.OutOrStdout()
	if res.Verification == keg.VerificationNotRun {
		fmt.Fprintf(out, "%s %s %s has no test\n", TitleStyle.Render("==>"), NameStyle.Render(string(name)), res.Version)
		return nil
	}
	fmt.Fprintf(out, "%s %s %s verification %s\n", TitleStyle.Render("==>"), NameStyle.Render(string(name)), res.Version, SuccessStyle.Render(string(res.Verification)))
	return nil
}
