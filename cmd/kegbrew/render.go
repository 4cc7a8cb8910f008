// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/kegbrew/kegbrew/internal/engine"
	"github.com/kegbrew/kegbrew/internal/issue"
)

var kindIssues = map[engine.Kind]issue.Id{
	engine.KindGraphCycle:            issue.DependencyCycleId,
	engine.KindUnresolvedDependency:  issue.FormulaNotFoundId,
	engine.KindUnsupportedPlatform:   issue.UnsupportedPlatformId,
	engine.KindToolchainIncompatible: issue.ToolchainIncompatibleId,
	engine.KindPrefixMismatch:        issue.PrefixMismatchId,
	engine.KindStepFailed:            issue.StepFailedId,
	engine.KindFetchError:            issue.FetchFailedId,
	engine.KindVerificationFailed:    issue.VerificationFailedId,
	engine.KindCancellationRequested: issue.InstallCanceledId,
}

// issueFor returns the remediation page for a failure, or 0.
func issueFor(kind engine.Kind, err error) issue.Id {
	if id, ok := kindIssues[kind]; ok {
		return id
	}
	if err != nil && errors.Is(err, fs.ErrPermission) {
		return issue.PermissionDeniedId
	}
	return 0
}

// glamourStyle picks a colored style for terminals and plain text otherwise.
func glamourStyle(w io.Writer) string {
	f, ok := w.(*os.File)
	if !ok {
		return "notty"
	}
	info, err := f.Stat()
	if err != nil || info.Mode()&os.ModeCharDevice == 0 {
		return "notty"
	}
	return "dark"
}

func (a *App) renderIssue(id issue.Id) {
	page := issue.Get(id)
	if page == nil {
		return
	}
	out, err := page.Render(glamourStyle(a.stderr))
	if err != nil {
		out = page.Markdown()
	}
	fmt.Fprint(a.stderr, out)
}

func (a *App) renderMarkdown(w io.Writer, md string) {
	out, err := glamour.Render(md, glamourStyle(w))
	if err != nil {
		out = md + "\n"
	}
	fmt.Fprint(w, out)
}

// fail reports err on stderr and returns the exit error for cmd. Errors
// that already went through fail are returned unchanged.
func (a *App) fail(cmd *cobra.Command, err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	var actionable *issue.ActionableError
	if errors.As(err, &actionable) {
		fmt.Fprintln(a.stderr, ErrorStyle.Render("Error: ")+actionable.Format(a.flags.verbose))
		a.renderIssue(actionable.Issue)
		return &ExitError{Code: 1, Err: err}
	}

	kind := engine.Classify(err)
	fmt.Fprintln(a.stderr, ErrorStyle.Render("Error: ")+err.Error())
	a.renderIssue(issueFor(kind, err))
	return &ExitError{Code: 1, Err: err}
}

// failResult reports a failed engine result.
func (a *App) failResult(cmd *cobra.Command, res *engine.Result) error {
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	f := res.Failure
	if f == nil {
		f = &engine.Failure{Kind: engine.KindInternal, Detail: "unknown failure"}
	}
	fmt.Fprintf(a.stderr, "%s %s %s (%s)\n", ErrorStyle.Render("Error:"), res.Formula, strings.ReplaceAll(string(f.Kind), "_", " "), f.Kind)
	fmt.Fprintln(a.stderr, "  "+f.Detail)
	if a.flags.verbose && f.Err != nil {
		depth := 1
		for err := f.Err; err != nil; err = errors.Unwrap(err) {
			fmt.Fprintf(a.stderr, "  %d. %s\n", depth, err.Error())
			depth++
		}
	}
	a.renderIssue(issueFor(f.Kind, f.Err))
	return &ExitError{Code: 1, Err: f.Err}
}
