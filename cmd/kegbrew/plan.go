// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kegbrew/kegbrew/internal/engine"
	"github.com/kegbrew/kegbrew/pkg/formula"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

// errUnknownOutput rejects an unsupported --output value.
var errUnknownOutput = fmt.Errorf("--output must be one of %s, %s, %s", outputText, outputJSON, outputYAML)

func newPlanCommand(app *App) *cobra.Command {
	var (
		flags  installFlags
		output string
	)
	c := &cobra.Command{
		Use:   "plan <formula>",
		Short: "Show what installing a formula would do",
		Long: `Resolve a formula for the current platform and print the install
plan without fetching or building anything.

Each entry shows whether the formula would be poured from a bottle or
built from source. Source builds in the plan have already passed the
compiler checks.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runPlan(cmd, formula.Name(args[0]), flags, output)
		},
	}
	c.Flags().BoolVarP(&flags.buildFromSource, "build-from-source", "s", false, "plan a source build even if a bottle exists")
	c.Flags().BoolVar(&flags.head, "HEAD", false, "plan a build from the head reference")
	c.Flags().BoolVar(&flags.includeTest, "include-test", false, "include test-only dependencies")
	c.Flags().StringVarP(&output, "output", "o", outputText, "output format (text, json, yaml)")
	return c
}

func (a *App) runPlan(cmd *cobra.Command, name formula.Name, flags installFlags, output string) error {
	switch output {
	case outputText, outputJSON, outputYAML:
	default:
		return a.fail(cmd, errUnknownOutput)
	}

	ctx := cmd.Context()
	s, err := a.newSession(ctx)
	if err != nil {
		return a.fail(cmd, err)
	}

	req := engine.Request{
		Formula:     name,
		Fingerprint: s.fingerprint,
		Head:        flags.head,
		IncludeTest: flags.includeTest,
	}
	if flags.buildFromSource {
		req.Preference = engine.ForceBuild
	}
	plan, err := s.engine.Plan(ctx, req)
	if err != nil {
		return a.fail(cmd, err)
	}

	out := cmd.OutOrStdout()
	switch output {
	case outputJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		err = enc.Encode(plan)
	case outputYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		err = enc.Encode(plan)
		if err == nil {
			err = enc.Close()
		}
	default:
		printPlan(out, plan)
	}
	if err != nil {
		return a.fail(cmd, err)
	}
	return nil
}

func printPlan(w io.Writer, p *engine.Plan) {
	fmt.Fprintf(w, "%s Plan for %s on %s\n", TitleStyle.Render("==>"), NameStyle.Render(string(p.Root)), p.Fingerprint)
	for i, n := range p.Nodes {
		state := string(n.Path)
		if n.Installed {
			state = "installed"
		} else if n.BottleTag != "" {
			state += " " + n.BottleTag
		}
		fmt.Fprintf(w, "  %d. %s %s %s\n", i+1, NameStyle.Render(string(n.Name)), n.Version, SubtitleStyle.Render("("+state+")"))
		if n.Installed {
			continue
		}
		for _, step := range n.Steps {
			fmt.Fprintln(w, "       "+step)
		}
		for _, note := range n.Notes {
			fmt.Fprintln(w, "       "+WarningStyle.Render("note: ")+note)
		}
	}
	if len(p.Runtime) > 0 {
		names := make([]string, len(p.Runtime))
		for i, n := range p.Runtime {
			names[i] = string(n)
		}
		fmt.Fprintln(w, "Runtime dependencies: "+strings.Join(names, ", "))
	}
	if len(p.System) > 0 {
		fmt.Fprintln(w, "Provided by the system: "+strings.Join(p.System, ", "))
	}
}
