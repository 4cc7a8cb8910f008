// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kegbrew/kegbrew/internal/resolve"
	"github.com/kegbrew/kegbrew/pkg/formula"
)

func newInfoCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "info <formula>",
		Short: "Show a formula's metadata and install state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runInfo(cmd, formula.Name(args[0]))
		},
	}
}

func (a *App) runInfo(cmd *cobra.Command, name formula.Name) error {
	s, err := a.newSession(cmd.Context())
	if err != nil {
		return a.fail(cmd, err)
	}
	f, ok := s.engine.Catalog().Get(name)
	if !ok {
		return a.fail(cmd, &resolve.UnresolvedDependencyError{Name: name})
	}
	installed, err := s.engine.Layout().InstalledVersions(name)
	if err != nil {
		return a.fail(cmd, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s %s\n", TitleStyle.Render("==>"), NameStyle.Render(string(f.Name)), f.KegVersion(false))
	if f.Desc != "" {
		fmt.Fprintln(out, string(f.Desc))
	}
	if f.Homepage != "" {
		fmt.Fprintln(out, f.Homepage)
	}
	if f.License != nil {
		field(out, "License", f.License.String())
	}
	if f.Head != nil {
		field(out, "Head", f.Head.URL)
	}

	deps := f.DependenciesFor(s.fingerprint)
	if len(deps) > 0 {
		byKind := map[formula.DependencyKind][]string{}
		for _, d := range deps {
			label := string(d.Name)
			if d.System {
				label += " (system)"
			}
			byKind[d.Kind] = append(byKind[d.Kind], label)
		}
		for _, kind := range []formula.DependencyKind{formula.KindRun, formula.KindBuild, formula.KindTest} {
			if names := byKind[kind]; len(names) > 0 {
				field(out, "Depends on ("+string(kind)+")", strings.Join(names, ", "))
			}
		}
	}

	if f.Bottle != nil && len(f.Bottle.Files) > 0 {
		tags := make([]string, len(f.Bottle.Files))
		for i, b := range f.Bottle.Files {
			tags[i] = b.Tag
		}
		field(out, "Bottles", strings.Join(tags, ", "))
	}
	for _, fw := range f.FailsWith {
		rule := string(fw.Compiler)
		if fw.Version != "" {
			rule += " " + fw.Version
		}
		field(out, "Fails with", rule+": "+fw.Cause)
	}

	if f.Service != nil {
		field(out, "Service", f.Service.String()+", not managed by kegbrew")
	}

	if len(installed) == 0 {
		field(out, "Installed", "no")
	} else {
		field(out, "Installed", strings.Join(installed, ", "))
	}

	if caveats := f.CaveatsFor(s.fingerprint); caveats != "" {
		fmt.Fprintln(out, TitleStyle.Render("==>")+" Caveats")
		a.renderMarkdown(out, caveats)
	}
	return nil
}

func field(w io.Writer, label, value string) {
	fmt.Fprintf(w, "%s %s\n", SubtitleStyle.Render(label+":"), value)
}
