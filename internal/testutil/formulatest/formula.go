// SPDX-License-Identifier: MPL-2.0

package formulatest

import (
	"github.com/kegbrew/kegbrew/internal/catalog"
	"github.com/kegbrew/kegbrew/pkg/formula"
	"github.com/kegbrew/kegbrew/pkg/platform"
	"github.com/kegbrew/kegbrew/pkg/types"
)

// Fingerprints used across test suites.
var (
	LinuxX86 = platform.Fingerprint{
		OS: platform.OSLinux, OSVersion: "ubuntu-22.04", Arch: platform.ArchX86_64,
		Compiler: platform.Compiler{Family: platform.CompilerGCC, Version: "11.4.0"},
	}
	SonomaARM = platform.Fingerprint{
		OS: platform.OSMacOS, OSVersion: "sonoma", Arch: platform.ArchARM64,
		Compiler: platform.Compiler{Family: platform.CompilerClang, Version: "1500.3.9"},
	}
)

// Option configures a test formula.
type Option func(*formula.Formula)

// New returns a formula named name at version 1.0 with no source, no
// dependencies and no steps.
//
// Usage:
//
//	f := formulatest.New("hello")
//	f := formulatest.New("app",
//	    formulatest.WithDeps(formulatest.Run("lib"), formulatest.Build("cmake")),
//	    formulatest.WithSteps(formulatest.Compile("make", "install")),
//	)
func New(name string, opts ...Option) *formula.Formula {
	f := &formula.Formula{
		Name:    formula.Name(name),
		Desc:    types.DescriptionText("Test formula " + name),
		Version: "1.0",
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Catalog builds a catalog, panicking on duplicates.
func Catalog(formulas ...*formula.Formula) *catalog.Catalog {
	return catalog.MustNew(formulas...)
}

// --- Formula Options ---

// WithVersion sets the stable version.
func WithVersion(v string) Option {
	return func(f *formula.Formula) { f.Version = v }
}

// WithSource sets the stable source URL and its digest.
func WithSource(url string, sha types.Digest) Option {
	return func(f *formula.Formula) {
		f.URL = url
		f.SHA256 = sha
	}
}

// WithHead sets the head reference.
func WithHead(url, branch string) Option {
	return func(f *formula.Formula) { f.Head = &formula.Head{URL: url, Branch: branch} }
}

// WithDeps appends dependency declarations.
func WithDeps(deps ...formula.Dependency) Option {
	return func(f *formula.Formula) { f.DependsOn = append(f.DependsOn, deps...) }
}

// WithRequires appends platform requirements.
func WithRequires(preds ...platform.Predicate) Option {
	return func(f *formula.Formula) { f.Requires = append(f.Requires, preds...) }
}

// WithBottles sets the bottle files, with an optional root URL.
func WithBottles(rootURL string, files ...formula.BottleFile) Option {
	return func(f *formula.Formula) { f.Bottle = &formula.Bottle{RootURL: rootURL, Files: files} }
}

// WithFailsWith appends fails_with rules.
func WithFailsWith(rules ...formula.FailsWith) Option {
	return func(f *formula.Formula) { f.FailsWith = append(f.FailsWith, rules...) }
}

// WithSteps appends install steps.
func WithSteps(steps ...formula.Step) Option {
	return func(f *formula.Formula) { f.Install = append(f.Install, steps...) }
}

// WithTest sets the smoke test commands.
func WithTest(cmds ...formula.TestCommand) Option {
	return func(f *formula.Formula) {
		if f.Test == nil {
			f.Test = &formula.TestProcedure{}
		}
		f.Test.Commands = append(f.Test.Commands, cmds...)
	}
}

// WithResources appends smoke test fixtures.
func WithResources(res ...formula.Resource) Option {
	return func(f *formula.Formula) {
		if f.Test == nil {
			f.Test = &formula.TestProcedure{}
		}
		f.Test.Resources = append(f.Test.Resources, res...)
	}
}

// WithCaveats appends caveats.
func WithCaveats(caveats ...formula.Caveat) Option {
	return func(f *formula.Formula) { f.Caveats = append(f.Caveats, caveats...) }
}

// WithLicense sets the license.
func WithLicense(l formula.License) Option {
	return func(f *formula.Formula) { f.License = &l }
}

// --- Dependency and Step Helpers ---

// Run is a run-time dependency on name.
func Run(name string) formula.Dependency {
	return formula.Dependency{Name: formula.Name(name), Kind: formula.KindRun}
}

// Build is a build-time dependency on name.
func Build(name string) formula.Dependency {
	return formula.Dependency{Name: formula.Name(name), Kind: formula.KindBuild}
}

// Test is a test-only dependency on name.
func Test(name string) formula.Dependency {
	return formula.Dependency{Name: formula.Name(name), Kind: formula.KindTest}
}

// When restricts d to fingerprints matching p.
func When(d formula.Dependency, p platform.Predicate) formula.Dependency {
	d.When = &p
	return d
}

// Compile is a compile step running tool with args.
func Compile(tool string, args ...string) formula.Step {
	return formula.Step{Action: formula.ActionCompile, Tool: tool, Args: args}
}

// Configure is a configure step running tool with args.
func Configure(tool string, args ...string) formula.Step {
	return formula.Step{Action: formula.ActionConfigure, Tool: tool, Args: args}
}

// Install copies files matching from into the keg directory to.
func Install(from, to string) formula.Step {
	return formula.Step{Action: formula.ActionInstallFiles, From: from, To: to}
}
