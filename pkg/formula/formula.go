// SPDX-License-Identifier: MPL-2.0

package formula

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kegbrew/kegbrew/pkg/platform"
	"github.com/kegbrew/kegbrew/pkg/types"
)

// HeadVersion is the keg version used for builds from a head reference.
const HeadVersion = "HEAD"

const (
	// KindRun dependencies are needed at run time and propagate to consumers.
	KindRun DependencyKind = "run"
	// KindBuild dependencies are needed only while building from source.
	KindBuild DependencyKind = "build"
	// KindTest dependencies are needed only by the smoke test.
	KindTest DependencyKind = "test"
)

const (
	// CellarAny marks a relocatable bottle whose baked-in paths are rewritten on pour.
	CellarAny Cellar = "any"
	// CellarAnySkipRelocation marks a bottle with no baked-in paths at all.
	CellarAnySkipRelocation Cellar = "any_skip_relocation"
)

var (
	// ErrInvalidName is the sentinel error wrapped by InvalidNameError.
	ErrInvalidName = errors.New("invalid formula name")

	nameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9+_.@-]*$`)
)

type (
	// Name is a formula name, unique within a catalog.
	Name string

	// InvalidNameError is returned when a Name does not match the allowed pattern.
	InvalidNameError struct {
		Value Name
	}

	// DependencyKind is one of run, build or test.
	DependencyKind string

	// Cellar records where a bottle was built to live: CellarAny,
	// CellarAnySkipRelocation or the absolute cellar path it was built for.
	Cellar string

	// Formula is one package definition.
	Formula struct {
		Name      Name                  `json:"name"`
		Desc      types.DescriptionText `json:"desc,omitempty"`
		Homepage  string                `json:"homepage,omitempty"`
		Version   string                `json:"version,omitempty"`
		URL       string                `json:"url,omitempty"`
		SHA256    types.Digest          `json:"sha256,omitempty"`
		Head      *Head                 `json:"head,omitempty"`
		License   *License              `json:"license,omitempty"`
		Requires  []platform.Predicate  `json:"requires,omitempty"`
		DependsOn []Dependency          `json:"depends_on,omitempty"`
		Bottle    *Bottle               `json:"bottle,omitempty"`
		FailsWith []FailsWith           `json:"fails_with,omitempty"`
		Install   []Step                `json:"install,omitempty"`
		Test      *TestProcedure        `json:"test,omitempty"`
		Caveats   []Caveat              `json:"caveats,omitempty"`
		Service   *Service              `json:"service,omitempty"`
		FilePath  string                `json:"-"`
	}

	// Head is a movable source reference tracking a development branch.
	Head struct {
		URL    string `json:"url"`
		Branch string `json:"branch,omitempty"`
	}

	// Dependency is one edge of the dependency graph. System dependencies
	// name packages provided by the host and are never looked up in the catalog.
	Dependency struct {
		Name   Name                `json:"name"`
		Kind   DependencyKind      `json:"kind"`
		When   *platform.Predicate `json:"when,omitempty"`
		System bool                `json:"system,omitempty"`
	}

	// Bottle lists the prebuilt artifacts of a formula.
	Bottle struct {
		Rebuild int          `json:"rebuild"`
		RootURL string       `json:"root_url,omitempty"`
		Files   []BottleFile `json:"files"`
	}

	// BottleFile is one prebuilt artifact keyed by a platform tag.
	BottleFile struct {
		Tag    string       `json:"tag"`
		Cellar Cellar       `json:"cellar"`
		SHA256 types.Digest `json:"sha256"`
		URL    string       `json:"url,omitempty"`
	}

	// FailsWith declares a compiler the source build is known to break with.
	// An empty Version covers every release of the family.
	FailsWith struct {
		Compiler platform.CompilerFamily `json:"compiler"`
		Version  string                  `json:"version,omitempty"`
		Cause    string                  `json:"cause"`
	}

	// Caveat is a note shown after installation on matching platforms.
	Caveat struct {
		Text string              `json:"text"`
		When *platform.Predicate `json:"when,omitempty"`
	}

	// TestProcedure is the post-install smoke test.
	TestProcedure struct {
		Resources []Resource    `json:"resources,omitempty"`
		Commands  []TestCommand `json:"commands"`
	}

	// Resource is a test fixture fetched before the smoke test runs.
	Resource struct {
		Name    string       `json:"name"`
		URL     string       `json:"url"`
		SHA256  types.Digest `json:"sha256"`
		StageAs string       `json:"stage_as,omitempty"`
	}

	// TestCommand runs one shell command. Expect is a regular expression
	// matched against the combined output.
	TestCommand struct {
		Run      string         `json:"run"`
		Expect   string         `json:"expect,omitempty"`
		ExitCode types.ExitCode `json:"exit_code"`
		Creates  string         `json:"creates,omitempty"`
	}
)

// Error implements the error interface.
func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid formula name %q (must match %s)", string(e.Value), nameRe.String())
}

// Unwrap returns ErrInvalidName for errors.Is() compatibility.
func (e *InvalidNameError) Unwrap() error { return ErrInvalidName }

// IsValid returns whether the Name matches the formula name pattern.
func (n Name) IsValid() (bool, []error) {
	if !nameRe.MatchString(string(n)) {
		return false, []error{&InvalidNameError{Value: n}}
	}
	return true, nil
}

func (n Name) String() string { return string(n) }

// IsValid returns whether the kind is run, build or test.
func (k DependencyKind) IsValid() bool {
	switch k {
	case KindRun, KindBuild, KindTest:
		return true
	default:
		return false
	}
}

// IsRelocatable reports whether the bottle can be poured into any cellar.
func (c Cellar) IsRelocatable() bool {
	return c == CellarAny || c == CellarAnySkipRelocation
}

// NeedsRewrite reports whether the bottle carries placeholder paths that
// must be rewritten when poured.
func (c Cellar) NeedsRewrite() bool { return c == CellarAny }

// IsValid returns whether c is a relocation marker or an absolute path.
func (c Cellar) IsValid() bool {
	return c.IsRelocatable() || filepath.IsAbs(string(c))
}

// IsHeadOnly reports whether the formula has no stable source.
func (f *Formula) IsHeadOnly() bool { return f.URL == "" }

// KegVersion is the version directory a build lands in.
func (f *Formula) KegVersion(head bool) string {
	if head || f.Version == "" {
		return HeadVersion
	}
	return f.Version
}

// SupportedOn reports whether every platform requirement matches fp.
// The returned predicate is the first requirement that failed.
func (f *Formula) SupportedOn(fp platform.Fingerprint) (bool, *platform.Predicate) {
	for i := range f.Requires {
		if !f.Requires[i].Matches(fp) {
			return false, &f.Requires[i]
		}
	}
	return true, nil
}

// DependenciesFor returns the declarations whose predicate matches fp, in
// declaration order.
func (f *Formula) DependenciesFor(fp platform.Fingerprint) []Dependency {
	var out []Dependency
	for _, d := range f.DependsOn {
		if d.When.Matches(fp) {
			out = append(out, d)
		}
	}
	return out
}

// StepsFor returns a fresh copy of the install steps whose predicate matches fp.
func (f *Formula) StepsFor(fp platform.Fingerprint) []Step {
	var out []Step
	for _, s := range f.Install {
		if s.When.Matches(fp) {
			out = append(out, s.clone())
		}
	}
	return out
}

// CaveatsFor joins the caveat fragments that apply to fp.
func (f *Formula) CaveatsFor(fp platform.Fingerprint) string {
	var parts []string
	for _, c := range f.Caveats {
		if c.When.Matches(fp) {
			parts = append(parts, strings.TrimSpace(c.Text))
		}
	}
	return strings.Join(parts, "\n\n")
}

// HasBottles reports whether any bottle file is declared.
func (f *Formula) HasBottles() bool {
	return f.Bottle != nil && len(f.Bottle.Files) > 0
}
