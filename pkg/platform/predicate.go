// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kegbrew/kegbrew/internal/semver"
)

// ErrInvalidPredicate is the sentinel error wrapped by InvalidPredicateError.
var ErrInvalidPredicate = errors.New("invalid platform predicate")

type (
	// Predicate is a conjunction of platform conditions. Absent fields do not
	// constrain; the zero Predicate matches every fingerprint.
	//
	// OSVersion accepts a release ("sonoma", "14") optionally prefixed by a
	// comparison operator (">= ventura"). Ordered comparisons are only
	// defined for macOS; on Linux the version must match exactly.
	Predicate struct {
		OS        OSFamily           `json:"os,omitempty" yaml:"os,omitempty"`
		Arch      Arch               `json:"arch,omitempty" yaml:"arch,omitempty"`
		OSVersion string             `json:"os_version,omitempty" yaml:"os_version,omitempty"`
		Compiler  *CompilerPredicate `json:"compiler,omitempty" yaml:"compiler,omitempty"`
	}

	// CompilerPredicate matches a compiler family and an optional version
	// constraint ("<= 1402", "5", ">= 8").
	CompilerPredicate struct {
		Family  CompilerFamily `json:"family" yaml:"family"`
		Version string         `json:"version,omitempty" yaml:"version,omitempty"`
	}

	// InvalidPredicateError describes a predicate field that can never be evaluated.
	InvalidPredicateError struct {
		Field  string
		Value  string
		Reason string
	}
)

// Error implements the error interface.
func (e *InvalidPredicateError) Error() string {
	return fmt.Sprintf("invalid predicate %s %q: %s", e.Field, e.Value, e.Reason)
}

// Unwrap returns ErrInvalidPredicate for errors.Is() compatibility.
func (e *InvalidPredicateError) Unwrap() error { return ErrInvalidPredicate }

// IsZero reports whether the predicate has no conditions.
func (p *Predicate) IsZero() bool {
	return p == nil || (p.OS == "" && p.Arch == "" && p.OSVersion == "" && p.Compiler == nil)
}

// IsValid checks that every condition is well-formed.
func (p *Predicate) IsValid() (bool, []error) {
	if p == nil {
		return true, nil
	}
	var errs []error
	if p.OS != "" {
		if ok, fieldErrs := p.OS.IsValid(); !ok {
			errs = append(errs, fieldErrs...)
		}
	}
	if p.Arch != "" {
		if ok, fieldErrs := p.Arch.IsValid(); !ok {
			errs = append(errs, fieldErrs...)
		}
	}
	if p.OSVersion != "" {
		op, ver := splitOperator(p.OSVersion)
		if ver == "" {
			errs = append(errs, &InvalidPredicateError{Field: "os_version", Value: p.OSVersion, Reason: "missing version"})
		} else if p.OS == OSMacOS || op != "" {
			if _, ok := CanonicalMacOS(ver); !ok {
				errs = append(errs, &InvalidPredicateError{Field: "os_version", Value: p.OSVersion, Reason: "unknown macOS release"})
			}
		}
	}
	if p.Compiler != nil {
		if p.Compiler.Family == "" {
			errs = append(errs, &InvalidPredicateError{Field: "compiler.family", Reason: "must be set"})
		}
		if p.Compiler.Version != "" {
			if _, err := semver.ParseConstraint(p.Compiler.Version); err != nil {
				errs = append(errs, &InvalidPredicateError{Field: "compiler.version", Value: p.Compiler.Version, Reason: err.Error()})
			}
		}
	}
	return len(errs) == 0, errs
}

// Matches reports whether fp satisfies every condition of p. Conditions that
// cannot be evaluated (unknown release, unparsable compiler version) do not match.
func (p *Predicate) Matches(fp Fingerprint) bool {
	if p.IsZero() {
		return true
	}
	if p.OS != "" && p.OS != fp.OS {
		return false
	}
	if p.Arch != "" && p.Arch != fp.Arch {
		return false
	}
	if p.OSVersion != "" && !matchOSVersion(p.OSVersion, fp) {
		return false
	}
	if p.Compiler != nil && !p.Compiler.Matches(fp.Compiler) {
		return false
	}
	return true
}

// Matches reports whether c has the predicate's family and a version within
// its constraint.
func (cp *CompilerPredicate) Matches(c Compiler) bool {
	if cp.Family != c.Family {
		return false
	}
	if cp.Version == "" {
		return true
	}
	constraint, err := semver.ParseConstraint(cp.Version)
	if err != nil {
		return false
	}
	v, err := semver.ParseVersion(c.Version)
	if err != nil {
		return false
	}
	return semver.Satisfies(v, constraint)
}

// String renders the predicate compactly, e.g. "os=macos compiler=clang<= 1402".
func (p *Predicate) String() string {
	if p.IsZero() {
		return "always"
	}
	var parts []string
	if p.OS != "" {
		parts = append(parts, "os="+string(p.OS))
	}
	if p.Arch != "" {
		parts = append(parts, "arch="+string(p.Arch))
	}
	if p.OSVersion != "" {
		parts = append(parts, "os_version="+p.OSVersion)
	}
	if p.Compiler != nil {
		parts = append(parts, "compiler="+string(p.Compiler.Family)+p.Compiler.Version)
	}
	return strings.Join(parts, " ")
}

func matchOSVersion(expr string, fp Fingerprint) bool {
	op, ver := splitOperator(expr)
	if fp.OSVersion == "" {
		return false
	}
	if fp.OS != OSMacOS {
		return (op == "" || op == "==") && ver == fp.OSVersion
	}
	want, ok := CanonicalMacOS(ver)
	if !ok {
		return false
	}
	wantRank, _ := macOSRank(want)
	haveRank, ok := macOSRank(fp.OSVersion)
	if !ok {
		return false
	}
	switch op {
	case "", "==":
		return haveRank == wantRank
	case ">=":
		return haveRank >= wantRank
	case "<=":
		return haveRank <= wantRank
	case ">":
		return haveRank > wantRank
	case "<":
		return haveRank < wantRank
	case "!=":
		return haveRank != wantRank
	default:
		return false
	}
}

func splitOperator(expr string) (op, rest string) {
	expr = strings.TrimSpace(expr)
	for _, candidate := range []string{">=", "<=", "==", "!=", ">", "<"} {
		if strings.HasPrefix(expr, candidate) {
			return candidate, strings.TrimSpace(expr[len(candidate):])
		}
	}
	return "", expr
}
