// SPDX-License-Identifier: MPL-2.0

// Package gate evaluates fails_with rules. Rules only guard source builds;
// pouring a bottle is never blocked, since bottles were built and checked
// with a known-good toolchain.
package gate

import (
	"errors"
	"fmt"

	"github.com/kegbrew/kegbrew/internal/semver"
	"github.com/kegbrew/kegbrew/pkg/formula"
	"github.com/kegbrew/kegbrew/pkg/platform"
)

const (
	// PathBottle installs a prebuilt artifact.
	PathBottle Path = "bottle"
	// PathBuild compiles from source.
	PathBuild Path = "build"
)

// ErrToolchainIncompatible is the sentinel error wrapped by ToolchainIncompatibleError.
var ErrToolchainIncompatible = errors.New("toolchain incompatible")

type (
	// Path is the install path chosen for a formula.
	Path string

	// ToolchainIncompatibleError carries the rule that blocked a build.
	ToolchainIncompatibleError struct {
		Formula    formula.Name
		Compiler   platform.Compiler
		Constraint string
		Cause      string
	}
)

// Error implements the error interface.
func (e *ToolchainIncompatibleError) Error() string {
	rule := string(e.Compiler.Family)
	if e.Constraint != "" {
		rule += " " + e.Constraint
	}
	return fmt.Sprintf("%q cannot be built with %s %s (fails with %s): %s",
		e.Formula, e.Compiler.Family, e.Compiler.Version, rule, e.Cause)
}

// Unwrap returns ErrToolchainIncompatible for errors.Is() compatibility.
func (e *ToolchainIncompatibleError) Unwrap() error { return ErrToolchainIncompatible }

// Check returns the first fails_with rule of f that fp's compiler violates.
// It always passes for PathBottle. A rule whose family matches but whose
// version cannot be compared fails closed.
func Check(f *formula.Formula, fp platform.Fingerprint, path Path) error {
	if path != PathBuild {
		return nil
	}
	for _, rule := range f.FailsWith {
		if rule.Compiler != fp.Compiler.Family {
			continue
		}
		if violates(rule, fp.Compiler) {
			return &ToolchainIncompatibleError{
				Formula:    f.Name,
				Compiler:   fp.Compiler,
				Constraint: rule.Version,
				Cause:      rule.Cause,
			}
		}
	}
	return nil
}

func violates(rule formula.FailsWith, c platform.Compiler) bool {
	if rule.Version == "" {
		return true
	}
	constraint, err := semver.ParseConstraint(rule.Version)
	if err != nil {
		return true
	}
	v, err := semver.ParseVersion(c.Version)
	if err != nil {
		return true
	}
	return semver.Satisfies(v, constraint)
}
