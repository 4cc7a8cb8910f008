// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kegbrew/kegbrew/pkg/formula"
	"github.com/kegbrew/kegbrew/pkg/platform"
)

var (
	// ErrGraphCycle is the sentinel error wrapped by CycleError.
	ErrGraphCycle = errors.New("dependency graph contains a cycle")
	// ErrUnresolvedDependency is the sentinel error wrapped by UnresolvedDependencyError.
	ErrUnresolvedDependency = errors.New("unresolved dependency")
	// ErrUnsupportedPlatform is the sentinel error wrapped by UnsupportedPlatformError.
	ErrUnsupportedPlatform = errors.New("formula does not support this platform")
)

type (
	// CycleError names the formulae forming a cycle, first node repeated last.
	CycleError struct {
		Cycle []formula.Name
	}

	// UnresolvedDependencyError is returned when a referenced formula is not
	// in the catalog. Referrer is empty when the root itself is missing.
	UnresolvedDependencyError struct {
		Name     formula.Name
		Referrer formula.Name
	}

	// UnsupportedPlatformError is returned when a formula in the plan
	// declares a requirement the fingerprint does not meet.
	UnsupportedPlatformError struct {
		Formula     formula.Name
		Requirement platform.Predicate
		Fingerprint platform.Fingerprint
	}
)

// Error implements the error interface.
func (e *CycleError) Error() string {
	names := make([]string, len(e.Cycle))
	for i, n := range e.Cycle {
		names[i] = string(n)
	}
	return "dependency cycle detected: " + strings.Join(names, " -> ")
}

// Unwrap returns ErrGraphCycle for errors.Is() compatibility.
func (e *CycleError) Unwrap() error { return ErrGraphCycle }

// Error implements the error interface.
func (e *UnresolvedDependencyError) Error() string {
	if e.Referrer == "" {
		return fmt.Sprintf("no formula named %q in the catalog", e.Name)
	}
	return fmt.Sprintf("formula %q depends on %q, which is not in the catalog", e.Referrer, e.Name)
}

// Unwrap returns ErrUnresolvedDependency for errors.Is() compatibility.
func (e *UnresolvedDependencyError) Unwrap() error { return ErrUnresolvedDependency }

// Error implements the error interface.
func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("formula %q requires %s (target is %s)", e.Formula, e.Requirement.String(), e.Fingerprint)
}

// Unwrap returns ErrUnsupportedPlatform for errors.Is() compatibility.
func (e *UnsupportedPlatformError) Unwrap() error { return ErrUnsupportedPlatform }
