// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"errors"
	"fmt"

	"github.com/kegbrew/kegbrew/pkg/formula"
	"github.com/kegbrew/kegbrew/pkg/types"
)

var (
	// ErrStepFailed is the sentinel error wrapped by StepFailedError.
	ErrStepFailed = errors.New("install step failed")

	// ErrCanceled is the sentinel error wrapped by CanceledError.
	ErrCanceled = errors.New("install canceled")

	// ErrNoMatch is returned by patch and install_files steps that match nothing.
	ErrNoMatch = errors.New("nothing matched")

	// ErrOutsideRoot is returned when a step path resolves outside the
	// workspace or keg it must stay in.
	ErrOutsideRoot = errors.New("path escapes its root")
)

type (
	// StepFailedError reports the first failing step. Index is 1-based
	// among the steps that apply to the fingerprint. Output is whatever the
	// tool printed, if a tool ran.
	StepFailedError struct {
		Formula formula.Name
		Index   int
		Action  formula.Action
		Summary string
		Cause   error
		Output  string
	}

	// CanceledError reports a cancellation observed before or during step Index.
	CanceledError struct {
		Formula formula.Name
		Index   int
		Cause   error
	}

	// ToolExitError is the cause of a step whose tool exited non-zero.
	ToolExitError struct {
		Tool     string
		ExitCode types.ExitCode
	}
)

// Error implements the error interface.
func (e *StepFailedError) Error() string {
	return fmt.Sprintf("%s: step %d (%s) failed: %v", e.Formula, e.Index, e.Summary, e.Cause)
}

// Unwrap returns ErrStepFailed and the cause.
func (e *StepFailedError) Unwrap() []error { return []error{ErrStepFailed, e.Cause} }

// Error implements the error interface.
func (e *CanceledError) Error() string {
	return fmt.Sprintf("%s: canceled at step %d: %v", e.Formula, e.Index, e.Cause)
}

// Unwrap returns ErrCanceled and the context error.
func (e *CanceledError) Unwrap() []error { return []error{ErrCanceled, e.Cause} }

// Error implements the error interface.
func (e *ToolExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Tool, e.ExitCode)
}
