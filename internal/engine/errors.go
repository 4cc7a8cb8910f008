// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"errors"

	"github.com/kegbrew/kegbrew/internal/bottle"
	"github.com/kegbrew/kegbrew/internal/fetch"
	"github.com/kegbrew/kegbrew/internal/gate"
	"github.com/kegbrew/kegbrew/internal/pipeline"
	"github.com/kegbrew/kegbrew/internal/resolve"
	"github.com/kegbrew/kegbrew/internal/verify"
)

// Failure kinds reported in a Result.
const (
	KindGraphCycle            Kind = "graph_cycle"
	KindUnresolvedDependency  Kind = "unresolved_dependency"
	KindUnsupportedPlatform   Kind = "unsupported_platform"
	KindToolchainIncompatible Kind = "toolchain_incompatible"
	KindPrefixMismatch        Kind = "prefix_mismatch"
	KindStepFailed            Kind = "step_failed"
	KindFetchError            Kind = "fetch_error"
	KindVerificationFailed    Kind = "verification_failed"
	KindCancellationRequested Kind = "cancellation_requested"
	KindInternal              Kind = "internal"
)

type (
	// Kind classifies why a request failed.
	Kind string

	// Failure is the error part of a failed Result.
	Failure struct {
		Kind   Kind
		Detail string
		Err    error
	}
)

// Classify maps an error raised anywhere below the engine to its Kind.
// Cancellation wins over everything else so that an interrupted tool is
// not reported as a broken build.
func Classify(err error) Kind {
	var (
		cycleErr       *resolve.CycleError
		unresolvedErr  *resolve.UnresolvedDependencyError
		unsupportedErr *resolve.UnsupportedPlatformError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, pipeline.ErrCanceled),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return KindCancellationRequested
	case errors.As(err, &cycleErr):
		return KindGraphCycle
	case errors.As(err, &unresolvedErr):
		return KindUnresolvedDependency
	case errors.As(err, &unsupportedErr):
		return KindUnsupportedPlatform
	case errors.Is(err, gate.ErrToolchainIncompatible):
		return KindToolchainIncompatible
	case errors.Is(err, bottle.ErrPrefixMismatch):
		return KindPrefixMismatch
	case errors.Is(err, pipeline.ErrStepFailed):
		return KindStepFailed
	case errors.Is(err, fetch.ErrFetch), errors.Is(err, verify.ErrFixture):
		return KindFetchError
	case errors.Is(err, verify.ErrVerificationFailed):
		return KindVerificationFailed
	default:
		return KindInternal
	}
}

func failureOf(err error) *Failure {
	return &Failure{Kind: Classify(err), Detail: err.Error(), Err: err}
}
