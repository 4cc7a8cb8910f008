// SPDX-License-Identifier: MPL-2.0

// Package pipeline runs the install steps of one source build. A run owns a
// private workspace below the driver's work root and writes only to that
// workspace and the target keg. Steps run strictly in order and the first
// failure, or a cancellation seen between steps, removes both the
// workspace and the partial keg.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/kegbrew/kegbrew/internal/archive"
	"github.com/kegbrew/kegbrew/internal/keg"
	"github.com/kegbrew/kegbrew/internal/toolchain"
	"github.com/kegbrew/kegbrew/pkg/formula"
	"github.com/kegbrew/kegbrew/pkg/platform"
	"github.com/kegbrew/kegbrew/pkg/types"
)

type (
	// Toolchain runs external build tools.
	Toolchain interface {
		RunBuildTool(ctx context.Context, inv toolchain.Invocation) (toolchain.Result, error)
	}

	// Job describes one source build.
	Job struct {
		Formula     *formula.Formula
		Fingerprint platform.Fingerprint
		Version     string
		// Source is a fetched archive, a checkout directory or a single
		// file. Empty means the build starts from an empty workspace.
		Source  string
		KegPath string
		Layout  keg.Layout
		// Deps maps each installed dependency to its keg path.
		Deps    map[formula.Name]string
		BaseEnv []string
	}

	// StepRecord is one executed step.
	StepRecord struct {
		Index    int
		Action   formula.Action
		Summary  string
		Duration time.Duration
	}

	// Report describes a successful build.
	Report struct {
		KegPath string
		Steps   []StepRecord
		Digest  types.Digest
	}

	// Driver executes jobs.
	Driver struct {
		Toolchain Toolchain
		// WorkRoot is where per-run workspaces are created.
		WorkRoot string
		Logger   *log.Logger
		// Observe, if set, is called after every step that succeeded.
		Observe func(action formula.Action, d time.Duration)
	}
)

// Run builds job.Formula into job.KegPath.
func (d *Driver) Run(ctx context.Context, job Job) (_ *Report, err error) {
	f := job.Formula
	steps := f.StepsFor(job.Fingerprint)
	logger := d.logger().With("formula", f.Name)

	if _, statErr := os.Lstat(job.KegPath); statErr == nil {
		return nil, fmt.Errorf("%s: %w", job.KegPath, keg.ErrKegExists)
	}
	if err := os.MkdirAll(d.WorkRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create work root: %w", err)
	}
	workspace, err := os.MkdirTemp(d.WorkRoot, string(f.Name)+"-")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(workspace); rmErr != nil {
			logger.Warn("workspace cleanup failed", "path", workspace, "error", rmErr)
		}
		if err != nil {
			if rmErr := job.Layout.Remove(job.KegPath); rmErr != nil {
				logger.Warn("keg cleanup failed", "path", job.KegPath, "error", rmErr)
			}
		}
	}()

	buildPath, err := stage(job.Source, workspace)
	if err != nil {
		return nil, fmt.Errorf("stage source: %w", err)
	}
	if err := os.MkdirAll(job.KegPath, 0o755); err != nil {
		return nil, fmt.Errorf("create keg: %w", err)
	}

	env := job.environment(buildPath)
	r := &run{driver: d, job: job, buildPath: buildPath, env: env}
	report := &Report{KegPath: job.KegPath}

	for i := range steps {
		idx := i + 1
		step := &steps[i]
		if ctxErr := ctx.Err(); ctxErr != nil {
			logger.Warn("canceled", "step", idx)
			return nil, &CanceledError{Formula: f.Name, Index: idx, Cause: ctxErr}
		}

		logger.Info("step", "step", fmt.Sprintf("%d/%d", idx, len(steps)), "action", step.Action, "summary", step.Summary())
		start := time.Now()
		output, stepErr := r.execute(ctx, step)
		elapsed := time.Since(start)

		if stepErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, &CanceledError{Formula: f.Name, Index: idx, Cause: ctxErr}
			}
			logger.Error("step failed", "step", idx, "action", step.Action, "error", stepErr)
			if output != "" {
				logger.Debug("step output", "step", idx, "output", output)
			}
			return nil, &StepFailedError{
				Formula: f.Name,
				Index:   idx,
				Action:  step.Action,
				Summary: step.Summary(),
				Cause:   stepErr,
				Output:  output,
			}
		}
		if d.Observe != nil {
			d.Observe(step.Action, elapsed)
		}
		logger.Debug("step done", "step", idx, "duration", elapsed)
		report.Steps = append(report.Steps, StepRecord{Index: idx, Action: step.Action, Summary: step.Summary(), Duration: elapsed})
	}

	digest, err := keg.TreeDigest(job.KegPath)
	if err != nil {
		return nil, err
	}
	report.Digest = digest
	return report, nil
}

func (d *Driver) logger() *log.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return log.New(io.Discard)
}

// stage lays the source out in workspace and returns the directory steps
// run in. An archive or checkout with a single top-level directory builds
// inside that directory.
func stage(source, workspace string) (string, error) {
	if source == "" {
		return workspace, nil
	}
	info, err := os.Stat(source)
	if err != nil {
		return "", err
	}
	switch {
	case info.IsDir():
		if err := copyTree(source, workspace, func(rel string) bool { return rel == ".git" }); err != nil {
			return "", err
		}
		return workspace, nil
	case archive.IsArchive(source):
		if err := archive.Extract(source, workspace, 0); err != nil {
			return "", err
		}
		return singleDir(workspace), nil
	default:
		if err := copyFile(source, filepath.Join(workspace, filepath.Base(source))); err != nil {
			return "", err
		}
		return workspace, nil
	}
}

func singleDir(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 || !entries[0].IsDir() {
		return dir
	}
	return filepath.Join(dir, entries[0].Name())
}
