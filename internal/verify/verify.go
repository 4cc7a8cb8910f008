// SPDX-License-Identifier: MPL-2.0

// Package verify runs a formula's smoke test against an installed keg.
// Commands run in a scratch directory that is always removed afterwards.
// The keg must come out of the test exactly as it went in.
package verify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/kegbrew/kegbrew/internal/fetch"
	"github.com/kegbrew/kegbrew/internal/keg"
	"github.com/kegbrew/kegbrew/internal/toolchain"
	"github.com/kegbrew/kegbrew/pkg/formula"
)

// ReasonPrefixModified is the failure reason when a test changed the keg.
const ReasonPrefixModified = "installed prefix modified"

var (
	// ErrVerificationFailed is the sentinel error wrapped by FailedError.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrFixture is the sentinel error wrapped by FixtureError.
	ErrFixture = errors.New("test fixture unavailable")
)

type (
	// Shell runs one test command.
	Shell interface {
		RunScript(ctx context.Context, dir, script string, env []string) (toolchain.Result, error)
	}

	// Target is the installed keg under test.
	Target struct {
		Formula formula.Name
		Version string
		KegPath string
		// Env is the base environment; keg variables are added on top.
		Env []string
	}

	// Runner executes test procedures.
	Runner struct {
		Fetcher fetch.Fetcher
		Shell   Shell
		// ScratchRoot is where per-run test directories are created.
		ScratchRoot string
		// CacheDir receives fetched fixtures.
		CacheDir string
		Logger   *log.Logger
	}

	// FailedError is a verification failure. Index is the 1-based command
	// position, or 0 when the failure is not tied to one command.
	FailedError struct {
		Formula formula.Name
		Index   int
		Command string
		Output  string
		Reason  string
	}

	// FixtureError means a test resource could not be staged, so the test
	// never ran. It is not a verification failure.
	FixtureError struct {
		Formula  formula.Name
		Resource string
		Err      error
	}
)

// Error implements the error interface.
func (e *FailedError) Error() string {
	if e.Index == 0 {
		return fmt.Sprintf("%s: verification failed: %s", e.Formula, e.Reason)
	}
	return fmt.Sprintf("%s: test command %d (%s) failed: %s", e.Formula, e.Index, e.Command, e.Reason)
}

// Unwrap returns ErrVerificationFailed for errors.Is() compatibility.
func (e *FailedError) Unwrap() error { return ErrVerificationFailed }

// Error implements the error interface.
func (e *FixtureError) Error() string {
	return fmt.Sprintf("%s: cannot stage test resource %q: %v", e.Formula, e.Resource, e.Err)
}

// Unwrap returns ErrFixture and the cause.
func (e *FixtureError) Unwrap() []error { return []error{ErrFixture, e.Err} }

// Run executes proc against target. A nil or empty procedure passes.
func (r *Runner) Run(ctx context.Context, proc *formula.TestProcedure, target Target) (err error) {
	if proc == nil || len(proc.Commands) == 0 {
		return nil
	}
	logger := r.logger().With("formula", target.Formula)

	before, err := keg.TreeDigest(target.KegPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(r.ScratchRoot, 0o755); err != nil {
		return fmt.Errorf("create scratch root: %w", err)
	}
	scratch, err := os.MkdirTemp(r.ScratchRoot, string(target.Formula)+"-test-")
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(scratch); rmErr != nil {
			logger.Warn("scratch cleanup failed", "path", scratch, "error", rmErr)
		}
	}()

	if err := r.stage(ctx, proc.Resources, target.Formula, scratch); err != nil {
		return err
	}

	env := testEnv(target, scratch)
	for i, cmd := range proc.Commands {
		idx := i + 1
		if err := ctx.Err(); err != nil {
			return err
		}
		logger.Info("test", "step", idx, "command", cmd.Run)
		res, err := r.Shell.RunScript(ctx, scratch, cmd.Run, env)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &FailedError{Formula: target.Formula, Index: idx, Command: cmd.Run, Output: res.Output, Reason: err.Error()}
		}
		if reason := check(cmd, res, scratch); reason != "" {
			logger.Debug("test output", "step", idx, "output", res.Output)
			return &FailedError{Formula: target.Formula, Index: idx, Command: cmd.Run, Output: res.Output, Reason: reason}
		}
	}

	after, err := keg.TreeDigest(target.KegPath)
	if err != nil {
		return err
	}
	if after != before {
		return &FailedError{Formula: target.Formula, Reason: ReasonPrefixModified}
	}
	return nil
}

// check returns why res does not satisfy cmd, or "" if it does.
func check(cmd formula.TestCommand, res toolchain.Result, scratch string) string {
	if res.ExitCode != cmd.ExitCode {
		return fmt.Sprintf("exit status %d, want %d", res.ExitCode, cmd.ExitCode)
	}
	if cmd.Expect != "" {
		re, err := regexp.Compile(cmd.Expect)
		if err != nil {
			return fmt.Sprintf("bad expectation %q: %v", cmd.Expect, err)
		}
		if !re.MatchString(res.Output) {
			return fmt.Sprintf("output does not match /%s/", cmd.Expect)
		}
	}
	if cmd.Creates != "" {
		if _, err := os.Stat(filepath.Join(scratch, filepath.FromSlash(cmd.Creates))); err != nil {
			return fmt.Sprintf("expected %s to be created", cmd.Creates)
		}
	}
	return ""
}

func (r *Runner) stage(ctx context.Context, resources []formula.Resource, name formula.Name, scratch string) error {
	for _, res := range resources {
		ref := fetch.Reference{URL: res.URL, SHA256: res.SHA256, Name: res.Name}
		path, err := r.Fetcher.Fetch(ctx, ref, r.CacheDir)
		if err != nil {
			return &FixtureError{Formula: name, Resource: res.Name, Err: err}
		}
		dest := res.StageAs
		if dest == "" {
			dest = res.Name
		}
		if err := copyFile(path, filepath.Join(scratch, filepath.FromSlash(dest))); err != nil {
			return &FixtureError{Formula: name, Resource: res.Name, Err: err}
		}
	}
	return nil
}

func testEnv(target Target, scratch string) []string {
	k := target.KegPath
	path := filepath.Join(k, "bin")
	overrides := map[string]string{
		"PREFIX":   k,
		"BIN":      filepath.Join(k, "bin"),
		"LIB":      filepath.Join(k, "lib"),
		"SHARE":    filepath.Join(k, "share"),
		"NAME":     string(target.Formula),
		"VERSION":  target.Version,
		"TESTPATH": scratch,
		"HOME":     scratch,
	}

	var env []string
	for _, kv := range target.Env {
		key, val, _ := strings.Cut(kv, "=")
		if key == "PATH" {
			path += string(filepath.ListSeparator) + val
			continue
		}
		if _, ok := overrides[key]; !ok {
			env = append(env, kv)
		}
	}
	keys := slices.Sorted(maps.Keys(overrides))
	for _, key := range keys {
		env = append(env, key+"="+overrides[key])
	}
	return append(env, "PATH="+path)
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (r *Runner) logger() *log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return log.New(io.Discard)
}
