// SPDX-License-Identifier: MPL-2.0

package verify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kegbrew/kegbrew/internal/fetch"
	"github.com/kegbrew/kegbrew/internal/testutil"
	"github.com/kegbrew/kegbrew/internal/toolchain"
	"github.com/kegbrew/kegbrew/pkg/formula"
	"github.com/kegbrew/kegbrew/pkg/types"
)

// mapFetcher serves fixtures from memory keyed by URL.
type mapFetcher map[string]string

func (m mapFetcher) Fetch(_ context.Context, ref fetch.Reference, destDir string) (string, error) {
	body, ok := m[ref.URL]
	if !ok {
		return "", &fetch.Error{Kind: fetch.KindNotFound, URL: ref.URL}
	}
	path := filepath.Join(destDir, ref.FileName())
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}
	return path, os.WriteFile(path, []byte(body), 0o644)
}

func newRunner(t *testing.T, fixtures mapFetcher) (*Runner, Target) {
	t.Helper()
	dir := t.TempDir()
	kegPath := filepath.Join(dir, "Cellar", "tool", "1.0")
	testutil.WriteTree(t, kegPath, map[string]string{"bin/tool*": "#!/bin/sh\n"})
	r := &Runner{
		Fetcher:     fixtures,
		Shell:       toolchain.NewShell(nil),
		ScratchRoot: filepath.Join(dir, "scratch"),
		CacheDir:    filepath.Join(dir, "cache"),
	}
	return r, Target{Formula: "tool", Version: "1.0", KegPath: kegPath}
}

func TestRun_Passes(t *testing.T) {
	t.Parallel()

	r, target := newRunner(t, nil)
	proc := &formula.TestProcedure{Commands: []formula.TestCommand{
		{Run: `echo "hello $NAME $VERSION"`, Expect: `hello tool 1\.0`},
		{Run: "echo data > out.txt", Creates: "out.txt"},
		{Run: "exit 3", ExitCode: 3},
		{Run: `test -x "$BIN/tool"`},
	}}
	if err := r.Run(context.Background(), proc, target); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !testutil.IsEmptyDir(t, r.ScratchRoot) {
		t.Error("scratch directory not removed")
	}
}

func TestRun_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		cmds      []formula.TestCommand
		wantIndex int
		wantInMsg string
	}{
		{
			name:      "output mismatch",
			cmds:      []formula.TestCommand{{Run: "true"}, {Run: "echo goodbye", Expect: "hello"}},
			wantIndex: 2,
		},
		{
			name:      "unexpected exit",
			cmds:      []formula.TestCommand{{Run: "exit 1"}},
			wantIndex: 1,
		},
		{
			name:      "missing file",
			cmds:      []formula.TestCommand{{Run: "true", Creates: "out.png"}},
			wantIndex: 1,
		},
		{
			name:      "prefix modified",
			cmds:      []formula.TestCommand{{Run: `echo x > "$PREFIX/extra"`}},
			wantIndex: 0,
			wantInMsg: ReasonPrefixModified,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, target := newRunner(t, nil)
			err := r.Run(context.Background(), &formula.TestProcedure{Commands: tt.cmds}, target)
			var failed *FailedError
			if !errors.As(err, &failed) {
				t.Fatalf("Run() error = %v, want *FailedError", err)
			}
			if failed.Index != tt.wantIndex {
				t.Errorf("Index = %d, want %d", failed.Index, tt.wantIndex)
			}
			if tt.wantInMsg != "" && failed.Reason != tt.wantInMsg {
				t.Errorf("Reason = %q, want %q", failed.Reason, tt.wantInMsg)
			}
			if !errors.Is(err, ErrVerificationFailed) {
				t.Error("errors.Is(err, ErrVerificationFailed) = false")
			}
			if !testutil.IsEmptyDir(t, r.ScratchRoot) {
				t.Error("scratch directory not removed")
			}
		})
	}
}

func TestRun_StagesFixtures(t *testing.T) {
	t.Parallel()

	r, target := newRunner(t, mapFetcher{"https://example.org/sample.png": "PNG"})
	proc := &formula.TestProcedure{
		Resources: []formula.Resource{{
			Name: "sample", URL: "https://example.org/sample.png",
			SHA256: types.DigestOf([]byte("PNG")), StageAs: "input/sample.png",
		}},
		Commands: []formula.TestCommand{{Run: "test -f input/sample.png"}},
	}
	if err := r.Run(context.Background(), proc, target); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
}

func TestRun_FixtureFailureIsDistinct(t *testing.T) {
	t.Parallel()

	r, target := newRunner(t, mapFetcher{})
	proc := &formula.TestProcedure{
		Resources: []formula.Resource{{Name: "sample", URL: "https://example.org/gone.png", SHA256: types.DigestOf(nil)}},
		Commands:  []formula.TestCommand{{Run: `echo ran > "$PREFIX/ran"`}},
	}
	err := r.Run(context.Background(), proc, target)
	var fixtureErr *FixtureError
	if !errors.As(err, &fixtureErr) {
		t.Fatalf("Run() error = %v, want *FixtureError", err)
	}
	if errors.Is(err, ErrVerificationFailed) {
		t.Error("fixture failure reported as a verification failure")
	}
	if !errors.Is(err, fetch.ErrFetch) {
		t.Error("fetch cause lost")
	}
	if _, statErr := os.Stat(filepath.Join(target.KegPath, "ran")); !os.IsNotExist(statErr) {
		t.Error("commands ran despite missing fixture")
	}
}

func TestRun_EmptyProcedure(t *testing.T) {
	t.Parallel()

	r, target := newRunner(t, nil)
	if err := r.Run(context.Background(), nil, target); err != nil {
		t.Errorf("Run(nil) error: %v", err)
	}
}
