// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestShell_RunBuildTool(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sh := NewShell(nil)

	res, err := sh.RunBuildTool(context.Background(), Invocation{
		Dir:  dir,
		Tool: "echo",
		Args: []string{"a b", "$NOT_EXPANDED", "c;d"},
	})
	if err != nil {
		t.Fatalf("RunBuildTool() error: %v", err)
	}
	if !res.ExitCode.IsSuccess() {
		t.Errorf("ExitCode = %d", res.ExitCode)
	}
	if want := "a b $NOT_EXPANDED c;d\n"; res.Output != want {
		t.Errorf("Output = %q, want %q", res.Output, want)
	}
}

func TestShell_RunScript(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		script   string
		env      []string
		wantCode int
		wantOut  string
	}{
		{"success", "echo hi", nil, 0, "hi\n"},
		{"exit status", "echo oops >&2; exit 3", nil, 3, "oops\n"},
		{"env", `echo "$PREFIX"`, []string{"PREFIX=/opt/keg"}, 0, "/opt/keg\n"},
		{"false", "false", nil, 1, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := NewShell(nil).RunScript(context.Background(), t.TempDir(), tt.script, tt.env)
			if err != nil {
				t.Fatalf("RunScript() error: %v", err)
			}
			if int(res.ExitCode) != tt.wantCode {
				t.Errorf("ExitCode = %d, want %d", res.ExitCode, tt.wantCode)
			}
			if res.Output != tt.wantOut {
				t.Errorf("Output = %q, want %q", res.Output, tt.wantOut)
			}
		})
	}
}

func TestShell_RunScript_Dir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if _, err := NewShell(nil).RunScript(context.Background(), dir, "echo x > out.txt", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "out.txt")); err != nil {
		t.Errorf("command did not run in dir: %v", err)
	}
}

func TestShell_RunScript_ParseError(t *testing.T) {
	t.Parallel()

	if _, err := NewShell(nil).RunScript(context.Background(), t.TempDir(), "if then", nil); err == nil {
		t.Fatal("RunScript() expected parse error")
	}
}

func TestShell_RunScript_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := NewShell(nil).RunScript(ctx, t.TempDir(), "echo never", nil)
	if err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("RunScript() error = %v, want context.Canceled", err)
	}
	if res.Output != "" {
		t.Errorf("Output = %q, want nothing to run", res.Output)
	}
}

func TestExpandFields(t *testing.T) {
	t.Parallel()

	env := []string{"PREFIX=/opt/keg", "STD_ARGS=-DA=1 -DB=2"}
	tests := []struct {
		arg     string
		want    []string
		wantErr bool
	}{
		{"--prefix=$PREFIX", []string{"--prefix=/opt/keg"}, false},
		{"$STD_ARGS", []string{"-DA=1", "-DB=2"}, false},
		{`"$STD_ARGS"`, []string{"-DA=1 -DB=2"}, false},
		{"'$PREFIX'", []string{"$PREFIX"}, false},
		{"a b", []string{"a", "b"}, false},
		{"$UNSET", nil, false},
		{"$(rm -rf /)", nil, true},
		{"a; b", nil, true},
		{"a > f", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			t.Parallel()
			got, err := ExpandFields(tt.arg, env)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ExpandFields(%q) expected error, got %q", tt.arg, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExpandFields(%q) error: %v", tt.arg, err)
			}
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("ExpandFields(%q) mismatch (-want +got):\n%s", tt.arg, diff)
			}
		})
	}
}

func TestExpandLiteral(t *testing.T) {
	t.Parallel()

	env := []string{"PREFIX=/opt/keg"}
	got, err := ExpandLiteral("$PREFIX/bin/tool name", env)
	if err != nil {
		t.Fatal(err)
	}
	if got != "/opt/keg/bin/tool name" {
		t.Errorf("ExpandLiteral() = %q", got)
	}
	if got, _ := ExpandLiteral("plain", env); got != "plain" {
		t.Errorf("ExpandLiteral(plain) = %q", got)
	}
}

func TestCommandLine(t *testing.T) {
	t.Parallel()

	got, err := CommandLine("make", []string{"install", "DESTDIR=a b"})
	if err != nil {
		t.Fatal(err)
	}
	if want := "make install 'DESTDIR=a b'"; got != want {
		t.Errorf("CommandLine() = %q, want %q", got, want)
	}
}
