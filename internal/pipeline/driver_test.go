// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kegbrew/kegbrew/internal/archive"
	"github.com/kegbrew/kegbrew/internal/keg"
	"github.com/kegbrew/kegbrew/internal/testutil"
	"github.com/kegbrew/kegbrew/internal/testutil/formulatest"
	"github.com/kegbrew/kegbrew/internal/toolchain"
	"github.com/kegbrew/kegbrew/pkg/formula"
	"github.com/kegbrew/kegbrew/pkg/platform"
	"github.com/kegbrew/kegbrew/pkg/types"
)

// fakeToolchain records invocations. run, if set, decides the outcome of
// each call; by default every tool succeeds.
type fakeToolchain struct {
	mu    sync.Mutex
	calls []toolchain.Invocation
	run   func(inv toolchain.Invocation) (toolchain.Result, error)
}

func (f *fakeToolchain) RunBuildTool(_ context.Context, inv toolchain.Invocation) (toolchain.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, inv)
	f.mu.Unlock()
	if f.run != nil {
		return f.run(inv)
	}
	return toolchain.Result{}, nil
}

func (f *fakeToolchain) tools() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Tool
	}
	return out
}

func envValue(env []string, key string) string {
	for i := len(env) - 1; i >= 0; i-- {
		if k, v, ok := strings.Cut(env[i], "="); ok && k == key {
			return v
		}
	}
	return ""
}

type fixture struct {
	layout  keg.Layout
	work    string
	tc      *fakeToolchain
	driver  *Driver
	source  string
	kegPath string
}

func newFixture(t *testing.T, name string) *fixture {
	t.Helper()
	dir := t.TempDir()

	src := filepath.Join(dir, "src")
	testutil.WriteTree(t, src, map[string]string{
		"configure*":        "#!/bin/sh\n",
		"Makefile":          "PREFIX = /usr/local\nCFLAGS = -O2\n",
		"build/libhello.so": "ELF",
		"build/libextra.so": "ELF2",
		"man/hello.1":       ".TH HELLO 1",
	})
	tarball := filepath.Join(dir, "hello-1.0.tar.gz")
	if err := archive.CreateTarGz(src, tarball, "hello-1.0"); err != nil {
		t.Fatal(err)
	}

	layout := keg.NewLayout(filepath.Join(dir, "prefix"), "")
	tc := &fakeToolchain{}
	work := filepath.Join(dir, "work")
	return &fixture{
		layout:  layout,
		work:    work,
		tc:      tc,
		driver:  &Driver{Toolchain: tc, WorkRoot: work},
		source:  tarball,
		kegPath: layout.KegPath(formula.Name(name), "1.0"),
	}
}

func (fx *fixture) job(f *formula.Formula) Job {
	return Job{
		Formula:     f,
		Fingerprint: formulatest.LinuxX86,
		Version:     "1.0",
		Source:      fx.source,
		KegPath:     fx.kegPath,
		Layout:      fx.layout,
		BaseEnv:     []string{"PATH=/usr/bin:/bin"},
	}
}

func TestRun_Success(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, "hello")
	macOnly := formula.Step{Action: formula.ActionCompile, Tool: "xcodebuild", When: &platform.Predicate{OS: platform.OSMacOS}}
	f := formulatest.New("hello", formulatest.WithSteps(
		formula.Step{Action: formula.ActionPatch, File: "Makefile", Find: "-O2", Replace: "-O3"},
		formula.Step{Action: formula.ActionPatch, File: "Makefile", Find: `PREFIX = .*`, Replace: "PREFIX = $$PREFIX", Regexp: true, Append: []string{"# patched"}},
		formulatest.Configure("./configure", "--prefix=$PREFIX", "$STD_CMAKE_ARGS"),
		macOnly,
		formulatest.Compile("make", "-j1"),
		formula.Step{Action: formula.ActionInstallFiles, From: "build/*.so", To: "lib"},
		formula.Step{Action: formula.ActionInstallFiles, From: "man/hello.1", To: "share/man/man1", Rename: "hello-tool.1"},
		formula.Step{Action: formula.ActionSymlink, Target: "lib/libhello.so", Link: "lib/libhello.so.1"},
	))

	var observed []formula.Action
	fx.driver.Observe = func(a formula.Action, _ time.Duration) { observed = append(observed, a) }

	report, err := fx.driver.Run(context.Background(), fx.job(f))
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if diff := cmp.Diff([]string{"./configure", "make"}, fx.tc.tools()); diff != "" {
		t.Errorf("tools mismatch (-want +got):\n%s", diff)
	}
	configure := fx.tc.calls[0]
	if configure.Args[0] != "--prefix="+fx.kegPath {
		t.Errorf("configure arg = %q", configure.Args[0])
	}
	if !slices.Contains(configure.Args, "-DCMAKE_BUILD_TYPE=Release") {
		t.Errorf("STD_CMAKE_ARGS not split into fields: %q", configure.Args)
	}
	if filepath.Base(configure.Dir) != "hello-1.0" {
		t.Errorf("build dir = %q, want the single top-level directory", configure.Dir)
	}
	if got := envValue(configure.Env, "PREFIX"); got != fx.kegPath {
		t.Errorf("PREFIX = %q", got)
	}
	if got := envValue(configure.Env, "PATH"); got != "/usr/bin:/bin" {
		t.Errorf("PATH = %q", got)
	}

	want := map[string]string{
		"lib/libhello.so":             "ELF",
		"lib/libextra.so":             "ELF2",
		"lib/libhello.so.1":           "-> libhello.so",
		"share/man/man1/hello-tool.1": ".TH HELLO 1",
	}
	if diff := cmp.Diff(want, testutil.ReadTree(t, fx.kegPath)); diff != "" {
		t.Errorf("keg mismatch (-want +got):\n%s", diff)
	}

	if len(report.Steps) != 7 || len(observed) != 7 {
		t.Errorf("steps run = %d, observed = %d, want 7", len(report.Steps), len(observed))
	}
	if ok, errs := report.Digest.IsValid(); !ok {
		t.Errorf("digest invalid: %v", errs)
	}
	if !testutil.IsEmptyDir(t, fx.work) {
		t.Error("workspace not removed")
	}
}

func TestRun_PatchResult(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, "hello")
	var makefile string
	fx.tc.run = func(inv toolchain.Invocation) (toolchain.Result, error) {
		makefile = testutil.MustReadFile(t, filepath.Join(inv.Dir, "Makefile"))
		return toolchain.Result{}, nil
	}
	f := formulatest.New("hello", formulatest.WithSteps(
		formula.Step{Action: formula.ActionPatch, File: "Makefile", Find: "-O2", Replace: "-O3"},
		formula.Step{Action: formula.ActionPatch, File: "Makefile", Find: `PREFIX = \S+`, Replace: "PREFIX = /opt", Regexp: true, Append: []string{"# patched"}},
		formulatest.Compile("make"),
	))
	if _, err := fx.driver.Run(context.Background(), fx.job(f)); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if want := "PREFIX = /opt\nCFLAGS = -O3\n# patched\n"; makefile != want {
		t.Errorf("Makefile = %q, want %q", makefile, want)
	}
}

func TestRun_FailFastTearsDown(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, "hello")
	fx.tc.run = func(inv toolchain.Invocation) (toolchain.Result, error) {
		if inv.Tool == "make" {
			return toolchain.Result{ExitCode: 2, Output: "error: missing header"}, nil
		}
		return toolchain.Result{}, nil
	}
	f := formulatest.New("hello", formulatest.WithSteps(
		formula.Step{Action: formula.ActionInstallFiles, From: "build/libhello.so", To: "lib"},
		formulatest.Compile("make"),
		formulatest.Compile("make", "install"),
		formula.Step{Action: formula.ActionSymlink, Target: "lib/libhello.so", Link: "lib/x"},
	))

	_, err := fx.driver.Run(context.Background(), fx.job(f))
	var stepErr *StepFailedError
	if !errors.As(err, &stepErr) {
		t.Fatalf("Run() error = %v, want *StepFailedError", err)
	}
	if stepErr.Index != 2 || stepErr.Action != formula.ActionCompile {
		t.Errorf("failed step = %d (%s), want 2 (compile)", stepErr.Index, stepErr.Action)
	}
	if stepErr.Output != "error: missing header" {
		t.Errorf("Output = %q", stepErr.Output)
	}
	var exitErr *ToolExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode != 2 {
		t.Errorf("cause = %v, want *ToolExitError with status 2", stepErr.Cause)
	}
	if !errors.Is(err, ErrStepFailed) {
		t.Error("errors.Is(err, ErrStepFailed) = false")
	}

	if got := len(fx.tc.calls); got != 1 {
		t.Errorf("tool calls = %d, want 1 (steps after the failure must not run)", got)
	}
	if _, err := os.Stat(fx.kegPath); !os.IsNotExist(err) {
		t.Errorf("keg left behind after failure: %v", err)
	}
	if _, err := os.Stat(fx.layout.RackPath("hello")); !os.IsNotExist(err) {
		t.Errorf("rack left behind after failure: %v", err)
	}
	if !testutil.IsEmptyDir(t, fx.work) {
		t.Error("workspace not removed")
	}
}

func TestRun_CancelBeforeStep(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, "hello")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fx.tc.run = func(toolchain.Invocation) (toolchain.Result, error) {
		cancel()
		return toolchain.Result{}, nil
	}
	f := formulatest.New("hello", formulatest.WithSteps(
		formula.Step{Action: formula.ActionInstallFiles, From: "build/*.so", To: "lib"},
		formulatest.Compile("make"),
		formulatest.Compile("make", "install"),
	))

	_, err := fx.driver.Run(ctx, fx.job(f))
	var cancelErr *CanceledError
	if !errors.As(err, &cancelErr) {
		t.Fatalf("Run() error = %v, want *CanceledError", err)
	}
	if cancelErr.Index != 3 {
		t.Errorf("Index = %d, want 3", cancelErr.Index)
	}
	if !errors.Is(err, context.Canceled) || !errors.Is(err, ErrCanceled) {
		t.Errorf("error chain = %v", err)
	}
	if got := fx.tc.tools(); len(got) != 1 {
		t.Errorf("tools run = %v, want only the first make", got)
	}
	if _, err := os.Stat(fx.kegPath); !os.IsNotExist(err) {
		t.Errorf("keg left behind after cancellation: %v", err)
	}
	if !testutil.IsEmptyDir(t, fx.work) {
		t.Error("workspace not removed")
	}
}

func TestRun_StepErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		step formula.Step
		want error
	}{
		{"patch no match", formula.Step{Action: formula.ActionPatch, File: "Makefile", Find: "nothing-here"}, ErrNoMatch},
		{"glob no match", formula.Step{Action: formula.ActionInstallFiles, From: "*.dylib", To: "lib"}, ErrNoMatch},
		{"install escapes keg", formula.Step{Action: formula.ActionInstallFiles, From: "configure", To: "../../elsewhere"}, ErrOutsideRoot},
		{"patch escapes workspace", formula.Step{Action: formula.ActionPatch, File: "../../etc/passwd", Append: []string{"x"}}, ErrOutsideRoot},
		{"symlink escapes keg", formula.Step{Action: formula.ActionSymlink, Target: "/etc/passwd", Link: "bin/p"}, ErrOutsideRoot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fx := newFixture(t, "hello")
			f := formulatest.New("hello", formulatest.WithSteps(tt.step))
			_, err := fx.driver.Run(context.Background(), fx.job(f))
			var stepErr *StepFailedError
			if !errors.As(err, &stepErr) || stepErr.Index != 1 {
				t.Fatalf("Run() error = %v, want *StepFailedError at step 1", err)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Run() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRun_RenameNeedsSingleMatch(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, "hello")
	f := formulatest.New("hello", formulatest.WithSteps(
		formula.Step{Action: formula.ActionInstallFiles, From: "build/*.so", To: "lib", Rename: "one.so"},
	))
	var stepErr *StepFailedError
	if _, err := fx.driver.Run(context.Background(), fx.job(f)); !errors.As(err, &stepErr) {
		t.Fatalf("Run() error = %v, want *StepFailedError", err)
	}
}

func TestRun_KegExists(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, "hello")
	testutil.MustMkdirAll(t, fx.kegPath, 0o755)
	_, err := fx.driver.Run(context.Background(), fx.job(formulatest.New("hello")))
	if !errors.Is(err, keg.ErrKegExists) {
		t.Fatalf("Run() error = %v, want ErrKegExists", err)
	}
	if _, statErr := os.Stat(fx.kegPath); statErr != nil {
		t.Errorf("existing keg was removed: %v", statErr)
	}
}

func TestRun_LanguageModule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		step     formula.Step
		wantTool string
		wantArgs func(kegPath string) []string
	}{
		{
			formula.Step{Action: formula.ActionLanguageModule, Language: formula.LanguageRust},
			"cargo",
			func(k string) []string { return []string{"install", "--locked", "--root=" + k, "--path=."} },
		},
		{
			formula.Step{Action: formula.ActionLanguageModule, Language: formula.LanguagePython, Args: []string{"./pkg"}},
			"python3",
			func(k string) []string {
				return []string{"-m", "pip", "install", "--prefix=" + k, "--no-deps", "--no-build-isolation", "./pkg"}
			},
		},
		{
			formula.Step{Action: formula.ActionLanguageModule, Language: formula.LanguageGo, Args: []string{"./cmd/hello"}},
			"go",
			func(k string) []string { return []string{"build", "-trimpath", "-o", filepath.Join(k, "bin", "hello"), "./cmd/hello"} },
		},
		{
			formula.Step{Action: formula.ActionLanguageModule, Language: formula.LanguageNode, Tool: "pnpm"},
			"pnpm",
			func(k string) []string { return []string{"install", "-g", "--prefix=" + k, "."} },
		},
	}
	for _, tt := range tests {
		t.Run(string(tt.step.Language), func(t *testing.T) {
			t.Parallel()
			fx := newFixture(t, "hello")
			f := formulatest.New("hello", formulatest.WithSteps(tt.step))
			if _, err := fx.driver.Run(context.Background(), fx.job(f)); err != nil {
				t.Fatalf("Run() error: %v", err)
			}
			call := fx.tc.calls[0]
			if call.Tool != tt.wantTool {
				t.Errorf("Tool = %q, want %q", call.Tool, tt.wantTool)
			}
			if diff := cmp.Diff(tt.wantArgs(fx.kegPath), call.Args); diff != "" {
				t.Errorf("Args mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRun_StepEnvAndDeps(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, "hello")
	step := formulatest.Compile("make")
	step.Env = map[string]string{"CFLAGS": "-I$INCLUDE", "LDFLAGS": "-L$DEP_OPENSSL_3/lib"}
	f := formulatest.New("hello", formulatest.WithSteps(step, formulatest.Compile("true")))

	job := fx.job(f)
	job.Deps = map[formula.Name]string{"openssl@3": "/opt/keg/Cellar/openssl@3/3.2.0"}
	if _, err := fx.driver.Run(context.Background(), job); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	first, second := fx.tc.calls[0].Env, fx.tc.calls[1].Env
	if got := envValue(first, "CFLAGS"); got != "-I"+filepath.Join(fx.kegPath, "include") {
		t.Errorf("CFLAGS = %q", got)
	}
	if got := envValue(first, "LDFLAGS"); got != "-L/opt/keg/Cellar/openssl@3/3.2.0/lib" {
		t.Errorf("LDFLAGS = %q", got)
	}
	if got := envValue(second, "CFLAGS"); got != "" {
		t.Errorf("step env leaked into the next step: CFLAGS = %q", got)
	}
	if got := envValue(first, "PATH"); !strings.HasPrefix(got, "/opt/keg/Cellar/openssl@3/3.2.0/bin:") {
		t.Errorf("PATH = %q, want dependency bin first", got)
	}
}

func TestRun_Deterministic(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, "hello")
	f := formulatest.New("hello", formulatest.WithSteps(
		formula.Step{Action: formula.ActionInstallFiles, From: "build/*.so", To: "lib"},
		formula.Step{Action: formula.ActionSymlink, Target: "lib/libhello.so", Link: "lib/libhello.dylib"},
	))

	var digests []types.Digest
	for range 2 {
		report, err := fx.driver.Run(context.Background(), fx.job(f))
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
		digests = append(digests, report.Digest)
		if err := fx.layout.Remove(fx.kegPath); err != nil {
			t.Fatal(err)
		}
	}
	if digests[0] != digests[1] {
		t.Errorf("digests differ across identical runs: %s vs %s", digests[0], digests[1])
	}
}

func TestHostEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{"PATH": "/bin", "HOME": "/home/u", "SECRET_TOKEN": "x"}
	got := HostEnv(func(k string) string { return env[k] })
	if diff := cmp.Diff([]string{"PATH=/bin", "HOME=/home/u"}, got); diff != "" {
		t.Errorf("HostEnv mismatch (-want +got):\n%s", diff)
	}
}
