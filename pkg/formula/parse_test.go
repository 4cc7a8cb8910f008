// SPDX-License-Identifier: MPL-2.0

package formula

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kegbrew/kegbrew/pkg/cueutil"
	"github.com/kegbrew/kegbrew/pkg/platform"
)

const typstCUE = `
name:     "typst"
desc:     "Markup-based typesetting system"
homepage: "https://typst.app/"
version:  "0.12.0"
url:      "https://github.com/typst/typst/archive/refs/tags/v0.12.0.tar.gz"
sha256:   "5e92463965c0cb6f4e2bd5b1a5a6e2b1d0f9c7b8a6e5d4c3b2a1908f7e6d1266"
head: {url: "https://github.com/typst/typst.git", branch: "main"}
license: {spdx: "Apache-2.0"}
depends_on: [
	{name: "rust", kind: "build"},
	{name: "openssl@3", when: {os: "linux"}},
	{name: "pkgconf", kind: "build", when: {os: "linux"}},
]
bottle: files: [
	{tag: "arm64_sonoma", cellar: "any_skip_relocation", sha256: "1111111111111111111111111111111111111111111111111111111111111111"},
	{tag: "x86_64_linux", cellar: "any_skip_relocation", sha256: "2222222222222222222222222222222222222222222222222222222222222222"},
]
install: [
	{action: "language_module", language: "rust", args: ["--locked", "crates/typst-cli"]},
	{action: "install_files", from: "crates/typst-cli/artifacts/typst.1", to: "share/man/man1"},
	{action: "install_files", from: "crates/typst-cli/artifacts/typst.bash", to: "etc/bash_completion.d", rename: "typst", when: {os: "linux"}},
]
test: commands: [
	{run: "typst compile Hello.typ Hello.pdf", creates: "Hello.pdf"},
	{run: "typst --version", expect: "0\\.12\\.0"},
]
caveats: [
	{text: "Fonts are read from ~/Library/Fonts.", when: {os: "macos"}},
	{text: "Run typst fonts to list detected fonts."},
]
`

var (
	sonomaARM = platform.Fingerprint{OS: platform.OSMacOS, OSVersion: "sonoma", Arch: platform.ArchARM64}
	linuxX86  = platform.Fingerprint{OS: platform.OSLinux, Arch: platform.ArchX86_64}
)

func TestParseBytes(t *testing.T) {
	t.Parallel()

	f, err := ParseBytes([]byte(typstCUE), "typst.cue")
	if err != nil {
		t.Fatalf("ParseBytes() error: %v", err)
	}
	if f.Name != "typst" || f.Version != "0.12.0" || f.FilePath != "typst.cue" {
		t.Errorf("unexpected header fields: %+v", f)
	}
	if f.DependsOn[1].Kind != KindRun {
		t.Errorf("default dependency kind = %q, want run", f.DependsOn[1].Kind)
	}
	if f.Bottle.Rebuild != 0 || len(f.Bottle.Files) != 2 {
		t.Errorf("bottle = %+v", f.Bottle)
	}
	if f.Test.Commands[0].ExitCode != 0 {
		t.Errorf("default exit_code = %d", f.Test.Commands[0].ExitCode)
	}
	if got := f.License.String(); got != "Apache-2.0" {
		t.Errorf("License.String() = %q", got)
	}
	if f.IsHeadOnly() {
		t.Error("typst has a stable url")
	}
}

func TestParseBytes_Service(t *testing.T) {
	t.Parallel()

	data := `name: "deskflow", head: {url: "https://github.com/deskflow/deskflow.git"}
license: cannot_represent: true
service: {run: ["bin/deskflow"], run_type: "immediate"}`
	f, err := ParseBytes([]byte(data), "deskflow.cue")
	if err != nil {
		t.Fatalf("ParseBytes() error: %v", err)
	}
	if got := f.Service.String(); got != "bin/deskflow (immediate)" {
		t.Errorf("Service.String() = %q", got)
	}

	_, err = ParseBytes([]byte(`name: "x", head: {url: "https://e/x.git"}, service: {run: [], run_type: "cron"}`), "x.cue")
	var cerr *cueutil.Error
	if !errors.As(err, &cerr) {
		t.Errorf("error = %v, want the schema to reject an empty run and unknown run_type", err)
	}
}

func TestService_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		svc  Service
		want string
	}{
		{Service{Run: []string{"bin/redis-server", "etc/redis.conf"}}, "bin/redis-server etc/redis.conf (immediate)"},
		{Service{Run: []string{"bin/backup"}, RunType: ServiceInterval, Interval: 3600}, "bin/backup (every 3600s)"},
		{Service{Run: []string{"bin/agent"}, KeepAlive: true}, "bin/agent (immediate, keep alive)"},
	}
	for _, tt := range tests {
		if got := tt.svc.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestParse_File(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "typst.cue")
	if err := os.WriteFile(path, []byte(typstCUE), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if f.FilePath != path {
		t.Errorf("FilePath = %q, want %q", f.FilePath, path)
	}

	if _, err := Parse(filepath.Join(dir, "missing.cue")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Parse(missing) error = %v, want ErrNotExist", err)
	}
}

func TestParseBytes_SchemaViolation(t *testing.T) {
	t.Parallel()

	data := `name: "x", url: "https://e/x.tgz", sha256: "abc", version: "1"`
	_, err := ParseBytes([]byte(data), "x.cue")
	var cerr *cueutil.Error
	if !errors.As(err, &cerr) {
		t.Fatalf("error = %v (%T), want *cueutil.Error", err, err)
	}
}

func TestParseBytes_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := ParseBytes([]byte(`name: "x", head: {url: "https://e/x.git"}, livecheck: {}`), "x.cue")
	if err == nil || !strings.Contains(err.Error(), "livecheck") {
		t.Fatalf("error = %v, want livecheck rejected by the closed schema", err)
	}
}

func TestFilters(t *testing.T) {
	t.Parallel()

	f, err := ParseBytes([]byte(typstCUE), "typst.cue")
	if err != nil {
		t.Fatal(err)
	}

	if got := depNames(f.DependenciesFor(sonomaARM)); got != "rust" {
		t.Errorf("DependenciesFor(macos) = %s, want rust", got)
	}
	if got := depNames(f.DependenciesFor(linuxX86)); got != "rust,openssl@3,pkgconf" {
		t.Errorf("DependenciesFor(linux) = %s", got)
	}

	if got := len(f.StepsFor(sonomaARM)); got != 2 {
		t.Errorf("StepsFor(macos) = %d steps, want 2", got)
	}
	if got := len(f.StepsFor(linuxX86)); got != 3 {
		t.Errorf("StepsFor(linux) = %d steps, want 3", got)
	}

	macCaveats := f.CaveatsFor(sonomaARM)
	if !strings.Contains(macCaveats, "~/Library/Fonts") || !strings.Contains(macCaveats, "typst fonts") {
		t.Errorf("CaveatsFor(macos) = %q", macCaveats)
	}
	if strings.Contains(f.CaveatsFor(linuxX86), "Library") {
		t.Error("macOS caveat leaked onto linux")
	}
}

func TestStepsFor_ReturnsCopies(t *testing.T) {
	t.Parallel()

	f, err := ParseBytes([]byte(typstCUE), "typst.cue")
	if err != nil {
		t.Fatal(err)
	}
	steps := f.StepsFor(linuxX86)
	steps[0].Args[0] = "--mutated"
	if f.Install[0].Args[0] != "--locked" {
		t.Error("mutating a filtered step changed the descriptor")
	}
}

func depNames(deps []Dependency) string {
	names := make([]string, 0, len(deps))
	for _, d := range deps {
		names = append(names, string(d.Name))
	}
	return strings.Join(names, ",")
}
