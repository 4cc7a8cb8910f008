// SPDX-License-Identifier: MPL-2.0

package formula

import (
	"strings"
	"testing"

	"github.com/kegbrew/kegbrew/pkg/platform"
)

const validDigest = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

func validFormula() *Formula {
	return &Formula{
		Name:    "geogram",
		Version: "1.9.2",
		URL:     "https://example.org/geogram-1.9.2.tar.gz",
		SHA256:  validDigest,
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mutate    func(f *Formula)
		wantField string
	}{
		{"valid", func(*Formula) {}, ""},
		{"head only", func(f *Formula) { f.URL, f.SHA256, f.Head = "", "", &Head{URL: "https://e/x.git"} }, ""},
		{"no source", func(f *Formula) { f.URL, f.SHA256 = "", "" }, "url"},
		{"missing hash", func(f *Formula) { f.SHA256 = "" }, "sha256"},
		{"bad name", func(f *Formula) { f.Name = "Geogram" }, "name"},
		{"two license shapes", func(f *Formula) { f.License = &License{SPDX: "MIT", CannotRepresent: true} }, "license"},
		{"self dependency", func(f *Formula) { f.DependsOn = []Dependency{{Name: "geogram", Kind: KindRun}} }, "depends_on[0]"},
		{"duplicate dependency", func(f *Formula) {
			f.DependsOn = []Dependency{{Name: "cmake", Kind: KindBuild}, {Name: "cmake", Kind: KindBuild}}
		}, "depends_on[1]"},
		{"bad predicate", func(f *Formula) {
			f.DependsOn = []Dependency{{Name: "llvm", Kind: KindBuild, When: &platform.Predicate{OS: "beos"}}}
		}, "depends_on[0].when"},
		{"duplicate tag", func(f *Formula) {
			f.Bottle = &Bottle{Files: []BottleFile{
				{Tag: "sonoma", Cellar: CellarAny, SHA256: validDigest},
				{Tag: "x86_64_sonoma", Cellar: CellarAny, SHA256: validDigest},
			}}
		}, "bottle.files[1].tag"},
		{"relative cellar", func(f *Formula) {
			f.Bottle = &Bottle{Files: []BottleFile{{Tag: "x86_64_linux", Cellar: "Cellar", SHA256: validDigest}}}
		}, "bottle.files[0].cellar"},
		{"bad fails_with", func(f *Formula) {
			f.FailsWith = []FailsWith{{Compiler: platform.CompilerGCC, Version: "five", Cause: "x"}}
		}, "fails_with[0].version"},
		{"patch without find", func(f *Formula) { f.Install = []Step{{Action: ActionPatch, File: "Makefile"}} }, "install[0]"},
		{"compile without tool", func(f *Formula) { f.Install = []Step{{Action: ActionCompile}} }, "install[0].tool"},
		{"escaping install target", func(f *Formula) {
			f.Install = []Step{{Action: ActionInstallFiles, From: "bin/x", To: "../etc"}}
		}, "install[0].to"},
		{"unknown language", func(f *Formula) { f.Install = []Step{{Action: ActionLanguageModule, Language: "cobol"}} }, "install[0].language"},
		{"bad expect", func(f *Formula) {
			f.Test = &TestProcedure{Commands: []TestCommand{{Run: "x", Expect: "("}}}
		}, "test.commands[0].expect"},
		{"service", func(f *Formula) { f.Service = &Service{Run: []string{"bin/geogram"}} }, ""},
		{"service without program", func(f *Formula) { f.Service = &Service{} }, "service.run"},
		{"unknown service run type", func(f *Formula) {
			f.Service = &Service{Run: []string{"bin/geogram"}, RunType: "cron"}
		}, "service.run_type"},
		{"interval service without interval", func(f *Formula) {
			f.Service = &Service{Run: []string{"bin/geogram"}, RunType: ServiceInterval}
		}, "service.interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := validFormula()
			tt.mutate(f)
			errs := f.Validate()
			if tt.wantField == "" {
				if len(errs) > 0 {
					t.Fatalf("Validate() = %v, want no errors", errs)
				}
				return
			}
			for _, e := range errs {
				if e.Field == tt.wantField {
					return
				}
			}
			t.Fatalf("Validate() = %v, want an error on %s", errs, tt.wantField)
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Parallel()

	errs := ValidationErrors{{Field: "name", Message: "bad"}, {Field: "url", Message: "missing"}}
	got := errs.Error()
	if !strings.HasPrefix(got, "validation failed with 2 errors:") || !strings.Contains(got, "- url: missing") {
		t.Errorf("Error() = %q", got)
	}
}

func TestLicense_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		l    *License
		want string
	}{
		{nil, ""},
		{&License{SPDX: "MIT"}, "MIT"},
		{&License{AllOf: []string{"MIT", "Apache-2.0"}}, "MIT AND Apache-2.0"},
		{&License{AnyOf: []string{"GPL-2.0-only", "MIT"}}, "GPL-2.0-only OR MIT"},
		{&License{CannotRepresent: true}, "cannot represent"},
	}
	for _, tt := range tests {
		if got := tt.l.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestKegVersion(t *testing.T) {
	t.Parallel()

	f := validFormula()
	if got := f.KegVersion(false); got != "1.9.2" {
		t.Errorf("KegVersion(false) = %q", got)
	}
	if got := f.KegVersion(true); got != HeadVersion {
		t.Errorf("KegVersion(true) = %q", got)
	}
}
