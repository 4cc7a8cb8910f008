// SPDX-License-Identifier: MPL-2.0

package gate

import (
	"errors"
	"testing"

	"github.com/kegbrew/kegbrew/pkg/formula"
	"github.com/kegbrew/kegbrew/pkg/platform"
)

func fp(family platform.CompilerFamily, version string) platform.Fingerprint {
	return platform.Fingerprint{
		OS: platform.OSLinux, Arch: platform.ArchX86_64,
		Compiler: platform.Compiler{Family: family, Version: version},
	}
}

func TestCheck(t *testing.T) {
	t.Parallel()

	geogram := &formula.Formula{
		Name: "geogram",
		FailsWith: []formula.FailsWith{
			{Compiler: platform.CompilerClang, Version: "<= 1402", Cause: "needs std::ranges"},
			{Compiler: platform.CompilerGCC, Version: "5", Cause: "ICE in gcc 5"},
		},
	}
	needsGCC8 := &formula.Formula{
		Name:      "x",
		FailsWith: []formula.FailsWith{{Compiler: platform.CompilerGCC, Version: "< 8", Cause: "requires gcc 8 or newer"}},
	}
	noClang := &formula.Formula{
		Name:      "deskflow",
		FailsWith: []formula.FailsWith{{Compiler: platform.CompilerClang, Cause: "uses GNU extensions"}},
	}

	tests := []struct {
		name      string
		f         *formula.Formula
		fp        platform.Fingerprint
		path      Path
		wantCause string
	}{
		{"clang at bound blocks build", geogram, fp(platform.CompilerClang, "1402"), PathBuild, "needs std::ranges"},
		{"clang at bound allows bottle", geogram, fp(platform.CompilerClang, "1402"), PathBottle, ""},
		{"newer clang builds", geogram, fp(platform.CompilerClang, "1500.3.9.4"), PathBuild, ""},
		{"gcc 5.x blocked", geogram, fp(platform.CompilerGCC, "5.4.0"), PathBuild, "ICE in gcc 5"},
		{"gcc 6 allowed", geogram, fp(platform.CompilerGCC, "6.1"), PathBuild, ""},
		{"gcc 5 below minimum", needsGCC8, fp(platform.CompilerGCC, "5"), PathBuild, "requires gcc 8 or newer"},
		{"gcc 8 meets minimum", needsGCC8, fp(platform.CompilerGCC, "8.1.0"), PathBuild, ""},
		{"gcc 5 may pour bottle", needsGCC8, fp(platform.CompilerGCC, "5"), PathBottle, ""},
		{"every clang blocked", noClang, fp(platform.CompilerClang, "1600"), PathBuild, "uses GNU extensions"},
		{"other family ignored", noClang, fp(platform.CompilerGCC, "13"), PathBuild, ""},
		{"unknown version fails closed", needsGCC8, fp(platform.CompilerGCC, "unknown"), PathBuild, "requires gcc 8 or newer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Check(tt.f, tt.fp, tt.path)
			if tt.wantCause == "" {
				if err != nil {
					t.Fatalf("Check() error = %v, want nil", err)
				}
				return
			}
			var incompatible *ToolchainIncompatibleError
			if !errors.As(err, &incompatible) {
				t.Fatalf("Check() error = %v, want ToolchainIncompatibleError", err)
			}
			if incompatible.Cause != tt.wantCause {
				t.Errorf("Cause = %q, want %q", incompatible.Cause, tt.wantCause)
			}
			if !errors.Is(err, ErrToolchainIncompatible) {
				t.Error("error should wrap ErrToolchainIncompatible")
			}
		})
	}
}
