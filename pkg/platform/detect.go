// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
)

// ErrUnsupportedHost is returned when the host OS or architecture has no
// fingerprint representation.
var ErrUnsupportedHost = errors.New("unsupported host platform")

var (
	appleClangBuildRe = regexp.MustCompile(`clang-(\d+(?:\.\d+)*)`)
	versionRe         = regexp.MustCompile(`\d+\.\d+(?:\.\d+)*`)
)

type (
	// Probe is the host surface Detect reads. Tests substitute every field.
	Probe struct {
		GOOS   string
		GOARCH string
		// Output runs a command and returns its combined output.
		Output func(ctx context.Context, name string, args ...string) (string, error)
		// ReadFile reads a file from the host filesystem.
		ReadFile func(path string) ([]byte, error)
	}
)

// HostProbe returns a Probe backed by the running process.
func HostProbe() Probe {
	return Probe{
		GOOS:   runtime.GOOS,
		GOARCH: runtime.GOARCH,
		Output: func(ctx context.Context, name string, args ...string) (string, error) {
			out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
			return string(out), err
		},
		ReadFile: os.ReadFile,
	}
}

// Detect builds a Fingerprint for the host described by probe. A missing C
// compiler is not an error: the fingerprint simply carries no compiler.
func Detect(ctx context.Context, probe Probe) (Fingerprint, error) {
	osFamily, ok := OSFamilyFromGOOS(probe.GOOS)
	if !ok {
		return Fingerprint{}, fmt.Errorf("%w: GOOS=%s", ErrUnsupportedHost, probe.GOOS)
	}
	arch, ok := ArchFromGOARCH(probe.GOARCH)
	if !ok {
		return Fingerprint{}, fmt.Errorf("%w: GOARCH=%s", ErrUnsupportedHost, probe.GOARCH)
	}

	fp := Fingerprint{OS: osFamily, Arch: arch}
	switch osFamily {
	case OSMacOS:
		if probe.Output != nil {
			if out, err := probe.Output(ctx, "sw_vers", "-productVersion"); err == nil {
				if codename, ok := CanonicalMacOS(out); ok {
					fp.OSVersion = codename
				}
			}
		}
	case OSLinux:
		if probe.ReadFile != nil {
			if data, err := probe.ReadFile("/etc/os-release"); err == nil {
				fp.OSVersion = linuxRelease(data)
			}
		}
	}

	if probe.Output != nil {
		if out, err := probe.Output(ctx, "cc", "--version"); err == nil {
			fp.Compiler = ParseCompilerVersion(out)
		}
	}
	return fp, nil
}

// ParseCompilerVersion extracts the compiler identity from `cc --version`
// output. Apple clang is identified by its build number, which is what
// fails_with rules for clang compare against.
func ParseCompilerVersion(out string) Compiler {
	first, _, _ := strings.Cut(out, "\n")
	lower := strings.ToLower(first)
	switch {
	case strings.Contains(lower, "apple clang") || strings.Contains(lower, "apple llvm"):
		if m := appleClangBuildRe.FindStringSubmatch(first); m != nil {
			return Compiler{Family: CompilerClang, Version: m[1]}
		}
		return Compiler{Family: CompilerClang, Version: versionRe.FindString(first)}
	case strings.Contains(lower, "clang"):
		return Compiler{Family: CompilerLLVMClang, Version: versionRe.FindString(first)}
	case strings.Contains(lower, "gcc") || strings.Contains(lower, "free software foundation") || strings.HasPrefix(lower, "cc "):
		return Compiler{Family: CompilerGCC, Version: versionRe.FindString(first)}
	default:
		return Compiler{}
	}
}

// linuxRelease renders /etc/os-release as "<id>-<version_id>".
func linuxRelease(data []byte) string {
	var id, version string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		key, val, ok := strings.Cut(sc.Text(), "=")
		if !ok {
			continue
		}
		val = strings.Trim(val, `"'`)
		switch key {
		case "ID":
			id = val
		case "VERSION_ID":
			version = val
		}
	}
	switch {
	case id == "":
		return ""
	case version == "":
		return id
	default:
		return id + "-" + version
	}
}
