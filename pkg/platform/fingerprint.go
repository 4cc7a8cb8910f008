// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidOSFamily is the sentinel error wrapped by InvalidOSFamilyError.
	ErrInvalidOSFamily = errors.New("invalid OS family")
	// ErrInvalidArch is the sentinel error wrapped by InvalidArchError.
	ErrInvalidArch = errors.New("invalid architecture")
	// ErrInvalidOSVersion is returned for a macOS version that is not a known release.
	ErrInvalidOSVersion = errors.New("invalid OS version")
)

type (
	// OSFamily is the operating system family ("macos" or "linux").
	OSFamily string

	// Arch is the CPU architecture in bottle-tag spelling ("arm64", "x86_64").
	Arch string

	// CompilerFamily identifies a C/C++ toolchain.
	CompilerFamily string

	// Compiler is the toolchain identity of a fingerprint. Version is kept as
	// reported (Apple clang build numbers like "1500.3.9.4" included).
	Compiler struct {
		Family  CompilerFamily `json:"family,omitempty" yaml:"family,omitempty"`
		Version string         `json:"version,omitempty" yaml:"version,omitempty"`
	}

	// Fingerprint identifies a target platform. For macOS, OSVersion is a
	// codename ("sonoma"); for Linux it is free-form ("ubuntu-22.04") or empty.
	Fingerprint struct {
		OS        OSFamily `json:"os" yaml:"os"`
		OSVersion string   `json:"os_version,omitempty" yaml:"os_version,omitempty"`
		Arch      Arch     `json:"arch" yaml:"arch"`
		Compiler  Compiler `json:"compiler,omitzero" yaml:"compiler,omitempty"`
	}

	// InvalidOSFamilyError is returned for an unsupported OS family.
	InvalidOSFamilyError struct {
		Value OSFamily
	}

	// InvalidArchError is returned for an unsupported architecture.
	InvalidArchError struct {
		Value Arch
	}
)

// Error implements the error interface.
func (e *InvalidOSFamilyError) Error() string {
	return fmt.Sprintf("invalid OS family %q (expected macos or linux)", string(e.Value))
}

// Unwrap returns ErrInvalidOSFamily for errors.Is() compatibility.
func (e *InvalidOSFamilyError) Unwrap() error { return ErrInvalidOSFamily }

// Error implements the error interface.
func (e *InvalidArchError) Error() string {
	return fmt.Sprintf("invalid architecture %q (expected arm64 or x86_64)", string(e.Value))
}

// Unwrap returns ErrInvalidArch for errors.Is() compatibility.
func (e *InvalidArchError) Unwrap() error { return ErrInvalidArch }

// IsValid returns whether the OSFamily is supported.
func (o OSFamily) IsValid() (bool, []error) {
	switch o {
	case OSMacOS, OSLinux:
		return true, nil
	default:
		return false, []error{&InvalidOSFamilyError{Value: o}}
	}
}

// IsValid returns whether the Arch is supported.
func (a Arch) IsValid() (bool, []error) {
	switch a {
	case ArchARM64, ArchX86_64:
		return true, nil
	default:
		return false, []error{&InvalidArchError{Value: a}}
	}
}

// IsValid checks every field of the fingerprint.
func (f Fingerprint) IsValid() (bool, []error) {
	var errs []error
	if ok, fieldErrs := f.OS.IsValid(); !ok {
		errs = append(errs, fieldErrs...)
	}
	if ok, fieldErrs := f.Arch.IsValid(); !ok {
		errs = append(errs, fieldErrs...)
	}
	if f.OS == OSMacOS && f.OSVersion != "" && !IsMacOSCodename(f.OSVersion) {
		errs = append(errs, fmt.Errorf("%w: unknown macOS release %q", ErrInvalidOSVersion, f.OSVersion))
	}
	return len(errs) == 0, errs
}

// Equal reports field-wise equality.
func (f Fingerprint) Equal(o Fingerprint) bool { return f == o }

// WithOverrides returns a copy of f where every non-empty field of o wins.
// macOS versions in o may be product versions; they are canonicalised.
func (f Fingerprint) WithOverrides(o Fingerprint) Fingerprint {
	if o.OS != "" {
		f.OS = o.OS
	}
	if o.Arch != "" {
		f.Arch = o.Arch
	}
	if o.OSVersion != "" {
		f.OSVersion = o.OSVersion
		if f.OS == OSMacOS {
			if c, ok := CanonicalMacOS(o.OSVersion); ok {
				f.OSVersion = c
			}
		}
	}
	if o.Compiler.Family != "" {
		f.Compiler.Family = o.Compiler.Family
	}
	if o.Compiler.Version != "" {
		f.Compiler.Version = o.Compiler.Version
	}
	return f
}

// Tag returns the exact bottle tag for this fingerprint, e.g. "arm64_sonoma",
// "sonoma" (Intel macOS) or "x86_64_linux".
func (f Fingerprint) Tag() string {
	switch f.OS {
	case OSLinux:
		return string(f.Arch) + "_linux"
	case OSMacOS:
		if f.OSVersion == "" {
			return string(f.Arch) + "_macos"
		}
		if f.Arch == ArchX86_64 {
			return f.OSVersion
		}
		return string(f.Arch) + "_" + f.OSVersion
	default:
		return string(f.Arch) + "_" + string(f.OS)
	}
}

// String renders the fingerprint as "os[/version] arch [compiler-version]".
func (f Fingerprint) String() string {
	var b strings.Builder
	b.WriteString(string(f.OS))
	if f.OSVersion != "" {
		b.WriteString("/")
		b.WriteString(f.OSVersion)
	}
	b.WriteString(" ")
	b.WriteString(string(f.Arch))
	if f.Compiler.Family != "" {
		b.WriteString(" ")
		b.WriteString(string(f.Compiler.Family))
		if f.Compiler.Version != "" {
			b.WriteString("-")
			b.WriteString(f.Compiler.Version)
		}
	}
	return b.String()
}
