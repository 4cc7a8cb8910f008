// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTag is the sentinel error wrapped by InvalidTagError.
var ErrInvalidTag = errors.New("invalid bottle tag")

// Tag specificity ranks; higher wins when several tags match a fingerprint.
const (
	SpecificityAll     = -1
	SpecificityFamily  = 0
	SpecificityArch    = 1
	SpecificityVersion = 2
	SpecificityExact   = 3

	tagAll           = "all"
	tagAnyArchPrefix = "any_"
)

type (
	// Tag is a parsed bottle tag. Empty fields are wildcards; an empty OS
	// means the "all" tag.
	Tag struct {
		Raw       string
		OS        OSFamily
		OSVersion string
		Arch      Arch
	}

	// InvalidTagError is returned when a bottle tag does not follow the grammar.
	InvalidTagError struct {
		Value string
	}
)

// Error implements the error interface.
func (e *InvalidTagError) Error() string {
	return fmt.Sprintf("invalid bottle tag %q", e.Value)
}

// Unwrap returns ErrInvalidTag for errors.Is() compatibility.
func (e *InvalidTagError) Unwrap() error { return ErrInvalidTag }

// ParseTag parses a bottle tag:
//
//	all                 any platform
//	macos, linux        OS family, any version and arch
//	arm64_linux         linux on arm64
//	arm64_macos         macOS on arm64, any version
//	arm64_sonoma        macOS sonoma on arm64
//	sonoma              macOS sonoma on x86_64
//	any_sonoma          macOS sonoma, any arch
func ParseTag(s string) (Tag, error) {
	raw := s
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case tagAll:
		return Tag{Raw: raw}, nil
	case string(OSMacOS), string(OSLinux):
		return Tag{Raw: raw, OS: OSFamily(s)}, nil
	}

	arch, rest := splitArch(s)
	if rest == "" {
		return Tag{}, &InvalidTagError{Value: raw}
	}
	switch {
	case rest == string(OSLinux):
		if arch == "" {
			return Tag{}, &InvalidTagError{Value: raw}
		}
		return Tag{Raw: raw, OS: OSLinux, Arch: arch}, nil
	case rest == string(OSMacOS):
		if arch == "" {
			return Tag{}, &InvalidTagError{Value: raw}
		}
		return Tag{Raw: raw, OS: OSMacOS, Arch: arch}, nil
	case strings.HasPrefix(s, tagAnyArchPrefix):
		codename := strings.TrimPrefix(s, tagAnyArchPrefix)
		if !IsMacOSCodename(codename) {
			return Tag{}, &InvalidTagError{Value: raw}
		}
		return Tag{Raw: raw, OS: OSMacOS, OSVersion: codename}, nil
	case IsMacOSCodename(rest):
		if arch == "" {
			arch = ArchX86_64
		}
		return Tag{Raw: raw, OS: OSMacOS, OSVersion: rest, Arch: arch}, nil
	default:
		return Tag{}, &InvalidTagError{Value: raw}
	}
}

// MustParseTag is ParseTag for literals.
func MustParseTag(s string) Tag {
	t, err := ParseTag(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Matches reports whether the tag covers fp.
func (t Tag) Matches(fp Fingerprint) bool {
	if t.OS == "" {
		return true
	}
	if t.OS != fp.OS {
		return false
	}
	if t.Arch != "" && t.Arch != fp.Arch {
		return false
	}
	if t.OSVersion != "" && t.OSVersion != fp.OSVersion {
		return false
	}
	return true
}

// Specificity ranks the tag: version+arch > version > arch > family > all.
func (t Tag) Specificity() int {
	if t.OS == "" {
		return SpecificityAll
	}
	score := SpecificityFamily
	if t.OSVersion != "" {
		score += SpecificityVersion
	}
	if t.Arch != "" {
		score += SpecificityArch
	}
	return score
}

// Key returns a canonical spelling used to detect duplicate tags.
func (t Tag) Key() string {
	return fmt.Sprintf("%s|%s|%s", t.OS, t.OSVersion, t.Arch)
}

func (t Tag) String() string { return t.Raw }

func splitArch(s string) (Arch, string) {
	for _, a := range []Arch{ArchX86_64, ArchARM64} {
		if strings.HasPrefix(s, string(a)+"_") {
			return a, strings.TrimPrefix(s, string(a)+"_")
		}
	}
	if strings.HasPrefix(s, tagAnyArchPrefix) {
		return "", strings.TrimPrefix(s, tagAnyArchPrefix)
	}
	return "", s
}
