// SPDX-License-Identifier: MPL-2.0

// Package semver wraps github.com/Masterminds/semver/v3 for toolchain
// versions. Compiler versions in the wild rarely follow semver: Apple clang
// reports build numbers ("1500"), gcc reports "13.2.0" and some toolchains
// append a fourth component ("1500.3.9.4"). ParseVersion keeps the first
// three numeric components so all of them compare ordinally.
package semver

import (
	"errors"
	"fmt"
	"strings"

	mm "github.com/Masterminds/semver/v3"
)

// ErrEmptyVersion is returned when parsing an empty version string.
var ErrEmptyVersion = errors.New("semver: empty version")

type (
	// Version is a normalised toolchain version.
	Version struct {
		v *mm.Version
	}

	// Constraint is a version predicate such as "<= 1402", ">= 8" or "5"
	// (any 5.x release).
	Constraint struct {
		raw string
		c   *mm.Constraints
	}
)

// ParseVersion parses raw, dropping anything past the third numeric component
// and any vendor suffix after the numeric prefix.
func ParseVersion(raw string) (Version, error) {
	norm := normalize(raw)
	if norm == "" {
		return Version{}, fmt.Errorf("semver: parse version %q: %w", raw, ErrEmptyVersion)
	}
	v, err := mm.NewVersion(norm)
	if err != nil {
		return Version{}, fmt.Errorf("semver: parse version %q: %w", raw, err)
	}
	return Version{v: v}, nil
}

// MustParseVersion is ParseVersion for literals in tests and tables.
func MustParseVersion(raw string) Version {
	v, err := ParseVersion(raw)
	if err != nil {
		panic(err)
	}
	return v
}

// ParseConstraint parses a Masterminds constraint expression.
func ParseConstraint(raw string) (Constraint, error) {
	c, err := mm.NewConstraint(strings.TrimSpace(raw))
	if err != nil {
		return Constraint{}, fmt.Errorf("semver: parse constraint %q: %w", raw, err)
	}
	return Constraint{raw: raw, c: c}, nil
}

// MustParseConstraint is ParseConstraint for literals.
func MustParseConstraint(raw string) Constraint {
	c, err := ParseConstraint(raw)
	if err != nil {
		panic(err)
	}
	return c
}

// Satisfies reports whether v satisfies c. The zero Version satisfies nothing.
func Satisfies(v Version, c Constraint) bool {
	if v.v == nil || c.c == nil {
		return false
	}
	return c.c.Check(v.v)
}

// Compare compares a and b, returning:
// -1 if a < b
//
//	0 if a == b
//	1 if a > b
func Compare(a, b Version) int {
	if a.v == nil && b.v == nil {
		return 0
	}
	if a.v == nil {
		return -1
	}
	if b.v == nil {
		return 1
	}
	return a.v.Compare(b.v)
}

// String returns the normalised version.
func (v Version) String() string {
	if v.v == nil {
		return ""
	}
	return v.v.String()
}

// String returns the constraint as written.
func (c Constraint) String() string { return c.raw }

func normalize(raw string) string {
	s := strings.TrimPrefix(strings.TrimSpace(raw), "v")
	// Keep only the leading run of digits and dots.
	end := 0
	for end < len(s) && (s[end] == '.' || (s[end] >= '0' && s[end] <= '9')) {
		end++
	}
	s = strings.Trim(s[:end], ".")
	if s == "" {
		return ""
	}
	parts := strings.Split(s, ".")
	if len(parts) > 3 {
		parts = parts[:3]
	}
	return strings.Join(parts, ".")
}
