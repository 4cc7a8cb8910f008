// SPDX-License-Identifier: MPL-2.0

// Package keg manages the install prefix: where kegs live, the receipt each
// keg carries, the opt links that point at the active version and the tree
// digest used to detect changes to an installed keg.
package keg

import (
	"path/filepath"

	"github.com/kegbrew/kegbrew/pkg/formula"
)

// Placeholders baked into relocatable bottles, rewritten on pour.
const (
	PrefixPlaceholder = "@@KEG_PREFIX@@"
	CellarPlaceholder = "@@KEG_CELLAR@@"
)

// Layout locates kegs below an install prefix.
//
//	<prefix>/Cellar/<name>/<version>   installed kegs
//	<prefix>/opt/<name>                link to the active keg
//	<prefix>/var/lock                  per-formula lock files
type Layout struct {
	Prefix string
	// Cellar defaults to <prefix>/Cellar.
	Cellar string
}

// NewLayout returns the layout for prefix, with cellar defaulting below it.
func NewLayout(prefix, cellar string) Layout {
	if cellar == "" {
		cellar = filepath.Join(prefix, "Cellar")
	}
	return Layout{Prefix: filepath.Clean(prefix), Cellar: filepath.Clean(cellar)}
}

// KegPath is the directory a formula version is installed into.
func (l Layout) KegPath(name formula.Name, version string) string {
	return filepath.Join(l.Cellar, string(name), version)
}

// RackPath is the parent of every installed version of name.
func (l Layout) RackPath(name formula.Name) string {
	return filepath.Join(l.Cellar, string(name))
}

// OptPath is the stable link to the active version of name.
func (l Layout) OptPath(name formula.Name) string {
	return filepath.Join(l.Prefix, "opt", string(name))
}

// LockDir holds the per-formula lock files.
func (l Layout) LockDir() string {
	return filepath.Join(l.Prefix, "var", "lock")
}
