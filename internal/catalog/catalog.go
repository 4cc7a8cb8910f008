// SPDX-License-Identifier: MPL-2.0

// Package catalog is the read-only store of formula descriptors. A Catalog
// is built once, then shared by pointer with every resolution; nothing
// mutates it after construction.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/kegbrew/kegbrew/pkg/formula"
)

// formulaGlob selects descriptor files below a formula directory.
const formulaGlob = "**/*.cue"

// ErrDuplicateFormula is the sentinel error wrapped by DuplicateFormulaError.
var ErrDuplicateFormula = errors.New("duplicate formula")

type (
	// Catalog maps formula names to descriptors.
	Catalog struct {
		formulas map[formula.Name]*formula.Formula
	}

	// DuplicateFormulaError is returned when two descriptors share a name.
	DuplicateFormulaError struct {
		Name   formula.Name
		First  string
		Second string
	}
)

// Error implements the error interface.
func (e *DuplicateFormulaError) Error() string {
	return fmt.Sprintf("formula %q defined twice (%s and %s)", e.Name, e.First, e.Second)
}

// Unwrap returns ErrDuplicateFormula for errors.Is() compatibility.
func (e *DuplicateFormulaError) Unwrap() error { return ErrDuplicateFormula }

// New builds a catalog from already parsed descriptors.
func New(formulas ...*formula.Formula) (*Catalog, error) {
	c := &Catalog{formulas: make(map[formula.Name]*formula.Formula, len(formulas))}
	var errs []error
	for _, f := range formulas {
		if prev, ok := c.formulas[f.Name]; ok {
			errs = append(errs, &DuplicateFormulaError{Name: f.Name, First: prev.FilePath, Second: f.FilePath})
			continue
		}
		c.formulas[f.Name] = f
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return c, nil
}

// MustNew is New for test fixtures.
func MustNew(formulas ...*formula.Formula) *Catalog {
	c, err := New(formulas...)
	if err != nil {
		panic(err)
	}
	return c
}

// Load parses every *.cue file below each directory. Missing directories are
// skipped. All parse failures are reported together.
func Load(dirs ...string) (*Catalog, error) {
	var (
		parsed []*formula.Formula
		errs   []error
	)
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("formula directory %s: %w", dir, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("formula directory %s: not a directory", dir)
		}

		matches, err := doublestar.Glob(os.DirFS(dir), formulaGlob)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", dir, err)
		}
		slices.Sort(matches)
		for _, rel := range matches {
			f, err := formula.Parse(filepath.Join(dir, filepath.FromSlash(rel)))
			if err != nil {
				errs = append(errs, err)
				continue
			}
			parsed = append(parsed, f)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return New(parsed...)
}

// Get looks up a formula by name.
func (c *Catalog) Get(name formula.Name) (*formula.Formula, bool) {
	f, ok := c.formulas[name]
	return f, ok
}

// Names returns every formula name, sorted.
func (c *Catalog) Names() []formula.Name {
	names := make([]formula.Name, 0, len(c.formulas))
	for n := range c.formulas {
		names = append(names, n)
	}
	slices.SortFunc(names, func(a, b formula.Name) int { return strings.Compare(string(a), string(b)) })
	return names
}

// Len returns the number of formulae.
func (c *Catalog) Len() int { return len(c.formulas) }
