// SPDX-License-Identifier: MPL-2.0

// Package bottle picks the prebuilt artifact for a formula and fingerprint.
// Select is a pure function: the absence of a matching bottle is an ordinary
// outcome (BuildRequired), and the only error it returns is a prefix
// mismatch for a non-relocatable bottle. What to do about a mismatch is left
// to the caller.
package bottle

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/kegbrew/kegbrew/pkg/formula"
	"github.com/kegbrew/kegbrew/pkg/platform"
)

const (
	// BuildRequired means no bottle matches; the formula must be built from source.
	BuildRequired Outcome = iota
	// Pour means a bottle was selected.
	Pour
)

// ErrPrefixMismatch is the sentinel error wrapped by PrefixMismatchError.
var ErrPrefixMismatch = errors.New("bottle prefix mismatch")

type (
	// Outcome is the selector's verdict.
	Outcome int

	// Selection is the verdict for one formula. Bottle and Tag are set only
	// when Outcome is Pour.
	Selection struct {
		Outcome Outcome
		Bottle  formula.BottleFile
		Tag     platform.Tag
		Rebuild int
	}

	// PrefixMismatchError is returned when the best bottle was built for a
	// fixed cellar that differs from the cellar being installed into.
	PrefixMismatchError struct {
		Formula  formula.Name
		Tag      string
		Recorded string
		Intended string
	}
)

// Error implements the error interface.
func (e *PrefixMismatchError) Error() string {
	return fmt.Sprintf("bottle %s for %q is only valid in cellar %s, but the cellar is %s", e.Tag, e.Formula, e.Recorded, e.Intended)
}

// Unwrap returns ErrPrefixMismatch for errors.Is() compatibility.
func (e *PrefixMismatchError) Unwrap() error { return ErrPrefixMismatch }

func (o Outcome) String() string {
	switch o {
	case Pour:
		return "bottle"
	default:
		return "build"
	}
}

// Select returns the most specific bottle of f matching fp. Among equally
// specific matches the first declared wins. cellar is the intended cellar
// directory, compared verbatim against non-relocatable bottles.
func Select(f *formula.Formula, fp platform.Fingerprint, cellar string) (Selection, error) {
	if !f.HasBottles() {
		return Selection{Outcome: BuildRequired}, nil
	}

	var (
		best     formula.BottleFile
		bestTag  platform.Tag
		bestRank = platform.SpecificityAll - 1
	)
	for _, file := range f.Bottle.Files {
		tag, err := platform.ParseTag(file.Tag)
		if err != nil || !tag.Matches(fp) {
			continue
		}
		if rank := tag.Specificity(); rank > bestRank {
			best, bestTag, bestRank = file, tag, rank
		}
	}
	if bestRank < platform.SpecificityAll {
		return Selection{Outcome: BuildRequired}, nil
	}

	if !best.Cellar.IsRelocatable() && cleanDir(string(best.Cellar)) != cleanDir(cellar) {
		return Selection{}, &PrefixMismatchError{
			Formula:  f.Name,
			Tag:      best.Tag,
			Recorded: string(best.Cellar),
			Intended: cellar,
		}
	}
	return Selection{Outcome: Pour, Bottle: best, Tag: bestTag, Rebuild: f.Bottle.Rebuild}, nil
}

// URL returns where the bottle archive lives: the file's own url, or
// "<root_url>/<name>--<version>.<tag>.bottle[.<rebuild>].tar.gz".
func URL(f *formula.Formula, sel Selection) string {
	if sel.Bottle.URL != "" {
		return sel.Bottle.URL
	}
	root := ""
	if f.Bottle != nil {
		root = f.Bottle.RootURL
	}
	file := fmt.Sprintf("%s--%s.%s.bottle", f.Name, f.Version, sel.Bottle.Tag)
	if sel.Rebuild > 0 {
		file += fmt.Sprintf(".%d", sel.Rebuild)
	}
	file += ".tar.gz"
	if root == "" {
		return file
	}
	if u, err := url.Parse(root); err == nil && u.Scheme != "" {
		u.Path = path.Join(u.Path, file)
		return u.String()
	}
	return strings.TrimRight(root, "/") + "/" + file
}

func cleanDir(p string) string {
	return strings.TrimRight(path.Clean(p), "/")
}
