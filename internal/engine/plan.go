// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/kegbrew/kegbrew/internal/bottle"
	"github.com/kegbrew/kegbrew/internal/gate"
	"github.com/kegbrew/kegbrew/internal/keg"
	"github.com/kegbrew/kegbrew/internal/resolve"
	"github.com/kegbrew/kegbrew/pkg/formula"
	"github.com/kegbrew/kegbrew/pkg/platform"
)

// ErrNoHead is returned when a head build is requested for a formula without one.
var ErrNoHead = errors.New("formula has no head reference")

type (
	// Plan is what Install would do for a request. Nodes are in install
	// order and contain only the formulas the request needs: build-only
	// dependencies of bottled formulas are pruned.
	Plan struct {
		Root        formula.Name         `json:"root" yaml:"root"`
		Fingerprint platform.Fingerprint `json:"fingerprint" yaml:"fingerprint"`
		Nodes       []*Node              `json:"nodes" yaml:"nodes"`
		Runtime     []formula.Name       `json:"runtime" yaml:"runtime"`
		System      []string             `json:"system,omitempty" yaml:"system,omitempty"`

		resolved *resolve.Plan
	}

	// Node is the decision for one formula.
	Node struct {
		Name         formula.Name   `json:"name" yaml:"name"`
		Version      string         `json:"version" yaml:"version"`
		Path         gate.Path      `json:"path" yaml:"path"`
		Installed    bool           `json:"installed,omitempty" yaml:"installed,omitempty"`
		BottleTag    string         `json:"bottle_tag,omitempty" yaml:"bottle_tag,omitempty"`
		URL          string         `json:"url,omitempty" yaml:"url,omitempty"`
		Steps        []string       `json:"steps,omitempty" yaml:"steps,omitempty"`
		Dependencies []formula.Name `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
		Notes        []string       `json:"notes,omitempty" yaml:"notes,omitempty"`

		formula   *formula.Formula
		selection bottle.Selection
	}
)

// Node returns the plan entry for name, or nil.
func (p *Plan) Node(name formula.Name) *Node {
	for _, n := range p.Nodes {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// Plan resolves and decides req without touching the prefix beyond
// reading receipts. Every source build in the plan has passed the
// toolchain gate.
func (e *Engine) Plan(_ context.Context, req Request) (*Plan, error) {
	rp, err := resolve.Resolve(e.opts.Catalog, req.Formula, req.Fingerprint, resolve.Options{IncludeTest: req.IncludeTest})
	if err != nil {
		return nil, err
	}

	needed := map[formula.Name]bool{req.Formula: true}
	decided := make(map[formula.Name]*Node, len(rp.Order))

	// Reverse plan order visits every dependent before its dependencies,
	// so a node's needed flag is final when it is reached.
	for i := len(rp.Order) - 1; i >= 0; i-- {
		name := rp.Order[i]
		if !needed[name] {
			continue
		}
		f, _ := e.opts.Catalog.Get(name)
		n, err := e.decide(f, req, name == req.Formula)
		if err != nil {
			return nil, err
		}
		decided[name] = n

		for _, d := range rp.DependenciesOf(name) {
			if d.Kind == formula.KindBuild && (n.Path != gate.PathBuild || n.Installed) {
				continue
			}
			needed[d.Name] = true
			if !slices.Contains(n.Dependencies, d.Name) {
				n.Dependencies = append(n.Dependencies, d.Name)
			}
		}
	}

	p := &Plan{
		Root:        req.Formula,
		Fingerprint: req.Fingerprint,
		Runtime:     rp.Runtime,
		System:      rp.System,
		resolved:    rp,
	}
	for _, name := range rp.Order {
		if n, ok := decided[name]; ok {
			p.Nodes = append(p.Nodes, n)
		}
	}

	for _, n := range p.Nodes {
		if n.Path == gate.PathBuild && !n.Installed {
			if err := gate.Check(n.formula, req.Fingerprint, gate.PathBuild); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

// decide picks the install path for f. Only the root honours the
// request's preference; dependencies always prefer bottles.
func (e *Engine) decide(f *formula.Formula, req Request, isRoot bool) (*Node, error) {
	head := isRoot && req.Head
	if head && f.Head == nil {
		return nil, fmt.Errorf("%s: %w", f.Name, ErrNoHead)
	}
	n := &Node{Name: f.Name, Version: f.KegVersion(head), formula: f}

	if rec, err := e.opts.Layout.Installed(f.Name, n.Version); err == nil {
		n.Installed = true
		n.Path = gate.PathBottle
		if rec.Source == keg.SourceBuilt {
			n.Path = gate.PathBuild
		}
		return n, nil
	}

	if head || (isRoot && req.Preference == ForceBuild) {
		return e.buildNode(n, req.Fingerprint), nil
	}

	sel, err := bottle.Select(f, req.Fingerprint, e.opts.Layout.Cellar)
	var mismatch *bottle.PrefixMismatchError
	switch {
	case errors.As(err, &mismatch):
		if !e.opts.FallbackOnPrefixMismatch {
			return nil, err
		}
		n = e.buildNode(n, req.Fingerprint)
		n.Notes = append(n.Notes, fmt.Sprintf("bottle %s was built for %s, building from source for %s",
			mismatch.Tag, mismatch.Recorded, mismatch.Intended))
		return n, nil
	case err != nil:
		return nil, err
	case sel.Outcome == bottle.BuildRequired:
		return e.buildNode(n, req.Fingerprint), nil
	}

	n.Path = gate.PathBottle
	n.selection = sel
	n.BottleTag = sel.Bottle.Tag
	n.URL = bottle.URL(f, sel)
	return n, nil
}

func (e *Engine) buildNode(n *Node, fp platform.Fingerprint) *Node {
	n.Path = gate.PathBuild
	f := n.formula
	switch {
	case n.Version == formula.HeadVersion && f.Head != nil:
		n.URL = f.Head.URL
	default:
		n.URL = f.URL
	}
	steps := f.StepsFor(fp)
	for i := range steps {
		n.Steps = append(n.Steps, steps[i].Summary())
	}
	return n
}
