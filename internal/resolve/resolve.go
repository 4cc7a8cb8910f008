// SPDX-License-Identifier: MPL-2.0

// Package resolve expands a root formula into an ordered install plan for one
// fingerprint. Only declarations whose predicate matches the fingerprint
// become edges. The build closure follows build and run edges; the run-time
// closure follows run edges only, so build-only tools never leak to
// consumers of an installed keg.
package resolve

import (
	"errors"
	"slices"
	"strings"

	"github.com/kegbrew/kegbrew/internal/catalog"
	"github.com/kegbrew/kegbrew/internal/dag"
	"github.com/kegbrew/kegbrew/pkg/formula"
	"github.com/kegbrew/kegbrew/pkg/platform"
)

type (
	// Options tunes expansion.
	Options struct {
		// IncludeTest adds the root's test dependencies (and their build
		// closures) so the smoke test can run.
		IncludeTest bool
	}

	// Plan is the resolved dependency set for one root and fingerprint.
	Plan struct {
		Root        formula.Name
		Fingerprint platform.Fingerprint
		// Order lists every formula to be present, dependencies first and
		// the root last. Ties are broken by name.
		Order []formula.Name
		// Runtime is the run-time closure of the root, root excluded, in
		// Order order.
		Runtime []formula.Name
		// System lists host packages named by matching system dependencies.
		System []string

		deps map[formula.Name][]formula.Dependency
	}

	resolver struct {
		cat     *catalog.Catalog
		fp      platform.Fingerprint
		opts    Options
		root    formula.Name
		graph   *dag.Graph
		deps    map[formula.Name][]formula.Dependency
		system  map[string]bool
		visited map[formula.Name]bool
	}
)

// Resolve builds the plan for root. It is pure: the catalog is only read.
func Resolve(cat *catalog.Catalog, root formula.Name, fp platform.Fingerprint, opts Options) (*Plan, error) {
	if _, ok := cat.Get(root); !ok {
		return nil, &UnresolvedDependencyError{Name: root}
	}

	r := &resolver{
		cat:     cat,
		fp:      fp,
		opts:    opts,
		root:    root,
		graph:   dag.New(),
		deps:    make(map[formula.Name][]formula.Dependency),
		system:  make(map[string]bool),
		visited: make(map[formula.Name]bool),
	}
	if err := r.expand(root); err != nil {
		return nil, err
	}

	names, err := r.graph.TopologicalSort()
	if err != nil {
		var cycleErr *dag.CycleError
		if errors.As(err, &cycleErr) {
			return nil, &CycleError{Cycle: toNames(cycleErr.Cycle)}
		}
		return nil, err
	}

	p := &Plan{
		Root:        root,
		Fingerprint: fp,
		Order:       toNames(names),
		deps:        r.deps,
	}
	p.Runtime = p.RuntimeClosure(root)
	for name := range r.system {
		p.System = append(p.System, name)
	}
	slices.Sort(p.System)
	return p, nil
}

func (r *resolver) expand(name formula.Name) error {
	if r.visited[name] {
		return nil
	}
	r.visited[name] = true
	r.graph.AddNode(string(name))

	f, _ := r.cat.Get(name)
	if ok, req := f.SupportedOn(r.fp); !ok {
		return &UnsupportedPlatformError{Formula: name, Requirement: *req, Fingerprint: r.fp}
	}

	// Sort declarations so error reporting does not depend on authoring order.
	decls := f.DependenciesFor(r.fp)
	slices.SortStableFunc(decls, func(a, b formula.Dependency) int {
		return strings.Compare(string(a.Name), string(b.Name))
	})

	for _, d := range decls {
		if d.System {
			r.system[string(d.Name)] = true
			continue
		}
		if d.Kind == formula.KindTest && (name != r.root || !r.opts.IncludeTest) {
			continue
		}
		if _, ok := r.cat.Get(d.Name); !ok {
			return &UnresolvedDependencyError{Name: d.Name, Referrer: name}
		}
		r.deps[name] = append(r.deps[name], d)
		r.graph.AddEdge(string(d.Name), string(name))
		if err := r.expand(d.Name); err != nil {
			return err
		}
	}
	return nil
}

// DependenciesOf returns the matching, non-system declarations of name that
// made it into the plan, sorted by name.
func (p *Plan) DependenciesOf(name formula.Name) []formula.Dependency {
	return slices.Clone(p.deps[name])
}

// RuntimeClosure returns every formula reachable from name over run edges,
// name excluded, in plan order.
func (p *Plan) RuntimeClosure(name formula.Name) []formula.Name {
	seen := map[formula.Name]bool{}
	var walk func(formula.Name)
	walk = func(n formula.Name) {
		for _, d := range p.deps[n] {
			if d.Kind != formula.KindRun || seen[d.Name] {
				continue
			}
			seen[d.Name] = true
			walk(d.Name)
		}
	}
	walk(name)

	out := make([]formula.Name, 0, len(seen))
	for _, n := range p.Order {
		if seen[n] && n != name {
			out = append(out, n)
		}
	}
	return out
}

func toNames(in []string) []formula.Name {
	out := make([]formula.Name, len(in))
	for i, s := range in {
		out[i] = formula.Name(s)
	}
	return out
}
