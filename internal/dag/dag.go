// SPDX-License-Identifier: MPL-2.0

// Package dag orders formula names so every dependency precedes its
// dependents. Ties are broken lexicographically, so the same graph always
// yields the same order regardless of how it was built.
package dag

import (
	"container/heap"
	"fmt"
	"slices"
	"strings"
)

type (
	// CycleError reports a dependency cycle. Cycle lists the nodes along
	// the cycle with the first node repeated at the end (A -> B -> A).
	CycleError struct {
		Cycle []string
	}

	// Graph is a directed graph. An edge from A to B means A must come before B.
	Graph struct {
		adjacency map[string][]string
		nodeSet   map[string]bool
	}

	nameHeap []string
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		adjacency: make(map[string][]string),
		nodeSet:   make(map[string]bool),
	}
}

// AddNode adds a node. Adding an existing node is a no-op.
func (g *Graph) AddNode(name string) {
	g.nodeSet[name] = true
}

// AddEdge adds a directed edge from -> to, meaning "from" must come before "to".
// Both nodes are added implicitly. Duplicate edges are ignored.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	if slices.Contains(g.adjacency[from], to) {
		return
	}
	g.adjacency[from] = append(g.adjacency[from], to)
}

// Successors returns the nodes that must come after name, sorted.
func (g *Graph) Successors(name string) []string {
	out := slices.Clone(g.adjacency[name])
	slices.Sort(out)
	return out
}

// TopologicalSort returns an order using Kahn's algorithm in which, among the
// nodes ready at any point, the lexicographically smallest goes first.
// Returns *CycleError if the graph contains a cycle.
func (g *Graph) TopologicalSort() ([]string, error) {
	if len(g.nodeSet) == 0 {
		return nil, nil
	}

	inDegree := make(map[string]int, len(g.nodeSet))
	for node := range g.nodeSet {
		inDegree[node] = 0
	}
	for _, targets := range g.adjacency {
		for _, next := range targets {
			inDegree[next]++
		}
	}

	ready := &nameHeap{}
	for node, deg := range inDegree {
		if deg == 0 {
			heap.Push(ready, node)
		}
	}

	result := make([]string, 0, len(g.nodeSet))
	for ready.Len() > 0 {
		node := heap.Pop(ready).(string)
		result = append(result, node)
		for _, next := range g.adjacency[node] {
			inDegree[next]--
			if inDegree[next] == 0 {
				heap.Push(ready, next)
			}
		}
	}

	if len(result) != len(g.nodeSet) {
		return nil, &CycleError{Cycle: g.findCycle(inDegree)}
	}
	return result, nil
}

// findCycle walks the nodes Kahn's algorithm could not place and returns one
// concrete cycle among them. Every such node has a remaining predecessor, so
// following edges restricted to those nodes must revisit one.
func (g *Graph) findCycle(inDegree map[string]int) []string {
	var stuck []string
	for node, deg := range inDegree {
		if deg > 0 {
			stuck = append(stuck, node)
		}
	}
	slices.Sort(stuck)
	remaining := make(map[string]bool, len(stuck))
	for _, n := range stuck {
		remaining[n] = true
	}

	const (
		unvisited = iota
		onStack
		done
	)
	state := make(map[string]int, len(stuck))
	var stack []string
	var cycle []string

	var visit func(string) bool
	visit = func(node string) bool {
		state[node] = onStack
		stack = append(stack, node)
		for _, next := range g.Successors(node) {
			if !remaining[next] {
				continue
			}
			switch state[next] {
			case onStack:
				start := slices.Index(stack, next)
				cycle = append(slices.Clone(stack[start:]), next)
				return true
			case unvisited:
				if visit(next) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[node] = done
		return false
	}

	for _, n := range stuck {
		if state[n] == unvisited && visit(n) {
			return cycle
		}
	}
	return stuck
}

func (h nameHeap) Len() int           { return len(h) }
func (h nameHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h nameHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *nameHeap) Push(x any)        { *h = append(*h, x.(string)) }
func (h *nameHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
