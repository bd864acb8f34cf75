// SPDX-License-Identifier: MPL-2.0

package core

import (
	"slices"

	"scarb/internal/dag"
)

type (
	// DependencyEdge is the weight of an edge in the resolve graph: the set
	// of target kinds that keep the edge live. An empty edge is live for
	// every target kind (a plain normal dependency).
	DependencyEdge []TargetKind

	// Resolve is the locked dependency graph produced by version solving:
	// a DAG of package ids plus the selected summary for each node.
	Resolve struct {
		Graph     *dag.Graph[PackageId, DependencyEdge]
		Summaries map[PackageId]*Summary
	}
)

// Extend merges a target kind into the edge. A nil kind pointer marks the
// edge live for all kinds, which subsumes any restriction.
func (e DependencyEdge) Extend(kind *TargetKind) DependencyEdge {
	if kind == nil {
		// Once live-for-all, always live-for-all.
		return DependencyEdge{}
	}
	if len(e) == 0 && e != nil {
		return e
	}
	if slices.Contains(e, *kind) {
		return e
	}
	out := make(DependencyEdge, len(e), len(e)+1)
	copy(out, e)
	return append(out, *kind)
}

// MergeEdges is the merge function handed to the graph when aggregating
// parallel edges.
func MergeEdges(old, next DependencyEdge) DependencyEdge {
	if len(old) == 0 || len(next) == 0 {
		return DependencyEdge{}
	}
	out := slices.Clone(old)
	for _, k := range next {
		if !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	return out
}

// Accepts reports whether the edge is live when building the given target
// kind.
func (e DependencyEdge) Accepts(kind TargetKind) bool {
	return len(e) == 0 || slices.Contains(e, kind)
}

// PackageIds returns all selected package ids in graph insertion order.
func (r *Resolve) PackageIds() []PackageId {
	return r.Graph.Nodes()
}

// DependenciesOf returns the direct dependencies of id that are live for
// the given target kind.
func (r *Resolve) DependenciesOf(id PackageId, kind TargetKind) []PackageId {
	var out []PackageId
	for _, dep := range r.Graph.Neighbors(id) {
		edge, _ := r.Graph.EdgeWeight(id, dep)
		if edge.Accepts(kind) {
			out = append(out, dep)
		}
	}
	return out
}

// AllDependenciesOf returns the direct dependencies of id regardless of
// target kind. Used by lockfile serialization.
func (r *Resolve) AllDependenciesOf(id PackageId) []PackageId {
	return r.Graph.Neighbors(id)
}

// Closure returns id plus its transitive dependencies live for the given
// target kind, in breadth-first discovery order.
func (r *Resolve) Closure(id PackageId, kind TargetKind) []PackageId {
	seen := map[PackageId]bool{id: true}
	order := []PackageId{id}
	queue := []PackageId{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range r.DependenciesOf(cur, kind) {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			order = append(order, dep)
			queue = append(queue, dep)
		}
	}
	return order
}
