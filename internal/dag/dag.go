// SPDX-License-Identifier: MPL-2.0

// Package dag provides directed acyclic graph operations for topological
// sorting and cycle detection. It is used by the resolver to store the
// locked dependency graph and by the compilation-unit planner to order
// build units.
package dag

import (
	"fmt"
	"strings"
)

type (
	// CycleError indicates that the graph contains a cycle, preventing topological ordering.
	CycleError[N comparable] struct {
		// Cycle contains the nodes that form the cycle (not necessarily all of them,
		// but enough to identify the problem).
		Cycle []N
	}

	// Graph is a directed graph with node type N and edge weight type E.
	// Edges represent "must come before" relationships: an edge from A to B
	// means A must be processed before B.
	Graph[N comparable, E any] struct {
		// adjacency maps each node to its outgoing neighbors in insertion order.
		adjacency map[N][]N
		// weights holds the weight of each existing edge.
		weights map[edgeKey[N]]E
		// nodes tracks all nodes in insertion order for deterministic output.
		nodes []N
		// nodeSet provides O(1) lookup for node existence.
		nodeSet map[N]bool
	}

	edgeKey[N comparable] struct {
		from, to N
	}
)

func (e *CycleError[N]) Error() string {
	parts := make([]string, len(e.Cycle))
	for i, n := range e.Cycle {
		parts[i] = fmt.Sprint(n)
	}
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(parts, " -> "))
}

// New creates an empty Graph.
func New[N comparable, E any]() *Graph[N, E] {
	return &Graph[N, E]{
		adjacency: make(map[N][]N),
		weights:   make(map[edgeKey[N]]E),
		nodeSet:   make(map[N]bool),
	}
}

// AddNode adds a node to the graph. If the node already exists, this is a no-op.
func (g *Graph[N, E]) AddNode(n N) {
	if g.nodeSet[n] {
		return
	}
	g.nodeSet[n] = true
	g.nodes = append(g.nodes, n)
}

// HasNode reports whether n is in the graph.
func (g *Graph[N, E]) HasNode(n N) bool {
	return g.nodeSet[n]
}

// AddEdge adds a directed edge from -> to with the given weight, implicitly
// adding both nodes. If the edge already exists and merge is non-nil, the
// stored weight becomes merge(old, weight); with a nil merge the new weight
// replaces the old one.
func (g *Graph[N, E]) AddEdge(from, to N, weight E, merge func(old, next E) E) {
	g.AddNode(from)
	g.AddNode(to)
	key := edgeKey[N]{from, to}
	if old, ok := g.weights[key]; ok {
		if merge != nil {
			weight = merge(old, weight)
		}
		g.weights[key] = weight
		return
	}
	g.adjacency[from] = append(g.adjacency[from], to)
	g.weights[key] = weight
}

// EdgeWeight returns the weight of the from -> to edge, if it exists.
func (g *Graph[N, E]) EdgeWeight(from, to N) (E, bool) {
	w, ok := g.weights[edgeKey[N]{from, to}]
	return w, ok
}

// Neighbors returns the outgoing neighbors of n in insertion order.
func (g *Graph[N, E]) Neighbors(n N) []N {
	return g.adjacency[n]
}

// Nodes returns all nodes in insertion order.
func (g *Graph[N, E]) Nodes() []N {
	return g.nodes
}

// Len returns the number of nodes.
func (g *Graph[N, E]) Len() int {
	return len(g.nodes)
}

// TopologicalSort returns a valid processing order using Kahn's algorithm.
// Returns CycleError if the graph contains a cycle.
// The returned order is deterministic: nodes at the same topological level
// appear in the order they were first added to the graph.
func (g *Graph[N, E]) TopologicalSort() ([]N, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	inDegree := make(map[N]int, len(g.nodes))
	for _, node := range g.nodes {
		inDegree[node] = 0
	}
	for _, neighbors := range g.adjacency {
		for _, neighbor := range neighbors {
			inDegree[neighbor]++
		}
	}

	// Seed the queue with nodes that have no incoming edges, in insertion order.
	queue := make([]N, 0)
	for _, node := range g.nodes {
		if inDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	var result []N
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, neighbor := range g.adjacency[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}

	if len(result) != len(g.nodes) {
		// Remaining nodes with non-zero in-degree form the cycle.
		var cycleNodes []N
		for _, node := range g.nodes {
			if inDegree[node] > 0 {
				cycleNodes = append(cycleNodes, node)
			}
		}
		return nil, &CycleError[N]{Cycle: cycleNodes}
	}

	return result, nil
}
