// SPDX-License-Identifier: MPL-2.0

package dag

import (
	"errors"
	"slices"
	"testing"
)

func TestTopologicalSort_EmptyGraph(t *testing.T) {
	t.Parallel()
	g := New[string, struct{}]()
	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order != nil {
		t.Errorf("expected nil, got %v", order)
	}
}

func TestTopologicalSort_LinearChain(t *testing.T) {
	t.Parallel()
	g := New[string, struct{}]()
	// A -> B -> C (A must come first, then B, then C)
	g.AddEdge("A", "B", struct{}{}, nil)
	g.AddEdge("B", "C", struct{}{}, nil)

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []string{"A", "B", "C"}
	if !slices.Equal(order, expected) {
		t.Errorf("expected %v, got %v", expected, order)
	}
}

func TestTopologicalSort_Diamond(t *testing.T) {
	t.Parallel()
	g := New[string, struct{}]()
	// A -> B, A -> C, B -> D, C -> D
	g.AddEdge("A", "B", struct{}{}, nil)
	g.AddEdge("A", "C", struct{}{}, nil)
	g.AddEdge("B", "D", struct{}{}, nil)
	g.AddEdge("C", "D", struct{}{}, nil)

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(order, []string{"A", "B", "C", "D"}) {
		t.Errorf("unexpected order: %v", order)
	}
}

func TestTopologicalSort_Cycle(t *testing.T) {
	t.Parallel()
	g := New[string, struct{}]()
	g.AddEdge("A", "B", struct{}{}, nil)
	g.AddEdge("B", "C", struct{}{}, nil)
	g.AddEdge("C", "A", struct{}{}, nil)

	_, err := g.TopologicalSort()
	var cycleErr *CycleError[string]
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	if len(cycleErr.Cycle) == 0 {
		t.Error("expected cycle nodes to be reported")
	}
}

func TestAddEdge_MergeWeights(t *testing.T) {
	t.Parallel()
	g := New[string, []string]()
	merge := func(old, next []string) []string { return append(old, next...) }

	g.AddEdge("A", "B", []string{"lib"}, merge)
	g.AddEdge("A", "B", []string{"test"}, merge)

	w, ok := g.EdgeWeight("A", "B")
	if !ok {
		t.Fatal("expected edge to exist")
	}
	if !slices.Equal(w, []string{"lib", "test"}) {
		t.Errorf("expected merged weight, got %v", w)
	}
	// Merging must not duplicate the neighbor entry.
	if n := g.Neighbors("A"); len(n) != 1 {
		t.Errorf("expected single neighbor, got %v", n)
	}
}

func TestAddNode_Idempotent(t *testing.T) {
	t.Parallel()
	g := New[int, struct{}]()
	g.AddNode(1)
	g.AddNode(1)
	if g.Len() != 1 {
		t.Errorf("expected 1 node, got %d", g.Len())
	}
	if !g.HasNode(1) || g.HasNode(2) {
		t.Error("HasNode misreported membership")
	}
}
