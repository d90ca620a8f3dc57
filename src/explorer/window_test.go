package explorer

import (
	"reflect"
	"testing"

	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/graph"
)

func chainSlice(from, to int64) ([]graph.Node, []graph.Edge) {
	var nodes []graph.Node
	var edges []graph.Edge
	for o := from; o >= to; o-- {
		nodes = append(nodes, graph.NewNode(unitID(int(o)), o))
		if o > 1 {
			edges = append(edges, graph.Edge{Source: unitID(int(o)), Target: unitID(int(o - 1))})
		}
	}
	return nodes, edges
}

func TestWindowMerge(t *testing.T) {
	w := NewWindow()

	nodes, edges := chainSlice(10, 6)
	delta := w.Merge(nodes, edges, graph.Initial)
	if len(delta.Nodes) != 5 || len(delta.Edges) != 5 {
		t.Fatalf("expected 5 nodes and 5 edges, got %d %d", len(delta.Nodes), len(delta.Edges))
	}

	// an older slice delivered out of order is sorted
	nodes, edges = chainSlice(5, 1)
	nodes[0], nodes[4] = nodes[4], nodes[0]
	delta = w.Merge(nodes, edges, graph.Older)
	if delta.Nodes[0].Ordinal != 5 || delta.Nodes[4].Ordinal != 1 {
		t.Fatal("delta should be sorted newest first")
	}
	if w.FirstOrdinal != 10 || w.LastOrdinal != 1 {
		t.Fatalf("expected ordinals 10..1, got %d..%d", w.FirstOrdinal, w.LastOrdinal)
	}

	w.Merge(nil, nil, graph.Older)
	if !w.NoMoreOlder || w.NoMoreNewer {
		t.Fatal("an empty older slice should only set NoMoreOlder")
	}
	w.Merge(nil, nil, graph.Newer)
	if !w.NoMoreNewer {
		t.Fatal("an empty newer slice should set NoMoreNewer")
	}

	nodes, edges = chainSlice(3, 2)
	w.Merge(nodes, edges, graph.Initial)
	if w.Len() != 2 || w.NoMoreOlder || w.NoMoreNewer {
		t.Fatal("an initial merge should reset the window")
	}
}

func TestWindowStability(t *testing.T) {
	w := NewWindow()
	nodes, edges := chainSlice(4, 1)
	nodes[3].Stable = true
	w.Merge(nodes, edges, graph.Initial)

	expected := []string{unitID(4), unitID(3), unitID(2)}
	if !reflect.DeepEqual(w.NotStable(), expected) {
		t.Fatalf("expected %v, got %v", expected, w.NotStable())
	}

	applied := w.MarkStable([]graph.StableUnit{
		{ID: unitID(3), OnMainChain: true},
		{ID: unitID(1), OnMainChain: true},
		{ID: "missing"},
	})
	if !reflect.DeepEqual(applied, []graph.StableUnit{{ID: unitID(3), OnMainChain: true}}) {
		t.Fatalf("only unit 3 should change, got %v", applied)
	}

	n, _ := w.Node(unitID(3))
	if !n.Stable || !n.OnMainChain {
		t.Fatal("unit 3 should be stable on the main chain")
	}
}

func TestWindowEviction(t *testing.T) {
	w := NewWindow()
	nodes, edges := chainSlice(10, 1)
	w.Merge(nodes, edges, graph.Initial)

	evicted := w.EvictNewest(3)
	if len(evicted) != 3 || evicted[0].ID != unitID(10) {
		t.Fatalf("unexpected eviction %v", evicted)
	}
	evicted = w.EvictOldest(2)
	if len(evicted) != 2 || evicted[1].ID != unitID(1) {
		t.Fatalf("unexpected eviction %v", evicted)
	}
	if w.FirstOrdinal != 7 || w.LastOrdinal != 3 {
		t.Fatalf("expected ordinals 7..3, got %d..%d", w.FirstOrdinal, w.LastOrdinal)
	}

	dropped := w.Prune()
	// 10->9, 9->8 and 2->1 touch no loaded unit anymore
	if len(dropped) != 3 {
		t.Fatalf("expected 3 dropped edges, got %v", dropped)
	}
	// 8->7 and 3->2 still touch the window
	if w.EdgeCount() != 6 {
		t.Fatalf("expected 6 edges left, got %d", w.EdgeCount())
	}
}
