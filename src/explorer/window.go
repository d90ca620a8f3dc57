package explorer

import (
	"sort"

	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/graph"
)

// Delta is what a merge added to the Window.
type Delta struct {
	Nodes []graph.Node
	Edges []graph.Edge
}

// Window holds the loaded slice of the DAG, ordered from the newest unit to
// the oldest, the edges touching it, and the cursors bounding it.
type Window struct {
	nodes     []*graph.Node
	byID      map[string]*graph.Node
	edges     map[graph.EdgeKey]graph.Edge
	edgeOrder []graph.EdgeKey
	notStable map[string]bool

	// FirstOrdinal is the ordinal of the newest loaded unit.
	FirstOrdinal int64
	// LastOrdinal is the ordinal of the oldest loaded unit.
	LastOrdinal int64

	// NoMoreOlder is set once an older query came back empty.
	NoMoreOlder bool
	// NoMoreNewer is set once the newest unit of the ledger is loaded.
	NoMoreNewer bool
}

// NewWindow creates an empty Window.
func NewWindow() *Window {
	w := &Window{}
	w.Reset()
	return w
}

// Reset empties the Window.
func (w *Window) Reset() {
	w.nodes = nil
	w.byID = make(map[string]*graph.Node)
	w.edges = make(map[graph.EdgeKey]graph.Edge)
	w.edgeOrder = nil
	w.notStable = make(map[string]bool)
	w.FirstOrdinal = 0
	w.LastOrdinal = 0
	w.NoMoreOlder = false
	w.NoMoreNewer = false
}

// Merge adds a slice to the Window. An Initial merge replaces the content of
// the Window. Units and edges that are already loaded are ignored, so merging
// the same slice twice leaves the Window unchanged. An empty directional
// slice marks the end of data in that direction.
func (w *Window) Merge(nodes []graph.Node, edges []graph.Edge, dir graph.Direction) Delta {
	if dir == graph.Initial {
		w.Reset()
	}

	delta := Delta{}

	if len(nodes) == 0 {
		switch dir {
		case graph.Older:
			w.NoMoreOlder = true
		case graph.Newer:
			w.NoMoreNewer = true
		}
	}

	for _, n := range nodes {
		if _, ok := w.byID[n.ID]; ok {
			continue
		}
		node := n
		w.byID[n.ID] = &node
		w.nodes = append(w.nodes, &node)
		if !node.Stable {
			w.notStable[node.ID] = true
		}
		delta.Nodes = append(delta.Nodes, node)
	}

	for _, e := range edges {
		k := e.Key()
		if _, ok := w.edges[k]; ok {
			continue
		}
		w.edges[k] = e
		w.edgeOrder = append(w.edgeOrder, k)
		delta.Edges = append(delta.Edges, e)
	}

	if len(delta.Nodes) > 0 {
		sortNewestFirst(w.nodes)
		sort.SliceStable(delta.Nodes, func(i, j int) bool {
			return delta.Nodes[i].Ordinal > delta.Nodes[j].Ordinal
		})
		w.updateCursors()
	}

	return delta
}

// Node returns a loaded unit.
func (w *Window) Node(id string) (graph.Node, bool) {
	n, ok := w.byID[id]
	if !ok {
		return graph.Node{}, false
	}
	return *n, true
}

// Has reports whether a unit is loaded.
func (w *Window) Has(id string) bool {
	_, ok := w.byID[id]
	return ok
}

// Len returns the number of loaded units.
func (w *Window) Len() int {
	return len(w.nodes)
}

// Empty reports whether nothing is loaded.
func (w *Window) Empty() bool {
	return len(w.nodes) == 0
}

// Nodes returns a copy of the loaded units, newest first.
func (w *Window) Nodes() []graph.Node {
	res := make([]graph.Node, len(w.nodes))
	for i, n := range w.nodes {
		res[i] = *n
	}
	return res
}

// Edges returns the loaded edges in the order they were first merged.
func (w *Window) Edges() []graph.Edge {
	res := make([]graph.Edge, len(w.edgeOrder))
	for i, k := range w.edgeOrder {
		res[i] = w.edges[k]
	}
	return res
}

// EdgeCount returns the number of loaded edges.
func (w *Window) EdgeCount() int {
	return len(w.edgeOrder)
}

// NotStable returns the ids of loaded units which are not stable yet, newest
// first.
func (w *Window) NotStable() []string {
	res := make([]string, 0, len(w.notStable))
	for _, n := range w.nodes {
		if w.notStable[n.ID] {
			res = append(res, n.ID)
		}
	}
	return res
}

// MarkStable flags loaded units as stable and records their main chain
// status. It returns the units it actually changed.
func (w *Window) MarkStable(units []graph.StableUnit) []graph.StableUnit {
	var applied []graph.StableUnit
	for _, u := range units {
		n, ok := w.byID[u.ID]
		if !ok || n.Stable {
			continue
		}
		n.Stable = true
		n.OnMainChain = u.OnMainChain
		delete(w.notStable, u.ID)
		applied = append(applied, u)
	}
	return applied
}

// EvictNewest removes up to count units from the top of the Window.
func (w *Window) EvictNewest(count int) []graph.Node {
	if count > len(w.nodes) {
		count = len(w.nodes)
	}
	evicted := w.nodes[:count]
	w.nodes = w.nodes[count:]
	return w.forget(evicted)
}

// EvictOldest removes up to count units from the bottom of the Window.
func (w *Window) EvictOldest(count int) []graph.Node {
	if count > len(w.nodes) {
		count = len(w.nodes)
	}
	evicted := w.nodes[len(w.nodes)-count:]
	w.nodes = w.nodes[:len(w.nodes)-count]
	return w.forget(evicted)
}

// Prune removes the edges which no longer touch a loaded unit.
func (w *Window) Prune() []graph.EdgeKey {
	var dropped []graph.EdgeKey
	kept := w.edgeOrder[:0]
	for _, k := range w.edgeOrder {
		if w.Has(k.Source) || w.Has(k.Target) {
			kept = append(kept, k)
			continue
		}
		delete(w.edges, k)
		dropped = append(dropped, k)
	}
	w.edgeOrder = kept
	return dropped
}

func (w *Window) forget(evicted []*graph.Node) []graph.Node {
	res := make([]graph.Node, len(evicted))
	for i, n := range evicted {
		delete(w.byID, n.ID)
		delete(w.notStable, n.ID)
		res[i] = *n
	}
	w.updateCursors()
	return res
}

func (w *Window) updateCursors() {
	if len(w.nodes) == 0 {
		w.FirstOrdinal, w.LastOrdinal = 0, 0
		return
	}
	w.FirstOrdinal = w.nodes[0].Ordinal
	w.LastOrdinal = w.nodes[len(w.nodes)-1].Ordinal
}

func sortNewestFirst(nodes []*graph.Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Ordinal > nodes[j].Ordinal
	})
}
