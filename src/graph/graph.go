// Package graph defines the slice of the ledger DAG that travels between the
// ledger, the transport and the explorer: units, parenthood edges, and the
// anchors and directions used to page through history.
package graph

import "fmt"

// ShortLabelLength is the number of hash characters kept in a node label.
const ShortLabelLength = 7

// Sequence is the validity status the ledger assigns to a unit.
type Sequence string

const (
	// SequenceGood is a normal unit.
	SequenceGood Sequence = "good"
	// SequenceFinalBad is a unit permanently marked as invalid.
	SequenceFinalBad Sequence = "final-bad"
	// SequenceTempBad is a unit temporarily marked as invalid.
	SequenceTempBad Sequence = "temp-bad"
)

// Node is a unit of the DAG as seen by the explorer. Only Stable and
// OnMainChain change after a node is loaded.
type Node struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Ordinal     int64    `json:"ordinal"`
	OnMainChain bool     `json:"is_on_main_chain"`
	Stable      bool     `json:"is_stable"`
	Sequence    Sequence `json:"sequence"`
}

// NewNode creates a Node with its short label.
func NewNode(id string, ordinal int64) Node {
	return Node{
		ID:       id,
		Label:    ShortLabel(id),
		Ordinal:  ordinal,
		Sequence: SequenceGood,
	}
}

// ShortLabel returns the label displayed for a unit hash.
func ShortLabel(id string) string {
	if len(id) <= ShortLabelLength {
		return id
	}
	return id[:ShortLabelLength] + "..."
}

// Edge is a parenthood link from a child unit (Source) to one of its parents
// (Target).
type Edge struct {
	Source     string `json:"source"`
	Target     string `json:"target"`
	BestParent bool   `json:"best_parent"`
}

// Key returns the identity of the edge.
func (e Edge) Key() EdgeKey {
	return EdgeKey{Source: e.Source, Target: e.Target}
}

// EdgeKey identifies an edge by its ordered endpoints.
type EdgeKey struct {
	Source string
	Target string
}

func (k EdgeKey) String() string {
	return fmt.Sprintf("%s->%s", k.Source, k.Target)
}

// StableUnit reports a unit that became stable and its final main chain
// membership.
type StableUnit struct {
	ID          string `json:"unit"`
	OnMainChain bool   `json:"is_on_main_chain"`
}

// Slice is the answer to a window query.
type Slice struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`

	// NotFound is set when the requested anchor was missing and the ledger
	// answered with its default window instead.
	NotFound bool `json:"not_found,omitempty"`
}
