package explorer

import (
	"time"

	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/graph"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/ledger"
)

// MessageDuration is how long the host should display a transient message.
const MessageDuration = 3000 * time.Millisecond

// EventType enumerates the events pushed to the host.
type EventType uint32

const (
	// EventInitial carries a freshly loaded window.
	EventInitial EventType = iota
	// EventOlder carries units appended below the window.
	EventOlder
	// EventNewer carries units prepended above the window.
	EventNewer
	// EventTip carries new units from the live edge.
	EventTip
	// EventStability carries units that became stable.
	EventStability
	// EventNavigate carries the outcome of a navigation or highlight.
	EventNavigate
)

// String returns the string representation of an EventType
func (t EventType) String() string {
	switch t {
	case EventInitial:
		return "initial"
	case EventOlder:
		return "older"
	case EventNewer:
		return "newer"
	case EventTip:
		return "tip"
	case EventStability:
		return "stability"
	case EventNavigate:
		return "navigate"
	default:
		return "unknown"
	}
}

// Event is implemented by WindowEvent, StabilityEvent and NavigateEvent only.
type Event interface {
	Type() EventType
	event()
}

// WindowEvent is the render delta of a window merge.
type WindowEvent struct {
	Kind EventType `json:"kind"`

	// Nodes and Positions describe the units added to the window.
	Nodes     []graph.Node `json:"nodes"`
	Positions []Position   `json:"positions"`

	// Edges are the edges rendered for the first time.
	Edges []graph.Edge `json:"edges"`

	// Phantoms lists every pending phantom at its current position.
	Phantoms []Phantom `json:"phantoms"`

	// Resolved are phantoms replaced by the units of this merge.
	Resolved []string `json:"resolved,omitempty"`

	// Removed are units evicted from the window and phantoms no longer
	// referenced. RemovedEdges are the edges that went with them.
	Removed      []string        `json:"removed,omitempty"`
	RemovedEdges []graph.EdgeKey `json:"removed_edges,omitempty"`

	Viewport     ViewportState `json:"viewport"`
	FirstOrdinal int64         `json:"first_ordinal"`
	LastOrdinal  int64         `json:"last_ordinal"`
	NoMoreOlder  bool          `json:"no_more_older"`
	NoMoreNewer  bool          `json:"no_more_newer"`
}

// Type implements Event.
func (e *WindowEvent) Type() EventType { return e.Kind }

func (e *WindowEvent) event() {}

// StabilityEvent lists the loaded units that became stable. Only their style
// changes.
type StabilityEvent struct {
	Units []graph.StableUnit `json:"units"`
}

// Type implements Event.
func (e *StabilityEvent) Type() EventType { return EventStability }

func (e *StabilityEvent) event() {}

// NavigateEvent reports a highlighted unit, the details of a unit or an
// address, or a failed lookup.
type NavigateEvent struct {
	Target   string                  `json:"target"`
	Center   *Position               `json:"center,omitempty"`
	Unit     *ledger.UnitInfo        `json:"unit,omitempty"`
	Address  *ledger.AddressActivity `json:"address,omitempty"`
	NotFound bool                    `json:"not_found,omitempty"`
	Message  string                  `json:"message,omitempty"`
	Viewport ViewportState           `json:"viewport"`
}

// Type implements Event.
func (e *NavigateEvent) Type() EventType { return EventNavigate }

func (e *NavigateEvent) event() {}

// Command is an input from the host.
type Command interface {
	command()
}

// RequestOlder asks for units below the window.
type RequestOlder struct{}

// RequestNewer asks for units above the window.
type RequestNewer struct{}

// RequestTip signals that the ledger has new units.
type RequestTip struct{}

// NavigateTo jumps to a unit hash or an address.
type NavigateTo struct {
	Target string
}

// HighlightAndCenter selects a unit and centers the viewport on it.
type HighlightAndCenter struct {
	Unit string
}

// Pan reports a pan of the canvas.
type Pan struct {
	Y float64
}

// Scroll reports a move of the scrollbar.
type Scroll struct {
	Top float64
}

// Step reports a wheel or keyboard step.
type Step struct {
	Up bool
}

// Resize reports a new viewport height.
type Resize struct {
	Height float64
}

// MoreTransactions asks for the next page of the displayed address.
type MoreTransactions struct{}

func (RequestOlder) command()       {}
func (RequestNewer) command()       {}
func (RequestTip) command()         {}
func (NavigateTo) command()         {}
func (HighlightAndCenter) command() {}
func (Pan) command()                {}
func (Scroll) command()             {}
func (Step) command()               {}
func (Resize) command()             {}
func (MoreTransactions) command()   {}
