package explorer

import (
	"context"

	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/graph"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/ledger"
)

// RequestKind selects the ledger query of a Request.
type RequestKind uint32

const (
	// WindowRequest fetches a window slice.
	WindowRequest RequestKind = iota
	// UnitRequest fetches the details of a unit.
	UnitRequest
	// AddressRequest fetches a page of address activity.
	AddressRequest
	// StabilityRequest checks the not-stable units.
	StabilityRequest
)

// String returns the string representation of a RequestKind
func (k RequestKind) String() string {
	switch k {
	case WindowRequest:
		return "window"
	case UnitRequest:
		return "unit"
	case AddressRequest:
		return "address"
	case StabilityRequest:
		return "stability"
	default:
		return "unknown"
	}
}

// Request is a ledger query the driver must run. Epoch and Seq identify it
// when its Response comes back.
type Request struct {
	Kind      RequestKind
	Direction graph.Direction
	Anchor    graph.Anchor
	Limit     int
	Tip       bool
	NotStable []string
	Unit      string
	Address   string
	Cursor    ledger.Cursor

	Epoch uint64
	Seq   uint64
}

// Response is the result of a Request.
type Response struct {
	Request  Request
	Slice    *graph.Slice
	Stable   []graph.StableUnit
	Unit     *ledger.UnitInfo
	Activity *ledger.AddressActivity
	Err      error
}

// Outcome is what handling an input produced: events for the host and
// requests for the driver. Viewport is set when the canvas was moved
// programmatically and the host must apply the new state.
type Outcome struct {
	Events   []Event
	Requests []Request
	Viewport *ViewportState
}

func (o *Outcome) emit(e Event) {
	o.Events = append(o.Events, e)
}

func (o *Outcome) request(r Request) {
	o.Requests = append(o.Requests, r)
}

func (o *Outcome) merge(other Outcome) {
	o.Events = append(o.Events, other.Events...)
	o.Requests = append(o.Requests, other.Requests...)
	if other.Viewport != nil {
		o.Viewport = other.Viewport
	}
}

// Empty reports whether the Outcome carries nothing.
func (o *Outcome) Empty() bool {
	return len(o.Events) == 0 && len(o.Requests) == 0 && o.Viewport == nil
}

// Fetch runs a Request against a ledger Source. The stability of the
// not-stable units is checked along with window requests.
func Fetch(ctx context.Context, src ledger.Source, req Request) Response {
	resp := Response{Request: req}

	switch req.Kind {
	case WindowRequest:
		resp.Slice, resp.Stable, resp.Err = ledger.FetchWindowStable(ctx, src, req.Anchor, req.Direction, req.Limit, req.NotStable)
	case UnitRequest:
		resp.Unit, resp.Err = src.FetchUnitDetail(ctx, req.Unit)
	case AddressRequest:
		resp.Activity, resp.Err = src.FetchAddressActivity(ctx, req.Address, req.Cursor)
	case StabilityRequest:
		resp.Stable, resp.Err = src.CheckStabilityChanges(ctx, req.NotStable)
	}

	return resp
}
