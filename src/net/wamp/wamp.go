// Package wamp carries the ledger queries of the explorer as RPC over
// WebSockets, and the live notifications of the ledger as topics, using the
// WAMP protocol.
//
// The relay runs a Server, which embeds the WAMP router, and registers the
// procedures through a local Peer. Explorer sessions connect with a Client,
// which implements ledger.Source.
//
// Every payload is a single argument holding the canonical JSON encoding of
// the value. A missing unit or address is reported with the ErrNotFound URI
// and the subject and key of the lookup as arguments, which the Client turns
// back into a NotFound common.ExplorerErr.
package wamp

import (
	"fmt"

	"github.com/gammazero/nexus/v3/wamp"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/graph"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/ledger"
)

// DefaultRealm is the realm of the explorer router.
const DefaultRealm = "io.intervalue.explorer"

// Procedures
const (
	ProcWindow    = "io.intervalue.explorer.window"
	ProcUnit      = "io.intervalue.explorer.unit"
	ProcAddress   = "io.intervalue.explorer.address"
	ProcStability = "io.intervalue.explorer.stability"
)

// Topics
const (
	// TopicUpdate announces a new unit at the live edge.
	TopicUpdate = "io.intervalue.explorer.update"
	// TopicStability announces units which became stable.
	TopicStability = "io.intervalue.explorer.stability"
)

// Error URIs
const (
	// ErrNotFound indicates that the unit or address does not exist.
	ErrNotFound = "io.intervalue.explorer.not_found"
	// ErrInvalidArgument indicates that the call could not be decoded.
	ErrInvalidArgument = "io.intervalue.explorer.invalid_argument"
	// ErrFailure indicates that the ledger query failed.
	ErrFailure = "io.intervalue.explorer.error"
)

// WindowArgs is the argument of ProcWindow.
type WindowArgs struct {
	Anchor    graph.Anchor    `json:"anchor"`
	Direction graph.Direction `json:"direction"`
	Limit     int             `json:"limit"`
	NotStable []string        `json:"not_stable,omitempty"`
}

// WindowResult is the result of ProcWindow. Stable piggybacks the units of
// WindowArgs.NotStable which became stable.
type WindowResult struct {
	Slice  *graph.Slice       `json:"slice"`
	Stable []graph.StableUnit `json:"stable,omitempty"`
}

// AddressArgs is the argument of ProcAddress.
type AddressArgs struct {
	Address string        `json:"address"`
	Cursor  ledger.Cursor `json:"cursor"`
}

// Encode wraps a value into WAMP arguments.
func Encode(v interface{}) (wamp.List, error) {
	raw, err := ledger.Marshal(v)
	if err != nil {
		return nil, err
	}
	return wamp.List{string(raw)}, nil
}

// Decode reads the value wrapped by Encode.
func Decode(args wamp.List, v interface{}) error {
	if len(args) != 1 {
		return fmt.Errorf("expected 1 argument, not %d", len(args))
	}
	raw, ok := wamp.AsString(args[0])
	if !ok {
		return fmt.Errorf("argument is not a string")
	}
	return ledger.Unmarshal([]byte(raw), v)
}
