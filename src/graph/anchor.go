package graph

import "fmt"

// Direction tells a window query where to look relative to its anchor.
type Direction uint32

const (
	// Initial asks for a fresh window at the anchor.
	Initial Direction = iota
	// Older asks for units below the anchor ordinal.
	Older
	// Newer asks for units above the anchor ordinal.
	Newer
)

// String returns the string representation of a Direction
func (d Direction) String() string {
	switch d {
	case Initial:
		return "initial"
	case Older:
		return "older"
	case Newer:
		return "newer"
	default:
		return "unknown"
	}
}

// ParseDirection is the inverse of Direction.String.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "", "initial":
		return Initial, nil
	case "older":
		return Older, nil
	case "newer":
		return Newer, nil
	}
	return Initial, fmt.Errorf("unknown direction %q", s)
}

// AnchorKind selects how an Anchor is interpreted.
type AnchorKind uint32

const (
	// AnchorNone anchors at the newest units of the ledger.
	AnchorNone AnchorKind = iota
	// AnchorOrdinal anchors at a row ordinal.
	AnchorOrdinal
	// AnchorUnit anchors around a unit hash.
	AnchorUnit
	// AnchorAddress anchors around the latest unit touching an address.
	AnchorAddress
)

// String returns the string representation of an AnchorKind
func (k AnchorKind) String() string {
	switch k {
	case AnchorNone:
		return "none"
	case AnchorOrdinal:
		return "ordinal"
	case AnchorUnit:
		return "unit"
	case AnchorAddress:
		return "address"
	default:
		return "unknown"
	}
}

// Anchor is the reference point of a window query.
type Anchor struct {
	Kind    AnchorKind `json:"kind"`
	Ordinal int64      `json:"ordinal,omitempty"`
	Unit    string     `json:"unit,omitempty"`
	Address string     `json:"address,omitempty"`
}

// LastAnchor anchors a query at the live edge of the ledger.
func LastAnchor() Anchor {
	return Anchor{Kind: AnchorNone}
}

// OrdinalAnchor anchors a query at a row ordinal.
func OrdinalAnchor(ordinal int64) Anchor {
	return Anchor{Kind: AnchorOrdinal, Ordinal: ordinal}
}

// UnitAnchor anchors a query around a unit.
func UnitAnchor(unit string) Anchor {
	return Anchor{Kind: AnchorUnit, Unit: unit}
}

// AddressAnchor anchors a query around an address.
func AddressAnchor(address string) Anchor {
	return Anchor{Kind: AnchorAddress, Address: address}
}

func (a Anchor) String() string {
	switch a.Kind {
	case AnchorOrdinal:
		return fmt.Sprintf("ordinal:%d", a.Ordinal)
	case AnchorUnit:
		return "unit:" + a.Unit
	case AnchorAddress:
		return "address:" + a.Address
	default:
		return "last"
	}
}

const (
	// UnitHashLength is the length of a base64 unit hash.
	UnitHashLength = 44
	// AddressLength is the length of a ledger address.
	AddressLength = 32
)

// ParseTarget classifies a search string as a unit hash or an address.
func ParseTarget(s string) (Anchor, error) {
	switch len(s) {
	case UnitHashLength:
		return UnitAnchor(s), nil
	case AddressLength:
		return AddressAnchor(s), nil
	}
	return Anchor{}, fmt.Errorf("%q is neither a unit nor an address", s)
}
