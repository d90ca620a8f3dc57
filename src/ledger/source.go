package ledger

import (
	"context"

	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/graph"
)

// Query defaults shared by the sources.
const (
	// DefaultLimit is the number of units in a window page.
	DefaultLimit = 100
	// AroundUnitOffset is how many newer units a window around a unit
	// includes above it.
	AroundUnitOffset = 25
	// TransactionsPerPage is the size of an address activity page.
	TransactionsPerPage = 5
)

// Source is the read interface of the ledger.
type Source interface {
	// FetchWindow returns a slice of units relative to an anchor, with the
	// edges touching them. Older and Newer queries are anchored on an
	// ordinal. A missing unit or address anchor is a NotFound error.
	FetchWindow(ctx context.Context, anchor graph.Anchor, dir graph.Direction, limit int) (*graph.Slice, error)

	// FetchUnitDetail returns the details of a unit, or a NotFound error.
	FetchUnitDetail(ctx context.Context, unit string) (*UnitInfo, error)

	// FetchAddressActivity returns a page of the activity of an address, or
	// a NotFound error when the address never appeared.
	FetchAddressActivity(ctx context.Context, address string, cursor Cursor) (*AddressActivity, error)

	// CheckStabilityChanges returns the subset of the candidates which are
	// stable.
	CheckStabilityChanges(ctx context.Context, candidates []string) ([]graph.StableUnit, error)
}

// StableWindowSource is implemented by the sources which check the stability
// of the not-stable units in the same round trip as a window query.
type StableWindowSource interface {
	FetchWindowStable(ctx context.Context, anchor graph.Anchor, dir graph.Direction, limit int, notStable []string) (*graph.Slice, []graph.StableUnit, error)
}

// FetchWindowStable runs a window query and checks the stability of the
// not-stable units. A failed check is not an error: the next one retries it.
func FetchWindowStable(ctx context.Context, src Source, anchor graph.Anchor, dir graph.Direction, limit int, notStable []string) (*graph.Slice, []graph.StableUnit, error) {
	if s, ok := src.(StableWindowSource); ok {
		return s.FetchWindowStable(ctx, anchor, dir, limit, notStable)
	}

	slice, err := src.FetchWindow(ctx, anchor, dir, limit)
	if err != nil || len(notStable) == 0 {
		return slice, nil, err
	}

	stable, err := src.CheckStabilityChanges(ctx, notStable)
	if err != nil {
		return slice, nil, nil
	}
	return slice, stable, nil
}

// Writer is implemented by the stores which mirror the ledger.
type Writer interface {
	// AddUnit records a new unit. A unit without ordinal is given the next
	// one.
	AddUnit(unit *Unit) error

	// MarkStable records the units which became stable.
	MarkStable(units []graph.StableUnit) error
}

// Store is a Source which can also be written to.
type Store interface {
	Source
	Writer
	Close() error
}

// aroundUnit returns the exclusive upper ordinal of a window around a unit.
func aroundUnit(ordinal int64) int64 {
	return ordinal + AroundUnitOffset
}

// NextPage merges the ordinals of the units spending from and paying to an
// address, both highest first, into one page of activity. It returns the page,
// the cursor of the next page and whether the activity is exhausted.
func NextPage(cursor Cursor, spends, receipts []int64) ([]int64, Cursor, bool) {
	page := mergePage(spends, receipts, TransactionsPerPage)

	next := cursor
	for _, ordinal := range page {
		if contains(spends, ordinal) {
			next.Inputs = ordinal
		}
		if contains(receipts, ordinal) {
			next.Outputs = ordinal
		}
	}

	return page, next, len(page) < TransactionsPerPage
}

// mergePage merges two decreasing lists without duplicates and keeps the
// first limit values.
func mergePage(a, b []int64, limit int) []int64 {
	var res []int64
	i, j := 0, 0
	for len(res) < limit && (i < len(a) || j < len(b)) {
		var next int64
		switch {
		case j >= len(b) || (i < len(a) && a[i] > b[j]):
			next = a[i]
			i++
		case i >= len(a) || b[j] > a[i]:
			next = b[j]
			j++
		default:
			next = a[i]
			i++
			j++
		}
		res = append(res, next)
	}
	return res
}

func contains(ordinals []int64, o int64) bool {
	for _, v := range ordinals {
		if v == o {
			return true
		}
	}
	return false
}
