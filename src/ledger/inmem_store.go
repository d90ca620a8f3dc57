package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/common"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/graph"
)

type outputKey struct {
	unit         string
	messageIndex int
	outputIndex  int
}

// addressIndex lists, in increasing order, the ordinals of the units in
// which an address spends (authors) and receives (outputs).
type addressIndex struct {
	spends   []int64
	receipts []int64
}

// InmemStore implements the Store interface with in-memory maps.
type InmemStore struct {
	sync.RWMutex

	units       []*Unit // increasing ordinals
	byID        map[string]*Unit
	children    map[string][]string
	outputs     map[outputKey]Output
	spent       map[outputKey]bool
	addresses   map[string]*addressIndex
	definitions map[string]string
}

// NewInmemStore creates an empty InmemStore.
func NewInmemStore() *InmemStore {
	return &InmemStore{
		byID:        make(map[string]*Unit),
		children:    make(map[string][]string),
		outputs:     make(map[outputKey]Output),
		spent:       make(map[outputKey]bool),
		addresses:   make(map[string]*addressIndex),
		definitions: make(map[string]string),
	}
}

// Len returns the number of units.
func (s *InmemStore) Len() int {
	s.RLock()
	defer s.RUnlock()
	return len(s.units)
}

// LastOrdinal returns the ordinal of the newest unit, or 0.
func (s *InmemStore) LastOrdinal() int64 {
	s.RLock()
	defer s.RUnlock()
	return s.lastOrdinal()
}

// GetUnit returns a copy of a unit record.
func (s *InmemStore) GetUnit(id string) (*Unit, error) {
	s.RLock()
	defer s.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, common.NewExplorerErr("Unit", common.NotFound, id)
	}
	res := *u
	return &res, nil
}

// AddUnit implements the Writer interface. Adding a unit twice is a no-op.
func (s *InmemStore) AddUnit(unit *Unit) error {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.byID[unit.ID]; ok {
		return nil
	}

	u := *unit
	if u.Ordinal == 0 {
		u.Ordinal = s.lastOrdinal() + 1
	}
	if u.Label == "" {
		u.Label = graph.ShortLabel(u.ID)
	}
	if u.Sequence == "" {
		u.Sequence = graph.SequenceGood
	}
	unit.Ordinal = u.Ordinal

	i := sort.Search(len(s.units), func(i int) bool {
		return s.units[i].Ordinal >= u.Ordinal
	})
	s.units = append(s.units, nil)
	copy(s.units[i+1:], s.units[i:])
	s.units[i] = &u
	s.byID[u.ID] = &u

	for _, p := range u.Parents {
		s.children[p] = append(s.children[p], u.ID)
	}

	for _, a := range u.Authors {
		idx := s.address(a.Address)
		idx.spends = insertOrdinal(idx.spends, u.Ordinal)
		if a.Definition != "" {
			s.definitions[a.Address] = a.Definition
		}
	}

	for m, msg := range u.Messages {
		if msg.Payment == nil {
			continue
		}
		for o, out := range msg.Payment.Outputs {
			out.Unit = u.ID
			out.MessageIndex = m
			out.OutputIndex = o
			out.Asset = msg.Payment.Asset
			s.outputs[outputKey{u.ID, m, o}] = out
			idx := s.address(out.Address)
			idx.receipts = insertOrdinal(idx.receipts, u.Ordinal)
		}
		for _, in := range msg.Payment.Inputs {
			s.spent[outputKey{in.Unit, in.MessageIndex, in.OutputIndex}] = true
		}
	}

	return nil
}

// MarkStable implements the Writer interface. Unknown units are ignored.
func (s *InmemStore) MarkStable(units []graph.StableUnit) error {
	s.Lock()
	defer s.Unlock()

	for _, su := range units {
		u, ok := s.byID[su.ID]
		if !ok {
			continue
		}
		u.Stable = true
		u.OnMainChain = su.OnMainChain
	}

	return nil
}

// FetchWindow implements the Source interface.
func (s *InmemStore) FetchWindow(ctx context.Context, anchor graph.Anchor, dir graph.Direction, limit int) (*graph.Slice, error) {
	s.RLock()
	defer s.RUnlock()

	if limit <= 0 {
		limit = DefaultLimit
	}

	var units []*Unit

	switch anchor.Kind {
	case graph.AnchorNone:
		units = s.before(s.lastOrdinal()+1, limit)
	case graph.AnchorOrdinal:
		units = s.relative(anchor.Ordinal, dir, limit, false)
	case graph.AnchorUnit:
		u, ok := s.byID[anchor.Unit]
		if !ok {
			return nil, common.NewExplorerErr("Unit", common.NotFound, anchor.Unit)
		}
		units = s.relative(u.Ordinal, dir, limit, true)
	case graph.AnchorAddress:
		ordinal, ok := s.latestActivity(anchor.Address)
		if !ok {
			return nil, common.NewExplorerErr("Address", common.NotFound, anchor.Address)
		}
		units = s.relative(ordinal, dir, limit, true)
	}

	return s.slice(units), nil
}

// FetchUnitDetail implements the Source interface.
func (s *InmemStore) FetchUnitDetail(ctx context.Context, unit string) (*UnitInfo, error) {
	s.RLock()
	defer s.RUnlock()

	u, ok := s.byID[unit]
	if !ok {
		return nil, common.NewExplorerErr("Unit", common.NotFound, unit)
	}

	return &UnitInfo{
		Unit:                  u.ID,
		Ordinal:               u.Ordinal,
		Parents:               append([]string{}, u.Parents...),
		Children:              append([]string{}, s.children[u.ID]...),
		Authors:               append([]Author{}, u.Authors...),
		Witnesses:             append([]string{}, u.Witnesses...),
		Messages:              append([]Message{}, u.Messages...),
		MainChainIndex:        u.MainChainIndex,
		LatestIncludedMCIndex: u.LatestIncludedMCIndex,
		Level:                 u.Level,
		WitnessedLevel:        u.WitnessedLevel,
		OnMainChain:           u.OnMainChain,
		Stable:                u.Stable,
		LastBallUnit:          u.LastBallUnit,
		HeadersCommission:     u.HeadersCommission,
		PayloadCommission:     u.PayloadCommission,
		Sequence:              u.Sequence,
		Date:                  time.Unix(u.Timestamp, 0).UTC(),
	}, nil
}

// FetchAddressActivity implements the Source interface.
func (s *InmemStore) FetchAddressActivity(ctx context.Context, address string, cursor Cursor) (*AddressActivity, error) {
	s.RLock()
	defer s.RUnlock()

	idx, ok := s.addresses[address]
	if !ok {
		return nil, common.NewExplorerErr("Address", common.NotFound, address)
	}

	spends := below(idx.spends, cursor.Inputs, TransactionsPerPage)
	receipts := below(idx.receipts, cursor.Outputs, TransactionsPerPage)
	page, next, end := NextPage(cursor, spends, receipts)

	res := &AddressActivity{
		Address:    address,
		Definition: s.definitions[address],
		Balance:    make(map[string]int64),
		Cursor:     next,
		End:        end,
	}

	for _, ordinal := range page {
		u := s.units[s.indexOf(ordinal)]
		res.Transactions = append(res.Transactions, s.transaction(u))
	}

	for i := len(s.units) - 1; i >= 0; i-- {
		u := s.units[i]
		for m, msg := range u.Messages {
			if msg.Payment == nil {
				continue
			}
			for o := range msg.Payment.Outputs {
				k := outputKey{u.ID, m, o}
				out := s.outputs[k]
				if out.Address != address || s.spent[k] {
					continue
				}
				res.Unspent = append(res.Unspent, out)
				res.Balance[assetName(out.Asset)] += out.Amount
			}
		}
	}

	return res, nil
}

// CheckStabilityChanges implements the Source interface.
func (s *InmemStore) CheckStabilityChanges(ctx context.Context, candidates []string) ([]graph.StableUnit, error) {
	s.RLock()
	defer s.RUnlock()

	var res []graph.StableUnit
	for _, id := range candidates {
		u, ok := s.byID[id]
		if ok && u.Stable {
			res = append(res, graph.StableUnit{ID: u.ID, OnMainChain: u.OnMainChain})
		}
	}
	return res, nil
}

// Close implements the Store interface.
func (s *InmemStore) Close() error {
	return nil
}

/*******************************************************************************
Private methods, called with the lock held
*******************************************************************************/

func (s *InmemStore) lastOrdinal() int64 {
	if len(s.units) == 0 {
		return 0
	}
	return s.units[len(s.units)-1].Ordinal
}

func (s *InmemStore) indexOf(ordinal int64) int {
	return sort.Search(len(s.units), func(i int) bool {
		return s.units[i].Ordinal >= ordinal
	})
}

// before returns up to limit units with an ordinal lower than upper, newest
// first.
func (s *InmemStore) before(upper int64, limit int) []*Unit {
	end := s.indexOf(upper)
	start := end - limit
	if start < 0 {
		start = 0
	}
	res := make([]*Unit, 0, end-start)
	for i := end - 1; i >= start; i-- {
		res = append(res, s.units[i])
	}
	return res
}

// after returns up to limit units with an ordinal greater than lower, newest
// first.
func (s *InmemStore) after(lower int64, limit int) []*Unit {
	start := s.indexOf(lower + 1)
	end := start + limit
	if end > len(s.units) {
		end = len(s.units)
	}
	res := make([]*Unit, 0, end-start)
	for i := end - 1; i >= start; i-- {
		res = append(res, s.units[i])
	}
	return res
}

// relative pages from an ordinal. An Initial query around a unit includes
// AroundUnitOffset newer units, otherwise it ends at the ordinal itself.
func (s *InmemStore) relative(ordinal int64, dir graph.Direction, limit int, around bool) []*Unit {
	switch dir {
	case graph.Older:
		return s.before(ordinal, limit)
	case graph.Newer:
		return s.after(ordinal, limit)
	}
	if around {
		return s.before(aroundUnit(ordinal), limit)
	}
	return s.before(ordinal+1, limit)
}

func (s *InmemStore) latestActivity(address string) (int64, bool) {
	idx, ok := s.addresses[address]
	if !ok {
		return 0, false
	}
	var latest int64
	if n := len(idx.spends); n > 0 {
		latest = idx.spends[n-1]
	}
	if n := len(idx.receipts); n > 0 && idx.receipts[n-1] > latest {
		latest = idx.receipts[n-1]
	}
	return latest, latest > 0
}

// slice builds the answer to a window query: the units, and every edge from
// or to one of them.
func (s *InmemStore) slice(units []*Unit) *graph.Slice {
	res := &graph.Slice{
		Nodes: make([]graph.Node, 0, len(units)),
	}
	seen := make(map[graph.EdgeKey]bool)

	addEdge := func(e graph.Edge) {
		if seen[e.Key()] {
			return
		}
		seen[e.Key()] = true
		res.Edges = append(res.Edges, e)
	}

	for _, u := range units {
		res.Nodes = append(res.Nodes, u.Node)
		for _, e := range u.Edges() {
			addEdge(e)
		}
		for _, c := range s.children[u.ID] {
			child := s.byID[c]
			addEdge(graph.Edge{
				Source:     c,
				Target:     u.ID,
				BestParent: child.BestParent == u.ID,
			})
		}
	}

	return res
}

func (s *InmemStore) transaction(u *Unit) Transaction {
	tx := Transaction{
		Unit:     u.ID,
		Ordinal:  u.Ordinal,
		Date:     time.Unix(u.Timestamp, 0).UTC(),
		Stable:   u.Stable,
		Sequence: u.Sequence,
	}
	for m, msg := range u.Messages {
		if msg.Payment == nil {
			continue
		}
		for _, in := range msg.Payment.Inputs {
			if src, ok := s.outputs[outputKey{in.Unit, in.MessageIndex, in.OutputIndex}]; ok {
				in.Address = src.Address
				in.Amount = src.Amount
			}
			tx.From = append(tx.From, in)
		}
		for o, out := range msg.Payment.Outputs {
			out.Unit = u.ID
			out.MessageIndex = m
			out.OutputIndex = o
			out.Asset = msg.Payment.Asset
			tx.To = append(tx.To, out)
		}
	}
	return tx
}

func (s *InmemStore) address(address string) *addressIndex {
	idx, ok := s.addresses[address]
	if !ok {
		idx = &addressIndex{}
		s.addresses[address] = idx
	}
	return idx
}

func assetName(asset string) string {
	if asset == "" {
		return BaseAsset
	}
	return asset
}

func insertOrdinal(ordinals []int64, o int64) []int64 {
	i := sort.Search(len(ordinals), func(i int) bool { return ordinals[i] >= o })
	if i < len(ordinals) && ordinals[i] == o {
		return ordinals
	}
	ordinals = append(ordinals, 0)
	copy(ordinals[i+1:], ordinals[i:])
	ordinals[i] = o
	return ordinals
}

// below returns up to limit ordinals lower than upper, highest first.
func below(ordinals []int64, upper int64, limit int) []int64 {
	end := sort.Search(len(ordinals), func(i int) bool { return ordinals[i] >= upper })
	var res []int64
	for i := end - 1; i >= 0 && len(res) < limit; i-- {
		res = append(res, ordinals[i])
	}
	return res
}
