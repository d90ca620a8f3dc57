package explorer

import (
	"math"
	"sort"

	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/graph"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/layout"
)

// Placement constants, in render units.
const (
	// WindowGap separates the rows of two successive slices.
	WindowGap = 66
	// MaxWidth bounds the horizontal coordinate of placed units.
	MaxWidth = 500
	// CollisionDistance is the horizontal distance under which two units of
	// the same row conflict.
	CollisionDistance = 10
	// CollisionShift is the displacement applied to conflicting units, and
	// the minimum distance between two units of a row.
	CollisionShift = 60
	// MainChainNudge moves units that are not on the main chain off the
	// vertical axis.
	MainChainNudge = 40
)

// Position is the render position of a unit or of a phantom.
type Position struct {
	ID      string  `json:"id"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Phantom bool    `json:"phantom,omitempty"`
}

// PhantomResolver hands over the phantom standing in for a unit which is
// being placed.
type PhantomResolver interface {
	Resolve(id string) (Phantom, bool)
}

// Placer owns the render positions of loaded units. Render space grows
// downward: the newest units are at the top, successive older slices are
// stacked below, successive newer slices above.
type Placer struct {
	positions map[string]Position
	top       float64
	bottom    float64
	placed    bool
}

// NewPlacer creates an empty Placer.
func NewPlacer() *Placer {
	p := &Placer{}
	p.Reset()
	return p
}

// Reset forgets all positions and frontiers.
func (p *Placer) Reset() {
	p.positions = make(map[string]Position)
	p.top = 0
	p.bottom = 0
	p.placed = false
}

// Position returns the position of a placed unit.
func (p *Placer) Position(id string) (Position, bool) {
	pos, ok := p.positions[id]
	return pos, ok
}

// Len returns the number of placed units.
func (p *Placer) Len() int {
	return len(p.positions)
}

// Frontiers returns the y of the topmost and bottommost placed rows.
func (p *Placer) Frontiers() (top, bottom float64) {
	return p.top, p.bottom
}

// Remove forgets the position of a unit.
func (p *Placer) Remove(id string) (Position, bool) {
	pos, ok := p.positions[id]
	if ok {
		delete(p.positions, id)
	}
	return pos, ok
}

// Shrink recomputes the frontiers from the remaining positions, after units
// were removed from one end.
func (p *Placer) Shrink() {
	if len(p.positions) == 0 {
		p.Reset()
		return
	}
	p.top = math.Inf(1)
	p.bottom = math.Inf(-1)
	for _, pos := range p.positions {
		p.top = math.Min(p.top, pos.Y)
		p.bottom = math.Max(p.bottom, pos.Y)
	}
}

// Place turns the local coordinates of a slice into render positions. The
// slice is centered on x=0 and stacked against the content already placed in
// the direction of the extension. Units standing in as phantoms keep the
// phantom's x. It returns the positions in the order of nodes, and the ids of
// the phantoms it resolved.
func (p *Placer) Place(nodes []graph.Node,
	local *layout.Result,
	dir graph.Direction,
	phantoms PhantomResolver) ([]Position, []string) {

	if len(nodes) == 0 {
		return nil, nil
	}

	left, right, top, bottom := local.Bounds()
	offsetX := -(left + right) / 2

	var offsetY float64
	switch {
	case dir == graph.Initial || !p.placed:
		offsetY = -top
		p.top = 0
		p.bottom = bottom - top
	case dir == graph.Older:
		offsetY = p.bottom + WindowGap - top
		p.bottom = bottom + offsetY
	default:
		offsetY = p.top - WindowGap - bottom
		p.top = top + offsetY
	}
	p.placed = true

	res := make([]Position, 0, len(nodes))
	var resolved []string

	for _, n := range nodes {
		pt, ok := local.Positions[n.ID]
		if !ok {
			continue
		}

		x := pt.X + offsetX
		if x == 0 && !n.OnMainChain {
			x += MainChainNudge
		}
		x = Saturate(x)

		if ph, ok := phantoms.Resolve(n.ID); ok {
			x = ph.X
			resolved = append(resolved, n.ID)
		}

		res = append(res, Position{ID: n.ID, X: x, Y: pt.Y + offsetY})
	}

	ResolveCollisions(res)

	for _, pos := range res {
		p.positions[pos.ID] = pos
	}

	return res, resolved
}

// Saturate bounds a horizontal coordinate to [-MaxWidth, MaxWidth].
func Saturate(x float64) float64 {
	if x > MaxWidth {
		return MaxWidth
	}
	if x < -MaxWidth {
		return -MaxWidth
	}
	return x
}

// ResolveCollisions separates units sharing a row. Units closer than
// CollisionDistance to another unit of their row are pushed away from the
// origin by an accumulating CollisionShift, in their original order. The row
// is then spread so that any two units end at least CollisionShift apart.
func ResolveCollisions(positions []Position) {
	var rowKeys []float64
	rows := make(map[float64][]int)
	for i, pos := range positions {
		if _, ok := rows[pos.Y]; !ok {
			rowKeys = append(rowKeys, pos.Y)
		}
		rows[pos.Y] = append(rows[pos.Y], i)
	}

	for _, y := range rowKeys {
		row := rows[y]
		if len(row) < 2 {
			continue
		}
		shiftConflicts(positions, row)
		spread(positions, row)
	}
}

func shiftConflicts(positions []Position, row []int) {
	var conflicts []int
	for _, i := range row {
		for _, j := range row {
			if i != j && math.Abs(positions[i].X-positions[j].X) < CollisionDistance {
				conflicts = append(conflicts, i)
				break
			}
		}
	}

	var leftShift, rightShift float64
	for _, i := range conflicts {
		if positions[i].X < 0 {
			leftShift -= CollisionShift
			positions[i].X += leftShift
		} else {
			rightShift += CollisionShift
			positions[i].X += rightShift
		}
	}
}

// spread walks the row outward from the origin and pushes every unit at
// least CollisionShift away from its inner neighbour.
func spread(positions []Position, row []int) {
	sorted := append([]int(nil), row...)
	sort.SliceStable(sorted, func(a, b int) bool {
		return positions[sorted[a]].X < positions[sorted[b]].X
	})

	pivot := sort.Search(len(sorted), func(k int) bool {
		return positions[sorted[k]].X >= 0
	})

	// sorted[pivot-1] is the left unit closest to the origin, it anchors
	// both walks.
	if pivot > 0 {
		prev := positions[sorted[pivot-1]].X
		for k := pivot - 2; k >= 0; k-- {
			i := sorted[k]
			if positions[i].X > prev-CollisionShift {
				positions[i].X = prev - CollisionShift
			}
			prev = positions[i].X
		}
	}

	prev := math.Inf(-1)
	if pivot > 0 {
		prev = positions[sorted[pivot-1]].X
	}
	for k := pivot; k < len(sorted); k++ {
		i := sorted[k]
		if positions[i].X < prev+CollisionShift {
			positions[i].X = prev + CollisionShift
		}
		prev = positions[i].X
	}
}
