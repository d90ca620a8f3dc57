package explorer

import (
	"sort"

	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/common"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/graph"
	"github.com/sirupsen/logrus"
)

// PhantomGap is the distance between a frontier row and the phantoms hugging
// it.
const PhantomGap = 166

// PhantomSpacing is the horizontal offset between successive phantoms
// created in one reconciliation pass.
const PhantomSpacing = 60

// Phantom stands in for a unit which is referenced by a loaded edge but is
// not loaded itself. Top phantoms are unknown descendants sitting above the
// window, bottom phantoms are unknown ancestors sitting below it.
type Phantom struct {
	ID  string  `json:"id"`
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Top bool    `json:"top"`
}

// Locator gives the position of placed units.
type Locator interface {
	Position(id string) (Position, bool)
}

// Boundary owns the phantoms and remembers which edges were rendered.
type Boundary struct {
	phantoms map[string]*Phantom
	rendered map[graph.EdgeKey]bool
	logger   *logrus.Entry
}

// NewBoundary creates an empty Boundary.
func NewBoundary(logger *logrus.Entry) *Boundary {
	b := &Boundary{logger: logger}
	b.Reset()
	return b
}

// Reset forgets all phantoms and rendered edges.
func (b *Boundary) Reset() {
	b.phantoms = make(map[string]*Phantom)
	b.rendered = make(map[graph.EdgeKey]bool)
}

// Resolve removes and returns the phantom standing in for id. It implements
// PhantomResolver.
func (b *Boundary) Resolve(id string) (Phantom, bool) {
	ph, ok := b.phantoms[id]
	if !ok {
		return Phantom{}, false
	}
	delete(b.phantoms, id)
	return *ph, true
}

// Phantom returns a pending phantom.
func (b *Boundary) Phantom(id string) (Phantom, bool) {
	ph, ok := b.phantoms[id]
	if !ok {
		return Phantom{}, false
	}
	return *ph, true
}

// Phantoms returns the pending phantoms sorted by id.
func (b *Boundary) Phantoms() []Phantom {
	res := make([]Phantom, 0, len(b.phantoms))
	for _, ph := range b.phantoms {
		res = append(res, *ph)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].ID < res[j].ID
	})
	return res
}

// Len returns the number of pending phantoms.
func (b *Boundary) Len() int {
	return len(b.phantoms)
}

// Rendered reports whether an edge was already emitted.
func (b *Boundary) Rendered(k graph.EdgeKey) bool {
	return b.rendered[k]
}

// Reconcile emits the edges which were not rendered yet, creating phantoms for
// the endpoints which are not placed. Pending phantoms are first moved to the
// current boundaries: PhantomGap above the top frontier and below the bottom
// frontier. It returns the newly renderable edges and the phantoms it
// created.
func (b *Boundary) Reconcile(edges []graph.Edge,
	placed Locator,
	topFrontier float64,
	bottomFrontier float64) ([]graph.Edge, []Phantom) {

	topY := topFrontier - PhantomGap
	bottomY := bottomFrontier + PhantomGap

	for _, ph := range b.phantoms {
		if ph.Top {
			ph.Y = topY
		} else {
			ph.Y = bottomY
		}
	}

	var renderable []graph.Edge
	var created []Phantom
	var topOffset, bottomOffset float64

	for _, e := range edges {
		k := e.Key()
		if b.rendered[k] {
			continue
		}

		src, srcOK := b.locate(e.Source, placed)
		tgt, tgtOK := b.locate(e.Target, placed)

		switch {
		case srcOK && !tgtOK:
			created = append(created, b.add(e.Target, src.X+bottomOffset, bottomY, false))
			bottomOffset += PhantomSpacing
		case !srcOK && tgtOK:
			created = append(created, b.add(e.Source, tgt.X+topOffset, topY, true))
			topOffset += PhantomSpacing
		case !srcOK && !tgtOK:
			err := common.NewExplorerErr("Edge", common.LayoutInconsistency, k.String())
			b.logger.WithError(err).Warn("Edge without placed endpoint")
			created = append(created, b.add(e.Source, topOffset, topY, true))
			topOffset += PhantomSpacing
			created = append(created, b.add(e.Target, bottomOffset, bottomY, false))
			bottomOffset += PhantomSpacing
		}

		b.rendered[k] = true
		renderable = append(renderable, e)
	}

	return renderable, created
}

// Adopt turns a unit which is leaving the window into a phantom at its last
// x coordinate. Its y is set by the next Reconcile.
func (b *Boundary) Adopt(id string, x float64, top bool) {
	if _, ok := b.phantoms[id]; ok {
		return
	}
	b.phantoms[id] = &Phantom{ID: id, X: x, Top: top}
}

// Sweep forgets dropped edges and removes the phantoms that no remaining edge
// references. It returns the ids of the removed phantoms.
func (b *Boundary) Sweep(remaining []graph.Edge, dropped []graph.EdgeKey) []string {
	for _, k := range dropped {
		delete(b.rendered, k)
	}

	referenced := make(map[string]bool, 2*len(remaining))
	for _, e := range remaining {
		referenced[e.Source] = true
		referenced[e.Target] = true
	}

	var removed []string
	for id := range b.phantoms {
		if !referenced[id] {
			delete(b.phantoms, id)
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)

	return removed
}

func (b *Boundary) locate(id string, placed Locator) (Position, bool) {
	if pos, ok := placed.Position(id); ok {
		return pos, true
	}
	if ph, ok := b.phantoms[id]; ok {
		return Position{ID: id, X: ph.X, Y: ph.Y, Phantom: true}, true
	}
	return Position{}, false
}

func (b *Boundary) add(id string, x, y float64, top bool) Phantom {
	ph := &Phantom{ID: id, X: x, Y: y, Top: top}
	b.phantoms[id] = ph
	return *ph
}
