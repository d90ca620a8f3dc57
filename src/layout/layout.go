// Package layout computes a layered (hierarchical) drawing of a slice of the
// DAG.
//
// The slice is ranked and ordered by the dot engine of graphviz. Edges point
// from a child unit to its parents, so ranks grow from the newest units at the
// top to the oldest at the bottom. The dot coordinates only decide the rank of
// each node and its order within the rank: nodes are then spaced with the
// fixed dimensions of Options and every rank is centered on x=0. Coordinates
// are local to the slice, the caller re-homes them.
package layout

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	dag "github.com/dominikbraun/graph"
	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/graph"
)

// Default spacing constants.
const (
	DefaultNodeWidth  = 32
	DefaultNodeHeight = 32
	DefaultNodeSep    = 50
	DefaultRankSep    = 50
)

// graphviz sizes are in inches and coordinates in points.
const pointsPerInch = 72

// bestParentWeight keeps best-parent edges shorter and straighter than the
// other edges.
const bestParentWeight = 4

// Options controls the spacing of a layout.
type Options struct {
	NodeWidth  float64
	NodeHeight float64
	NodeSep    float64
	RankSep    float64
}

// DefaultOptions returns the options used by the explorer.
func DefaultOptions() Options {
	return Options{
		NodeWidth:  DefaultNodeWidth,
		NodeHeight: DefaultNodeHeight,
		NodeSep:    DefaultNodeSep,
		RankSep:    DefaultRankSep,
	}
}

// Point is a position in the local frame of a layout.
type Point struct {
	X float64
	Y float64
}

// Result is the output of Compute.
type Result struct {
	// Positions maps every node of the slice to its center.
	Positions map[string]Point

	// Ranks lists node ids per rank, in their final order.
	Ranks [][]string
}

// Bounds returns the extreme coordinates of the node centers. All values are
// zero for an empty result.
func (r *Result) Bounds() (left, right, top, bottom float64) {
	first := true
	for _, p := range r.Positions {
		if first {
			left, right, top, bottom = p.X, p.X, p.Y, p.Y
			first = false
			continue
		}
		if p.X < left {
			left = p.X
		}
		if p.X > right {
			right = p.X
		}
		if p.Y < top {
			top = p.Y
		}
		if p.Y > bottom {
			bottom = p.Y
		}
	}
	return left, right, top, bottom
}

// Compute lays out a slice of nodes. Edges with an endpoint outside the slice
// are ignored, and so are the edges closing a cycle. Nodes without edges sit
// on the first rank.
func Compute(nodes []graph.Node, edges []graph.Edge, opts Options) (*Result, error) {
	s, err := newSlice(nodes, edges)
	if err != nil {
		return nil, err
	}

	if len(s.ids) == 0 {
		return &Result{Positions: map[string]Point{}}, nil
	}

	centers, err := s.dot(context.Background(), opts)
	if err != nil {
		return nil, err
	}

	ranks, err := s.ranks(centers)
	if err != nil {
		return nil, err
	}

	return arrange(ranks, opts), nil
}

// Column lays nodes out one per rank, in input order. It stands in for
// Compute when graphviz fails.
func Column(nodes []graph.Node, opts Options) *Result {
	ranks := make([][]string, 0, len(nodes))
	seen := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		ranks = append(ranks, []string{n.ID})
	}
	return arrange(ranks, opts)
}

// arrange spaces the ranks with fixed steps and centers each of them on x=0.
func arrange(ranks [][]string, opts Options) *Result {
	res := &Result{
		Positions: make(map[string]Point),
		Ranks:     ranks,
	}

	stepX := opts.NodeWidth + opts.NodeSep
	stepY := opts.NodeHeight + opts.RankSep

	for r, row := range ranks {
		center := float64(len(row)-1) / 2
		for i, id := range row {
			res.Positions[id] = Point{
				X: (float64(i) - center) * stepX,
				Y: float64(r)*stepY + opts.NodeHeight/2,
			}
		}
	}

	return res
}

/*******************************************************************************
* Slice
*******************************************************************************/

// slice is the graph handed to graphviz. Nodes are named after their index in
// the input so that unit ids never need quoting.
type slice struct {
	ids        []string
	index      map[string]int
	g          dag.Graph[string, string]
	bestParent map[graph.EdgeKey]bool
}

func newSlice(nodes []graph.Node, edges []graph.Edge) (*slice, error) {
	s := &slice{
		ids:        make([]string, 0, len(nodes)),
		index:      make(map[string]int, len(nodes)),
		g:          dag.New(dag.StringHash, dag.Directed(), dag.PreventCycles()),
		bestParent: make(map[graph.EdgeKey]bool),
	}

	for _, n := range nodes {
		if _, ok := s.index[n.ID]; ok {
			continue
		}
		if err := s.g.AddVertex(n.ID); err != nil {
			return nil, err
		}
		s.index[n.ID] = len(s.ids)
		s.ids = append(s.ids, n.ID)
	}

	for _, e := range edges {
		err := s.g.AddEdge(e.Source, e.Target)
		switch {
		case err == nil:
			if e.BestParent {
				s.bestParent[e.Key()] = true
			}
		case errors.Is(err, dag.ErrVertexNotFound),
			errors.Is(err, dag.ErrEdgeAlreadyExists),
			errors.Is(err, dag.ErrEdgeCreatesCycle):
		default:
			return nil, err
		}
	}

	return s, nil
}

func (s *slice) less(a, b string) bool {
	return s.index[a] < s.index[b]
}

func nodeName(i int) string {
	return "n" + strconv.Itoa(i)
}

// dot runs the dot engine over the slice and returns the center of every
// node, keyed by node name, in graphviz coordinates (y grows upwards).
func (s *slice) dot(ctx context.Context, opts Options) (map[string]Point, error) {
	order, err := dag.StableTopologicalSort(s.g, s.less)
	if err != nil {
		return nil, err
	}

	adjacency, err := s.g.AdjacencyMap()
	if err != nil {
		return nil, err
	}

	gv, release, err := acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	g, err := gv.Graph(graphviz.WithName("slice"))
	if err != nil {
		return nil, err
	}
	defer g.Close()

	g.SetRankDir(cgraph.TBRank).
		SetNodeSeparator(opts.NodeSep / pointsPerInch).
		SetRankSeparator(opts.RankSep / pointsPerInch)

	created := make(map[string]*cgraph.Node, len(order))
	for _, id := range order {
		n, err := g.CreateNodeByName(nodeName(s.index[id]))
		if err != nil {
			return nil, err
		}
		n.SetShape(cgraph.BoxShape).
			SetFixedSize(true).
			SetWidth(opts.NodeWidth / pointsPerInch).
			SetHeight(opts.NodeHeight / pointsPerInch)
		created[id] = n
	}

	for _, id := range order {
		targets := make([]string, 0, len(adjacency[id]))
		for t := range adjacency[id] {
			targets = append(targets, t)
		}
		sort.Slice(targets, func(i, j int) bool { return s.less(targets[i], targets[j]) })

		for _, t := range targets {
			e, err := g.CreateEdgeByName("", created[id], created[t])
			if err != nil {
				return nil, err
			}
			if s.bestParent[graph.EdgeKey{Source: id, Target: t}] {
				e.SetWeight(bestParentWeight)
			}
		}
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.XDOT, &buf); err != nil {
		return nil, err
	}

	return readCenters(buf.Bytes())
}

// readCenters parses the output of the dot renderer and returns the pos
// attribute of every node.
func readCenters(out []byte) (map[string]Point, error) {
	laid, err := graphviz.ParseBytes(out)
	if err != nil {
		return nil, err
	}
	defer laid.Close()

	centers := make(map[string]Point)

	n, err := laid.FirstNode()
	for n != nil && err == nil {
		name, nerr := n.Name()
		if nerr != nil {
			return nil, nerr
		}
		p, perr := parsePos(n.GetStr("pos"))
		if perr != nil {
			return nil, fmt.Errorf("node %s: %v", name, perr)
		}
		centers[name] = p
		n, err = laid.NextNode(n)
	}
	if err != nil {
		return nil, err
	}

	return centers, nil
}

// parsePos parses a graphviz point, "x,y" with an optional trailing "!".
func parsePos(pos string) (Point, error) {
	xs, ys, ok := strings.Cut(strings.TrimSuffix(pos, "!"), ",")
	if !ok {
		return Point{}, fmt.Errorf("invalid pos %q", pos)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return Point{}, err
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return Point{}, err
	}
	return Point{X: x, Y: y}, nil
}

// ranks groups the nodes sharing a graphviz y into ranks, from the top down,
// each rank ordered by x.
func (s *slice) ranks(centers map[string]Point) ([][]string, error) {
	type placed struct {
		id string
		p  Point
	}

	rows := make(map[int64][]placed)
	for i, id := range s.ids {
		p, ok := centers[nodeName(i)]
		if !ok {
			return nil, fmt.Errorf("node %s missing from the layout", id)
		}
		key := int64(math.Round(p.Y))
		rows[key] = append(rows[key], placed{id, p})
	}

	keys := make([]int64, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] > keys[j] })

	res := make([][]string, len(keys))
	for r, k := range keys {
		row := rows[k]
		sort.SliceStable(row, func(i, j int) bool { return row[i].p.X < row[j].p.X })
		ids := make([]string, len(row))
		for i, pl := range row {
			ids[i] = pl.id
		}
		res[r] = ids
	}

	return res, nil
}

/*******************************************************************************
* Engine
*******************************************************************************/

// engine is the graphviz instance shared by every layout. Loading it is
// expensive and it is not safe for concurrent use.
var engine struct {
	sync.Mutex
	gv *graphviz.Graphviz
}

// acquire locks the shared graphviz instance, loading it on first use. The
// returned func releases it.
func acquire(ctx context.Context) (*graphviz.Graphviz, func(), error) {
	engine.Lock()
	if engine.gv == nil {
		gv, err := graphviz.New(ctx)
		if err != nil {
			engine.Unlock()
			return nil, nil, err
		}
		engine.gv = gv
	}
	return engine.gv, engine.Unlock, nil
}
