package layout

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/graph"
)

func nodes(ids ...string) []graph.Node {
	res := make([]graph.Node, len(ids))
	for i, id := range ids {
		res[i] = graph.NewNode(id, int64(len(ids)-i))
	}
	return res
}

func edge(s, t string) graph.Edge {
	return graph.Edge{Source: s, Target: t}
}

func compute(t *testing.T, ns []graph.Node, es []graph.Edge) *Result {
	res, err := Compute(ns, es, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestComputeChain(t *testing.T) {
	res := compute(t, nodes("c", "b", "a"), []graph.Edge{edge("c", "b"), edge("b", "a")})

	step := float64(DefaultNodeHeight + DefaultRankSep)
	expected := map[string]Point{
		"c": {0, DefaultNodeHeight / 2},
		"b": {0, DefaultNodeHeight/2 + step},
		"a": {0, DefaultNodeHeight/2 + 2*step},
	}

	if !reflect.DeepEqual(res.Positions, expected) {
		t.Fatalf("positions should be %v, not %v", expected, res.Positions)
	}
}

func TestComputeIsolated(t *testing.T) {
	res := compute(t, nodes("a", "b", "c"), nil)

	if len(res.Ranks) != 1 || len(res.Ranks[0]) != 3 {
		t.Fatalf("isolated nodes should share the first rank, got %v", res.Ranks)
	}

	step := float64(DefaultNodeWidth + DefaultNodeSep)
	for i, id := range res.Ranks[0] {
		p := res.Positions[id]
		if p.X != float64(i-1)*step {
			t.Fatalf("%s.X should be %v, not %v", id, float64(i-1)*step, p.X)
		}
		if p.Y != DefaultNodeHeight/2 {
			t.Fatalf("%s.Y should be %v, not %v", id, DefaultNodeHeight/2, p.Y)
		}
	}
}

func TestComputeIsolatedBesideChain(t *testing.T) {
	res := compute(t, nodes("c", "b", "a", "z"), []graph.Edge{edge("c", "b"), edge("b", "a")})

	if len(res.Ranks) != 3 {
		t.Fatalf("expected 3 ranks, got %v", res.Ranks)
	}
	if res.Positions["z"].Y != res.Positions["c"].Y {
		t.Fatalf("an isolated node should sit on the first rank, got %v", res.Ranks)
	}
}

func TestComputeLongestPath(t *testing.T) {
	// d has a direct edge to a and a path through b and c.
	res := compute(t,
		nodes("d", "c", "b", "a"),
		[]graph.Edge{edge("d", "a"), edge("d", "c"), edge("c", "b"), edge("b", "a")},
	)

	expected := [][]string{{"d"}, {"c"}, {"b"}, {"a"}}
	if !reflect.DeepEqual(res.Ranks, expected) {
		t.Fatalf("ranks should be %v, not %v", expected, res.Ranks)
	}
}

func TestComputeIgnoresOutsideEdges(t *testing.T) {
	res := compute(t, nodes("b", "a"), []graph.Edge{edge("b", "a"), edge("a", "zz"), edge("yy", "b")})

	if len(res.Positions) != 2 {
		t.Fatalf("only slice nodes should be positioned, got %v", res.Positions)
	}
	if len(res.Ranks) != 2 {
		t.Fatalf("expected 2 ranks, got %v", res.Ranks)
	}
}

func TestComputeReducesCrossings(t *testing.T) {
	res := compute(t, nodes("a", "b", "c", "d"), []graph.Edge{edge("a", "d"), edge("b", "c")})

	if len(res.Ranks) != 2 {
		t.Fatalf("expected 2 ranks, got %v", res.Ranks)
	}

	p := res.Positions
	if (p["a"].X < p["b"].X) != (p["d"].X < p["c"].X) {
		t.Fatalf("edges a-d and b-c should not cross, got %v", res.Ranks)
	}
}

func TestComputeCycle(t *testing.T) {
	res := compute(t, nodes("a", "b", "c"), []graph.Edge{edge("a", "b"), edge("b", "c"), edge("c", "a"), edge("a", "a")})

	if len(res.Positions) != 3 {
		t.Fatalf("nodes on a cycle should still be positioned, got %v", res.Positions)
	}

	// the edge closing the cycle is ignored
	expected := [][]string{{"a"}, {"b"}, {"c"}}
	if !reflect.DeepEqual(res.Ranks, expected) {
		t.Fatalf("ranks should be %v, not %v", expected, res.Ranks)
	}
}

func TestComputeEmpty(t *testing.T) {
	res := compute(t, nil, nil)

	if len(res.Positions) != 0 || len(res.Ranks) != 0 {
		t.Fatalf("empty slice should give an empty layout, got %v", res)
	}

	left, right, top, bottom := res.Bounds()
	if left != 0 || right != 0 || top != 0 || bottom != 0 {
		t.Fatal("bounds of an empty layout should be zero")
	}
}

func TestComputeNoOverlap(t *testing.T) {
	var ns []graph.Node
	var es []graph.Edge
	for i := 0; i < 60; i++ {
		ns = append(ns, graph.NewNode(fmt.Sprintf("u%02d", i), int64(60-i)))
		for _, p := range []int{i + 1, i + 3, i + 7} {
			if p < 60 {
				es = append(es, edge(fmt.Sprintf("u%02d", i), fmt.Sprintf("u%02d", p)))
			}
		}
	}

	res := compute(t, ns, es)

	seen := make(map[Point]string)
	for id, p := range res.Positions {
		if other, ok := seen[p]; ok {
			t.Fatalf("%s and %s share position %v", id, other, p)
		}
		seen[p] = id
	}
}

func TestColumn(t *testing.T) {
	res := Column(nodes("b", "a", "b"), DefaultOptions())

	expected := [][]string{{"b"}, {"a"}}
	if !reflect.DeepEqual(res.Ranks, expected) {
		t.Fatalf("ranks should be %v, not %v", expected, res.Ranks)
	}
	if res.Positions["a"].X != 0 || res.Positions["a"].Y <= res.Positions["b"].Y {
		t.Fatalf("a should sit right below b, got %v", res.Positions)
	}
}

func TestParsePos(t *testing.T) {
	p, err := parsePos("27,162.5!")
	if err != nil {
		t.Fatal(err)
	}
	if p != (Point{27, 162.5}) {
		t.Fatalf("expected (27, 162.5), got %v", p)
	}

	if _, err := parsePos("27"); err == nil {
		t.Fatal("a pos without y should be rejected")
	}
}
