package relay

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/common"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/feed"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/graph"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/ledger"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/net/wamp"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/sirupsen/logrus"
)

func unitID(i int) string {
	return fmt.Sprintf("unit%040d", i)
}

func newChainStore(t *testing.T, n int) *ledger.InmemStore {
	store := ledger.NewInmemStore()
	for i := 1; i <= n; i++ {
		u := &ledger.Unit{Node: graph.NewNode(unitID(i), 0)}
		if i > 1 {
			u.Parents = []string{unitID(i - 1)}
			u.BestParent = unitID(i - 1)
		}
		if err := store.AddUnit(u); err != nil {
			t.Fatal(err)
		}
	}
	return store
}

func TestWindowFallback(t *testing.T) {
	store := newChainStore(t, 10)
	if err := store.MarkStable([]graph.StableUnit{{ID: unitID(3), OnMainChain: true}}); err != nil {
		t.Fatal(err)
	}

	r := NewRelay(store, store, nil, common.NewTestEntry(t, logrus.DebugLevel, "relay"))

	for _, anchor := range []graph.Anchor{
		graph.UnitAnchor(unitID(99)),
		graph.AddressAnchor("MISSINGADDRESSMISSINGADDRESSMISS"),
	} {
		res, err := r.Window(context.Background(), wamp.WindowArgs{
			Anchor:    anchor,
			Direction: graph.Initial,
			Limit:     100,
			NotStable: []string{unitID(3), unitID(4)},
		})
		if err != nil {
			t.Fatalf("%s: %v", anchor, err)
		}
		if !res.Slice.NotFound {
			t.Fatalf("%s: the fallback window should be flagged NotFound", anchor)
		}
		if len(res.Slice.Nodes) != 10 || res.Slice.Nodes[0].ID != unitID(10) {
			t.Fatalf("%s: expected the last window, got %d nodes", anchor, len(res.Slice.Nodes))
		}
		if !reflect.DeepEqual(res.Stable, []graph.StableUnit{{ID: unitID(3), OnMainChain: true}}) {
			t.Fatalf("%s: unexpected stable units %v", anchor, res.Stable)
		}
	}

	res, err := r.Window(context.Background(), wamp.WindowArgs{
		Anchor:    graph.UnitAnchor(unitID(5)),
		Direction: graph.Initial,
		Limit:     100,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Slice.NotFound {
		t.Fatal("a window around a known unit should not be flagged NotFound")
	}

	if s := r.Stats(); s["calls"] != "3" || s["not_found"] != "2" || s["broadcast"] != "false" {
		t.Fatalf("unexpected stats %v", s)
	}
}

// startTestNATS starts an embedded NATS server and returns its client URL.
func startTestNATS(t *testing.T) string {
	t.Helper()
	opts := &natsserver.Options{Host: "127.0.0.1", Port: -1}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

func TestRelay(t *testing.T) {
	store := newChainStore(t, 10)
	logger := common.NewTestLogger(t, logrus.DebugLevel)

	server, err := wamp.NewServer("127.0.0.1:0", wamp.DefaultRealm, "", "", logger.WithField("prefix", "router"))
	if err != nil {
		t.Fatal(err)
	}
	if err := server.Listen(); err != nil {
		t.Fatal(err)
	}
	go server.Run()
	defer server.Shutdown()

	peer, err := server.Local(logger.WithField("prefix", "peer"))
	if err != nil {
		t.Fatal(err)
	}
	defer peer.Close()

	r := NewRelay(store, store, peer, logger.WithField("prefix", "relay"))
	if err := r.Register(); err != nil {
		t.Fatal(err)
	}

	natsURL := startTestNATS(t)
	sub, err := feed.NewSubscriber(natsURL, logger.WithField("prefix", "subscriber"))
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()
	cancel, err := sub.Subscribe(r)
	if err != nil {
		t.Fatal(err)
	}
	defer cancel()

	pub, err := feed.NewPublisher(natsURL, logger.WithField("prefix", "publisher"))
	if err != nil {
		t.Fatal(err)
	}
	defer pub.Close()

	c, err := wamp.NewClient(server.Addr(), wamp.DefaultRealm, false, "", false, 2*time.Second,
		logger.WithField("prefix", "client"))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	tips := make(chan graph.Node, 1)
	stable := make(chan []graph.StableUnit, 1)
	if err := c.Subscribe(
		func(n graph.Node) { tips <- n },
		func(units []graph.StableUnit) { stable <- units },
	); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()

	slice, err := c.FetchWindow(ctx, graph.LastAnchor(), graph.Initial, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(slice.Nodes) != 10 || len(slice.Edges) != 9 {
		t.Fatalf("expected 10 nodes and 9 edges, got %d and %d", len(slice.Nodes), len(slice.Edges))
	}

	// a new joint reaches the store and the sessions
	joint := &ledger.Unit{
		Node:       graph.NewNode(unitID(11), 0),
		Parents:    []string{unitID(10)},
		BestParent: unitID(10),
	}
	if err := pub.PublishJoint(joint); err != nil {
		t.Fatal(err)
	}
	pub.Flush()

	select {
	case n := <-tips:
		if n.ID != unitID(11) || n.Ordinal != 11 {
			t.Fatalf("unexpected tip %+v", n)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for tip")
	}

	newer, err := c.FetchWindow(ctx, graph.OrdinalAnchor(10), graph.Newer, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(newer.Nodes) != 1 || newer.Nodes[0].ID != unitID(11) {
		t.Fatalf("expected the new joint, got %v", newer.Nodes)
	}

	if err := pub.PublishStable([]graph.StableUnit{{ID: unitID(11), OnMainChain: true}}); err != nil {
		t.Fatal(err)
	}
	pub.Flush()

	select {
	case units := <-stable:
		if len(units) != 1 || units[0].ID != unitID(11) {
			t.Fatalf("unexpected stable units %v", units)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for stability")
	}

	res, err := c.CheckStabilityChanges(ctx, []string{unitID(11)})
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 1 || !res[0].OnMainChain {
		t.Fatalf("unexpected stability %v", res)
	}

	// misses
	fallback, err := c.FetchWindow(ctx, graph.UnitAnchor(unitID(99)), graph.Initial, 100)
	if err != nil {
		t.Fatal(err)
	}
	if !fallback.NotFound || len(fallback.Nodes) != 11 {
		t.Fatalf("expected the last window flagged NotFound, got %d nodes", len(fallback.Nodes))
	}

	if _, err := c.FetchUnitDetail(ctx, unitID(99)); !common.IsExplorer(err, common.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}

	info, err := c.FetchUnitDetail(ctx, unitID(11))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(info.Parents, []string{unitID(10)}) || !info.Stable {
		t.Fatalf("unexpected unit %+v", info)
	}
}
