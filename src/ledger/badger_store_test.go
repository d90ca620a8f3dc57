package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/common"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/graph"
	"github.com/sirupsen/logrus"
)

func TestBadgerStorePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "badger")
	logger := common.NewTestEntry(t, logrus.DebugLevel, "badger")

	store, err := NewBadgerStore(path, logger)
	if err != nil {
		t.Fatal(err)
	}

	buildChain(t, store, 20)

	if err := store.MarkStable([]graph.StableUnit{{ID: unitID(3), OnMainChain: true}}); err != nil {
		t.Fatal(err)
	}

	dbUnit, err := store.dbGetUnit(3)
	if err != nil {
		t.Fatal(err)
	}
	if !dbUnit.Stable || !dbUnit.OnMainChain {
		t.Fatal("stability should be persisted")
	}

	if _, err := store.dbGetUnit(100); !common.IsExplorer(err, common.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewBadgerStore(path, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	if reopened.Len() != 20 {
		t.Fatalf("reopened store should contain 20 units, not %d", reopened.Len())
	}

	slice, err := reopened.FetchWindow(context.Background(), graph.LastAnchor(), graph.Initial, 5)
	if err != nil {
		t.Fatal(err)
	}
	if slice.Nodes[0].ID != unitID(20) {
		t.Fatalf("newest unit should be %s, not %s", unitID(20), slice.Nodes[0].ID)
	}

	stable, err := reopened.CheckStabilityChanges(context.Background(), []string{unitID(3), unitID(4)})
	if err != nil {
		t.Fatal(err)
	}
	if len(stable) != 1 || stable[0].ID != unitID(3) {
		t.Fatalf("only unit 3 should be stable, got %v", stable)
	}

	// the next unit continues the ordinal sequence
	u := &Unit{Node: graph.NewNode(unitID(21), 0), Parents: []string{unitID(20)}}
	if err := reopened.AddUnit(u); err != nil {
		t.Fatal(err)
	}
	if u.Ordinal != 21 {
		t.Fatalf("new unit should get ordinal 21, not %d", u.Ordinal)
	}
}
