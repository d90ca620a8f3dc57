package sqlstore

import (
	"context"
	"database/sql"
	"math"
	"reflect"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/common"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/graph"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/ledger"
	"github.com/sirupsen/logrus"
)

// newMockStore creates a Store over a sqlmock database with automatic cleanup
// and expectation checking.
func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return New(db, common.NewTestEntry(t, logrus.DebugLevel, "sqlstore")), mock
}

var unitRowColumns = []string{"ROWID", "unit", "is_on_main_chain", "is_stable", "sequence"}

var edgeRowColumns = []string{"child_unit", "parent_unit", "best_parent_unit"}

func TestFetchWindowLast(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT ROWID, unit, is_on_main_chain, is_stable, sequence FROM units ORDER BY ROWID DESC LIMIT \?`).
		WithArgs(100).
		WillReturnRows(sqlmock.NewRows(unitRowColumns).
			AddRow(3, "u3", true, false, "good").
			AddRow(2, "u2", false, true, "temp-bad"))

	mock.ExpectQuery(`SELECT parenthoods.child_unit, .+ FROM parenthoods JOIN units .+ IN \(\?,\?\) OR parenthoods.parent_unit IN \(\?,\?\)`).
		WithArgs("u3", "u2", "u3", "u2").
		WillReturnRows(sqlmock.NewRows(edgeRowColumns).
			AddRow("u3", "u2", "u2").
			AddRow("u3", "x1", "u2").
			AddRow("u2", "u1", nil))

	slice, err := store.FetchWindow(context.Background(), graph.LastAnchor(), graph.Initial, 0)
	if err != nil {
		t.Fatal(err)
	}

	u3 := graph.NewNode("u3", 3)
	u3.OnMainChain = true
	u2 := graph.NewNode("u2", 2)
	u2.Stable = true
	u2.Sequence = graph.SequenceTempBad

	if !reflect.DeepEqual(slice.Nodes, []graph.Node{u3, u2}) {
		t.Fatalf("unexpected nodes %v", slice.Nodes)
	}

	expectedEdges := []graph.Edge{
		{Source: "u3", Target: "u2", BestParent: true},
		{Source: "u3", Target: "x1"},
		{Source: "u2", Target: "u1"},
	}
	if !reflect.DeepEqual(slice.Edges, expectedEdges) {
		t.Fatalf("unexpected edges %v", slice.Edges)
	}
}

func TestFetchWindowNewer(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM units WHERE ROWID > \? ORDER BY ROWID ASC LIMIT \?`).
		WithArgs(5, 2).
		WillReturnRows(sqlmock.NewRows(unitRowColumns).
			AddRow(6, "u6", true, false, "good").
			AddRow(7, "u7", true, false, "good"))

	mock.ExpectQuery(`FROM parenthoods`).
		WillReturnRows(sqlmock.NewRows(edgeRowColumns))

	slice, err := store.FetchWindow(context.Background(), graph.OrdinalAnchor(5), graph.Newer, 2)
	if err != nil {
		t.Fatal(err)
	}

	if len(slice.Nodes) != 2 || slice.Nodes[0].ID != "u7" || slice.Nodes[1].ID != "u6" {
		t.Fatalf("newer units should be returned newest first, got %v", slice.Nodes)
	}
}

func TestFetchWindowAroundUnit(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT ROWID FROM units WHERE unit = \?`).
		WithArgs("u50").
		WillReturnRows(sqlmock.NewRows([]string{"ROWID"}).AddRow(50))

	mock.ExpectQuery(`FROM units WHERE ROWID < \? ORDER BY ROWID DESC LIMIT \?`).
		WithArgs(50+ledger.AroundUnitOffset, 100).
		WillReturnRows(sqlmock.NewRows(unitRowColumns))

	slice, err := store.FetchWindow(context.Background(), graph.UnitAnchor("u50"), graph.Initial, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(slice.Nodes) != 0 || len(slice.Edges) != 0 {
		t.Fatalf("expected an empty slice, got %v", slice)
	}
}

func TestFetchWindowNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT ROWID FROM units WHERE unit = \?`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"ROWID"}))

	_, err := store.FetchWindow(context.Background(), graph.UnitAnchor("missing"), graph.Initial, 100)
	if !common.IsExplorer(err, common.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}

	mock.ExpectQuery(`SELECT MAX\(units.ROWID\) FROM units`).
		WithArgs("addr", "addr").
		WillReturnRows(sqlmock.NewRows([]string{"MAX"}).AddRow(nil))

	_, err = store.FetchWindow(context.Background(), graph.AddressAnchor("addr"), graph.Initial, 100)
	if !common.IsExplorer(err, common.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestFetchWindowError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM units`).WillReturnError(sql.ErrConnDone)

	_, err := store.FetchWindow(context.Background(), graph.LastAnchor(), graph.Initial, 100)
	if err != sql.ErrConnDone {
		t.Fatalf("expected the driver error, got %v", err)
	}
}

func TestCheckStabilityChanges(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT unit, is_on_main_chain FROM units WHERE unit IN \(\?,\?\) AND is_stable = 1`).
		WithArgs("a", "b").
		WillReturnRows(sqlmock.NewRows([]string{"unit", "is_on_main_chain"}).AddRow("a", true))

	stable, err := store.CheckStabilityChanges(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(stable, []graph.StableUnit{{ID: "a", OnMainChain: true}}) {
		t.Fatalf("unexpected stable units %v", stable)
	}

	// no query without candidates
	stable, err = store.CheckStabilityChanges(context.Background(), nil)
	if err != nil || stable != nil {
		t.Fatalf("expected nothing, got %v %v", stable, err)
	}
}

func TestFetchUnitDetail(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT ROWID, unit, is_on_main_chain, is_stable, sequence, level, .+ FROM units WHERE unit = \?`).
		WithArgs("u2").
		WillReturnRows(sqlmock.NewRows([]string{
			"ROWID", "unit", "is_on_main_chain", "is_stable", "sequence", "level", "witnessed_level",
			"main_chain_index", "latest_included_mc_index", "last_ball_unit", "headers_commission",
			"payload_commission", "timestamp",
		}).AddRow(2, "u2", true, true, "good", 5, 3, 4, 3, nil, 344, 197, 1500000000))

	mock.ExpectQuery(`SELECT parent_unit FROM parenthoods WHERE child_unit = \?`).
		WithArgs("u2").
		WillReturnRows(sqlmock.NewRows([]string{"parent_unit"}).AddRow("u1"))
	mock.ExpectQuery(`SELECT child_unit FROM parenthoods WHERE parent_unit = \?`).
		WithArgs("u2").
		WillReturnRows(sqlmock.NewRows([]string{"child_unit"}))
	mock.ExpectQuery(`SELECT address FROM unit_witnesses WHERE unit = \?`).
		WithArgs("u2").
		WillReturnRows(sqlmock.NewRows([]string{"address"}).AddRow("W1").AddRow("W2"))
	mock.ExpectQuery(`SELECT unit_authors.address, .+ FROM unit_authors`).
		WithArgs("u2").
		WillReturnRows(sqlmock.NewRows([]string{"address", "definition"}).AddRow("A", `["sig"]`))
	mock.ExpectQuery(`SELECT app, payload_location, .+ FROM messages`).
		WithArgs("u2").
		WillReturnRows(sqlmock.NewRows([]string{"app", "payload_location", "payload"}).
			AddRow("payment", "inline", "").
			AddRow("text", "inline", "hello"))
	mock.ExpectQuery(`SELECT message_index, output_index, address, amount, .+ FROM outputs`).
		WithArgs("u2").
		WillReturnRows(sqlmock.NewRows([]string{"message_index", "output_index", "address", "amount", "asset"}).
			AddRow(0, 0, "B", 100, "").
			AddRow(0, 1, "A", 900, ""))
	mock.ExpectQuery(`SELECT inputs.message_index, .+ FROM inputs LEFT JOIN outputs`).
		WithArgs("u2").
		WillReturnRows(sqlmock.NewRows([]string{"message_index", "src_unit", "src_message_index", "src_output_index", "address", "amount"}).
			AddRow(0, "u1", 0, 1, "A", 1000))

	info, err := store.FetchUnitDetail(context.Background(), "u2")
	if err != nil {
		t.Fatal(err)
	}

	if info.Ordinal != 2 || info.MainChainIndex != 4 || info.Level != 5 || info.HeadersCommission != 344 {
		t.Fatalf("unexpected unit %+v", info)
	}
	if !reflect.DeepEqual(info.Parents, []string{"u1"}) || len(info.Children) != 0 {
		t.Fatalf("unexpected parenthood %v %v", info.Parents, info.Children)
	}
	if !reflect.DeepEqual(info.Witnesses, []string{"W1", "W2"}) {
		t.Fatalf("unexpected witnesses %v", info.Witnesses)
	}
	if info.Date.Unix() != 1500000000 {
		t.Fatalf("unexpected date %v", info.Date)
	}

	if len(info.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(info.Messages))
	}
	payment := info.Messages[0].Payment
	if payment == nil || len(payment.Outputs) != 2 || len(payment.Inputs) != 1 {
		t.Fatalf("unexpected payment %+v", payment)
	}
	if payment.Inputs[0] != (ledger.Input{Unit: "u1", OutputIndex: 1, Address: "A", Amount: 1000}) {
		t.Fatalf("unexpected input %+v", payment.Inputs[0])
	}
	if info.Messages[1].Text != "hello" || info.Messages[1].Payment != nil {
		t.Fatalf("unexpected text message %+v", info.Messages[1])
	}
}

func TestFetchUnitDetailNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM units WHERE unit = \?`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"ROWID"}))

	_, err := store.FetchUnitDetail(context.Background(), "missing")
	if !common.IsExplorer(err, common.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestFetchAddressActivityNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT DISTINCT units.ROWID FROM inputs`).
		WithArgs("addr", int64(math.MaxInt64), ledger.TransactionsPerPage).
		WillReturnRows(sqlmock.NewRows([]string{"ROWID"}))
	mock.ExpectQuery(`SELECT DISTINCT units.ROWID FROM outputs`).
		WithArgs("addr", int64(math.MaxInt64), ledger.TransactionsPerPage).
		WillReturnRows(sqlmock.NewRows([]string{"ROWID"}))
	mock.ExpectQuery(`SELECT definitions.definition FROM unit_authors`).
		WithArgs("addr").
		WillReturnRows(sqlmock.NewRows([]string{"definition"}))

	_, err := store.FetchAddressActivity(context.Background(), "addr", ledger.FirstCursor())
	if !common.IsExplorer(err, common.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestFetchAddressActivity(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT DISTINCT units.ROWID FROM inputs`).
		WithArgs("B", int64(math.MaxInt64), ledger.TransactionsPerPage).
		WillReturnRows(sqlmock.NewRows([]string{"ROWID"}).AddRow(9))
	mock.ExpectQuery(`SELECT DISTINCT units.ROWID FROM outputs`).
		WithArgs("B", int64(math.MaxInt64), ledger.TransactionsPerPage).
		WillReturnRows(sqlmock.NewRows([]string{"ROWID"}).AddRow(9).AddRow(4))
	mock.ExpectQuery(`SELECT definitions.definition FROM unit_authors`).
		WithArgs("B").
		WillReturnRows(sqlmock.NewRows([]string{"definition"}).AddRow(`["sig"]`))

	for _, tx := range []struct {
		ordinal int64
		unit    string
	}{{9, "u9"}, {4, "u4"}} {
		mock.ExpectQuery(`FROM units WHERE ROWID = \?`).
			WithArgs(tx.ordinal).
			WillReturnRows(sqlmock.NewRows([]string{"ROWID", "unit", "is_stable", "sequence", "timestamp"}).
				AddRow(tx.ordinal, tx.unit, true, "good", 1500000000))
		mock.ExpectQuery(`FROM messages`).
			WithArgs(tx.unit).
			WillReturnRows(sqlmock.NewRows([]string{"app", "payload_location", "payload"}))
		mock.ExpectQuery(`FROM outputs`).
			WithArgs(tx.unit).
			WillReturnRows(sqlmock.NewRows([]string{"message_index", "output_index", "address", "amount", "asset"}))
		mock.ExpectQuery(`FROM inputs LEFT JOIN outputs`).
			WithArgs(tx.unit).
			WillReturnRows(sqlmock.NewRows([]string{"message_index", "src_unit", "src_message_index", "src_output_index", "address", "amount"}))
	}

	mock.ExpectQuery(`FROM outputs WHERE address = \? AND is_spent = 0`).
		WithArgs("B").
		WillReturnRows(sqlmock.NewRows([]string{"unit", "message_index", "output_index", "amount", "asset"}).
			AddRow("u9", 0, 1, 40, "").
			AddRow("u4", 0, 0, 7, "asset1"))

	activity, err := store.FetchAddressActivity(context.Background(), "B", ledger.FirstCursor())
	if err != nil {
		t.Fatal(err)
	}

	if len(activity.Transactions) != 2 || activity.Transactions[0].Unit != "u9" {
		t.Fatalf("unexpected transactions %v", activity.Transactions)
	}
	if activity.Cursor != (ledger.Cursor{Inputs: 9, Outputs: 4}) {
		t.Fatalf("unexpected cursor %v", activity.Cursor)
	}
	if !activity.End {
		t.Fatal("a short page should be the end")
	}
	expected := map[string]int64{ledger.BaseAsset: 40, "asset1": 7}
	if !reflect.DeepEqual(activity.Balance, expected) {
		t.Fatalf("expected balance %v, got %v", expected, activity.Balance)
	}
}
