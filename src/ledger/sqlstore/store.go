// Package sqlstore reads the ledger from the sqlite database of a ledger node.
// Units are paged by their ROWID, which serves as their ordinal.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/common"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/graph"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/ledger"
	"github.com/sirupsen/logrus"

	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

// DriverName is the database/sql driver used by Open.
const DriverName = "sqlite"

// Store implements ledger.Source over the database of a ledger node.
type Store struct {
	db     *sql.DB
	logger *logrus.Entry
}

// Open opens the database at path in read-only mode.
func Open(path string, logger *logrus.Entry) (*Store, error) {
	db, err := sql.Open(DriverName, fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return New(db, logger), nil
}

// New wraps an open database.
func New(db *sql.DB, logger *logrus.Entry) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

const unitColumns = "ROWID, unit, is_on_main_chain, is_stable, sequence"

// FetchWindow implements ledger.Source.
func (s *Store) FetchWindow(ctx context.Context, anchor graph.Anchor, dir graph.Direction, limit int) (*graph.Slice, error) {
	if limit <= 0 {
		limit = ledger.DefaultLimit
	}

	var nodes []graph.Node
	var err error

	switch anchor.Kind {
	case graph.AnchorNone:
		nodes, err = s.queryNodes(ctx,
			"SELECT "+unitColumns+" FROM units ORDER BY ROWID DESC LIMIT ?", limit)
	case graph.AnchorOrdinal:
		nodes, err = s.relative(ctx, anchor.Ordinal, dir, limit, false)
	case graph.AnchorUnit:
		var ordinal int64
		ordinal, err = s.unitOrdinal(ctx, anchor.Unit)
		if err == nil {
			nodes, err = s.relative(ctx, ordinal, dir, limit, true)
		}
	case graph.AnchorAddress:
		var ordinal int64
		ordinal, err = s.addressOrdinal(ctx, anchor.Address)
		if err == nil {
			nodes, err = s.relative(ctx, ordinal, dir, limit, true)
		}
	default:
		err = fmt.Errorf("unknown anchor kind %s", anchor.Kind)
	}
	if err != nil {
		return nil, err
	}

	edges, err := s.queryEdges(ctx, nodes)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"anchor":    anchor.String(),
		"direction": dir.String(),
		"nodes":     len(nodes),
		"edges":     len(edges),
	}).Debug("FetchWindow")

	return &graph.Slice{Nodes: nodes, Edges: edges}, nil
}

func (s *Store) relative(ctx context.Context, ordinal int64, dir graph.Direction, limit int, around bool) ([]graph.Node, error) {
	switch dir {
	case graph.Older:
		return s.before(ctx, ordinal, limit)
	case graph.Newer:
		nodes, err := s.queryNodes(ctx,
			"SELECT "+unitColumns+" FROM units WHERE ROWID > ? ORDER BY ROWID ASC LIMIT ?", ordinal, limit)
		if err != nil {
			return nil, err
		}
		for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
			nodes[i], nodes[j] = nodes[j], nodes[i]
		}
		return nodes, nil
	}
	if around {
		return s.before(ctx, ordinal+ledger.AroundUnitOffset, limit)
	}
	return s.before(ctx, ordinal+1, limit)
}

func (s *Store) before(ctx context.Context, upper int64, limit int) ([]graph.Node, error) {
	return s.queryNodes(ctx,
		"SELECT "+unitColumns+" FROM units WHERE ROWID < ? ORDER BY ROWID DESC LIMIT ?", upper, limit)
}

func (s *Store) queryNodes(ctx context.Context, query string, args ...interface{}) ([]graph.Node, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []graph.Node
	for rows.Next() {
		var (
			ordinal           int64
			unit, sequence    string
			mainChain, stable bool
		)
		if err := rows.Scan(&ordinal, &unit, &mainChain, &stable, &sequence); err != nil {
			return nil, err
		}
		n := graph.NewNode(unit, ordinal)
		n.OnMainChain = mainChain
		n.Stable = stable
		n.Sequence = graph.Sequence(sequence)
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// queryEdges returns the parenthoods from or to the nodes, newest first.
func (s *Store) queryEdges(ctx context.Context, nodes []graph.Node) ([]graph.Edge, error) {
	if len(nodes) == 0 {
		return nil, nil
	}

	ids := make([]interface{}, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	in := placeholders(len(ids))

	query := "SELECT parenthoods.child_unit, parenthoods.parent_unit, units.best_parent_unit " +
		"FROM parenthoods JOIN units ON units.unit = parenthoods.child_unit " +
		"WHERE parenthoods.child_unit IN (" + in + ") OR parenthoods.parent_unit IN (" + in + ") " +
		"ORDER BY parenthoods.ROWID DESC"

	rows, err := s.db.QueryContext(ctx, query, append(ids, ids...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []graph.Edge
	for rows.Next() {
		var child, parent string
		var best sql.NullString
		if err := rows.Scan(&child, &parent, &best); err != nil {
			return nil, err
		}
		edges = append(edges, graph.Edge{
			Source:     child,
			Target:     parent,
			BestParent: best.Valid && best.String == parent,
		})
	}
	return edges, rows.Err()
}

func (s *Store) unitOrdinal(ctx context.Context, unit string) (int64, error) {
	var ordinal int64
	err := s.db.QueryRowContext(ctx, "SELECT ROWID FROM units WHERE unit = ? LIMIT 1", unit).Scan(&ordinal)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, common.NewExplorerErr("Unit", common.NotFound, unit)
	}
	return ordinal, err
}

// addressOrdinal returns the ordinal of the latest unit authored by or paying
// to an address.
func (s *Store) addressOrdinal(ctx context.Context, address string) (int64, error) {
	var ordinal sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT MAX(units.ROWID) FROM units WHERE units.unit IN "+
			"(SELECT unit FROM unit_authors WHERE address = ? UNION SELECT unit FROM outputs WHERE address = ?)",
		address, address).Scan(&ordinal)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	if !ordinal.Valid {
		return 0, common.NewExplorerErr("Address", common.NotFound, address)
	}
	return ordinal.Int64, nil
}

// FetchUnitDetail implements ledger.Source.
func (s *Store) FetchUnitDetail(ctx context.Context, unit string) (*ledger.UnitInfo, error) {
	var (
		info                 ledger.UnitInfo
		sequence             string
		level, witnessed     sql.NullInt64
		mci, limci           sql.NullInt64
		lastBall             sql.NullString
		timestamp            int64
		headers, payloadComm sql.NullInt64
	)

	err := s.db.QueryRowContext(ctx,
		"SELECT ROWID, unit, is_on_main_chain, is_stable, sequence, level, witnessed_level, "+
			"main_chain_index, latest_included_mc_index, last_ball_unit, headers_commission, "+
			"payload_commission, CAST(strftime('%s', creation_date) AS INTEGER) "+
			"FROM units WHERE unit = ?", unit).Scan(
		&info.Ordinal, &info.Unit, &info.OnMainChain, &info.Stable, &sequence,
		&level, &witnessed, &mci, &limci, &lastBall,
		&headers, &payloadComm, &timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewExplorerErr("Unit", common.NotFound, unit)
	}
	if err != nil {
		return nil, err
	}

	info.Sequence = graph.Sequence(sequence)
	info.Level = level.Int64
	info.WitnessedLevel = witnessed.Int64
	info.MainChainIndex = mci.Int64
	info.LatestIncludedMCIndex = limci.Int64
	info.LastBallUnit = lastBall.String
	info.HeadersCommission = headers.Int64
	info.PayloadCommission = payloadComm.Int64
	info.Date = time.Unix(timestamp, 0).UTC()

	if info.Parents, err = s.queryStrings(ctx,
		"SELECT parent_unit FROM parenthoods WHERE child_unit = ? ORDER BY parent_unit", unit); err != nil {
		return nil, err
	}
	if info.Children, err = s.queryStrings(ctx,
		"SELECT child_unit FROM parenthoods WHERE parent_unit = ? ORDER BY child_unit", unit); err != nil {
		return nil, err
	}
	if info.Witnesses, err = s.queryStrings(ctx,
		"SELECT address FROM unit_witnesses WHERE unit = ? ORDER BY address", unit); err != nil {
		return nil, err
	}
	if info.Authors, err = s.queryAuthors(ctx, unit); err != nil {
		return nil, err
	}
	if info.Messages, err = s.queryMessages(ctx, unit); err != nil {
		return nil, err
	}

	return &info, nil
}

func (s *Store) queryStrings(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, rows.Err()
}

func (s *Store) queryAuthors(ctx context.Context, unit string) ([]ledger.Author, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT unit_authors.address, IFNULL(definitions.definition, '') FROM unit_authors "+
			"LEFT JOIN definitions ON definitions.definition_chash = unit_authors.definition_chash "+
			"WHERE unit_authors.unit = ? ORDER BY unit_authors.address", unit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []ledger.Author{}
	for rows.Next() {
		var a ledger.Author
		if err := rows.Scan(&a.Address, &a.Definition); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// queryMessages loads the messages of a unit, with the inputs and outputs of
// its payments.
func (s *Store) queryMessages(ctx context.Context, unit string) ([]ledger.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT app, payload_location, IFNULL(payload, '') FROM messages "+
			"WHERE unit = ? ORDER BY message_index", unit)
	if err != nil {
		return nil, err
	}

	messages := []ledger.Message{}
	for rows.Next() {
		var m ledger.Message
		if err := rows.Scan(&m.App, &m.PayloadLocation, &m.Text); err != nil {
			rows.Close()
			return nil, err
		}
		if m.App == "payment" {
			m.Payment = &ledger.Payment{}
			m.Text = ""
		}
		messages = append(messages, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.queryOutputs(ctx, unit, messages); err != nil {
		return nil, err
	}
	if err := s.queryInputs(ctx, unit, messages); err != nil {
		return nil, err
	}

	return messages, nil
}

func (s *Store) queryOutputs(ctx context.Context, unit string, messages []ledger.Message) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT message_index, output_index, address, amount, IFNULL(asset, '') FROM outputs "+
			"WHERE unit = ? ORDER BY message_index, output_index", unit)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		out := ledger.Output{Unit: unit}
		if err := rows.Scan(&out.MessageIndex, &out.OutputIndex, &out.Address, &out.Amount, &out.Asset); err != nil {
			return err
		}
		if p := payment(messages, out.MessageIndex); p != nil {
			p.Asset = out.Asset
			p.Outputs = append(p.Outputs, out)
		}
	}
	return rows.Err()
}

func (s *Store) queryInputs(ctx context.Context, unit string, messages []ledger.Message) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT inputs.message_index, IFNULL(inputs.src_unit, ''), IFNULL(inputs.src_message_index, 0), "+
			"IFNULL(inputs.src_output_index, 0), IFNULL(outputs.address, inputs.address), IFNULL(outputs.amount, 0) "+
			"FROM inputs LEFT JOIN outputs ON outputs.unit = inputs.src_unit "+
			"AND outputs.message_index = inputs.src_message_index "+
			"AND outputs.output_index = inputs.src_output_index "+
			"WHERE inputs.unit = ? ORDER BY inputs.message_index, inputs.input_index", unit)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var messageIndex int
		var in ledger.Input
		if err := rows.Scan(&messageIndex, &in.Unit, &in.MessageIndex, &in.OutputIndex, &in.Address, &in.Amount); err != nil {
			return err
		}
		if p := payment(messages, messageIndex); p != nil {
			p.Inputs = append(p.Inputs, in)
		}
	}
	return rows.Err()
}

func payment(messages []ledger.Message, index int) *ledger.Payment {
	if index < 0 || index >= len(messages) {
		return nil
	}
	return messages[index].Payment
}

// FetchAddressActivity implements ledger.Source.
func (s *Store) FetchAddressActivity(ctx context.Context, address string, cursor ledger.Cursor) (*ledger.AddressActivity, error) {
	spends, err := s.queryOrdinals(ctx,
		"SELECT DISTINCT units.ROWID FROM inputs JOIN units ON units.unit = inputs.unit "+
			"WHERE inputs.address = ? AND units.ROWID < ? ORDER BY units.ROWID DESC LIMIT ?",
		address, cursor.Inputs, ledger.TransactionsPerPage)
	if err != nil {
		return nil, err
	}
	receipts, err := s.queryOrdinals(ctx,
		"SELECT DISTINCT units.ROWID FROM outputs JOIN units ON units.unit = outputs.unit "+
			"WHERE outputs.address = ? AND units.ROWID < ? ORDER BY units.ROWID DESC LIMIT ?",
		address, cursor.Outputs, ledger.TransactionsPerPage)
	if err != nil {
		return nil, err
	}

	page, next, end := ledger.NextPage(cursor, spends, receipts)

	definition, err := s.queryDefinition(ctx, address)
	if err != nil {
		return nil, err
	}

	if len(page) == 0 && definition == "" && cursor == ledger.FirstCursor() {
		return nil, common.NewExplorerErr("Address", common.NotFound, address)
	}

	res := &ledger.AddressActivity{
		Address:    address,
		Definition: definition,
		Balance:    make(map[string]int64),
		Cursor:     next,
		End:        end,
	}

	for _, ordinal := range page {
		tx, err := s.transaction(ctx, ordinal)
		if err != nil {
			return nil, err
		}
		res.Transactions = append(res.Transactions, tx)
	}

	if err := s.queryUnspent(ctx, res); err != nil {
		return nil, err
	}

	return res, nil
}

func (s *Store) queryOrdinals(ctx context.Context, query string, args ...interface{}) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []int64
	for rows.Next() {
		var o int64
		if err := rows.Scan(&o); err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

func (s *Store) queryDefinition(ctx context.Context, address string) (string, error) {
	var definition string
	err := s.db.QueryRowContext(ctx,
		"SELECT definitions.definition FROM unit_authors "+
			"JOIN definitions ON definitions.definition_chash = unit_authors.definition_chash "+
			"WHERE unit_authors.address = ? ORDER BY unit_authors.ROWID DESC LIMIT 1", address).Scan(&definition)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return definition, err
}

func (s *Store) transaction(ctx context.Context, ordinal int64) (ledger.Transaction, error) {
	var (
		tx        ledger.Transaction
		sequence  string
		timestamp int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT ROWID, unit, is_stable, sequence, CAST(strftime('%s', creation_date) AS INTEGER) "+
			"FROM units WHERE ROWID = ?", ordinal).Scan(
		&tx.Ordinal, &tx.Unit, &tx.Stable, &sequence, &timestamp)
	if err != nil {
		return tx, err
	}
	tx.Sequence = graph.Sequence(sequence)
	tx.Date = time.Unix(timestamp, 0).UTC()

	messages, err := s.queryMessages(ctx, tx.Unit)
	if err != nil {
		return tx, err
	}
	for _, m := range messages {
		if m.Payment == nil {
			continue
		}
		tx.From = append(tx.From, m.Payment.Inputs...)
		tx.To = append(tx.To, m.Payment.Outputs...)
	}
	return tx, nil
}

func (s *Store) queryUnspent(ctx context.Context, res *ledger.AddressActivity) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT unit, message_index, output_index, amount, IFNULL(asset, '') FROM outputs "+
			"WHERE address = ? AND is_spent = 0 ORDER BY output_id DESC", res.Address)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		out := ledger.Output{Address: res.Address}
		if err := rows.Scan(&out.Unit, &out.MessageIndex, &out.OutputIndex, &out.Amount, &out.Asset); err != nil {
			return err
		}
		res.Unspent = append(res.Unspent, out)
		asset := out.Asset
		if asset == "" {
			asset = ledger.BaseAsset
		}
		res.Balance[asset] += out.Amount
	}
	return rows.Err()
}

// CheckStabilityChanges implements ledger.Source.
func (s *Store) CheckStabilityChanges(ctx context.Context, candidates []string) ([]graph.StableUnit, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	args := make([]interface{}, len(candidates))
	for i, c := range candidates {
		args[i] = c
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT unit, is_on_main_chain FROM units WHERE unit IN ("+placeholders(len(args))+") AND is_stable = 1",
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []graph.StableUnit
	for rows.Next() {
		var su graph.StableUnit
		if err := rows.Scan(&su.ID, &su.OnMainChain); err != nil {
			return nil, err
		}
		res = append(res, su)
	}
	return res, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
