package ledger

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/common"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/graph"
	"github.com/sirupsen/logrus"
)

const unitPrefix = "unit"

// BadgerStore persists the mirrored units in a Badger database and serves
// queries from an InmemStore. The InmemStore is rebuilt from the database
// when the store is opened.
type BadgerStore struct {
	inmemStore *InmemStore
	db         *badger.DB
	path       string
	logger     *logrus.Entry
}

// NewBadgerStore opens the database in path, or creates it, and replays the
// units it contains.
func NewBadgerStore(path string, logger *logrus.Entry) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).
		WithSyncWrites(false).
		WithTruncate(true)

	if logger != nil {
		sub := logger.WithFields(logrus.Fields{"ns": "badger"})
		opts = opts.WithLogger(sub)
	}

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	store := &BadgerStore{
		inmemStore: NewInmemStore(),
		db:         handle,
		path:       path,
		logger:     logger,
	}

	if err := store.bootstrap(); err != nil {
		handle.Close()
		return nil, err
	}

	return store, nil
}

/*******************************************************************************
Keys
*******************************************************************************/

func unitKey(ordinal int64) []byte {
	return []byte(fmt.Sprintf("%s_%012d", unitPrefix, ordinal))
}

/*******************************************************************************
Implement the Store interface
*******************************************************************************/

// FetchWindow implements the Source interface.
func (s *BadgerStore) FetchWindow(ctx context.Context, anchor graph.Anchor, dir graph.Direction, limit int) (*graph.Slice, error) {
	return s.inmemStore.FetchWindow(ctx, anchor, dir, limit)
}

// FetchUnitDetail implements the Source interface.
func (s *BadgerStore) FetchUnitDetail(ctx context.Context, unit string) (*UnitInfo, error) {
	return s.inmemStore.FetchUnitDetail(ctx, unit)
}

// FetchAddressActivity implements the Source interface.
func (s *BadgerStore) FetchAddressActivity(ctx context.Context, address string, cursor Cursor) (*AddressActivity, error) {
	return s.inmemStore.FetchAddressActivity(ctx, address, cursor)
}

// CheckStabilityChanges implements the Source interface.
func (s *BadgerStore) CheckStabilityChanges(ctx context.Context, candidates []string) ([]graph.StableUnit, error) {
	return s.inmemStore.CheckStabilityChanges(ctx, candidates)
}

// AddUnit implements the Writer interface. The unit is written to the
// database with the ordinal assigned by the InmemStore.
func (s *BadgerStore) AddUnit(unit *Unit) error {
	if _, err := s.inmemStore.GetUnit(unit.ID); err == nil {
		return nil
	}
	if err := s.inmemStore.AddUnit(unit); err != nil {
		return err
	}
	stored, err := s.inmemStore.GetUnit(unit.ID)
	if err != nil {
		return err
	}
	return s.dbSetUnits([]*Unit{stored})
}

// MarkStable implements the Writer interface.
func (s *BadgerStore) MarkStable(units []graph.StableUnit) error {
	if err := s.inmemStore.MarkStable(units); err != nil {
		return err
	}

	var changed []*Unit
	for _, su := range units {
		u, err := s.inmemStore.GetUnit(su.ID)
		if err != nil {
			if common.IsExplorer(err, common.NotFound) {
				continue
			}
			return err
		}
		changed = append(changed, u)
	}

	return s.dbSetUnits(changed)
}

// Len returns the number of units.
func (s *BadgerStore) Len() int {
	return s.inmemStore.Len()
}

// LastOrdinal returns the ordinal of the newest unit.
func (s *BadgerStore) LastOrdinal() int64 {
	return s.inmemStore.LastOrdinal()
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	if err := s.inmemStore.Close(); err != nil {
		return err
	}
	return s.db.Close()
}

// StorePath returns the directory of the database.
func (s *BadgerStore) StorePath() string {
	return s.path
}

/*******************************************************************************
DB Methods
*******************************************************************************/

func (s *BadgerStore) bootstrap() error {
	units, err := s.dbUnits()
	if err != nil {
		return err
	}

	for _, u := range units {
		if err := s.inmemStore.AddUnit(u); err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"path":  s.path,
			"units": len(units),
		}).Debug("Loaded badger store")
	}

	return nil
}

func (s *BadgerStore) dbGetUnit(ordinal int64) (*Unit, error) {
	var unitBytes []byte
	key := unitKey(ordinal)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		unitBytes, err = item.ValueCopy(nil)
		return err
	})

	if err != nil {
		return nil, mapError(err, "Unit", string(key))
	}

	unit := new(Unit)
	if err := Unmarshal(unitBytes, unit); err != nil {
		return nil, err
	}

	return unit, nil
}

func (s *BadgerStore) dbSetUnits(units []*Unit) error {
	if len(units) == 0 {
		return nil
	}

	tx := s.db.NewTransaction(true)
	defer tx.Discard()

	for _, u := range units {
		val, err := Marshal(u)
		if err != nil {
			return err
		}
		if err := tx.Set(unitKey(u.Ordinal), val); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// dbUnits reads all the units in increasing ordinal order.
func (s *BadgerStore) dbUnits() ([]*Unit, error) {
	res := []*Unit{}
	prefix := []byte(unitPrefix + "_")

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			unit := new(Unit)
			if err := Unmarshal(val, unit); err != nil {
				return err
			}
			res = append(res, unit)
		}

		return nil
	})

	return res, err
}

func isDBKeyNotFound(err error) bool {
	return err.Error() == badger.ErrKeyNotFound.Error()
}

func mapError(err error, name, key string) error {
	if err != nil {
		if isDBKeyNotFound(err) {
			return common.NewExplorerErr(name, common.NotFound, key)
		}
	}
	return err
}
