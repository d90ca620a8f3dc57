// Package ledger defines how the explorer reads the ledger.
//
// Source is the query interface consumed by the explorer: window slices,
// unit details, address activity and stability checks. Writer is implemented
// by the stores that mirror the ledger from its notifications.
//
// InmemStore keeps everything in memory and is used in tests and as the
// cache of BadgerStore, which persists the mirrored units in a Badger
// database and replays them when it is loaded again. The sqlstore
// sub-package reads the ledger node's own SQL database instead.
package ledger
