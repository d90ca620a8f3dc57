// Package config defines the configuration of the explorer.
//
// The relay (explorer run) and the terminal client (explorer watch) share the
// Config object defined in this package. Options come from the command line
// flags and from an optional explorer.toml file in the data directory,
// Config.DataDir, which may also hold:
//
//	badger_db/ // the badger mirror of the ledger (--source badger).
//	intervalue.sqlite // the ledger node's database (--source sqlite).
//	cert.pem, key.pem // (optional) the TLS certificate and key of the WAMP relay.
package config
