package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/common"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/explorer"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/ledger"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/net/wamp"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/session"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultBadgerFile is the default name of the folder containing the Badger
	// mirror of the ledger
	DefaultBadgerFile = "badger_db"

	// DefaultSQLiteFile is the default name of the ledger node's database
	DefaultSQLiteFile = "intervalue.sqlite"

	// DefaultCertFile is the default name of the file containing the TLS
	// certificate of the WAMP relay.
	DefaultCertFile = "cert.pem"

	// DefaultKeyFile is the default name of the file containing the TLS
	// private key of the WAMP relay.
	DefaultKeyFile = "key.pem"
)

// Ledger sources.
const (
	SourceMemory = "memory"
	SourceBadger = "badger"
	SourceSQLite = "sqlite"
)

// Default configuration values.
const (
	DefaultLogLevel          = "debug"
	DefaultSource            = SourceMemory
	DefaultNATSAddr          = "nats://127.0.0.1:4222"
	DefaultWAMPAddr          = "127.0.0.1:8080"
	DefaultWAMPRealm         = wamp.DefaultRealm
	DefaultServiceAddr       = "127.0.0.1:8000"
	DefaultLimit             = ledger.DefaultLimit
	DefaultMaxRetained       = 0
	DefaultViewportHeight    = 800
	DefaultStabilityInterval = 10 * time.Second
	DefaultTimeout           = 15 * time.Second
)

// Config contains all the configuration properties of the explorer relay and
// of the watch client.
type Config struct {
	// DataDir is the top-level directory containing the explorer configuration
	// and data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, receives a JSON copy of every log entry.
	LogFile string `mapstructure:"log-file"`

	// Source selects the ledger source served by the relay: memory, badger or
	// sqlite.
	Source string `mapstructure:"source"`

	// DatabaseDir is the directory of the badger mirror.
	DatabaseDir string `mapstructure:"db"`

	// SQLitePath is the path of the ledger node's sqlite database.
	SQLitePath string `mapstructure:"sqlite"`

	// NATSAddr is the URL of the NATS server carrying the ledger
	// notifications.
	NATSAddr string `mapstructure:"nats"`

	// NoFeed disables the subscription to the ledger notifications. The
	// memory and badger sources then stay empty unless they are bootstrapped.
	NoFeed bool `mapstructure:"no-feed"`

	// WAMPAddr is the address:port of the WAMP relay. The relay listens on it
	// and the watch command connects to it.
	WAMPAddr string `mapstructure:"wamp-listen"`

	// WAMPRealm is the WAMP realm of the explorer procedures and topics.
	WAMPRealm string `mapstructure:"wamp-realm"`

	// WAMPTLS serves and dials the relay over wss, with the certificate and
	// key found in the datadir.
	WAMPTLS bool `mapstructure:"wamp-tls"`

	// WAMPSkipVerify controls whether the watch client verifies the relay's
	// certificate chain and host name. This should be used only for testing.
	WAMPSkipVerify bool `mapstructure:"wamp-skip-verify"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the HTTP API service.
	ServiceAddr string `mapstructure:"service-listen"`

	// Limit is the number of units in a window page.
	Limit int `mapstructure:"limit"`

	// MaxRetained caps the number of units a session keeps loaded. 0 keeps
	// everything.
	MaxRetained int `mapstructure:"max-retained"`

	// ViewportHeight is the initial height of a session's viewport.
	ViewportHeight float64 `mapstructure:"viewport-height"`

	// StabilityInterval is the period of the stability checks of a session.
	StabilityInterval time.Duration `mapstructure:"stability-interval"`

	// Timeout bounds the ledger queries and the WAMP calls.
	Timeout time.Duration `mapstructure:"timeout"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:           DefaultDataDir(),
		LogLevel:          DefaultLogLevel,
		Source:            DefaultSource,
		DatabaseDir:       DefaultDatabaseDir(),
		SQLitePath:        DefaultSQLitePath(),
		NATSAddr:          DefaultNATSAddr,
		WAMPAddr:          DefaultWAMPAddr,
		WAMPRealm:         DefaultWAMPRealm,
		ServiceAddr:       DefaultServiceAddr,
		Limit:             DefaultLimit,
		MaxRetained:       DefaultMaxRetained,
		ViewportHeight:    DefaultViewportHeight,
		StabilityInterval: DefaultStabilityInterval,
		Timeout:           DefaultTimeout,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level directory, and moves the database paths which
// are still set to their default values inside it.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
	if c.SQLitePath == DefaultSQLitePath() {
		c.SQLitePath = filepath.Join(dataDir, DefaultSQLiteFile)
	}
}

// CertFile returns the full path of the file containing the relay's TLS
// certificate.
func (c *Config) CertFile() string {
	return filepath.Join(c.DataDir, DefaultCertFile)
}

// KeyFile returns the full path of the file containing the relay's TLS key.
func (c *Config) KeyFile() string {
	return filepath.Join(c.DataDir, DefaultKeyFile)
}

// SessionConfig returns the configuration of the exploration sessions.
func (c *Config) SessionConfig() session.Config {
	conf := session.DefaultConfig()
	conf.Explorer = explorer.Config{
		Limit:          c.Limit,
		MaxRetained:    c.MaxRetained,
		ViewportHeight: c.ViewportHeight,
		Layout:         conf.Explorer.Layout,
	}
	conf.StabilityInterval = c.StabilityInterval
	conf.FetchTimeout = c.Timeout
	return conf
}

// Logger returns a formatted logrus Entry, with prefix set to "explorer".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)
		if c.LogFile != "" {
			c.logger.AddHook(lfshook.NewHook(c.LogFile, &logrus.JSONFormatter{}))
		}
	}
	return c.logger.WithField("prefix", "explorer")
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultSQLitePath returns the default path of the ledger node's database.
func DefaultSQLitePath() string {
	return filepath.Join(DefaultDataDir(), DefaultSQLiteFile)
}

// DefaultDataDir return the default directory name for top-level explorer
// config based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".IntervalueExplorer")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "IntervalueExplorer")
		} else {
			return filepath.Join(home, ".intervalue-explorer")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
