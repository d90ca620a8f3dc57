package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/config"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/feed"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/ledger"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/ledger/sqlstore"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/net/wamp"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/relay"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/service"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds the graceful shutdown of the HTTP service.
const shutdownTimeout = 5 * time.Second

// NewRunCmd returns the command that starts the explorer relay
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run the explorer relay",
		PreRunE: loadRunConfig,
		RunE:    runRelay,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runRelay(cmd *cobra.Command, args []string) error {
	logger := _config.Logger()

	source, writer, closeSource, err := openSource(logger)
	if err != nil {
		logger.WithError(err).Error("Cannot open ledger source")
		return err
	}
	defer closeSource()

	certFile, keyFile := "", ""
	if _config.WAMPTLS {
		certFile, keyFile = _config.CertFile(), _config.KeyFile()
	}

	server, err := wamp.NewServer(_config.WAMPAddr,
		_config.WAMPRealm,
		certFile,
		keyFile,
		logger.WithField("component", "wamp-server"))
	if err != nil {
		return err
	}
	if err := server.Listen(); err != nil {
		return err
	}

	peer, err := server.Local(logger.WithField("component", "wamp-peer"))
	if err != nil {
		server.Shutdown()
		return err
	}
	defer peer.Close()

	rel := relay.NewRelay(source, writer, peer, logger.WithField("component", "relay"))
	if err := rel.Register(); err != nil {
		server.Shutdown()
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(server.Run)
	g.Go(func() error {
		<-ctx.Done()
		server.Shutdown()
		return nil
	})

	if !_config.NoFeed {
		sub, err := feed.NewSubscriber(_config.NATSAddr, logger.WithField("component", "feed"))
		if err != nil {
			stop()
			_ = g.Wait()
			return err
		}
		defer sub.Close()

		cancel, err := sub.Subscribe(rel)
		if err != nil {
			stop()
			_ = g.Wait()
			return err
		}
		defer cancel()
	}

	if !_config.NoService {
		svc := service.NewService(_config.ServiceAddr, rel, logger.WithField("component", "service"))
		g.Go(svc.Serve)
		g.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return svc.Shutdown(sctx)
		})
	}

	logger.WithFields(logrus.Fields{
		"wamp":    server.Addr(),
		"realm":   server.Realm(),
		"source":  _config.Source,
		"feed":    !_config.NoFeed,
		"service": !_config.NoService,
	}).Info("Explorer relay running")

	err = g.Wait()

	logger.WithFields(toFields(rel.Stats())).Info("Explorer relay stopped")

	return err
}

// openSource opens the ledger source selected by the configuration. The
// writer is nil when the ledger node maintains the source itself.
func openSource(logger *logrus.Entry) (ledger.Source, ledger.Writer, func(), error) {
	switch _config.Source {
	case config.SourceMemory:
		store := ledger.NewInmemStore()
		return store, store, func() { store.Close() }, nil
	case config.SourceBadger:
		store, err := ledger.NewBadgerStore(_config.DatabaseDir, logger.WithField("component", "badger"))
		if err != nil {
			return nil, nil, nil, err
		}
		return store, store, func() { store.Close() }, nil
	case config.SourceSQLite:
		store, err := sqlstore.Open(_config.SQLitePath, logger.WithField("component", "sqlite"))
		if err != nil {
			return nil, nil, nil, err
		}
		return store, nil, func() { store.Close() }, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown ledger source %q", _config.Source)
	}
}

func toFields(stats map[string]string) logrus.Fields {
	fields := make(logrus.Fields, len(stats))
	for k, v := range stats {
		fields[k] = v
	}
	return fields
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

// AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {
	addCommonFlags(cmd)

	// Source
	cmd.Flags().String("source", _config.Source, "Ledger source: memory, badger or sqlite")
	cmd.Flags().String("db", _config.DatabaseDir, "Badger database directory")
	cmd.Flags().String("sqlite", _config.SQLitePath, "Ledger node sqlite database")

	// Feed
	cmd.Flags().String("nats", _config.NATSAddr, "URL of the NATS server of the ledger notifications")
	cmd.Flags().Bool("no-feed", _config.NoFeed, "Do not subscribe to the ledger notifications")

	// Service
	cmd.Flags().Bool("no-service", _config.NoService, "Disable the HTTP API")
	cmd.Flags().StringP("service-listen", "s", _config.ServiceAddr, "Listen IP:Port for HTTP service")
}

func loadRunConfig(cmd *cobra.Command, args []string) error {
	if err := bindFlagsLoadViper(cmd); err != nil {
		return err
	}

	fields := logrus.Fields{
		"Source":      _config.Source,
		"NoFeed":      _config.NoFeed,
		"NoService":   _config.NoService,
		"ServiceAddr": _config.ServiceAddr,
	}

	switch _config.Source {
	case config.SourceBadger:
		fields["DatabaseDir"] = _config.DatabaseDir
	case config.SourceSQLite:
		fields["SQLitePath"] = _config.SQLitePath
	}

	if !_config.NoFeed {
		fields["NATSAddr"] = _config.NATSAddr
	}

	logConfig(fields)

	return nil
}
