package wamp

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gammazero/nexus/v3/client"
	"github.com/gammazero/nexus/v3/wamp"
	"github.com/google/uuid"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/common"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/graph"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/ledger"
	"github.com/sirupsen/logrus"
)

// Client queries the relay through the WAMP router. It implements
// ledger.Source and ledger.StableWindowSource.
type Client struct {
	id        string
	routerURL string
	config    client.Config
	client    *client.Client
	logger    *logrus.Entry
}

// NewClient instantiates a new Client, and opens a connection to the router.
// With useTLS, the router certificate is checked against caFile when it
// exists, or against the platform roots otherwise.
func NewClient(
	server string,
	realm string,
	useTLS bool,
	caFile string,
	insecureSkipVerify bool,
	responseTimeout time.Duration,
	logger *logrus.Entry,
) (*Client, error) {

	id := uuid.New().String()
	logger = logger.WithField("client", id)

	cfg := client.Config{
		Realm:           realm,
		ResponseTimeout: responseTimeout,
		Logger:          logger,
	}

	scheme := "ws"
	if useTLS {
		tlscfg, err := tlsConfig(caFile, insecureSkipVerify, logger)
		if err != nil {
			return nil, err
		}
		cfg.TlsCfg = tlscfg
		scheme = "wss"
	}

	res := &Client{
		id:        id,
		routerURL: fmt.Sprintf("%s://%s", scheme, server),
		config:    cfg,
		logger:    logger,
	}

	if err := res.Connect(); err != nil {
		return nil, err
	}

	return res, nil
}

func tlsConfig(caFile string, insecureSkipVerify bool, logger *logrus.Entry) (*tls.Config, error) {
	tlscfg := &tls.Config{}

	if insecureSkipVerify {
		logger.Debug("Skip Verify. Accepting any certificate provided by the router.")
		tlscfg.InsecureSkipVerify = true
		return tlscfg, nil
	}

	if _, err := os.Stat(caFile); caFile == "" || os.IsNotExist(err) {
		logger.Debug("No certificate file found. Relying on platform trusted certificates.")
		return tlscfg, nil
	}

	certPEM, err := os.ReadFile(caFile)
	if err != nil {
		return nil, err
	}

	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM(certPEM) {
		return nil, errors.New("Failed to import certificate to trust")
	}
	tlscfg.RootCAs = roots

	block, _ := pem.Decode(certPEM)
	if block == nil {
		return nil, errors.New("Failed to decode certificate to trust")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, err
	}

	logger.Debugf("Trusting certificate %s with CN: %s", caFile, cert.Subject.CommonName)

	// the CN of the trusted certificate may differ from the DNS name
	tlscfg.ServerName = cert.Subject.CommonName

	return tlscfg, nil
}

// Connect connects the Client to the router. It does nothing if the Client is
// already connected.
func (c *Client) Connect() error {
	if c.client != nil && c.client.Connected() {
		return nil
	}

	cli, err := client.ConnectNet(context.Background(), c.routerURL, c.config)
	if err != nil {
		return err
	}

	c.client = cli

	return nil
}

// ID returns the identifier of the Client in the logs.
func (c *Client) ID() string {
	return c.id
}

// Done is closed when the Client is disconnected from the router.
func (c *Client) Done() <-chan struct{} {
	return c.client.Done()
}

// Close closes the connection to the router.
func (c *Client) Close() error {
	return c.client.Close()
}

// FetchWindow implements ledger.Source.
func (c *Client) FetchWindow(ctx context.Context, anchor graph.Anchor, dir graph.Direction, limit int) (*graph.Slice, error) {
	slice, _, err := c.FetchWindowStable(ctx, anchor, dir, limit, nil)
	return slice, err
}

// FetchWindowStable implements ledger.StableWindowSource.
func (c *Client) FetchWindowStable(ctx context.Context, anchor graph.Anchor, dir graph.Direction, limit int, notStable []string) (*graph.Slice, []graph.StableUnit, error) {
	var res WindowResult
	err := c.call(ctx, ProcWindow, WindowArgs{
		Anchor:    anchor,
		Direction: dir,
		Limit:     limit,
		NotStable: notStable,
	}, &res)
	if err != nil {
		return nil, nil, err
	}
	if res.Slice == nil {
		res.Slice = &graph.Slice{}
	}
	return res.Slice, res.Stable, nil
}

// FetchUnitDetail implements ledger.Source.
func (c *Client) FetchUnitDetail(ctx context.Context, unit string) (*ledger.UnitInfo, error) {
	var res ledger.UnitInfo
	if err := c.call(ctx, ProcUnit, unit, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// FetchAddressActivity implements ledger.Source.
func (c *Client) FetchAddressActivity(ctx context.Context, address string, cursor ledger.Cursor) (*ledger.AddressActivity, error) {
	var res ledger.AddressActivity
	if err := c.call(ctx, ProcAddress, AddressArgs{Address: address, Cursor: cursor}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CheckStabilityChanges implements ledger.Source.
func (c *Client) CheckStabilityChanges(ctx context.Context, candidates []string) ([]graph.StableUnit, error) {
	var res []graph.StableUnit
	if err := c.call(ctx, ProcStability, candidates, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// Subscribe forwards the live notifications of the relay. onTip receives the
// new units, onStable the units which became stable. Both are called from
// the connection goroutine and must not block.
func (c *Client) Subscribe(onTip func(graph.Node), onStable func([]graph.StableUnit)) error {
	err := c.client.Subscribe(TopicUpdate, func(event *wamp.Event) {
		var node graph.Node
		if err := Decode(event.Arguments, &node); err != nil {
			c.logger.WithError(err).Warn("Decoding update")
			return
		}
		onTip(node)
	}, nil)
	if err != nil {
		return err
	}

	return c.client.Subscribe(TopicStability, func(event *wamp.Event) {
		var units []graph.StableUnit
		if err := Decode(event.Arguments, &units); err != nil {
			c.logger.WithError(err).Warn("Decoding stability")
			return
		}
		onStable(units)
	}, nil)
}

func (c *Client) call(ctx context.Context, procedure string, arg interface{}, res interface{}) error {
	args, err := Encode(arg)
	if err != nil {
		return err
	}

	if c.config.ResponseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ResponseTimeout)
		defer cancel()
	}

	result, err := c.client.Call(ctx, procedure, nil, args, nil, nil)
	if err != nil {
		return callError(err)
	}

	c.logger.WithField("procedure", procedure).Debug("Call")

	return Decode(result.Arguments, res)
}

// callError turns a NotFound error URI back into a common.ExplorerErr.
func callError(err error) error {
	var werr *wamp.Error
	switch e := err.(type) {
	case client.RPCError:
		werr = e.Err
	case *client.RPCError:
		werr = e.Err
	}
	if werr == nil {
		return err
	}

	if werr.Error == ErrNotFound && len(werr.Arguments) == 2 {
		subject, _ := wamp.AsString(werr.Arguments[0])
		key, _ := wamp.AsString(werr.Arguments[1])
		return common.NewExplorerErr(subject, common.NotFound, key)
	}

	if len(werr.Arguments) > 0 {
		if msg, ok := wamp.AsString(werr.Arguments[0]); ok {
			return fmt.Errorf("%s: %s", werr.Error, msg)
		}
	}
	return err
}
