package wamp

import (
	"context"
	"errors"

	"github.com/gammazero/nexus/v3/client"
	"github.com/gammazero/nexus/v3/wamp"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/common"
	"github.com/sirupsen/logrus"
)

// Handler serves a procedure. The returned value is encoded as the result of
// the call.
type Handler func(ctx context.Context, args wamp.List) (interface{}, error)

// Peer is the relay side of the router: it registers procedures and publishes
// topics.
type Peer struct {
	client *client.Client
	logger *logrus.Entry
}

func newPeer(cli *client.Client, logger *logrus.Entry) *Peer {
	return &Peer{
		client: cli,
		logger: logger,
	}
}

// Register serves a procedure with h.
func (p *Peer) Register(procedure string, h Handler) error {
	invocationHandler := func(ctx context.Context, inv *wamp.Invocation) client.InvokeResult {
		res, err := h(ctx, inv.Arguments)
		if err != nil {
			return p.errResult(procedure, err)
		}

		args, err := Encode(res)
		if err != nil {
			return p.errResult(procedure, err)
		}

		return client.InvokeResult{Args: args}
	}

	if err := p.client.Register(procedure, invocationHandler, nil); err != nil {
		p.logger.WithError(err).WithField("procedure", procedure).Error("Failed to register procedure")
		return err
	}

	p.logger.WithField("procedure", procedure).Debug("Registered procedure with router")
	return nil
}

// Publish broadcasts a value to the subscribers of a topic.
func (p *Peer) Publish(topic string, v interface{}) error {
	args, err := Encode(v)
	if err != nil {
		return err
	}
	return p.client.Publish(topic, nil, args, nil)
}

// Close disconnects the Peer from the router.
func (p *Peer) Close() error {
	return p.client.Close()
}

func (p *Peer) errResult(procedure string, err error) client.InvokeResult {
	var explorerErr common.ExplorerErr
	if errors.As(err, &explorerErr) && explorerErr.Type() == common.NotFound {
		return client.InvokeResult{
			Err:  ErrNotFound,
			Args: wamp.List{explorerErr.Subject(), explorerErr.Key()},
		}
	}

	var argErr argumentError
	if errors.As(err, &argErr) {
		return client.InvokeResult{
			Err:  ErrInvalidArgument,
			Args: wamp.List{argErr.Error()},
		}
	}

	p.logger.WithError(err).WithField("procedure", procedure).Error("Call failed")

	return client.InvokeResult{
		Err:  ErrFailure,
		Args: wamp.List{err.Error()},
	}
}

// argumentError marks the calls whose arguments could not be decoded.
type argumentError struct {
	err error
}

func (e argumentError) Error() string {
	return e.err.Error()
}

// InvalidArgument wraps a decoding error so that the caller receives
// ErrInvalidArgument.
func InvalidArgument(err error) error {
	return argumentError{err: err}
}
