// Package feed carries the notifications of the ledger node over NATS: new
// joints and units which became stable. The ledger side publishes, the relay
// subscribes and mirrors them.
package feed

import (
	"fmt"
	"time"

	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/graph"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/ledger"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// NATS subjects of the ledger notifications.
const (
	SubjectJoint  = "ledger.joint.new"
	SubjectStable = "ledger.units.stable"
	subjectAll    = "ledger.>"
)

// Handler receives the notifications of a Subscriber. Calls are sequential.
type Handler interface {
	OnJoint(unit *ledger.Unit)
	OnStable(units []graph.StableUnit)
}

// Publisher announces ledger notifications.
type Publisher struct {
	conn   *nats.Conn
	logger *logrus.Entry
}

// NewPublisher connects a Publisher to the NATS server at url.
func NewPublisher(url string, logger *logrus.Entry) (*Publisher, error) {
	nc, err := nats.Connect(url, nats.Name("ledger-publisher"))
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &Publisher{conn: nc, logger: logger}, nil
}

// PublishJoint announces a new unit.
func (p *Publisher) PublishJoint(unit *ledger.Unit) error {
	return p.publish(SubjectJoint, unit)
}

// PublishStable announces units which became stable.
func (p *Publisher) PublishStable(units []graph.StableUnit) error {
	return p.publish(SubjectStable, units)
}

func (p *Publisher) publish(subject string, v interface{}) error {
	data, err := ledger.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", subject, err)
	}
	p.logger.WithField("subject", subject).Debug("Publish")
	return p.conn.Publish(subject, data)
}

// Flush waits until the server has processed the published messages.
func (p *Publisher) Flush() error {
	return p.conn.Flush()
}

// Close closes the connection.
func (p *Publisher) Close() error {
	p.conn.Close()
	return nil
}

// Subscriber receives ledger notifications.
type Subscriber struct {
	conn   *nats.Conn
	logger *logrus.Entry
}

// NewSubscriber connects to NATS with automatic reconnection. Extra options
// are appended to the defaults.
func NewSubscriber(url string, logger *logrus.Entry, opts ...nats.Option) (*Subscriber, error) {
	defaults := []nats.Option{
		nats.Name("explorer-relay"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &Subscriber{conn: nc, logger: logger}, nil
}

// Subscribe dispatches every ledger notification to h until the returned
// cancel function is called. Malformed payloads are logged and dropped.
func (s *Subscriber) Subscribe(h Handler) (func(), error) {
	sub, err := s.conn.Subscribe(subjectAll, func(msg *nats.Msg) {
		s.dispatch(h, msg)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", subjectAll, err)
	}
	// the subscription must be registered before messages published on
	// other connections are routed to it
	if err := s.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("flushing subscription: %w", err)
	}

	return func() { _ = sub.Unsubscribe() }, nil
}

func (s *Subscriber) dispatch(h Handler, msg *nats.Msg) {
	switch msg.Subject {
	case SubjectJoint:
		var unit ledger.Unit
		if err := ledger.Unmarshal(msg.Data, &unit); err != nil {
			s.logger.WithError(err).Warn("Decoding joint")
			return
		}
		if unit.ID == "" {
			s.logger.Warn("Joint without unit")
			return
		}
		if unit.Label == "" {
			unit.Label = graph.ShortLabel(unit.ID)
		}
		h.OnJoint(&unit)
	case SubjectStable:
		var units []graph.StableUnit
		if err := ledger.Unmarshal(msg.Data, &units); err != nil {
			s.logger.WithError(err).Warn("Decoding stable units")
			return
		}
		if len(units) > 0 {
			h.OnStable(units)
		}
	default:
		s.logger.WithField("subject", msg.Subject).Debug("Ignoring subject")
	}
}

// Close closes the connection.
func (s *Subscriber) Close() error {
	s.conn.Close()
	return nil
}
