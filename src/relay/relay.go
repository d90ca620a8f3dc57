// Package relay serves the ledger to the explorer sessions. It answers the
// WAMP procedures from a ledger.Source, mirrors the notifications of the
// ledger feed into a ledger.Writer when there is one, and broadcasts them to
// the sessions.
package relay

import (
	"context"
	"strconv"
	"sync/atomic"

	nexus "github.com/gammazero/nexus/v3/wamp"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/common"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/graph"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/ledger"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/net/wamp"
	"github.com/sirupsen/logrus"
)

// Relay binds a ledger.Source to the WAMP router. It implements
// feed.Handler.
type Relay struct {
	source ledger.Source
	writer ledger.Writer
	peer   *wamp.Peer
	logger *logrus.Entry

	calls     uint64
	notFound  uint64
	joints    uint64
	stable    uint64
	published uint64
}

// NewRelay creates a Relay. writer is nil when the source is maintained by the
// ledger node itself, and peer is nil when nothing is broadcast.
func NewRelay(source ledger.Source, writer ledger.Writer, peer *wamp.Peer, logger *logrus.Entry) *Relay {
	return &Relay{
		source: source,
		writer: writer,
		peer:   peer,
		logger: logger,
	}
}

// Register serves the explorer procedures through the peer.
func (r *Relay) Register() error {
	procedures := map[string]wamp.Handler{
		wamp.ProcWindow:    r.window,
		wamp.ProcUnit:      r.unit,
		wamp.ProcAddress:   r.address,
		wamp.ProcStability: r.stability,
	}
	for proc, h := range procedures {
		if err := r.peer.Register(proc, h); err != nil {
			return err
		}
	}
	return nil
}

// Window answers a window query. The stability of the not-stable units is
// checked in the same call. When the unit or address anchor of an initial
// query is missing, the last window is returned instead, flagged NotFound.
func (r *Relay) Window(ctx context.Context, args wamp.WindowArgs) (*wamp.WindowResult, error) {
	atomic.AddUint64(&r.calls, 1)

	slice, stable, err := ledger.FetchWindowStable(ctx, r.source, args.Anchor, args.Direction, args.Limit, args.NotStable)
	if common.IsExplorer(err, common.NotFound) && args.Direction == graph.Initial &&
		(args.Anchor.Kind == graph.AnchorUnit || args.Anchor.Kind == graph.AnchorAddress) {

		atomic.AddUint64(&r.notFound, 1)
		r.logger.WithField("anchor", args.Anchor.String()).Debug("Anchor not found, falling back to the last window")

		slice, stable, err = ledger.FetchWindowStable(ctx, r.source, graph.LastAnchor(), graph.Initial, args.Limit, args.NotStable)
		if err == nil {
			slice.NotFound = true
		}
	}
	if err != nil {
		return nil, err
	}

	return &wamp.WindowResult{Slice: slice, Stable: stable}, nil
}

func (r *Relay) window(ctx context.Context, args nexus.List) (interface{}, error) {
	var a wamp.WindowArgs
	if err := wamp.Decode(args, &a); err != nil {
		return nil, wamp.InvalidArgument(err)
	}
	return r.Window(ctx, a)
}

func (r *Relay) unit(ctx context.Context, args nexus.List) (interface{}, error) {
	var unit string
	if err := wamp.Decode(args, &unit); err != nil {
		return nil, wamp.InvalidArgument(err)
	}
	return r.UnitDetail(ctx, unit)
}

// UnitDetail returns the details of a unit.
func (r *Relay) UnitDetail(ctx context.Context, unit string) (*ledger.UnitInfo, error) {
	atomic.AddUint64(&r.calls, 1)
	return r.source.FetchUnitDetail(ctx, unit)
}

func (r *Relay) address(ctx context.Context, args nexus.List) (interface{}, error) {
	var a wamp.AddressArgs
	if err := wamp.Decode(args, &a); err != nil {
		return nil, wamp.InvalidArgument(err)
	}
	return r.AddressActivity(ctx, a.Address, a.Cursor)
}

// AddressActivity returns a page of the activity of an address. The zero
// Cursor is the first page.
func (r *Relay) AddressActivity(ctx context.Context, address string, cursor ledger.Cursor) (*ledger.AddressActivity, error) {
	if cursor == (ledger.Cursor{}) {
		cursor = ledger.FirstCursor()
	}
	atomic.AddUint64(&r.calls, 1)
	return r.source.FetchAddressActivity(ctx, address, cursor)
}

func (r *Relay) stability(ctx context.Context, args nexus.List) (interface{}, error) {
	var candidates []string
	if err := wamp.Decode(args, &candidates); err != nil {
		return nil, wamp.InvalidArgument(err)
	}
	return r.Stability(ctx, candidates)
}

// Stability returns the candidates which are stable.
func (r *Relay) Stability(ctx context.Context, candidates []string) ([]graph.StableUnit, error) {
	atomic.AddUint64(&r.calls, 1)
	res, err := r.source.CheckStabilityChanges(ctx, candidates)
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = []graph.StableUnit{}
	}
	return res, nil
}

// OnJoint implements feed.Handler. The unit is mirrored and announced to the
// sessions as a new tip.
func (r *Relay) OnJoint(unit *ledger.Unit) {
	atomic.AddUint64(&r.joints, 1)

	if r.writer != nil {
		if err := r.writer.AddUnit(unit); err != nil {
			r.logger.WithError(err).WithField("unit", unit.ID).Error("Mirroring joint")
			return
		}
	}

	r.logger.WithFields(logrus.Fields{
		"unit":    unit.ID,
		"ordinal": unit.Ordinal,
	}).Debug("New joint")

	r.publish(wamp.TopicUpdate, unit.Node)
}

// OnStable implements feed.Handler.
func (r *Relay) OnStable(units []graph.StableUnit) {
	atomic.AddUint64(&r.stable, uint64(len(units)))

	if r.writer != nil {
		if err := r.writer.MarkStable(units); err != nil {
			r.logger.WithError(err).Error("Mirroring stable units")
			return
		}
	}

	r.publish(wamp.TopicStability, units)
}

func (r *Relay) publish(topic string, v interface{}) {
	if r.peer == nil {
		return
	}
	if err := r.peer.Publish(topic, v); err != nil {
		r.logger.WithError(err).WithField("topic", topic).Error("Publishing")
		return
	}
	atomic.AddUint64(&r.published, 1)
}

// Stats returns counters about the activity of the relay.
func (r *Relay) Stats() map[string]string {
	return map[string]string{
		"calls":     strconv.FormatUint(atomic.LoadUint64(&r.calls), 10),
		"not_found": strconv.FormatUint(atomic.LoadUint64(&r.notFound), 10),
		"joints":    strconv.FormatUint(atomic.LoadUint64(&r.joints), 10),
		"stable":    strconv.FormatUint(atomic.LoadUint64(&r.stable), 10),
		"published": strconv.FormatUint(atomic.LoadUint64(&r.published), 10),
		"broadcast": strconv.FormatBool(r.peer != nil),
	}
}
