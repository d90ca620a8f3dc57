// Package session drives an explorer.Explorer against a ledger.Source. A
// Session owns its Explorer in a single event loop: commands from the host,
// ledger responses and live notifications are processed one at a time, while
// the ledger queries run on background goroutines.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/explorer"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/graph"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/ledger"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/session/state"
	"github.com/sirupsen/logrus"
)

// Config holds the parameters of a Session.
type Config struct {
	Explorer explorer.Config

	// StabilityInterval is the period of the stability checks of the loaded
	// units. 0 disables them.
	StabilityInterval time.Duration

	// FetchTimeout bounds every ledger query. 0 disables the timeout.
	FetchTimeout time.Duration
}

// DefaultConfig returns the default Session configuration.
func DefaultConfig() Config {
	return Config{
		Explorer:          explorer.DefaultConfig(),
		StabilityInterval: 10 * time.Second,
		FetchTimeout:      15 * time.Second,
	}
}

// Update is what the host renders: the events of one input, and the new
// viewport state when the canvas was moved programmatically.
type Update struct {
	Events   []explorer.Event
	Viewport *explorer.ViewportState
}

// Session is an exploration session.
type Session struct {
	id     string
	conf   Config
	source ledger.Source

	explorer *explorer.Explorer
	state    state.Manager

	commands  chan explorer.Command
	starts    chan graph.Anchor
	responses chan explorer.Response
	tips      chan struct{}
	stable    chan []graph.StableUnit
	updates   chan Update

	// backlog holds the requests which could not be launched because too
	// many fetches were running.
	backlog []explorer.Request

	logger *logrus.Entry
}

// NewSession creates a Session reading from source.
func NewSession(conf Config, source ledger.Source, logger *logrus.Entry) *Session {
	id := uuid.New().String()
	logger = logger.WithField("session", id)

	return &Session{
		id:        id,
		conf:      conf,
		source:    source,
		explorer:  explorer.NewExplorer(conf.Explorer, logger),
		commands:  make(chan explorer.Command, 64),
		starts:    make(chan graph.Anchor, 1),
		responses: make(chan explorer.Response, state.RoutineLimit),
		tips:      make(chan struct{}, 1),
		stable:    make(chan []graph.StableUnit, 16),
		updates:   make(chan Update, 64),
		logger:    logger,
	}
}

// ID returns the identifier of the Session.
func (s *Session) ID() string {
	return s.id
}

// State returns the state of the Session.
func (s *Session) State() state.State {
	return s.state.GetState()
}

// Updates returns the channel of the updates to render. It is closed when Run
// returns.
func (s *Session) Updates() <-chan Update {
	return s.updates
}

// Send queues a command from the host.
func (s *Session) Send(cmd explorer.Command) {
	s.commands <- cmd
}

// Navigate restarts the Session at an anchor.
func (s *Session) Navigate(anchor graph.Anchor) {
	s.starts <- anchor
}

// Tip notifies the Session that the ledger has new units. It never blocks:
// notices arriving before the previous one was processed are coalesced.
func (s *Session) Tip() {
	select {
	case s.tips <- struct{}{}:
	default:
	}
}

// Stable notifies the Session that units became stable. It never blocks; a
// dropped notice is caught up by the next stability check.
func (s *Session) Stable(units []graph.StableUnit) {
	select {
	case s.stable <- units:
	default:
		s.logger.WithField("units", len(units)).Debug("Dropping stability notice")
	}
}

// Run navigates to anchor and processes inputs until ctx is done.
func (s *Session) Run(ctx context.Context, anchor graph.Anchor) error {
	defer close(s.updates)

	var tickC <-chan time.Time
	if s.conf.StabilityInterval > 0 {
		ticker := time.NewTicker(s.conf.StabilityInterval)
		defer ticker.Stop()
		tickC = ticker.C
	}

	s.process(ctx, s.explorer.Start(anchor))

	for {
		var out explorer.Outcome

		select {
		case <-ctx.Done():
			s.state.SetState(state.Shutdown)
			s.logger.Debug("Shutting down")
			s.state.WaitRoutines()
			return ctx.Err()
		case cmd := <-s.commands:
			out = s.explorer.Handle(cmd)
		case a := <-s.starts:
			out = s.explorer.Start(a)
		case resp := <-s.responses:
			out = s.explorer.Apply(resp)
		case <-s.tips:
			out = s.explorer.Tip()
		case units := <-s.stable:
			out = s.explorer.Stability(units)
		case <-tickC:
			out = s.explorer.CheckStability()
		}

		s.process(ctx, out)
	}
}

// process launches the requests of an Outcome and pushes its events to the
// host.
func (s *Session) process(ctx context.Context, out explorer.Outcome) {
	s.backlog = append(s.backlog, out.Requests...)
	s.launch(ctx)

	switch {
	case s.explorer.Loading():
		s.state.SetState(state.Loading)
	case s.explorer.FollowingTip():
		s.state.SetState(state.Following)
	default:
		s.state.SetState(state.Browsing)
	}

	if len(out.Events) == 0 && out.Viewport == nil {
		return
	}

	select {
	case s.updates <- Update{Events: out.Events, Viewport: out.Viewport}:
	case <-ctx.Done():
	}
}

func (s *Session) launch(ctx context.Context) {
	for len(s.backlog) > 0 {
		req := s.backlog[0]
		ok := s.state.GoFunc(func() {
			s.fetch(ctx, req)
		})
		if !ok {
			s.logger.WithField("backlog", len(s.backlog)).Debug("Too many fetches running")
			return
		}
		s.backlog = s.backlog[1:]
	}
}

func (s *Session) fetch(ctx context.Context, req explorer.Request) {
	fctx := ctx
	if s.conf.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, s.conf.FetchTimeout)
		defer cancel()
	}

	start := time.Now()
	resp := explorer.Fetch(fctx, s.source, req)

	s.logger.WithFields(logrus.Fields{
		"kind":      req.Kind.String(),
		"direction": req.Direction.String(),
		"epoch":     req.Epoch,
		"seq":       req.Seq,
		"duration":  time.Since(start),
		"error":     resp.Err,
	}).Debug("Fetch")

	select {
	case s.responses <- resp:
	case <-ctx.Done():
	}
}
