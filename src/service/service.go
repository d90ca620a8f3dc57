// Package service serves the ledger queries of the explorer as a JSON HTTP
// API, next to the WAMP procedures.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/common"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/graph"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/ledger"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/net/wamp"
	"github.com/sirupsen/logrus"
)

// Backend answers the queries of the API. It is implemented by relay.Relay.
type Backend interface {
	Window(ctx context.Context, args wamp.WindowArgs) (*wamp.WindowResult, error)
	UnitDetail(ctx context.Context, unit string) (*ledger.UnitInfo, error)
	AddressActivity(ctx context.Context, address string, cursor ledger.Cursor) (*ledger.AddressActivity, error)
	Stability(ctx context.Context, candidates []string) ([]graph.StableUnit, error)
	Stats() map[string]string
}

// Service is the HTTP API of the explorer.
type Service struct {
	bindAddress string
	backend     Backend
	router      chi.Router
	httpServer  *http.Server
	logger      *logrus.Entry
}

// NewService creates a Service and registers its routes.
func NewService(bindAddress string, backend Backend, logger *logrus.Entry) *Service {
	service := &Service{
		bindAddress: bindAddress,
		backend:     backend,
		router:      chi.NewRouter(),
		logger:      logger,
	}

	service.registerHandlers()

	service.httpServer = &http.Server{
		Addr:    bindAddress,
		Handler: service.router,
	}

	return service
}

func (s *Service) registerHandlers() {
	s.logger.Debug("Registering explorer API handlers")

	s.router.Use(cors)

	s.router.Get("/stats", s.GetStats)
	s.router.Get("/window", s.GetWindow)
	s.router.Get("/unit/{unit}", s.GetUnit)
	s.router.Get("/address/{address}", s.GetAddress)
	s.router.Get("/stability", s.GetStability)
}

// cors allows the explorer page to be served from another origin.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}

// Handler returns the router of the API.
func (s *Service) Handler() http.Handler {
	return s.router
}

// Serve calls ListenAndServe. This is a blocking call which returns nil once
// Shutdown was called.
func (s *Service) Serve() error {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving explorer API")

	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	s.logger.Error(err)
	return err
}

// Shutdown stops the server.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// GetStats returns the counters of the backend.
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.backend.Stats())
}

// GetWindow returns a window slice. The anchor is the "target" parameter, a
// unit or an address, or the "ordinal" parameter. Without anchor, the last
// window is returned.
func (s *Service) GetWindow(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	args := wamp.WindowArgs{
		Anchor: graph.LastAnchor(),
	}

	var err error

	if args.Direction, err = graph.ParseDirection(q.Get("direction")); err != nil {
		s.badRequest(w, err)
		return
	}

	switch {
	case q.Get("target") != "":
		if args.Anchor, err = graph.ParseTarget(q.Get("target")); err != nil {
			s.badRequest(w, err)
			return
		}
	case q.Get("ordinal") != "":
		ordinal, err := strconv.ParseInt(q.Get("ordinal"), 10, 64)
		if err != nil {
			s.badRequest(w, err)
			return
		}
		args.Anchor = graph.OrdinalAnchor(ordinal)
	}

	if args.Direction != graph.Initial && args.Anchor.Kind != graph.AnchorOrdinal {
		s.badRequest(w, errors.New("older and newer windows need an ordinal"))
		return
	}

	if l := q.Get("limit"); l != "" {
		if args.Limit, err = strconv.Atoi(l); err != nil {
			s.badRequest(w, err)
			return
		}
	}

	args.NotStable = splitList(q.Get("not_stable"))

	res, err := s.backend.Window(r.Context(), args)
	if err != nil {
		s.fail(w, err)
		return
	}

	s.writeJSON(w, res)
}

// GetUnit returns the details of a unit.
func (s *Service) GetUnit(w http.ResponseWriter, r *http.Request) {
	info, err := s.backend.UnitDetail(r.Context(), chi.URLParam(r, "unit"))
	if err != nil {
		s.fail(w, err)
		return
	}

	s.writeJSON(w, info)
}

// GetAddress returns a page of the activity of an address. The "inputs" and
// "outputs" parameters are the cursor of the page.
func (s *Service) GetAddress(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	cursor := ledger.FirstCursor()
	for param, dst := range map[string]*int64{
		"inputs":  &cursor.Inputs,
		"outputs": &cursor.Outputs,
	} {
		v := q.Get(param)
		if v == "" {
			continue
		}
		o, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.badRequest(w, err)
			return
		}
		*dst = o
	}

	activity, err := s.backend.AddressActivity(r.Context(), chi.URLParam(r, "address"), cursor)
	if err != nil {
		s.fail(w, err)
		return
	}

	s.writeJSON(w, activity)
}

// GetStability returns the units of the "units" parameter which are stable.
func (s *Service) GetStability(w http.ResponseWriter, r *http.Request) {
	stable, err := s.backend.Stability(r.Context(), splitList(r.URL.Query().Get("units")))
	if err != nil {
		s.fail(w, err)
		return
	}

	s.writeJSON(w, stable)
}

func (s *Service) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Encoding response")
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Service) badRequest(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
}

func (s *Service) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if common.IsExplorer(err, common.NotFound) {
		status = http.StatusNotFound
	} else {
		s.logger.WithError(err).Error("Query failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
