package wamp

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gammazero/nexus/v3/client"
	"github.com/gammazero/nexus/v3/router"
	"github.com/gammazero/nexus/v3/wamp"
	"github.com/sirupsen/logrus"
)

// Server runs the WAMP router of the explorer behind a websocket server.
// Peers connected to the router register procedures and publish topics,
// Clients call and subscribe to them.
type Server struct {
	address    string
	realm      string
	router     router.Router
	httpServer *http.Server

	listenerLock sync.Mutex
	listener     net.Listener

	logger *logrus.Entry
}

// NewServer instantiates a Server which can be run at a specified address.
// When certFile and keyFile are both set, the websocket server is served over
// TLS.
func NewServer(address string,
	realm string,
	certFile string,
	keyFile string,
	logger *logrus.Entry) (*Server, error) {

	routerConfig := &router.Config{
		RealmConfigs: []*router.RealmConfig{
			{
				URI:           wamp.URI(realm),
				AnonymousAuth: true,
			},
		},
	}

	nxr, err := router.NewRouter(routerConfig, logger)
	if err != nil {
		return nil, err
	}

	httpServer := &http.Server{
		Handler: router.NewWebsocketServer(nxr),
		Addr:    address,
	}

	if certFile != "" && keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			nxr.Close()
			return nil, fmt.Errorf("error loading X509 key pair: %s", err)
		}
		httpServer.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
		}
	}

	res := &Server{
		address:    address,
		realm:      realm,
		router:     nxr,
		httpServer: httpServer,
		logger:     logger,
	}

	return res, nil
}

// Listen binds the server address. It is called by Run when it was not called
// before.
func (s *Server) Listen() error {
	s.listenerLock.Lock()
	defer s.listenerLock.Unlock()

	if s.listener != nil {
		return nil
	}

	l, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	s.listener = l

	return nil
}

// Run serves websocket connections until Shutdown is called.
func (s *Server) Run() error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"address": s.Addr(),
		"realm":   s.realm,
		"tls":     s.httpServer.TLSConfig != nil,
	}).Debug("Serving WAMP")

	var err error
	if s.httpServer.TLSConfig != nil {
		// the certificates are already loaded in the TLSConfig
		err = s.httpServer.ServeTLS(s.listener, "", "")
	} else {
		err = s.httpServer.Serve(s.listener)
	}
	if err == http.ErrServerClosed {
		return nil
	}
	s.logger.WithError(err).Error("Run")
	return err
}

// Shutdown stops the websocket server, and the WAMP router.
func (s *Server) Shutdown() {
	defer s.router.Close()

	if err := s.httpServer.Shutdown(context.Background()); err != nil {
		s.logger.WithError(err).Error("Shutting down http server")
	}
}

// Addr returns the address of the server. Once listening, it is the bound
// address.
func (s *Server) Addr() string {
	s.listenerLock.Lock()
	defer s.listenerLock.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.address
}

// Realm returns the realm of the router.
func (s *Server) Realm() string {
	return s.realm
}

// Local connects a Peer to the router without going through the network.
func (s *Server) Local(logger *logrus.Entry) (*Peer, error) {
	cli, err := client.ConnectLocal(s.router, client.Config{
		Realm:  s.realm,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	return newPeer(cli, logger), nil
}
