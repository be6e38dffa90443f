// Package engine provides the jsond HTTP engine: dynamic resource routing,
// CRUD handlers, CORS, artificial delay and request logging over the
// file-backed document store.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/getjsond/jsond/internal/store"
	"github.com/getjsond/jsond/pkg/config"
	"github.com/getjsond/jsond/pkg/logging"
)

// Server binds the request pipeline to a TCP listener.
type Server struct {
	opts          *config.Options
	store         *store.Store
	router        *Router
	handler       *Handler
	httpHandler   http.Handler
	httpServer    *http.Server
	listener      net.Listener
	watcher       *store.Watcher
	watchInterval time.Duration
	log           *slog.Logger
	mu            sync.Mutex
	running       bool
}

// ServerOption is a functional option for configuring a Server.
type ServerOption func(*Server)

// WithLogger sets the operational logger for the server.
func WithLogger(log *slog.Logger) ServerOption {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithWatchInterval overrides the watch-mode polling interval.
func WithWatchInterval(interval time.Duration) ServerOption {
	return func(s *Server) {
		s.watchInterval = interval
	}
}

// NewServer creates a Server over a loaded store. Optional ServerOption
// functions can be passed to customize it.
func NewServer(opts *config.Options, st *store.Store, serverOpts ...ServerOption) *Server {
	if opts == nil {
		opts = config.Default()
	}

	s := &Server{
		opts:          opts,
		store:         st,
		router:        NewRouter(),
		watchInterval: store.DefaultWatchInterval,
		log:           logging.Nop(),
	}
	for _, opt := range serverOpts {
		opt(s)
	}

	handler := NewHandler(st, s.router)
	handler.SetReadOnly(opts.ReadOnly)
	handler.SetDelay(time.Duration(opts.Delay) * time.Millisecond)
	handler.SetLogger(s.log)
	s.handler = handler

	// Route table derives from the store's current resource set and is
	// regenerated after every successful reload.
	s.router.Rebuild(st.Resources())
	st.OnReload(func() {
		s.router.Rebuild(st.Resources())
		s.log.Info("route table rebuilt", "resources", len(s.router.Resources()))
	})

	return s
}

// Handler returns the full middleware chain: request logging, then CORS,
// then the CRUD dispatcher.
func (s *Server) Handler() http.Handler {
	if s.httpHandler == nil {
		var chain http.Handler = s.handler
		chain = NewCORSMiddleware(chain, !s.opts.NoCORS)
		chain = NewLoggingMiddleware(chain, s.log)
		s.httpHandler = chain
	}
	return s.httpHandler
}

// Router returns the server's route table.
func (s *Server) Router() *Router {
	return s.router
}

// Start builds the route table from the store's current resource set, binds
// the listener and begins serving. In watch mode it also starts the file
// watcher; every successful reload regenerates the route table.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server already running")
	}

	s.router.Rebuild(s.store.Resources())

	listener, err := net.Listen("tcp", s.opts.Addr())
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.opts.Addr(), err)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  time.Duration(s.opts.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.opts.WriteTimeout) * time.Second,
	}

	for _, resource := range s.router.Resources() {
		s.log.Info("serving resource", "path", "/"+resource)
	}
	s.log.Info("server listening",
		"addr", listener.Addr().String(),
		"watch", s.opts.Watch,
		"readOnly", s.opts.ReadOnly,
	)

	if s.opts.Watch {
		s.watcher = store.NewWatcher(s.store,
			store.WithInterval(s.watchInterval),
			store.WithWatchLogger(s.log),
		)
		s.watcher.Start()
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("server error", "error", err)
		}
	}()

	s.running = true
	return nil
}

// Stop stops accepting new connections and shuts down gracefully within
// the context deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	if s.watcher != nil {
		s.watcher.Stop()
		s.watcher = nil
	}

	err := s.httpServer.Shutdown(ctx)
	s.running = false
	return err
}

// Port returns the bound TCP port, resolving port-0 auto-assignment.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return s.opts.Port
	}
	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return s.opts.Port
}
