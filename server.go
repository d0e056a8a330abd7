// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package wayfare

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/net/http2"

	"github.com/wayfare-dev/wayfare/httperr"
	"github.com/wayfare-dev/wayfare/router"
	"github.com/wayfare-dev/wayfare/router/middleware/accesslog"
	"github.com/wayfare-dev/wayfare/router/middleware/cors"
	"github.com/wayfare-dev/wayfare/router/middleware/recovery"
)

// ServerState is the §4.10/§5 lifecycle state machine: Created, Starting,
// Running, Stopping, Stopped. Listen and Close refuse to run from the
// wrong state rather than silently doing nothing.
type ServerState int

const (
	StateCreated ServerState = iota
	StateStarting
	StateRunning
	StateStopping
	StateStopped
)

func (s ServerState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// defaultShutdownTimeout bounds how long Close waits for in-flight requests
// to drain before forcing the listener closed.
const defaultShutdownTimeout = 30 * time.Second

// ErrShutdownTimeout is returned by Close when in-flight requests did not
// drain within the configured timeout. Cleanup still runs on a best-effort
// basis before Close returns it.
var ErrShutdownTimeout = errors.New("wayfare: shutdown timeout exceeded")

// Server is the application instance described throughout the C10 startup
// and shutdown sequences: it owns the route matcher (C2), the registry
// (C3/C4) and its watcher, the plugin manager (C9), and the composed
// request pipeline (C11), and exposes the subset of itself plugins may use
// (ServerHandle).
type Server struct {
	cfg *config

	tree      *router.Tree
	pool      *router.ContextPool
	rootGroup *router.Group
	registry  *Registry
	pluginMgr *pluginManager
	boundary  *httperr.Boundary
	pipeline  *pipeline
	hooks     *Hooks

	servicesMu sync.RWMutex
	services   map[string]any

	mu          sync.Mutex
	state       ServerState
	listener    net.Listener
	httpServer  *http.Server
	watchCancel context.CancelFunc
	watchDone   chan struct{}
	stopSignals context.CancelFunc
}

// New constructs a Server from the given options. Route discovery, plugin
// registration, and listener acquisition do not happen until Listen is
// called (§4.10 step 0: construction never blocks).
func New(opts ...Option) *Server {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.logLevel}))
	}
	if cfg.correlationGenerator == nil {
		cfg.correlationGenerator = generateCorrelationID
	}
	cfg.pluginErrorPolicy.Logger = cfg.logger

	tree := router.NewTree()
	s := &Server{
		cfg:      cfg,
		tree:     tree,
		pool:     router.NewContextPool(),
		services: make(map[string]any),
		hooks:    &Hooks{},
		state:    StateCreated,
	}
	s.rootGroup = router.NewGroup(tree)
	s.registry = NewRegistry(cfg.routesDir, tree, cfg.logger)
	s.pluginMgr = newPluginManager(cfg.pluginErrorPolicy)
	s.boundary = httperr.NewBoundary(cfg.logger)
	s.pipeline = &pipeline{
		tree:                 tree,
		pool:                 s.pool,
		boundary:             s.boundary,
		middleware:           s.buildGlobalMiddleware(),
		correlationHeader:    cfg.correlationHeader,
		correlationGenerator: cfg.correlationGenerator,
		bodyLimits:           cfg.bodyLimits,
		multipartLimits:      cfg.multipartLimits,
		services:             s.snapshotServices,
		onComplete:           s.onRequestComplete,
	}
	return s
}

// buildGlobalMiddleware assembles the §4.10 step 3 chain: recovery and the
// baked-in request logger always run first, CORS runs next when
// configured, then user middleware in registration order.
func (s *Server) buildGlobalMiddleware() []router.Middleware {
	chain := make([]router.Middleware, 0, len(s.cfg.middleware)+3)
	chain = append(chain,
		recovery.New(recovery.Options{Logger: s.cfg.logger}),
		accesslog.New(accesslog.WithLogger(s.cfg.logger)),
	)
	if s.cfg.corsSet {
		chain = append(chain, cors.New(*s.cfg.cors))
	}
	chain = append(chain, s.cfg.middleware...)
	return chain
}

// SetService implements ServerHandle: value becomes reachable from every
// request's ctx.Services map under name.
func (s *Server) SetService(name string, value any) {
	s.servicesMu.Lock()
	defer s.servicesMu.Unlock()
	s.services[name] = value
}

func (s *Server) snapshotServices() map[string]any {
	s.servicesMu.RLock()
	defer s.servicesMu.RUnlock()
	snap := make(map[string]any, len(s.services))
	for k, v := range s.services {
		snap[k] = v
	}
	return snap
}

// Group implements ServerHandle: a route group rooted at prefix, for
// plugins that add their own routes alongside the file-discovered tree.
func (s *Server) Group(prefix string) *router.Group {
	return s.rootGroup.Group(prefix)
}

// Logger implements ServerHandle.
func (s *Server) Logger() *slog.Logger {
	return s.cfg.logger
}

// State reports the current lifecycle state (§5).
func (s *Server) State() ServerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Conflicts reports every route conflict the registry has detected so far
// (§4.4).
func (s *Server) Conflicts() []Conflict {
	return s.registry.Conflicts()
}

// transition moves the server from `from` to `to`, failing if the current
// state is not `from`. It is the single gate Listen/Close use to enforce
// the §5 state machine.
func (s *Server) transition(from, to ServerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return fmt.Errorf("wayfare: cannot %s from state %s", to, s.state)
	}
	s.state = to
	return nil
}

func (s *Server) setState(to ServerState) {
	s.mu.Lock()
	s.state = to
	s.mu.Unlock()
}

// Listen runs the full §4.10 startup sequence: validate options, discover
// routes, register and initialize plugins, acquire a listener (with a
// self-signed development certificate when none is configured), run
// OnServerStart, start the route watcher in development, install signal
// handlers, and serve until ctx is cancelled or a fatal error occurs.
//
// Listen blocks until the server stops. Callers that want control over
// signal handling should derive ctx with signal.NotifyContext themselves;
// Listen always additionally installs its own SIGINT/SIGTERM handler as a
// convenience, mirroring the donor's explicit-signal-handling-at-the-
// boundary pattern.
func (s *Server) Listen(ctx context.Context) error {
	if err := s.transition(StateCreated, StateStarting); err != nil {
		return err
	}

	if err := s.cfg.validate(); err != nil {
		s.setState(StateCreated)
		return err
	}

	if _, err := s.registry.LoadAll(); err != nil {
		s.setState(StateCreated)
		return fmt.Errorf("wayfare: route discovery failed: %w", err)
	}
	for _, c := range s.registry.Conflicts() {
		s.cfg.logger.Warn("routes:conflict",
			"path", c.Path, "method", c.Method, "losingFile", c.LosingFile, "winningFile", c.WinningFile)
	}

	for _, p := range s.cfg.plugins {
		if err := s.pluginMgr.Register(s, p); err != nil {
			s.setState(StateCreated)
			return fmt.Errorf("wayfare: plugin registration failed: %w", err)
		}
	}
	if err := s.pluginMgr.Initialize(ctx, s); err != nil {
		s.setState(StateCreated)
		return fmt.Errorf("wayfare: plugin initialization failed: %w", err)
	}

	listener, tlsConfig, protocol, err := s.acquireListener()
	if err != nil {
		s.setState(StateCreated)
		return fmt.Errorf("wayfare: failed to acquire listener: %w", err)
	}
	s.listener = listener

	httpServer := &http.Server{
		Handler:   s.pipeline,
		TLSConfig: tlsConfig,
	}
	if s.cfg.http2Enabled && tlsConfig != nil {
		if err := http2.ConfigureServer(httpServer, &http2.Server{}); err != nil {
			listener.Close()
			s.setState(StateCreated)
			return fmt.Errorf("wayfare: failed to configure HTTP/2: %w", err)
		}
	}
	s.httpServer = httpServer

	ctx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	s.stopSignals = stopSignals
	s.watchReloadSignal(ctx)

	if s.cfg.environment == EnvDevelopment {
		watchCtx, cancel := context.WithCancel(context.Background())
		s.watchCancel = cancel
		s.watchDone = make(chan struct{})
		go func() {
			defer close(s.watchDone)
			if err := s.registry.Watch(watchCtx); err != nil {
				s.cfg.logger.Warn("routes:watch stopped", "error", err)
			}
		}()
	}

	if err := s.pluginMgr.OnServerStart(ctx, s); err != nil {
		listener.Close()
		stopSignals()
		s.setState(StateCreated)
		return fmt.Errorf("wayfare: plugin OnServerStart failed: %w", err)
	}

	s.setState(StateRunning)
	s.printStartupBanner(listener.Addr().String(), protocol)
	s.cfg.logger.Info("server:listening", "address", listener.Addr().String(), "protocol", protocol, "environment", s.cfg.environment)
	s.fireReady()

	serveErr := make(chan error, 1)
	go func() {
		err := httpServer.Serve(listener)
		if err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			s.cfg.logger.Error("server:failed", "error", err)
		}
		s.Close(CloseOptions{})
		return err
	case <-ctx.Done():
		err := s.Close(CloseOptions{})
		if errors.Is(err, ErrShutdownTimeout) && s.cfg.environment == EnvDevelopment {
			// A signal-triggered shutdown overran its drain deadline;
			// don't leave a wedged development process behind.
			os.Exit(2)
		}
		return err
	}
}

// acquireListener implements §4.10 step 6: bind the configured host:port,
// optionally wrapped in TLS. When HTTP/2 is enabled but no certificate was
// configured outside of production, a development certificate is generated
// (or reused from cache).
func (s *Server) acquireListener() (net.Listener, *tls.Config, string, error) {
	addr := fmt.Sprintf("%s:%d", s.cfg.host, s.cfg.port)

	certFile, keyFile := s.cfg.certFile, s.cfg.keyFile
	if s.cfg.http2Enabled && certFile == "" && keyFile == "" {
		var err error
		certFile, keyFile, err = ensureDevCredentials()
		if err != nil {
			return nil, nil, "", fmt.Errorf("development TLS credentials: %w", err)
		}
	}

	if certFile == "" || keyFile == "" {
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, nil, "", err
		}
		return listener, nil, "HTTP", nil
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, nil, "", fmt.Errorf("loading TLS credentials: %w", err)
	}
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	if s.cfg.http2Enabled {
		tlsConfig.NextProtos = []string{"h2", "http/1.1"}
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, "", err
	}
	protocol := "HTTPS"
	if s.cfg.http2Enabled {
		protocol = "HTTP/2"
	}
	return tls.NewListener(listener, tlsConfig), tlsConfig, protocol, nil
}

// CloseOptions configures a single Close call (§4.10 shutdown sequence).
type CloseOptions struct {
	// Timeout bounds how long in-flight requests get to drain. Defaults to
	// 30s.
	Timeout time.Duration
	// OnStopping, if set, runs once shutdown begins and before any plugin
	// OnServerStop hook runs.
	OnStopping func()
	// OnStopped, if set, runs last, after every resource has been released.
	OnStopped func()
}

// Close runs the §4.10 shutdown sequence: run OnStopping, notify plugins
// (OnServerStop in reverse order), stop accepting new connections and drain
// in-flight ones within Timeout, stop the route watcher, terminate plugins
// (reverse order, always runs even if OnServerStop failed), and run
// OnStopped. It is safe to call once the server is Running or Starting;
// calling it from any other state is a no-op returning nil.
func (s *Server) Close(opts CloseOptions) error {
	if err := s.transition(StateRunning, StateStopping); err != nil {
		// Also accept closing a server that never finished starting.
		if err2 := s.transition(StateStarting, StateStopping); err2 != nil {
			return nil
		}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultShutdownTimeout
	}

	if opts.OnStopping != nil {
		opts.OnStopping()
	}

	// A fresh, un-cancelled context controls how long shutdown may take;
	// the context that triggered shutdown may already be cancelled and
	// would otherwise leave zero time for draining.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	if err := s.pluginMgr.OnServerStop(shutdownCtx, s); err != nil {
		s.cfg.logger.Warn("plugin OnServerStop failed", "error", err)
	}

	var drainErr error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			drainErr = fmt.Errorf("%w: %v", ErrShutdownTimeout, err)
			s.cfg.logger.Warn("server:shutdown forced", "error", err)
		}
	}

	if s.watchCancel != nil {
		s.watchCancel()
		<-s.watchDone
	}
	if s.stopSignals != nil {
		s.stopSignals()
	}

	if err := s.pluginMgr.Terminate(shutdownCtx, s); err != nil {
		s.cfg.logger.Warn("plugin Terminate failed", "error", err)
	}

	s.setState(StateStopped)
	s.cfg.logger.Info("server:stopped")

	if opts.OnStopped != nil {
		opts.OnStopped()
	}
	return drainErr
}

// generateCorrelationID is the default §4.5 id source when no
// WithCorrelationGenerator option is given: 16 random bytes, hex-encoded.
func generateCorrelationID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

// onRequestComplete implements §4.11 step 7: a single structured access log
// line per completed request. The accesslog middleware in the global chain
// logs its own "http request" line as well; this one is emitted by the
// pipeline after the boundary has written any error response, so it always
// carries the final status.
func (s *Server) onRequestComplete(method, path string, status int, duration time.Duration, correlationID string) {
	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}
	s.cfg.logger.Log(context.Background(), level, "request:completed",
		"method", method,
		"path", path,
		"status", status,
		"duration", duration,
		"correlationId", correlationID,
	)
}
