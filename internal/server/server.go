// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// ============================================================================
// CONSTANTS AND ERRORS
// ============================================================================

const (
	// DefaultTemplateName is the template path inside the embedded assets.
	DefaultTemplateName = "templates/config.html"

	// DefaultMaxBodyBytes caps the size of a form submission.
	DefaultMaxBodyBytes int64 = 1 << 20

	// DefaultRateBurst is used when RateLimit is set without a burst.
	DefaultRateBurst = 10

	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

var (
	// ErrTemplateMissing is returned by New when the page template cannot
	// be read.
	ErrTemplateMissing = errors.New("config page template missing")

	// ErrPortInUse is returned when the listening socket cannot be bound.
	ErrPortInUse = errors.New("port already in use")
)

// ============================================================================
// TYPES
// ============================================================================

// Backend is the settings store a Server edits.
type Backend interface {
	// Range calls fn for every key and value in display order until fn
	// returns false.
	Range(fn func(key, value string) bool)
	SetValue(key string, value any)
	// CheckSetting returns an error for a submitted pair that must not be
	// applied because Save could not persist it faithfully.
	CheckSetting(key, value string) error
	Save() error
	// Saves counts successful saves, including those the host makes
	// directly.
	Saves() uint64
	// Version must change whenever the settings change.
	Version() uint64
}

// State is the lifecycle state of a Server.
type State int

const (
	Created State = iota
	Listening
	Stopped
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Listening:
		return "listening"
	case Stopped:
		return "stopped"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// Options configures a Server. The zero value binds every interface on a
// free port and uses the embedded page template.
type Options struct {
	Port  int    // 0 picks a free port
	Host  string // bind address, "" for all interfaces
	Title string

	Logger *slog.Logger

	// OnUpdated is called once after every non-empty form submission has
	// been applied and a save attempted.
	OnUpdated func()

	// TemplateFS and TemplateName locate the page template. A nil FS means
	// the embedded assets.
	TemplateFS   fs.FS
	TemplateName string

	MaxBodyBytes int64

	// RateLimit is the sustained number of requests per second allowed per
	// client. Zero disables limiting.
	RateLimit float64
	RateBurst int
}

// Server is the embedded HTTP server that renders the settings of a
// Backend as an HTML form and applies submitted values.
type Server struct {
	backend  Backend
	opts     Options
	logger   *slog.Logger
	template string
	handler  http.Handler

	mu       sync.Mutex // guards the lifecycle fields below
	state    State
	port     int
	listener net.Listener
	httpSrv  *http.Server
	done     chan struct{}

	// reqMu serializes request handling and guards the cached page.
	reqMu       sync.Mutex
	page        []byte
	pageVersion uint64
	rendered    bool
	rejectErr   error  // pairs refused by the last submission
	saveErr     error  // last failed save, until any later save succeeds
	saveErrAt   uint64 // Backend.Saves() when saveErr was recorded
}

// ============================================================================
// CONSTRUCTION
// ============================================================================

// New loads the page template, binds the listening socket and renders the
// initial page. The server does not accept requests until Start.
func New(backend Backend, opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.TemplateFS == nil {
		opts.TemplateFS = assets
	}
	if opts.TemplateName == "" {
		opts.TemplateName = DefaultTemplateName
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.RateLimit > 0 && opts.RateBurst <= 0 {
		opts.RateBurst = DefaultRateBurst
	}

	tpl, err := fs.ReadFile(opts.TemplateFS, opts.TemplateName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTemplateMissing, opts.TemplateName, err)
	}

	s := &Server{
		backend:  backend,
		opts:     opts,
		logger:   opts.Logger.With("component", "config-server"),
		template: string(tpl),
		state:    Created,
	}

	l, err := listen(opts.Host, opts.Port)
	if err != nil {
		return nil, err
	}
	s.listener = l
	s.port = l.Addr().(*net.TCPAddr).Port

	s.handler = s.buildHandler()

	s.reqMu.Lock()
	s.refreshLocked()
	s.reqMu.Unlock()

	return s, nil
}

func listen(host string, port int) (net.Listener, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot bind %s, choose another port (for example 8888): %w", ErrPortInUse, addr, err)
	}
	return l, nil
}

func (s *Server) buildHandler() http.Handler {
	mux := http.NewServeMux()
	// Only the root path serves the form. Any other path, /favicon.ico
	// included, is a 404.
	mux.HandleFunc("/{$}", s.handleIndex)

	middlewares := []func(http.Handler) http.Handler{
		RecoveryMiddleware(s.logger),
		RequestIDMiddleware(),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(s.logger),
	}
	if s.opts.RateLimit > 0 {
		limiter := NewRateLimiter(s.opts.RateLimit, s.opts.RateBurst)
		middlewares = append(middlewares, RateLimitMiddleware(limiter))
	}
	return Chain(middlewares...)(mux)
}

// ============================================================================
// ACCESSORS
// ============================================================================

// Port returns the bound port. It is known from construction on, even when
// Options.Port was 0.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Link returns the local URL of the edit page while the server is
// listening.
func (s *Server) Link() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Listening {
		return "", false
	}
	return fmt.Sprintf("http://localhost:%d/", s.port), true
}

// Handler returns the full handler chain, for mounting the edit page in
// another server or for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start begins accepting requests. Calling Start on a listening server
// does nothing. A stopped server rebinds its previous port.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Listening:
		return nil
	case Stopped:
		l, err := listen(s.opts.Host, s.port)
		if err != nil {
			return err
		}
		s.listener = l
	}

	s.httpSrv = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	s.done = make(chan struct{})
	go s.serve(s.httpSrv, s.listener, s.done)

	s.state = Listening
	s.logger.Info("config server started", "link", fmt.Sprintf("http://localhost:%d/", s.port))
	return nil
}

func (s *Server) serve(srv *http.Server, l net.Listener, done chan struct{}) {
	defer close(done)
	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("config server stopped unexpectedly", "error", err)
	}
}

// Stop closes the listening socket and waits for in-flight requests to
// finish. A created but never started server releases its socket too.
// Stopping a stopped server does nothing.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Stopped:
		return nil
	case Created:
		s.state = Stopped
		return s.listener.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.httpSrv.Shutdown(ctx)
	if err != nil {
		_ = s.httpSrv.Close()
	}
	<-s.done

	s.httpSrv = nil
	s.listener = nil
	s.state = Stopped
	s.logger.Info("config server stopped", "port", s.port)
	return err
}
