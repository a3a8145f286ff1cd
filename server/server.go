// Package server puts the static file handler, header injection, request
// gate, access log and metrics together behind one localhost listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fatih/color"

	"github.com/pelageech/isoserve/config"
	"github.com/pelageech/isoserve/fileserver"
	"github.com/pelageech/isoserve/gate"
	"github.com/pelageech/isoserve/headers"
	"github.com/pelageech/isoserve/metrics"
	"github.com/pelageech/isoserve/timer"
)

const (
	readHeaderTimeout = 10 * time.Second
	metricsPath       = "/metrics"
)

// shutdownTimeout bounds how long Serve waits for running transfers
// once it has been asked to stop.
var shutdownTimeout = 5 * time.Second

var (
	// ErrNotListening is returned by Serve when Listen has not succeeded.
	ErrNotListening = errors.New("server is not listening")
	// ErrEmptyLogger is returned when the logger is nil.
	ErrEmptyLogger = errors.New("logger cannot be nil")
)

// Server serves one directory on localhost.
type Server struct {
	config  *config.ServerConfig
	logger  *log.Logger
	metrics *metrics.Metrics
	gate    *gate.Gate

	httpServer      *http.Server
	listener        net.Listener
	metricsServer   *http.Server
	metricsListener net.Listener
}

// New creates a server from a validated config.
func New(cfg *config.ServerConfig, logger *log.Logger) (*Server, error) {
	if logger == nil {
		return nil, ErrEmptyLogger
	}
	g, err := gate.New(cfg.Workers, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:  cfg,
		logger:  logger,
		metrics: metrics.NewMetrics(),
		gate:    g,
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	if cfg.MetricsEnabled() {
		mux := http.NewServeMux()
		mux.Handle(metricsPath, s.metrics.Handler())
		s.metricsServer = &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: readHeaderTimeout,
		}
	}
	return s, nil
}

func (s *Server) Config() *config.ServerConfig {
	return s.config
}

func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// Handler returns the full request chain:
// access log, header injection, gate, metrics, file server.
// Injection sits outside the gate so requests the gate rejects carry the
// headers too.
func (s *Server) Handler() http.Handler {
	var h http.Handler = fileserver.New(s.config.Root)
	h = s.metrics.Instrument(h)
	h = s.gate.Wrap(h)
	h = headers.Inject(h)
	h = timer.MakeRequestTimeTracker(h, timer.LogRecord(s.logger))
	return h
}

// Listen binds the file server socket and, when enabled, the metrics socket.
// Nothing is served until Serve is called.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Addr(), err)
	}

	if s.metricsServer != nil {
		mln, err := net.Listen("tcp", s.config.MetricsAddr())
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("listen on %s: %w", s.config.MetricsAddr(), err)
		}
		s.metricsListener = mln
	}

	s.listener = ln
	return nil
}

// Port returns the bound port, or the configured one before Listen.
func (s *Server) Port() int {
	if s.listener != nil {
		if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
			return addr.Port
		}
	}
	return s.config.Port
}

// URL is the address printed in the banner.
func (s *Server) URL() string {
	return fmt.Sprintf("http://%s:%d/", s.config.Host, s.Port())
}

// MetricsURL returns the scrape address, or "" when metrics are off.
func (s *Server) MetricsURL() string {
	if s.metricsListener == nil {
		return ""
	}
	addr := s.metricsListener.Addr().(*net.TCPAddr)
	return fmt.Sprintf("http://%s:%d%s", s.config.Host, addr.Port, metricsPath)
}

// PrintBanner writes the two start-up lines.
func (s *Server) PrintBanner(w io.Writer) {
	url := color.New(color.FgCyan, color.Underline).Sprint(s.URL())
	fmt.Fprintf(w, "Server running at %s\n", url)
	fmt.Fprintln(w, "SharedArrayBuffer enabled via CORS headers")
}

// Serve blocks until ctx is done or a listener fails.
// On ctx done the servers are shut down gracefully and nil is returned.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return ErrNotListening
	}

	errc := make(chan error, 2)
	go func() {
		errc <- s.httpServer.Serve(s.listener)
	}()

	observeCtx, stopObserve := context.WithCancel(ctx)
	defer stopObserve()
	if s.metricsServer != nil {
		go s.metrics.Observe(observeCtx, s.logger)
		go func() {
			errc <- s.metricsServer.Serve(s.metricsListener)
		}()
		s.logger.Info("metrics enabled", "url", s.MetricsURL())
	}

	s.logger.Info("serving", "root", s.config.Root, "addr", s.listener.Addr(), "workers", s.gate.Capacity())

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down")
		return s.shutdown()
	case err := <-errc:
		_ = s.shutdown()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	}
}

// shutdown stops both servers. Transfers still running when the timeout
// expires are cut off, that is not an error.
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.stop(ctx, s.httpServer)
	if s.metricsServer != nil {
		if mErr := s.stop(ctx, s.metricsServer); err == nil {
			err = mErr
		}
	}
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) stop(ctx context.Context, srv *http.Server) error {
	err := srv.Shutdown(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	s.logger.Warn("dropping unfinished requests", "timeout", shutdownTimeout)
	// the listeners are already closed by Shutdown, only connections remain
	_ = srv.Close()
	return nil
}
