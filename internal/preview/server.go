// Package preview implements the renderer preview server.
//
// The server serves the renderer's index.html with a small reload client
// injected, bundles script modules on request with esbuild, and serves every
// other file from the renderer root. Browser clients connect to a websocket
// under /@tandem/ws and receive reload messages sent through [Server.Send],
// either by other pipelines or by the server itself when a renderer source
// file changes.
//
// A listening Server satisfies provider.API.
package preview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/heptiolabs/healthcheck"

	"github.com/Iron-Ham/tandem/internal/config"
	tandemerrors "github.com/Iron-Ham/tandem/internal/errors"
	"github.com/Iron-Ham/tandem/internal/event"
	"github.com/Iron-Ham/tandem/internal/logging"
	"github.com/Iron-Ham/tandem/internal/metrics"
	"github.com/Iron-Ham/tandem/internal/provider"
	"github.com/Iron-Ham/tandem/internal/watch"
)

// maxGoroutines fails the liveness check when exceeded.
const maxGoroutines = 10_000

// Server is the renderer preview server.
type Server struct {
	cfg       config.PreviewConfig
	mode      string
	logger    *logging.Logger
	bus       *event.Bus
	metrics   *metrics.Metrics
	watchOpts watch.Options
	noWatch   bool

	hub     *hub
	modules *modules
	health  healthcheck.Handler

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	served   chan struct{}
	urls     *provider.URLs
	watcher  *watch.Watcher
	closed   bool
}

var _ provider.API = (*Server)(nil)

// New creates a Server for the renderer package described by cfg. cfg.Root
// must be absolute.
func New(cfg config.PreviewConfig, opts ...Option) (*Server, error) {
	if cfg.Root == "" || !filepath.IsAbs(cfg.Root) {
		return nil, tandemerrors.NewValidationError("preview root must be an absolute path").
			WithField("preview.root").
			WithValue(cfg.Root)
	}

	s := &Server{cfg: cfg, mode: config.ModeDevelopment}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NopLogger()
	}
	s.logger = s.logger.WithComponent("preview")

	s.hub = newHub(s.logger, s.bus, s.metrics)
	s.modules = newModules(cfg.Root, s.mode, cfg.Aliases)

	s.health = healthcheck.NewHandler()
	s.health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(maxGoroutines))
	s.health.AddReadinessCheck("listener", func() error {
		if s.ResolvedURLs() == nil {
			return errors.New("not listening")
		}
		return nil
	})
	return s, nil
}

// Listen binds the listener, starts serving and, unless disabled, starts
// watching the renderer root. It returns once the server accepts
// connections.
func (s *Server) Listen(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return tandemerrors.ErrServerClosed
	}
	if s.listener != nil {
		return nil
	}

	info, err := os.Stat(s.cfg.Root)
	if err != nil {
		return fmt.Errorf("renderer root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("renderer root is not a directory: %s", s.cfg.Root)
	}

	ln, err := listen(ctx, s.cfg.Host, s.cfg.Port, s.cfg.StrictPort)
	if err != nil {
		return tandemerrors.Wrap(err, "preview server listen")
	}
	port := portOf(ln)
	if s.cfg.Port != 0 && port != s.cfg.Port {
		s.logger.Warn("preferred port in use, using another", "preferred", s.cfg.Port, "port", port)
	}

	if !s.noWatch {
		if err := s.startWatching(); err != nil {
			_ = ln.Close()
			return err
		}
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.served = make(chan struct{})
	s.urls = resolveURLs(s.cfg.Host, port)

	go s.serve(s.server, ln, s.served)

	s.logger.Info("preview server listening",
		"local", s.urls.Local,
		"network", s.urls.Network,
	)
	return nil
}

func (s *Server) serve(srv *http.Server, ln net.Listener, done chan struct{}) {
	defer close(done)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("preview server stopped", "error", err)
	}
}

func (s *Server) startWatching() error {
	w, err := watch.New(s.watchOpts, s.onChange, s.logger)
	if err != nil {
		return err
	}
	if err := w.Add(s.cfg.Root); err != nil {
		w.Stop()
		return err
	}
	w.Start()
	s.watcher = w
	return nil
}

func (s *Server) onChange(paths []string) {
	s.logger.Debug("renderer sources changed", "paths", paths)
	if err := s.Send(provider.Message{Type: provider.MessageFullReload}); err != nil && !errors.Is(err, tandemerrors.ErrServerClosed) {
		s.logger.Warn("reload broadcast failed", "error", err)
	}
}

// ResolvedURLs implements provider.API. It returns nil until Listen has
// succeeded and after Close.
func (s *Server) ResolvedURLs() *provider.URLs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.urls
}

// Addr returns the bound listener address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Clients returns the number of connected reload clients.
func (s *Server) Clients() int {
	return s.hub.count()
}

// Send implements provider.API. A full reload also drops every cached
// module bundle, so reloaded pages see the latest sources.
func (s *Server) Send(msg provider.Message) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return tandemerrors.ErrServerClosed
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if msg.Type == provider.MessageFullReload {
		s.modules.invalidate()
	}

	n := s.hub.broadcast(data)
	s.metrics.Broadcast(msg.Type)
	s.bus.Publish(event.NewPreviewReloadEvent(msg.Type, n))
	s.logger.Info("broadcast", "type", msg.Type, "clients", n)
	return nil
}

// Close stops the watcher, disconnects every client and shuts the HTTP
// server down. It is safe to call more than once.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	srv, served, w := s.server, s.served, s.watcher
	s.urls = nil
	s.mu.Unlock()

	if w != nil {
		w.Stop()
	}
	s.hub.closeAll()

	if srv == nil {
		return nil
	}
	err := srv.Shutdown(ctx)
	select {
	case <-served:
	case <-ctx.Done():
	}
	s.logger.Info("preview server closed")
	return err
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(routeWS, s.hub)
	mux.HandleFunc(routeClient, s.serveClient)
	mux.Handle(routeHealth+"/", http.StripPrefix(routeHealth, s.health))
	if s.metrics != nil {
		mux.Handle(routeMetric, s.metrics.Handler())
	}
	mux.HandleFunc("/", s.serveFile)
	return mux
}

func (s *Server) serveClient(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(clientScript))
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	urlPath := path.Clean("/" + r.URL.Path)
	if urlPath == "/" || urlPath == "/index.html" {
		s.serveIndex(w)
		return
	}

	file, ok := s.lookup(urlPath)
	switch {
	case ok && isModule(urlPath):
		s.serveModule(w, file)
	case ok:
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, r, file)
	case path.Ext(urlPath) == "" && strings.Contains(r.Header.Get("Accept"), "text/html"):
		// client-side routes fall back to the index page
		s.serveIndex(w)
	default:
		http.NotFound(w, r)
	}
}

// lookup maps a URL path to a file under public/ or the renderer root.
func (s *Server) lookup(urlPath string) (string, bool) {
	rel := filepath.FromSlash(strings.TrimPrefix(urlPath, "/"))
	for _, dir := range []string{filepath.Join(s.cfg.Root, "public"), s.cfg.Root} {
		file := filepath.Join(dir, rel)
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			return file, true
		}
	}
	return "", false
}

func (s *Server) serveIndex(w http.ResponseWriter) {
	html, err := os.ReadFile(filepath.Join(s.cfg.Root, "index.html"))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Error("reading index.html", "error", err)
			http.Error(w, "cannot read index.html", http.StatusInternalServerError)
			return
		}
		html = []byte(defaultIndex(s.cfg.Entry))
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(injectClient(string(html))))
}

func (s *Server) serveModule(w http.ResponseWriter, file string) {
	start := time.Now()
	code, err := s.modules.bundle(file)
	if err != nil {
		s.logger.Error("bundling renderer module failed", "file", file, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.logger.Debug("served module", "file", file, "duration_ms", time.Since(start).Milliseconds())
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(code)
}
