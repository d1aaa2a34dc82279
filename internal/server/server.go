// Package server serves the site's HTTP surface: plugin static
// directories mounted by the plugin lifecycle and a status endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
)

// StatusPath is the route of the JSON status endpoint.
const StatusPath = "/_folio/status"

// ErrInvalidMount is returned for mount paths that cannot be routed.
var ErrInvalidMount = errors.New("invalid mount path")

// StatusFunc returns the value rendered by the status endpoint.
type StatusFunc func() any

// Server routes static mounts. Mounts may be added while serving.
type Server struct {
	routeMu sync.RWMutex
	router  *httprouter.Router

	mountMu sync.RWMutex
	mounts  map[string]string

	status StatusFunc
	log    zerolog.Logger

	shutdownTimeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// WithStatus sets the status endpoint's data source.
func WithStatus(fn StatusFunc) Option {
	return func(s *Server) {
		s.status = fn
	}
}

// WithShutdownTimeout bounds graceful shutdown in ListenAndServe.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.shutdownTimeout = d
	}
}

// New creates a server.
func New(opts ...Option) *Server {
	s := &Server{
		router:          httprouter.New(),
		mounts:          make(map[string]string),
		log:             zerolog.Nop(),
		shutdownTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router.GET(StatusPath, s.serveStatus)
	return s
}

// AddStaticPath mounts localDir at mountPath. Failures are logged.
func (s *Server) AddStaticPath(mountPath, localDir string) {
	if err := s.Mount(mountPath, localDir); err != nil {
		s.log.Error().Err(err).Str("mount", mountPath).Msg("static mount failed")
	}
}

// Mount serves files under localDir at mountPath. Mounting the same path
// again replaces its directory.
func (s *Server) Mount(mountPath, localDir string) (err error) {
	p, err := cleanMount(mountPath)
	if err != nil {
		return err
	}

	s.mountMu.Lock()
	_, exists := s.mounts[p]
	s.mounts[p] = localDir
	s.mountMu.Unlock()

	if exists {
		s.log.Debug().Str("mount", p).Str("dir", localDir).Msg("static mount replaced")
		return nil
	}

	s.routeMu.Lock()
	defer s.routeMu.Unlock()

	// httprouter panics on conflicting routes.
	defer func() {
		if r := recover(); r != nil {
			s.mountMu.Lock()
			delete(s.mounts, p)
			s.mountMu.Unlock()
			err = fmt.Errorf("%w: %s: %v", ErrInvalidMount, p, r)
		}
	}()

	h := s.serveStatic(p)
	s.router.GET(p+"/*filepath", h)
	s.router.HEAD(p+"/*filepath", h)

	s.log.Debug().Str("mount", p).Str("dir", localDir).Msg("static mount added")
	return nil
}

func cleanMount(mountPath string) (string, error) {
	if !strings.HasPrefix(mountPath, "/") {
		return "", fmt.Errorf("%w: %q must start with /", ErrInvalidMount, mountPath)
	}
	p := path.Clean(mountPath)
	if p == "/" {
		return "", fmt.Errorf("%w: cannot mount at the root", ErrInvalidMount)
	}
	if strings.ContainsAny(p, ":*") {
		return "", fmt.Errorf("%w: %q contains route parameters", ErrInvalidMount, p)
	}
	return p, nil
}

// Mounts returns the mount table, sorted by path.
func (s *Server) Mounts() []Mount {
	s.mountMu.RLock()
	defer s.mountMu.RUnlock()

	out := make([]Mount, 0, len(s.mounts))
	for p, dir := range s.mounts {
		out = append(out, Mount{Path: p, Dir: dir})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Mount is one entry of the mount table.
type Mount struct {
	Path string `json:"path"`
	Dir  string `json:"dir"`
}

func (s *Server) serveStatic(mountPath string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		s.mountMu.RLock()
		dir, ok := s.mounts[mountPath]
		s.mountMu.RUnlock()
		if !ok {
			http.NotFound(w, r)
			return
		}

		req := r.Clone(r.Context())
		req.URL.Path = ps.ByName("filepath")
		http.FileServer(http.Dir(dir)).ServeHTTP(w, req)
	}
}

func (s *Server) serveStatus(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	body := map[string]any{"mounts": s.Mounts()}
	if s.status != nil {
		body["status"] = s.status()
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error().Err(err).Msg("writing status")
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.routeMu.RLock()
	defer s.routeMu.RUnlock()
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", ln.Addr().String()).Msg("listening")
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
