// Package web serves the visualizer's HTTP API, live WebSocket sessions, and
// static assets. It is a thin adapter: every operation goes through the scene
// manager, which provides the locking the engine requires.
package web

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/utils"
	"goji.io"
	"goji.io/pat"

	"webkin/scene"
)

// Options configures the web server.
type Options struct {
	// BindAddress is the host:port to listen on.
	BindAddress string
	// StaticDir holds the viewer UI assets; served under /static with
	// index.html at /. Optional.
	StaticDir string
	// ModelsDir holds extracted mesh files; served under /k3d/models.
	// Optional.
	ModelsDir string
}

// maxBodyBytes bounds tree and joint payloads accepted over REST.
const maxBodyBytes = 8 << 20

// Server is the HTTP/WebSocket front of a scene manager.
type Server struct {
	logger golog.Logger
	mgr    *scene.Manager
	opts   Options
	mux    *goji.Mux

	mu                      sync.Mutex
	httpServer              *http.Server
	listener                net.Listener
	activeBackgroundWorkers sync.WaitGroup
}

// NewServer wires the routes and returns a server ready to Start.
func NewServer(mgr *scene.Manager, opts Options, logger golog.Logger) *Server {
	s := &Server{logger: logger, mgr: mgr, opts: opts}

	mux := goji.NewMux()
	mux.HandleFunc(pat.Get("/api/tree"), s.handleGetTree)
	mux.HandleFunc(pat.Post("/api/tree"), s.handlePostTree)
	mux.HandleFunc(pat.Get("/api/scene"), s.handleGetScene)
	mux.HandleFunc(pat.Post("/api/joints"), s.handlePostJoints)
	mux.HandleFunc(pat.Get("/ws"), s.handleWebSocket)
	if opts.ModelsDir != "" {
		mux.Handle(pat.Get("/k3d/models/*"),
			http.StripPrefix("/k3d/models", http.FileServer(http.Dir(opts.ModelsDir))))
	}
	if opts.StaticDir != "" {
		mux.Handle(pat.Get("/static/*"),
			http.StripPrefix("/static", http.FileServer(http.Dir(opts.StaticDir))))
		mux.HandleFunc(pat.Get("/"), s.handleIndex)
	}
	s.mux = mux
	return s
}

// Handler exposes the route table, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start binds the listener and serves until Close. It does not block.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return errors.New("already started")
	}
	listener, err := net.Listen("tcp", s.opts.BindAddress)
	if err != nil {
		return errors.Wrapf(err, "cannot listen on %q", s.opts.BindAddress)
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.logger.Infow("web server listening", "address", listener.Addr().String())

	s.activeBackgroundWorkers.Add(1)
	utils.PanicCapturingGo(func() {
		defer s.activeBackgroundWorkers.Done()
		if serveErr := s.httpServer.Serve(listener); serveErr != nil &&
			!errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Errorw("web server failed", "error", serveErr)
		}
	})
	return nil
}

// Address returns the bound address, empty before Start.
func (s *Server) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close shuts the server down and waits for in-flight work.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	httpServer := s.httpServer
	s.mu.Unlock()

	var err error
	if httpServer != nil {
		err = httpServer.Shutdown(ctx)
	}
	s.activeBackgroundWorkers.Wait()
	return err
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(s.opts.StaticDir, "index.html"))
}

func (s *Server) handleGetTree(w http.ResponseWriter, r *http.Request) {
	raw := s.mgr.TreeJSON()
	if raw == nil {
		writeJSON(w, http.StatusOK, map[string]string{"error": "no tree loaded"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(raw); err != nil {
		s.logger.Debugw("cannot write tree response", "error", err)
	}
}

func (s *Server) handlePostTree(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.mgr.LoadTreeJSON(body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"joints": s.mgr.JointNames(),
	})
}

func (s *Server) handleGetScene(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mgr.Snapshot())
}

func (s *Server) handlePostJoints(w http.ResponseWriter, r *http.Request) {
	var coords map[string]float64
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&coords); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.mgr.SetJointCoordinates(coords)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	//nolint:errcheck
	json.NewEncoder(w).Encode(payload)
}
