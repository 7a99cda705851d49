// Package server exposes the broadcast channels over WebSocket and the
// overlay catalog, latest record and instrumentation over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"codeberg.org/mutker/rahoverlay/internal/broadcast"
	"codeberg.org/mutker/rahoverlay/internal/errors"
	"codeberg.org/mutker/rahoverlay/internal/logger"
	"codeberg.org/mutker/rahoverlay/internal/metrics"
	"codeberg.org/mutker/rahoverlay/internal/overlay"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 2 * time.Second
)

// LatestSource returns the most recent consolidated record
type LatestSource interface {
	Latest() metrics.Record
}

type Config struct {
	Addr        string
	OverlaysDir string
}

type Server struct {
	cfg      Config
	hub      *broadcast.Hub
	latest   LatestSource
	overlays *overlay.Registry
	gatherer prometheus.Gatherer
	log      logger.Logger
	mux      *http.ServeMux
}

// New wires the routes. overlays and gatherer may be nil, in which case
// the corresponding routes answer 503.
func New(cfg Config, hub *broadcast.Hub, latest LatestSource, overlays *overlay.Registry, gatherer prometheus.Gatherer, log logger.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		hub:      hub,
		latest:   latest,
		overlays: overlays,
		gatherer: gatherer,
		log:      log,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /ws/{channel}", s.handleWS)
	s.mux.HandleFunc("GET /api/overlays", s.handleOverlays)
	s.mux.HandleFunc("POST /api/overlays/{name}/launch", s.handleLaunch)
	s.mux.HandleFunc("POST /api/overlays/{name}/close", s.handleClose)
	s.mux.HandleFunc("GET /api/telemetry", s.handleTelemetry)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /overlay/{name}/", s.handleOverlayFiles)

	if s.gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errFactory := errors.New()

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return errFactory.Wrap(ErrListen, err)
	}

	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("HTTP server listening")

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errFactory.Wrap(ErrServe, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		srv.Close()
		return errFactory.Wrap(ErrShutdown, err)
	}

	s.log.Info().Msg("HTTP server stopped")
	return nil
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r, r.PathValue("channel"))
}

func (s *Server) handleTelemetry(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.latest.Latest())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"channels": s.hub.Channels(),
	})
}

func (s *Server) handleOverlays(w http.ResponseWriter, _ *http.Request) {
	if s.overlays == nil {
		writeStatus(w, http.StatusServiceUnavailable, "error", "overlay catalog unavailable")
		return
	}

	list, err := s.overlays.Catalog()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load overlay catalog")
		writeStatus(w, http.StatusInternalServerError, "error", err.Error())
		return
	}
	if list == nil {
		list = []overlay.Overlay{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	if s.overlays == nil {
		writeStatus(w, http.StatusServiceUnavailable, "error", "overlay catalog unavailable")
		return
	}

	name := r.PathValue("name")
	o, status, err := s.overlays.Launch(r.Context(), name)
	if err != nil {
		s.log.Warn().Err(err).Str("overlay", name).Msg("Overlay launch failed")
		writeStatus(w, statusFor(err), "error", err.Error())
		return
	}

	msg := "Overlay " + o.Name + " launched."
	if status == overlay.StatusAlreadyRunning {
		msg = "Overlay " + o.Name + " is already running."
	}
	writeStatus(w, http.StatusOK, "success", msg)
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if s.overlays == nil {
		writeStatus(w, http.StatusServiceUnavailable, "error", "overlay catalog unavailable")
		return
	}

	name := r.PathValue("name")
	if err := s.overlays.Close(name); err != nil {
		writeStatus(w, statusFor(err), "error", err.Error())
		return
	}
	writeStatus(w, http.StatusOK, "success", "Overlay "+name+" closed.")
}

// handleOverlayFiles serves <overlays_dir>/<name>/ to the overlay windows
func (s *Server) handleOverlayFiles(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if s.cfg.OverlaysDir == "" || name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		http.NotFound(w, r)
		return
	}
	root := filepath.Join(s.cfg.OverlaysDir, name)
	http.StripPrefix("/overlay/"+name+"/", http.FileServer(http.Dir(root))).ServeHTTP(w, r)
}

func statusFor(err error) int {
	switch errors.CodeOf(err) {
	case overlay.ErrOverlayNotFound:
		return http.StatusNotFound
	case overlay.ErrNotRunning:
		return http.StatusConflict
	case overlay.ErrLauncherUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeStatus(w http.ResponseWriter, code int, status, msg string) {
	writeJSON(w, code, statusResponse{Status: status, Message: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
