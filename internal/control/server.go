package control

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tuptime/tuptime/internal/registry"
	"github.com/tuptime/tuptime/internal/version"
)

// Registry defines the service CRUD the control channel exposes.
type Registry interface {
	Add(svc registry.Service) error
	Remove(name string) error
	List() []registry.Entry
}

// Tracker is notified when the registry changes so the running scheduler
// picks up additions and removals without a restart.
type Tracker interface {
	Track(svc registry.Service)
	Untrack(name string)
}

// Server answers CLI requests inside the daemon process.
type Server struct {
	reg       Registry
	tracker   Tracker
	startedAt time.Time
	shutdown  func()
	router    chi.Router
	logger    *slog.Logger
}

// New creates a Server. shutdown is invoked (once, asynchronously) when a
// CLI requests daemon shutdown.
func New(reg Registry, tracker Tracker, startedAt time.Time, shutdown func(), logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		reg:       reg,
		tracker:   tracker,
		startedAt: startedAt,
		shutdown:  shutdown,
		router:    chi.NewRouter(),
		logger:    logger,
	}
	s.registerRoutes()
	return s
}

// Router returns the chi router (for testing).
func (s *Server) Router() chi.Router {
	return s.router
}

// Listen binds the unix socket at path, replacing any stale socket file.
func Listen(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	// Owner-only: the socket accepts registry mutations.
	if err := os.Chmod(path, 0o600); err != nil {
		l.Close()
		return nil, err
	}
	return l, nil
}

// Serve answers requests on l until it is closed.
func (s *Server) Serve(l net.Listener) error {
	srv := &http.Server{Handler: s.router}
	err := srv.Serve(l)
	if errors.Is(err, net.ErrClosed) || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/v1/status", s.handleStatus)
	r.Post("/v1/services", s.handleAddService)
	r.Delete("/v1/services/{name}", s.handleRemoveService)
	r.Post("/v1/shutdown", s.handleShutdown)
}

// --- Response helpers ---

type envelope struct {
	Data  interface{} `json:"data"`
	Error string      `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Error: msg})
}

// --- Handlers ---

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Pid:       os.Getpid(),
		Version:   version.Version,
		StartedAt: s.startedAt,
		Services:  s.reg.List(),
	})
}

func (s *Server) handleAddService(w http.ResponseWriter, r *http.Request) {
	var svc registry.Service
	if err := json.NewDecoder(r.Body).Decode(&svc); err != nil {
		writeError(w, http.StatusBadRequest, "decoding service: "+err.Error())
		return
	}

	if err := s.reg.Add(svc); err != nil {
		switch {
		case errors.Is(err, registry.ErrDuplicate):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, registry.ErrInvalid):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.logger.Error("adding service", "service", svc.Name, "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	s.tracker.Track(svc)
	s.logger.Info("service added via control channel", "service", svc.Name, "protocol", svc.Protocol)
	writeJSON(w, http.StatusCreated, svc)
}

func (s *Server) handleRemoveService(w http.ResponseWriter, r *http.Request) {
	// chi hands back the escaped segment when the client had to encode it.
	name := chi.URLParam(r, "name")
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}

	if err := s.reg.Remove(name); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error("removing service", "service", name, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.tracker.Untrack(name)
	s.logger.Info("service removed via control channel", "service", name)
	writeJSON(w, http.StatusOK, map[string]string{"removed": name})
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("shutdown requested via control channel")
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopping"})
	// Respond first, then begin shutdown so the CLI gets its answer.
	go s.shutdown()
}

// --- Middleware ---

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.logger.Debug("control request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start),
		)
	})
}
