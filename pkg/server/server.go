// Package server exposes the HTTP routes the diagram viewer and node UI
// call: saving a rendered diagram, listing Ollama models and fetching
// Kroki images through a same-origin proxy.
package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/ravi-parthasarathy/umlflow/pkg/kroki"
)

// Route paths.
const (
	PathSave      = "/comfyui-uml/save"
	PathGetModels = "/comfyui-uml/ollama/get_models"
	PathProxy     = "/comfyui-uml/proxy"
	PathHealth    = "/healthz"
)

const requestIDHeader = "X-Request-ID"

// Config configures a Server.
type Config struct {
	// UMLDir receives saved diagrams.
	UMLDir string
	// KrokiURL is the configured Kroki server; its host is always allowed
	// through the proxy in addition to kroki.io.
	KrokiURL string
	// HTTPClient is used for upstream requests. Nil means a client with
	// per-route timeouts.
	HTTPClient *http.Client
	// Now stamps saved file names. Nil means time.Now.
	Now func() time.Time
}

// Server serves the umlflow REST routes.
type Server struct {
	cfg    Config
	router chi.Router
	hosts  map[string]bool
}

// New builds a Server with all routes registered.
func New(cfg Config) *Server {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Server{
		cfg:    cfg,
		router: chi.NewRouter(),
		hosts:  allowedHosts(cfg.KrokiURL),
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(requestID, logRequests)

	s.router.Get(PathHealth, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.router.Post(PathSave, s.handleSave)
	s.router.Post(PathGetModels, s.handleGetModels)
	s.router.Get(PathProxy, s.handleProxy)

	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
	})
}

// ─── middleware ──────────────────────────────────────────────────────────────

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("request",
			"id", w.Header().Get(requestIDHeader),
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"dur", time.Since(start),
			"remote", r.RemoteAddr)
	})
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "status", status, "error", msg)
	} else {
		slog.Warn("request failed", "status", status, "error", msg)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) client(timeout time.Duration) *http.Client {
	if s.cfg.HTTPClient != nil {
		return s.cfg.HTTPClient
	}
	return &http.Client{Timeout: timeout}
}

func allowedHosts(krokiURL string) map[string]bool {
	hosts := map[string]bool{}
	for _, raw := range []string{kroki.DefaultBaseURL, krokiURL} {
		if u, err := url.Parse(strings.TrimSpace(raw)); err == nil && u.Host != "" {
			hosts[strings.ToLower(u.Host)] = true
		}
	}
	return hosts
}
