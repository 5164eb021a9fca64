// Package api exposes the assistant as a JSON HTTP API for the embeddable
// widget: the query pipeline plus feedback, widget config and health.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/munipolis/vasefirma-ai/internal/assist"
	"github.com/munipolis/vasefirma-ai/internal/log"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger  log.Logger      // optional, defaults to a no-op logger
	Service *assist.Service // required

	CORSOrigins []string // allowed widget origins
	TrustProxy  bool     // trust X-Real-IP/X-Forwarded-For (behind reverse proxy)

	// Health probe inputs, reported without calling upstream.
	OpenAIConfigured   bool
	PineconeConfigured bool
	PineconeIndex      string
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates the server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Service == nil {
		return nil, errors.New("assist service is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	qh := &queryHandler{svc: cfg.Service, trustProxy: cfg.TrustProxy, logger: logger}
	fh := &feedbackHandler{logger: logger}
	ch := &configHandler{logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/query", qh.handle)
	mux.HandleFunc("POST /api/feedback", fh.handle)
	mux.HandleFunc("GET /api/config", ch.handle)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → Routes
	// RequestID must be before Logging so request_id is available in log
	// attributes. CORS must wrap the routes so preflight OPTIONS succeeds
	// for paths the mux only knows as POST. Rate limiting is admission
	// inside the pipeline, not middleware, so only /api/query pays for it.
	var handler http.Handler = mux
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	index := cfg.PineconeIndex
	if index == "" {
		index = "not set"
	}
	hh := &healthHandler{
		checks: healthChecks{
			OpenAI:        cfg.OpenAIConfigured,
			Pinecone:      cfg.PineconeConfigured,
			PineconeIndex: index,
		},
		logger: logger,
		now:    time.Now,
	}

	// Top-level mux separates the health probe from the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", hh.handle)
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
