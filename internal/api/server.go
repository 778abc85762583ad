// Package api is the JSON HTTP surface of the helpdesk: an SSE answer
// stream plus ticket and feedback endpoints.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ai4ai/helpdesk/internal/answer"
	"github.com/ai4ai/helpdesk/internal/feedback"
	"github.com/ai4ai/helpdesk/internal/index"
	"github.com/ai4ai/helpdesk/internal/ticket"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      *slog.Logger
	Factory     *answer.Factory // Required: per-role answer pipelines
	Tickets     *ticket.Store   // Required
	Router      *ticket.Router  // Optional: nil uses the default keyword map
	Feedback    *feedback.Store // Required
	Handle      *index.Handle   // Optional: nil skips the index readiness check
	Pool        *pgxpool.Pool   // Optional: nil skips the database ping in /ready
	CORSOrigins []string        // Allowed origins for CORS
	IsDev       bool            // Disables HSTS (no HTTPS in dev)
	TrustProxy  bool            // Trust X-Real-IP/X-Forwarded-For headers (behind reverse proxy)
	RateBurst   int             // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Factory == nil {
		return nil, errors.New("answer factory is required")
	}
	if cfg.Tickets == nil {
		return nil, errors.New("ticket store is required")
	}
	if cfg.Feedback == nil {
		return nil, errors.New("feedback store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := cfg.Router
	if router == nil {
		router = ticket.NewRouter(nil)
	}

	ah := &askHandler{factory: cfg.Factory, logger: logger}
	th := &ticketHandler{store: cfg.Tickets, router: router, logger: logger}
	fh := &feedbackHandler{store: cfg.Feedback, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/ask", ah.ask)
	mux.HandleFunc("POST /api/tickets", th.create)
	mux.HandleFunc("GET /api/tickets", th.list)
	mux.HandleFunc("GET /api/teams", th.teams)
	mux.HandleFunc("POST /api/feedback", fh.record)

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID must be before Logging so request_id is available in log attributes.
	// CORS must be before RateLimit so preflight OPTIONS gets proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Wrap with security headers
	isDev := cfg.IsDev
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w, isDev)
		handler.ServeHTTP(w, r)
	})

	// Use a top-level mux to separate health probes from middleware stack
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.Handle("GET /ready", readiness(cfg.Pool, cfg.Handle, logger))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
