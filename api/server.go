// Package api exposes the marketplace over HTTP with chi. Requests carry a
// bearer token issued at login; the account behind it is reloaded on every
// request.
package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xraph/leadledger"
	"github.com/xraph/leadledger/user"
)

// Server holds the HTTP handlers.
type Server struct {
	ledger  *leadledger.Ledger
	tokens  *TokenService
	logger  *slog.Logger
	metrics http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for request and failure logs.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetricsHandler mounts h at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// New creates a Server.
func New(l *leadledger.Ledger, tokens *TokenService, opts ...Option) *Server {
	s := &Server{
		ledger: l,
		tokens: tokens,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.register)
		r.Post("/auth/login", s.login)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/auth/me", s.me)

			r.Post("/leads/submit", s.submitLead)
			r.Get("/leads/my", s.myLeads)
			r.Get("/leads/all", s.browseLeads)
			r.Get("/leads/{id}", s.viewLead)

			r.Route("/admin", func(r chi.Router) {
				r.Use(requireRole(user.RoleAdmin, user.RoleSuperadmin))
				r.Get("/pending-leads", s.pendingLeads)
				r.Patch("/leads/{id}/approve", s.approveLead)
				r.Patch("/leads/{id}/reject", s.rejectLead)
				r.Patch("/leads/{id}/status", s.setLeadStatus)
			})

			r.Route("/superadmin", func(r chi.Router) {
				r.Use(requireRole(user.RoleSuperadmin))
				r.Get("/users", s.listUsers)
				r.Post("/create-admin", s.createAdmin)
				r.Patch("/users/{id}/credits", s.adjustCredits)
				r.Get("/credit-transactions", s.creditTransactions)
				r.Get("/users/{id}/reconciliation", s.reconcile)
			})
		})
	})

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.Ping(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// page reads the optional limit and offset query parameters.
func page(r *http.Request) (limit, offset int, err error) {
	v := make(leadledger.Violations)
	q := r.URL.Query()
	if raw := q.Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			v.Add("limit", "must be a non-negative integer")
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if offset, err = strconv.Atoi(raw); err != nil || offset < 0 {
			v.Add("offset", "must be a non-negative integer")
		}
	}
	if err := v.Err(); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}
