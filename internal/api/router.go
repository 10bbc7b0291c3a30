// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dealhound/dealhound/internal/auth"
	"github.com/dealhound/dealhound/internal/authz"
	"github.com/dealhound/dealhound/internal/config"
	"github.com/dealhound/dealhound/internal/logging"
)

// Router assembles the HTTP surface.
type Router struct {
	handler  *Handler
	security config.SecurityConfig

	jwt      *auth.Manager
	enforcer *authz.Enforcer
}

// NewRouter builds the router. jwt and enforcer may be nil when the
// security auth mode is "none"; the admin surface is then open.
func NewRouter(handler *Handler, security config.SecurityConfig, jwt *auth.Manager, enforcer *authz.Enforcer) *Router {
	return &Router{
		handler:  handler,
		security: security,
		jwt:      jwt,
		enforcer: enforcer,
	}
}

// Setup wires all routes and middleware.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(correlationID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.security.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", instrument("health", rt.handler.Health))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Click ingestion carries the public write load and gets its own
		// per-IP limit.
		r.With(httprate.LimitByIP(rt.security.RateLimitReqs, rt.security.RateLimitWindow)).
			Post("/clicks", instrument("clicks", rt.handler.RecordClick))

		r.Get("/rank/{category}", instrument("rank", rt.handler.Rank))
		r.Get("/content/{category}", instrument("content", rt.handler.Content))
		r.Get("/analytics", instrument("analytics", rt.handler.Analytics))
		r.Get("/bias/{category}", instrument("bias", rt.handler.Bias))

		// No instrumentation wrapper here: the websocket upgrade needs
		// the raw ResponseWriter's Hijacker.
		r.Get("/stream", rt.handler.Stream)

		r.Route("/admin", func(r chi.Router) {
			if rt.security.AuthMode == "jwt" && rt.jwt != nil && rt.enforcer != nil {
				r.Use(auth.Middleware(rt.jwt))
				r.Use(rt.enforcer.Middleware)
			}
			r.Post("/pulse", instrument("admin_pulse", rt.handler.AdminPulse))
			r.Get("/ledger", instrument("admin_ledger", rt.handler.AdminLedger))
		})
	})

	return r
}

// correlationID tags every request with an ID for log stitching and
// echoes it in X-Request-ID.
func correlationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = logging.GenerateCorrelationID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logging.ContextWithCorrelationID(r.Context(), id)))
	})
}
