// Package server exposes the ledger's public operations and read
// accessors over HTTP/JSON.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/Cyberenchanter/insurance-protocol/internal/core"
	"github.com/Cyberenchanter/insurance-protocol/internal/event"
	"github.com/Cyberenchanter/insurance-protocol/internal/observability"
)

// Server wires the engine to the HTTP API.
type Server struct {
	engine  *core.Engine
	events  *event.Log
	metrics *observability.Metrics
	health  *observability.HealthChecker
	log     zerolog.Logger
}

func New(engine *core.Engine, events *event.Log, metrics *observability.Metrics, health *observability.HealthChecker, log zerolog.Logger) *Server {
	return &Server{
		engine:  engine,
		events:  events,
		metrics: metrics,
		health:  health,
		log:     log,
	}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	if s.health != nil {
		r.Get("/healthz", s.health.LivenessHandler)
		r.Get("/readyz", s.health.ReadinessHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/pool/stake", s.handleStake)
		r.Post("/pool/unstake", s.handleUnstake)
		r.Get("/pool", s.handlePoolTotals)

		r.Post("/policies", s.handlePurchase)
		r.Post("/policies/{policyID}/claim", s.handleClaim)
		r.Post("/policies/{policyID}/expire", s.handleExpire)
		r.Get("/policies/{policyID}", s.handleGetPolicy)

		r.Get("/products", s.handleListProducts)
		r.Get("/products/{productID}", s.handleGetProduct)

		r.Get("/providers/{providerID}/shares", s.handleProviderShares)

		r.Get("/events", s.handleListEvents)
	})

	return r
}

// HTTPServer builds an http.Server with sane timeouts.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// instrument records request counts and latency per route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(ww.Status())).Inc()
		s.metrics.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
