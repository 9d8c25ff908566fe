package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/casekit/pkg/auth"
	"github.com/dmitrymomot/casekit/pkg/httpserver"
	"github.com/dmitrymomot/casekit/pkg/requestid"
	"github.com/dmitrymomot/casekit/pkg/tenant"
)

const readinessTimeout = 3 * time.Second

func (a *app) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware, a.clientIP.Middleware)

	r.Get("/healthz", httpserver.Liveness())
	r.Get("/readyz", httpserver.Readiness(a.log, readinessTimeout, a.deps.checks))
	r.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}))

	r.Group(func(r chi.Router) {
		r.Use(
			a.sessions.EnsureSession,
			auth.Middleware(a.auth, auth.WithLogger(a.log)),
			tenant.Middleware(a.resolver, a.validator, a.tenantOptions()...),
		)

		r.Get("/api/context", a.handleContext)
		r.Route(strings.TrimSuffix(a.cfg.Tenancy.PathPrefix, "/")+"/{code}", func(r chi.Router) {
			r.Get("/context", a.handleContext)
			r.Post("/ping", a.handlePing)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.Middleware(a.auth, auth.WithLogger(a.log)), auth.RequireAuth, requireSuperuser)
		r.Get("/mode", a.handleGetMode)
	})

	return r
}

func requireSuperuser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := auth.FromContext(r.Context()); !ok || !id.Superuser {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}
