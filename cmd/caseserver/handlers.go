package main

import (
	"encoding/json"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/casekit/pkg/logger"
	"github.com/dmitrymomot/casekit/pkg/tenant"
	"github.com/dmitrymomot/casekit/pkg/tenant/pgstore"
)

type contextResponse struct {
	Mode         tenant.Mode          `json:"mode"`
	Source       tenant.Source        `json:"source"`
	CrossTenant  bool                 `json:"cross_tenant"`
	Organization *tenant.Organization `json:"organization"`
}

type pingResponse struct {
	Organization string `json:"organization"`
	// BoundID is the organization id visible to row-level security, empty
	// without a Postgres store.
	BoundID string `json:"bound_id,omitempty"`
}

type modeResponse struct {
	Mode tenant.Mode `json:"mode"`
}

func (a *app) handleContext(w http.ResponseWriter, r *http.Request) {
	res := tenant.Current(r.Context())
	source := res.Source
	if source == "" {
		source = tenant.SourceNone
	}
	writeJSON(w, http.StatusOK, contextResponse{
		Mode:         a.mode.Mode(),
		Source:       source,
		CrossTenant:  res.CrossTenant,
		Organization: res.Organization,
	})
}

// handlePing is a write route; aggregation office members are refused before it runs.
func (a *app) handlePing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org := tenant.MustOrganization(ctx)
	resp := pingResponse{Organization: org.Code}

	if a.deps.pg != nil {
		err := pgstore.WithOrganization(ctx, a.deps.pg, func(tx pgx.Tx) error {
			return tx.QueryRow(ctx, `SELECT current_setting('app.current_org_id', true)`).Scan(&resp.BoundID)
		})
		if err != nil {
			a.log.ErrorContext(ctx, "failed to run organization-scoped query",
				logger.Component("caseserver"), logger.Error(err))
			writeError(w, http.StatusInternalServerError, "internal_server_error")
			return
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *app) handleGetMode(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, modeResponse{Mode: a.mode.Mode()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
