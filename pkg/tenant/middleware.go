package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrymomot/casekit/pkg/audit"
	"github.com/dmitrymomot/casekit/pkg/clientip"
	"github.com/dmitrymomot/casekit/pkg/logger"
	"github.com/dmitrymomot/casekit/pkg/requestid"
)

// ErrHandlerPanic wraps a panic raised by the downstream handler.
var ErrHandlerPanic = errors.New("tenant.handler_panic")

// Middleware runs the tenant lifecycle around next: resolve, validate,
// bind, invoke, clear, audit.
//
// Denials answer 403 with a stable reason code, internal failures answer 500.
// The bound resolution is cleared on every path, including handler panics,
// which are re-raised after cleanup.
func Middleware(resolver *Resolver, validator *Validator, opts ...Option) func(http.Handler) http.Handler {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if matchesAny(r.URL.Path, cfg.skipPaths) {
				next.ServeHTTP(w, r)
				return
			}

			start := cfg.clock()
			lc := newLifecycle()
			lc.user = resolver.User(r)
			ctx := r.Context()
			release := func() {}

			defer func() {
				rec := recover()
				if rec != nil {
					lc.fail(fmt.Errorf("%w: %v", ErrHandlerPanic, rec))
				}
				release()
				_ = lc.advance(PhaseCleaned)
				cfg.finish(r, lc, cfg.clock().Sub(start))
				if rec != nil {
					panic(rec)
				}
			}()

			if leaked := Current(ctx); !leaked.IsEmpty() {
				Clear(ctx)
				cfg.metrics.countLeak()
				cfg.logger.ErrorContext(ctx, "tenant context leaked into new request",
					logger.Component("tenant.middleware"),
					logger.OrgCode(leaked.OrganizationCode()),
					logger.Source(string(leaked.Source)),
					logger.Error(ErrContextLeakDetected),
				)
				lc.fail(ErrContextLeakDetected)
				writeFailure(w)
				return
			}

			res, err := resolver.Resolve(r)
			cfg.metrics.observeResolution(res.Source, cfg.clock().Sub(start))
			if err != nil {
				if errors.Is(err, ErrTenantNotFound) {
					lc.deny(denied(ReasonInactiveOrganization))
					writeDenial(w, lc.decision.Reason)
					return
				}
				lc.fail(err)
				writeFailure(w)
				return
			}
			lc.res = res
			if err := lc.advance(PhaseResolved); err != nil {
				lc.fail(err)
				writeFailure(w)
				return
			}

			decision, err := validator.Validate(ctx, res.User, res, cfg.required(r))
			if err != nil {
				lc.fail(err)
				writeFailure(w)
				return
			}
			decision = CheckVerb(decision, r.Method)
			if !decision.Allowed() {
				lc.deny(decision)
				writeDenial(w, decision.Reason)
				return
			}
			lc.decision = decision
			if err := lc.advance(PhaseValidated); err != nil {
				lc.fail(err)
				writeFailure(w)
				return
			}

			ctx, release = Bind(ctx, res)
			if err := lc.advance(PhasePropagated); err != nil {
				lc.fail(err)
				writeFailure(w)
				return
			}

			_ = lc.advance(PhaseHandlerExecuting)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// finish logs the outcome and hands the audit event to the sink.
func (c *config) finish(r *http.Request, lc *lifecycle, elapsed time.Duration) {
	ctx := r.Context()
	res := lc.res
	phase := lc.terminal()

	source := res.Source
	if source == "" {
		source = SourceNone
	}
	kind := lc.decision.Kind
	if phase == PhaseFailed {
		kind = ""
	}

	attrs := []any{
		logger.Component("tenant.middleware"),
		logger.OrgCode(res.OrganizationCode()),
		logger.Source(string(source)),
		logger.Phase(string(phase)),
		logger.Duration(elapsed),
	}
	if lc.user != nil {
		attrs = append(attrs, logger.UserID(lc.user.ID))
	}

	switch phase {
	case PhaseFailed:
		c.metrics.countDecision("failed", "", source)
		c.logger.ErrorContext(ctx, "tenant lifecycle failed", append(attrs, logger.Error(lc.err))...)
	case PhaseDenied:
		c.metrics.countDecision(kind, lc.decision.Reason, source)
		c.logger.WarnContext(ctx, "tenant access denied",
			append(attrs, logger.Decision(string(kind)), logger.Reason(string(lc.decision.Reason)))...)
	default:
		c.metrics.countDecision(kind, lc.decision.Reason, source)
		if lc.decision.Bypass != BypassNone {
			c.logger.InfoContext(ctx, "tenant access granted via bypass",
				append(attrs, logger.Decision(string(kind)), logger.Bypass(string(lc.decision.Bypass)))...)
		}
	}

	if c.audit == nil {
		return
	}

	userID := audit.Anonymous
	if lc.user != nil {
		userID = lc.user.ID.String()
	}
	c.audit.Record(context.WithoutCancel(ctx), audit.Event{
		OrganizationCode: res.OrganizationCode(),
		Source:           string(source),
		UserID:           userID,
		Decision:         string(kind),
		Reason:           string(lc.decision.Reason),
		Bypass:           string(lc.decision.Bypass),
		Phase:            string(phase),
		Error:            errorString(lc.err),
		Method:           r.Method,
		Path:             r.URL.Path,
		IP:               clientIP(r),
		RequestID:        requestid.FromContext(ctx),
		Elapsed:          elapsed,
		CreatedAt:        c.clock(),
	})
}

// matchesAny reports whether path equals one of prefixes or lies below it.
// "/metrics" matches "/metrics" and "/metrics/x" but not "/metricsfoo".
func matchesAny(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if p == "" {
			continue
		}
		base := strings.TrimSuffix(p, "/")
		if base == "" {
			return true
		}
		if path == base || strings.HasPrefix(path, base+"/") {
			return true
		}
	}
	return false
}

func clientIP(r *http.Request) string {
	if ip := clientip.GetIPFromContext(r.Context()); ip != "" {
		return ip
	}
	return clientip.GetIP(r)
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func writeDenial(w http.ResponseWriter, reason Reason) {
	writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden", Reason: string(reason.Public())})
}

func writeFailure(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal_server_error"})
}

func writeJSON(w http.ResponseWriter, status int, body errorResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Default().Error("failed to write tenant error response", logger.Error(err))
	}
}
