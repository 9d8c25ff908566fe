package tenant

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/casekit/pkg/logger"
)

// DecisionKind is the outcome class of an access decision.
type DecisionKind string

const (
	Allow         DecisionKind = "allow"
	AllowReadOnly DecisionKind = "allow_read_only"
	Deny          DecisionKind = "deny"
)

// Reason is the machine-readable code attached to a denial.
type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonOrganizationRequired Reason = "organization_required"
	ReasonNoMembership         Reason = "no_membership"
	ReasonInactiveOrganization Reason = "inactive_organization"
	ReasonReadOnlyViolation    Reason = "read_only_violation"
)

// Public returns the reason code safe to show to clients. An inactive or
// unknown organization renders the same as a missing membership so that
// responses do not reveal which organizations exist.
func (r Reason) Public() Reason {
	if r == ReasonInactiveOrganization {
		return ReasonNoMembership
	}
	return r
}

// Bypass marks a decision that skipped the membership check.
type Bypass string

const (
	BypassNone        Bypass = ""
	BypassSuperuser   Bypass = "superuser_bypass"
	BypassAggregation Bypass = "aggregation_read_only"
)

// Decision is the result of access validation. It is never persisted.
type Decision struct {
	Kind   DecisionKind
	Reason Reason
	Bypass Bypass
}

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool {
	return d.Kind == Allow || d.Kind == AllowReadOnly
}

func allow() Decision                            { return Decision{Kind: Allow} }
func denied(reason Reason) Decision              { return Decision{Kind: Deny, Reason: reason} }
func bypassed(k DecisionKind, b Bypass) Decision { return Decision{Kind: k, Bypass: b} }

// Validator decides whether a user may access a resolved organization.
type Validator struct {
	memberships MembershipStore
	logger      *slog.Logger
}

// NewValidator creates a validator. A nil logger falls back to slog.Default.
func NewValidator(memberships MembershipStore, log *slog.Logger) *Validator {
	if log == nil {
		log = slog.Default()
	}
	return &Validator{memberships: memberships, logger: log}
}

// Validate evaluates the access table for user against res, first match wins:
//
//	no organization, not required       -> Allow
//	no organization, required           -> Deny(organization_required)
//	organization inactive               -> Deny(inactive_organization)
//	superuser                           -> Allow (superuser_bypass)
//	single-tenant default organization  -> Allow
//	aggregation member, other org       -> AllowReadOnly (aggregation_read_only)
//	active member                       -> Allow
//	otherwise                           -> Deny(no_membership)
//
// Expected denials are returned as decisions. An error is returned only for
// a malformed resolution or a membership store failure.
func (v *Validator) Validate(ctx context.Context, user *User, res Resolution, required bool) (Decision, error) {
	if !res.wellFormed() {
		return Decision{}, ErrMalformedResolution
	}

	org := res.Organization
	if org == nil {
		if required {
			return denied(ReasonOrganizationRequired), nil
		}
		return allow(), nil
	}

	if !org.Active {
		return denied(ReasonInactiveOrganization), nil
	}

	if user != nil && user.Superuser {
		v.logger.InfoContext(ctx, "superuser bypassed tenant isolation",
			logger.Component("tenant.validator"),
			logger.UserID(user.ID),
			logger.OrgCode(org.Code),
			logger.Bypass(string(BypassSuperuser)),
		)
		return bypassed(Allow, BypassSuperuser), nil
	}

	if res.Source == SourceDefault {
		return allow(), nil
	}

	if user == nil {
		return denied(ReasonNoMembership), nil
	}

	// CrossTenant on a non-superuser means aggregation office membership.
	if res.CrossTenant && !org.AggregationOffice {
		v.logger.InfoContext(ctx, "aggregation office read-only access",
			logger.Component("tenant.validator"),
			logger.UserID(user.ID),
			logger.OrgCode(org.Code),
			logger.Bypass(string(BypassAggregation)),
		)
		return bypassed(AllowReadOnly, BypassAggregation), nil
	}

	member, err := v.memberships.IsActiveMember(ctx, user.ID, org.ID)
	if err != nil {
		return Decision{}, storeError(err)
	}
	if member {
		return allow(), nil
	}
	return denied(ReasonNoMembership), nil
}

// CheckVerb applies the read-only restriction: an AllowReadOnly decision on
// any method other than GET, HEAD, OPTIONS or TRACE becomes Deny(read_only_violation).
// Other decisions pass through unchanged.
func CheckVerb(d Decision, method string) Decision {
	if d.Kind != AllowReadOnly || SafeMethod(method) {
		return d
	}
	return Decision{Kind: Deny, Reason: ReasonReadOnlyViolation, Bypass: d.Bypass}
}

// SafeMethod reports whether method is idempotent and free of side effects.
func SafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
