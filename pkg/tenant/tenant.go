package tenant

import (
	"context"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Organization is a tenant: one ministry or office owning an isolated slice of data.
// Organizations are never deleted, only deactivated.
type Organization struct {
	ID                uuid.UUID `json:"id" yaml:"id"`
	Code              string    `json:"code" yaml:"code"`
	Name              string    `json:"name" yaml:"name"`
	Active            bool      `json:"active" yaml:"active"`
	Modules           []string  `json:"modules,omitempty" yaml:"modules"`
	AggregationOffice bool      `json:"aggregation_office" yaml:"aggregation_office"`
	CreatedAt         time.Time `json:"created_at" yaml:"created_at"`
}

// HasModule reports whether the named feature module is enabled for the organization.
func (o *Organization) HasModule(name string) bool {
	if o == nil {
		return false
	}
	return slices.Contains(o.Modules, name)
}

// Role is the role a user holds inside one organization.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"
	RoleViewer  Role = "viewer"
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleManager, RoleStaff, RoleViewer:
		return r, nil
	default:
		return "", ErrInvalidRole
	}
}

// Membership binds a user to exactly one organization.
// At most one active membership per user should be primary; the write path owns
// that invariant and the resolver only tolerates violations.
type Membership struct {
	ID             int64     `json:"id" yaml:"id"`
	UserID         uuid.UUID `json:"user_id" yaml:"user_id"`
	OrganizationID uuid.UUID `json:"organization_id" yaml:"organization_id"`
	Role           Role      `json:"role" yaml:"role"`
	Primary        bool      `json:"is_primary" yaml:"is_primary"`
	Active         bool      `json:"is_active" yaml:"is_active"`

	// Organization is populated by stores that join it in the same query.
	Organization *Organization `json:"organization,omitempty" yaml:"-"`
}

// User is the acting identity as far as tenancy is concerned.
// A nil *User means the request is anonymous.
type User struct {
	ID        uuid.UUID
	Superuser bool
}

// Directory looks up organizations. Inactive organizations are reported as
// ErrTenantNotFound by every lookup.
type Directory interface {
	// FindActiveByCode returns the active organization with the given normalized code.
	FindActiveByCode(ctx context.Context, code string) (*Organization, error)

	// FindActiveByID returns the active organization with the given id.
	FindActiveByID(ctx context.Context, id uuid.UUID) (*Organization, error)

	// GetOrCreateDefault returns the organization used in single-tenant mode,
	// creating it with the given code when it does not exist yet.
	GetOrCreateDefault(ctx context.Context, code string) (*Organization, error)
}

// MembershipStore looks up memberships.
type MembershipStore interface {
	// FindActive returns the user's active memberships in active
	// organizations, ordered by id, with Organization populated.
	// Returns ErrMembershipNotFound when there are none.
	FindActive(ctx context.Context, userID uuid.UUID) ([]Membership, error)

	// IsActiveMember reports whether the user holds an active membership in the organization.
	IsActiveMember(ctx context.Context, userID, orgID uuid.UUID) (bool, error)

	// IsAggregationOfficeMember reports whether the user holds an active
	// membership in the designated aggregation office.
	IsAggregationOfficeMember(ctx context.Context, userID uuid.UUID) (bool, error)
}

const maxCodeLength = 32

var (
	codePattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_-]*$`)
	upper       = cases.Upper(language.Und)
)

// NormalizeCode trims and uppercases an organization code.
// It returns ErrInvalidCode when the result is not a well-formed code.
func NormalizeCode(code string) (string, error) {
	code = upper.String(strings.TrimSpace(code))
	if code == "" || len(code) > maxCodeLength || !codePattern.MatchString(code) {
		return "", ErrInvalidCode
	}
	return code, nil
}
