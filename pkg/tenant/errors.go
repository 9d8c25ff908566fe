package tenant

import "errors"

var (
	// ErrTenantNotFound is returned when an organization does not exist or is inactive.
	ErrTenantNotFound = errors.New("tenant.not_found")

	// ErrInactiveOrganization marks an organization that exists but is deactivated.
	// Lookups fold it into ErrTenantNotFound.
	ErrInactiveOrganization = errors.New("tenant.inactive_organization")

	// ErrMembershipNotFound is returned when a user has no matching active membership.
	ErrMembershipNotFound = errors.New("tenant.membership_not_found")

	// ErrAmbiguousPrimaryMembership flags a user with zero or several primary memberships.
	ErrAmbiguousPrimaryMembership = errors.New("tenant.ambiguous_primary_membership")

	// ErrStoreUnavailable wraps any infrastructure failure of a collaborator store.
	ErrStoreUnavailable = errors.New("tenant.store_unavailable")

	// ErrContextLeakDetected is raised when a request starts with a tenant already bound.
	ErrContextLeakDetected = errors.New("tenant.context_leak_detected")

	// ErrMalformedResolution is a programmer error: the resolution is internally inconsistent.
	ErrMalformedResolution = errors.New("tenant.malformed_resolution")

	// ErrNoOrganization is returned (or, by MustOrganization, panicked) when an
	// organization-scoped operation runs without a bound organization.
	ErrNoOrganization = errors.New("tenant.no_organization")

	// ErrInvalidCode is returned for malformed organization codes.
	ErrInvalidCode = errors.New("tenant.invalid_code")

	// ErrInvalidRole is returned for unknown membership roles.
	ErrInvalidRole = errors.New("tenant.invalid_role")

	// ErrInvalidMode is returned when parsing an unknown operational mode.
	ErrInvalidMode = errors.New("tenant.invalid_mode")
)

// storeError folds collaborator failures into ErrStoreUnavailable, keeping
// the not-found sentinels intact so callers can branch on them.
func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrTenantNotFound),
		errors.Is(err, ErrMembershipNotFound),
		errors.Is(err, ErrStoreUnavailable):
		return err
	case errors.Is(err, ErrInactiveOrganization):
		return errors.Join(ErrTenantNotFound, err)
	default:
		return errors.Join(ErrStoreUnavailable, err)
	}
}
