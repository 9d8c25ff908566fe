package tenant

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryDirectory is an in-memory Directory for tests and single-node development.
type MemoryDirectory struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*Organization
	byCode map[string]uuid.UUID
}

// NewMemoryDirectory creates an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		byID:   make(map[uuid.UUID]*Organization),
		byCode: make(map[string]uuid.UUID),
	}
}

// Put inserts or replaces an organization. The code is normalized and a
// missing id is generated.
func (d *MemoryDirectory) Put(org Organization) (*Organization, error) {
	code, err := NormalizeCode(org.Code)
	if err != nil {
		return nil, err
	}
	org.Code = code
	if org.ID == uuid.Nil {
		org.ID = uuid.New()
	}
	if org.CreatedAt.IsZero() {
		org.CreatedAt = time.Now()
	}
	org.Modules = slices.Clone(org.Modules)

	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.byID[org.ID]; ok && prev.Code != org.Code {
		delete(d.byCode, prev.Code)
	}
	d.byID[org.ID] = &org
	d.byCode[org.Code] = org.ID
	return cloneOrganization(&org), nil
}

// SetActive flips the active flag of the organization with the given code.
func (d *MemoryDirectory) SetActive(code string, active bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	id, ok := d.byCode[code]
	if !ok {
		return ErrTenantNotFound
	}
	d.byID[id].Active = active
	return nil
}

func (d *MemoryDirectory) FindActiveByCode(_ context.Context, code string) (*Organization, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.byCode[code]
	if !ok {
		return nil, ErrTenantNotFound
	}
	return d.activeLocked(id)
}

func (d *MemoryDirectory) FindActiveByID(_ context.Context, id uuid.UUID) (*Organization, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.activeLocked(id)
}

func (d *MemoryDirectory) GetOrCreateDefault(_ context.Context, code string) (*Organization, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if id, ok := d.byCode[code]; ok {
		return cloneOrganization(d.byID[id]), nil
	}

	org := &Organization{
		ID:        uuid.New(),
		Code:      code,
		Name:      "Default organization",
		Active:    true,
		CreatedAt: time.Now(),
	}
	d.byID[org.ID] = org
	d.byCode[code] = org.ID
	return cloneOrganization(org), nil
}

// AggregationOffice returns the active organization flagged as the aggregation office.
func (d *MemoryDirectory) AggregationOffice() (*Organization, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, org := range d.byID {
		if org.AggregationOffice && org.Active {
			return cloneOrganization(org), true
		}
	}
	return nil, false
}

func (d *MemoryDirectory) activeLocked(id uuid.UUID) (*Organization, error) {
	org, ok := d.byID[id]
	if !ok || !org.Active {
		return nil, ErrTenantNotFound
	}
	return cloneOrganization(org), nil
}

func (d *MemoryDirectory) lookup(id uuid.UUID) (*Organization, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	org, ok := d.byID[id]
	if !ok {
		return nil, false
	}
	return cloneOrganization(org), true
}

// MemoryMemberships is an in-memory MembershipStore joined against a MemoryDirectory.
type MemoryMemberships struct {
	mu     sync.RWMutex
	dir    *MemoryDirectory
	rows   map[int64]Membership
	nextID int64
}

// NewMemoryMemberships creates an empty store resolving organizations through dir.
func NewMemoryMemberships(dir *MemoryDirectory) *MemoryMemberships {
	return &MemoryMemberships{dir: dir, rows: make(map[int64]Membership)}
}

// Add stores a membership and returns it with its id assigned.
// The one-primary-per-user rule is not enforced here, matching what a
// misbehaving write path could produce.
func (s *MemoryMemberships) Add(m Membership) (Membership, error) {
	if m.Role == "" {
		m.Role = RoleStaff
	}
	if _, err := ParseRole(string(m.Role)); err != nil {
		return Membership{}, err
	}
	m.Organization = nil

	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == 0 {
		s.nextID++
		m.ID = s.nextID
	} else if m.ID > s.nextID {
		s.nextID = m.ID
	}
	s.rows[m.ID] = m
	return m, nil
}

// Revoke deactivates a membership.
func (s *MemoryMemberships) Revoke(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.rows[id]
	if !ok {
		return ErrMembershipNotFound
	}
	m.Active = false
	s.rows[id] = m
	return nil
}

func (s *MemoryMemberships) FindActive(_ context.Context, userID uuid.UUID) ([]Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []Membership
	for _, m := range s.rows {
		if m.UserID != userID || !m.Active {
			continue
		}
		org, ok := s.dir.lookup(m.OrganizationID)
		if !ok || !org.Active {
			continue
		}
		m.Organization = org
		active = append(active, m)
	}
	if len(active) == 0 {
		return nil, ErrMembershipNotFound
	}
	slices.SortFunc(active, func(a, b Membership) int { return cmp.Compare(a.ID, b.ID) })
	return active, nil
}

func (s *MemoryMemberships) IsActiveMember(_ context.Context, userID, orgID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.rows {
		if m.UserID == userID && m.OrganizationID == orgID && m.Active {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryMemberships) IsAggregationOfficeMember(_ context.Context, userID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.rows {
		if m.UserID != userID || !m.Active {
			continue
		}
		if org, ok := s.dir.lookup(m.OrganizationID); ok && org.Active && org.AggregationOffice {
			return true, nil
		}
	}
	return false, nil
}

func cloneOrganization(org *Organization) *Organization {
	if org == nil {
		return nil
	}
	c := *org
	c.Modules = slices.Clone(org.Modules)
	return &c
}
