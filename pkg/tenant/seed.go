package tenant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ErrInvalidSeed is returned for seed documents that reference unknown organizations.
var ErrInvalidSeed = errors.New("tenant.invalid_seed")

// Seed is a YAML document describing organizations and memberships:
//
//	organizations:
//	  - code: MOH
//	    name: Ministry of Health
//	    active: true
//	    modules: [cases, reports]
//	  - code: OCM
//	    name: Coordination Office
//	    active: true
//	    aggregation_office: true
//	memberships:
//	  - user_id: 7f6c1d2e-...
//	    organization: MOH
//	    role: staff
//	    is_primary: true
//	    is_active: true
type Seed struct {
	Organizations []Organization   `yaml:"organizations"`
	Memberships   []SeedMembership `yaml:"memberships"`
}

// SeedMembership references its organization by code.
type SeedMembership struct {
	ID           int64     `yaml:"id"`
	UserID       uuid.UUID `yaml:"user_id"`
	Organization string    `yaml:"organization"`
	Role         Role      `yaml:"role"`
	Primary      bool      `yaml:"is_primary"`
	Active       bool      `yaml:"is_active"`
}

// LoadSeed decodes a seed document.
func LoadSeed(r io.Reader) (*Seed, error) {
	var s Seed
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return &s, nil
		}
		return nil, errors.Join(ErrInvalidSeed, err)
	}
	return &s, nil
}

// LoadSeedFile decodes the seed document at path.
func LoadSeedFile(path string) (*Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadSeed(f)
}

// SeedWriter is the write path a seed is applied through.
type SeedWriter interface {
	PutOrganization(ctx context.Context, org Organization) (*Organization, error)
	PutMembership(ctx context.Context, m Membership) (Membership, error)
	FindActiveByCode(ctx context.Context, code string) (*Organization, error)
}

// Apply writes the seed into the memory stores.
func (s *Seed) Apply(dir *MemoryDirectory, memberships *MemoryMemberships) error {
	return s.ApplyTo(context.Background(), memoryWriter{dir: dir, memberships: memberships})
}

// ApplyTo writes the seed through w. Memberships may reference organizations
// defined in the same document or already present in w.
func (s *Seed) ApplyTo(ctx context.Context, w SeedWriter) error {
	codes := make(map[string]uuid.UUID, len(s.Organizations))
	for _, org := range s.Organizations {
		stored, err := w.PutOrganization(ctx, org)
		if err != nil {
			return fmt.Errorf("%w: organization %q: %w", ErrInvalidSeed, org.Code, err)
		}
		codes[stored.Code] = stored.ID
	}

	for _, sm := range s.Memberships {
		code, err := NormalizeCode(sm.Organization)
		if err != nil {
			return fmt.Errorf("%w: membership organization %q: %w", ErrInvalidSeed, sm.Organization, err)
		}
		orgID, ok := codes[code]
		if !ok {
			org, err := w.FindActiveByCode(ctx, code)
			if err != nil {
				return fmt.Errorf("%w: unknown organization %q", ErrInvalidSeed, code)
			}
			orgID = org.ID
		}
		if _, err := w.PutMembership(ctx, Membership{
			ID:             sm.ID,
			UserID:         sm.UserID,
			OrganizationID: orgID,
			Role:           sm.Role,
			Primary:        sm.Primary,
			Active:         sm.Active,
		}); err != nil {
			return fmt.Errorf("%w: membership for user %s: %w", ErrInvalidSeed, sm.UserID, err)
		}
	}
	return nil
}

type memoryWriter struct {
	dir         *MemoryDirectory
	memberships *MemoryMemberships
}

func (w memoryWriter) PutOrganization(_ context.Context, org Organization) (*Organization, error) {
	return w.dir.Put(org)
}

func (w memoryWriter) PutMembership(_ context.Context, m Membership) (Membership, error) {
	return w.memberships.Add(m)
}

func (w memoryWriter) FindActiveByCode(ctx context.Context, code string) (*Organization, error) {
	return w.dir.FindActiveByCode(ctx, code)
}
