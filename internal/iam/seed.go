package iam

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gatekey.org/internal/perm"
)

const SuperadminRoleCode = "superadmin"

// SeedResult reports what one seeding pass touched.
type SeedResult struct {
	Resources          int
	Actions            int
	PermissionsCreated int
	RoleCreated        bool
	UserCreated        bool
}

// Seeder materializes the permission catalog into the database and
// provisions the bootstrap superadmin. Every step is an upsert, so repeated
// runs converge on the same state.
type Seeder struct {
	store   Store
	catalog *perm.Catalog
}

func NewSeeder(store Store, catalog *perm.Catalog) (*Seeder, error) {
	if store == nil {
		return nil, errors.New("iam store is required")
	}
	if catalog == nil {
		catalog = perm.Default()
	}
	return &Seeder{store: store, catalog: catalog}, nil
}

// Seed writes actions, resources and the allowed permission cross-product,
// then guarantees a global superadmin role holding every permission and,
// when credentials are given, a superadmin account assigned to it.
func (s *Seeder) Seed(ctx context.Context, adminEmail, adminPassword string) (SeedResult, error) {
	var res SeedResult

	actionIDs := make(map[string]string)
	for _, code := range s.catalog.Actions() {
		act, err := s.store.UpsertAction(ctx, code, displayName(code))
		if err != nil {
			return res, fmt.Errorf("seed action %s: %w", code, err)
		}
		actionIDs[code] = act.ID
		res.Actions++
	}

	resourceIDs := make(map[string]string)
	for _, code := range s.catalog.Resources() {
		r, err := s.store.UpsertResource(ctx, code, displayName(code))
		if err != nil {
			return res, fmt.Errorf("seed resource %s: %w", code, err)
		}
		resourceIDs[code] = r.ID
		res.Resources++
	}

	var permissionIDs []string
	for _, resource := range s.catalog.Resources() {
		allowed, err := s.catalog.AllowedActions(resource)
		if err != nil {
			return res, err
		}
		for _, action := range allowed {
			desc := fmt.Sprintf("%s permission for %s", displayName(action), displayName(resource))
			p, created, err := s.store.UpsertPermission(ctx, resourceIDs[resource], actionIDs[action], desc)
			if err != nil {
				return res, fmt.Errorf("seed permission %s: %w", perm.Encode(resource, action), err)
			}
			if created {
				res.PermissionsCreated++
			}
			permissionIDs = append(permissionIDs, p.ID)
		}
	}

	role, created, err := s.ensureSuperadminRole(ctx)
	if err != nil {
		return res, err
	}
	res.RoleCreated = created
	if err := s.store.SetRolePermissions(ctx, role.ID, permissionIDs); err != nil {
		return res, fmt.Errorf("grant superadmin permissions: %w", err)
	}

	if adminEmail != "" {
		userCreated, err := s.ensureSuperadminUser(ctx, role.ID, adminEmail, adminPassword)
		if err != nil {
			return res, err
		}
		res.UserCreated = userCreated
	}
	return res, nil
}

func (s *Seeder) ensureSuperadminRole(ctx context.Context) (Role, bool, error) {
	role, err := s.store.CreateRole(ctx, Role{
		Code:        SuperadminRoleCode,
		Name:        "Superadmin",
		Description: "Holds every permission in the catalog",
	})
	if err == nil {
		return role, true, nil
	}
	if !errors.Is(err, ErrConflict) {
		return Role{}, false, fmt.Errorf("create superadmin role: %w", err)
	}
	roles, _, err := s.store.ListRoles(ctx, nil, Page{Page: 1, Limit: maxPageLimit})
	if err != nil {
		return Role{}, false, fmt.Errorf("find superadmin role: %w", err)
	}
	for _, r := range roles {
		if r.OrganizationID == nil && r.Code == SuperadminRoleCode {
			return r, false, nil
		}
	}
	return Role{}, false, fmt.Errorf("superadmin role exists but was not found")
}

func (s *Seeder) ensureSuperadminUser(ctx context.Context, roleID, email, password string) (bool, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, err := s.store.FindUserByEmail(ctx, email)
	created := false
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		if strings.TrimSpace(password) == "" {
			return false, fmt.Errorf("%w: superadmin password is required to create the account", ErrInvalidInput)
		}
		hash, err := HashPassword(password)
		if err != nil {
			return false, err
		}
		user, err = s.store.CreateUser(ctx, User{
			Email:    email,
			FullName: "Superadmin",
			Status:   UserStatusActive,
		}, hash)
		if err != nil {
			return false, fmt.Errorf("create superadmin user: %w", err)
		}
		created = true
	default:
		return false, fmt.Errorf("find superadmin user: %w", err)
	}
	if _, err := s.store.AssignRole(ctx, UserRole{UserID: user.ID, RoleID: roleID}); err != nil && !errors.Is(err, ErrConflict) {
		return created, fmt.Errorf("assign superadmin role: %w", err)
	}
	return created, nil
}

// displayName turns a code like "jwt_key" into "Jwt key".
func displayName(code string) string {
	name := strings.ReplaceAll(code, "_", " ")
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
