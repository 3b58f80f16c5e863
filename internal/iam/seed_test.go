package iam

import (
	"context"
	"strings"
	"testing"

	"gatekey.org/internal/perm"
)

func TestSeedIsIdempotent(t *testing.T) {
	store := NewInMemory()
	seeder, err := NewSeeder(store, nil)
	if err != nil {
		t.Fatalf("NewSeeder: %v", err)
	}
	ctx := context.Background()

	first, err := seeder.Seed(ctx, "root@example.com", "bootstrap-pw")
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	catalog := perm.Default()
	if first.Resources != len(catalog.Resources()) {
		t.Fatalf("expected %d resources, got %d", len(catalog.Resources()), first.Resources)
	}
	if first.Actions != len(catalog.Actions()) {
		t.Fatalf("expected %d actions, got %d", len(catalog.Actions()), first.Actions)
	}
	if first.PermissionsCreated != len(catalog.AllCodes()) {
		t.Fatalf("expected %d permissions, got %d", len(catalog.AllCodes()), first.PermissionsCreated)
	}
	if !first.RoleCreated || !first.UserCreated {
		t.Fatalf("expected role and user to be created: %+v", first)
	}

	second, err := seeder.Seed(ctx, "root@example.com", "bootstrap-pw")
	if err != nil {
		t.Fatalf("second Seed: %v", err)
	}
	if second.PermissionsCreated != 0 || second.RoleCreated || second.UserCreated {
		t.Fatalf("second pass should change nothing: %+v", second)
	}
}

func TestSeedGrantsSuperadminEverything(t *testing.T) {
	store := NewInMemory()
	seeder, err := NewSeeder(store, nil)
	if err != nil {
		t.Fatalf("NewSeeder: %v", err)
	}
	ctx := context.Background()
	if _, err := seeder.Seed(ctx, "root@example.com", "bootstrap-pw"); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	user, err := store.FindUserByEmail(ctx, "root@example.com")
	if err != nil {
		t.Fatalf("FindUserByEmail: %v", err)
	}
	principal, err := store.LoadPrincipal(ctx, user.ID)
	if err != nil {
		t.Fatalf("LoadPrincipal: %v", err)
	}
	for _, code := range perm.Default().AllCodes() {
		if !principal.HasPermission(code) {
			t.Fatalf("superadmin is missing %s", code)
		}
	}
	if len(principal.Roles) != 1 || principal.Roles[0].RoleCode != SuperadminRoleCode {
		t.Fatalf("unexpected role set: %+v", principal.Roles)
	}
}

func TestSeedPermissionDescriptions(t *testing.T) {
	store := NewInMemory()
	seeder, err := NewSeeder(store, nil)
	if err != nil {
		t.Fatalf("NewSeeder: %v", err)
	}
	ctx := context.Background()
	if _, err := seeder.Seed(ctx, "", ""); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	perms, _, err := store.ListPermissions(ctx, Page{Page: 1, Limit: 100})
	if err != nil {
		t.Fatalf("ListPermissions: %v", err)
	}
	for _, p := range perms {
		if p.Description == "" {
			t.Fatalf("permission %s has no description", p.Code())
		}
		if !strings.Contains(p.Description, " permission for ") {
			t.Fatalf("unexpected description shape: %q", p.Description)
		}
	}
	// Compound codes render with spaces.
	r, err := store.FindResourceByCode(ctx, "jwt_key")
	if err != nil {
		t.Fatalf("FindResourceByCode: %v", err)
	}
	if r.Name != "Jwt key" {
		t.Fatalf("unexpected display name: %q", r.Name)
	}
}
