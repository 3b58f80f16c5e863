package iam

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCreateRefreshTokenOnePerSession(t *testing.T) {
	store := NewInMemory()
	now := time.Now().UTC()
	base := RefreshToken{
		UserID:    "u1",
		SessionID: "s1",
		TokenHash: "h1",
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}

	first := base
	first.ID = "rt1"
	if err := store.CreateRefreshToken(context.Background(), first); err != nil {
		t.Fatalf("first token: %v", err)
	}

	second := base
	second.ID = "rt2"
	if err := store.CreateRefreshToken(context.Background(), second); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate active token: expected ErrConflict, got %v", err)
	}

	// Once the first is revoked a replacement is allowed.
	if err := store.RevokeRefreshToken(context.Background(), "rt1", now); err != nil {
		t.Fatalf("RevokeRefreshToken: %v", err)
	}
	if err := store.CreateRefreshToken(context.Background(), second); err != nil {
		t.Fatalf("token after revocation: %v", err)
	}
}

func TestDeleteRoleClearsAssignments(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()

	user, err := store.CreateUser(ctx, User{Email: "a@example.com", FullName: "A", Status: UserStatusActive}, "hash")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	role, err := store.CreateRole(ctx, Role{Code: "auditor", Name: "Auditor"})
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	if _, err := store.AssignRole(ctx, UserRole{UserID: user.ID, RoleID: role.ID}); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}

	if err := store.DeleteRole(ctx, role.ID); err != nil {
		t.Fatalf("DeleteRole: %v", err)
	}

	roles, err := store.ListUserRoles(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListUserRoles: %v", err)
	}
	if len(roles) != 0 {
		t.Fatalf("expected no assignments after role delete, got %d", len(roles))
	}

	principal, err := store.LoadPrincipal(ctx, user.ID)
	if err != nil {
		t.Fatalf("LoadPrincipal: %v", err)
	}
	if len(principal.Roles) != 0 {
		t.Fatalf("expected no principal roles, got %+v", principal.Roles)
	}
}
