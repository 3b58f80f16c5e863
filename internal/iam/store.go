package iam

import (
	"context"
	"time"
)

// Store is the full persistence surface consumed by the iam services. The
// services never issue queries themselves; they consume hydrated values.
type Store interface {
	OrganizationStore
	UserStore
	CredentialStore
	RoleStore
	PermissionStore
	ResourceStore
	ActionStore
	GroupStore
	SessionStore
	RefreshTokenStore
	DenylistStore
	KeyStore
	PrincipalStore
}

// OrganizationStore manages tenants.
type OrganizationStore interface {
	CreateOrganization(ctx context.Context, org Organization) (Organization, error)
	GetOrganization(ctx context.Context, id string) (Organization, error)
	ListOrganizations(ctx context.Context, page Page) ([]Organization, int, error)
	UpdateOrganization(ctx context.Context, id string, upd OrganizationUpdate) (Organization, error)
	DeleteOrganization(ctx context.Context, id string) error
}

// UserStore manages accounts. Deletes are soft; deleted users drop out of
// every lookup below.
type UserStore interface {
	CreateUser(ctx context.Context, user User, passwordHash string) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	FindUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context, page Page) ([]User, int, error)
	UpdateUser(ctx context.Context, id string, upd UserUpdate) (User, error)
	DeleteUser(ctx context.Context, id string) error
}

// CredentialStore manages password material and reset credentials.
type CredentialStore interface {
	PasswordHash(ctx context.Context, userID string) (string, error)
	// SetPassword replaces the active credential and archives the previous
	// hash into the password history.
	SetPassword(ctx context.Context, userID, hash string) error
	CreatePasswordReset(ctx context.Context, reset PasswordReset) error
	FindPasswordReset(ctx context.Context, id string) (PasswordReset, error)
	ConsumePasswordReset(ctx context.Context, id string, at time.Time) error
}

// RoleStore manages roles, role-permission grants and user assignments.
type RoleStore interface {
	CreateRole(ctx context.Context, role Role) (Role, error)
	GetRole(ctx context.Context, id string) (Role, error)
	ListRoles(ctx context.Context, organizationID *string, page Page) ([]Role, int, error)
	UpdateRole(ctx context.Context, id string, upd RoleUpdate) (Role, error)
	DeleteRole(ctx context.Context, id string) error
	SetRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error
	RolePermissions(ctx context.Context, roleID string) ([]Permission, error)
	AssignRole(ctx context.Context, assignment UserRole) (UserRole, error)
	RemoveUserRole(ctx context.Context, userID, roleID string) error
	ListUserRoles(ctx context.Context, userID string) ([]UserRole, error)
}

// PermissionStore manages the granted (resource, action) pairs.
type PermissionStore interface {
	CreatePermission(ctx context.Context, p Permission) (Permission, error)
	GetPermission(ctx context.Context, id string) (Permission, error)
	ListPermissions(ctx context.Context, page Page) ([]Permission, int, error)
	UpdatePermission(ctx context.Context, id string, upd PermissionUpdate) (Permission, error)
	DeletePermission(ctx context.Context, id string) error
	FindPermissionsByIDs(ctx context.Context, ids []string) ([]Permission, error)
	// UpsertPermission inserts the pair or refreshes its description;
	// reports whether a row was created. Seeding relies on this being
	// idempotent.
	UpsertPermission(ctx context.Context, resourceID, actionID, description string) (Permission, bool, error)
}

// ResourceStore manages protected nouns.
type ResourceStore interface {
	CreateResource(ctx context.Context, r Resource) (Resource, error)
	GetResource(ctx context.Context, id string) (Resource, error)
	FindResourceByCode(ctx context.Context, code string) (Resource, error)
	ListResources(ctx context.Context, page Page) ([]Resource, int, error)
	UpdateResource(ctx context.Context, id string, upd ResourceUpdate) (Resource, error)
	DeleteResource(ctx context.Context, id string) error
	UpsertResource(ctx context.Context, code, name string) (Resource, error)
}

// ActionStore manages verbs.
type ActionStore interface {
	CreateAction(ctx context.Context, a Action) (Action, error)
	GetAction(ctx context.Context, id string) (Action, error)
	FindActionByCode(ctx context.Context, code string) (Action, error)
	ListActions(ctx context.Context, page Page) ([]Action, int, error)
	UpdateAction(ctx context.Context, id string, upd ActionUpdate) (Action, error)
	DeleteAction(ctx context.Context, id string) error
	UpsertAction(ctx context.Context, code, name string) (Action, error)
}

// GroupStore manages user groupings.
type GroupStore interface {
	CreateGroup(ctx context.Context, g Group) (Group, error)
	GetGroup(ctx context.Context, id string) (Group, error)
	ListGroups(ctx context.Context, organizationID *string, page Page) ([]Group, int, error)
	UpdateGroup(ctx context.Context, id string, upd GroupUpdate) (Group, error)
	DeleteGroup(ctx context.Context, id string) error
	AddGroupMember(ctx context.Context, member GroupMember) (GroupMember, error)
	RemoveGroupMember(ctx context.Context, groupID, userID string) error
	ListGroupMembers(ctx context.Context, groupID string, page Page) ([]GroupMember, int, error)
}

// SessionStore manages login contexts.
type SessionStore interface {
	CreateSession(ctx context.Context, s Session) (Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
	ListSessions(ctx context.Context, userID *string, page Page) ([]Session, int, error)
	RevokeSession(ctx context.Context, id string, at time.Time) error
	TouchSession(ctx context.Context, id string, at time.Time) error
}

// RefreshTokenStore manages refresh-token lifecycle.
type RefreshTokenStore interface {
	CreateRefreshToken(ctx context.Context, tok RefreshToken) error
	FindRefreshToken(ctx context.Context, id string) (RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id string, at time.Time) error
	RevokeSessionRefreshTokens(ctx context.Context, sessionID string, at time.Time) error
}

// DenylistStore records explicitly revoked JWT ids.
type DenylistStore interface {
	AddDenylistEntry(ctx context.Context, entry DenylistEntry) (DenylistEntry, error)
	ListDenylist(ctx context.Context, page Page) ([]DenylistEntry, int, error)
	DeleteDenylistEntry(ctx context.Context, id string) error
}

// KeyStore manages JWT signing keys.
type KeyStore interface {
	InsertSigningKey(ctx context.Context, key SigningKey) error
	ActiveSigningKey(ctx context.Context) (SigningKey, error)
	SigningKeyByKid(ctx context.Context, kid string) (SigningKey, error)
	RetireSigningKeys(ctx context.Context, at time.Time) error
	ListSigningKeys(ctx context.Context, page Page) ([]SigningKey, int, error)
	DeleteSigningKey(ctx context.Context, kid string) error
}

// PrincipalStore loads a user together with every role membership and the
// union of permission codes those roles grant, in one eager fetch. The
// decision engine never triggers further loads.
type PrincipalStore interface {
	LoadPrincipal(ctx context.Context, userID string) (Principal, error)
}
