// Package iam holds the identity and access domain: entities, directory
// services, token issuance and verification, and principal resolution.
package iam

import (
	"time"

	"gatekey.org/internal/perm"
)

const (
	OrganizationStatusActive   = "active"
	OrganizationStatusInactive = "inactive"

	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// Organization is the tenant boundary.
type Organization struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is a human or service account. Email is globally unique.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Type      string    `json:"type,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Role bundles permissions. OrganizationID is nil for global roles, which
// share one namespace and are assignable system-wide.
type Role struct {
	ID             string    `json:"id"`
	OrganizationID *string   `json:"organization_id,omitempty"`
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Resource is a protected noun.
type Resource struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Action is a verb applicable to resources.
type Action struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Permission is the grantable unit: a (resource, action) pair, unique per
// pair. ResourceCode and ActionCode are hydrated on read so the composed
// code can be serialized without extra lookups.
type Permission struct {
	ID           string    `json:"id"`
	ResourceID   string    `json:"resource_id"`
	ActionID     string    `json:"action_id"`
	ResourceCode string    `json:"resource_code,omitempty"`
	ActionCode   string    `json:"action_code,omitempty"`
	Description  string    `json:"description,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Code composes the canonical permission code through the codec.
func (p Permission) Code() string {
	return perm.Encode(p.ResourceCode, p.ActionCode)
}

// UserRole assigns a role to a user, optionally in an organization scope.
// Unique on (user, role).
type UserRole struct {
	UserID         string    `json:"user_id"`
	RoleID         string    `json:"role_id"`
	OrganizationID *string   `json:"organization_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Group is a plain user grouping inside an organization. Groups carry no
// permissions; no authorization path runs through them.
type Group struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// GroupMember links a user into a group, unique on (group, user).
type GroupMember struct {
	GroupID   string    `json:"group_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is one login context per user.
type Session struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	IP         string     `json:"ip,omitempty"`
	UserAgent  string     `json:"user_agent,omitempty"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// RefreshToken is the persisted half of an opaque refresh credential. Only
// the SHA-256 of the secret is stored. One active token per (user, session).
type RefreshToken struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	SessionID string     `json:"session_id"`
	TokenHash string     `json:"-"`
	IssuedAt  time.Time  `json:"issued_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// DenylistEntry records an explicitly revoked JWT id. The guard does not
// consult the denylist; see DESIGN.md.
type DenylistEntry struct {
	ID        string    `json:"id"`
	JTI       string    `json:"jti"`
	Reason    string    `json:"reason,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// SigningKey is signing-key metadata plus PEM material. PrivatePEM never
// leaves the service.
type SigningKey struct {
	Kid        string     `json:"kid"`
	Alg        string     `json:"alg"`
	PublicPEM  string     `json:"-"`
	PrivatePEM string     `json:"-"`
	IsActive   bool       `json:"is_active"`
	RotatedAt  *time.Time `json:"rotated_at,omitempty"`
	ExpiresAt  time.Time  `json:"expires_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

// PasswordReset is a short-lived, single-use reset credential (hash only).
type PasswordReset struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	CodeHash   string     `json:"-"`
	ExpiresAt  time.Time  `json:"expires_at"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// PrincipalRole is a role membership carried by a resolved principal.
type PrincipalRole struct {
	RoleID         string  `json:"role_id"`
	RoleCode       string  `json:"role_code"`
	OrganizationID *string `json:"organization_id,omitempty"`
}

// Principal is the authenticated user with the full permission set
// aggregated across every role membership, loaded eagerly in one fetch.
// Permissions are a union: a grant via any role counts, regardless of
// which organization the role belongs to.
type Principal struct {
	User        User            `json:"user"`
	Roles       []PrincipalRole `json:"roles"`
	Permissions perm.CodeSet    `json:"-"`
	SessionID   string          `json:"-"`
}

// HasPermission reports whether the principal holds the permission code.
func (p Principal) HasPermission(code string) bool {
	return p.Permissions.Has(code)
}

// PermissionCodes returns the granted codes in sorted order for
// serialization.
func (p Principal) PermissionCodes() []string {
	return sortedCodes(p.Permissions)
}

// TokenPair carries freshly minted credentials.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Page bounds a list query.
type Page struct {
	Page  int
	Limit int
}

// Offset converts the page number into a row offset.
func (p Page) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// PageMeta describes one page of a collection.
type PageMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// MetaFor derives pagination metadata from a total row count.
func (p Page) MetaFor(total int) PageMeta {
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return PageMeta{Page: p.Page, Limit: p.Limit, TotalItems: total, TotalPages: pages}
}

// Partial-update carriers. Nil fields are left untouched.

type OrganizationUpdate struct {
	Code   *string
	Name   *string
	Status *string
}

type UserUpdate struct {
	Email    *string
	FullName *string
	Type     *string
	Status   *string
}

type RoleUpdate struct {
	Code        *string
	Name        *string
	Description *string
}

type ResourceUpdate struct {
	Code   *string
	Name   *string
	Active *bool
}

type ActionUpdate = ResourceUpdate

type PermissionUpdate struct {
	Description *string
}

type GroupUpdate struct {
	Code        *string
	Name        *string
	Description *string
}
