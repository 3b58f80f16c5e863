package iam

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gatekey.org/internal/perm"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// NormalizePage clamps pagination input to sane bounds.
func NormalizePage(p Page) Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultPageLimit
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	return p
}

// Directory is the administrative service over the IAM catalog: tenants,
// accounts, roles, permissions, resources, actions, groups and the
// bookkeeping collections. It validates and normalizes input, then delegates
// to the store.
type Directory struct {
	store   Store
	catalog *perm.Catalog
}

func NewDirectory(store Store, catalog *perm.Catalog) (*Directory, error) {
	if store == nil {
		return nil, errors.New("iam store is required")
	}
	if catalog == nil {
		catalog = perm.Default()
	}
	return &Directory{store: store, catalog: catalog}, nil
}

func (d *Directory) Catalog() *perm.Catalog { return d.catalog }

// --- organizations ---

func (d *Directory) CreateOrganization(ctx context.Context, code, name string) (Organization, error) {
	code = normalizeCode(code)
	if code == "" {
		return Organization{}, fmt.Errorf("%w: organization code is required", ErrInvalidInput)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Organization{}, fmt.Errorf("%w: organization name is required", ErrInvalidInput)
	}
	return d.store.CreateOrganization(ctx, Organization{Code: code, Name: name, Status: OrganizationStatusActive})
}

func (d *Directory) GetOrganization(ctx context.Context, id string) (Organization, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Organization{}, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	return d.store.GetOrganization(ctx, id)
}

func (d *Directory) ListOrganizations(ctx context.Context, page Page) ([]Organization, PageMeta, error) {
	page = NormalizePage(page)
	orgs, total, err := d.store.ListOrganizations(ctx, page)
	if err != nil {
		return nil, PageMeta{}, err
	}
	return orgs, page.MetaFor(total), nil
}

func (d *Directory) UpdateOrganization(ctx context.Context, id string, upd OrganizationUpdate) (Organization, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Organization{}, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	if upd.Code != nil {
		code := normalizeCode(*upd.Code)
		if code == "" {
			return Organization{}, fmt.Errorf("%w: organization code is required", ErrInvalidInput)
		}
		upd.Code = &code
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return Organization{}, fmt.Errorf("%w: organization name is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	if upd.Status != nil {
		status := strings.TrimSpace(strings.ToLower(*upd.Status))
		if status != OrganizationStatusActive && status != OrganizationStatusInactive {
			return Organization{}, fmt.Errorf("%w: unsupported status %s", ErrInvalidInput, status)
		}
		upd.Status = &status
	}
	return d.store.UpdateOrganization(ctx, id, upd)
}

func (d *Directory) DeleteOrganization(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	return d.store.DeleteOrganization(ctx, id)
}

// --- users ---

func (d *Directory) CreateUser(ctx context.Context, email, fullName, userType, password string) (User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return User{}, fmt.Errorf("%w: full_name is required", ErrInvalidInput)
	}
	password = strings.TrimSpace(password)
	if password == "" {
		return User{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return User{}, err
	}
	user := User{
		Email:    email,
		FullName: fullName,
		Type:     strings.TrimSpace(strings.ToLower(userType)),
		Status:   UserStatusActive,
	}
	return d.store.CreateUser(ctx, user, hash)
}

func (d *Directory) GetUser(ctx context.Context, id string) (User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	return d.store.GetUser(ctx, id)
}

func (d *Directory) ListUsers(ctx context.Context, page Page) ([]User, PageMeta, error) {
	page = NormalizePage(page)
	users, total, err := d.store.ListUsers(ctx, page)
	if err != nil {
		return nil, PageMeta{}, err
	}
	return users, page.MetaFor(total), nil
}

func (d *Directory) UpdateUser(ctx context.Context, id string, upd UserUpdate) (User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if upd.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*upd.Email))
		if email == "" || !strings.Contains(email, "@") {
			return User{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
		}
		upd.Email = &email
	}
	if upd.FullName != nil {
		name := strings.TrimSpace(*upd.FullName)
		if name == "" {
			return User{}, fmt.Errorf("%w: full_name is required", ErrInvalidInput)
		}
		upd.FullName = &name
	}
	if upd.Status != nil {
		status := strings.TrimSpace(strings.ToLower(*upd.Status))
		if status != UserStatusActive && status != UserStatusDisabled {
			return User{}, fmt.Errorf("%w: unsupported status %s", ErrInvalidInput, status)
		}
		upd.Status = &status
	}
	return d.store.UpdateUser(ctx, id, upd)
}

func (d *Directory) DeleteUser(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	return d.store.DeleteUser(ctx, id)
}

// ChangePassword verifies the current credential before installing the new
// one. The previous hash goes to the password history.
func (d *Directory) ChangePassword(ctx context.Context, userID, current, next string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	next = strings.TrimSpace(next)
	if next == "" {
		return fmt.Errorf("%w: new password is required", ErrInvalidInput)
	}
	hash, err := d.store.PasswordHash(ctx, userID)
	if err != nil {
		return err
	}
	if !VerifyPassword(hash, current) {
		return ErrInvalidCredentials
	}
	newHash, err := HashPassword(next)
	if err != nil {
		return err
	}
	return d.store.SetPassword(ctx, userID, newHash)
}

// --- roles ---

func (d *Directory) CreateRole(ctx context.Context, organizationID *string, code, name, description string) (Role, error) {
	code = normalizeCode(code)
	if code == "" {
		return Role{}, fmt.Errorf("%w: role code is required", ErrInvalidInput)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	if organizationID != nil {
		id := strings.TrimSpace(*organizationID)
		if id == "" {
			organizationID = nil
		} else {
			organizationID = &id
		}
	}
	role := Role{
		OrganizationID: organizationID,
		Code:           code,
		Name:           name,
		Description:    strings.TrimSpace(description),
	}
	return d.store.CreateRole(ctx, role)
}

func (d *Directory) GetRole(ctx context.Context, id string) (Role, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Role{}, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	return d.store.GetRole(ctx, id)
}

func (d *Directory) ListRoles(ctx context.Context, organizationID *string, page Page) ([]Role, PageMeta, error) {
	page = NormalizePage(page)
	roles, total, err := d.store.ListRoles(ctx, organizationID, page)
	if err != nil {
		return nil, PageMeta{}, err
	}
	return roles, page.MetaFor(total), nil
}

func (d *Directory) UpdateRole(ctx context.Context, id string, upd RoleUpdate) (Role, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Role{}, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	if upd.Code != nil {
		code := normalizeCode(*upd.Code)
		if code == "" {
			return Role{}, fmt.Errorf("%w: role code is required", ErrInvalidInput)
		}
		upd.Code = &code
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	if upd.Description != nil {
		desc := strings.TrimSpace(*upd.Description)
		upd.Description = &desc
	}
	return d.store.UpdateRole(ctx, id, upd)
}

func (d *Directory) DeleteRole(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	return d.store.DeleteRole(ctx, id)
}

// SetRolePermissions replaces the role's grant set with the given
// permission ids. Unknown ids are rejected before anything is written.
func (d *Directory) SetRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	ids := dedupeStrings(permissionIDs)
	if len(ids) > 0 {
		found, err := d.store.FindPermissionsByIDs(ctx, ids)
		if err != nil {
			return err
		}
		if len(found) != len(ids) {
			return fmt.Errorf("%w: one or more permission ids are unknown", ErrInvalidInput)
		}
	}
	return d.store.SetRolePermissions(ctx, roleID, ids)
}

func (d *Directory) RolePermissions(ctx context.Context, roleID string) ([]Permission, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return nil, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	return d.store.RolePermissions(ctx, roleID)
}

func (d *Directory) AssignRole(ctx context.Context, userID, roleID string, organizationID *string) (UserRole, error) {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return UserRole{}, fmt.Errorf("%w: user_id and role_id are required", ErrInvalidInput)
	}
	return d.store.AssignRole(ctx, UserRole{UserID: userID, RoleID: roleID, OrganizationID: organizationID})
}

func (d *Directory) RemoveUserRole(ctx context.Context, userID, roleID string) error {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return fmt.Errorf("%w: user_id and role_id are required", ErrInvalidInput)
	}
	return d.store.RemoveUserRole(ctx, userID, roleID)
}

func (d *Directory) ListUserRoles(ctx context.Context, userID string) ([]UserRole, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	return d.store.ListUserRoles(ctx, userID)
}

// --- permissions ---

// CreatePermission admits only pairs the catalog allows for the resource.
func (d *Directory) CreatePermission(ctx context.Context, resourceID, actionID, description string) (Permission, error) {
	resourceID = strings.TrimSpace(resourceID)
	actionID = strings.TrimSpace(actionID)
	if resourceID == "" || actionID == "" {
		return Permission{}, fmt.Errorf("%w: resource_id and action_id are required", ErrInvalidInput)
	}
	res, err := d.store.GetResource(ctx, resourceID)
	if err != nil {
		return Permission{}, err
	}
	act, err := d.store.GetAction(ctx, actionID)
	if err != nil {
		return Permission{}, err
	}
	allowed, err := d.catalog.AllowedActions(res.Code)
	if err == nil && !containsString(allowed, act.Code) {
		return Permission{}, fmt.Errorf("%w: action %s is not applicable to resource %s", ErrInvalidInput, act.Code, res.Code)
	}
	p := Permission{
		ResourceID:  resourceID,
		ActionID:    actionID,
		Description: strings.TrimSpace(description),
	}
	return d.store.CreatePermission(ctx, p)
}

func (d *Directory) GetPermission(ctx context.Context, id string) (Permission, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Permission{}, fmt.Errorf("%w: permission_id is required", ErrInvalidInput)
	}
	return d.store.GetPermission(ctx, id)
}

func (d *Directory) ListPermissions(ctx context.Context, page Page) ([]Permission, PageMeta, error) {
	page = NormalizePage(page)
	perms, total, err := d.store.ListPermissions(ctx, page)
	if err != nil {
		return nil, PageMeta{}, err
	}
	return perms, page.MetaFor(total), nil
}

func (d *Directory) UpdatePermission(ctx context.Context, id string, upd PermissionUpdate) (Permission, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Permission{}, fmt.Errorf("%w: permission_id is required", ErrInvalidInput)
	}
	if upd.Description != nil {
		desc := strings.TrimSpace(*upd.Description)
		upd.Description = &desc
	}
	return d.store.UpdatePermission(ctx, id, upd)
}

func (d *Directory) DeletePermission(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: permission_id is required", ErrInvalidInput)
	}
	return d.store.DeletePermission(ctx, id)
}

// --- resources ---

func (d *Directory) CreateResource(ctx context.Context, code, name string) (Resource, error) {
	code = normalizeCode(code)
	if code == "" || strings.Contains(code, perm.Separator) {
		return Resource{}, fmt.Errorf("%w: resource code must be non-empty and dot-free", ErrInvalidInput)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Resource{}, fmt.Errorf("%w: resource name is required", ErrInvalidInput)
	}
	return d.store.CreateResource(ctx, Resource{Code: code, Name: name, Active: true})
}

func (d *Directory) GetResource(ctx context.Context, id string) (Resource, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Resource{}, fmt.Errorf("%w: resource_id is required", ErrInvalidInput)
	}
	return d.store.GetResource(ctx, id)
}

func (d *Directory) ListResources(ctx context.Context, page Page) ([]Resource, PageMeta, error) {
	page = NormalizePage(page)
	res, total, err := d.store.ListResources(ctx, page)
	if err != nil {
		return nil, PageMeta{}, err
	}
	return res, page.MetaFor(total), nil
}

func (d *Directory) UpdateResource(ctx context.Context, id string, upd ResourceUpdate) (Resource, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Resource{}, fmt.Errorf("%w: resource_id is required", ErrInvalidInput)
	}
	if upd.Code != nil {
		code := normalizeCode(*upd.Code)
		if code == "" || strings.Contains(code, perm.Separator) {
			return Resource{}, fmt.Errorf("%w: resource code must be non-empty and dot-free", ErrInvalidInput)
		}
		upd.Code = &code
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return Resource{}, fmt.Errorf("%w: resource name is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	return d.store.UpdateResource(ctx, id, upd)
}

func (d *Directory) DeleteResource(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: resource_id is required", ErrInvalidInput)
	}
	return d.store.DeleteResource(ctx, id)
}

// --- actions ---

func (d *Directory) CreateAction(ctx context.Context, code, name string) (Action, error) {
	code = normalizeCode(code)
	if code == "" || strings.Contains(code, perm.Separator) {
		return Action{}, fmt.Errorf("%w: action code must be non-empty and dot-free", ErrInvalidInput)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Action{}, fmt.Errorf("%w: action name is required", ErrInvalidInput)
	}
	return d.store.CreateAction(ctx, Action{Code: code, Name: name, Active: true})
}

func (d *Directory) GetAction(ctx context.Context, id string) (Action, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Action{}, fmt.Errorf("%w: action_id is required", ErrInvalidInput)
	}
	return d.store.GetAction(ctx, id)
}

func (d *Directory) ListActions(ctx context.Context, page Page) ([]Action, PageMeta, error) {
	page = NormalizePage(page)
	acts, total, err := d.store.ListActions(ctx, page)
	if err != nil {
		return nil, PageMeta{}, err
	}
	return acts, page.MetaFor(total), nil
}

func (d *Directory) UpdateAction(ctx context.Context, id string, upd ActionUpdate) (Action, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Action{}, fmt.Errorf("%w: action_id is required", ErrInvalidInput)
	}
	if upd.Code != nil {
		code := normalizeCode(*upd.Code)
		if code == "" || strings.Contains(code, perm.Separator) {
			return Action{}, fmt.Errorf("%w: action code must be non-empty and dot-free", ErrInvalidInput)
		}
		upd.Code = &code
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return Action{}, fmt.Errorf("%w: action name is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	return d.store.UpdateAction(ctx, id, upd)
}

func (d *Directory) DeleteAction(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: action_id is required", ErrInvalidInput)
	}
	return d.store.DeleteAction(ctx, id)
}

// --- groups ---

func (d *Directory) CreateGroup(ctx context.Context, organizationID, code, name, description string) (Group, error) {
	organizationID = strings.TrimSpace(organizationID)
	if organizationID == "" {
		return Group{}, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	code = normalizeCode(code)
	if code == "" {
		return Group{}, fmt.Errorf("%w: group code is required", ErrInvalidInput)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Group{}, fmt.Errorf("%w: group name is required", ErrInvalidInput)
	}
	g := Group{
		OrganizationID: organizationID,
		Code:           code,
		Name:           name,
		Description:    strings.TrimSpace(description),
	}
	return d.store.CreateGroup(ctx, g)
}

func (d *Directory) GetGroup(ctx context.Context, id string) (Group, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Group{}, fmt.Errorf("%w: group_id is required", ErrInvalidInput)
	}
	return d.store.GetGroup(ctx, id)
}

func (d *Directory) ListGroups(ctx context.Context, organizationID *string, page Page) ([]Group, PageMeta, error) {
	page = NormalizePage(page)
	groups, total, err := d.store.ListGroups(ctx, organizationID, page)
	if err != nil {
		return nil, PageMeta{}, err
	}
	return groups, page.MetaFor(total), nil
}

func (d *Directory) UpdateGroup(ctx context.Context, id string, upd GroupUpdate) (Group, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Group{}, fmt.Errorf("%w: group_id is required", ErrInvalidInput)
	}
	if upd.Code != nil {
		code := normalizeCode(*upd.Code)
		if code == "" {
			return Group{}, fmt.Errorf("%w: group code is required", ErrInvalidInput)
		}
		upd.Code = &code
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return Group{}, fmt.Errorf("%w: group name is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	if upd.Description != nil {
		desc := strings.TrimSpace(*upd.Description)
		upd.Description = &desc
	}
	return d.store.UpdateGroup(ctx, id, upd)
}

func (d *Directory) DeleteGroup(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: group_id is required", ErrInvalidInput)
	}
	return d.store.DeleteGroup(ctx, id)
}

func (d *Directory) AddGroupMember(ctx context.Context, groupID, userID string) (GroupMember, error) {
	groupID = strings.TrimSpace(groupID)
	userID = strings.TrimSpace(userID)
	if groupID == "" || userID == "" {
		return GroupMember{}, fmt.Errorf("%w: group_id and user_id are required", ErrInvalidInput)
	}
	return d.store.AddGroupMember(ctx, GroupMember{GroupID: groupID, UserID: userID})
}

func (d *Directory) RemoveGroupMember(ctx context.Context, groupID, userID string) error {
	groupID = strings.TrimSpace(groupID)
	userID = strings.TrimSpace(userID)
	if groupID == "" || userID == "" {
		return fmt.Errorf("%w: group_id and user_id are required", ErrInvalidInput)
	}
	return d.store.RemoveGroupMember(ctx, groupID, userID)
}

func (d *Directory) ListGroupMembers(ctx context.Context, groupID string, page Page) ([]GroupMember, PageMeta, error) {
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return nil, PageMeta{}, fmt.Errorf("%w: group_id is required", ErrInvalidInput)
	}
	page = NormalizePage(page)
	members, total, err := d.store.ListGroupMembers(ctx, groupID, page)
	if err != nil {
		return nil, PageMeta{}, err
	}
	return members, page.MetaFor(total), nil
}

// --- sessions ---

func (d *Directory) GetSession(ctx context.Context, id string) (Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Session{}, fmt.Errorf("%w: session_id is required", ErrInvalidInput)
	}
	return d.store.GetSession(ctx, id)
}

func (d *Directory) ListSessions(ctx context.Context, userID *string, page Page) ([]Session, PageMeta, error) {
	page = NormalizePage(page)
	sessions, total, err := d.store.ListSessions(ctx, userID, page)
	if err != nil {
		return nil, PageMeta{}, err
	}
	return sessions, page.MetaFor(total), nil
}

func (d *Directory) RevokeSession(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: session_id is required", ErrInvalidInput)
	}
	now := time.Now().UTC()
	if err := d.store.RevokeSession(ctx, id, now); err != nil {
		return err
	}
	return d.store.RevokeSessionRefreshTokens(ctx, id, now)
}

// --- denylist ---

func (d *Directory) AddDenylistEntry(ctx context.Context, jti, reason string, expiresAt time.Time) (DenylistEntry, error) {
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return DenylistEntry{}, fmt.Errorf("%w: jti is required", ErrInvalidInput)
	}
	if expiresAt.IsZero() {
		return DenylistEntry{}, fmt.Errorf("%w: expires_at is required", ErrInvalidInput)
	}
	entry := DenylistEntry{JTI: jti, Reason: strings.TrimSpace(reason), ExpiresAt: expiresAt.UTC()}
	return d.store.AddDenylistEntry(ctx, entry)
}

func (d *Directory) ListDenylist(ctx context.Context, page Page) ([]DenylistEntry, PageMeta, error) {
	page = NormalizePage(page)
	entries, total, err := d.store.ListDenylist(ctx, page)
	if err != nil {
		return nil, PageMeta{}, err
	}
	return entries, page.MetaFor(total), nil
}

func (d *Directory) DeleteDenylistEntry(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: denylist entry id is required", ErrInvalidInput)
	}
	return d.store.DeleteDenylistEntry(ctx, id)
}

// --- signing keys ---

func (d *Directory) ListSigningKeys(ctx context.Context, page Page) ([]SigningKey, PageMeta, error) {
	page = NormalizePage(page)
	keys, total, err := d.store.ListSigningKeys(ctx, page)
	if err != nil {
		return nil, PageMeta{}, err
	}
	return keys, page.MetaFor(total), nil
}

func (d *Directory) GetSigningKey(ctx context.Context, kid string) (SigningKey, error) {
	kid = strings.TrimSpace(kid)
	if kid == "" {
		return SigningKey{}, fmt.Errorf("%w: kid is required", ErrInvalidInput)
	}
	return d.store.SigningKeyByKid(ctx, kid)
}

func (d *Directory) DeleteSigningKey(ctx context.Context, kid string) error {
	kid = strings.TrimSpace(kid)
	if kid == "" {
		return fmt.Errorf("%w: kid is required", ErrInvalidInput)
	}
	return d.store.DeleteSigningKey(ctx, kid)
}

// --- helpers ---

func normalizeCode(code string) string {
	return strings.TrimSpace(strings.ToLower(code))
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
