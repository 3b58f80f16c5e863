package iam

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gatekey.org/internal/ids"
	"gatekey.org/internal/perm"
)

// InMemory is a complete Store kept in process memory. It enforces the
// same uniqueness rules as the SQL schema, which makes it usable both as
// a development backend and as the fixture for package tests.
type InMemory struct {
	mu sync.Mutex

	orgs        map[string]Organization
	users       map[string]User
	passwords   map[string]string
	history     map[string][]string
	resets      map[string]PasswordReset
	roles       map[string]Role
	rolePerms   map[string][]string
	userRoles   map[string]UserRole
	perms       map[string]Permission
	resources   map[string]Resource
	actions     map[string]Action
	groups      map[string]Group
	members     map[string]GroupMember
	sessions    map[string]Session
	refresh     map[string]RefreshToken
	denylist    map[string]DenylistEntry
	signingKeys map[string]SigningKey
}

var _ Store = (*InMemory)(nil)

// NewInMemory creates an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{
		orgs:        map[string]Organization{},
		users:       map[string]User{},
		passwords:   map[string]string{},
		history:     map[string][]string{},
		resets:      map[string]PasswordReset{},
		roles:       map[string]Role{},
		rolePerms:   map[string][]string{},
		userRoles:   map[string]UserRole{},
		perms:       map[string]Permission{},
		resources:   map[string]Resource{},
		actions:     map[string]Action{},
		groups:      map[string]Group{},
		members:     map[string]GroupMember{},
		sessions:    map[string]Session{},
		refresh:     map[string]RefreshToken{},
		denylist:    map[string]DenylistEntry{},
		signingKeys: map[string]SigningKey{},
	}
}

func pagef[T any](items []T, page Page) ([]T, int) {
	total := len(items)
	start := page.Offset()
	if start >= total {
		return nil, total
	}
	end := start + page.Limit
	if end > total {
		end = total
	}
	return items[start:end], total
}

func (m *InMemory) CreateOrganization(_ context.Context, org Organization) (Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orgs {
		if o.Code == org.Code {
			return Organization{}, fmt.Errorf("%w: organization code", ErrConflict)
		}
	}
	org.ID = ids.New()
	org.CreatedAt = time.Now().UTC()
	org.UpdatedAt = org.CreatedAt
	m.orgs[org.ID] = org
	return org, nil
}

func (m *InMemory) GetOrganization(_ context.Context, id string) (Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orgs[id]
	if !ok {
		return Organization{}, ErrNotFound
	}
	return o, nil
}

func (m *InMemory) ListOrganizations(_ context.Context, page Page) ([]Organization, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]Organization, 0, len(m.orgs))
	for _, o := range m.orgs {
		all = append(all, o)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	out, total := pagef(all, page)
	return out, total, nil
}

func (m *InMemory) UpdateOrganization(_ context.Context, id string, upd OrganizationUpdate) (Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orgs[id]
	if !ok {
		return Organization{}, ErrNotFound
	}
	if upd.Code != nil {
		o.Code = *upd.Code
	}
	if upd.Name != nil {
		o.Name = *upd.Name
	}
	if upd.Status != nil {
		o.Status = *upd.Status
	}
	o.UpdatedAt = time.Now().UTC()
	m.orgs[id] = o
	return o, nil
}

func (m *InMemory) DeleteOrganization(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orgs[id]; !ok {
		return ErrNotFound
	}
	delete(m.orgs, id)
	return nil
}

func (m *InMemory) CreateUser(_ context.Context, user User, passwordHash string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return User{}, fmt.Errorf("%w: email", ErrConflict)
		}
	}
	user.ID = ids.New()
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = user
	m.passwords[user.ID] = passwordHash
	return user, nil
}

func (m *InMemory) GetUser(_ context.Context, id string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *InMemory) FindUserByEmail(_ context.Context, email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *InMemory) ListUsers(_ context.Context, page Page) ([]User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]User, 0, len(m.users))
	for _, u := range m.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	out, total := pagef(all, page)
	return out, total, nil
}

func (m *InMemory) UpdateUser(_ context.Context, id string, upd UserUpdate) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.FullName != nil {
		u.FullName = *upd.FullName
	}
	if upd.Type != nil {
		u.Type = *upd.Type
	}
	if upd.Status != nil {
		u.Status = *upd.Status
	}
	u.UpdatedAt = time.Now().UTC()
	m.users[id] = u
	return u, nil
}

func (m *InMemory) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *InMemory) PasswordHash(_ context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.passwords[userID]
	if !ok {
		return "", ErrNotFound
	}
	return h, nil
}

func (m *InMemory) SetPassword(_ context.Context, userID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.passwords[userID]; ok {
		m.history[userID] = append(m.history[userID], prev)
	}
	m.passwords[userID] = hash
	return nil
}

func (m *InMemory) CreatePasswordReset(_ context.Context, reset PasswordReset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets[reset.ID] = reset
	return nil
}

func (m *InMemory) FindPasswordReset(_ context.Context, id string) (PasswordReset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resets[id]
	if !ok {
		return PasswordReset{}, ErrNotFound
	}
	return r, nil
}

func (m *InMemory) ConsumePasswordReset(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resets[id]
	if !ok {
		return ErrNotFound
	}
	r.ConsumedAt = &at
	m.resets[id] = r
	return nil
}

func (m *InMemory) CreateRole(_ context.Context, role Role) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.roles {
		sameScope := (r.OrganizationID == nil) == (role.OrganizationID == nil)
		if sameScope && r.OrganizationID != nil {
			sameScope = *r.OrganizationID == *role.OrganizationID
		}
		if sameScope && r.Code == role.Code {
			return Role{}, fmt.Errorf("%w: role code", ErrConflict)
		}
	}
	role.ID = ids.New()
	role.CreatedAt = time.Now().UTC()
	role.UpdatedAt = role.CreatedAt
	m.roles[role.ID] = role
	return role, nil
}

func (m *InMemory) GetRole(_ context.Context, id string) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	return r, nil
}

func (m *InMemory) ListRoles(_ context.Context, organizationID *string, page Page) ([]Role, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []Role
	for _, r := range m.roles {
		if organizationID != nil {
			if r.OrganizationID == nil || *r.OrganizationID != *organizationID {
				continue
			}
		}
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	out, total := pagef(all, page)
	return out, total, nil
}

func (m *InMemory) UpdateRole(_ context.Context, id string, upd RoleUpdate) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	if upd.Code != nil {
		r.Code = *upd.Code
	}
	if upd.Name != nil {
		r.Name = *upd.Name
	}
	if upd.Description != nil {
		r.Description = *upd.Description
	}
	r.UpdatedAt = time.Now().UTC()
	m.roles[id] = r
	return r, nil
}

func (m *InMemory) DeleteRole(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[id]; !ok {
		return ErrNotFound
	}
	delete(m.roles, id)
	delete(m.rolePerms, id)
	for key, ur := range m.userRoles {
		if ur.RoleID == id {
			delete(m.userRoles, key)
		}
	}
	return nil
}

func (m *InMemory) SetRolePermissions(_ context.Context, roleID string, permissionIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[roleID]; !ok {
		return ErrNotFound
	}
	m.rolePerms[roleID] = append([]string(nil), permissionIDs...)
	return nil
}

func (m *InMemory) RolePermissions(_ context.Context, roleID string) ([]Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[roleID]; !ok {
		return nil, ErrNotFound
	}
	var out []Permission
	for _, id := range m.rolePerms[roleID] {
		if p, ok := m.perms[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *InMemory) AssignRole(_ context.Context, a UserRole) (UserRole, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := a.UserID + "|" + a.RoleID
	if _, ok := m.userRoles[key]; ok {
		return UserRole{}, fmt.Errorf("%w: assignment", ErrConflict)
	}
	if _, ok := m.users[a.UserID]; !ok {
		return UserRole{}, ErrNotFound
	}
	if _, ok := m.roles[a.RoleID]; !ok {
		return UserRole{}, ErrNotFound
	}
	a.CreatedAt = time.Now().UTC()
	m.userRoles[key] = a
	return a, nil
}

func (m *InMemory) RemoveUserRole(_ context.Context, userID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := userID + "|" + roleID
	if _, ok := m.userRoles[key]; !ok {
		return ErrNotFound
	}
	delete(m.userRoles, key)
	return nil
}

func (m *InMemory) ListUserRoles(_ context.Context, userID string) ([]UserRole, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []UserRole
	for _, a := range m.userRoles {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoleID < out[j].RoleID })
	return out, nil
}

func (m *InMemory) CreatePermission(_ context.Context, p Permission) (Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.perms {
		if existing.ResourceID == p.ResourceID && existing.ActionID == p.ActionID {
			return Permission{}, fmt.Errorf("%w: permission pair", ErrConflict)
		}
	}
	p.ID = ids.New()
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	if r, ok := m.resources[p.ResourceID]; ok {
		p.ResourceCode = r.Code
	}
	if a, ok := m.actions[p.ActionID]; ok {
		p.ActionCode = a.Code
	}
	m.perms[p.ID] = p
	return p, nil
}

func (m *InMemory) GetPermission(_ context.Context, id string) (Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.perms[id]
	if !ok {
		return Permission{}, ErrNotFound
	}
	return p, nil
}

func (m *InMemory) ListPermissions(_ context.Context, page Page) ([]Permission, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]Permission, 0, len(m.perms))
	for _, p := range m.perms {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	out, total := pagef(all, page)
	return out, total, nil
}

func (m *InMemory) UpdatePermission(_ context.Context, id string, upd PermissionUpdate) (Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.perms[id]
	if !ok {
		return Permission{}, ErrNotFound
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	p.UpdatedAt = time.Now().UTC()
	m.perms[id] = p
	return p, nil
}

func (m *InMemory) DeletePermission(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.perms[id]; !ok {
		return ErrNotFound
	}
	delete(m.perms, id)
	return nil
}

func (m *InMemory) FindPermissionsByIDs(_ context.Context, idsIn []string) ([]Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Permission
	for _, id := range idsIn {
		if p, ok := m.perms[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *InMemory) UpsertPermission(_ context.Context, resourceID, actionID, description string) (Permission, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.perms {
		if p.ResourceID == resourceID && p.ActionID == actionID {
			p.Description = description
			m.perms[id] = p
			return p, false, nil
		}
	}
	p := Permission{
		ID:          ids.New(),
		ResourceID:  resourceID,
		ActionID:    actionID,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	p.UpdatedAt = p.CreatedAt
	if r, ok := m.resources[resourceID]; ok {
		p.ResourceCode = r.Code
	}
	if a, ok := m.actions[actionID]; ok {
		p.ActionCode = a.Code
	}
	m.perms[p.ID] = p
	return p, true, nil
}

func (m *InMemory) CreateResource(_ context.Context, r Resource) (Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.resources {
		if existing.Code == r.Code {
			return Resource{}, fmt.Errorf("%w: resource code", ErrConflict)
		}
	}
	r.ID = ids.New()
	r.CreatedAt = time.Now().UTC()
	r.UpdatedAt = r.CreatedAt
	m.resources[r.ID] = r
	return r, nil
}

func (m *InMemory) GetResource(_ context.Context, id string) (Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resources[id]
	if !ok {
		return Resource{}, ErrNotFound
	}
	return r, nil
}

func (m *InMemory) FindResourceByCode(_ context.Context, code string) (Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.resources {
		if r.Code == code {
			return r, nil
		}
	}
	return Resource{}, ErrNotFound
}

func (m *InMemory) ListResources(_ context.Context, page Page) ([]Resource, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]Resource, 0, len(m.resources))
	for _, r := range m.resources {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Code < all[j].Code })
	out, total := pagef(all, page)
	return out, total, nil
}

func (m *InMemory) UpdateResource(_ context.Context, id string, upd ResourceUpdate) (Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resources[id]
	if !ok {
		return Resource{}, ErrNotFound
	}
	if upd.Code != nil {
		r.Code = *upd.Code
	}
	if upd.Name != nil {
		r.Name = *upd.Name
	}
	if upd.Active != nil {
		r.Active = *upd.Active
	}
	r.UpdatedAt = time.Now().UTC()
	m.resources[id] = r
	return r, nil
}

func (m *InMemory) DeleteResource(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.resources[id]; !ok {
		return ErrNotFound
	}
	delete(m.resources, id)
	return nil
}

func (m *InMemory) UpsertResource(_ context.Context, code, name string) (Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.resources {
		if r.Code == code {
			r.Name = name
			m.resources[id] = r
			return r, nil
		}
	}
	r := Resource{ID: ids.New(), Code: code, Name: name, Active: true, CreatedAt: time.Now().UTC()}
	r.UpdatedAt = r.CreatedAt
	m.resources[r.ID] = r
	return r, nil
}

func (m *InMemory) CreateAction(_ context.Context, a Action) (Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.actions {
		if existing.Code == a.Code {
			return Action{}, fmt.Errorf("%w: action code", ErrConflict)
		}
	}
	a.ID = ids.New()
	a.CreatedAt = time.Now().UTC()
	a.UpdatedAt = a.CreatedAt
	m.actions[a.ID] = a
	return a, nil
}

func (m *InMemory) GetAction(_ context.Context, id string) (Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actions[id]
	if !ok {
		return Action{}, ErrNotFound
	}
	return a, nil
}

func (m *InMemory) FindActionByCode(_ context.Context, code string) (Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.actions {
		if a.Code == code {
			return a, nil
		}
	}
	return Action{}, ErrNotFound
}

func (m *InMemory) ListActions(_ context.Context, page Page) ([]Action, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]Action, 0, len(m.actions))
	for _, a := range m.actions {
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Code < all[j].Code })
	out, total := pagef(all, page)
	return out, total, nil
}

func (m *InMemory) UpdateAction(_ context.Context, id string, upd ActionUpdate) (Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actions[id]
	if !ok {
		return Action{}, ErrNotFound
	}
	if upd.Code != nil {
		a.Code = *upd.Code
	}
	if upd.Name != nil {
		a.Name = *upd.Name
	}
	if upd.Active != nil {
		a.Active = *upd.Active
	}
	a.UpdatedAt = time.Now().UTC()
	m.actions[id] = a
	return a, nil
}

func (m *InMemory) DeleteAction(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.actions[id]; !ok {
		return ErrNotFound
	}
	delete(m.actions, id)
	return nil
}

func (m *InMemory) UpsertAction(_ context.Context, code, name string) (Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, a := range m.actions {
		if a.Code == code {
			a.Name = name
			m.actions[id] = a
			return a, nil
		}
	}
	a := Action{ID: ids.New(), Code: code, Name: name, Active: true, CreatedAt: time.Now().UTC()}
	a.UpdatedAt = a.CreatedAt
	m.actions[a.ID] = a
	return a, nil
}

func (m *InMemory) CreateGroup(_ context.Context, g Group) (Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.groups {
		if existing.OrganizationID == g.OrganizationID && existing.Code == g.Code {
			return Group{}, fmt.Errorf("%w: group code", ErrConflict)
		}
	}
	g.ID = ids.New()
	g.CreatedAt = time.Now().UTC()
	g.UpdatedAt = g.CreatedAt
	m.groups[g.ID] = g
	return g, nil
}

func (m *InMemory) GetGroup(_ context.Context, id string) (Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return Group{}, ErrNotFound
	}
	return g, nil
}

func (m *InMemory) ListGroups(_ context.Context, organizationID *string, page Page) ([]Group, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []Group
	for _, g := range m.groups {
		if organizationID != nil && g.OrganizationID != *organizationID {
			continue
		}
		all = append(all, g)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	out, total := pagef(all, page)
	return out, total, nil
}

func (m *InMemory) UpdateGroup(_ context.Context, id string, upd GroupUpdate) (Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return Group{}, ErrNotFound
	}
	if upd.Code != nil {
		g.Code = *upd.Code
	}
	if upd.Name != nil {
		g.Name = *upd.Name
	}
	if upd.Description != nil {
		g.Description = *upd.Description
	}
	g.UpdatedAt = time.Now().UTC()
	m.groups[id] = g
	return g, nil
}

func (m *InMemory) DeleteGroup(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[id]; !ok {
		return ErrNotFound
	}
	delete(m.groups, id)
	return nil
}

func (m *InMemory) AddGroupMember(_ context.Context, member GroupMember) (GroupMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := member.GroupID + "|" + member.UserID
	if _, ok := m.members[key]; ok {
		return GroupMember{}, fmt.Errorf("%w: membership", ErrConflict)
	}
	member.CreatedAt = time.Now().UTC()
	m.members[key] = member
	return member, nil
}

func (m *InMemory) RemoveGroupMember(_ context.Context, groupID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := groupID + "|" + userID
	if _, ok := m.members[key]; !ok {
		return ErrNotFound
	}
	delete(m.members, key)
	return nil
}

func (m *InMemory) ListGroupMembers(_ context.Context, groupID string, page Page) ([]GroupMember, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []GroupMember
	for _, member := range m.members {
		if member.GroupID == groupID {
			all = append(all, member)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UserID < all[j].UserID })
	out, total := pagef(all, page)
	return out, total, nil
}

func (m *InMemory) CreateSession(_ context.Context, s Session) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return s, nil
}

func (m *InMemory) GetSession(_ context.Context, id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (m *InMemory) ListSessions(_ context.Context, userID *string, page Page) ([]Session, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []Session
	for _, s := range m.sessions {
		if userID != nil && s.UserID != *userID {
			continue
		}
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	out, total := pagef(all, page)
	return out, total, nil
}

func (m *InMemory) RevokeSession(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.RevokedAt = &at
	m.sessions[id] = s
	return nil
}

func (m *InMemory) TouchSession(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.LastSeenAt = &at
	m.sessions[id] = s
	return nil
}

func (m *InMemory) CreateRefreshToken(_ context.Context, tok RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.refresh {
		if existing.UserID == tok.UserID && existing.SessionID == tok.SessionID && existing.RevokedAt == nil {
			return fmt.Errorf("%w: active refresh token exists for session", ErrConflict)
		}
	}
	m.refresh[tok.ID] = tok
	return nil
}

func (m *InMemory) FindRefreshToken(_ context.Context, id string) (RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.refresh[id]
	if !ok {
		return RefreshToken{}, ErrNotFound
	}
	return tok, nil
}

func (m *InMemory) RevokeRefreshToken(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.refresh[id]
	if !ok {
		return ErrNotFound
	}
	tok.RevokedAt = &at
	m.refresh[id] = tok
	return nil
}

func (m *InMemory) RevokeSessionRefreshTokens(_ context.Context, sessionID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, tok := range m.refresh {
		if tok.SessionID == sessionID && tok.RevokedAt == nil {
			tok.RevokedAt = &at
			m.refresh[id] = tok
		}
	}
	return nil
}

func (m *InMemory) AddDenylistEntry(_ context.Context, entry DenylistEntry) (DenylistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.denylist {
		if e.JTI == entry.JTI {
			return DenylistEntry{}, fmt.Errorf("%w: jti", ErrConflict)
		}
	}
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	m.denylist[entry.ID] = entry
	return entry, nil
}

func (m *InMemory) ListDenylist(_ context.Context, page Page) ([]DenylistEntry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]DenylistEntry, 0, len(m.denylist))
	for _, e := range m.denylist {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	out, total := pagef(all, page)
	return out, total, nil
}

func (m *InMemory) DeleteDenylistEntry(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.denylist[id]; !ok {
		return ErrNotFound
	}
	delete(m.denylist, id)
	return nil
}

func (m *InMemory) InsertSigningKey(_ context.Context, key SigningKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signingKeys[key.Kid] = key
	return nil
}

func (m *InMemory) ActiveSigningKey(_ context.Context) (SigningKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.signingKeys {
		if k.IsActive {
			return k, nil
		}
	}
	return SigningKey{}, ErrNotFound
}

func (m *InMemory) SigningKeyByKid(_ context.Context, kid string) (SigningKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.signingKeys[kid]
	if !ok {
		return SigningKey{}, ErrNotFound
	}
	return k, nil
}

func (m *InMemory) RetireSigningKeys(_ context.Context, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for kid, k := range m.signingKeys {
		if k.IsActive {
			k.IsActive = false
			k.RotatedAt = &at
			m.signingKeys[kid] = k
		}
	}
	return nil
}

func (m *InMemory) ListSigningKeys(_ context.Context, page Page) ([]SigningKey, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]SigningKey, 0, len(m.signingKeys))
	for _, k := range m.signingKeys {
		all = append(all, k)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Kid < all[j].Kid })
	out, total := pagef(all, page)
	return out, total, nil
}

func (m *InMemory) DeleteSigningKey(_ context.Context, kid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.signingKeys[kid]; !ok {
		return ErrNotFound
	}
	delete(m.signingKeys, kid)
	return nil
}

func (m *InMemory) LoadPrincipal(_ context.Context, userID string) (Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return Principal{}, ErrNotFound
	}
	principal := Principal{User: user, Permissions: perm.CodeSet{}}
	for _, a := range m.userRoles {
		if a.UserID != userID {
			continue
		}
		role := m.roles[a.RoleID]
		principal.Roles = append(principal.Roles, PrincipalRole{
			RoleID:         role.ID,
			RoleCode:       role.Code,
			OrganizationID: role.OrganizationID,
		})
		for _, pid := range m.rolePerms[role.ID] {
			if p, ok := m.perms[pid]; ok {
				principal.Permissions[p.Code()] = struct{}{}
			}
		}
	}
	return principal, nil
}
