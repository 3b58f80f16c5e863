package httpapi

import (
	"net/http"
	"strings"
	"time"

	"gatekey.org/internal/audit"
	"gatekey.org/internal/iam"
	"gatekey.org/internal/perm"
)

// --- organizations ---

type organizationRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

func (a *API) handleCreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req organizationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	org, err := a.directory.CreateOrganization(r.Context(), req.Code, req.Name)
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "organization.created", map[string]any{
		"organization_id": org.ID,
		"code":            org.Code,
	})
	w.Header().Set("Location", "/v1/organizations/"+org.ID)
	writeJSON(w, http.StatusCreated, org)
}

func (a *API) handleGetOrganization(w http.ResponseWriter, r *http.Request) {
	org, err := a.directory.GetOrganization(r.Context(), r.PathValue("id"))
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (a *API) handleListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, meta, err := a.directory.ListOrganizations(r.Context(), pageFromRequest(r))
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: orgs, Meta: meta})
}

type organizationUpdateRequest struct {
	Code   *string `json:"code"`
	Name   *string `json:"name"`
	Status *string `json:"status"`
}

func (a *API) handleUpdateOrganization(w http.ResponseWriter, r *http.Request) {
	var req organizationUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	org, err := a.directory.UpdateOrganization(r.Context(), r.PathValue("id"), iam.OrganizationUpdate{
		Code:   req.Code,
		Name:   req.Name,
		Status: req.Status,
	})
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (a *API) handleDeleteOrganization(w http.ResponseWriter, r *http.Request) {
	if err := a.directory.DeleteOrganization(r.Context(), r.PathValue("id")); err != nil {
		handleIAMError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- users ---

type createUserRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Type     string `json:"type"`
	Password string `json:"password"`
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.directory.CreateUser(r.Context(), req.Email, req.FullName, req.Type, req.Password)
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.created", map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
	})
	w.Header().Set("Location", "/v1/users/"+user.ID)
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := a.directory.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, meta, err := a.directory.ListUsers(r.Context(), pageFromRequest(r))
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: users, Meta: meta})
}

type userUpdateRequest struct {
	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
	Type     *string `json:"type"`
	Status   *string `json:"status"`
}

func (a *API) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req userUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.directory.UpdateUser(r.Context(), r.PathValue("id"), iam.UserUpdate{
		Email:    req.Email,
		FullName: req.FullName,
		Type:     req.Type,
		Status:   req.Status,
	})
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := a.directory.DeleteUser(r.Context(), r.PathValue("id")); err != nil {
		handleIAMError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.deleted", map[string]any{
		"user_id": r.PathValue("id"),
	})
	w.WriteHeader(http.StatusNoContent)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// handleChangePassword lets a user rotate their own password; changing
// someone else's requires the user update permission.
func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	principal, ok := iam.PrincipalFromContext(r.Context())
	if !ok {
		writeErrorCode(w, r, http.StatusUnauthorized, "missing bearer token", "missing_token")
		return
	}
	target := r.PathValue("id")
	if target != principal.User.ID && !principal.HasPermission(perm.Encode(perm.ResourceUser, perm.ActionUpdate)) {
		writeErrorCode(w, r, http.StatusForbidden, "insufficient permissions", "insufficient_permissions")
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.directory.ChangePassword(r.Context(), target, req.CurrentPassword, req.NewPassword); err != nil {
		handleIAMError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.password_changed", map[string]any{
		"user_id": target,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "password_changed",
	})
}

func (a *API) handleListUserRoles(w http.ResponseWriter, r *http.Request) {
	assignments, err := a.directory.ListUserRoles(r.Context(), r.PathValue("id"))
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": assignments,
	})
}

type assignRoleRequest struct {
	RoleID         string  `json:"role_id"`
	OrganizationID *string `json:"organization_id"`
}

func (a *API) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	var req assignRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	assignment, err := a.directory.AssignRole(r.Context(), r.PathValue("id"), req.RoleID, req.OrganizationID)
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.role_assigned", map[string]any{
		"user_id": assignment.UserID,
		"role_id": assignment.RoleID,
	})
	writeJSON(w, http.StatusCreated, assignment)
}

func (a *API) handleRemoveUserRole(w http.ResponseWriter, r *http.Request) {
	userID, roleID := r.PathValue("id"), r.PathValue("roleID")
	if err := a.directory.RemoveUserRole(r.Context(), userID, roleID); err != nil {
		handleIAMError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.role_removed", map[string]any{
		"user_id": userID,
		"role_id": roleID,
	})
	w.WriteHeader(http.StatusNoContent)
}

// --- roles ---

type roleRequest struct {
	OrganizationID *string `json:"organization_id"`
	Code           string  `json:"code"`
	Name           string  `json:"name"`
	Description    string  `json:"description"`
}

func (a *API) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := a.directory.CreateRole(r.Context(), req.OrganizationID, req.Code, req.Name, req.Description)
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "role.created", map[string]any{
		"role_id": role.ID,
		"code":    role.Code,
	})
	w.Header().Set("Location", "/v1/roles/"+role.ID)
	writeJSON(w, http.StatusCreated, role)
}

func (a *API) handleGetRole(w http.ResponseWriter, r *http.Request) {
	role, err := a.directory.GetRole(r.Context(), r.PathValue("id"))
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (a *API) handleListRoles(w http.ResponseWriter, r *http.Request) {
	var orgFilter *string
	if v := strings.TrimSpace(r.URL.Query().Get("organization_id")); v != "" {
		orgFilter = &v
	}
	roles, meta, err := a.directory.ListRoles(r.Context(), orgFilter, pageFromRequest(r))
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: roles, Meta: meta})
}

type roleUpdateRequest struct {
	Code        *string `json:"code"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (a *API) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	var req roleUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := a.directory.UpdateRole(r.Context(), r.PathValue("id"), iam.RoleUpdate{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (a *API) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	if err := a.directory.DeleteRole(r.Context(), r.PathValue("id")); err != nil {
		handleIAMError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "role.deleted", map[string]any{
		"role_id": r.PathValue("id"),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleRolePermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := a.directory.RolePermissions(r.Context(), r.PathValue("id"))
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	codes := make([]string, 0, len(perms))
	for _, p := range perms {
		codes = append(codes, p.Code())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": perms,
		"codes": codes,
	})
}

type setRolePermissionsRequest struct {
	PermissionIDs []string `json:"permission_ids"`
}

func (a *API) handleSetRolePermissions(w http.ResponseWriter, r *http.Request) {
	var req setRolePermissionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	roleID := r.PathValue("id")
	if err := a.directory.SetRolePermissions(r.Context(), roleID, req.PermissionIDs); err != nil {
		handleIAMError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "role.permissions_replaced", map[string]any{
		"role_id": roleID,
		"count":   len(req.PermissionIDs),
	})
	w.WriteHeader(http.StatusNoContent)
}

// --- permissions ---

type permissionRequest struct {
	ResourceID  string `json:"resource_id"`
	ActionID    string `json:"action_id"`
	Description string `json:"description"`
}

func (a *API) handleCreatePermission(w http.ResponseWriter, r *http.Request) {
	var req permissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, err := a.directory.CreatePermission(r.Context(), req.ResourceID, req.ActionID, req.Description)
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/permissions/"+p.ID)
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) handleGetPermission(w http.ResponseWriter, r *http.Request) {
	p, err := a.directory.GetPermission(r.Context(), r.PathValue("id"))
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) handleListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, meta, err := a.directory.ListPermissions(r.Context(), pageFromRequest(r))
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: perms, Meta: meta})
}

type permissionUpdateRequest struct {
	Description *string `json:"description"`
}

func (a *API) handleUpdatePermission(w http.ResponseWriter, r *http.Request) {
	var req permissionUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, err := a.directory.UpdatePermission(r.Context(), r.PathValue("id"), iam.PermissionUpdate{
		Description: req.Description,
	})
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) handleDeletePermission(w http.ResponseWriter, r *http.Request) {
	if err := a.directory.DeletePermission(r.Context(), r.PathValue("id")); err != nil {
		handleIAMError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- resources ---

type catalogEntryRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type catalogEntryUpdateRequest struct {
	Code   *string `json:"code"`
	Name   *string `json:"name"`
	Active *bool   `json:"active"`
}

func (a *API) handleCreateResource(w http.ResponseWriter, r *http.Request) {
	var req catalogEntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	res, err := a.directory.CreateResource(r.Context(), req.Code, req.Name)
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/resources/"+res.ID)
	writeJSON(w, http.StatusCreated, res)
}

func (a *API) handleGetResource(w http.ResponseWriter, r *http.Request) {
	res, err := a.directory.GetResource(r.Context(), r.PathValue("id"))
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleListResources(w http.ResponseWriter, r *http.Request) {
	items, meta, err := a.directory.ListResources(r.Context(), pageFromRequest(r))
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: items, Meta: meta})
}

func (a *API) handleUpdateResource(w http.ResponseWriter, r *http.Request) {
	var req catalogEntryUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	res, err := a.directory.UpdateResource(r.Context(), r.PathValue("id"), iam.ResourceUpdate{
		Code:   req.Code,
		Name:   req.Name,
		Active: req.Active,
	})
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleDeleteResource(w http.ResponseWriter, r *http.Request) {
	if err := a.directory.DeleteResource(r.Context(), r.PathValue("id")); err != nil {
		handleIAMError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- actions ---

func (a *API) handleCreateAction(w http.ResponseWriter, r *http.Request) {
	var req catalogEntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	act, err := a.directory.CreateAction(r.Context(), req.Code, req.Name)
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/actions/"+act.ID)
	writeJSON(w, http.StatusCreated, act)
}

func (a *API) handleGetAction(w http.ResponseWriter, r *http.Request) {
	act, err := a.directory.GetAction(r.Context(), r.PathValue("id"))
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, act)
}

func (a *API) handleListActions(w http.ResponseWriter, r *http.Request) {
	items, meta, err := a.directory.ListActions(r.Context(), pageFromRequest(r))
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: items, Meta: meta})
}

func (a *API) handleUpdateAction(w http.ResponseWriter, r *http.Request) {
	var req catalogEntryUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	act, err := a.directory.UpdateAction(r.Context(), r.PathValue("id"), iam.ActionUpdate{
		Code:   req.Code,
		Name:   req.Name,
		Active: req.Active,
	})
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, act)
}

func (a *API) handleDeleteAction(w http.ResponseWriter, r *http.Request) {
	if err := a.directory.DeleteAction(r.Context(), r.PathValue("id")); err != nil {
		handleIAMError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- groups ---

type groupRequest struct {
	OrganizationID string `json:"organization_id"`
	Code           string `json:"code"`
	Name           string `json:"name"`
	Description    string `json:"description"`
}

func (a *API) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	group, err := a.directory.CreateGroup(r.Context(), req.OrganizationID, req.Code, req.Name, req.Description)
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/groups/"+group.ID)
	writeJSON(w, http.StatusCreated, group)
}

func (a *API) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	group, err := a.directory.GetGroup(r.Context(), r.PathValue("id"))
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (a *API) handleListGroups(w http.ResponseWriter, r *http.Request) {
	var orgFilter *string
	if v := strings.TrimSpace(r.URL.Query().Get("organization_id")); v != "" {
		orgFilter = &v
	}
	groups, meta, err := a.directory.ListGroups(r.Context(), orgFilter, pageFromRequest(r))
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: groups, Meta: meta})
}

type groupUpdateRequest struct {
	Code        *string `json:"code"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (a *API) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	var req groupUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	group, err := a.directory.UpdateGroup(r.Context(), r.PathValue("id"), iam.GroupUpdate{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (a *API) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := a.directory.DeleteGroup(r.Context(), r.PathValue("id")); err != nil {
		handleIAMError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListGroupMembers(w http.ResponseWriter, r *http.Request) {
	members, meta, err := a.directory.ListGroupMembers(r.Context(), r.PathValue("id"), pageFromRequest(r))
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: members, Meta: meta})
}

type addGroupMemberRequest struct {
	UserID string `json:"user_id"`
}

func (a *API) handleAddGroupMember(w http.ResponseWriter, r *http.Request) {
	var req addGroupMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	member, err := a.directory.AddGroupMember(r.Context(), r.PathValue("id"), req.UserID)
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

func (a *API) handleRemoveGroupMember(w http.ResponseWriter, r *http.Request) {
	if err := a.directory.RemoveGroupMember(r.Context(), r.PathValue("id"), r.PathValue("userID")); err != nil {
		handleIAMError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- sessions ---

func (a *API) handleListSessions(w http.ResponseWriter, r *http.Request) {
	var userFilter *string
	if v := strings.TrimSpace(r.URL.Query().Get("user_id")); v != "" {
		userFilter = &v
	}
	sessions, meta, err := a.directory.ListSessions(r.Context(), userFilter, pageFromRequest(r))
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: sessions, Meta: meta})
}

func (a *API) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := a.directory.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (a *API) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	if err := a.directory.RevokeSession(r.Context(), r.PathValue("id")); err != nil {
		handleIAMError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "session.revoked", map[string]any{
		"session_id": r.PathValue("id"),
	})
	w.WriteHeader(http.StatusNoContent)
}

// --- signing keys ---

func (a *API) handleListSigningKeys(w http.ResponseWriter, r *http.Request) {
	keys, meta, err := a.directory.ListSigningKeys(r.Context(), pageFromRequest(r))
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: keys, Meta: meta})
}

func (a *API) handleGetSigningKey(w http.ResponseWriter, r *http.Request) {
	key, err := a.directory.GetSigningKey(r.Context(), r.PathValue("kid"))
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, key)
}

func (a *API) handleRotateSigningKey(w http.ResponseWriter, r *http.Request) {
	key, err := a.tokens.GenerateSigningKey(r.Context())
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "jwt_key.rotated", map[string]any{
		"kid": key.Kid,
	})
	writeJSON(w, http.StatusCreated, key)
}

func (a *API) handleDeleteSigningKey(w http.ResponseWriter, r *http.Request) {
	if err := a.directory.DeleteSigningKey(r.Context(), r.PathValue("kid")); err != nil {
		handleIAMError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- token denylist ---

func (a *API) handleListDenylist(w http.ResponseWriter, r *http.Request) {
	entries, meta, err := a.directory.ListDenylist(r.Context(), pageFromRequest(r))
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: entries, Meta: meta})
}

type denylistRequest struct {
	JTI       string    `json:"jti"`
	Reason    string    `json:"reason"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (a *API) handleAddDenylistEntry(w http.ResponseWriter, r *http.Request) {
	var req denylistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	entry, err := a.directory.AddDenylistEntry(r.Context(), req.JTI, req.Reason, req.ExpiresAt)
	if err != nil {
		handleIAMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (a *API) handleDeleteDenylistEntry(w http.ResponseWriter, r *http.Request) {
	if err := a.directory.DeleteDenylistEntry(r.Context(), r.PathValue("id")); err != nil {
		handleIAMError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
