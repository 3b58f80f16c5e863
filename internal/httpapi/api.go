// Package httpapi is the HTTP surface of the service: an explicit route
// table, a guard pipeline in front of every route, and thin handlers that
// delegate to the iam services.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"gatekey.org/internal/iam"
	"gatekey.org/internal/obs"
	"gatekey.org/internal/perm"
)

// ReadyProbe — simple readiness check (ping the database).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// access declares what the guard demands before a handler runs. Public
// routes skip authentication entirely; a route with an empty Resource only
// requires a valid principal.
type access struct {
	Public   bool
	Resource string
	Actions  []string
}

// route is one row of the route table.
type route struct {
	Method  string
	Pattern string
	Access  access
	Handler http.HandlerFunc
}

type Options struct {
	Directory  *iam.Directory
	Auth       *iam.Auth
	Tokens     *iam.TokenService
	Resolver   *iam.Resolver
	ReadyProbe ReadyProbe
	Version    string

	RateBurst     int
	RatePerSecond int
}

// API — HTTP layer.
type API struct {
	mux        *http.ServeMux
	routes     []route
	directory  *iam.Directory
	auth       *iam.Auth
	tokens     *iam.TokenService
	resolver   *iam.Resolver
	readyProbe ReadyProbe
	version    string

	rateBurst     int
	ratePerSecond int
}

func New(opts Options) *API {
	a := &API{
		mux:           http.NewServeMux(),
		directory:     opts.Directory,
		auth:          opts.Auth,
		tokens:        opts.Tokens,
		resolver:      opts.Resolver,
		readyProbe:    opts.ReadyProbe,
		version:       opts.Version,
		rateBurst:     opts.RateBurst,
		ratePerSecond: opts.RatePerSecond,
	}

	public := access{Public: true}
	authed := access{}
	needs := func(resource string, actions ...string) access {
		return access{Resource: resource, Actions: actions}
	}

	a.routes = []route{
		{http.MethodGet, "/healthz", public, a.handleHealthz},
		{http.MethodGet, "/readyz", public, a.handleReady},
		{http.MethodGet, "/v1/info", public, a.handleInfo},

		{http.MethodPost, "/v1/auth/login", public, a.handleLogin},
		{http.MethodPost, "/v1/auth/refresh", public, a.handleRefresh},
		{http.MethodPost, "/v1/auth/logout", authed, a.handleLogout},
		{http.MethodGet, "/v1/auth/me", authed, a.handleMe},
		{http.MethodGet, "/v1/auth/jwks", public, a.handleJWKS},
		{http.MethodPost, "/v1/auth/forgot-password", public, a.handleForgotPassword},
		{http.MethodPost, "/v1/auth/forgot-password/reset", public, a.handleResetPassword},

		{http.MethodGet, "/v1/organizations", needs(perm.ResourceOrganization, perm.ActionView), a.handleListOrganizations},
		{http.MethodPost, "/v1/organizations", needs(perm.ResourceOrganization, perm.ActionCreate), a.handleCreateOrganization},
		{http.MethodGet, "/v1/organizations/{id}", needs(perm.ResourceOrganization, perm.ActionView), a.handleGetOrganization},
		{http.MethodPatch, "/v1/organizations/{id}", needs(perm.ResourceOrganization, perm.ActionUpdate), a.handleUpdateOrganization},
		{http.MethodDelete, "/v1/organizations/{id}", needs(perm.ResourceOrganization, perm.ActionDelete), a.handleDeleteOrganization},

		{http.MethodGet, "/v1/users", needs(perm.ResourceUser, perm.ActionView), a.handleListUsers},
		{http.MethodPost, "/v1/users", needs(perm.ResourceUser, perm.ActionCreate), a.handleCreateUser},
		{http.MethodGet, "/v1/users/{id}", needs(perm.ResourceUser, perm.ActionView), a.handleGetUser},
		{http.MethodPatch, "/v1/users/{id}", needs(perm.ResourceUser, perm.ActionUpdate), a.handleUpdateUser},
		{http.MethodDelete, "/v1/users/{id}", needs(perm.ResourceUser, perm.ActionDelete), a.handleDeleteUser},
		{http.MethodPatch, "/v1/users/{id}/password", authed, a.handleChangePassword},
		{http.MethodGet, "/v1/users/{id}/roles", needs(perm.ResourceUser, perm.ActionView), a.handleListUserRoles},
		{http.MethodPost, "/v1/users/{id}/roles", needs(perm.ResourceUser, perm.ActionUpdate), a.handleAssignRole},
		{http.MethodDelete, "/v1/users/{id}/roles/{roleID}", needs(perm.ResourceUser, perm.ActionUpdate), a.handleRemoveUserRole},

		{http.MethodGet, "/v1/roles", needs(perm.ResourceRole, perm.ActionView), a.handleListRoles},
		{http.MethodPost, "/v1/roles", needs(perm.ResourceRole, perm.ActionCreate), a.handleCreateRole},
		{http.MethodGet, "/v1/roles/{id}", needs(perm.ResourceRole, perm.ActionView), a.handleGetRole},
		{http.MethodPatch, "/v1/roles/{id}", needs(perm.ResourceRole, perm.ActionUpdate), a.handleUpdateRole},
		{http.MethodDelete, "/v1/roles/{id}", needs(perm.ResourceRole, perm.ActionDelete), a.handleDeleteRole},
		{http.MethodGet, "/v1/roles/{id}/permissions", needs(perm.ResourceRole, perm.ActionView), a.handleRolePermissions},
		{http.MethodPut, "/v1/roles/{id}/permissions", needs(perm.ResourceRole, perm.ActionUpdate), a.handleSetRolePermissions},

		{http.MethodGet, "/v1/permissions", needs(perm.ResourcePermission, perm.ActionView), a.handleListPermissions},
		{http.MethodPost, "/v1/permissions", needs(perm.ResourcePermission, perm.ActionCreate), a.handleCreatePermission},
		{http.MethodGet, "/v1/permissions/{id}", needs(perm.ResourcePermission, perm.ActionView), a.handleGetPermission},
		{http.MethodPatch, "/v1/permissions/{id}", needs(perm.ResourcePermission, perm.ActionUpdate), a.handleUpdatePermission},
		{http.MethodDelete, "/v1/permissions/{id}", needs(perm.ResourcePermission, perm.ActionDelete), a.handleDeletePermission},

		{http.MethodGet, "/v1/resources", needs(perm.ResourceResource, perm.ActionView), a.handleListResources},
		{http.MethodPost, "/v1/resources", needs(perm.ResourceResource, perm.ActionCreate), a.handleCreateResource},
		{http.MethodGet, "/v1/resources/{id}", needs(perm.ResourceResource, perm.ActionView), a.handleGetResource},
		{http.MethodPatch, "/v1/resources/{id}", needs(perm.ResourceResource, perm.ActionUpdate), a.handleUpdateResource},
		{http.MethodDelete, "/v1/resources/{id}", needs(perm.ResourceResource, perm.ActionDelete), a.handleDeleteResource},

		{http.MethodGet, "/v1/actions", needs(perm.ResourceResource, perm.ActionView), a.handleListActions},
		{http.MethodPost, "/v1/actions", needs(perm.ResourceResource, perm.ActionCreate), a.handleCreateAction},
		{http.MethodGet, "/v1/actions/{id}", needs(perm.ResourceResource, perm.ActionView), a.handleGetAction},
		{http.MethodPatch, "/v1/actions/{id}", needs(perm.ResourceResource, perm.ActionUpdate), a.handleUpdateAction},
		{http.MethodDelete, "/v1/actions/{id}", needs(perm.ResourceResource, perm.ActionDelete), a.handleDeleteAction},

		{http.MethodGet, "/v1/groups", needs(perm.ResourceGroup, perm.ActionView), a.handleListGroups},
		{http.MethodPost, "/v1/groups", needs(perm.ResourceGroup, perm.ActionCreate), a.handleCreateGroup},
		{http.MethodGet, "/v1/groups/{id}", needs(perm.ResourceGroup, perm.ActionView), a.handleGetGroup},
		{http.MethodPatch, "/v1/groups/{id}", needs(perm.ResourceGroup, perm.ActionUpdate), a.handleUpdateGroup},
		{http.MethodDelete, "/v1/groups/{id}", needs(perm.ResourceGroup, perm.ActionDelete), a.handleDeleteGroup},
		{http.MethodGet, "/v1/groups/{id}/members", needs(perm.ResourceGroup, perm.ActionView), a.handleListGroupMembers},
		{http.MethodPost, "/v1/groups/{id}/members", needs(perm.ResourceGroup, perm.ActionUpdate), a.handleAddGroupMember},
		{http.MethodDelete, "/v1/groups/{id}/members/{userID}", needs(perm.ResourceGroup, perm.ActionUpdate), a.handleRemoveGroupMember},

		{http.MethodGet, "/v1/sessions", needs(perm.ResourceSession, perm.ActionView), a.handleListSessions},
		{http.MethodGet, "/v1/sessions/{id}", needs(perm.ResourceSession, perm.ActionView), a.handleGetSession},
		{http.MethodDelete, "/v1/sessions/{id}", needs(perm.ResourceSession, perm.ActionDelete), a.handleRevokeSession},

		{http.MethodGet, "/v1/jwt-keys", needs(perm.ResourceJwtKey, perm.ActionView), a.handleListSigningKeys},
		{http.MethodPost, "/v1/jwt-keys", needs(perm.ResourceJwtKey, perm.ActionCreate), a.handleRotateSigningKey},
		{http.MethodGet, "/v1/jwt-keys/{kid}", needs(perm.ResourceJwtKey, perm.ActionView), a.handleGetSigningKey},
		{http.MethodDelete, "/v1/jwt-keys/{kid}", needs(perm.ResourceJwtKey, perm.ActionDelete), a.handleDeleteSigningKey},

		{http.MethodGet, "/v1/token-denylist", needs(perm.ResourceTokenDenylist, perm.ActionView), a.handleListDenylist},
		{http.MethodPost, "/v1/token-denylist", needs(perm.ResourceTokenDenylist, perm.ActionCreate), a.handleAddDenylistEntry},
		{http.MethodDelete, "/v1/token-denylist/{id}", needs(perm.ResourceTokenDenylist, perm.ActionDelete), a.handleDeleteDenylistEntry},
	}

	for _, rt := range a.routes {
		a.mux.Handle(rt.Method+" "+rt.Pattern, a.guard(rt.Access, rt.Handler))
	}
	a.mux.Handle("GET /metrics", obs.Handler())

	return a
}

// Handler returns the fully wrapped http.Handler.
func (a *API) Handler() http.Handler {
	var h http.Handler = obs.Instrument(a.mux)
	h = MaxBodyBytes(h, 1<<20)
	if a.ratePerSecond > 0 {
		h = RateLimit(h, a.rateBurst, a.ratePerSecond)
	}
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return h
}

// --- service handlers ---

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "gatekey-api",
		"version": a.version,
	})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "gatekey-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

type listResponse struct {
	Items any          `json:"items"`
	Meta  iam.PageMeta `json:"meta"`
}

func pageFromRequest(r *http.Request) iam.Page {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return iam.NormalizePage(iam.Page{Page: page, Limit: limit})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeErrorCode(w, r, code, msg, "")
}

// writeErrorCode adds a machine-readable error code next to the message.
func writeErrorCode(w http.ResponseWriter, r *http.Request, code int, msg, errCode string) {
	payload := map[string]any{
		"message": msg,
	}
	if errCode != "" {
		payload["error"] = errCode
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// handleIAMError maps domain sentinels onto HTTP statuses.
func handleIAMError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, iam.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, iam.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, iam.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, iam.ErrInvalidCredentials):
		writeErrorCode(w, r, http.StatusUnauthorized, "invalid credentials", "invalid_credentials")
	case errors.Is(err, iam.ErrTokenExpired):
		writeErrorCode(w, r, http.StatusUnauthorized, "token expired", "token_expired")
	case errors.Is(err, iam.ErrTokenRevoked):
		writeErrorCode(w, r, http.StatusUnauthorized, "token revoked", "token_revoked")
	case errors.Is(err, iam.ErrInvalidToken):
		writeErrorCode(w, r, http.StatusUnauthorized, "invalid token", "invalid_token")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
