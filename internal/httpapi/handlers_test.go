package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"gatekey.org/internal/iam"
)

const (
	testAdminEmail    = "admin@gatekey.test"
	testAdminPassword = "sup3r-secret-pass"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	store := iam.NewInMemory()
	tokens := iam.NewTokenService(store, "gatekey-test", 0, 0)
	if _, err := tokens.GenerateSigningKey(context.Background()); err != nil {
		t.Fatalf("generate signing key: %v", err)
	}
	directory, err := iam.NewDirectory(store, nil)
	if err != nil {
		t.Fatalf("new directory: %v", err)
	}
	auth, err := iam.NewAuth(store, tokens)
	if err != nil {
		t.Fatalf("new auth: %v", err)
	}
	seeder, err := iam.NewSeeder(store, nil)
	if err != nil {
		t.Fatalf("new seeder: %v", err)
	}
	if _, err := seeder.Seed(context.Background(), testAdminEmail, testAdminPassword); err != nil {
		t.Fatalf("seed: %v", err)
	}

	api := New(Options{
		Directory:     directory,
		Auth:          auth,
		Tokens:        tokens,
		Resolver:      iam.NewResolver(tokens, store),
		Version:       "test",
		RateBurst:     100,
		RatePerSecond: 100,
	})

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

func (c *apiClient) login(email, password string) (string, string) {
	c.t.Helper()
	resp := c.post("/v1/auth/login", map[string]any{
		"email":    email,
		"password": password,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("unexpected login status: %d", resp.StatusCode)
	}
	var payload struct {
		Tokens iam.TokenPair `json:"tokens"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.t.Fatalf("decode login response: %v", err)
	}
	if payload.Tokens.AccessToken == "" || payload.Tokens.RefreshToken == "" {
		c.t.Fatalf("login returned empty tokens")
	}
	return payload.Tokens.AccessToken, payload.Tokens.RefreshToken
}

func (c *apiClient) adminHeader() map[string]string {
	c.t.Helper()
	access, _ := c.login(testAdminEmail, testAdminPassword)
	return map[string]string{"Authorization": "Bearer " + access}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealthAndInfo(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/healthz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected healthz status: %d", resp.StatusCode)
	}
	health := decode[map[string]any](t, resp)
	if health["status"] != "ok" {
		t.Fatalf("unexpected health payload: %v", health)
	}

	resp = api.get("/v1/info", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected info status: %d", resp.StatusCode)
	}
	info := decode[map[string]any](t, resp)
	if info["name"] != "gatekey-api" {
		t.Fatalf("unexpected info payload: %v", info)
	}
}

func TestLoginRefreshLogoutFlow(t *testing.T) {
	api := newTestAPI(t)
	access, refresh := api.login(testAdminEmail, testAdminPassword)
	authHeader := map[string]string{"Authorization": "Bearer " + access}

	// Identity endpoint reflects the superadmin grant set.
	resp := api.get("/v1/auth/me", nil, authHeader)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected me status: %d", resp.StatusCode)
	}
	me := decode[map[string]any](t, resp)
	perms, ok := me["permissions"].([]any)
	if !ok || len(perms) == 0 {
		t.Fatalf("expected non-empty permissions, got %v", me["permissions"])
	}

	// Rotate the refresh token.
	resp = api.post("/v1/auth/refresh", map[string]any{"refresh_token": refresh}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected refresh status: %d", resp.StatusCode)
	}
	rotated := decode[map[string]any](t, resp)
	if rotated["tokens"] == nil {
		t.Fatalf("expected rotated tokens")
	}

	// The spent refresh token is dead.
	resp = api.post("/v1/auth/refresh", map[string]any{"refresh_token": refresh}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 on refresh reuse, got %d", resp.StatusCode)
	}

	// Logout kills the session.
	resp = api.post("/v1/auth/logout", nil, authHeader)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected logout status: %d", resp.StatusCode)
	}
}

func TestOrganizationCRUDFlow(t *testing.T) {
	api := newTestAPI(t)
	authHeader := api.adminHeader()

	resp := api.post("/v1/organizations", map[string]any{
		"code": "acme",
		"name": "Acme Corp",
	}, authHeader)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected create status: %d", resp.StatusCode)
	}
	if resp.Header.Get("Location") == "" {
		t.Fatalf("expected Location header on create")
	}
	org := decode[map[string]any](t, resp)
	orgID := org["id"].(string)

	// Duplicate code conflicts.
	resp = api.post("/v1/organizations", map[string]any{
		"code": "acme",
		"name": "Acme Again",
	}, authHeader)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate code, got %d", resp.StatusCode)
	}

	resp = api.do(http.MethodPatch, "/v1/organizations/"+orgID, map[string]any{
		"name": "Acme Corporation",
	}, authHeader)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected patch status: %d", resp.StatusCode)
	}
	updated := decode[map[string]any](t, resp)
	if updated["name"] != "Acme Corporation" {
		t.Fatalf("unexpected updated name: %v", updated["name"])
	}

	resp = api.get("/v1/organizations", url.Values{"page": []string{"1"}, "limit": []string{"10"}}, authHeader)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected list status: %d", resp.StatusCode)
	}
	listed := decode[map[string]any](t, resp)
	meta, ok := listed["meta"].(map[string]any)
	if !ok || meta["total_items"].(float64) != 1 {
		t.Fatalf("unexpected list meta: %v", listed["meta"])
	}

	resp = api.do(http.MethodDelete, "/v1/organizations/"+orgID, nil, authHeader)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("unexpected delete status: %d", resp.StatusCode)
	}

	resp = api.get("/v1/organizations/"+orgID, nil, authHeader)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestUserRoleGrantFlow(t *testing.T) {
	api := newTestAPI(t)
	authHeader := api.adminHeader()

	// Create a user with no grants.
	resp := api.post("/v1/users", map[string]any{
		"email":     "viewer@gatekey.test",
		"full_name": "View Only",
		"password":  "view-only-pass-1",
	}, authHeader)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected user create status: %d", resp.StatusCode)
	}
	user := decode[map[string]any](t, resp)
	userID := user["id"].(string)

	// A principal with zero permissions is refused.
	viewerAccess, _ := api.login("viewer@gatekey.test", "view-only-pass-1")
	viewerHeader := map[string]string{"Authorization": "Bearer " + viewerAccess}
	resp = api.get("/v1/users", nil, viewerHeader)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 without grants, got %d", resp.StatusCode)
	}

	// Build a role carrying only user.view.
	resp = api.post("/v1/roles", map[string]any{
		"code": "auditor",
		"name": "Auditor",
	}, authHeader)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected role create status: %d", resp.StatusCode)
	}
	role := decode[map[string]any](t, resp)
	roleID := role["id"].(string)

	var viewPermID string
	resp = api.get("/v1/permissions", url.Values{"limit": []string{"100"}}, authHeader)
	perms := decode[map[string]any](t, resp)
	for _, item := range perms["items"].([]any) {
		p := item.(map[string]any)
		if p["resource_code"] == "user" && p["action_code"] == "view" {
			viewPermID = p["id"].(string)
		}
	}
	if viewPermID == "" {
		t.Fatalf("seeded user.view permission not found")
	}

	resp = api.do(http.MethodPut, "/v1/roles/"+roleID+"/permissions", map[string]any{
		"permission_ids": []string{viewPermID},
	}, authHeader)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("unexpected set permissions status: %d", resp.StatusCode)
	}

	resp = api.post("/v1/users/"+userID+"/roles", map[string]any{
		"role_id": roleID,
	}, authHeader)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected assign status: %d", resp.StatusCode)
	}

	// The grant applies to new resolutions immediately.
	resp = api.get("/v1/users", nil, viewerHeader)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after grant, got %d", resp.StatusCode)
	}

	// view does not imply create.
	resp = api.post("/v1/users", map[string]any{
		"email":     "other@gatekey.test",
		"full_name": "Other",
		"password":  "other-pass-123",
	}, viewerHeader)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 on create, got %d", resp.StatusCode)
	}
}

func TestChangeOwnPassword(t *testing.T) {
	api := newTestAPI(t)
	authHeader := api.adminHeader()

	resp := api.post("/v1/users", map[string]any{
		"email":     "self@gatekey.test",
		"full_name": "Self Service",
		"password":  "initial-pass-123",
	}, authHeader)
	user := decode[map[string]any](t, resp)
	userID := user["id"].(string)

	access, _ := api.login("self@gatekey.test", "initial-pass-123")
	selfHeader := map[string]string{"Authorization": "Bearer " + access}

	resp = api.do(http.MethodPatch, "/v1/users/"+userID+"/password", map[string]any{
		"current_password": "initial-pass-123",
		"new_password":     "rotated-pass-456",
	}, selfHeader)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected password change status: %d", resp.StatusCode)
	}

	// Old password no longer works, new one does.
	resp = api.post("/v1/auth/login", map[string]any{
		"email":    "self@gatekey.test",
		"password": "initial-pass-123",
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with old password, got %d", resp.StatusCode)
	}
	api.login("self@gatekey.test", "rotated-pass-456")

	// A different unprivileged user cannot change it.
	resp = api.post("/v1/users", map[string]any{
		"email":     "stranger@gatekey.test",
		"full_name": "Stranger",
		"password":  "stranger-pass-12",
	}, authHeader)
	resp.Body.Close()
	strangerAccess, _ := api.login("stranger@gatekey.test", "stranger-pass-12")
	resp = api.do(http.MethodPatch, "/v1/users/"+userID+"/password", map[string]any{
		"current_password": "rotated-pass-456",
		"new_password":     "hijacked-pass-78",
	}, map[string]string{"Authorization": "Bearer " + strangerAccess})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign password change, got %d", resp.StatusCode)
	}
}

func TestJWKSExposesActiveKey(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/v1/auth/jwks", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected jwks status: %d", resp.StatusCode)
	}
	set := decode[map[string]any](t, resp)
	keys, ok := set["keys"].([]any)
	if !ok || len(keys) == 0 {
		t.Fatalf("expected at least one JWK, got %v", set)
	}
	key := keys[0].(map[string]any)
	if key["kty"] != "RSA" || key["kid"] == "" {
		t.Fatalf("unexpected JWK shape: %v", key)
	}
}

func TestRequestValidation(t *testing.T) {
	api := newTestAPI(t)
	authHeader := api.adminHeader()

	// Missing body.
	resp := api.post("/v1/organizations", nil, authHeader)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty body, got %d", resp.StatusCode)
	}

	// Unknown field.
	resp = api.post("/v1/organizations", map[string]any{
		"code":    "x",
		"name":    "X",
		"unknown": true,
	}, authHeader)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", resp.StatusCode)
	}

	// Missing required field.
	resp = api.post("/v1/organizations", map[string]any{"name": "No Code"}, authHeader)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing code, got %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["message"] == "" {
		t.Fatalf("expected error message in body")
	}
}

func TestForgotPasswordDoesNotRevealAccounts(t *testing.T) {
	api := newTestAPI(t)

	for _, email := range []string{testAdminEmail, "nobody@gatekey.test"} {
		resp := api.post("/v1/auth/forgot-password", map[string]any{"email": email}, nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("expected 202 for %s, got %d", email, resp.StatusCode)
		}
	}
}
