package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGuardRejectsMissingToken(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/v1/users", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body["error"] != "missing_token" {
		t.Fatalf("unexpected error code: %v", body["error"])
	}
	if body["request_id"] == "" {
		t.Fatalf("expected request_id in error body")
	}
}

func TestGuardRejectsGarbageToken(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/v1/users", nil, map[string]string{
		"Authorization": "Bearer not-a-jwt",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["error"] != "invalid_token" {
		t.Fatalf("unexpected error code: %v", body["error"])
	}
}

func TestGuardRejectsNonBearerScheme(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/v1/users", nil, map[string]string{
		"Authorization": "Basic dXNlcjpwYXNz",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestGuardDeniesWithoutGrants(t *testing.T) {
	api := newTestAPI(t)
	authHeader := api.adminHeader()

	resp := api.post("/v1/users", map[string]any{
		"email":     "plain@gatekey.test",
		"full_name": "Plain",
		"password":  "plain-pass-1234",
	}, authHeader)
	resp.Body.Close()

	access, _ := api.login("plain@gatekey.test", "plain-pass-1234")
	resp = api.get("/v1/roles", nil, map[string]string{"Authorization": "Bearer " + access})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["error"] != "no_permissions_found" {
		t.Fatalf("unexpected error code: %v", body["error"])
	}
}

func TestGuardAllowsAuthenticatedOnlyRoutes(t *testing.T) {
	api := newTestAPI(t)
	authHeader := api.adminHeader()

	// /v1/auth/me needs a principal but no permission.
	resp := api.post("/v1/users", map[string]any{
		"email":     "bare@gatekey.test",
		"full_name": "Bare",
		"password":  "bare-pass-12345",
	}, authHeader)
	resp.Body.Close()

	access, _ := api.login("bare@gatekey.test", "bare-pass-12345")
	resp = api.get("/v1/auth/me", nil, map[string]string{"Authorization": "Bearer " + access})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on me, got %d", resp.StatusCode)
	}
}

func TestGuardPublicRoutesSkipAuthentication(t *testing.T) {
	api := newTestAPI(t)

	for _, path := range []string{"/healthz", "/readyz", "/v1/info", "/v1/auth/jwks"} {
		resp := api.get(path, nil, nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200 on %s, got %d", path, resp.StatusCode)
		}
	}
}

func TestGuardRejectsRevokedPrincipalSession(t *testing.T) {
	api := newTestAPI(t)
	authHeader := api.adminHeader()

	resp := api.post("/v1/users", map[string]any{
		"email":     "revoked@gatekey.test",
		"full_name": "Revoked",
		"password":  "revoked-pass-99",
	}, authHeader)
	user := decode[map[string]any](t, resp)
	userID := user["id"].(string)

	access, _ := api.login("revoked@gatekey.test", "revoked-pass-99")
	userHeader := map[string]string{"Authorization": "Bearer " + access}

	// Disable the account; the next resolution refuses it.
	resp = api.do(http.MethodPatch, "/v1/users/"+userID, map[string]any{
		"status": "disabled",
	}, authHeader)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected disable status: %d", resp.StatusCode)
	}

	resp = api.post("/v1/auth/login", map[string]any{
		"email":    "revoked@gatekey.test",
		"password": "revoked-pass-99",
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 login for disabled account, got %d", resp.StatusCode)
	}

	// The access token still verifies cryptographically until expiry; the
	// authenticated-only surface keeps working for its lifetime.
	resp = api.get("/v1/auth/me", nil, userHeader)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on me for live token, got %d", resp.StatusCode)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodDelete, "/v1/auth/login", nil)
	rr := httptest.NewRecorder()
	// Exercise the mux directly to check the method-pattern 405.
	api := newTestAPIRoutesProbe(t)
	api.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
	if rr.Header().Get("Allow") == "" {
		t.Fatalf("expected Allow header on 405")
	}
}

func newTestAPIRoutesProbe(t *testing.T) *API {
	t.Helper()
	return New(Options{Version: "test"})
}
