package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                              "/",
		"/metrics":                      "/metrics",
		"/v1/users/01HZX3":              "/v1/users/:id",
		"/v1/users/01HZX3/roles":        "/v1/users/:id/roles",
		"/v1/users/01HZX3/password":     "/v1/users/:id/password",
		"/v1/roles/abc/permissions":     "/v1/roles/:id/permissions",
		"/v1/groups/abc/members":        "/v1/groups/:id/members",
		"/v1/organizations/xyz":         "/v1/organizations/:id",
		"/v1/sessions/s1":               "/v1/sessions/:id",
		"/v1/users?page=2":              "/v1/users",
		"/v1/auth/login":                "/v1/auth/login",
		"/v1/jwt-keys/kid-1":            "/v1/jwt-keys/:id",
		"/v1/token-denylist/01HZX3":     "/v1/token-denylist/:id",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
