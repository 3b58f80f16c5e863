package perm

import (
	"errors"
	"testing"
)

func TestDefaultCatalogCompleteness(t *testing.T) {
	c := Default()
	for _, resource := range c.Resources() {
		actions, err := c.AllowedActions(resource)
		if err != nil {
			t.Fatalf("AllowedActions(%q): %v", resource, err)
		}
		if len(actions) == 0 {
			t.Fatalf("resource %q has no allowed actions", resource)
		}
	}

	known := make(map[string]map[string]bool)
	for _, resource := range c.Resources() {
		actions, _ := c.AllowedActions(resource)
		known[resource] = make(map[string]bool, len(actions))
		for _, a := range actions {
			known[resource][a] = true
		}
	}
	for _, code := range c.AllCodes() {
		resource, action, err := Decode(code)
		if err != nil {
			t.Fatalf("catalog emitted undecodable code %q: %v", code, err)
		}
		if !known[resource][action] {
			t.Fatalf("code %q not backed by catalog entry", code)
		}
	}
}

func TestDefaultCatalogUserSupportsBulkActions(t *testing.T) {
	actions, err := Default().AllowedActions(ResourceUser)
	if err != nil {
		t.Fatalf("AllowedActions: %v", err)
	}
	want := map[string]bool{ActionExport: false, ActionImport: false}
	for _, a := range actions {
		if _, ok := want[a]; ok {
			want[a] = true
		}
	}
	for a, found := range want {
		if !found {
			t.Fatalf("user resource missing action %q", a)
		}
	}
}

func TestAllowedActionsUnknownResource(t *testing.T) {
	if _, err := Default().AllowedActions("widget"); !errors.Is(err, ErrUnknownResource) {
		t.Fatalf("expected ErrUnknownResource, got %v", err)
	}
}

func TestRegisterValidatesCodes(t *testing.T) {
	cases := []struct {
		resource string
		actions  []string
	}{
		{"", []string{"view"}},
		{"a.b", []string{"view"}},
		{"Upper", []string{"view"}},
		{"widget", nil},
		{"widget", []string{"view.all"}},
		{"widget", []string{"view", "view"}},
	}
	for _, c := range cases {
		if err := NewCatalog().Register(c.resource, c.actions...); err == nil {
			t.Fatalf("Register(%q, %v): expected error", c.resource, c.actions)
		}
	}

	cat := NewCatalog()
	if err := cat.Register("widget", "view"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := cat.Register("widget", "delete"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected duplicate registration error, got %v", err)
	}
}

func TestAllCodesSorted(t *testing.T) {
	codes := Default().AllCodes()
	for i := 1; i < len(codes); i++ {
		if codes[i-1] >= codes[i] {
			t.Fatalf("codes not strictly sorted at %d: %q >= %q", i, codes[i-1], codes[i])
		}
	}
}
