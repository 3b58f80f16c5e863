package perm

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Action codes applicable to resources.
const (
	ActionView   = "view"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionExport = "export"
	ActionImport = "import"
)

// Resource codes protected by the authorization layer.
const (
	ResourceUser          = "user"
	ResourceRole          = "role"
	ResourcePermission    = "permission"
	ResourceSession       = "session"
	ResourceOrganization  = "organization"
	ResourceResource      = "resource"
	ResourceGroup         = "group"
	ResourceJwtKey        = "jwt_key"
	ResourceRefreshToken  = "refresh_token"
	ResourceTokenDenylist = "token_denylist"
)

var (
	ErrUnknownResource = errors.New("perm: unknown resource")
	ErrInvalidCode     = errors.New("perm: invalid code")
)

// Catalog maps each resource to the ordered list of actions that are legal
// to grant on it. It defines legal combinations; the database stores the
// granted ones.
type Catalog struct {
	actions map[string][]string
	order   []string
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{actions: make(map[string][]string)}
}

// Register adds a resource with its allowed actions. Codes must be
// non-empty, lower-case and must not contain the separator; violations are
// configuration errors and fail immediately.
func (c *Catalog) Register(resource string, actions ...string) error {
	if err := validateCode(resource); err != nil {
		return err
	}
	if len(actions) == 0 {
		return fmt.Errorf("%w: resource %q registered without actions", ErrInvalidCode, resource)
	}
	if _, ok := c.actions[resource]; ok {
		return fmt.Errorf("%w: resource %q already registered", ErrInvalidCode, resource)
	}
	seen := make(map[string]struct{}, len(actions))
	list := make([]string, 0, len(actions))
	for _, action := range actions {
		if err := validateCode(action); err != nil {
			return err
		}
		if _, dup := seen[action]; dup {
			return fmt.Errorf("%w: duplicate action %q for resource %q", ErrInvalidCode, action, resource)
		}
		seen[action] = struct{}{}
		list = append(list, action)
	}
	c.actions[resource] = list
	c.order = append(c.order, resource)
	return nil
}

// AllowedActions returns the ordered actions registered for resource.
func (c *Catalog) AllowedActions(resource string) ([]string, error) {
	actions, ok := c.actions[resource]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownResource, resource)
	}
	out := make([]string, len(actions))
	copy(out, actions)
	return out, nil
}

// Resources returns every registered resource in registration order.
func (c *Catalog) Resources() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Actions returns the distinct action codes across the whole catalog,
// sorted.
func (c *Catalog) Actions() []string {
	set := make(map[string]struct{})
	for _, actions := range c.actions {
		for _, a := range actions {
			set[a] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// AllCodes returns the sorted cross-product of every resource with its
// allowed actions, formatted through the codec. Used by seeding and export,
// never on the per-request path.
func (c *Catalog) AllCodes() []string {
	var out []string
	for resource, actions := range c.actions {
		for _, action := range actions {
			out = append(out, Encode(resource, action))
		}
	}
	sort.Strings(out)
	return out
}

func validateCode(code string) error {
	if code == "" {
		return fmt.Errorf("%w: empty code", ErrInvalidCode)
	}
	if strings.Contains(code, Separator) {
		return fmt.Errorf("%w: %q contains separator", ErrInvalidCode, code)
	}
	if code != strings.ToLower(code) {
		return fmt.Errorf("%w: %q is not lower-case", ErrInvalidCode, code)
	}
	return nil
}

var crudActions = []string{ActionView, ActionCreate, ActionUpdate, ActionDelete}

// Default returns the built-in catalog. The user resource additionally
// supports export and import to cover bulk tooling.
func Default() *Catalog {
	c := NewCatalog()
	must := func(resource string, actions ...string) {
		if err := c.Register(resource, actions...); err != nil {
			panic(err)
		}
	}
	must(ResourceUser, ActionView, ActionCreate, ActionUpdate, ActionDelete, ActionExport, ActionImport)
	must(ResourceRole, crudActions...)
	must(ResourcePermission, crudActions...)
	must(ResourceSession, crudActions...)
	must(ResourceOrganization, crudActions...)
	must(ResourceResource, crudActions...)
	must(ResourceGroup, crudActions...)
	must(ResourceJwtKey, crudActions...)
	must(ResourceRefreshToken, crudActions...)
	must(ResourceTokenDenylist, crudActions...)
	return c
}
