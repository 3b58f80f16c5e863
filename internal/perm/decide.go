package perm

import "errors"

var (
	// ErrNoPermissionsFound denies a principal that carries no permissions
	// at all. Kept distinct from ErrInsufficientPermissions so monitoring
	// can separate "empty grant" from "partial grant"; both map to 403.
	ErrNoPermissionsFound = errors.New("perm: no permissions found")

	// ErrInsufficientPermissions denies a principal missing at least one of
	// the required permission codes.
	ErrInsufficientPermissions = errors.New("perm: insufficient permissions")
)

// CodeSet is a deduplicated set of granted permission codes. A permission
// is a capability, not a count: holding it via several roles is the same as
// holding it once.
type CodeSet map[string]struct{}

// NewCodeSet builds a CodeSet from raw codes.
func NewCodeSet(codes ...string) CodeSet {
	set := make(CodeSet, len(codes))
	for _, code := range codes {
		set[code] = struct{}{}
	}
	return set
}

// Has reports whether code is in the set.
func (s CodeSet) Has(code string) bool {
	_, ok := s[code]
	return ok
}

// Decide checks whether the granted set satisfies every required action on
// resource. All required actions must be present (logical AND): a route
// demanding [view, export] needs both. The function is total and pure —
// permissions are pre-aggregated by the identity resolver, no I/O happens
// here.
func Decide(granted CodeSet, resource string, actions []string) error {
	if len(granted) == 0 {
		return ErrNoPermissionsFound
	}
	for _, action := range actions {
		if !granted.Has(Encode(resource, action)) {
			return ErrInsufficientPermissions
		}
	}
	return nil
}
