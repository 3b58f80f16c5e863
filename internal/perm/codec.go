// Package perm holds the permission taxonomy: the catalog of resources and
// their allowed actions, the codec for canonical permission codes, and the
// authorization decision function. Everything here is pure and side-effect
// free; persistence of granted permissions lives in the store layer.
package perm

import (
	"errors"
	"fmt"
	"strings"
)

// Separator joins a resource code and an action code into a permission code.
const Separator = "."

var ErrMalformedCode = errors.New("perm: malformed permission code")

// Encode composes the canonical permission code for a (resource, action)
// pair. Codes are validated at catalog-registration time, not here.
func Encode(resource, action string) string {
	return resource + Separator + action
}

// Decode splits a permission code back into its resource and action codes.
func Decode(code string) (resource, action string, err error) {
	parts := strings.Split(code, Separator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedCode, code)
	}
	return parts[0], parts[1], nil
}

// MatchesAny reports whether code grants the given resource combined with
// any of the listed actions. Malformed codes never match.
func MatchesAny(code, resource string, actions []string) bool {
	r, a, err := Decode(code)
	if err != nil || r != resource {
		return false
	}
	for _, action := range actions {
		if a == action {
			return true
		}
	}
	return false
}
