package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"gatekey.org/internal/iam"
	"gatekey.org/internal/obs"
	"gatekey.org/internal/perm"
)

// guard wraps a handler with the per-route access pipeline: public bypass,
// bearer extraction, principal resolution, then the permission decision.
// Anything unexpected denies; the pipeline never falls through to the
// handler on error.
func (a *API) guard(ac access, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ac.Public {
			next(w, r)
			return
		}

		token, ok := extractBearerToken(r)
		if !ok {
			obs.CountAuthDecision("unauthenticated")
			writeErrorCode(w, r, http.StatusUnauthorized, "missing bearer token", "missing_token")
			return
		}
		if a.resolver == nil {
			writeError(w, r, http.StatusInternalServerError, "internal error")
			return
		}

		principal, err := a.resolver.Resolve(r.Context(), token)
		if err != nil {
			obs.CountAuthDecision("unauthenticated")
			switch {
			case errors.Is(err, iam.ErrTokenExpired):
				writeErrorCode(w, r, http.StatusUnauthorized, "token expired", "token_expired")
			case errors.Is(err, iam.ErrInvalidToken):
				writeErrorCode(w, r, http.StatusUnauthorized, "invalid token", "invalid_token")
			case errors.Is(err, iam.ErrPrincipalNotFound):
				writeErrorCode(w, r, http.StatusUnauthorized, "unknown principal", "unknown_principal")
			default:
				writeError(w, r, http.StatusInternalServerError, "internal error")
			}
			return
		}

		ctx := iam.ContextWithPrincipal(r.Context(), principal)
		ctx = iam.ContextWithToken(ctx, token)
		r = r.WithContext(ctx)

		if ac.Resource != "" {
			if err := perm.Decide(principal.Permissions, ac.Resource, ac.Actions); err != nil {
				obs.CountAuthDecision("denied")
				switch {
				case errors.Is(err, perm.ErrNoPermissionsFound):
					writeErrorCode(w, r, http.StatusForbidden, "no permissions found", "no_permissions_found")
				case errors.Is(err, perm.ErrInsufficientPermissions):
					writeErrorCode(w, r, http.StatusForbidden, "insufficient permissions", "insufficient_permissions")
				default:
					writeErrorCode(w, r, http.StatusForbidden, "forbidden", "forbidden")
				}
				return
			}
		}

		obs.CountAuthDecision("allowed")
		next(w, r)
	})
}

func extractBearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
