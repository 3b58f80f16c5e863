package iam

import (
	"context"
	"errors"
	"fmt"
)

// Resolver turns a bearer token into a fully hydrated Principal. Resolution
// is a single verify-then-load pass; anything downstream of it works off the
// Principal alone.
type Resolver struct {
	tokens *TokenService
	store  PrincipalStore
}

func NewResolver(tokens *TokenService, store PrincipalStore) *Resolver {
	return &Resolver{tokens: tokens, store: store}
}

// Resolve verifies the token and loads the subject with all role memberships
// and granted permission codes. A token whose subject no longer exists (or
// was soft-deleted) yields ErrPrincipalNotFound.
func (r *Resolver) Resolve(ctx context.Context, rawToken string) (Principal, error) {
	claims, err := r.tokens.VerifyAccessToken(ctx, rawToken)
	if err != nil {
		return Principal{}, err
	}
	principal, err := r.store.LoadPrincipal(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, fmt.Errorf("%w: user %s", ErrPrincipalNotFound, claims.Subject)
		}
		return Principal{}, fmt.Errorf("load principal: %w", err)
	}
	principal.SessionID = claims.SessionID
	return principal, nil
}
