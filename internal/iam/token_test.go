package iam

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestTokens(t *testing.T, store Store) *TokenService {
	t.Helper()
	svc := NewTokenService(store, "test-issuer", 15*time.Minute, 24*time.Hour)
	if _, err := svc.GenerateSigningKey(context.Background()); err != nil {
		t.Fatalf("GenerateSigningKey: %v", err)
	}
	return svc
}

func TestTokenServiceIssueAndVerify(t *testing.T) {
	store := NewInMemory()
	svc := newTestTokens(t, store)

	raw, issued, err := svc.IssueAccessToken(context.Background(), "user-42", "sess-1")
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	if time.Until(issued.ExpiresAt.Time) <= 0 {
		t.Fatalf("expected future expiration, got %v", issued.ExpiresAt.Time)
	}

	claims, err := svc.VerifyAccessToken(context.Background(), raw)
	if err != nil {
		t.Fatalf("VerifyAccessToken: %v", err)
	}
	if claims.Subject != "user-42" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.SessionID != "sess-1" {
		t.Fatalf("unexpected session id: %s", claims.SessionID)
	}
	if claims.Issuer != "test-issuer" {
		t.Fatalf("unexpected issuer: %s", claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatalf("expected a jti")
	}
}

func TestTokenServiceRotationKeepsOldTokensValid(t *testing.T) {
	store := NewInMemory()
	svc := newTestTokens(t, store)

	oldToken, _, err := svc.IssueAccessToken(context.Background(), "user-1", "sess-1")
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	newKey, err := svc.GenerateSigningKey(context.Background())
	if err != nil {
		t.Fatalf("GenerateSigningKey: %v", err)
	}

	if _, err := svc.VerifyAccessToken(context.Background(), oldToken); err != nil {
		t.Fatalf("token issued before rotation should still verify: %v", err)
	}

	active, err := store.ActiveSigningKey(context.Background())
	if err != nil {
		t.Fatalf("ActiveSigningKey: %v", err)
	}
	if active.Kid != newKey.Kid {
		t.Fatalf("expected new key to be active, got %s", active.Kid)
	}

	set, err := svc.JWKS(context.Background())
	if err != nil {
		t.Fatalf("JWKS: %v", err)
	}
	if len(set.Keys) != 2 {
		t.Fatalf("expected both keys in jwks, got %d", len(set.Keys))
	}
}

func TestTokenServiceRotatesExpiredKeyOnIssue(t *testing.T) {
	store := NewInMemory()
	svc := newTestTokens(t, store)

	before, err := store.ActiveSigningKey(context.Background())
	if err != nil {
		t.Fatalf("ActiveSigningKey: %v", err)
	}

	// Move past the signing key lifetime; the next issue must mint a new key.
	svc.now = func() time.Time { return time.Now().Add(signingKeyTTL + time.Hour) }
	raw, _, err := svc.IssueAccessToken(context.Background(), "user-1", "sess-1")
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	if _, err := svc.VerifyAccessToken(context.Background(), raw); err != nil {
		t.Fatalf("VerifyAccessToken: %v", err)
	}

	after, err := store.ActiveSigningKey(context.Background())
	if err != nil {
		t.Fatalf("ActiveSigningKey: %v", err)
	}
	if after.Kid == before.Kid {
		t.Fatalf("expected a fresh active key after expiry")
	}
}

func TestTokenServiceRejectsExpired(t *testing.T) {
	store := NewInMemory()
	svc := newTestTokens(t, store)

	raw, _, err := svc.IssueAccessToken(context.Background(), "user-1", "sess-1")
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(16 * time.Minute) }
	if _, err := svc.VerifyAccessToken(context.Background(), raw); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTokenServiceRejectsGarbage(t *testing.T) {
	store := NewInMemory()
	svc := newTestTokens(t, store)

	for _, raw := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := svc.VerifyAccessToken(context.Background(), raw); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", raw, err)
		}
	}
}

func TestSplitRefreshToken(t *testing.T) {
	raw, rec, err := MintRefreshToken("user-1", "sess-1", time.Now(), time.Hour)
	if err != nil {
		t.Fatalf("MintRefreshToken: %v", err)
	}
	id, secret, err := SplitRefreshToken(raw)
	if err != nil {
		t.Fatalf("SplitRefreshToken: %v", err)
	}
	if id != rec.ID {
		t.Fatalf("id mismatch: %s vs %s", id, rec.ID)
	}
	if HashRefreshSecret(secret) != rec.TokenHash {
		t.Fatalf("secret does not hash to stored value")
	}

	for _, bad := range []string{"", "nodot", ".secret", "id."} {
		if _, _, err := SplitRefreshToken(bad); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", bad, err)
		}
	}
}
