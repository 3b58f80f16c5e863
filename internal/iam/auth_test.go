package iam

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestAuth(t *testing.T) (*InMemory, *Auth) {
	t.Helper()
	store := NewInMemory()
	tokens := newTestTokens(t, store)
	auth, err := NewAuth(store, tokens)
	if err != nil {
		t.Fatalf("NewAuth: %v", err)
	}
	return store, auth
}

func createTestUser(t *testing.T, store *InMemory, email, password string) User {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	user, err := store.CreateUser(context.Background(), User{
		Email:    email,
		FullName: "Test User",
		Status:   UserStatusActive,
	}, hash)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return user
}

func TestLoginIssuesSessionAndTokens(t *testing.T) {
	store, auth := newTestAuth(t)
	user := createTestUser(t, store, "alice@example.com", "s3cret-pass")

	pair, got, err := auth.Login(context.Background(), "Alice@Example.com", "s3cret-pass", "10.0.0.1", "cli/1.0")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("unexpected user: %s", got.ID)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected both tokens")
	}

	sessions, total, err := store.ListSessions(context.Background(), &user.ID, Page{Page: 1, Limit: 10})
	if err != nil || total != 1 {
		t.Fatalf("expected one session, got %d (err=%v)", total, err)
	}
	if sessions[0].IP != "10.0.0.1" || sessions[0].UserAgent != "cli/1.0" {
		t.Fatalf("session context not recorded: %+v", sessions[0])
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	store, auth := newTestAuth(t)
	user := createTestUser(t, store, "bob@example.com", "right-password")

	if _, _, err := auth.Login(context.Background(), "bob@example.com", "wrong-password", "", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := auth.Login(context.Background(), "nobody@example.com", "whatever", "", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: expected ErrInvalidCredentials, got %v", err)
	}

	disabled := UserStatusDisabled
	if _, err := store.UpdateUser(context.Background(), user.ID, UserUpdate{Status: &disabled}); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if _, _, err := auth.Login(context.Background(), "bob@example.com", "right-password", "", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("disabled user: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	store, auth := newTestAuth(t)
	createTestUser(t, store, "carol@example.com", "pw-pw-pw")

	pair, _, err := auth.Login(context.Background(), "carol@example.com", "pw-pw-pw", "", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	next, err := auth.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatalf("refresh token was not rotated")
	}

	// The spent token stays revoked.
	if _, err := auth.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("reused token: expected ErrTokenRevoked, got %v", err)
	}

	// A tampered secret fails closed.
	id, _, err := SplitRefreshToken(next.RefreshToken)
	if err != nil {
		t.Fatalf("SplitRefreshToken: %v", err)
	}
	if _, err := auth.Refresh(context.Background(), id+".deadbeef"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("tampered token: expected ErrInvalidToken, got %v", err)
	}
}

func TestRefreshBadSecretBurnsStoredToken(t *testing.T) {
	store, auth := newTestAuth(t)
	createTestUser(t, store, "eve@example.com", "pw-pw-pw")

	pair, _, err := auth.Login(context.Background(), "eve@example.com", "pw-pw-pw", "", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	id, _, err := SplitRefreshToken(pair.RefreshToken)
	if err != nil {
		t.Fatalf("SplitRefreshToken: %v", err)
	}

	if _, err := auth.Refresh(context.Background(), id+".deadbeef"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("bad secret: expected ErrInvalidToken, got %v", err)
	}

	rec, err := store.FindRefreshToken(context.Background(), id)
	if err != nil {
		t.Fatalf("FindRefreshToken: %v", err)
	}
	if rec.RevokedAt == nil {
		t.Fatalf("stored token should be revoked after a bad-secret replay")
	}

	// The legitimate holder is locked out too.
	if _, err := auth.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("genuine token after replay: expected ErrTokenRevoked, got %v", err)
	}
}

func TestRefreshRejectsExpired(t *testing.T) {
	store, auth := newTestAuth(t)
	createTestUser(t, store, "dave@example.com", "pw-pw-pw")

	pair, _, err := auth.Login(context.Background(), "dave@example.com", "pw-pw-pw", "", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	auth.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	if _, err := auth.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestLogoutRevokesSessionAndDenylistsJTI(t *testing.T) {
	store, auth := newTestAuth(t)
	user := createTestUser(t, store, "erin@example.com", "pw-pw-pw")

	pair, _, err := auth.Login(context.Background(), "erin@example.com", "pw-pw-pw", "", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := auth.tokens.VerifyAccessToken(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccessToken: %v", err)
	}

	if err := auth.Logout(context.Background(), claims); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	sessions, _, err := store.ListSessions(context.Background(), &user.ID, Page{Page: 1, Limit: 10})
	if err != nil || len(sessions) != 1 {
		t.Fatalf("ListSessions: %v", err)
	}
	if sessions[0].RevokedAt == nil {
		t.Fatalf("session was not revoked")
	}

	if _, err := auth.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("refresh after logout: expected ErrTokenRevoked, got %v", err)
	}

	entries, total, err := store.ListDenylist(context.Background(), Page{Page: 1, Limit: 10})
	if err != nil || total != 1 {
		t.Fatalf("expected one denylist entry, got %d (err=%v)", total, err)
	}
	if entries[0].JTI != claims.ID {
		t.Fatalf("denylisted jti mismatch: %s vs %s", entries[0].JTI, claims.ID)
	}

	// Logging out twice must not error on the duplicate jti.
	if err := auth.Logout(context.Background(), claims); err != nil {
		t.Fatalf("second Logout: %v", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	store, auth := newTestAuth(t)
	createTestUser(t, store, "frank@example.com", "old-password")

	issue, err := auth.ForgotPassword(context.Background(), "frank@example.com")
	if err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	if issue.ResetID == "" || issue.Code == "" {
		t.Fatalf("expected a reset credential")
	}

	if err := auth.ResetPassword(context.Background(), issue.ResetID, "wrong-code", "new-password"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong code: expected ErrInvalidToken, got %v", err)
	}
	if err := auth.ResetPassword(context.Background(), issue.ResetID, issue.Code, "new-password"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}

	if _, _, err := auth.Login(context.Background(), "frank@example.com", "old-password", "", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password should no longer work, got %v", err)
	}
	if _, _, err := auth.Login(context.Background(), "frank@example.com", "new-password", "", ""); err != nil {
		t.Fatalf("login with new password: %v", err)
	}

	// The credential is single use.
	if err := auth.ResetPassword(context.Background(), issue.ResetID, issue.Code, "another"); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("reused reset: expected ErrTokenRevoked, got %v", err)
	}
}

func TestForgotPasswordUnknownEmailIsSilent(t *testing.T) {
	_, auth := newTestAuth(t)

	issue, err := auth.ForgotPassword(context.Background(), "ghost@example.com")
	if err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	if issue.ResetID != "" || issue.Code != "" {
		t.Fatalf("unknown email must not yield a credential: %+v", issue)
	}
}
