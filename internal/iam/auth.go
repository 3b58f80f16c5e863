package iam

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"gatekey.org/internal/ids"
)

const resetCodeTTL = 30 * time.Minute

// Auth drives the credential lifecycle: login, refresh rotation, logout and
// password recovery. All failure paths collapse to coarse sentinels so the
// HTTP layer cannot leak which step rejected the attempt.
type Auth struct {
	store  Store
	tokens *TokenService
	now    func() time.Time
}

func NewAuth(store Store, tokens *TokenService) (*Auth, error) {
	if store == nil {
		return nil, errors.New("iam store is required")
	}
	if tokens == nil {
		return nil, errors.New("token service is required")
	}
	return &Auth{store: store, tokens: tokens, now: time.Now}, nil
}

// Login verifies the credentials, opens a session and mints a token pair.
func (a *Auth) Login(ctx context.Context, email, password, ip, userAgent string) (TokenPair, User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || strings.TrimSpace(password) == "" {
		return TokenPair{}, User{}, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}
	user, err := a.store.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, User{}, ErrInvalidCredentials
		}
		return TokenPair{}, User{}, err
	}
	if user.Status != UserStatusActive {
		return TokenPair{}, User{}, ErrInvalidCredentials
	}
	hash, err := a.store.PasswordHash(ctx, user.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, User{}, ErrInvalidCredentials
		}
		return TokenPair{}, User{}, err
	}
	if !VerifyPassword(hash, password) {
		return TokenPair{}, User{}, ErrInvalidCredentials
	}
	now := a.now().UTC()
	session, err := a.store.CreateSession(ctx, Session{
		ID:        ids.New(),
		UserID:    user.ID,
		IP:        strings.TrimSpace(ip),
		UserAgent: strings.TrimSpace(userAgent),
		CreatedAt: now,
	})
	if err != nil {
		return TokenPair{}, User{}, fmt.Errorf("create session: %w", err)
	}
	pair, err := a.mintPair(ctx, user.ID, session.ID, now)
	if err != nil {
		return TokenPair{}, User{}, err
	}
	return pair, user, nil
}

// Refresh rotates the opaque refresh token inside its session and issues a
// fresh access token. The presented token is revoked whether or not rotation
// succeeds past the verification point.
func (a *Auth) Refresh(ctx context.Context, rawRefresh string) (TokenPair, error) {
	id, secret, err := SplitRefreshToken(strings.TrimSpace(rawRefresh))
	if err != nil {
		return TokenPair{}, err
	}
	rec, err := a.store.FindRefreshToken(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrInvalidToken
		}
		return TokenPair{}, err
	}
	if subtle.ConstantTimeCompare([]byte(rec.TokenHash), []byte(HashRefreshSecret(secret))) != 1 {
		// Someone presented the right id with the wrong secret. Burn the
		// stored token so a guessed id cannot be retried indefinitely.
		if rec.RevokedAt == nil {
			_ = a.store.RevokeRefreshToken(ctx, rec.ID, a.now().UTC())
		}
		return TokenPair{}, ErrInvalidToken
	}
	if rec.RevokedAt != nil {
		return TokenPair{}, ErrTokenRevoked
	}
	now := a.now().UTC()
	if now.After(rec.ExpiresAt) {
		return TokenPair{}, ErrTokenExpired
	}
	session, err := a.store.GetSession(ctx, rec.SessionID)
	if err != nil {
		return TokenPair{}, ErrTokenRevoked
	}
	if session.RevokedAt != nil {
		return TokenPair{}, ErrTokenRevoked
	}
	if err := a.store.RevokeRefreshToken(ctx, rec.ID, now); err != nil {
		return TokenPair{}, fmt.Errorf("revoke refresh token: %w", err)
	}
	if err := a.store.TouchSession(ctx, session.ID, now); err != nil {
		return TokenPair{}, fmt.Errorf("touch session: %w", err)
	}
	return a.mintPair(ctx, rec.UserID, session.ID, now)
}

// Logout revokes the session behind the presented access token, cancels its
// refresh tokens and denylists the access token's jti until it would have
// expired anyway.
func (a *Auth) Logout(ctx context.Context, claims AccessClaims) error {
	now := a.now().UTC()
	if claims.SessionID != "" {
		if err := a.store.RevokeSession(ctx, claims.SessionID, now); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("revoke session: %w", err)
		}
		if err := a.store.RevokeSessionRefreshTokens(ctx, claims.SessionID, now); err != nil {
			return fmt.Errorf("revoke refresh tokens: %w", err)
		}
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	_, err := a.store.AddDenylistEntry(ctx, DenylistEntry{
		ID:        ids.New(),
		JTI:       claims.ID,
		Reason:    "logout",
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
		CreatedAt: now,
	})
	if err != nil && !errors.Is(err, ErrConflict) {
		return fmt.Errorf("denylist jti: %w", err)
	}
	return nil
}

// ForgotPassword issues a single-use reset credential for the account. The
// plaintext code is returned to the caller for delivery; only its hash is
// stored. An unknown email yields an empty issue and no error, so the
// endpoint cannot be used to probe accounts.
func (a *Auth) ForgotPassword(ctx context.Context, email string) (PasswordResetIssue, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return PasswordResetIssue{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	user, err := a.store.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return PasswordResetIssue{}, nil
		}
		return PasswordResetIssue{}, err
	}
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return PasswordResetIssue{}, fmt.Errorf("reset code: %w", err)
	}
	code := hex.EncodeToString(buf)
	now := a.now().UTC()
	reset := PasswordReset{
		ID:        ids.New(),
		UserID:    user.ID,
		CodeHash:  HashRefreshSecret(code),
		ExpiresAt: now.Add(resetCodeTTL),
		CreatedAt: now,
	}
	if err := a.store.CreatePasswordReset(ctx, reset); err != nil {
		return PasswordResetIssue{}, fmt.Errorf("create password reset: %w", err)
	}
	return PasswordResetIssue{ResetID: reset.ID, Code: code}, nil
}

// PasswordResetIssue carries a freshly issued reset credential.
type PasswordResetIssue struct {
	ResetID string `json:"reset_id,omitempty"`
	Code    string `json:"-"`
}

// ResetPassword consumes a reset credential and installs a new password.
func (a *Auth) ResetPassword(ctx context.Context, resetID, code, newPassword string) error {
	resetID = strings.TrimSpace(resetID)
	code = strings.TrimSpace(code)
	newPassword = strings.TrimSpace(newPassword)
	if resetID == "" || code == "" || newPassword == "" {
		return fmt.Errorf("%w: reset_id, code and new password are required", ErrInvalidInput)
	}
	reset, err := a.store.FindPasswordReset(ctx, resetID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}
	now := a.now().UTC()
	if reset.ConsumedAt != nil {
		return ErrTokenRevoked
	}
	if now.After(reset.ExpiresAt) {
		return ErrTokenExpired
	}
	if subtle.ConstantTimeCompare([]byte(reset.CodeHash), []byte(HashRefreshSecret(code))) != 1 {
		return ErrInvalidToken
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := a.store.SetPassword(ctx, reset.UserID, hash); err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	return a.store.ConsumePasswordReset(ctx, resetID, now)
}

func (a *Auth) mintPair(ctx context.Context, userID, sessionID string, now time.Time) (TokenPair, error) {
	access, claims, err := a.tokens.IssueAccessToken(ctx, userID, sessionID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, rec, err := MintRefreshToken(userID, sessionID, now, a.tokens.RefreshTTL())
	if err != nil {
		return TokenPair{}, err
	}
	if err := a.store.CreateRefreshToken(ctx, rec); err != nil {
		return TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  claims.ExpiresAt.Time,
		RefreshExpiresAt: rec.ExpiresAt,
	}, nil
}
