package iam

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"gatekey.org/internal/ids"
)

const (
	tokenTypeAccess = "access"

	rsaKeyBits        = 2048
	refreshSecretSize = 32
	signingKeyTTL     = 90 * 24 * time.Hour
)

// AccessClaims is the payload carried by every access token.
type AccessClaims struct {
	SessionID string `json:"sid,omitempty"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies access tokens against the persisted key
// ring. Verification resolves the signing key by the kid header, so tokens
// issued before a rotation stay valid until they expire.
type TokenService struct {
	keys       KeyStore
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenService(keys KeyStore, issuer string, accessTTL, refreshTTL time.Duration) *TokenService {
	if issuer == "" {
		issuer = "gatekey"
	}
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	return &TokenService{
		keys:       keys,
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

func (s *TokenService) AccessTTL() time.Duration  { return s.accessTTL }
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// IssueAccessToken signs a token for the user with the currently active
// key, rotating it first when it has passed its expiry.
func (s *TokenService) IssueAccessToken(ctx context.Context, userID, sessionID string) (string, AccessClaims, error) {
	key, err := s.keys.ActiveSigningKey(ctx)
	if err != nil {
		return "", AccessClaims{}, fmt.Errorf("active signing key: %w", err)
	}
	if !key.ExpiresAt.IsZero() && s.now().UTC().After(key.ExpiresAt) {
		key, err = s.GenerateSigningKey(ctx)
		if err != nil {
			return "", AccessClaims{}, fmt.Errorf("rotate signing key: %w", err)
		}
	}
	priv, err := parsePrivateKey(key.PrivatePEM)
	if err != nil {
		return "", AccessClaims{}, fmt.Errorf("signing key %s: %w", key.Kid, err)
	}
	now := s.now().UTC()
	claims := AccessClaims{
		SessionID: sessionID,
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			ID:        uuid.NewString(),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = key.Kid
	signed, err := tok.SignedString(priv)
	if err != nil {
		return "", AccessClaims{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// VerifyAccessToken checks the signature, lifetime and shape of a token and
// returns its claims. Any failure maps onto ErrInvalidToken or
// ErrTokenExpired; the caller never sees library error types.
func (s *TokenService) VerifyAccessToken(ctx context.Context, raw string) (AccessClaims, error) {
	var claims AccessClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(func() time.Time { return s.now().UTC() }),
	)
	_, err := parser.ParseWithClaims(raw, &claims, func(tok *jwt.Token) (any, error) {
		kid, _ := tok.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid header")
		}
		key, err := s.keys.SigningKeyByKid(ctx, kid)
		if err != nil {
			return nil, err
		}
		return parsePublicKey(key.PublicPEM)
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return AccessClaims{}, ErrTokenExpired
		}
		return AccessClaims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.TokenType != tokenTypeAccess || claims.Subject == "" {
		return AccessClaims{}, ErrInvalidToken
	}
	return claims, nil
}

// GenerateSigningKey mints a fresh RSA key pair, retires the currently
// active keys and persists the new one as active.
func (s *TokenService) GenerateSigningKey(ctx context.Context) (SigningKey, error) {
	priv, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return SigningKey{}, fmt.Errorf("generate rsa key: %w", err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return SigningKey{}, fmt.Errorf("marshal private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return SigningKey{}, fmt.Errorf("marshal public key: %w", err)
	}
	now := s.now().UTC()
	key := SigningKey{
		Kid:        ids.New(),
		Alg:        "RS256",
		PublicPEM:  string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})),
		PrivatePEM: string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})),
		IsActive:   true,
		ExpiresAt:  now.Add(signingKeyTTL),
		CreatedAt:  now,
	}
	if err := s.keys.RetireSigningKeys(ctx, now); err != nil {
		return SigningKey{}, fmt.Errorf("retire keys: %w", err)
	}
	if err := s.keys.InsertSigningKey(ctx, key); err != nil {
		return SigningKey{}, fmt.Errorf("insert key: %w", err)
	}
	return key, nil
}

// JWKS returns the public half of every stored key in JWK set form.
func (s *TokenService) JWKS(ctx context.Context) (JWKSet, error) {
	keys, _, err := s.keys.ListSigningKeys(ctx, Page{Page: 1, Limit: 100})
	if err != nil {
		return JWKSet{}, fmt.Errorf("list signing keys: %w", err)
	}
	set := JWKSet{Keys: make([]JWK, 0, len(keys))}
	for _, k := range keys {
		pub, err := parsePublicKey(k.PublicPEM)
		if err != nil {
			continue
		}
		set.Keys = append(set.Keys, JWK{
			Kty: "RSA",
			Use: "sig",
			Alg: k.Alg,
			Kid: k.Kid,
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		})
	}
	return set, nil
}

// JWKSet is the response body of the JWKS endpoint.
type JWKSet struct {
	Keys []JWK `json:"keys"`
}

type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func parsePrivateKey(pemText string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemText))
	if block == nil {
		return nil, errors.New("no pem block")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("not an rsa private key")
	}
	return priv, nil
}

func parsePublicKey(pemText string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemText))
	if block == nil {
		return nil, errors.New("no pem block")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("not an rsa public key")
	}
	return pub, nil
}

// MintRefreshToken produces an opaque refresh token "<id>.<secret>" together
// with the persistable record. Only the sha256 of the secret is stored.
func MintRefreshToken(userID, sessionID string, issuedAt time.Time, ttl time.Duration) (string, RefreshToken, error) {
	secret := make([]byte, refreshSecretSize)
	if _, err := rand.Read(secret); err != nil {
		return "", RefreshToken{}, fmt.Errorf("refresh secret: %w", err)
	}
	plaintext := hex.EncodeToString(secret)
	rec := RefreshToken{
		ID:        ids.New(),
		UserID:    userID,
		SessionID: sessionID,
		TokenHash: HashRefreshSecret(plaintext),
		IssuedAt:  issuedAt.UTC(),
		ExpiresAt: issuedAt.UTC().Add(ttl),
	}
	return rec.ID + "." + plaintext, rec, nil
}

// SplitRefreshToken takes the opaque token apart into id and secret.
func SplitRefreshToken(raw string) (id, secret string, err error) {
	id, secret, ok := strings.Cut(raw, ".")
	if !ok || id == "" || secret == "" {
		return "", "", ErrInvalidToken
	}
	return id, secret, nil
}

func HashRefreshSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
