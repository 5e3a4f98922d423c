// Package jwtx owns the token-signing side of the identity server: claims
// construction, signing-key lifecycle with validity windows, JWKS publishing,
// and verification against the active key set.
package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token lifetimes. Per-client overrides apply on top, clamped by the
// global policy ceiling.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
	DefaultIDTokenTTL      = 15 * time.Minute
)

// Authentication method reference values for the "amr" claim.
const (
	AMRPassword = "pwd"
	AMROTP      = "otp"
	AMRClient   = "client"
	AMRRefresh  = "refresh"
)

// Claims is the claim set signed into access and ID tokens. Additive changes
// only, so resource servers parsing older tokens keep working.
type Claims struct {
	jwt.RegisteredClaims

	// SID is the end-user session identifier, stable across refreshes.
	SID string `json:"sid,omitempty"`

	// Scopes carries the granted scopes, e.g. ["openid", "profile"].
	Scopes []string `json:"scopes,omitempty"`

	// AMR lists the authentication methods used ("pwd", "otp", "client").
	AMR []string `json:"amr,omitempty"`

	// Nonce is echoed from the authorization request into ID tokens.
	Nonce string `json:"nonce,omitempty"`

	// AuthTime is when the end user authenticated, seconds since epoch.
	// ID tokens only.
	AuthTime int64 `json:"auth_time,omitempty"`
}

// NewAccessClaims builds the claim set for an access token.
func NewAccessClaims(
	subject, sid string,
	scopes, amr []string,
	ttl time.Duration,
	issuer string,
	audience []string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: registered(subject, issuer, audience, ttl, now),
		SID:              sid,
		Scopes:           scopes,
		AMR:              amr,
	}
}

// NewIDClaims builds the claim set for an OpenID Connect ID token.
func NewIDClaims(
	subject, sid, nonce string,
	authTime time.Time,
	ttl time.Duration,
	issuer string,
	audience []string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: registered(subject, issuer, audience, ttl, now),
		SID:              sid,
		Nonce:            nonce,
		AuthTime:         authTime.UTC().Unix(),
	}
}

func registered(subject, issuer string, audience []string, ttl time.Duration, now time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		Audience:  jwt.ClaimStrings(audience),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        NewJTI(),
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks the iss claim against expected. Empty expected means
// nothing to enforce.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected != "" && c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateAudience checks that at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil
	}
	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}
	return ErrAudience
}

// ValidateExpiry enforces exp and nbf against the current wall clock.
func (c *Claims) ValidateExpiry() error {
	return c.ValidateExpiryWithLeeway(0)
}

// ValidateExpiryWithLeeway allows a grace period for clock skew.
func (c *Claims) ValidateExpiryWithLeeway(leeway time.Duration) error {
	now := time.Now().UTC()
	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}
	return nil
}

// HasScope reports whether the token carries the given scope.
func (c *Claims) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}
