package domain

import "time"

// TokenPair is what the token endpoint returns: the short-lived JWT access
// token, the opaque rotating refresh token, and the ID token when the
// "openid" scope was granted.
type TokenPair struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token,omitempty"`
	IDToken      string        `json:"id_token,omitempty"`
	TokenType    string        `json:"token_type,omitempty"` // always "Bearer"
	ExpiresIn    time.Duration `json:"expires_in"`           // seconds until expiry
	Scope        string        `json:"scope,omitempty"`      // space-delimited
}

// RefreshToken is the stored refresh token record. Tokens belong to a family
// rooted at the original grant; each rotation bumps Generation and marks the
// predecessor rotated. Presenting a rotated token is reuse and revokes the
// family.
type RefreshToken struct {
	ID         string
	UserID     string // empty for client_credentials grants
	ClientID   string
	TokenHash  string // base64url SHA-256 fingerprint
	SessionID  string
	FamilyID   string
	Generation int
	Scopes     []string
	AMR        []string
	ExpiresAt  time.Time
	RotatedAt  *time.Time
	Revoked    bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
