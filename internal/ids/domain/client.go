package domain

import (
	"slices"
	"time"
)

// Grant type identifiers accepted at the token endpoint.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
	GrantClientCredentials = "client_credentials"
	GrantImplicit          = "implicit"
)

// Client is a registered OAuth2 relying party.
type Client struct {
	ID           string
	Name         string
	SecretHash   string // argon2 encoded, empty for public clients
	RedirectURIs []string
	GrantTypes   []string
	Scopes       []string // scopes the client may be granted
	RequirePKCE  bool
	Protected    bool // bootstrap client, cannot be deleted

	// Per-client TTL overrides. Zero means the global defaults apply; the
	// global policy ceiling clamps these regardless.
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	IDTokenTTL      time.Duration

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Confidential reports whether the client holds a secret.
func (c *Client) Confidential() bool {
	return c.SecretHash != ""
}

// AllowsGrant reports whether the client is registered for the grant type.
func (c *Client) AllowsGrant(grantType string) bool {
	return slices.Contains(c.GrantTypes, grantType)
}

// AllowsRedirectURI matches by exact byte equality, never prefix or pattern.
func (c *Client) AllowsRedirectURI(uri string) bool {
	return slices.Contains(c.RedirectURIs, uri)
}

// AllowsScope reports whether the scope is in the client's allowed set.
func (c *Client) AllowsScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}
