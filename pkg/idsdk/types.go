package idsdk

import (
	"github.com/nobcorp/nobids/pkg/jwtx"
)

// ErrorResponse is the wire form of an OAuth2 error per RFC 6749. Used
// internally for parsing; callers receive OAuth2Error values instead.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// TokenResponse is the token endpoint response per RFC 6749.
type TokenResponse struct {
	// AccessToken is the JWT access token used to authenticate API requests.
	AccessToken string `json:"access_token"`

	// RefreshToken is the opaque rotating refresh token, when granted.
	RefreshToken string `json:"refresh_token,omitempty"`

	// IDToken is the OpenID Connect ID token, present when the "openid"
	// scope was granted.
	IDToken string `json:"id_token,omitempty"`

	// TokenType is always "Bearer".
	TokenType string `json:"token_type"`

	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int `json:"expires_in"`

	// Scope is the space-delimited granted scope set.
	Scope string `json:"scope,omitempty"`
}

// IntrospectionResponse is the RFC 7662 introspection response. For an
// inactive token only Active is populated.
type IntrospectionResponse struct {
	Active bool `json:"active"`

	Scope     string   `json:"scope,omitempty"`
	ClientID  string   `json:"client_id,omitempty"`
	TokenType string   `json:"token_type,omitempty"`
	Exp       int64    `json:"exp,omitempty"`
	Iat       int64    `json:"iat,omitempty"`
	Nbf       int64    `json:"nbf,omitempty"`
	Sub       string   `json:"sub,omitempty"`
	Aud       []string `json:"aud,omitempty"`
	Iss       string   `json:"iss,omitempty"`
	Jti       string   `json:"jti,omitempty"`
	SessionID string   `json:"sid,omitempty"`
	AMR       []string `json:"amr,omitempty"`
}

// DiscoveryDocument is the OpenID Provider metadata served from
// /.well-known/openid-configuration.
type DiscoveryDocument struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	UserinfoEndpoint                  string   `json:"userinfo_endpoint,omitempty"`
	JwksURI                           string   `json:"jwks_uri"`
	RevocationEndpoint                string   `json:"revocation_endpoint,omitempty"`
	IntrospectionEndpoint             string   `json:"introspection_endpoint,omitempty"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported,omitempty"`
	SubjectTypesSupported             []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported,omitempty"`
	ClaimsSupported                   []string `json:"claims_supported,omitempty"`
}

// JWKSResponse is the key set served from /.well-known/jwks.json.
type JWKSResponse = jwtx.JWKS

// UserinfoResponse is the OpenID Connect userinfo payload.
type UserinfoResponse struct {
	Sub               string `json:"sub"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	Name              string `json:"name,omitempty"`
	UpdatedAt         int64  `json:"updated_at,omitempty"`
}

// AuthorizeCallback captures the parameters the server appended to the
// client redirect URI after an authorization flow finished.
type AuthorizeCallback struct {
	// Code is the single-use authorization code on success.
	Code string

	// State echoes the client-supplied state parameter.
	State string

	// Error and ErrorDescription are set when the flow failed.
	Error            string
	ErrorDescription string
}

// LoginChallenge is returned by the authorize endpoint when the flow is
// suspended waiting for end-user credentials.
type LoginChallenge struct {
	// FlowID correlates the suspended flow across login and consent.
	FlowID string `json:"flow_id"`

	// Prompt indicates the pending interaction: "login" or "consent".
	Prompt string `json:"prompt"`

	// Client and Scopes describe what is being authorized, for rendering
	// a consent page.
	Client string   `json:"client,omitempty"`
	Scopes []string `json:"scopes,omitempty"`
}

// BootstrapRequest seeds an empty deployment with a first admin user and a
// management client.
type BootstrapRequest struct {
	// BootstrapToken is the pre-shared token the deployment was configured
	// with. Requests without it are refused.
	BootstrapToken string `json:"bootstrap_token"`

	// AdminUsername is the username for the initial admin user.
	AdminUsername string `json:"admin_username"`

	// AdminPassword is the password for the admin user.
	AdminPassword string `json:"admin_password"`

	// ClientName is the name for the initial management client.
	ClientName string `json:"client_name"`

	// ClientRedirectURIs registers callback URIs for the management client,
	// for deployments that drive the code flow with it.
	ClientRedirectURIs []string `json:"client_redirect_uris,omitempty"`

	// ClientScopes are the scopes granted to the management client.
	ClientScopes []string `json:"client_scopes"`
}

// BootstrapResponse returns the created identifiers and the one-time client
// secret.
type BootstrapResponse struct {
	AdminUserID  string `json:"admin_user_id"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}
