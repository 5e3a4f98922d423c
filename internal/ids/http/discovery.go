package http

import (
	"net/http"

	"github.com/nobcorp/nobids/pkg/httpx"
	"github.com/nobcorp/nobids/pkg/idsdk"
)

// DiscoveryHandler serves the OpenID Provider metadata. The document is
// static per deployment, derived from the issuer URL and signing algorithm.
//
//	@Summary		OpenID Provider Configuration
//	@Description	Returns the OpenID Connect discovery document.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	idsdk.DiscoveryDocument
//	@Router			/.well-known/openid-configuration [get]
func DiscoveryHandler(issuer, algorithm string) http.HandlerFunc {
	doc := idsdk.DiscoveryDocument{
		Issuer:                issuer,
		AuthorizationEndpoint: issuer + "/v1/oauth2/authorize",
		TokenEndpoint:         issuer + "/v1/oauth2/token",
		UserinfoEndpoint:      issuer + "/v1/userinfo",
		JwksURI:               issuer + "/.well-known/jwks.json",
		RevocationEndpoint:    issuer + "/v1/oauth2/revoke",
		IntrospectionEndpoint: issuer + "/v1/oauth2/introspect",
		ScopesSupported:       []string{"openid", "profile"},
		ResponseTypesSupported: []string{
			"code",
			"token",
		},
		GrantTypesSupported: []string{
			"authorization_code",
			"refresh_token",
			"client_credentials",
			"implicit",
		},
		SubjectTypesSupported:             []string{"public"},
		IDTokenSigningAlgValuesSupported:  []string{algorithm},
		TokenEndpointAuthMethodsSupported: []string{"client_secret_basic", "client_secret_post"},
		CodeChallengeMethodsSupported:     []string{"S256", "plain"},
		ClaimsSupported: []string{
			"iss", "sub", "aud", "exp", "iat", "nonce", "auth_time", "sid", "amr",
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, doc)
	}
}
