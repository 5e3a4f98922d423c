package ids_test

import (
	"testing"

	"github.com/nobcorp/nobids/pkg/idsdk"
	"github.com/stretchr/testify/require"
)

// TestAuthorizationCodeFlow drives the full flow: begin, login, consent,
// code redemption.
func TestAuthorizationCodeFlow(t *testing.T) {
	baseURL, cleanup := setupContainer(t)
	defer cleanup()

	client := idsdk.New(baseURL)
	clientID, clientSecret, adminUserID := bootstrapServer(t, client)

	callback, verifier := authorizeCode(t, client, clientID, clientScopes)

	tokenResp, err := client.AuthorizationCodeGrant(t.Context(), clientID, clientSecret, callback.Code, redirectURI, verifier)
	require.NoError(t, err)
	assertTokenResponse(t, tokenResp)
	require.NotEmpty(t, tokenResp.RefreshToken, "Code flow should grant a refresh token")
	require.NotEmpty(t, tokenResp.IDToken, "openid scope should grant an ID token")

	// The access token should introspect to the admin user
	introspection, err := client.Introspect(t.Context(), clientID, clientSecret, tokenResp.AccessToken)
	require.NoError(t, err)
	require.True(t, introspection.Active)
	require.Equal(t, adminUserID, introspection.Sub, "Subject should be the admin user")

	t.Logf("Authorization code flow successful")
	t.Logf("Granted scopes: %s", tokenResp.Scope)
}

// TestAuthorizationCodeSingleUse verifies a code cannot be redeemed twice.
func TestAuthorizationCodeSingleUse(t *testing.T) {
	baseURL, cleanup := setupContainer(t)
	defer cleanup()

	client := idsdk.New(baseURL)
	clientID, clientSecret, _ := bootstrapServer(t, client)

	callback, verifier := authorizeCode(t, client, clientID, clientScopes)

	first, err := client.AuthorizationCodeGrant(t.Context(), clientID, clientSecret, callback.Code, redirectURI, verifier)
	require.NoError(t, err)
	assertTokenResponse(t, first)

	_, err = client.AuthorizationCodeGrant(t.Context(), clientID, clientSecret, callback.Code, redirectURI, verifier)
	assertOAuth2Error(t, err, "invalid_grant", "Replayed code should be rejected")

	// The replay burns the tokens the first redemption granted
	_, err = client.RefreshGrant(t.Context(), clientID, first.RefreshToken)
	assertOAuth2Error(t, err, "invalid_grant", "Tokens from a replayed code should be revoked")

	t.Logf("Code replay rejected and granted tokens revoked")
}

// TestAuthorizationCodeWrongVerifier verifies PKCE enforcement at
// redemption.
func TestAuthorizationCodeWrongVerifier(t *testing.T) {
	baseURL, cleanup := setupContainer(t)
	defer cleanup()

	client := idsdk.New(baseURL)
	clientID, clientSecret, _ := bootstrapServer(t, client)

	callback, _ := authorizeCode(t, client, clientID, clientScopes)

	_, err := client.AuthorizationCodeGrant(t.Context(), clientID, clientSecret, callback.Code, redirectURI, "not-the-right-verifier-but-long-enough-to-be-plausible")
	assertOAuth2Error(t, err, "invalid_grant", "Wrong PKCE verifier should be rejected")

	t.Logf("Wrong verifier rejected")
}

// TestAuthorizeWrongPassword verifies login failures surface as
// invalid_grant without finishing the flow.
func TestAuthorizeWrongPassword(t *testing.T) {
	baseURL, cleanup := setupContainer(t)
	defer cleanup()

	client := idsdk.New(baseURL)
	clientID, _, _ := bootstrapServer(t, client)

	pkce, err := idsdk.GeneratePKCEChallenge()
	require.NoError(t, err)

	_, challenge, err := client.BeginAuthorize(t.Context(), idsdk.AuthorizeRequest{
		ClientID:    clientID,
		RedirectURI: redirectURI,
		Scopes:      clientScopes,
		PKCE:        pkce,
	})
	require.NoError(t, err)
	require.NotNil(t, challenge, "Fresh browser should be challenged to log in")
	require.Equal(t, "login", challenge.Prompt)

	_, _, err = client.CompleteLogin(t.Context(), challenge.FlowID, adminUsername, "WrongPassword!", "")
	assertOAuth2Error(t, err, "invalid_grant", "Wrong password should be rejected")

	t.Logf("Wrong password rejected")
}

// TestAuthorizeConsentDenied verifies a denied consent ends the flow with
// access_denied.
func TestAuthorizeConsentDenied(t *testing.T) {
	baseURL, cleanup := setupContainer(t)
	defer cleanup()

	client := idsdk.New(baseURL)
	clientID, _, _ := bootstrapServer(t, client)

	pkce, err := idsdk.GeneratePKCEChallenge()
	require.NoError(t, err)

	_, challenge, err := client.BeginAuthorize(t.Context(), idsdk.AuthorizeRequest{
		ClientID:    clientID,
		RedirectURI: redirectURI,
		Scopes:      clientScopes,
		PKCE:        pkce,
	})
	require.NoError(t, err)
	require.NotNil(t, challenge)

	_, challenge, err = client.CompleteLogin(t.Context(), challenge.FlowID, adminUsername, adminPassword, "")
	require.NoError(t, err)
	require.NotNil(t, challenge, "Login should suspend the flow on consent")
	require.Equal(t, "consent", challenge.Prompt)
	require.Equal(t, clientName, challenge.Client, "Challenge should name the client for the consent page")

	_, _, err = client.CompleteConsent(t.Context(), challenge.FlowID, false)
	assertOAuth2Error(t, err, "access_denied", "Denied consent should end the flow")

	t.Logf("Consent denial correctly ends the flow")
}

// TestAuthorizeUnknownClient verifies the server never redirects for an
// unknown client.
func TestAuthorizeUnknownClient(t *testing.T) {
	baseURL, cleanup := setupContainer(t)
	defer cleanup()

	client := idsdk.New(baseURL)
	bootstrapServer(t, client)

	_, _, err := client.BeginAuthorize(t.Context(), idsdk.AuthorizeRequest{
		ClientID:    "no-such-client",
		RedirectURI: redirectURI,
		Scopes:      clientScopes,
	})
	assertOAuth2Error(t, err, "invalid_client", "Unknown client should be rejected without a redirect")

	t.Logf("Unknown client rejected")
}

// TestAuthorizeUnregisteredRedirect verifies redirect URIs are matched
// exactly against the registered set.
func TestAuthorizeUnregisteredRedirect(t *testing.T) {
	baseURL, cleanup := setupContainer(t)
	defer cleanup()

	client := idsdk.New(baseURL)
	clientID, _, _ := bootstrapServer(t, client)

	_, _, err := client.BeginAuthorize(t.Context(), idsdk.AuthorizeRequest{
		ClientID:    clientID,
		RedirectURI: "http://evil.example/callback",
		Scopes:      clientScopes,
	})
	assertOAuth2Error(t, err, "invalid_request", "Unregistered redirect URI should be rejected")

	t.Logf("Unregistered redirect URI rejected")
}
