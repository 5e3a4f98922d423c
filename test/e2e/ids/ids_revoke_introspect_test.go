package ids_test

import (
	"testing"

	"github.com/nobcorp/nobids/pkg/idsdk"
	"github.com/stretchr/testify/require"
)

// TestRevokeRefreshToken verifies RFC 7009 revocation tears down the token
// family.
func TestRevokeRefreshToken(t *testing.T) {
	baseURL, cleanup := setupContainer(t)
	defer cleanup()

	client := idsdk.New(baseURL)
	clientID, clientSecret, _ := bootstrapServer(t, client)

	session := performLogin(t, client, clientID, clientSecret)
	refreshToken := session.RefreshToken()

	err := client.RevokeToken(t.Context(), clientID, clientSecret, refreshToken)
	require.NoError(t, err)

	_, err = client.RefreshGrant(t.Context(), clientID, refreshToken)
	assertOAuth2Error(t, err, "invalid_grant", "Revoked refresh token should be unusable")

	t.Logf("Refresh token revoked")
}

// TestRevokeUnknownTokenSucceeds verifies revocation leaks nothing about
// token existence.
func TestRevokeUnknownTokenSucceeds(t *testing.T) {
	baseURL, cleanup := setupContainer(t)
	defer cleanup()

	client := idsdk.New(baseURL)
	clientID, clientSecret, _ := bootstrapServer(t, client)

	err := client.RevokeToken(t.Context(), clientID, clientSecret, "never-issued-token")
	require.NoError(t, err, "Revoking an unknown token should still succeed")

	t.Logf("Unknown token revocation returned success")
}

// TestIntrospectAccessToken verifies the RFC 7662 response for a live
// access token.
func TestIntrospectAccessToken(t *testing.T) {
	baseURL, cleanup := setupContainer(t)
	defer cleanup()

	client := idsdk.New(baseURL)
	clientID, clientSecret, adminUserID := bootstrapServer(t, client)

	session := performLogin(t, client, clientID, clientSecret)
	accessToken, err := session.AccessToken(t.Context())
	require.NoError(t, err)

	introspection, err := client.Introspect(t.Context(), clientID, clientSecret, accessToken)
	require.NoError(t, err)
	require.True(t, introspection.Active, "Token should be active")
	require.Equal(t, "Bearer", introspection.TokenType)
	require.Equal(t, adminUserID, introspection.Sub, "Subject should match the admin user")
	require.NotEmpty(t, introspection.Scope)
	require.NotEmpty(t, introspection.SessionID, "Session ID should be present")
	require.Greater(t, introspection.Exp, introspection.Iat, "Expiry should be after issuance")

	t.Logf("Introspection successful [Active]")
	t.Logf("Subject: %s", introspection.Sub)
	t.Logf("Scopes: %s", introspection.Scope)
}

// TestIntrospectInvalidToken verifies an invalid token reports only
// active=false.
func TestIntrospectInvalidToken(t *testing.T) {
	baseURL, cleanup := setupContainer(t)
	defer cleanup()

	client := idsdk.New(baseURL)
	clientID, clientSecret, _ := bootstrapServer(t, client)

	introspection, err := client.Introspect(t.Context(), clientID, clientSecret, "not.a.valid.jwt")
	require.NoError(t, err, "Introspection should succeed (HTTP 200)")
	require.False(t, introspection.Active, "Invalid token should be inactive")
	require.Empty(t, introspection.Scope, "Inactive response should carry no detail")
	require.Zero(t, introspection.Exp, "Inactive response should carry no detail")

	t.Logf("Invalid token correctly marked [Inactive]")
}

// TestIntrospectRequiresClientAuth verifies introspection is not anonymous.
func TestIntrospectRequiresClientAuth(t *testing.T) {
	baseURL, cleanup := setupContainer(t)
	defer cleanup()

	client := idsdk.New(baseURL)
	clientID, clientSecret, _ := bootstrapServer(t, client)

	session := performLogin(t, client, clientID, clientSecret)
	accessToken, err := session.AccessToken(t.Context())
	require.NoError(t, err)

	_, err = client.Introspect(t.Context(), clientID, "wrong-secret", accessToken)
	assertOAuth2Error(t, err, "invalid_client", "Introspection without valid client credentials should fail")

	t.Logf("Introspection correctly requires client authentication")
}

// TestIntrospectRevokedRefreshToken verifies a revoked refresh token
// introspects as inactive.
func TestIntrospectRevokedRefreshToken(t *testing.T) {
	baseURL, cleanup := setupContainer(t)
	defer cleanup()

	client := idsdk.New(baseURL)
	clientID, clientSecret, _ := bootstrapServer(t, client)

	session := performLogin(t, client, clientID, clientSecret)
	refreshToken := session.RefreshToken()

	introspection, err := client.Introspect(t.Context(), clientID, clientSecret, refreshToken)
	require.NoError(t, err)
	require.True(t, introspection.Active, "Refresh token should introspect as active before revocation")

	require.NoError(t, client.RevokeToken(t.Context(), clientID, clientSecret, refreshToken))

	introspection, err = client.Introspect(t.Context(), clientID, clientSecret, refreshToken)
	require.NoError(t, err)
	require.False(t, introspection.Active, "Revoked refresh token should be inactive")

	t.Logf("Revoked refresh token correctly marked [Inactive]")
}
