package ids_test

import (
	"testing"

	"github.com/nobcorp/nobids/pkg/idsdk"
	"github.com/stretchr/testify/require"
)

// TestUserinfo verifies the OpenID Connect userinfo endpoint.
func TestUserinfo(t *testing.T) {
	baseURL, cleanup := setupContainer(t)
	defer cleanup()

	client := idsdk.New(baseURL)
	clientID, clientSecret, adminUserID := bootstrapServer(t, client)

	session := performLogin(t, client, clientID, clientSecret)
	accessToken, err := session.AccessToken(t.Context())
	require.NoError(t, err)

	userinfo, err := client.GetUserinfo(t.Context(), accessToken)
	require.NoError(t, err)
	require.Equal(t, adminUserID, userinfo.Sub, "Subject should be the admin user")
	require.Equal(t, adminUsername, userinfo.PreferredUsername)

	t.Logf("Userinfo successful")
	t.Logf("Subject: %s", userinfo.Sub)
}

// TestUserinfoRequiresToken verifies the endpoint rejects anonymous and
// garbage tokens.
func TestUserinfoRequiresToken(t *testing.T) {
	baseURL, cleanup := setupContainer(t)
	defer cleanup()

	client := idsdk.New(baseURL)
	bootstrapServer(t, client)

	_, err := client.GetUserinfo(t.Context(), "")
	require.Error(t, err, "Userinfo without a token should fail")

	_, err = client.GetUserinfo(t.Context(), "not.a.valid.jwt")
	require.Error(t, err, "Userinfo with a garbage token should fail")

	t.Logf("Userinfo correctly requires a valid bearer token")
}
