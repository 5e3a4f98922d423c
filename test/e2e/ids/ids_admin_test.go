package ids_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/nobcorp/nobids/pkg/idsdk"
	"github.com/stretchr/testify/require"
)

// adminRequest performs an authenticated JSON request against the admin
// surface, which the SDK does not wrap.
func adminRequest(t *testing.T, session *idsdk.Session, baseURL, method, path string, body, out any) int {
	t.Helper()
	ctx := context.Background()

	accessToken, err := session.AccessToken(ctx)
	require.NoError(t, err)

	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, payload)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// TestAdminClientLifecycle registers, lists, rescopes and deletes a client.
func TestAdminClientLifecycle(t *testing.T) {
	baseURL, cleanup := setupContainer(t)
	defer cleanup()

	client := idsdk.New(baseURL)
	clientID, clientSecret, _ := bootstrapServer(t, client)
	session := performLogin(t, client, clientID, clientSecret)

	// Register a new public client
	var created struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	}
	status := adminRequest(t, session, baseURL, http.MethodPost, "/v1/admin/clients", map[string]any{
		"name":          "spa-client",
		"confidential":  false,
		"redirect_uris": []string{"http://localhost/spa"},
		"scopes":        []string{"openid", "profile"},
	}, &created)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, created.ClientID)
	require.Empty(t, created.ClientSecret, "Public clients get no secret")

	// It shows up in the listing
	var listing struct {
		Clients []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"clients"`
	}
	status = adminRequest(t, session, baseURL, http.MethodGet, "/v1/admin/clients", nil, &listing)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, listing.Clients, 2, "Bootstrap client plus the new one")

	// Narrow its scopes
	status = adminRequest(t, session, baseURL, http.MethodPut,
		"/v1/admin/clients/"+created.ClientID+"/scopes",
		map[string]any{"scopes": []string{"profile"}}, nil)
	require.Equal(t, http.StatusNoContent, status)

	// Delete it
	status = adminRequest(t, session, baseURL, http.MethodDelete, "/v1/admin/clients/"+created.ClientID, nil, nil)
	require.Equal(t, http.StatusNoContent, status)

	// The bootstrap client is protected and refuses deletion
	status = adminRequest(t, session, baseURL, http.MethodDelete, "/v1/admin/clients/"+clientID, nil, nil)
	require.Equal(t, http.StatusForbidden, status)

	t.Logf("Client lifecycle complete")
}

// TestAdminResourceRegistration registers a resource and checks its scopes
// enter the catalog.
func TestAdminResourceRegistration(t *testing.T) {
	baseURL, cleanup := setupContainer(t)
	defer cleanup()

	client := idsdk.New(baseURL)
	clientID, clientSecret, _ := bootstrapServer(t, client)
	session := performLogin(t, client, clientID, clientSecret)

	var created struct {
		ID string `json:"id"`
	}
	status := adminRequest(t, session, baseURL, http.MethodPost, "/v1/admin/resources", map[string]any{
		"name":         "orders-api",
		"display_name": "Orders API",
		"scopes":       []string{"orders.read", "orders.write"},
	}, &created)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, created.ID)

	var listing struct {
		Resources []struct {
			Name   string   `json:"name"`
			Scopes []string `json:"scopes"`
		} `json:"resources"`
	}
	status = adminRequest(t, session, baseURL, http.MethodGet, "/v1/admin/resources", nil, &listing)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, listing.Resources, 2, "Bootstrap resource plus the new one")

	t.Logf("Resource registered")
}

// TestAdminKeyRotation rotates the signing key and checks old tokens keep
// verifying while new tokens use the new key.
func TestAdminKeyRotation(t *testing.T) {
	baseURL, cleanup := setupContainer(t)
	defer cleanup()

	client := idsdk.New(baseURL)
	clientID, clientSecret, _ := bootstrapServer(t, client)
	session := performLogin(t, client, clientID, clientSecret)

	oldToken, err := session.AccessToken(t.Context())
	require.NoError(t, err)

	var rotated struct {
		NewKey struct {
			Kid string `json:"kid"`
		} `json:"new_key"`
	}
	status := adminRequest(t, session, baseURL, http.MethodPost, "/v1/admin/keys/rotate",
		map[string]any{"retire_existing": false}, &rotated)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, rotated.NewKey.Kid)

	// Tokens signed before the rotation still verify
	userinfo, err := client.GetUserinfo(t.Context(), oldToken)
	require.NoError(t, err, "Pre-rotation token should keep verifying")
	require.Equal(t, adminUsername, userinfo.PreferredUsername)

	// The key listing shows more than one key now
	var listing struct {
		Keys []struct {
			Kid     string `json:"kid"`
			Signing bool   `json:"signing"`
		} `json:"keys"`
	}
	status = adminRequest(t, session, baseURL, http.MethodGet, "/v1/admin/keys", nil, &listing)
	require.Equal(t, http.StatusOK, status)
	require.GreaterOrEqual(t, len(listing.Keys), 2)

	t.Logf("Key rotated to %s, old tokens still verify", rotated.NewKey.Kid)
}

// TestAdminRequiresScope verifies the admin surface rejects tokens without
// the admin scope.
func TestAdminRequiresScope(t *testing.T) {
	baseURL, cleanup := setupContainer(t)
	defer cleanup()

	client := idsdk.New(baseURL)
	clientID, clientSecret, _ := bootstrapServer(t, client)

	// A client-credentials token scoped to profile only
	limited, err := client.AuthenticateWithClientCredentials(t.Context(), clientID, clientSecret, []string{"profile"})
	require.NoError(t, err)

	status := adminRequest(t, limited, baseURL, http.MethodGet, "/v1/admin/clients", nil, nil)
	require.Equal(t, http.StatusForbidden, status)

	// And no token at all
	resp, err := http.Get(fmt.Sprintf("%s/v1/admin/clients", baseURL))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	t.Logf("Admin surface correctly requires the admin scope")
}
