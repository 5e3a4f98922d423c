package ids_test

import (
	"testing"

	"github.com/nobcorp/nobids/pkg/idsdk"
)

// TestBootstrapSuccess verifies successful bootstrap creates the admin user
// and management client.
func TestBootstrapSuccess(t *testing.T) {
	baseURL, cleanup := setupContainer(t)
	defer cleanup()

	client := idsdk.New(baseURL)

	clientID, _, adminUserID := bootstrapServer(t, client)

	t.Logf("Bootstrap successful")
	t.Logf("Admin User ID: %s", adminUserID)
	t.Logf("Client ID: %s", clientID)
}

// TestBootstrapOnlyOnce verifies that bootstrap can only be called once.
func TestBootstrapOnlyOnce(t *testing.T) {
	baseURL, cleanup := setupContainer(t)
	defer cleanup()

	client := idsdk.New(baseURL)

	bootstrapServer(t, client)

	// Second bootstrap should be rejected even with the correct token
	_, err := client.Bootstrap(t.Context(), idsdk.BootstrapRequest{
		BootstrapToken: bootstrapToken,
		AdminUsername:  "another-admin",
		AdminPassword:  "AnotherPassword123!",
		ClientName:     "another-client",
		ClientScopes:   []string{"profile"},
	})
	assertOAuth2Error(t, err, "unauthorized", "Second bootstrap should be rejected")

	t.Logf("Second bootstrap correctly rejected")
}

// TestBootstrapWrongToken verifies the pre-shared token gate.
func TestBootstrapWrongToken(t *testing.T) {
	baseURL, cleanup := setupContainer(t)
	defer cleanup()

	client := idsdk.New(baseURL)

	_, err := client.Bootstrap(t.Context(), idsdk.BootstrapRequest{
		BootstrapToken: "wrong-token",
		AdminUsername:  adminUsername,
		AdminPassword:  adminPassword,
		ClientName:     clientName,
		ClientScopes:   clientScopes,
	})
	assertOAuth2Error(t, err, "unauthorized", "Bootstrap with wrong token should be rejected")

	// The server must remain bootstrappable with the right token
	bootstrapServer(t, client)

	t.Logf("Wrong token rejected, correct token still accepted")
}
