package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBootstrap(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	boot := &BootstrapService{Store: env.store, Token: "seed-token"}

	req := BootstrapData{
		AdminUsername:      "admin",
		AdminPreferredName: "Admin",
		AdminPassword:      "correct horse battery staple",
		ClientName:         "Console",
		ClientRedirectURIs: []string{"https://console.test/callback"},
		ClientScopes:       []string{"openid", "profile", "ids.admin"},
	}

	t.Run("wrong token is rejected", func(t *testing.T) {
		_, _, _, err := boot.Bootstrap(ctx, "nope", req)
		require.ErrorIs(t, err, ErrBootstrapUnauthorized)

		done, err := boot.IsBootstrapped(ctx)
		require.NoError(t, err)
		require.False(t, done)
	})

	t.Run("empty configured token always refuses", func(t *testing.T) {
		ungated := &BootstrapService{Store: env.store}
		_, _, _, err := ungated.Bootstrap(ctx, "", req)
		require.ErrorIs(t, err, ErrBootstrapUnauthorized)
	})

	var adminID, clientID, clientSecret string

	t.Run("seeds admin, client and catalog", func(t *testing.T) {
		var err error
		adminID, clientID, clientSecret, err = boot.Bootstrap(ctx, "seed-token", req)
		require.NoError(t, err)
		require.NotEmpty(t, adminID)
		require.NotEmpty(t, clientID)
		require.NotEmpty(t, clientSecret)

		user, err := env.store.Users().GetUserByID(ctx, adminID)
		require.NoError(t, err)
		require.Equal(t, "admin", user.Username)

		client, err := env.store.Clients().GetClientByID(ctx, clientID)
		require.NoError(t, err)
		require.True(t, client.Protected)
		require.True(t, client.Confidential())

		resources, err := env.store.Resources().ListResources(ctx)
		require.NoError(t, err)
		require.Len(t, resources, 1)
		require.ElementsMatch(t, []string{"openid", "profile", "ids.admin"}, resources[0].Scopes)

		done, err := boot.IsBootstrapped(ctx)
		require.NoError(t, err)
		require.True(t, done)
	})

	t.Run("client secret authenticates at the token endpoint", func(t *testing.T) {
		pair, err := env.tokens.ExchangeClientCredentials(ctx, clientID, clientSecret, nil)
		require.NoError(t, err)
		require.NotEmpty(t, pair.AccessToken)
	})

	t.Run("second run refuses", func(t *testing.T) {
		_, _, _, err := boot.Bootstrap(ctx, "seed-token", req)
		require.ErrorIs(t, err, ErrBootstrapAlready)
	})
}
