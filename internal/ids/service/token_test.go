package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nobcorp/nobids/internal/ids/domain"
	"github.com/nobcorp/nobids/pkg/cryptox"
	"github.com/nobcorp/nobids/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestExchangeAuthorizationCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedCatalog(t, "openid", "profile")
	client, secret := env.seedClient(t, true,
		[]string{"https://app.example/callback"},
		[]string{domain.GrantAuthorizationCode, domain.GrantRefreshToken},
		[]string{"openid", "profile"},
	)
	env.seedUser(t, "alice", "correct horse battery")

	newCode := func(t *testing.T) string {
		out := env.runCodeFlow(t, BeginRequest{
			ResponseType: "code",
			ClientID:     client.ID,
			RedirectURI:  "https://app.example/callback",
			Scopes:       []string{"openid", "profile"},
			Nonce:        "nonce-abc",
		}, "alice", "correct horse battery")
		return out.Code
	}

	t.Run("issues access, id and refresh tokens", func(t *testing.T) {
		pair, err := env.tokens.ExchangeAuthorizationCode(ctx, client.ID, secret, newCode(t), "https://app.example/callback", "")
		require.NoError(t, err)
		require.NotEmpty(t, pair.AccessToken)
		require.NotEmpty(t, pair.RefreshToken)
		require.NotEmpty(t, pair.IDToken)
		require.Equal(t, "Bearer", pair.TokenType)

		claims, err := env.keyring.Verifier().Verify(pair.IDToken)
		require.NoError(t, err)
		require.Equal(t, "nonce-abc", claims.Nonce)
		require.NotZero(t, claims.AuthTime)
	})

	t.Run("wrong redirect_uri", func(t *testing.T) {
		_, err := env.tokens.ExchangeAuthorizationCode(ctx, client.ID, secret, newCode(t), "https://evil.example/cb", "")
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("wrong client secret", func(t *testing.T) {
		_, err := env.tokens.ExchangeAuthorizationCode(ctx, client.ID, "bad-secret", newCode(t), "https://app.example/callback", "")
		require.ErrorIs(t, err, ErrInvalidClient)
	})

	t.Run("code bound to issuing client", func(t *testing.T) {
		other, otherSecret := env.seedClient(t, true,
			[]string{"https://other.example/cb"},
			[]string{domain.GrantAuthorizationCode},
			[]string{"openid"},
		)
		_, err := env.tokens.ExchangeAuthorizationCode(ctx, other.ID, otherSecret, newCode(t), "https://app.example/callback", "")
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("replay revokes what the winner got", func(t *testing.T) {
		code := newCode(t)
		pair, err := env.tokens.ExchangeAuthorizationCode(ctx, client.ID, secret, code, "https://app.example/callback", "")
		require.NoError(t, err)

		_, err = env.tokens.ExchangeAuthorizationCode(ctx, client.ID, secret, code, "https://app.example/callback", "")
		require.ErrorIs(t, err, ErrInvalidGrant)

		// The refresh token from the first redemption must be dead now.
		_, err = env.tokens.ExchangeRefreshToken(ctx, client.ID, secret, pair.RefreshToken, nil)
		require.ErrorIs(t, err, ErrInvalidGrant)
	})
}

func TestExchangeAuthorizationCodeSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedCatalog(t, "openid")
	// Public client so the concurrent exchanges skip argon2 verification.
	client, _ := env.seedClient(t, false,
		[]string{"https://spa.example/cb"},
		[]string{domain.GrantAuthorizationCode, domain.GrantRefreshToken},
		[]string{"openid"},
	)
	userID := env.seedUser(t, "racer", "correct horse battery")

	verifier := "concurrent-code-verifier"
	code := cryptox.MustGenerateToken(cryptox.TokenSize256)
	now := time.Now().UTC()
	require.NoError(t, env.store.AuthorizationCodes().CreateAuthorizationCode(ctx, domain.AuthorizationCode{
		ID:                  idx.New().String(),
		UserID:              userID,
		ClientID:            client.ID,
		CodeHash:            cryptox.FingerprintToken(code),
		RedirectURI:         "https://spa.example/cb",
		Scopes:              []string{"openid"},
		SessionID:           idx.New().String(),
		AMR:                 []string{"pwd"},
		CodeChallenge:       pkceChallenge(verifier),
		CodeChallengeMethod: "S256",
		AuthTime:            now,
		ExpiresAt:           now.Add(time.Minute),
		CreatedAt:           now,
	}))

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.tokens.ExchangeAuthorizationCode(ctx, client.ID, "", code, "https://spa.example/cb", verifier)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, succeeded)
}

func TestExchangeRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedCatalog(t, "openid", "profile")
	client, secret := env.seedClient(t, true,
		[]string{"https://app.example/callback"},
		[]string{domain.GrantAuthorizationCode, domain.GrantRefreshToken},
		[]string{"openid", "profile"},
	)
	env.seedUser(t, "alice", "correct horse battery")

	freshPair := func(t *testing.T) *domain.TokenPair {
		out := env.runCodeFlow(t, BeginRequest{
			ResponseType: "code",
			ClientID:     client.ID,
			RedirectURI:  "https://app.example/callback",
			Scopes:       []string{"openid", "profile"},
		}, "alice", "correct horse battery")
		pair, err := env.tokens.ExchangeAuthorizationCode(ctx, client.ID, secret, out.Code, "https://app.example/callback", "")
		require.NoError(t, err)
		return pair
	}

	t.Run("rotates and keeps the family alive", func(t *testing.T) {
		pair := freshPair(t)

		next, err := env.tokens.ExchangeRefreshToken(ctx, client.ID, secret, pair.RefreshToken, nil)
		require.NoError(t, err)
		require.NotEmpty(t, next.AccessToken)
		require.NotEmpty(t, next.RefreshToken)
		require.NotEqual(t, pair.RefreshToken, next.RefreshToken)

		again, err := env.tokens.ExchangeRefreshToken(ctx, client.ID, secret, next.RefreshToken, nil)
		require.NoError(t, err)
		require.NotEmpty(t, again.RefreshToken)
	})

	t.Run("narrowing allowed, widening rejected", func(t *testing.T) {
		pair := freshPair(t)

		narrowed, err := env.tokens.ExchangeRefreshToken(ctx, client.ID, secret, pair.RefreshToken, []string{"openid"})
		require.NoError(t, err)
		require.Equal(t, "openid", narrowed.Scope)

		_, err = env.tokens.ExchangeRefreshToken(ctx, client.ID, secret, narrowed.RefreshToken, []string{"openid", "profile"})
		require.ErrorIs(t, err, ErrInvalidScope)
	})

	t.Run("reuse revokes the whole family", func(t *testing.T) {
		pair := freshPair(t)

		next, err := env.tokens.ExchangeRefreshToken(ctx, client.ID, secret, pair.RefreshToken, nil)
		require.NoError(t, err)

		// Presenting the rotated predecessor again is reuse.
		_, err = env.tokens.ExchangeRefreshToken(ctx, client.ID, secret, pair.RefreshToken, nil)
		require.ErrorIs(t, err, ErrInvalidGrant)

		// The descendant minted before the reuse is dead with the family.
		_, err = env.tokens.ExchangeRefreshToken(ctx, client.ID, secret, next.RefreshToken, nil)
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := env.tokens.ExchangeRefreshToken(ctx, client.ID, secret, "nope", nil)
		require.ErrorIs(t, err, ErrInvalidGrant)
	})
}

func TestExchangeClientCredentials(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedCatalog(t, "ids.admin", "profile")
	client, secret := env.seedClient(t, true,
		nil,
		[]string{domain.GrantClientCredentials},
		[]string{"ids.admin", "profile"},
	)

	t.Run("issues an access token without refresh", func(t *testing.T) {
		pair, err := env.tokens.ExchangeClientCredentials(ctx, client.ID, secret, []string{"ids.admin"})
		require.NoError(t, err)
		require.NotEmpty(t, pair.AccessToken)
		require.Empty(t, pair.RefreshToken)
		require.Equal(t, "ids.admin", pair.Scope)

		claims, err := env.keyring.Verifier().Verify(pair.AccessToken)
		require.NoError(t, err)
		require.Equal(t, client.ID, claims.Subject)
		require.Equal(t, []string{"client"}, claims.AMR)
	})

	t.Run("empty request defaults to all client scopes", func(t *testing.T) {
		pair, err := env.tokens.ExchangeClientCredentials(ctx, client.ID, secret, nil)
		require.NoError(t, err)
		require.ElementsMatch(t, []string{"ids.admin", "profile"}, claimsScopes(t, env, pair.AccessToken))
	})

	t.Run("public client rejected", func(t *testing.T) {
		public, _ := env.seedClient(t, false,
			[]string{"https://spa.example/cb"},
			[]string{domain.GrantClientCredentials},
			[]string{"profile"},
		)
		_, err := env.tokens.ExchangeClientCredentials(ctx, public.ID, "", nil)
		require.ErrorIs(t, err, ErrInvalidClient)
	})

	t.Run("wrong secret rejected", func(t *testing.T) {
		_, err := env.tokens.ExchangeClientCredentials(ctx, client.ID, "wrong", nil)
		require.ErrorIs(t, err, ErrInvalidClient)
	})
}

func claimsScopes(t *testing.T, env *testEnv, token string) []string {
	t.Helper()
	claims, err := env.keyring.Verifier().Verify(token)
	require.NoError(t, err)
	return claims.Scopes
}

func TestRevokeAndIntrospect(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedCatalog(t, "openid")
	client, secret := env.seedClient(t, true,
		[]string{"https://app.example/callback"},
		[]string{domain.GrantAuthorizationCode, domain.GrantRefreshToken},
		[]string{"openid"},
	)
	env.seedUser(t, "alice", "correct horse battery")

	out := env.runCodeFlow(t, BeginRequest{
		ResponseType: "code",
		ClientID:     client.ID,
		RedirectURI:  "https://app.example/callback",
		Scopes:       []string{"openid"},
	}, "alice", "correct horse battery")
	pair, err := env.tokens.ExchangeAuthorizationCode(ctx, client.ID, secret, out.Code, "https://app.example/callback", "")
	require.NoError(t, err)

	t.Run("access token introspects active", func(t *testing.T) {
		intro, err := env.tokens.Introspect(ctx, client.ID, secret, pair.AccessToken, "")
		require.NoError(t, err)
		require.True(t, intro.Active)
		require.Equal(t, "access_token", intro.TokenType)
		require.Equal(t, client.ID, intro.ClientID)
	})

	t.Run("refresh token introspects active", func(t *testing.T) {
		intro, err := env.tokens.Introspect(ctx, client.ID, secret, pair.RefreshToken, "refresh_token")
		require.NoError(t, err)
		require.True(t, intro.Active)
		require.Equal(t, "refresh_token", intro.TokenType)
	})

	t.Run("garbage introspects inactive without error", func(t *testing.T) {
		intro, err := env.tokens.Introspect(ctx, client.ID, secret, "not-a-token", "")
		require.NoError(t, err)
		require.False(t, intro.Active)
	})

	t.Run("revocation kills the family and is idempotent", func(t *testing.T) {
		require.NoError(t, env.tokens.Revoke(ctx, client.ID, secret, pair.RefreshToken))
		require.NoError(t, env.tokens.Revoke(ctx, client.ID, secret, pair.RefreshToken))
		require.NoError(t, env.tokens.Revoke(ctx, client.ID, secret, "unknown-token"))

		intro, err := env.tokens.Introspect(ctx, client.ID, secret, pair.RefreshToken, "refresh_token")
		require.NoError(t, err)
		require.False(t, intro.Active)

		_, err = env.tokens.ExchangeRefreshToken(ctx, client.ID, secret, pair.RefreshToken, nil)
		require.ErrorIs(t, err, ErrInvalidGrant)
	})
}
