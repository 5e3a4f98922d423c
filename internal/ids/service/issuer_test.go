package service

import (
	"testing"
	"time"

	"github.com/nobcorp/nobids/internal/ids/domain"
	"github.com/stretchr/testify/require"
)

func TestTokenPolicyClamping(t *testing.T) {
	t.Parallel()

	policy := TokenPolicy{
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenTTL:    7 * 24 * time.Hour,
		IDTokenTTL:         15 * time.Minute,
		MaxAccessTokenTTL:  time.Hour,
		MaxRefreshTokenTTL: 30 * 24 * time.Hour,
	}

	t.Run("zero override means the default", func(t *testing.T) {
		require.Equal(t, 15*time.Minute, policy.AccessTTL(domain.Client{}))
		require.Equal(t, 7*24*time.Hour, policy.RefreshTTL(domain.Client{}))
	})

	t.Run("override inside the ceiling wins", func(t *testing.T) {
		client := domain.Client{AccessTokenTTL: 30 * time.Minute, RefreshTokenTTL: 14 * 24 * time.Hour}
		require.Equal(t, 30*time.Minute, policy.AccessTTL(client))
		require.Equal(t, 14*24*time.Hour, policy.RefreshTTL(client))
	})

	t.Run("override past the ceiling is clamped", func(t *testing.T) {
		client := domain.Client{AccessTokenTTL: 6 * time.Hour, RefreshTokenTTL: 365 * 24 * time.Hour}
		require.Equal(t, time.Hour, policy.AccessTTL(client))
		require.Equal(t, 30*24*time.Hour, policy.RefreshTTL(client))
	})

	t.Run("without a ceiling the default caps overrides", func(t *testing.T) {
		bare := TokenPolicy{AccessTokenTTL: 15 * time.Minute}
		client := domain.Client{AccessTokenTTL: 6 * time.Hour}
		require.Equal(t, 15*time.Minute, bare.AccessTTL(client))
	})
}

func TestIssuerSkipsIDTokenWithoutOpenID(t *testing.T) {
	env := newTestEnv(t)

	idToken, err := env.issuer.IssueIDToken(IssueRequest{
		Subject:  "user-1",
		Client:   domain.Client{ID: "client-1"},
		Scopes:   []string{"profile"},
		AuthTime: time.Now(),
	}, time.Now())
	require.NoError(t, err)
	require.Empty(t, idToken)
}
