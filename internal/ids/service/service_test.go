package service

import (
	"context"
	"testing"
	"time"

	"github.com/nobcorp/nobids/internal/ids/domain"
	"github.com/nobcorp/nobids/internal/ids/store"
	"github.com/nobcorp/nobids/internal/ids/store/drivers/sqlite"
	"github.com/nobcorp/nobids/pkg/cryptox"
	"github.com/nobcorp/nobids/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const testIssuer = "https://ids.test"

type testEnv struct {
	store     store.Store
	keyring   *jwtx.KeyManager
	registry  *RegistryService
	users     *UserService
	sessions  *SessionService
	issuer    *Issuer
	authorize *AuthorizeService
	tokens    *TokenService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Algorithm: jwtx.AlgorithmEdDSA,
		Issuer:    testIssuer,
	})
	require.NoError(t, err)

	sealer, err := cryptox.NewEphemeralSealer()
	require.NoError(t, err)

	registry := &RegistryService{Store: st}
	users := &UserService{Store: st, Sealer: sealer, TOTPIssuer: "ids.test"}
	sessions := NewSessionService(st, 30*time.Minute, 12*time.Hour, 0)
	t.Cleanup(sessions.Stop)

	issuer := &Issuer{Keyring: km, Issuer: testIssuer, Policy: DefaultTokenPolicy()}

	env := &testEnv{
		store:    st,
		keyring:  km,
		registry: registry,
		users:    users,
		sessions: sessions,
		issuer:   issuer,
	}
	env.authorize = &AuthorizeService{
		Store:    st,
		Registry: registry,
		Users:    users,
		Sessions: sessions,
		Issuer:   issuer,
		CodeTTL:  time.Minute,
		FlowTTL:  10 * time.Minute,
	}
	env.tokens = &TokenService{
		Store:    st,
		Registry: registry,
		Sessions: sessions,
		Issuer:   issuer,
	}
	return env
}

func (e *testEnv) seedCatalog(t *testing.T, scopes ...string) {
	t.Helper()
	_, err := e.registry.CreateResource(context.Background(), "identity", "Identity Provider", scopes)
	require.NoError(t, err)
}

func (e *testEnv) seedClient(t *testing.T, confidential bool, redirectURIs, grantTypes, scopes []string) (domain.Client, string) {
	t.Helper()
	id, secret, err := e.registry.CreateClient(context.Background(), "test-app", confidential, redirectURIs, grantTypes, scopes)
	require.NoError(t, err)
	client, err := e.store.Clients().GetClientByID(context.Background(), id)
	require.NoError(t, err)
	return client, secret
}

func (e *testEnv) seedUser(t *testing.T, username, password string) string {
	t.Helper()
	id, err := e.users.CreateUser(context.Background(), username, username, password)
	require.NoError(t, err)
	return id
}

// runCodeFlow drives a full password login + consent interaction and
// returns the minted authorization code.
func (e *testEnv) runCodeFlow(t *testing.T, req BeginRequest, username, password string) *Outcome {
	t.Helper()
	ctx := context.Background()

	begun, err := e.authorize.Begin(ctx, req)
	require.NoError(t, err)
	require.False(t, begun.Done())
	require.Equal(t, "login", begun.Prompt)

	authed, err := e.authorize.CompleteAuthentication(ctx, begun.FlowID, username, password, "")
	require.NoError(t, err)
	if authed.Done() {
		return authed
	}
	require.Equal(t, "consent", authed.Prompt)

	done, err := e.authorize.CompleteConsent(ctx, authed.FlowID, true)
	require.NoError(t, err)
	require.True(t, done.Done())
	return done
}
