package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"testing"
	"time"

	"github.com/nobcorp/nobids/internal/ids/domain"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func pkceChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func TestValidatePKCE(t *testing.T) {
	t.Parallel()

	confidential := domain.Client{SecretHash: "argon2:dummy"}
	public := domain.Client{RequirePKCE: true}

	t.Run("public clients require challenge", func(t *testing.T) {
		_, _, err := validatePKCE("", "", public)
		require.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("confidential clients may omit challenge", func(t *testing.T) {
		challenge, method, err := validatePKCE("", "", confidential)
		require.NoError(t, err)
		require.Empty(t, challenge)
		require.Empty(t, method)
	})

	t.Run("defaults to S256 when method omitted", func(t *testing.T) {
		challenge, method, err := validatePKCE("pkce-challenge", "", public)
		require.NoError(t, err)
		require.Equal(t, "pkce-challenge", challenge)
		require.Equal(t, "S256", method)
	})

	t.Run("accepts case-insensitive methods", func(t *testing.T) {
		_, method, err := validatePKCE("abc", "plain", public)
		require.NoError(t, err)
		require.Equal(t, "plain", method)

		_, method, err = validatePKCE("xyz", "s256", public)
		require.NoError(t, err)
		require.Equal(t, "S256", method)
	})

	t.Run("rejects unsupported methods", func(t *testing.T) {
		_, _, err := validatePKCE("abc", "S123", public)
		require.ErrorIs(t, err, ErrInvalidRequest)
	})
}

func TestVerifyCodeVerifier(t *testing.T) {
	t.Parallel()

	t.Run("plain verifier must match challenge", func(t *testing.T) {
		require.True(t, verifyCodeVerifier("verifier", "plain", "verifier"))
		require.False(t, verifyCodeVerifier("verifier", "plain", "other"))
	})

	t.Run("S256 verifier computes hash", func(t *testing.T) {
		challenge := pkceChallenge("example-verifier")
		require.True(t, verifyCodeVerifier(challenge, "S256", "example-verifier"))
		require.False(t, verifyCodeVerifier(challenge, "S256", "wrong"))
	})

	t.Run("empty challenge accepts any verifier", func(t *testing.T) {
		require.True(t, verifyCodeVerifier("", "S256", ""))
		require.True(t, verifyCodeVerifier("", "", "anything"))
	})

	t.Run("missing verifier rejected when challenge present", func(t *testing.T) {
		require.False(t, verifyCodeVerifier(pkceChallenge("data"), "S256", ""))
	})
}

func TestAuthorizeValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedCatalog(t, "openid", "profile")
	client, _ := env.seedClient(t, true,
		[]string{"https://app.example/callback"},
		[]string{domain.GrantAuthorizationCode, domain.GrantRefreshToken},
		[]string{"openid", "profile"},
	)

	base := BeginRequest{
		ResponseType: "code",
		ClientID:     client.ID,
		RedirectURI:  "https://app.example/callback",
		Scopes:       []string{"openid"},
	}

	t.Run("unknown client", func(t *testing.T) {
		req := base
		req.ClientID = "nope"
		_, err := env.authorize.Begin(ctx, req)
		require.ErrorIs(t, err, ErrInvalidClient)
	})

	t.Run("unregistered redirect fails closed", func(t *testing.T) {
		req := base
		req.RedirectURI = "https://app.example/callback/extra"
		_, err := env.authorize.Begin(ctx, req)
		require.ErrorIs(t, err, ErrInvalidRedirect)
	})

	t.Run("unsupported response type", func(t *testing.T) {
		req := base
		req.ResponseType = "id_token"
		_, err := env.authorize.Begin(ctx, req)
		require.ErrorIs(t, err, ErrUnsupportedResponseType)
	})

	t.Run("implicit without grant permission", func(t *testing.T) {
		req := base
		req.ResponseType = "token"
		_, err := env.authorize.Begin(ctx, req)
		require.ErrorIs(t, err, ErrUnauthorizedClient)
	})

	t.Run("scope outside the catalog", func(t *testing.T) {
		req := base
		req.Scopes = []string{"openid", "payments:write"}
		_, err := env.authorize.Begin(ctx, req)
		require.ErrorIs(t, err, ErrInvalidScope)
	})

	t.Run("public client without pkce", func(t *testing.T) {
		public, _ := env.seedClient(t, false,
			[]string{"https://spa.example/cb"},
			[]string{domain.GrantAuthorizationCode},
			[]string{"openid"},
		)
		_, err := env.authorize.Begin(ctx, BeginRequest{
			ResponseType: "code",
			ClientID:     public.ID,
			RedirectURI:  "https://spa.example/cb",
			Scopes:       []string{"openid"},
		})
		require.ErrorIs(t, err, ErrInvalidRequest)
	})
}

func TestAuthorizeFlowLoginAndConsent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedCatalog(t, "openid", "profile")
	client, _ := env.seedClient(t, true,
		[]string{"https://app.example/callback"},
		[]string{domain.GrantAuthorizationCode},
		[]string{"openid", "profile"},
	)
	env.seedUser(t, "alice", "correct horse battery")

	out := env.runCodeFlow(t, BeginRequest{
		ResponseType: "code",
		ClientID:     client.ID,
		RedirectURI:  "https://app.example/callback",
		Scopes:       []string{"openid", "profile"},
		State:        "client-state-xyz",
		Nonce:        "nonce-1",
	}, "alice", "correct horse battery")

	require.NotEmpty(t, out.Code)
	require.Equal(t, "https://app.example/callback", out.RedirectURI)
	require.Equal(t, "client-state-xyz", out.State)
	require.Nil(t, out.Token)

	t.Run("bad password reprompts without killing the flow", func(t *testing.T) {
		begun, err := env.authorize.Begin(ctx, BeginRequest{
			ResponseType: "code",
			ClientID:     client.ID,
			RedirectURI:  "https://app.example/callback",
			Scopes:       []string{"openid"},
		})
		require.NoError(t, err)

		_, err = env.authorize.CompleteAuthentication(ctx, begun.FlowID, "alice", "wrong", "")
		require.ErrorIs(t, err, ErrInvalidCredentials)

		// Flow still resumable: consent was already recorded above, so a
		// correct login completes immediately.
		done, err := env.authorize.CompleteAuthentication(ctx, begun.FlowID, "alice", "correct horse battery", "")
		require.NoError(t, err)
		require.True(t, done.Done())
		require.NotEmpty(t, done.Code)
	})
}

func TestAuthorizeConsentDeniedIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedCatalog(t, "openid")
	client, _ := env.seedClient(t, true,
		[]string{"https://app.example/callback"},
		[]string{domain.GrantAuthorizationCode},
		[]string{"openid"},
	)
	env.seedUser(t, "bob", "hunter2hunter2")

	begun, err := env.authorize.Begin(ctx, BeginRequest{
		ResponseType: "code",
		ClientID:     client.ID,
		RedirectURI:  "https://app.example/callback",
		Scopes:       []string{"openid"},
	})
	require.NoError(t, err)

	authed, err := env.authorize.CompleteAuthentication(ctx, begun.FlowID, "bob", "hunter2hunter2", "")
	require.NoError(t, err)
	require.Equal(t, "consent", authed.Prompt)

	_, err = env.authorize.CompleteConsent(ctx, authed.FlowID, false)
	require.ErrorIs(t, err, ErrAccessDenied)

	// Terminal. The flow cannot be resumed into an approval.
	_, err = env.authorize.CompleteConsent(ctx, authed.FlowID, true)
	require.ErrorIs(t, err, ErrFlowGone)
}

func TestAuthorizeSessionSkipsLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedCatalog(t, "openid")
	client, _ := env.seedClient(t, true,
		[]string{"https://app.example/callback"},
		[]string{domain.GrantAuthorizationCode},
		[]string{"openid"},
	)
	userID := env.seedUser(t, "carol", "correct horse battery")

	env.runCodeFlow(t, BeginRequest{
		ResponseType: "code",
		ClientID:     client.ID,
		RedirectURI:  "https://app.example/callback",
		Scopes:       []string{"openid"},
	}, "carol", "correct horse battery")

	session, err := env.sessions.CreateSession(ctx, userID, []string{"pwd"}, time.Now())
	require.NoError(t, err)

	out, err := env.authorize.Begin(ctx, BeginRequest{
		ResponseType: "code",
		ClientID:     client.ID,
		RedirectURI:  "https://app.example/callback",
		Scopes:       []string{"openid"},
		SessionID:    session.ID,
	})
	require.NoError(t, err)
	require.True(t, out.Done())
	require.NotEmpty(t, out.Code)
}

func TestAuthorizeSecondFactor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedCatalog(t, "openid")
	client, _ := env.seedClient(t, true,
		[]string{"https://app.example/callback"},
		[]string{domain.GrantAuthorizationCode},
		[]string{"openid"},
	)
	userID := env.seedUser(t, "dave", "correct horse battery")

	secret, _, err := env.users.BeginTOTPEnrollment(ctx, userID)
	require.NoError(t, err)
	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, env.users.ActivateTOTP(ctx, userID, secret, code))

	begun, err := env.authorize.Begin(ctx, BeginRequest{
		ResponseType: "code",
		ClientID:     client.ID,
		RedirectURI:  "https://app.example/callback",
		Scopes:       []string{"openid"},
	})
	require.NoError(t, err)

	_, err = env.authorize.CompleteAuthentication(ctx, begun.FlowID, "dave", "correct horse battery", "")
	require.ErrorIs(t, err, ErrOTPRequired)

	_, err = env.authorize.CompleteAuthentication(ctx, begun.FlowID, "dave", "correct horse battery", "000000")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	otpCode, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	authed, err := env.authorize.CompleteAuthentication(ctx, begun.FlowID, "dave", "correct horse battery", otpCode)
	require.NoError(t, err)
	require.Equal(t, "consent", authed.Prompt)
}

func TestAuthorizeImplicitGrant(t *testing.T) {
	env := newTestEnv(t)

	env.seedCatalog(t, "openid", "profile")
	client, _ := env.seedClient(t, true,
		[]string{"https://app.example/callback"},
		[]string{domain.GrantImplicit},
		[]string{"openid", "profile"},
	)
	env.seedUser(t, "erin", "correct horse battery")

	out := env.runCodeFlow(t, BeginRequest{
		ResponseType: "token",
		ClientID:     client.ID,
		RedirectURI:  "https://app.example/callback",
		Scopes:       []string{"openid"},
		State:        "s",
	}, "erin", "correct horse battery")

	require.Empty(t, out.Code)
	require.NotNil(t, out.Token)
	require.Empty(t, out.Token.RefreshToken)
	require.Equal(t, "Bearer", out.Token.TokenType)

	claims, err := env.keyring.Verifier().Verify(out.Token.AccessToken)
	require.NoError(t, err)
	require.Contains(t, claims.Scopes, "openid")
	require.Equal(t, []string(claims.Audience), []string{client.ID})
}

func TestAuthorizeFlowExpires(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.authorize.FlowTTL = time.Millisecond

	env.seedCatalog(t, "openid")
	client, _ := env.seedClient(t, true,
		[]string{"https://app.example/callback"},
		[]string{domain.GrantAuthorizationCode},
		[]string{"openid"},
	)
	env.seedUser(t, "frank", "correct horse battery")

	begun, err := env.authorize.Begin(ctx, BeginRequest{
		ResponseType: "code",
		ClientID:     client.ID,
		RedirectURI:  "https://app.example/callback",
		Scopes:       []string{"openid"},
	})
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = env.authorize.CompleteAuthentication(ctx, begun.FlowID, "frank", "correct horse battery", "")
	require.ErrorIs(t, err, ErrFlowGone)
}
