package idsdk_test

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/nobcorp/nobids/pkg/idsdk"
	"github.com/stretchr/testify/require"
)

func TestGeneratePKCEChallenge(t *testing.T) {
	pkce, err := idsdk.GeneratePKCEChallenge()
	require.NoError(t, err)
	require.Equal(t, "S256", pkce.Method)
	require.NotEmpty(t, pkce.Verifier)

	hash := sha256.Sum256([]byte(pkce.Verifier))
	require.Equal(t, base64.RawURLEncoding.EncodeToString(hash[:]), pkce.Challenge)

	other, err := idsdk.GeneratePKCEChallenge()
	require.NoError(t, err)
	require.NotEqual(t, pkce.Verifier, other.Verifier)
}

func TestBuildAuthorizeURL(t *testing.T) {
	client := idsdk.New("https://ids.example.com")
	pkce, err := idsdk.GeneratePKCEChallenge()
	require.NoError(t, err)

	raw := client.BuildAuthorizeURL(idsdk.AuthorizeRequest{
		ClientID:    "web-client",
		RedirectURI: "https://app.example.com/callback",
		Scopes:      []string{"openid", "profile"},
		State:       "xyz",
		Nonce:       "n-123",
		PKCE:        pkce,
	})

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "/v1/oauth2/authorize", parsed.Path)

	q := parsed.Query()
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "web-client", q.Get("client_id"))
	require.Equal(t, "https://app.example.com/callback", q.Get("redirect_uri"))
	require.Equal(t, "openid profile", q.Get("scope"))
	require.Equal(t, "xyz", q.Get("state"))
	require.Equal(t, "n-123", q.Get("nonce"))
	require.Equal(t, pkce.Challenge, q.Get("code_challenge"))
	require.Equal(t, "S256", q.Get("code_challenge_method"))
}

func TestBeginAuthorize_RedirectOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/oauth2/authorize", r.URL.Path)
		w.Header().Set("Location", "https://app.example.com/callback?code=abc123&state=xyz")
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	client := idsdk.New(srv.URL)
	callback, challenge, err := client.BeginAuthorize(context.Background(), idsdk.AuthorizeRequest{
		ClientID:    "web-client",
		RedirectURI: "https://app.example.com/callback",
		State:       "xyz",
	})
	require.NoError(t, err)
	require.Nil(t, challenge)
	require.NotNil(t, callback)
	require.Equal(t, "abc123", callback.Code)
	require.Equal(t, "xyz", callback.State)
}

func TestBeginAuthorize_LoginChallengeOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"flow_id":"01ARZ3NDEKTSV4RRFFQ69G5FAV","prompt":"login"}`))
	}))
	defer srv.Close()

	client := idsdk.New(srv.URL)
	callback, challenge, err := client.BeginAuthorize(context.Background(), idsdk.AuthorizeRequest{
		ClientID:    "web-client",
		RedirectURI: "https://app.example.com/callback",
	})
	require.NoError(t, err)
	require.Nil(t, callback)
	require.NotNil(t, challenge)
	require.Equal(t, "01ARZ3NDEKTSV4RRFFQ69G5FAV", challenge.FlowID)
	require.Equal(t, "login", challenge.Prompt)
}

func TestBeginAuthorize_ErrorRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "https://app.example.com/callback?error=access_denied&error_description=denied&state=xyz")
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	client := idsdk.New(srv.URL)
	callback, challenge, err := client.BeginAuthorize(context.Background(), idsdk.AuthorizeRequest{
		ClientID:    "web-client",
		RedirectURI: "https://app.example.com/callback",
		State:       "xyz",
	})
	require.NoError(t, err)
	require.Nil(t, challenge)
	require.NotNil(t, callback)
	require.Empty(t, callback.Code)
	require.Equal(t, "access_denied", callback.Error)
}

func TestTokenRequest_OAuth2ErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"the provided grant is invalid, expired or revoked"}`))
	}))
	defer srv.Close()

	client := idsdk.New(srv.URL)
	_, err := client.RefreshGrant(context.Background(), "web-client", "stale-token")
	require.Error(t, err)

	var oauthErr *idsdk.OAuth2Error
	require.ErrorAs(t, err, &oauthErr)
	require.Equal(t, idsdk.ErrorCodeInvalidGrant, oauthErr.Code)
	require.Equal(t, http.StatusBadRequest, oauthErr.StatusCode)
}
