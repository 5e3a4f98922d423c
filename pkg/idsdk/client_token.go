package idsdk

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// AuthorizationCodeGrant redeems a single-use authorization code. The
// verifier must be supplied when the authorization request carried a PKCE
// challenge.
func (c *Client) AuthorizationCodeGrant(
	ctx context.Context,
	clientID, clientSecret, code, redirectURI, codeVerifier string,
) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {redirectURI},
		"client_id":    {clientID},
	}
	if clientSecret != "" {
		data.Set("client_secret", clientSecret)
	}
	if codeVerifier != "" {
		data.Set("code_verifier", codeVerifier)
	}
	return c.requestToken(ctx, data)
}

// RefreshGrant rotates a refresh token for a new token pair. The returned
// refresh token replaces the one passed in; replaying the old one revokes
// the whole family.
func (c *Client) RefreshGrant(
	ctx context.Context,
	clientID, refreshToken string,
) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {clientID},
	}
	return c.requestToken(ctx, data)
}

// ClientCredentialsGrant authenticates a confidential client as itself.
// No refresh token is issued; clients re-authenticate when the access token
// lapses.
func (c *Client) ClientCredentialsGrant(
	ctx context.Context,
	clientID, clientSecret string,
	scopes []string,
) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
	}
	if len(scopes) > 0 {
		data.Set("scope", strings.Join(scopes, " "))
	}
	return c.requestToken(ctx, data)
}

// RevokeToken revokes a refresh token and its descendants per RFC 7009.
// Unknown tokens still return success, so revocation leaks nothing.
func (c *Client) RevokeToken(ctx context.Context, clientID, clientSecret, token string) error {
	data := url.Values{
		"token":     {token},
		"client_id": {clientID},
	}
	if clientSecret != "" {
		data.Set("client_secret", clientSecret)
	}

	resp, err := c.postForm(ctx, "/v1/oauth2/revoke", data)
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusOK)
}

// Introspect reports token state per RFC 7662. Requires client credentials
// because introspection is not an anonymous operation.
func (c *Client) Introspect(
	ctx context.Context,
	clientID, clientSecret, token string,
) (*IntrospectionResponse, error) {
	data := url.Values{
		"token":         {token},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
	}

	resp, err := c.postForm(ctx, "/v1/oauth2/introspect", data)
	if err != nil {
		return nil, err
	}

	var out IntrospectionResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) requestToken(ctx context.Context, data url.Values) (*TokenResponse, error) {
	resp, err := c.postForm(ctx, "/v1/oauth2/token", data)
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, err
	}
	return &tokenResp, nil
}
