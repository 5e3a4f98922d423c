// Package idsdk is a small client for the identity server. It wraps the
// OAuth2 and OpenID Connect endpoints with typed requests and errors and is
// what the end-to-end tests drive the server with.
package idsdk

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Client talks to one identity server deployment.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a client for the server at baseURL.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// AuthenticateWithClientCredentials performs a client_credentials grant and
// wraps the result in an auto-refreshing session.
func (c *Client) AuthenticateWithClientCredentials(
	ctx context.Context,
	clientID, clientSecret string,
	scopes []string,
) (*Session, error) {
	tokenResp, err := c.ClientCredentialsGrant(ctx, clientID, clientSecret, scopes)
	if err != nil {
		return nil, err
	}
	return newSession(c, clientID, tokenResp), nil
}

// AuthenticateWithRefreshToken resumes a session from a stored refresh
// token.
func (c *Client) AuthenticateWithRefreshToken(
	ctx context.Context,
	clientID, refreshToken string,
) (*Session, error) {
	tokenResp, err := c.RefreshGrant(ctx, clientID, refreshToken)
	if err != nil {
		return nil, err
	}
	return newSession(c, clientID, tokenResp), nil
}
