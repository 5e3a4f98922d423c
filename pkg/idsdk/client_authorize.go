package idsdk

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/nobcorp/nobids/pkg/cryptox"
)

// PKCEChallenge holds a PKCE verifier and challenge pair per RFC 7636. The
// verifier stays with the client; only the challenge goes to the server.
type PKCEChallenge struct {
	Verifier  string
	Challenge string
	Method    string
}

// GeneratePKCEChallenge creates an S256 verifier and challenge pair with 256
// bits of entropy.
func GeneratePKCEChallenge() (*PKCEChallenge, error) {
	verifier, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, fmt.Errorf("failed to generate PKCE verifier: %w", err)
	}

	hash := sha256.Sum256([]byte(verifier))
	return &PKCEChallenge{
		Verifier:  verifier,
		Challenge: base64.RawURLEncoding.EncodeToString(hash[:]),
		Method:    "S256",
	}, nil
}

// AuthorizeRequest carries the parameters of an authorization request.
type AuthorizeRequest struct {
	ClientID    string
	RedirectURI string
	Scopes      []string
	State       string
	Nonce       string
	PKCE        *PKCEChallenge
}

func (a AuthorizeRequest) values() url.Values {
	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", a.ClientID)
	params.Set("redirect_uri", a.RedirectURI)
	if len(a.Scopes) > 0 {
		params.Set("scope", strings.Join(a.Scopes, " "))
	}
	if a.State != "" {
		params.Set("state", a.State)
	}
	if a.Nonce != "" {
		params.Set("nonce", a.Nonce)
	}
	if a.PKCE != nil {
		params.Set("code_challenge", a.PKCE.Challenge)
		params.Set("code_challenge_method", a.PKCE.Method)
	}
	return params
}

// BuildAuthorizeURL constructs the URL a browser would be redirected to in
// order to begin the authorization code flow.
func (c *Client) BuildAuthorizeURL(req AuthorizeRequest) string {
	return fmt.Sprintf("%s/v1/oauth2/authorize?%s", c.BaseURL, req.values().Encode())
}

// BeginAuthorize starts an authorization flow. When the server already holds
// an authenticated session with matching consent it answers with a redirect
// carrying the code; otherwise it suspends the flow and returns a
// LoginChallenge naming the pending interaction.
func (c *Client) BeginAuthorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeCallback, *LoginChallenge, error) {
	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodGet,
		fmt.Sprintf("%s/v1/oauth2/authorize?%s", c.BaseURL, req.values().Encode()),
		nil,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.doAuthorize(httpReq)
}

// CompleteLogin submits end-user credentials for a suspended flow. The
// otpCode is required only for users with a second factor enrolled. On
// success the server either issues the redirect or asks for consent.
func (c *Client) CompleteLogin(
	ctx context.Context,
	flowID, username, password, otpCode string,
) (*AuthorizeCallback, *LoginChallenge, error) {
	data := url.Values{
		"flow_id":  {flowID},
		"username": {username},
		"password": {password},
	}
	if otpCode != "" {
		data.Set("otp_code", otpCode)
	}
	return c.postAuthorize(ctx, data)
}

// CompleteConsent records the end-user's consent decision for a suspended
// flow. Denial finishes the flow with an access_denied redirect.
func (c *Client) CompleteConsent(
	ctx context.Context,
	flowID string,
	approve bool,
) (*AuthorizeCallback, *LoginChallenge, error) {
	decision := "deny"
	if approve {
		decision = "accept"
	}
	data := url.Values{
		"flow_id": {flowID},
		"consent": {decision},
	}
	return c.postAuthorize(ctx, data)
}

// AuthorizeWithPassword drives a whole authorization flow in one call:
// begin, login, and consent approval. Intended for tests and server-side
// tools that hold the user's credentials directly.
func (c *Client) AuthorizeWithPassword(
	ctx context.Context,
	req AuthorizeRequest,
	username, password, otpCode string,
) (*AuthorizeCallback, error) {
	callback, challenge, err := c.BeginAuthorize(ctx, req)
	if err != nil {
		return nil, err
	}
	if callback != nil {
		return callback, nil
	}

	callback, challenge, err = c.CompleteLogin(ctx, challenge.FlowID, username, password, otpCode)
	if err != nil {
		return nil, err
	}
	if callback != nil {
		return callback, nil
	}

	callback, _, err = c.CompleteConsent(ctx, challenge.FlowID, true)
	if err != nil {
		return nil, err
	}
	if callback == nil {
		return nil, fmt.Errorf("authorization flow did not finish after consent")
	}
	return callback, nil
}

func (c *Client) postAuthorize(ctx context.Context, data url.Values) (*AuthorizeCallback, *LoginChallenge, error) {
	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodPost,
		c.BaseURL+"/v1/oauth2/authorize",
		strings.NewReader(data.Encode()),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.doAuthorize(httpReq)
}

// doAuthorize executes an authorize request without following redirects and
// interprets the tri-state outcome: 302 ends the flow, 401/403 with a
// flow_id suspends it, anything else is an error.
func (c *Client) doAuthorize(req *http.Request) (*AuthorizeCallback, *LoginChallenge, error) {
	noRedirectClient := &http.Client{
		Timeout: c.HTTPClient.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := noRedirectClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusFound {
		callback, err := parseCallback(resp.Header.Get("Location"))
		if err != nil {
			return nil, nil, err
		}
		return callback, nil, nil
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		var challenge LoginChallenge
		if err := json.Unmarshal(bodyBytes, &challenge); err == nil && challenge.FlowID != "" {
			return nil, &challenge, nil
		}
	}

	return nil, nil, parseErrorResponse(resp, bodyBytes)
}

func parseCallback(location string) (*AuthorizeCallback, error) {
	if location == "" {
		return nil, fmt.Errorf("redirect response missing Location header")
	}
	redirectURL, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redirect URL: %w", err)
	}

	q := redirectURL.Query()
	callback := &AuthorizeCallback{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}
	if callback.Code == "" && callback.Error == "" {
		return nil, fmt.Errorf("redirect carries neither code nor error")
	}
	return callback, nil
}
