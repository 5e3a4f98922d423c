package idsdk

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Session holds a token pair and refreshes it transparently before expiry.
// Safe for concurrent use.
type Session struct {
	client   *Client
	clientID string

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	idToken      string
	expiresAt    time.Time
	scopes       []string
}

func newSession(c *Client, clientID string, tok *TokenResponse) *Session {
	s := &Session{
		client:   c,
		clientID: clientID,
	}
	s.applyTokens(tok)
	return s
}

// NewSessionFromCode redeems an authorization code and wraps the result in a
// session.
func (c *Client) NewSessionFromCode(
	ctx context.Context,
	clientID, clientSecret, code, redirectURI, codeVerifier string,
) (*Session, error) {
	tok, err := c.AuthorizationCodeGrant(ctx, clientID, clientSecret, code, redirectURI, codeVerifier)
	if err != nil {
		return nil, err
	}
	return newSession(c, clientID, tok), nil
}

func (s *Session) applyTokens(tok *TokenResponse) {
	s.accessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		s.refreshToken = tok.RefreshToken
	}
	if tok.IDToken != "" {
		s.idToken = tok.IDToken
	}
	// Refresh slightly early so in-flight requests never carry a token that
	// expires mid-request.
	s.expiresAt = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - 30*time.Second)
	if tok.Scope != "" {
		s.scopes = strings.Fields(tok.Scope)
	}
}

// AccessToken returns a currently valid access token, refreshing first when
// the cached one is about to lapse.
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}
	if s.refreshToken == "" {
		return "", fmt.Errorf("access token expired and no refresh token held")
	}

	tok, err := s.client.RefreshGrant(ctx, s.clientID, s.refreshToken)
	if err != nil {
		return "", err
	}
	s.applyTokens(tok)
	return s.accessToken, nil
}

// RefreshToken returns the current refresh token, e.g. for durable storage.
func (s *Session) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshToken
}

// IDToken returns the most recent ID token, if the session holds one.
func (s *Session) IDToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idToken
}

// Scopes returns the granted scope set.
func (s *Session) Scopes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.scopes))
	copy(out, s.scopes)
	return out
}

// Logout revokes the refresh token, which tears down the whole token family
// server-side.
func (s *Session) Logout(ctx context.Context, clientSecret string) error {
	s.mu.Lock()
	token := s.refreshToken
	s.refreshToken = ""
	s.accessToken = ""
	s.mu.Unlock()

	if token == "" {
		return nil
	}
	return s.client.RevokeToken(ctx, s.clientID, clientSecret, token)
}
