package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/nobcorp/nobids/internal/ids/domain"
	"github.com/nobcorp/nobids/internal/ids/store"
	"github.com/nobcorp/nobids/pkg/cryptox"
	"github.com/nobcorp/nobids/pkg/idx"
	"github.com/nobcorp/nobids/pkg/jwtx"
	"github.com/nobcorp/nobids/pkg/slogx"
)

var (
	ErrInvalidClient = errors.New("invalid_client")
	ErrInvalidScope  = errors.New("invalid_scope")
	ErrInvalidGrant  = errors.New("invalid_grant")
)

// TokenService implements the token endpoint grants plus revocation and
// introspection.
type TokenService struct {
	Store    store.Store
	Registry *RegistryService
	Sessions *SessionService
	Issuer   *Issuer
}

// ExchangeAuthorizationCode implements the authorization_code grant.
//
// Code redemption is a single conditional update in the store, so of N
// concurrent requests presenting the same code exactly one receives tokens.
// A replay of an already-used code additionally revokes every refresh token
// descended from it, on the assumption the code leaked.
func (s *TokenService) ExchangeAuthorizationCode(
	ctx context.Context,
	clientID, clientSecret, code, redirectURI, codeVerifier string,
) (*domain.TokenPair, error) {
	now := time.Now().UTC()
	l := slogx.FromContext(ctx)

	client, err := s.authenticateClient(ctx, clientID, clientSecret)
	if err != nil {
		return nil, err
	}
	if !client.AllowsGrant(domain.GrantAuthorizationCode) {
		return nil, ErrUnauthorizedClient
	}

	code = strings.TrimSpace(code)
	redirectURI = strings.TrimSpace(redirectURI)
	codeVerifier = strings.TrimSpace(codeVerifier)
	if code == "" || redirectURI == "" {
		return nil, ErrInvalidGrant
	}

	var result *domain.TokenPair

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		authCode, err := tx.AuthorizationCodes().ConsumeAuthorizationCode(ctx, cryptox.FingerprintToken(code), now)
		switch {
		case errors.Is(err, store.ErrCodeAlreadyUsed):
			// Replay. Someone already holds tokens from this code.
			l.Warn("authorization code replayed, revoking granted tokens",
				slog.String("client_id", clientID),
				slog.String("session_id", authCode.SessionID),
			)
			if authCode.SessionID != "" {
				if err := tx.RefreshTokens().RevokeAllForSession(ctx, authCode.SessionID); err != nil {
					return err
				}
			}
			return ErrInvalidGrant
		case errors.Is(err, store.ErrCodeExpired), errors.Is(err, store.ErrNotFound):
			return ErrInvalidGrant
		case err != nil:
			return err
		}

		if authCode.ClientID != client.ID {
			return ErrInvalidGrant
		}
		if authCode.RedirectURI != redirectURI {
			return ErrInvalidGrant
		}
		if !verifyCodeVerifier(authCode.CodeChallenge, authCode.CodeChallengeMethod, codeVerifier) {
			return ErrInvalidGrant
		}

		user, err := tx.Users().GetUserByID(ctx, authCode.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidGrant
			}
			return err
		}
		if user.Disabled {
			return ErrInvalidGrant
		}

		issueReq := IssueRequest{
			Subject:   user.ID,
			Client:    client,
			SessionID: authCode.SessionID,
			Scopes:    authCode.Scopes,
			AMR:       authCode.AMR,
			Nonce:     authCode.Nonce,
			AuthTime:  authCode.AuthTime,
		}
		accessToken, err := s.Issuer.IssueAccessToken(issueReq, now)
		if err != nil {
			return err
		}
		idToken, err := s.Issuer.IssueIDToken(issueReq, now)
		if err != nil {
			return err
		}

		refreshOpaque, refresh, err := s.newRefreshToken(user.ID, client, authCode.SessionID, idx.New().String(), 1, authCode.Scopes, authCode.AMR, now)
		if err != nil {
			return err
		}
		if err := tx.RefreshTokens().CreateRefreshToken(ctx, refresh); err != nil {
			return err
		}

		result = &domain.TokenPair{
			AccessToken:  accessToken,
			RefreshToken: refreshOpaque,
			IDToken:      idToken,
			TokenType:    "Bearer",
			ExpiresIn:    s.Issuer.Policy.AccessTTL(client),
			Scope:        strings.Join(authCode.Scopes, " "),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ExchangeRefreshToken implements the refresh_token grant with rotation.
//
// Every refresh token belongs to a family rooted at the original grant.
// Rotation marks the presented token and inserts its generation+1 sibling
// in one transaction; presenting a token that was already rotated or
// revoked is reuse, and reuse revokes the whole family.
//
// Scopes may be narrowed on refresh, never widened.
func (s *TokenService) ExchangeRefreshToken(
	ctx context.Context,
	clientID, clientSecret, refreshOpaque string,
	requestedScopes []string,
) (*domain.TokenPair, error) {
	now := time.Now().UTC()
	l := slogx.FromContext(ctx)

	client, err := s.authenticateClient(ctx, clientID, clientSecret)
	if err != nil {
		return nil, err
	}
	if !client.AllowsGrant(domain.GrantRefreshToken) {
		return nil, ErrUnauthorizedClient
	}

	fp := cryptox.FingerprintToken(refreshOpaque)
	rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, fp)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidGrant
		}
		return nil, err
	}

	if rt.ClientID != client.ID {
		return nil, ErrInvalidClient
	}
	if rt.RotatedAt != nil || rt.Revoked {
		return nil, s.revokeFamilyOnReuse(ctx, rt)
	}
	if now.After(rt.ExpiresAt) {
		return nil, ErrInvalidGrant
	}

	scopes := rt.Scopes
	if len(requestedScopes) > 0 {
		if widens(requestedScopes, rt.Scopes) {
			return nil, ErrInvalidScope
		}
		scopes = dedupe(requestedScopes)
	}

	var subject string
	var user domain.User
	if rt.UserID != "" {
		user, err = s.Store.Users().GetUserByID(ctx, rt.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrInvalidGrant
			}
			return nil, err
		}
		if user.Disabled {
			return nil, ErrInvalidGrant
		}
		subject = user.ID
	} else {
		subject = client.ID
	}

	// Keep the user's session alive across refreshes.
	if rt.SessionID != "" && s.Sessions != nil {
		if _, err := s.Sessions.ResolveSession(ctx, rt.SessionID); err != nil && !errors.Is(err, ErrSessionInvalid) {
			return nil, err
		}
	}

	amr := dedupe(append(append([]string{}, rt.AMR...), jwtx.AMRRefresh))

	issueReq := IssueRequest{
		Subject:   subject,
		Client:    client,
		SessionID: rt.SessionID,
		Scopes:    scopes,
		AMR:       amr,
	}
	accessToken, err := s.Issuer.IssueAccessToken(issueReq, now)
	if err != nil {
		return nil, err
	}

	newOpaque, next, err := s.newRefreshToken(rt.UserID, client, rt.SessionID, rt.FamilyID, rt.Generation+1, scopes, amr, now)
	if err != nil {
		return nil, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().MarkRotated(ctx, rt.ID, now); err != nil {
			return err
		}
		return tx.RefreshTokens().CreateRefreshToken(ctx, next)
	})
	if err != nil {
		if errors.Is(err, store.ErrRefreshReused) {
			// Lost the rotation race to a concurrent (or earlier) use.
			return nil, s.revokeFamilyOnReuse(ctx, rt)
		}
		return nil, err
	}

	l.Debug("refresh token rotated",
		slog.String("family_id", rt.FamilyID),
		slog.Int("generation", next.Generation),
	)

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: newOpaque,
		TokenType:    "Bearer",
		ExpiresIn:    s.Issuer.Policy.AccessTTL(client),
		Scope:        strings.Join(scopes, " "),
	}, nil
}

// ExchangeClientCredentials implements the client_credentials grant. The
// client is the subject; no user, no session, no refresh token.
func (s *TokenService) ExchangeClientCredentials(
	ctx context.Context,
	clientID, clientSecret string,
	requestedScopes []string,
) (*domain.TokenPair, error) {
	now := time.Now().UTC()
	l := slogx.FromContext(ctx)

	client, err := s.authenticateClient(ctx, clientID, clientSecret)
	if err != nil {
		return nil, err
	}
	if !client.Confidential() {
		l.Warn("client_credentials grant attempted with public client", "client_id", clientID)
		return nil, ErrInvalidClient
	}
	if !client.AllowsGrant(domain.GrantClientCredentials) {
		return nil, ErrUnauthorizedClient
	}

	scopes, err := s.Registry.ResolveScopes(ctx, client, requestedScopes)
	if err != nil {
		return nil, err
	}

	accessToken, err := s.Issuer.IssueAccessToken(IssueRequest{
		Subject:   client.ID,
		Client:    client,
		SessionID: idx.New().String(),
		Scopes:    scopes,
		AMR:       []string{jwtx.AMRClient},
	}, now)
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   s.Issuer.Policy.AccessTTL(client),
		Scope:       strings.Join(scopes, " "),
	}, nil
}

// Revoke implements RFC 7009 for refresh tokens. The whole family dies with
// the presented token. Unknown tokens succeed silently, as the RFC demands.
func (s *TokenService) Revoke(ctx context.Context, clientID, clientSecret, token string) error {
	client, err := s.authenticateClient(ctx, clientID, clientSecret)
	if err != nil {
		return err
	}

	fp := cryptox.FingerprintToken(token)
	rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, fp)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	if rt.ClientID != client.ID {
		// Not this client's token. Do not leak its existence.
		return nil
	}
	return s.Store.RefreshTokens().RevokeFamily(ctx, rt.FamilyID)
}

// Introspection is the RFC 7662 view of a token.
type Introspection struct {
	Active    bool
	Scope     string
	ClientID  string
	Subject   string
	TokenType string
	ExpiresAt int64
	IssuedAt  int64
	SessionID string
}

// Introspect reports the state of an access token (JWT) or refresh token
// (opaque). Anything unverifiable is simply inactive; introspection never
// errors on bad tokens.
func (s *TokenService) Introspect(ctx context.Context, clientID, clientSecret, token, hint string) (Introspection, error) {
	if _, err := s.authenticateClient(ctx, clientID, clientSecret); err != nil {
		return Introspection{}, err
	}

	if hint != "refresh_token" {
		if claims, err := s.Issuer.Keyring.Verifier().Verify(token); err == nil {
			intro := Introspection{
				Active:    true,
				Scope:     strings.Join(claims.Scopes, " "),
				Subject:   claims.Subject,
				TokenType: "access_token",
				SessionID: claims.SID,
			}
			if len(claims.Audience) > 0 {
				intro.ClientID = claims.Audience[0]
			}
			if claims.ExpiresAt != nil {
				intro.ExpiresAt = claims.ExpiresAt.Unix()
			}
			if claims.IssuedAt != nil {
				intro.IssuedAt = claims.IssuedAt.Unix()
			}
			return intro, nil
		}
	}

	rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Introspection{}, nil
		}
		return Introspection{}, err
	}
	if rt.Revoked || rt.RotatedAt != nil || time.Now().After(rt.ExpiresAt) {
		return Introspection{}, nil
	}

	subject := rt.UserID
	if subject == "" {
		subject = rt.ClientID
	}
	return Introspection{
		Active:    true,
		Scope:     strings.Join(rt.Scopes, " "),
		ClientID:  rt.ClientID,
		Subject:   subject,
		TokenType: "refresh_token",
		ExpiresAt: rt.ExpiresAt.Unix(),
		IssuedAt:  rt.CreatedAt.Unix(),
		SessionID: rt.SessionID,
	}, nil
}

// authenticateClient loads a client and, when it is confidential, verifies
// the presented secret.
func (s *TokenService) authenticateClient(ctx context.Context, clientID, clientSecret string) (domain.Client, error) {
	l := slogx.FromContext(ctx)

	client, err := s.Registry.LookupClient(ctx, clientID)
	if err != nil {
		return domain.Client{}, err
	}
	if client.Confidential() {
		if clientSecret == "" || cryptox.VerifyPassword(clientSecret, client.SecretHash) != nil {
			l.Info("client authentication failed", slog.String("client_id", clientID))
			return domain.Client{}, ErrInvalidClient
		}
	}
	return client, nil
}

// revokeFamilyOnReuse is the reuse response: kill every descendant of the
// grant and report invalid_grant. The audit log carries the family.
func (s *TokenService) revokeFamilyOnReuse(ctx context.Context, rt domain.RefreshToken) error {
	l := slogx.FromContext(ctx)
	l.Warn("refresh token reuse detected, revoking family",
		slog.String("family_id", rt.FamilyID),
		slog.String("client_id", rt.ClientID),
		slog.Int("generation", rt.Generation),
	)
	if err := s.Store.RefreshTokens().RevokeFamily(ctx, rt.FamilyID); err != nil {
		return err
	}
	return ErrInvalidGrant
}

func (s *TokenService) newRefreshToken(
	userID string,
	client domain.Client,
	sessionID, familyID string,
	generation int,
	scopes, amr []string,
	now time.Time,
) (string, domain.RefreshToken, error) {
	opaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", domain.RefreshToken{}, err
	}
	return opaque, domain.RefreshToken{
		ID:         idx.New().String(),
		UserID:     userID,
		ClientID:   client.ID,
		TokenHash:  cryptox.FingerprintToken(opaque),
		SessionID:  sessionID,
		FamilyID:   familyID,
		Generation: generation,
		Scopes:     scopes,
		AMR:        dedupe(amr),
		ExpiresAt:  now.Add(s.Issuer.Policy.RefreshTTL(client)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// widens reports whether requested asks for any scope outside granted.
func widens(requested, granted []string) bool {
	have := make(map[string]struct{}, len(granted))
	for _, s := range granted {
		have[s] = struct{}{}
	}
	for _, s := range requested {
		if _, ok := have[s]; !ok {
			return true
		}
	}
	return false
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// verifyCodeVerifier checks a PKCE verifier against the stored challenge.
// An empty stored challenge means the (confidential) client never sent one.
func verifyCodeVerifier(challenge, method, verifier string) bool {
	challenge = strings.TrimSpace(challenge)
	if challenge == "" {
		return true
	}

	verifier = strings.TrimSpace(verifier)
	if verifier == "" {
		return false
	}

	switch method {
	case domain.CodeChallengePlain:
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(verifier)) == 1
	case domain.CodeChallengeS256, "":
		sum := sha256.Sum256([]byte(verifier))
		expected := base64.RawURLEncoding.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(expected)) == 1
	default:
		return false
	}
}
