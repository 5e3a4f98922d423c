package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nobcorp/nobids/internal/ids/domain"
	"github.com/nobcorp/nobids/internal/ids/store"
	"github.com/nobcorp/nobids/pkg/cryptox"
	"github.com/nobcorp/nobids/pkg/idx"
	"github.com/nobcorp/nobids/pkg/slogx"
)

var (
	ErrInvalidRequest          = errors.New("invalid_request")
	ErrUnauthorizedClient      = errors.New("unauthorized_client")
	ErrUnsupportedResponseType = errors.New("unsupported_response_type")
	ErrLoginRequired           = errors.New("login_required")
	ErrConsentRequired         = errors.New("consent_required")
	ErrAccessDenied            = errors.New("access_denied")

	// ErrFlowGone covers unknown, expired and already-terminal flows. The
	// client has to start over.
	ErrFlowGone = errors.New("authorization flow gone")
)

// Response types accepted at the authorization endpoint.
const (
	ResponseTypeCode  = "code"
	ResponseTypeToken = "token"
)

// AuthorizeService drives the authorization flow state machine. A flow is
// persisted the moment it cannot finish in one request, and resumed through
// the server-issued flow id; the client's state parameter is pure
// passthrough and never used for correlation.
type AuthorizeService struct {
	Store    store.Store
	Registry *RegistryService
	Users    *UserService
	Sessions *SessionService
	Issuer   *Issuer

	// CodeTTL bounds authorization codes. Default 60 seconds.
	CodeTTL time.Duration

	// FlowTTL bounds the whole interaction. Default 10 minutes.
	FlowTTL time.Duration
}

// BeginRequest carries the raw authorization request parameters.
type BeginRequest struct {
	ResponseType        string
	ClientID            string
	RedirectURI         string
	Scopes              []string
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string

	// SessionID is the browser session from the request cookie, empty when
	// absent.
	SessionID string
}

// Outcome is the result of one step of the flow. Exactly one of the three
// shapes is populated: a code redirect, a token redirect (implicit grant),
// or a pending interaction identified by FlowID.
type Outcome struct {
	// Populated when the flow finished.
	RedirectURI string
	Code        string
	Token       *domain.TokenPair
	State       string

	// Populated while the flow awaits an interaction.
	FlowID     string
	Prompt     string // "login", "otp" or "consent"
	ClientName string
	Scopes     []string

	// SessionID names the browser session backing the outcome, so the HTTP
	// layer can set the session cookie once login succeeds.
	SessionID string
}

// Done reports whether the flow reached a redirect.
func (o *Outcome) Done() bool { return o.FlowID == "" }

// Begin validates a new authorization request and either finishes it
// immediately (active session with covering consent) or suspends it.
//
// Validation order decides where errors surface: client identity and
// redirect URI are checked before anything else, and their failures are
// never redirected to the unvalidated URI. Everything after redirect
// validation may be reported via redirect by the HTTP layer.
func (s *AuthorizeService) Begin(ctx context.Context, req BeginRequest) (*Outcome, error) {
	client, err := s.Registry.LookupClient(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}
	if err := s.Registry.ValidateRedirectURI(client, req.RedirectURI); err != nil {
		return nil, err
	}

	responseType := strings.TrimSpace(req.ResponseType)
	switch responseType {
	case ResponseTypeCode:
		if !client.AllowsGrant(domain.GrantAuthorizationCode) {
			return nil, ErrUnauthorizedClient
		}
	case ResponseTypeToken:
		if !client.AllowsGrant(domain.GrantImplicit) {
			return nil, ErrUnauthorizedClient
		}
	default:
		return nil, ErrUnsupportedResponseType
	}

	scopes, err := s.Registry.ResolveScopes(ctx, client, req.Scopes)
	if err != nil {
		return nil, err
	}

	var challenge, method string
	if responseType == ResponseTypeCode {
		challenge, method, err = validatePKCE(req.CodeChallenge, req.CodeChallengeMethod, client)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	flow := domain.Flow{
		ID:                  idx.New().String(),
		State:               domain.FlowPendingAuthentication,
		ClientID:            client.ID,
		ResponseType:        responseType,
		RedirectURI:         req.RedirectURI,
		Scopes:              scopes,
		ClientState:         req.State,
		Nonce:               req.Nonce,
		CodeChallenge:       challenge,
		CodeChallengeMethod: method,
		ExpiresAt:           now.Add(s.flowTTL()),
	}

	// An active browser session skips the login prompt.
	if req.SessionID != "" {
		session, err := s.Sessions.ResolveSession(ctx, req.SessionID)
		if err == nil {
			return s.afterAuthentication(ctx, flow, client, session, false)
		}
		if !errors.Is(err, ErrSessionInvalid) {
			return nil, err
		}
	}

	if err := s.Store.Flows().CreateFlow(ctx, flow); err != nil {
		return nil, err
	}
	return &Outcome{
		FlowID:     flow.ID,
		Prompt:     "login",
		ClientName: client.Name,
		Scopes:     flow.Scopes,
	}, nil
}

// CompleteAuthentication resumes a suspended flow with user credentials.
// Bad credentials leave the flow pending so the prompt can run again.
func (s *AuthorizeService) CompleteAuthentication(ctx context.Context, flowID, username, password, otpCode string) (*Outcome, error) {
	l := slogx.FromContext(ctx)

	flow, client, err := s.loadFlow(ctx, flowID, domain.FlowPendingAuthentication)
	if err != nil {
		return nil, err
	}

	user, amr, err := s.Users.Authenticate(ctx, username, password, otpCode)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrOTPRequired) {
			l.Info("authorization login failed", "flow_id", flowID, "client_id", client.ID)
		}
		return nil, err
	}

	now := time.Now().UTC()
	session, err := s.Sessions.CreateSession(ctx, user.ID, amr, now)
	if err != nil {
		return nil, err
	}

	flow.UserID = user.ID
	flow.SessionID = session.ID
	return s.afterAuthentication(ctx, flow, client, session, true)
}

// CompleteConsent resumes a flow waiting on the consent prompt. Denial is
// terminal and surfaces as access_denied.
func (s *AuthorizeService) CompleteConsent(ctx context.Context, flowID string, approve bool) (*Outcome, error) {
	l := slogx.FromContext(ctx)

	flow, client, err := s.loadFlow(ctx, flowID, domain.FlowPendingConsent)
	if err != nil {
		return nil, err
	}

	if !approve {
		denied := flow
		denied.State = domain.FlowDenied
		if err := s.Store.Flows().TransitionFlow(ctx, denied, domain.FlowPendingConsent); err != nil {
			if errors.Is(err, store.ErrStateConflict) || errors.Is(err, store.ErrNotFound) {
				return nil, ErrFlowGone
			}
			return nil, err
		}
		l.Info("authorization consent denied", "flow_id", flowID, "client_id", client.ID)
		return nil, ErrAccessDenied
	}

	if err := s.Sessions.RecordConsent(ctx, flow.UserID, flow.ClientID, flow.Scopes); err != nil {
		return nil, err
	}

	session, err := s.Sessions.ResolveSession(ctx, flow.SessionID)
	if err != nil {
		if errors.Is(err, ErrSessionInvalid) {
			return nil, ErrLoginRequired
		}
		return nil, err
	}

	return s.finish(ctx, flow, client, session, domain.FlowPendingConsent)
}

// afterAuthentication routes an authenticated flow to the consent prompt or
// straight to completion. persisted says whether the flow row exists yet.
func (s *AuthorizeService) afterAuthentication(
	ctx context.Context,
	flow domain.Flow,
	client domain.Client,
	session domain.Session,
	persisted bool,
) (*Outcome, error) {
	flow.UserID = session.UserID
	flow.SessionID = session.ID

	covered, err := s.Sessions.HasValidConsent(ctx, session.UserID, client.ID, flow.Scopes)
	if err != nil {
		return nil, err
	}

	if covered {
		if !persisted {
			return s.complete(ctx, flow, client, session)
		}
		return s.finish(ctx, flow, client, session, domain.FlowPendingAuthentication)
	}

	flow.State = domain.FlowPendingConsent
	if persisted {
		if err := s.Store.Flows().TransitionFlow(ctx, flow, domain.FlowPendingAuthentication); err != nil {
			if errors.Is(err, store.ErrStateConflict) || errors.Is(err, store.ErrNotFound) {
				return nil, ErrFlowGone
			}
			return nil, err
		}
	} else {
		if err := s.Store.Flows().CreateFlow(ctx, flow); err != nil {
			return nil, err
		}
	}

	return &Outcome{
		FlowID:     flow.ID,
		Prompt:     "consent",
		ClientName: client.Name,
		Scopes:     flow.Scopes,
		SessionID:  session.ID,
	}, nil
}

// finish transitions a persisted flow to completed and mints the result.
// The conditional transition makes completion single-shot: the loser of two
// concurrent resumes sees ErrFlowGone, never a second code.
func (s *AuthorizeService) finish(
	ctx context.Context,
	flow domain.Flow,
	client domain.Client,
	session domain.Session,
	fromState string,
) (*Outcome, error) {
	completed := flow
	completed.State = domain.FlowCompleted
	if err := s.Store.Flows().TransitionFlow(ctx, completed, fromState); err != nil {
		if errors.Is(err, store.ErrStateConflict) || errors.Is(err, store.ErrNotFound) {
			return nil, ErrFlowGone
		}
		return nil, err
	}
	return s.complete(ctx, flow, client, session)
}

// complete mints the flow's result: an authorization code or, for the
// implicit grant, an access token directly.
func (s *AuthorizeService) complete(
	ctx context.Context,
	flow domain.Flow,
	client domain.Client,
	session domain.Session,
) (*Outcome, error) {
	l := slogx.FromContext(ctx)
	now := time.Now().UTC()

	if flow.ResponseType == ResponseTypeToken {
		accessToken, err := s.Issuer.IssueAccessToken(IssueRequest{
			Subject:   session.UserID,
			Client:    client,
			SessionID: session.ID,
			Scopes:    flow.Scopes,
			AMR:       session.AMR,
		}, now)
		if err != nil {
			return nil, err
		}
		l.Info("implicit grant issued", "client_id", client.ID, "session_id", session.ID)
		return &Outcome{
			RedirectURI: flow.RedirectURI,
			Token: &domain.TokenPair{
				AccessToken: accessToken,
				TokenType:   "Bearer",
				ExpiresIn:   s.Issuer.Policy.AccessTTL(client),
				Scope:       strings.Join(flow.Scopes, " "),
			},
			State:     flow.ClientState,
			SessionID: session.ID,
		}, nil
	}

	code, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}

	record := domain.AuthorizationCode{
		ID:                  idx.New().String(),
		UserID:              session.UserID,
		ClientID:            client.ID,
		CodeHash:            cryptox.FingerprintToken(code),
		RedirectURI:         flow.RedirectURI,
		Scopes:              flow.Scopes,
		SessionID:           session.ID,
		AMR:                 session.AMR,
		Nonce:               flow.Nonce,
		CodeChallenge:       flow.CodeChallenge,
		CodeChallengeMethod: flow.CodeChallengeMethod,
		AuthTime:            session.AuthTime,
		ExpiresAt:           now.Add(s.codeTTL()),
		CreatedAt:           now,
	}
	if err := s.Store.AuthorizationCodes().CreateAuthorizationCode(ctx, record); err != nil {
		return nil, err
	}

	l.Info("authorization code issued", "client_id", client.ID, "session_id", session.ID)
	return &Outcome{
		RedirectURI: flow.RedirectURI,
		Code:        code,
		State:       flow.ClientState,
		SessionID:   session.ID,
	}, nil
}

// loadFlow fetches a flow expected to be in wantState, expiring it on the
// way when its window lapsed.
func (s *AuthorizeService) loadFlow(ctx context.Context, flowID, wantState string) (domain.Flow, domain.Client, error) {
	flow, err := s.Store.Flows().GetFlow(ctx, flowID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Flow{}, domain.Client{}, ErrFlowGone
		}
		return domain.Flow{}, domain.Client{}, err
	}

	if flow.Expired(time.Now().UTC()) {
		expired := flow
		expired.State = domain.FlowExpired
		_ = s.Store.Flows().TransitionFlow(ctx, expired, flow.State)
		return domain.Flow{}, domain.Client{}, ErrFlowGone
	}
	if flow.State != wantState {
		return domain.Flow{}, domain.Client{}, ErrFlowGone
	}

	client, err := s.Registry.LookupClient(ctx, flow.ClientID)
	if err != nil {
		return domain.Flow{}, domain.Client{}, err
	}
	return flow, client, nil
}

func (s *AuthorizeService) codeTTL() time.Duration {
	if s.CodeTTL > 0 {
		return s.CodeTTL
	}
	return time.Minute
}

func (s *AuthorizeService) flowTTL() time.Duration {
	if s.FlowTTL > 0 {
		return s.FlowTTL
	}
	return 10 * time.Minute
}

// validatePKCE enforces the challenge rules: clients flagged RequirePKCE and
// all public clients must present one. S256 is the default method when the
// challenge arrives without one.
func validatePKCE(challenge, method string, client domain.Client) (string, string, error) {
	challenge = strings.TrimSpace(challenge)
	method = strings.TrimSpace(method)

	if challenge == "" {
		if client.RequirePKCE || !client.Confidential() {
			return "", "", ErrInvalidRequest
		}
		return "", "", nil
	}

	switch {
	case method == "" || strings.EqualFold(method, domain.CodeChallengeS256):
		method = domain.CodeChallengeS256
	case strings.EqualFold(method, domain.CodeChallengePlain):
		method = domain.CodeChallengePlain
	default:
		return "", "", ErrInvalidRequest
	}

	return challenge, method, nil
}
