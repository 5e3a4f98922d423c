package http

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nobcorp/nobids/internal/ids/service"
	"github.com/nobcorp/nobids/pkg/httpx"
	"github.com/nobcorp/nobids/pkg/idsdk"
	"github.com/nobcorp/nobids/pkg/slogx"
)

const sessionCookieName = "ids_session"

// AuthorizeHandler processes OAuth2 authorization requests: the code flow
// with PKCE and the implicit grant. A request either finishes with a
// redirect or suspends into a flow awaiting login or consent.
type AuthorizeHandler struct {
	AuthorizeService *service.AuthorizeService
	Logger           *slog.Logger
}

// HandleGet begins an authorization flow from a browser redirect.
//
//	@Summary		OAuth2 authorization endpoint (GET)
//	@Description	Begins the OAuth2 authorization flow. If the browser carries a valid
//	@Description	session cookie and the user already consented to the requested scopes,
//	@Description	the response is an immediate 302 redirect carrying the code (or, for
//	@Description	response_type=token, the access token in the fragment). Otherwise the
//	@Description	flow suspends and a 401 login challenge with a flow_id is returned.
//	@Tags			OAuth2
//	@Produce		json
//	@Param			response_type			query		string	true	"code or token"	default(code)
//	@Param			client_id				query		string	true	"OAuth2 client identifier"
//	@Param			redirect_uri			query		string	true	"Callback URI (must match a registered redirect URI exactly)"
//	@Param			scope					query		string	false	"Space-delimited scope list"
//	@Param			state					query		string	false	"Opaque value echoed back on the redirect"
//	@Param			nonce					query		string	false	"OpenID Connect nonce, echoed into the ID token"
//	@Param			code_challenge			query		string	false	"PKCE code challenge (required for public clients)"
//	@Param			code_challenge_method	query		string	false	"S256 or plain, defaults to S256"	Enums(S256, plain)
//	@Success		302						{string}	string	"Redirect to redirect_uri"
//	@Failure		400						{object}	idsdk.ErrorResponse
//	@Failure		401						{object}	idsdk.LoginChallenge	"Flow suspended awaiting login"
//	@Router			/v1/oauth2/authorize [get]
func (h *AuthorizeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	req := h.buildBeginRequest(nil, r.URL.Query())
	req.SessionID = sessionIDFromCookie(r)

	outcome, err := h.AuthorizeService.Begin(r.Context(), req)
	if err != nil {
		h.writeBeginError(w, r, req, err)
		return
	}
	h.writeOutcome(w, r, outcome)
}

// HandlePost resumes a suspended flow with credentials or a consent
// decision, or begins a new flow when no flow_id is present.
//
//	@Summary		OAuth2 authorization endpoint (POST)
//	@Description	Resumes a suspended authorization flow. With username/password (and
//	@Description	otp_code for enrolled users) it completes the login step; with
//	@Description	consent=accept or consent=deny it completes the consent step. A user
//	@Description	with a second factor enrolled who omits otp_code gets a 401 challenge
//	@Description	with prompt=otp and the same flow_id.
//	@Tags			OAuth2
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			flow_id		formData	string	false	"Flow identifier from a previous challenge"
//	@Param			username	formData	string	false	"Username for the login step"
//	@Param			password	formData	string	false	"Password for the login step"
//	@Param			otp_code	formData	string	false	"TOTP code for users with a second factor"
//	@Param			consent		formData	string	false	"Consent decision"	Enums(accept, deny)
//	@Success		302			{string}	string	"Redirect to redirect_uri"
//	@Failure		400			{object}	idsdk.ErrorResponse
//	@Failure		401			{object}	idsdk.LoginChallenge	"Login or second factor still required"
//	@Failure		403			{object}	idsdk.LoginChallenge	"Consent still required"
//	@Router			/v1/oauth2/authorize [post]
func (h *AuthorizeHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		idsdk.ErrInvalidContentType.WriteError(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		idsdk.ErrInvalidFormBody.WriteError(w)
		return
	}

	flowID := strings.TrimSpace(r.Form.Get("flow_id"))
	if flowID == "" {
		req := h.buildBeginRequest(r.Form, r.URL.Query())
		req.SessionID = sessionIDFromCookie(r)

		outcome, err := h.AuthorizeService.Begin(r.Context(), req)
		if err != nil {
			h.writeBeginError(w, r, req, err)
			return
		}
		h.writeOutcome(w, r, outcome)
		return
	}

	if consent := strings.TrimSpace(r.Form.Get("consent")); consent != "" {
		h.handleConsent(w, r, flowID, consent)
		return
	}
	h.handleLogin(w, r, flowID)
}

func (h *AuthorizeHandler) handleLogin(w http.ResponseWriter, r *http.Request, flowID string) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	username := strings.TrimSpace(r.Form.Get("username"))
	password := r.Form.Get("password")
	otpCode := strings.TrimSpace(r.Form.Get("otp_code"))

	if username == "" || password == "" {
		idsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	outcome, err := h.AuthorizeService.CompleteAuthentication(ctx, flowID, username, password, otpCode)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOTPRequired):
			// Same flow, one more factor. The client resubmits with otp_code.
			httpx.WriteJSON(w, http.StatusUnauthorized, idsdk.LoginChallenge{
				FlowID: flowID,
				Prompt: "otp",
			})
		case errors.Is(err, service.ErrInvalidCredentials):
			idsdk.ErrInvalidGrant.WriteError(w)
		case errors.Is(err, service.ErrFlowGone):
			writeFlowGone(w)
		default:
			log.Error("authorization login failed", "error", err)
			idsdk.ErrServerError.WriteError(w)
		}
		return
	}
	h.writeOutcome(w, r, outcome)
}

func (h *AuthorizeHandler) handleConsent(w http.ResponseWriter, r *http.Request, flowID, decision string) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if decision != "accept" && decision != "deny" {
		idsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	outcome, err := h.AuthorizeService.CompleteConsent(ctx, flowID, decision == "accept")
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAccessDenied):
			idsdk.ErrAccessDenied.WriteError(w)
		case errors.Is(err, service.ErrLoginRequired):
			idsdk.ErrLoginRequired.WriteError(w)
		case errors.Is(err, service.ErrFlowGone):
			writeFlowGone(w)
		default:
			log.Error("authorization consent failed", "error", err)
			idsdk.ErrServerError.WriteError(w)
		}
		return
	}
	h.writeOutcome(w, r, outcome)
}

func (h *AuthorizeHandler) buildBeginRequest(primary, secondary url.Values) service.BeginRequest {
	pick := func(key string) string {
		if primary != nil {
			if v := strings.TrimSpace(primary.Get(key)); v != "" {
				return v
			}
		}
		if secondary != nil {
			return strings.TrimSpace(secondary.Get(key))
		}
		return ""
	}

	return service.BeginRequest{
		ResponseType:        pick("response_type"),
		ClientID:            pick("client_id"),
		RedirectURI:         pick("redirect_uri"),
		Scopes:              httpx.ParseSpaceDelimitedFields(pick("scope")),
		State:               pick("state"),
		Nonce:               pick("nonce"),
		CodeChallenge:       pick("code_challenge"),
		CodeChallengeMethod: pick("code_challenge_method"),
	}
}

// writeOutcome renders one step of the flow: a final redirect, or a JSON
// challenge naming the pending interaction. The session cookie rides along
// as soon as the flow has an authenticated session behind it.
func (h *AuthorizeHandler) writeOutcome(w http.ResponseWriter, r *http.Request, outcome *service.Outcome) {
	if outcome.SessionID != "" {
		setSessionCookie(w, r, outcome.SessionID)
	}

	if !outcome.Done() {
		status := http.StatusUnauthorized
		if outcome.Prompt == "consent" {
			status = http.StatusForbidden
		}
		httpx.WriteJSON(w, status, idsdk.LoginChallenge{
			FlowID: outcome.FlowID,
			Prompt: outcome.Prompt,
			Client: outcome.ClientName,
			Scopes: outcome.Scopes,
		})
		return
	}

	var (
		location string
		err      error
	)
	if outcome.Token != nil {
		location, err = buildImplicitRedirect(outcome)
	} else {
		location, err = buildCodeRedirect(outcome.RedirectURI, outcome.Code, outcome.State)
	}
	if err != nil {
		h.logger().Error("failed to build redirect URL", "error", err)
		idsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	http.Redirect(w, r, location, http.StatusFound)
}

// writeBeginError maps Begin failures onto the wire. Client identity and
// redirect URI are validated before anything else, so their failures never
// redirect; every later failure goes back to the validated redirect URI
// per RFC 6749 section 4.1.2.1.
func (h *AuthorizeHandler) writeBeginError(w http.ResponseWriter, r *http.Request, req service.BeginRequest, err error) {
	log := slogx.FromContext(r.Context())

	switch {
	case errors.Is(err, service.ErrInvalidClient):
		idsdk.ErrInvalidClient.WriteError(w)
		return
	case errors.Is(err, service.ErrInvalidRedirect):
		idsdk.NewOAuth2Error(
			http.StatusBadRequest,
			idsdk.ErrorCodeInvalidRequest,
			"the redirect_uri does not match a registered URI for the client",
		).WriteError(w)
		return
	}

	var oauthErr *idsdk.OAuth2Error
	switch {
	case errors.Is(err, service.ErrUnsupportedResponseType):
		oauthErr = idsdk.ErrUnsupportedResponseType
	case errors.Is(err, service.ErrUnauthorizedClient):
		oauthErr = idsdk.ErrUnauthorizedClient
	case errors.Is(err, service.ErrInvalidScope):
		oauthErr = idsdk.ErrInvalidScope
	case errors.Is(err, service.ErrInvalidRequest):
		oauthErr = idsdk.ErrInvalidRequest
	default:
		log.Error("authorize request failed", "error", err)
		idsdk.ErrServerError.WriteError(w)
		return
	}

	if location := buildErrorRedirect(req.RedirectURI, req.State, oauthErr); location != "" {
		httpx.NoCache(w)
		http.Redirect(w, r, location, http.StatusFound)
		return
	}
	oauthErr.WriteError(w)
}

func (h *AuthorizeHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func writeFlowGone(w http.ResponseWriter) {
	idsdk.NewOAuth2Error(
		http.StatusBadRequest,
		idsdk.ErrorCodeInvalidRequest,
		"the authorization flow is expired or already finished",
	).WriteError(w)
}

func sessionIDFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// buildCodeRedirect appends the code and state to the redirect URI query.
func buildCodeRedirect(baseURI, code, state string) (string, error) {
	u, err := url.Parse(baseURI)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// buildImplicitRedirect carries the token in the URI fragment, never the
// query, so it stays out of server logs and Referer headers.
func buildImplicitRedirect(outcome *service.Outcome) (string, error) {
	u, err := url.Parse(outcome.RedirectURI)
	if err != nil {
		return "", err
	}

	frag := url.Values{}
	frag.Set("access_token", outcome.Token.AccessToken)
	frag.Set("token_type", outcome.Token.TokenType)
	frag.Set("expires_in", strconv.Itoa(int(outcome.Token.ExpiresIn/time.Second)))
	if outcome.Token.Scope != "" {
		frag.Set("scope", outcome.Token.Scope)
	}
	if outcome.State != "" {
		frag.Set("state", outcome.State)
	}
	u.Fragment = ""
	return u.String() + "#" + frag.Encode(), nil
}

// buildErrorRedirect appends error parameters to the redirect URI. Returns
// "" when the URI is absent or unparseable, in which case the error is
// written as JSON instead.
func buildErrorRedirect(baseURI, state string, oauthErr *idsdk.OAuth2Error) string {
	if baseURI == "" {
		return ""
	}
	u, err := url.Parse(baseURI)
	if err != nil {
		return ""
	}

	q := u.Query()
	q.Set("error", oauthErr.Code)
	if oauthErr.Description != "" {
		q.Set("error_description", oauthErr.Description)
	}
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()

	return u.String()
}
