package http

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nobcorp/nobids/internal/ids/domain"
	"github.com/nobcorp/nobids/internal/ids/service"
	"github.com/nobcorp/nobids/pkg/httpx"
	"github.com/nobcorp/nobids/pkg/idsdk"
	"github.com/nobcorp/nobids/pkg/slogx"
)

// TokenHandler serves POST /v1/oauth2/token
// Accepts application/x-www-form-urlencoded per the RFC 6749 framework.
type TokenHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Endpoint
//	@Description	Issues access, ID and refresh tokens for the authorization_code,
//	@Description	refresh_token and client_credentials grants. Confidential clients may
//	@Description	authenticate with HTTP Basic or with form parameters.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			grant_type		formData	string	true	"Grant type"	Enums(authorization_code, refresh_token, client_credentials)
//	@Param			code			formData	string	false	"Authorization code (authorization_code grant)"
//	@Param			redirect_uri	formData	string	false	"Redirect URI the code was issued for (authorization_code grant)"
//	@Param			code_verifier	formData	string	false	"PKCE code_verifier (required when the code carries a challenge)"
//	@Param			refresh_token	formData	string	false	"Refresh token (refresh_token grant)"
//	@Param			client_id		formData	string	true	"Client identifier"
//	@Param			client_secret	formData	string	false	"Client secret (confidential clients)"
//	@Param			scope			formData	string	false	"Space-delimited list of scopes"
//	@Success		200				{object}	idsdk.TokenResponse
//	@Failure		400				{object}	idsdk.ErrorResponse
//	@Failure		401				{object}	idsdk.ErrorResponse
//	@Header			200				{string}	Cache-Control	"no-store"
//	@Router			/v1/oauth2/token [post]
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		idsdk.ErrInvalidContentType.WriteError(w)
		return
	}

	if err := r.ParseForm(); err != nil {
		idsdk.ErrInvalidFormBody.WriteError(w)
		return
	}

	switch r.Form.Get("grant_type") {
	case "authorization_code":
		h.handleAuthorizationCodeGrant(w, r, r.Form)
	case "refresh_token":
		h.handleRefreshGrant(w, r, r.Form)
	case "client_credentials":
		h.handleClientCredentialsGrant(w, r, r.Form)
	default:
		idsdk.ErrUnsupportedGrantType.WriteError(w)
	}
}

func (h *TokenHandler) handleAuthorizationCodeGrant(
	w http.ResponseWriter,
	r *http.Request,
	form url.Values,
) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	clientID, clientSecret := clientCredentials(r, form)
	code := strings.TrimSpace(form.Get("code"))
	redirectURI := strings.TrimSpace(form.Get("redirect_uri"))
	codeVerifier := strings.TrimSpace(form.Get("code_verifier"))

	if code == "" || redirectURI == "" || clientID == "" {
		idsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.TokenService.ExchangeAuthorizationCode(ctx, clientID, clientSecret, code, redirectURI, codeVerifier)
	if err != nil {
		h.writeGrantError(w, log, "authorization_code", err)
		return
	}
	writeTokenResponse(w, pair)
}

func (h *TokenHandler) handleRefreshGrant(w http.ResponseWriter, r *http.Request, form url.Values) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	clientID, clientSecret := clientCredentials(r, form)
	refresh := form.Get("refresh_token")
	requested := httpx.ParseSpaceDelimitedFields(form.Get("scope"))

	if refresh == "" || clientID == "" {
		idsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.TokenService.ExchangeRefreshToken(ctx, clientID, clientSecret, refresh, requested)
	if err != nil {
		h.writeGrantError(w, log, "refresh_token", err)
		return
	}
	writeTokenResponse(w, pair)
}

func (h *TokenHandler) handleClientCredentialsGrant(
	w http.ResponseWriter,
	r *http.Request,
	form url.Values,
) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	clientID, clientSecret := clientCredentials(r, form)
	requested := httpx.ParseSpaceDelimitedFields(form.Get("scope"))

	if clientID == "" || clientSecret == "" {
		idsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.TokenService.ExchangeClientCredentials(ctx, clientID, clientSecret, requested)
	if err != nil {
		h.writeGrantError(w, log, "client_credentials", err)
		return
	}
	writeTokenResponse(w, pair)
}

func (h *TokenHandler) writeGrantError(w http.ResponseWriter, log *slog.Logger, grant string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidClient):
		idsdk.ErrInvalidClient.WriteError(w)
	case errors.Is(err, service.ErrUnauthorizedClient):
		idsdk.ErrUnauthorizedClient.WriteError(w)
	case errors.Is(err, service.ErrInvalidGrant):
		idsdk.ErrInvalidGrant.WriteError(w)
	case errors.Is(err, service.ErrInvalidScope):
		idsdk.ErrInvalidScope.WriteError(w)
	default:
		log.Error(grant+" grant failed", "err", err)
		idsdk.ErrServerError.WriteError(w)
	}
}

func writeTokenResponse(w http.ResponseWriter, pair *domain.TokenPair) {
	httpx.WriteJSON(w, http.StatusOK, idsdk.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		IDToken:      pair.IDToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    int(pair.ExpiresIn / time.Second),
		Scope:        pair.Scope,
	})
}

// clientCredentials extracts the client id and secret, preferring HTTP Basic
// per RFC 6749 section 2.3.1 over the form parameters. Basic credentials are
// form-urlencoded inside the header.
func clientCredentials(r *http.Request, form url.Values) (string, string) {
	if id, secret, ok := r.BasicAuth(); ok {
		if decoded, err := url.QueryUnescape(id); err == nil {
			id = decoded
		}
		if decoded, err := url.QueryUnescape(secret); err == nil {
			secret = decoded
		}
		return id, secret
	}
	return strings.TrimSpace(form.Get("client_id")), form.Get("client_secret")
}
