package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/nobcorp/nobids/internal/ids/service"
	"github.com/nobcorp/nobids/pkg/httpx"
	"github.com/nobcorp/nobids/pkg/idsdk"
	"github.com/nobcorp/nobids/pkg/slogx"
)

// RevokeHandler serves POST /v1/oauth2/revoke per RFC 7009. Revocation
// targets refresh tokens; the whole family dies with the presented token.
// Unknown or foreign tokens still return 200 OK so the endpoint cannot be
// used to probe for live tokens.
type RevokeHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Revocation Endpoint
//	@Description	Revokes a refresh token and every descendant in its family (RFC 7009).
//	@Description	Access tokens expire naturally. Returns 200 OK even for unknown tokens.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			token			formData	string	true	"The token to revoke"
//	@Param			token_type_hint	formData	string	false	"Hint about token type"	Enums(access_token, refresh_token)
//	@Param			client_id		formData	string	true	"Client identifier"
//	@Param			client_secret	formData	string	false	"Client secret (confidential clients)"
//	@Success		200				"Token revoked (or was already invalid)"
//	@Failure		400				{object}	idsdk.ErrorResponse
//	@Failure		401				{object}	idsdk.ErrorResponse
//	@Router			/v1/oauth2/revoke [post]
func (h *RevokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		idsdk.ErrInvalidContentType.WriteError(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		idsdk.ErrInvalidFormBody.WriteError(w)
		return
	}

	token := r.Form.Get("token")
	clientID, clientSecret := clientCredentials(r, r.Form)

	if token == "" || clientID == "" {
		idsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.TokenService.Revoke(ctx, clientID, clientSecret, token); err != nil {
		// Bad client credentials are the one failure the RFC surfaces.
		if errors.Is(err, service.ErrInvalidClient) {
			idsdk.ErrInvalidClient.WriteError(w)
			return
		}
		log.Warn("revoke failed", "err", err)
		idsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("{}"))
}
