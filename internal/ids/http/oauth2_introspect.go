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

// IntrospectHandler serves POST /v1/oauth2/introspect per RFC 7662. The
// calling client authenticates with its own credentials; tokens that fail
// verification for any reason come back as simply inactive.
type IntrospectHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Introspection Endpoint
//	@Description	Reports the state and claims of an access or refresh token (RFC 7662).
//	@Description	Requires client authentication. Inactive tokens return only active=false.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			token			formData	string	true	"The token to introspect"
//	@Param			token_type_hint	formData	string	false	"Hint about token type"	Enums(access_token, refresh_token)
//	@Param			client_id		formData	string	true	"Client identifier"
//	@Param			client_secret	formData	string	false	"Client secret (confidential clients)"
//	@Success		200				{object}	idsdk.IntrospectionResponse
//	@Failure		400				{object}	idsdk.ErrorResponse
//	@Failure		401				{object}	idsdk.ErrorResponse
//	@Header			200				{string}	Cache-Control	"no-store"
//	@Router			/v1/oauth2/introspect [post]
func (h *IntrospectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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
	hint := strings.TrimSpace(r.Form.Get("token_type_hint"))
	clientID, clientSecret := clientCredentials(r, r.Form)

	if token == "" || clientID == "" {
		idsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	intro, err := h.TokenService.Introspect(ctx, clientID, clientSecret, token, hint)
	if err != nil {
		if errors.Is(err, service.ErrInvalidClient) {
			idsdk.ErrInvalidClient.WriteError(w)
			return
		}
		log.Error("introspection failed", "err", err)
		idsdk.ErrServerError.WriteError(w)
		return
	}

	if !intro.Active {
		// Per RFC 7662 an inactive token reveals nothing but its inactivity.
		httpx.WriteJSON(w, http.StatusOK, idsdk.IntrospectionResponse{Active: false})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, idsdk.IntrospectionResponse{
		Active:    true,
		Scope:     intro.Scope,
		ClientID:  intro.ClientID,
		TokenType: intro.TokenType,
		Exp:       intro.ExpiresAt,
		Iat:       intro.IssuedAt,
		Sub:       intro.Subject,
		SessionID: intro.SessionID,
	})
}
