package http

import (
	"net/http"

	"github.com/nobcorp/nobids/internal/ids/service"
	"github.com/nobcorp/nobids/pkg/httpx"
	"github.com/nobcorp/nobids/pkg/idsdk"
	"github.com/nobcorp/nobids/pkg/slogx"
)

// UserinfoHandler serves the OpenID Connect userinfo endpoint.
type UserinfoHandler struct {
	UserService *service.UserService
}

// ServeHTTP godoc
//
//	@Summary		Get userinfo claims
//	@Description	Returns claims about the authenticated end user. Requires an access
//	@Description	token carrying the "openid" scope.
//	@Tags			OAuth2
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	idsdk.UserinfoResponse
//	@Failure		401	{object}	idsdk.ErrorResponse	"Invalid or missing access token"
//	@Router			/v1/userinfo [get]
func (h *UserinfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	subject := httpx.SubjectFromCtx(ctx)
	if subject == "" {
		idsdk.ErrInvalidToken.WriteError(w)
		return
	}

	user, err := h.UserService.GetUserByID(ctx, subject)
	if err != nil {
		log.Warn("failed to load user for userinfo", "sub", subject, "err", err)
		idsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, idsdk.UserinfoResponse{
		Sub:               user.ID,
		PreferredUsername: user.Username,
		Name:              user.PreferredName,
		UpdatedAt:         user.UpdatedAt.Unix(),
	})
}
