package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/nobcorp/nobids/internal/ids/service"
	"github.com/nobcorp/nobids/pkg/httpx"
	"github.com/nobcorp/nobids/pkg/idsdk"
	"github.com/nobcorp/nobids/pkg/slogx"
)

// BootstrapHandler serves the one-shot deployment seed.
type BootstrapHandler struct {
	BootstrapService *service.BootstrapService
}

// ServeHTTP godoc
//
//	@Summary		Bootstrap the deployment
//	@Description	Seeds an empty deployment: the scope catalog, the first admin user and
//	@Description	a protected management client. Gated by the configured bootstrap token
//	@Description	and usable exactly once. The returned client secret is shown only here.
//	@Tags			Admin
//	@Accept			json
//	@Produce		json
//	@Param			request	body		idsdk.BootstrapRequest	true	"Bootstrap configuration"
//	@Success		201		{object}	idsdk.BootstrapResponse
//	@Failure		400		{object}	idsdk.ErrorResponse
//	@Failure		401		{object}	idsdk.ErrorResponse	"Bad token or already bootstrapped"
//	@Failure		404		{object}	idsdk.ErrorResponse	"Bootstrap not enabled"
//	@Router			/v1/admin/bootstrap [post]
func (h *BootstrapHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if h.BootstrapService.Token == "" {
		writeAdminError(w, http.StatusNotFound, "not_found", "bootstrap endpoint is not enabled")
		return
	}

	var req idsdk.BootstrapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAdminError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}

	username := strings.TrimSpace(req.AdminUsername)
	password := strings.TrimSpace(req.AdminPassword)
	clientName := strings.TrimSpace(req.ClientName)
	if username == "" || password == "" || clientName == "" {
		writeAdminError(w, http.StatusBadRequest, "invalid_request",
			"admin_username, admin_password and client_name are required")
		return
	}

	adminUserID, clientID, clientSecret, err := h.BootstrapService.Bootstrap(ctx, req.BootstrapToken, service.BootstrapData{
		AdminUsername:      username,
		AdminPreferredName: username,
		AdminPassword:      password,
		ClientName:         clientName,
		ClientRedirectURIs: req.ClientRedirectURIs,
		ClientScopes:       req.ClientScopes,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBootstrapAlready):
			writeAdminError(w, http.StatusUnauthorized, "unauthorized", "system has already been bootstrapped")
		case errors.Is(err, service.ErrBootstrapUnauthorized):
			writeAdminError(w, http.StatusUnauthorized, "unauthorized", "invalid bootstrap token")
		default:
			log.Error("bootstrap failed", "error", err)
			idsdk.ErrServerError.WriteError(w)
		}
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusCreated, idsdk.BootstrapResponse{
		AdminUserID:  adminUserID,
		ClientID:     clientID,
		ClientSecret: clientSecret,
	})
}
