package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/nobcorp/nobids/internal/ids/service"
	"github.com/nobcorp/nobids/pkg/httpx"
	"github.com/nobcorp/nobids/pkg/idsdk"
	"github.com/nobcorp/nobids/pkg/slogx"
)

// CreateClientRequest is the body of POST /v1/admin/clients.
type CreateClientRequest struct {
	Name         string   `json:"name"`
	Confidential bool     `json:"confidential"`
	RedirectURIs []string `json:"redirect_uris,omitempty"`
	GrantTypes   []string `json:"grant_types,omitempty"`
	Scopes       []string `json:"scopes"`
}

// CreateClientResponse carries the new client id and, for confidential
// clients, the secret. The secret is shown exactly once.
type CreateClientResponse struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// ClientInfo is one entry of the client listing.
type ClientInfo struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	RedirectURIs []string `json:"redirect_uris,omitempty"`
	GrantTypes   []string `json:"grant_types,omitempty"`
	Scopes       []string `json:"scopes"`
	Confidential bool     `json:"confidential"`
	RequirePKCE  bool     `json:"require_pkce"`
	Protected    bool     `json:"protected"`
	CreatedAt    string   `json:"created_at"`
}

// ListClientsResponse is the body of GET /v1/admin/clients.
type ListClientsResponse struct {
	Clients []ClientInfo `json:"clients"`
}

// UpdateClientScopesRequest is the body of PUT /v1/admin/clients/{id}/scopes.
type UpdateClientScopesRequest struct {
	Scopes []string `json:"scopes"`
}

// ClientsHandler handles the client administration endpoints.
type ClientsHandler struct {
	RegistryService *service.RegistryService
}

// HandleCreate handles POST /v1/admin/clients
//
//	@Summary		Create OAuth2 client
//	@Description	Registers a new OAuth2 client. Confidential clients get a generated
//	@Description	secret returned exactly once; public clients are forced onto PKCE.
//	@Tags			Admin
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		CreateClientRequest	true	"Client registration"
//	@Success		201		{object}	CreateClientResponse
//	@Failure		400		{object}	idsdk.ErrorResponse
//	@Failure		401		{object}	idsdk.ErrorResponse
//	@Failure		403		{object}	idsdk.ErrorResponse
//	@Router			/v1/admin/clients [post]
func (h *ClientsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req CreateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAdminError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		writeAdminError(w, http.StatusBadRequest, "invalid_request", "client name is required")
		return
	}
	if len(req.Scopes) == 0 {
		writeAdminError(w, http.StatusBadRequest, "invalid_request", "at least one scope is required")
		return
	}

	clientID, secret, err := h.RegistryService.CreateClient(
		ctx,
		strings.TrimSpace(req.Name),
		req.Confidential,
		req.RedirectURIs,
		req.GrantTypes,
		req.Scopes,
	)
	if err != nil {
		log.Error("failed to create client", "error", err)
		idsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, CreateClientResponse{
		ClientID:     clientID,
		ClientSecret: secret,
	})
}

// HandleList handles GET /v1/admin/clients
//
//	@Summary		List OAuth2 clients
//	@Description	Returns every registered client. Secrets are never included.
//	@Tags			Admin
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	ListClientsResponse
//	@Failure		401	{object}	idsdk.ErrorResponse
//	@Failure		403	{object}	idsdk.ErrorResponse
//	@Router			/v1/admin/clients [get]
func (h *ClientsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	clients, err := h.RegistryService.ListClients(ctx)
	if err != nil {
		log.Error("failed to list clients", "error", err)
		idsdk.ErrServerError.WriteError(w)
		return
	}

	out := make([]ClientInfo, len(clients))
	for i, client := range clients {
		out[i] = ClientInfo{
			ID:           client.ID,
			Name:         client.Name,
			RedirectURIs: client.RedirectURIs,
			GrantTypes:   client.GrantTypes,
			Scopes:       client.Scopes,
			Confidential: client.Confidential(),
			RequirePKCE:  client.RequirePKCE,
			Protected:    client.Protected,
			CreatedAt:    client.CreatedAt.Format(time.RFC3339),
		}
	}

	httpx.WriteJSON(w, http.StatusOK, ListClientsResponse{Clients: out})
}

// HandleUpdateScopes handles PUT /v1/admin/clients/{id}/scopes
//
//	@Summary		Replace a client's scope set
//	@Description	Replaces the client's allowed scopes and invalidates every recorded
//	@Description	consent for the client, so users re-approve under the new set.
//	@Tags			Admin
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path	string						true	"Client ID"
//	@Param			request	body	UpdateClientScopesRequest	true	"New scope set"
//	@Success		204		"Scopes updated"
//	@Failure		400		{object}	idsdk.ErrorResponse
//	@Failure		404		{object}	idsdk.ErrorResponse
//	@Router			/v1/admin/clients/{id}/scopes [put]
func (h *ClientsHandler) HandleUpdateScopes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	clientID := r.PathValue("id")

	var req UpdateClientScopesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAdminError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}
	if len(req.Scopes) == 0 {
		writeAdminError(w, http.StatusBadRequest, "invalid_request", "at least one scope is required")
		return
	}

	if err := h.RegistryService.UpdateClientScopes(ctx, clientID, req.Scopes); err != nil {
		if errors.Is(err, service.ErrClientNotFound) {
			writeAdminError(w, http.StatusNotFound, "client_not_found", "client not found")
			return
		}
		log.Error("failed to update client scopes", "error", err, "client_id", clientID)
		idsdk.ErrServerError.WriteError(w)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleDelete handles DELETE /v1/admin/clients/{id}
//
//	@Summary		Delete OAuth2 client
//	@Description	Deletes a client. Protected clients cannot be deleted.
//	@Tags			Admin
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path	string	true	"Client ID"
//	@Success		204	"Client deleted"
//	@Failure		403	{object}	idsdk.ErrorResponse	"Client is protected"
//	@Failure		404	{object}	idsdk.ErrorResponse
//	@Router			/v1/admin/clients/{id} [delete]
func (h *ClientsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	clientID := r.PathValue("id")

	if err := h.RegistryService.DeleteClient(ctx, clientID); err != nil {
		switch {
		case errors.Is(err, service.ErrClientNotFound):
			writeAdminError(w, http.StatusNotFound, "client_not_found", "client not found")
		case errors.Is(err, service.ErrClientProtected):
			writeAdminError(w, http.StatusForbidden, "client_protected", "cannot delete protected client")
		default:
			log.Error("failed to delete client", "error", err, "client_id", clientID)
			idsdk.ErrServerError.WriteError(w)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeAdminError(w http.ResponseWriter, status int, code, description string) {
	httpx.WriteJSON(w, status, idsdk.ErrorResponse{
		Error:            code,
		ErrorDescription: description,
	})
}
