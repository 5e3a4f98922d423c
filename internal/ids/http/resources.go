package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/nobcorp/nobids/internal/ids/service"
	"github.com/nobcorp/nobids/pkg/httpx"
	"github.com/nobcorp/nobids/pkg/idsdk"
	"github.com/nobcorp/nobids/pkg/slogx"
)

// CreateResourceRequest is the body of POST /v1/admin/resources.
type CreateResourceRequest struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name,omitempty"`
	Scopes      []string `json:"scopes"`
}

// ResourceInfo is one entry of the resource listing.
type ResourceInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name,omitempty"`
	Scopes      []string `json:"scopes"`
}

// ListResourcesResponse is the body of GET /v1/admin/resources.
type ListResourcesResponse struct {
	Resources []ResourceInfo `json:"resources"`
}

// ResourcesHandler manages the scope catalog: the set of resources whose
// scopes clients may request.
type ResourcesHandler struct {
	RegistryService *service.RegistryService
}

// HandleCreate handles POST /v1/admin/resources
//
//	@Summary		Register a resource
//	@Description	Adds a resource and its scopes to the catalog. Scopes outside the
//	@Description	catalog are rejected at the authorization endpoint.
//	@Tags			Admin
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		CreateResourceRequest	true	"Resource registration"
//	@Success		201		{object}	ResourceInfo
//	@Failure		400		{object}	idsdk.ErrorResponse
//	@Router			/v1/admin/resources [post]
func (h *ResourcesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req CreateResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAdminError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}
	if strings.TrimSpace(req.Name) == "" || len(req.Scopes) == 0 {
		writeAdminError(w, http.StatusBadRequest, "invalid_request", "resource name and at least one scope are required")
		return
	}

	id, err := h.RegistryService.CreateResource(ctx, strings.TrimSpace(req.Name), strings.TrimSpace(req.DisplayName), req.Scopes)
	if err != nil {
		log.Error("failed to create resource", "error", err)
		idsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, ResourceInfo{
		ID:          id,
		Name:        strings.TrimSpace(req.Name),
		DisplayName: strings.TrimSpace(req.DisplayName),
		Scopes:      req.Scopes,
	})
}

// HandleList handles GET /v1/admin/resources
//
//	@Summary		List resources
//	@Description	Returns the scope catalog.
//	@Tags			Admin
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	ListResourcesResponse
//	@Router			/v1/admin/resources [get]
func (h *ResourcesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	resources, err := h.RegistryService.ListResources(ctx)
	if err != nil {
		log.Error("failed to list resources", "error", err)
		idsdk.ErrServerError.WriteError(w)
		return
	}

	out := make([]ResourceInfo, len(resources))
	for i, res := range resources {
		out[i] = ResourceInfo{
			ID:          res.ID,
			Name:        res.Name,
			DisplayName: res.DisplayName,
			Scopes:      res.Scopes,
		}
	}
	httpx.WriteJSON(w, http.StatusOK, ListResourcesResponse{Resources: out})
}
