package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nobcorp/nobids/internal/ids/service"
	"github.com/nobcorp/nobids/internal/ids/store"
	"github.com/nobcorp/nobids/pkg/httpx"
	"github.com/nobcorp/nobids/pkg/idsdk"
	"github.com/nobcorp/nobids/pkg/jwtx"
	"github.com/nobcorp/nobids/pkg/slogx"
)

// RotateKeyRequest is the body of POST /v1/admin/keys/rotate.
type RotateKeyRequest struct {
	// RetireExisting ends the validity window of every previously signable
	// key, keeping them verify-only.
	RetireExisting bool `json:"retire_existing"`
}

// RotateKeyResponse reports the new signing key and whatever was retired.
type RotateKeyResponse struct {
	NewKey      service.KeyInfo `json:"new_key"`
	RetiredKeys []string        `json:"retired_keys,omitempty"`
}

// ListKeysResponse is the body of GET /v1/admin/keys.
type ListKeysResponse struct {
	Keys []service.KeyInfo `json:"keys"`
}

// KeyRotationHandler exposes signing-key lifecycle operations. Works in both
// ephemeral and persistent key modes; persistent mode survives restarts.
type KeyRotationHandler struct {
	KeyRotationService *service.KeyRotationService
}

// HandleRotate handles POST /v1/admin/keys/rotate
//
//	@Summary		Rotate signing keys
//	@Description	Generates a new signing key and optionally retires the previous ones.
//	@Description	Retired keys keep verifying existing tokens until they expire.
//	@Tags			Admin
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			body	body		RotateKeyRequest	true	"Rotation options"
//	@Success		200		{object}	RotateKeyResponse
//	@Failure		400		{object}	idsdk.ErrorResponse
//	@Failure		500		{object}	idsdk.ErrorResponse
//	@Router			/v1/admin/keys/rotate [post]
func (h *KeyRotationHandler) HandleRotate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req RotateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAdminError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}

	newKey, retired, err := h.KeyRotationService.RotateKey(ctx, req.RetireExisting)
	if err != nil {
		log.Error("key rotation failed", "error", err)
		idsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, RotateKeyResponse{
		NewKey:      newKey,
		RetiredKeys: retired,
	})
}

// HandleList handles GET /v1/admin/keys
//
//	@Summary		List signing keys
//	@Description	Lists every signing key with its validity window and status.
//	@Tags			Admin
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	ListKeysResponse
//	@Router			/v1/admin/keys [get]
func (h *KeyRotationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	keys, err := h.KeyRotationService.ListKeys(ctx)
	if err != nil {
		log.Error("failed to list signing keys", "error", err)
		idsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, ListKeysResponse{Keys: keys})
}

// HandleRetire handles POST /v1/admin/keys/{kid}/retire
//
//	@Summary		Retire a signing key
//	@Description	Ends a key's signing window. The key keeps verifying until expiry.
//	@Description	The last signable key cannot be retired.
//	@Tags			Admin
//	@Produce		json
//	@Security		BearerAuth
//	@Param			kid	path	string	true	"Key identifier"
//	@Success		204	"Key retired"
//	@Failure		404	{object}	idsdk.ErrorResponse
//	@Failure		409	{object}	idsdk.ErrorResponse	"Retiring would leave no signing key"
//	@Router			/v1/admin/keys/{kid}/retire [post]
func (h *KeyRotationHandler) HandleRetire(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	kid := r.PathValue("kid")

	if err := h.KeyRotationService.RetireKey(ctx, kid); err != nil {
		switch {
		case errors.Is(err, jwtx.ErrUnknownKID), errors.Is(err, store.ErrNotFound):
			writeAdminError(w, http.StatusNotFound, "key_not_found", "signing key not found")
		case errors.Is(err, jwtx.ErrLastSigningKey):
			writeAdminError(w, http.StatusConflict, "last_signing_key", "cannot retire the last signing key")
		default:
			log.Error("failed to retire signing key", "error", err, "kid", kid)
			idsdk.ErrServerError.WriteError(w)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
