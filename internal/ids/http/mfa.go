package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nobcorp/nobids/internal/ids/service"
	"github.com/nobcorp/nobids/pkg/httpx"
	"github.com/nobcorp/nobids/pkg/idsdk"
	"github.com/nobcorp/nobids/pkg/slogx"
)

// TOTPEnrollResponse carries a freshly generated TOTP secret. Nothing is
// persisted until the activate call proves the authenticator has it.
type TOTPEnrollResponse struct {
	Secret string `json:"secret"`
	URL    string `json:"url"`
}

// TOTPActivateRequest echoes the enrollment secret back with a live code.
type TOTPActivateRequest struct {
	Secret string `json:"secret"`
	Code   string `json:"code"`
}

// ChangePasswordRequest rotates the caller's password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// MFAHandler serves second-factor enrollment and account credential
// management for the authenticated subject.
type MFAHandler struct {
	UserService *service.UserService
}

// HandleEnroll handles POST /v1/mfa/totp/enroll
//
//	@Summary		Begin TOTP enrollment
//	@Description	Generates a TOTP secret and otpauth URL for the authenticated user.
//	@Description	The secret is not stored; it must be echoed back to the activate
//	@Description	endpoint together with a valid code.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	TOTPEnrollResponse
//	@Failure		401	{object}	idsdk.ErrorResponse
//	@Router			/v1/mfa/totp/enroll [post]
func (h *MFAHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	subject := httpx.SubjectFromCtx(ctx)
	if subject == "" {
		idsdk.ErrInvalidToken.WriteError(w)
		return
	}

	secret, url, err := h.UserService.BeginTOTPEnrollment(ctx, subject)
	if err != nil {
		log.Error("failed to begin TOTP enrollment", "error", err, "user_id", subject)
		idsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, TOTPEnrollResponse{Secret: secret, URL: url})
}

// HandleActivate handles POST /v1/mfa/totp/activate
//
//	@Summary		Activate TOTP
//	@Description	Enables the second factor once the user proves possession of the
//	@Description	secret with a valid code. Subsequent logins require an OTP code.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body	TOTPActivateRequest	true	"Enrollment secret and live code"
//	@Success		204		"TOTP enabled"
//	@Failure		400		{object}	idsdk.ErrorResponse	"Invalid code"
//	@Failure		401		{object}	idsdk.ErrorResponse
//	@Router			/v1/mfa/totp/activate [post]
func (h *MFAHandler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	subject := httpx.SubjectFromCtx(ctx)
	if subject == "" {
		idsdk.ErrInvalidToken.WriteError(w)
		return
	}

	var req TOTPActivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAdminError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}
	if req.Secret == "" || req.Code == "" {
		writeAdminError(w, http.StatusBadRequest, "invalid_request", "secret and code are required")
		return
	}

	if err := h.UserService.ActivateTOTP(ctx, subject, req.Secret, req.Code); err != nil {
		if errors.Is(err, service.ErrInvalidOTPCode) {
			writeAdminError(w, http.StatusBadRequest, "invalid_code", "the code does not match the secret")
			return
		}
		log.Error("failed to activate TOTP", "error", err, "user_id", subject)
		idsdk.ErrServerError.WriteError(w)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleDisable handles DELETE /v1/mfa/totp
//
//	@Summary		Disable TOTP
//	@Description	Removes the second factor for the authenticated user.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Success		204	"TOTP disabled"
//	@Failure		401	{object}	idsdk.ErrorResponse
//	@Router			/v1/mfa/totp [delete]
func (h *MFAHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	subject := httpx.SubjectFromCtx(ctx)
	if subject == "" {
		idsdk.ErrInvalidToken.WriteError(w)
		return
	}

	if err := h.UserService.DisableTOTP(ctx, subject); err != nil {
		log.Error("failed to disable TOTP", "error", err, "user_id", subject)
		idsdk.ErrServerError.WriteError(w)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleChangePassword handles PUT /v1/me/password
//
//	@Summary		Change password
//	@Description	Rotates the caller's password after verifying the current one.
//	@Tags			Account
//	@Security		BearerAuth
//	@Accept			json
//	@Param			request	body	ChangePasswordRequest	true	"Current and new password"
//	@Success		204		"Password changed"
//	@Failure		400		{object}	idsdk.ErrorResponse
//	@Failure		401		{object}	idsdk.ErrorResponse	"Current password wrong"
//	@Router			/v1/me/password [put]
func (h *MFAHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	subject := httpx.SubjectFromCtx(ctx)
	if subject == "" {
		idsdk.ErrInvalidToken.WriteError(w)
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAdminError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeAdminError(w, http.StatusBadRequest, "invalid_request", "current_password and new_password are required")
		return
	}

	if err := h.UserService.ChangePassword(ctx, subject, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeAdminError(w, http.StatusUnauthorized, "invalid_credentials", "current password is wrong")
			return
		}
		log.Error("failed to change password", "error", err, "user_id", subject)
		idsdk.ErrServerError.WriteError(w)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
