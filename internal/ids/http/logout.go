package http

import (
	"errors"
	"net/http"

	"github.com/nobcorp/nobids/internal/ids/service"
	"github.com/nobcorp/nobids/internal/ids/store"
	"github.com/nobcorp/nobids/pkg/httpx"
	"github.com/nobcorp/nobids/pkg/idsdk"
	"github.com/nobcorp/nobids/pkg/slogx"
)

// LogoutHandler tears down the browser session named by the session cookie:
// the session itself and every refresh token granted under it.
type LogoutHandler struct {
	SessionService *service.SessionService
}

// ServeHTTP godoc
//
//	@Summary		End the browser session
//	@Description	Revokes the session named by the session cookie along with all
//	@Description	refresh tokens granted under it, and clears the cookie. Requests
//	@Description	without a session cookie still succeed.
//	@Tags			Sessions
//	@Produce		json
//	@Success		200	"Session revoked"
//	@Router			/v1/logout [post]
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if sessionID := sessionIDFromCookie(r); sessionID != "" {
		// Unknown sessions are fine; the cookie may simply be stale.
		if err := h.SessionService.RevokeSession(ctx, sessionID); err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Error("logout failed", "err", err)
			idsdk.ErrServerError.WriteError(w)
			return
		}
	}

	clearSessionCookie(w)
	httpx.NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("{}"))
}
