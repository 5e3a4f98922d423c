package http

import (
	"net/http"

	"github.com/nobcorp/nobids/pkg/httpx"
	"github.com/nobcorp/nobids/pkg/idsdk"
	"github.com/nobcorp/nobids/pkg/jwtx"
)

// JWKSHandler exposes the JSON Web Key Set for public key discovery.
//
//	@Summary		Get JWKS
//	@Description	Returns the JSON Web Key Set used to verify issued tokens.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	idsdk.JWKSResponse	"The JSON Web Key Set"
//	@Router			/.well-known/jwks.json [get]
func JWKSHandler(keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, idsdk.JWKSResponse(keys.PublicJWKS()))
	}
}
