package api

import (
	"net/http"

	"github.com/paydesk/payments-backend/api/apicommon"
	"github.com/paydesk/payments-backend/errors"
)

// refreshTokenHandler godoc
//
//	@Summary		Refresh JWT token
//	@Description	Refresh the JWT token of the authenticated operator. Returns a new token with extended expiration.
//	@Tags			auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	apicommon.LoginResponse
//	@Failure		401	{object}	errors.Error	"Unauthorized"
//	@Failure		500	{object}	errors.Error	"Internal server error"
//	@Router			/auth/refresh [post]
func (a *API) refreshTokenHandler(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := apicommon.OperatorFromContext(r.Context())
	if !ok {
		errors.ErrUnauthorized.Write(w)
		return
	}
	res, err := makeToken(a.auth, operatorID, jwtExpiration)
	if err != nil {
		errors.ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	apicommon.HTTPWriteJSON(w, res)
}
