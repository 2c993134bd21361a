package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/paydesk/payments-backend/api/apicommon"
	"github.com/paydesk/payments-backend/errors"
)

// authenticator is a middleware that checks the JWT token verified by
// jwtauth.Verifier. The token must carry the operatorId claim, which is
// added to the request context for the handlers.
func (a *API) authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			errors.ErrUnauthorized.Write(w)
			return
		}
		if token == nil || jwt.Validate(token, jwt.WithRequiredClaim(apicommon.OperatorIDClaim)) != nil {
			errors.ErrUnauthorized.Withf("%s claim not found in JWT token", apicommon.OperatorIDClaim).Write(w)
			return
		}
		operatorID, ok := claims[apicommon.OperatorIDClaim].(string)
		if !ok || operatorID == "" {
			errors.ErrUnauthorized.Withf("invalid %s claim", apicommon.OperatorIDClaim).Write(w)
			return
		}
		ctx := context.WithValue(r.Context(), apicommon.OperatorMetadataKey, operatorID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// NewOperatorToken signs a JWT token for the operator with the HS256 secret
// shared with the API. The token expires after the given duration.
func NewOperatorToken(secret, operatorID string, expiration time.Duration) (*apicommon.LoginResponse, error) {
	return makeToken(jwtauth.New("HS256", []byte(secret), nil), operatorID, expiration)
}

func makeToken(auth *jwtauth.JWTAuth, operatorID string, expiration time.Duration) (*apicommon.LoginResponse, error) {
	if operatorID == "" {
		return nil, errors.ErrUnauthorized.With("empty operator id")
	}
	expiry := time.Now().Add(expiration).Truncate(time.Second)
	j := jwt.New()
	if err := j.Set(apicommon.OperatorIDClaim, operatorID); err != nil {
		return nil, err
	}
	if err := j.Set(jwt.ExpirationKey, expiry); err != nil {
		return nil, err
	}
	jmap, err := j.AsMap(context.Background())
	if err != nil {
		return nil, err
	}
	_, token, err := auth.Encode(jmap)
	if err != nil {
		return nil, err
	}
	return &apicommon.LoginResponse{Token: token, Expiry: expiry}, nil
}
