package apicommon

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/paydesk/payments-backend/errors"
	"go.vocdoni.io/dvote/log"
)

// OperatorFromContext retrieves the operator id from the context provided,
// expected to be the context of a request handled by the authenticator
// middleware.
func OperatorFromContext(ctx context.Context) (string, bool) {
	operatorID, ok := ctx.Value(OperatorMetadataKey).(string)
	return operatorID, ok && operatorID != ""
}

// HTTPWriteJSON helper function allows to write a JSON response.
func HTTPWriteJSON(w http.ResponseWriter, data any) {
	HTTPWriteJSONStatus(w, http.StatusOK, data)
}

// HTTPWriteJSONStatus writes a JSON response with the given status code.
func HTTPWriteJSONStatus(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		errors.ErrMarshalingServerJSONFailed.WithErr(err).Write(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// HTTPWriteOK helper function allows to write an OK response.
func HTTPWriteOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}
