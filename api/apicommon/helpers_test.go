package apicommon

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/paydesk/payments-backend/errors"
)

func TestHTTPWriteJSONStatus(t *testing.T) {
	c := qt.New(t)

	w := httptest.NewRecorder()
	HTTPWriteJSONStatus(w, http.StatusCreated, &Payment{ID: "pi_1", Status: "succeeded"})
	c.Assert(w.Code, qt.Equals, http.StatusCreated)
	c.Assert(w.Header().Get("Content-Type"), qt.Equals, "application/json")
	var resp Payment
	c.Assert(json.Unmarshal(w.Body.Bytes(), &resp), qt.IsNil)
	c.Assert(resp.ID, qt.Equals, "pi_1")

	// values that cannot be encoded produce the marshaling error body
	w = httptest.NewRecorder()
	HTTPWriteJSONStatus(w, http.StatusOK, map[string]any{"ch": make(chan int)})
	c.Assert(w.Code, qt.Equals, http.StatusInternalServerError)
	var apiErr struct {
		Code int `json:"code"`
	}
	c.Assert(json.Unmarshal(w.Body.Bytes(), &apiErr), qt.IsNil)
	c.Assert(apiErr.Code, qt.Equals, errors.ErrMarshalingServerJSONFailed.Code)
}
