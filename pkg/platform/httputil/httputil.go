// Package httputil centralizes JSON response writing so every handler emits
// the same envelope, and domain errors map to HTTP statuses in exactly one
// place.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "keymarket/pkg/domain-errors"
)

// WriteJSON writes a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// ErrorEnvelope is the JSON error shape returned by every endpoint.
type ErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// WriteError translates a domain error into the JSON error envelope. Uncoded
// errors become opaque 500s so internals never leak.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	var envelope ErrorEnvelope
	envelope.Error.Code = string(code)
	envelope.Error.Message = dErrors.MessageOf(err)
	WriteJSON(w, dErrors.ToHTTPStatus(code), envelope)
}
