package handlers

import (
	"encoding/json"
	"net/http"
)

// maxBodyBytes caps request bodies on every endpoint that reads one.
const maxBodyBytes = 1 << 20

// errorBody is the JSON shape of a failed REST call.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// writeJSON encodes v with the given status. Encoding failures after the header is sent are ignored.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) // nolint:errcheck
}

// writeError writes an errorBody; cause may be nil.
func writeError(w http.ResponseWriter, status int, msg string, cause error) {
	body := errorBody{Message: msg}
	if cause != nil {
		body.Error = cause.Error()
	}
	writeJSON(w, status, body)
}
