package utils

import (
	"encoding/json"
	"net/http"
)

// WriteJSONError writes a plain JSON error for failures that happen before
// a jtlrpc packet could be read.
func WriteJSONError(w http.ResponseWriter, status int, msg string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]any{
		"status": "error",
		"error":  msg,
		"code":   status,
	}
	return json.NewEncoder(w).Encode(resp)
}
