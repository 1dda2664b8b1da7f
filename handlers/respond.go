package handlers

import (
	"encoding/json"
	"net/http"

	"kioskops/apperr"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// writeAppError surfaces a typed engine error with its code and message so
// the dashboard can display it.
func writeAppError(w http.ResponseWriter, err error) {
	writeJSON(w, apperr.HTTPStatus(err), map[string]string{
		"error": apperr.MessageOf(err),
		"code":  string(apperr.CodeOf(err)),
	})
}
