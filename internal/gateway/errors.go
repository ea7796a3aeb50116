package gateway

import (
	"encoding/json"
	"net/http"
)

// writeNotFound responds 404 with an empty body. Used both for unknown
// applications and for allow-list denials so the two are
// indistinguishable from the outside.
func writeNotFound(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNotFound)
}

// writeInternalError responds 500 with a generic body. No internal
// detail ever reaches the client.
func writeInternalError(w http.ResponseWriter) {
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}
