package api

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// weaveTimestamp sets the X-Weave-Timestamp header, two-decimal seconds.
func weaveTimestamp(w http.ResponseWriter, ts float64) {
	w.Header().Set("X-Weave-Timestamp", strconv.FormatFloat(ts, 'f', 2, 64))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// readJSON decodes the request body, answering 400 on malformed input.
// Returns false when the request has already been answered.
func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}
	return true
}
