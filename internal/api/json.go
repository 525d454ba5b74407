package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"freightquote/internal/pricing"
	"freightquote/internal/rfq"
	"freightquote/internal/store"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	writeJSON(w, status, Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// writeErr maps domain errors onto problem responses.
func writeErr(w http.ResponseWriter, err error, title, instance string) {
	var ie *rfq.InputError
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error(), instance)
	case errors.As(err, &ie):
		writeProblem(w, http.StatusBadRequest, "Invalid input", err.Error(), instance)
	case errors.Is(err, pricing.ErrInvalidConfiguration):
		writeProblem(w, http.StatusUnprocessableEntity, "Invalid pricing configuration", err.Error(), instance)
	default:
		writeProblem(w, http.StatusInternalServerError, title, err.Error(), instance)
	}
}
