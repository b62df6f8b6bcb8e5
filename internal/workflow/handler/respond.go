package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "certflow/pkg/domain-errors"
)

type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// writeError maps a coded domain error onto the wire. Uncoded errors come
// out as opaque 500s so internals never leak.
func writeError(w http.ResponseWriter, err error) {
	var de *dErrors.Error
	if !errors.As(err, &de) {
		de = dErrors.New(dErrors.CodeInternal, "internal error")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(dErrors.ToHTTPStatus(de.Code))
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error:       string(de.Code),
		Description: de.Message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
