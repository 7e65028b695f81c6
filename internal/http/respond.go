package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"tasbeeh/internal/core"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeError maps ledger errors onto status codes: rejected input is 422,
// an unopenable or unmigrated store is 503, anything else is 500.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: http.StatusText(status)}

	var entryErr *core.EntryError
	if errors.As(err, &entryErr) {
		resp.Error = entryErr.Message
		resp.Field = entryErr.Field
	} else if status == http.StatusServiceUnavailable {
		resp.Error = "ledger unavailable"
	}
	writeJSON(w, status, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidEntry):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrStorageUnavailable), errors.Is(err, core.ErrMigrationFailed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
