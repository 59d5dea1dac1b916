// Package errors defines the structured error envelope returned by the
// HTTP surface before a stream is committed.
package errors

import (
	"encoding/json"
	"net/http"
)

// Stable machine-readable error codes for HTTP responses.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeRunsExhausted    = "RUNS_EXHAUSTED"
	CodeInternal         = "INTERNAL"
)

// HTTPErrorResponse is the envelope for every non-2xx JSON response.
type HTTPErrorResponse struct {
	Error HTTPError `json:"error"`
}

// HTTPError is the payload inside the envelope.
type HTTPError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Write renders the envelope with the given status code.
func Write(w http.ResponseWriter, status int, code, message string) {
	WriteDetails(w, status, code, message, nil)
}

// WriteDetails renders the envelope with extra context in details.
func WriteDetails(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{
		Error: HTTPError{Code: code, Message: message, Details: details},
	})
}
