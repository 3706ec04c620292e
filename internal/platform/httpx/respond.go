// Package httpx provides HTTP response utilities following RFC7807 problem details.
package httpx

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/tooldesk/tooldesk/internal/shared"
)

const maxBodyBytes = 1 << 20

// InvalidJSONMessage is reported when a request body cannot be decoded.
const InvalidJSONMessage = "Invalid JSON body."

// ProblemDetail represents RFC7807 problem details.
type ProblemDetail struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ProblemDetail{
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// DecodeJSON decodes JSON request body into the target struct. An empty or
// malformed body yields a validation error carrying InvalidJSONMessage.
func DecodeJSON(r *http.Request, target any) error {
	if r.Body == nil {
		return shared.Validation(InvalidJSONMessage)
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(target); err != nil {
		return shared.Validation(InvalidJSONMessage)
	}
	return nil
}
