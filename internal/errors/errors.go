package errors

import (
	"net/http"

	"github.com/go-chi/render"
)

// APIError is the error body of the licensing API: {"error": "<message>"}.
// Code is for logs and metrics only and is not serialized.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"-"`
	Message    string `json:"error"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// New creates a new APIError with the given parameters
func New(statusCode int, code, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
	}
}

// Predefined errors. Messages are part of the wire contract with the front end.
var (
	// ErrInvalidFormat is returned when a verify body cannot be decoded
	ErrInvalidFormat = New(http.StatusBadRequest, "INVALID_FORMAT", "Invalid format")

	// ErrNoLogo is returned with status 200 when no logo file is bundled
	ErrNoLogo = New(http.StatusOK, "NO_LOGO", "No logo found")

	ErrRateLimitExceeded = New(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded")
)

// WriteError renders err as JSON with its status code
func WriteError(w http.ResponseWriter, r *http.Request, err *APIError) {
	render.Render(w, r, err)
}
