package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError(t *testing.T) {
	err := New(http.StatusTeapot, "TEAPOT", "short and stout")
	assert.Equal(t, "short and stout", err.Error())

	body, marshalErr := json.Marshal(err)
	require.NoError(t, marshalErr)
	assert.JSONEq(t, `{"error":"short and stout"}`, string(body))
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        *APIError
		wantStatus int
		wantBody   string
	}{
		{
			name:       "invalid format",
			err:        ErrInvalidFormat,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Invalid format"}`,
		},
		{
			name:       "no logo keeps 200",
			err:        ErrNoLogo,
			wantStatus: http.StatusOK,
			wantBody:   `{"error":"No logo found"}`,
		},
		{
			name:       "rate limited",
			err:        ErrRateLimitExceeded,
			wantStatus: http.StatusTooManyRequests,
			wantBody:   `{"error":"Rate limit exceeded"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/verify-license", nil)
			rec := httptest.NewRecorder()

			WriteError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}
