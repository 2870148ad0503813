package errors

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fbcarch/internal/shared/testutil"
)

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestProblemDetailsMarshal(t *testing.T) {
	pd := NewProblemDetails(http.StatusNotFound, TypeNotFound, "Not Found", "", "/x").
		WithExtension("trace_id", "abc").
		WithExtension("status", "shadowed")

	raw, err := json.Marshal(pd)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"/errors/not-found","title":"Not Found","status":404,"instance":"/x","trace_id":"abc"}`, string(raw))
}

func TestErrorHandlerNotFoundAndMethodNotAllowed(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	rec := httptest.NewRecorder()
	h.NotFound(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, TypeNotFound, decodeProblem(t, rec)["type"])

	rec = httptest.NewRecorder()
	h.MethodNotAllowed(rec, httptest.NewRequest(http.MethodDelete, "/api/machine-id", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	body := decodeProblem(t, rec)
	assert.Equal(t, TypeMethodNotAllowed, body["type"])
	assert.Contains(t, body["detail"], "DELETE")
}

func TestErrorHandlerRecoverer(t *testing.T) {
	tests := []struct {
		name         string
		includeStack bool
	}{
		{name: "without stack", includeStack: false},
		{name: "with stack", includeStack: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, handler := testutil.NewTestLogger(t)
			h := NewErrorHandler(logger, tt.includeStack)

			panicky := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				panic("boom")
			})
			srv := middleware.RequestID(h.Recoverer(panicky))

			rec := httptest.NewRecorder()
			require.NotPanics(t, func() {
				srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/logo", nil))
			})

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			body := decodeProblem(t, rec)
			assert.Equal(t, TypeInternal, body["type"])
			assert.NotEmpty(t, body["trace_id"])
			if tt.includeStack {
				assert.Equal(t, "boom", body["panic"])
				assert.Contains(t, body, "stack")
			} else {
				assert.NotContains(t, body, "panic")
			}

			testutil.AssertLogContains(t, handler, slog.LevelError, "panic recovered")
		})
	}
}

func TestErrorHandlerRecovererPassesAbort(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	srv := h.Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		srv.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
