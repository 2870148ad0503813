package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "fbcarch/internal/errors"
	"fbcarch/internal/infrastructure"
	"fbcarch/internal/license"
	"fbcarch/internal/services"
	"fbcarch/pkg/contracts/domain"
)

// DefaultMaxBodyBytes caps the verify request body when no limit is configured
const DefaultMaxBodyBytes int64 = 64 << 10

// LicenseHandler serves the machine id and license verification endpoints
type LicenseHandler struct {
	service      services.LicenseService
	metrics      *infrastructure.LicenseMetrics
	maxBodyBytes int64
	logger       *slog.Logger
}

// NewLicenseHandler creates a new license handler. metrics may be nil and a
// non-positive maxBodyBytes selects DefaultMaxBodyBytes.
func NewLicenseHandler(service services.LicenseService, metrics *infrastructure.LicenseMetrics, maxBodyBytes int64, logger *slog.Logger) *LicenseHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LicenseHandler{
		service:      service,
		metrics:      metrics,
		maxBodyBytes: maxBodyBytes,
		logger:       logger.With(slog.String("handler", "license")),
	}
}

// Routes returns the license endpoints, to be mounted under /api
func (h *LicenseHandler) Routes() chi.Router {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

// Register adds the license endpoints to an existing /api router
func (h *LicenseHandler) Register(r chi.Router) {
	r.Get("/machine-id", h.MachineID)
	r.Post("/verify-license", h.VerifyLicense)
	r.Options("/verify-license", h.VerifyLicenseOptions)
}

// MachineID handles GET /api/machine-id. It always answers 200; a host
// without readable identifiers gets the sentinel value.
func (h *LicenseHandler) MachineID(w http.ResponseWriter, r *http.Request) {
	fp := h.service.MachineID(r.Context())
	if !fp.Available() {
		h.logger.WarnContext(r.Context(), "serving unavailable machine id",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("cause", fp.Cause().Error()))
	}

	render.JSON(w, r, domain.MachineIDResponse{MachineID: fp.String()})
}

// VerifyLicense handles POST /api/verify-license
func (h *LicenseHandler) VerifyLicense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	written := false

	defer func() {
		rvr := recover()
		if rvr == nil {
			return
		}
		if rvr == http.ErrAbortHandler {
			panic(rvr)
		}
		h.logger.ErrorContext(ctx, "verify handler panicked",
			slog.String("request_id", middleware.GetReqID(ctx)),
			slog.Any("panic", rvr))
		if !written {
			h.malformed(w, r, fmt.Errorf("%w: panic: %v", license.ErrMalformedRequest, rvr))
		}
	}()

	req, err := decodeVerifyRequest(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		written = true
		h.malformed(w, r, err)
		return
	}

	result := h.service.Verify(ctx, req.Key)

	resp := domain.VerifyLicenseResponse{Valid: result.Valid}
	if !result.Valid {
		resp.Error = result.Reason
	}

	written = true
	render.JSON(w, r, resp)
}

// VerifyLicenseOptions answers a bare OPTIONS on the verify route.
// The policy is never consulted.
func (h *LicenseHandler) VerifyLicenseOptions(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, domain.OKResponse)
}

func (h *LicenseHandler) malformed(w http.ResponseWriter, r *http.Request, err error) {
	h.metrics.RecordMalformed(r.Context())
	h.logger.WarnContext(r.Context(), "malformed verify request",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("error", err.Error()))
	apierrors.WriteError(w, r, apierrors.ErrInvalidFormat)
}

var jsonNull = []byte("null")

// decodeVerifyRequest reads exactly one JSON object from body. A missing
// "key" member decodes to the empty string; a present but non-string key,
// a non-object document or trailing data are malformed.
func decodeVerifyRequest(body io.Reader) (domain.VerifyLicenseRequest, error) {
	var req domain.VerifyLicenseRequest

	dec := json.NewDecoder(body)

	var members map[string]json.RawMessage
	if err := dec.Decode(&members); err != nil {
		return req, fmt.Errorf("%w: %v", license.ErrMalformedRequest, err)
	}
	if members == nil {
		return req, fmt.Errorf("%w: body is null", license.ErrMalformedRequest)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return req, fmt.Errorf("%w: trailing data after object", license.ErrMalformedRequest)
	}

	raw, ok := members["key"]
	if !ok {
		return req, nil
	}
	if bytes.Equal(bytes.TrimSpace(raw), jsonNull) {
		return req, fmt.Errorf("%w: key is null", license.ErrMalformedRequest)
	}
	if err := json.Unmarshal(raw, &req.Key); err != nil {
		return req, fmt.Errorf("%w: key is not a string", license.ErrMalformedRequest)
	}
	return req, nil
}
