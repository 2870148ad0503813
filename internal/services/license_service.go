package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fbcarch/internal/infrastructure"
	"fbcarch/internal/license"
	"fbcarch/internal/security"
)

// FingerprintDeriver derives the current machine fingerprint
type FingerprintDeriver interface {
	Derive(ctx context.Context) security.Fingerprint
}

// KeyVerifier decides on a raw key for a fingerprint
type KeyVerifier interface {
	Verify(ctx context.Context, rawKey string, fp security.Fingerprint) license.Result
	PolicyName() string
}

// LicenseService provides the machine id and license verification operations
type LicenseService interface {
	MachineID(ctx context.Context) security.Fingerprint
	Verify(ctx context.Context, rawKey string) license.Result
}

type licenseService struct {
	deriver   FingerprintDeriver
	validator KeyVerifier
	metrics   *infrastructure.LicenseMetrics
	tracer    trace.Tracer
	logger    *slog.Logger
}

// NewLicenseService creates the license service. metrics may be nil.
func NewLicenseService(deriver FingerprintDeriver, validator KeyVerifier, metrics *infrastructure.LicenseMetrics, logger *slog.Logger) LicenseService {
	if logger == nil {
		logger = slog.Default()
	}
	return &licenseService{
		deriver:   deriver,
		validator: validator,
		metrics:   metrics,
		tracer:    otel.Tracer("license-service"),
		logger:    logger.With(slog.String("service", "license")),
	}
}

// MachineID derives the fingerprint for this host
func (s *licenseService) MachineID(ctx context.Context) security.Fingerprint {
	ctx, span := s.tracer.Start(ctx, "license.machine_id")
	defer span.End()

	return s.derive(ctx, span)
}

// Verify derives a fresh fingerprint and runs the validator on rawKey
func (s *licenseService) Verify(ctx context.Context, rawKey string) license.Result {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "license.verify",
		trace.WithAttributes(attribute.String("license.policy", s.validator.PolicyName())))
	defer span.End()

	fp := s.derive(ctx, span)
	result := s.validator.Verify(ctx, rawKey, fp)
	duration := time.Since(start)

	s.metrics.RecordVerification(ctx, result.Policy, result.Valid, duration)
	span.SetAttributes(
		attribute.Bool("license.valid", result.Valid),
		attribute.String("license.decided_by", result.Policy),
	)
	if !result.Valid {
		span.RecordError(result.Err())
	}

	s.logger.DebugContext(ctx, "license verification completed",
		slog.String("request_id", middleware.GetReqID(ctx)),
		slog.Bool("valid", result.Valid),
		slog.String("policy", result.Policy),
		slog.Duration("latency", duration))

	return result
}

func (s *licenseService) derive(ctx context.Context, span trace.Span) security.Fingerprint {
	fp := s.deriver.Derive(ctx)

	outcome := "derived"
	if !fp.Available() {
		outcome = "unavailable"
		span.AddEvent("fingerprint.unavailable",
			trace.WithAttributes(attribute.String("cause", fp.Cause().Error())))
	}
	span.SetAttributes(attribute.Bool("fingerprint.available", fp.Available()))
	s.metrics.RecordFingerprint(ctx, outcome)

	return fp
}
