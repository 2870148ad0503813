package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"
)

// HealthService reports liveness and whether hardware identifiers can be read
type HealthService struct {
	version   string
	deriver   FingerprintDeriver
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status               string                 `json:"status"`
	Timestamp            time.Time              `json:"timestamp"`
	Version              string                 `json:"version"`
	FingerprintAvailable bool                   `json:"fingerprint_available"`
	Runtime              map[string]interface{} `json:"runtime,omitempty"`
}

// NewHealthService creates a health service
func NewHealthService(version string, deriver FingerprintDeriver, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		deriver:   deriver,
		startTime: time.Now(),
		logger:    logger.With(slog.String("service", "health")),
	}
}

// HealthCheck returns overall health status. An unavailable fingerprint does
// not make the service unhealthy.
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	fp := hs.deriver.Derive(ctx)

	status := HealthStatus{
		Status:               "ok",
		Timestamp:            time.Now(),
		Version:              hs.version,
		FingerprintAvailable: fp.Available(),
		Runtime: map[string]interface{}{
			"uptime_seconds": time.Since(hs.startTime).Seconds(),
			"go_version":     runtime.Version(),
			"goroutines":     runtime.NumGoroutine(),
			"os":             runtime.GOOS,
			"arch":           runtime.GOARCH,
		},
	}

	hs.logger.DebugContext(ctx, "health check completed",
		slog.String("status", status.Status),
		slog.Bool("fingerprint_available", status.FingerprintAvailable))

	return status
}
