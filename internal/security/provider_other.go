//go:build !windows && !linux && !darwin

package security

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
)

type unsupportedProvider struct{}

func newPlatformProvider(logger *slog.Logger) HardwareProvider {
	logger.Warn("no hardware provider for this platform", slog.String("os", runtime.GOOS))
	return unsupportedProvider{}
}

// Read implements HardwareProvider
func (unsupportedProvider) Read(context.Context) (HardwareIdentifiers, error) {
	return HardwareIdentifiers{}, fmt.Errorf("%w: unsupported platform %s", ErrHardwareUnavailable, runtime.GOOS)
}
