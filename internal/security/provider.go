package security

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/klauspost/cpuid/v2"

	"fbcarch/internal/config"
)

// NewHostProvider returns the hardware provider for this process. Pinned
// identifiers in cfg take precedence over querying the host.
func NewHostProvider(cfg config.FingerprintConfig, logger *slog.Logger) HardwareProvider {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pinned() {
		logger.Info("using pinned hardware identifiers")
		return StaticProvider{IDs: HardwareIdentifiers{
			ProcessorID: cfg.ProcessorID,
			BoardSerial: cfg.BoardSerial,
		}}
	}
	return newPlatformProvider(logger.With(slog.String("component", "hardware")))
}

// StaticProvider returns fixed identifiers, or Err when set
type StaticProvider struct {
	IDs HardwareIdentifiers
	Err error
}

// Read implements HardwareProvider
func (p StaticProvider) Read(ctx context.Context) (HardwareIdentifiers, error) {
	if err := ctx.Err(); err != nil {
		return HardwareIdentifiers{}, fmt.Errorf("%w: %v", ErrHardwareUnavailable, err)
	}
	if p.Err != nil {
		return HardwareIdentifiers{}, p.Err
	}
	return p.IDs, nil
}

// ProviderFunc adapts a function to HardwareProvider
type ProviderFunc func(ctx context.Context) (HardwareIdentifiers, error)

// Read implements HardwareProvider
func (f ProviderFunc) Read(ctx context.Context) (HardwareIdentifiers, error) {
	return f(ctx)
}

// cpuidProcessorID builds a processor identifier from the CPUID signature.
// Hosts where CPUID reports nothing (most non-x86 parts) are unavailable.
func cpuidProcessorID(info cpuid.CPUInfo) (string, error) {
	if info.VendorID == cpuid.VendorUnknown && info.Family == 0 && info.Model == 0 {
		return "", fmt.Errorf("%w: cpuid reported no processor signature", ErrHardwareUnavailable)
	}
	return fmt.Sprintf("%s-%02X%02X%02X",
		strings.ToUpper(info.VendorString), info.Family, info.Model, info.Stepping), nil
}

var ioregSerialPattern = regexp.MustCompile(`"IOPlatformSerialNumber"\s*=\s*"([^"]*)"`)

// parseIORegSerial extracts IOPlatformSerialNumber from ioreg output
func parseIORegSerial(out string) (string, error) {
	m := ioregSerialPattern.FindStringSubmatch(out)
	if m == nil || strings.TrimSpace(m[1]) == "" {
		return "", fmt.Errorf("%w: IOPlatformSerialNumber not found", ErrHardwareUnavailable)
	}
	return strings.TrimSpace(m[1]), nil
}
