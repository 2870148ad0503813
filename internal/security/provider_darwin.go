//go:build darwin

package security

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/klauspost/cpuid/v2"
)

// ioregProvider reads the platform serial through ioreg
type ioregProvider struct {
	cpu    cpuid.CPUInfo
	logger *slog.Logger
}

func newPlatformProvider(logger *slog.Logger) HardwareProvider {
	return &ioregProvider{cpu: cpuid.CPU, logger: logger}
}

// Read implements HardwareProvider
func (p *ioregProvider) Read(ctx context.Context) (HardwareIdentifiers, error) {
	processorID, err := cpuidProcessorID(p.cpu)
	if err != nil {
		return HardwareIdentifiers{}, err
	}

	out, err := exec.CommandContext(ctx, "ioreg", "-rd1", "-c", "IOPlatformExpertDevice").Output()
	if err != nil {
		return HardwareIdentifiers{}, fmt.Errorf("%w: ioreg: %v", ErrHardwareUnavailable, err)
	}

	serial, err := parseIORegSerial(string(out))
	if err != nil {
		return HardwareIdentifiers{}, err
	}

	p.logger.DebugContext(ctx, "read hardware identifiers via ioreg")
	return HardwareIdentifiers{ProcessorID: processorID, BoardSerial: serial}, nil
}
