//go:build linux

package security

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

const boardSerialPath = "/sys/class/dmi/id/board_serial"

// dmiProvider reads the board serial from sysfs and the processor
// signature from CPUID
type dmiProvider struct {
	serialPath string
	cpu        cpuid.CPUInfo
	logger     *slog.Logger
}

func newPlatformProvider(logger *slog.Logger) HardwareProvider {
	return &dmiProvider{serialPath: boardSerialPath, cpu: cpuid.CPU, logger: logger}
}

// Read implements HardwareProvider. board_serial is usually root-only, so an
// unprivileged process ends up unavailable.
func (p *dmiProvider) Read(ctx context.Context) (HardwareIdentifiers, error) {
	if err := ctx.Err(); err != nil {
		return HardwareIdentifiers{}, fmt.Errorf("%w: %v", ErrHardwareUnavailable, err)
	}

	processorID, err := cpuidProcessorID(p.cpu)
	if err != nil {
		return HardwareIdentifiers{}, err
	}

	raw, err := os.ReadFile(p.serialPath)
	if err != nil {
		return HardwareIdentifiers{}, fmt.Errorf("%w: read %s: %v", ErrHardwareUnavailable, p.serialPath, err)
	}
	serial := strings.TrimSpace(string(raw))
	if serial == "" {
		return HardwareIdentifiers{}, fmt.Errorf("%w: %s is empty", ErrHardwareUnavailable, p.serialPath)
	}

	p.logger.DebugContext(ctx, "read hardware identifiers via sysfs",
		slog.String("serial_path", p.serialPath))

	return HardwareIdentifiers{ProcessorID: processorID, BoardSerial: serial}, nil
}
