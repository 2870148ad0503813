//go:build windows

package security

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yusufpapurcu/wmi"
)

type win32Processor struct {
	ProcessorId *string
}

type win32BaseBoard struct {
	SerialNumber *string
}

// wmiProvider queries Win32_Processor and Win32_BaseBoard
type wmiProvider struct {
	logger *slog.Logger
}

func newPlatformProvider(logger *slog.Logger) HardwareProvider {
	return &wmiProvider{logger: logger}
}

// Read implements HardwareProvider. Only the first row of each class is used.
func (p *wmiProvider) Read(ctx context.Context) (HardwareIdentifiers, error) {
	if err := ctx.Err(); err != nil {
		return HardwareIdentifiers{}, fmt.Errorf("%w: %v", ErrHardwareUnavailable, err)
	}

	var processors []win32Processor
	if err := wmi.Query("SELECT ProcessorId FROM Win32_Processor", &processors); err != nil {
		return HardwareIdentifiers{}, fmt.Errorf("%w: Win32_Processor query: %v", ErrHardwareUnavailable, err)
	}
	if len(processors) == 0 || processors[0].ProcessorId == nil {
		return HardwareIdentifiers{}, fmt.Errorf("%w: Win32_Processor has no ProcessorId", ErrHardwareUnavailable)
	}

	var boards []win32BaseBoard
	if err := wmi.Query("SELECT SerialNumber FROM Win32_BaseBoard", &boards); err != nil {
		return HardwareIdentifiers{}, fmt.Errorf("%w: Win32_BaseBoard query: %v", ErrHardwareUnavailable, err)
	}
	if len(boards) == 0 || boards[0].SerialNumber == nil {
		return HardwareIdentifiers{}, fmt.Errorf("%w: Win32_BaseBoard has no SerialNumber", ErrHardwareUnavailable)
	}

	p.logger.DebugContext(ctx, "read hardware identifiers via WMI",
		slog.Int("processors", len(processors)),
		slog.Int("boards", len(boards)))

	return HardwareIdentifiers{
		ProcessorID: *processors[0].ProcessorId,
		BoardSerial: *boards[0].SerialNumber,
	}, nil
}
