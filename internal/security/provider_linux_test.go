//go:build linux

package security

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/cpuid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDMIProvider(t *testing.T) {
	intel := cpuid.CPUInfo{VendorID: cpuid.Intel, VendorString: "GenuineIntel", Family: 6, Model: 158, Stepping: 10}

	t.Run("reads trimmed board serial", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "board_serial")
		require.NoError(t, os.WriteFile(path, []byte("PF2ABCDE\n"), 0644))

		p := &dmiProvider{serialPath: path, cpu: intel, logger: quietLogger()}
		ids, err := p.Read(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "GENUINEINTEL-069E0A", ids.ProcessorID)
		assert.Equal(t, "PF2ABCDE", ids.BoardSerial)
	})

	t.Run("missing serial file", func(t *testing.T) {
		p := &dmiProvider{serialPath: filepath.Join(t.TempDir(), "absent"), cpu: intel, logger: quietLogger()}
		_, err := p.Read(context.Background())
		assert.ErrorIs(t, err, ErrHardwareUnavailable)
	})

	t.Run("blank serial file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "board_serial")
		require.NoError(t, os.WriteFile(path, []byte("  \n"), 0644))

		p := &dmiProvider{serialPath: path, cpu: intel, logger: quietLogger()}
		_, err := p.Read(context.Background())
		assert.ErrorIs(t, err, ErrHardwareUnavailable)
	})

	t.Run("no cpuid signature", func(t *testing.T) {
		p := &dmiProvider{serialPath: boardSerialPath, cpu: cpuid.CPUInfo{}, logger: quietLogger()}
		_, err := p.Read(context.Background())
		assert.ErrorIs(t, err, ErrHardwareUnavailable)
	})
}
