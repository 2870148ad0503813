package security

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// SentinelFingerprint is the wire value of a fingerprint that could not be
// derived. Front ends that predate the typed outcome compare against it.
const SentinelFingerprint = "HARDWARE-ERR-ID"

// FingerprintLength is the number of hex characters kept from the digest
const FingerprintLength = 16

// ErrHardwareUnavailable is the cause carried by an unavailable fingerprint
var ErrHardwareUnavailable = errors.New("hardware identifiers unavailable")

// HardwareIdentifiers are the raw values a fingerprint is derived from
type HardwareIdentifiers struct {
	ProcessorID string `json:"processor_id"`
	BoardSerial string `json:"board_serial"`
}

// HardwareProvider reads hardware identifiers from the host.
// Implementations return an error wrapping ErrHardwareUnavailable when the
// platform cannot supply a value.
type HardwareProvider interface {
	Read(ctx context.Context) (HardwareIdentifiers, error)
}

// Fingerprint is the outcome of a derivation: either a 16-character
// uppercase hex value or an unavailable marker with its cause.
type Fingerprint struct {
	value string
	cause error
}

// Derived wraps a successfully computed fingerprint value
func Derived(value string) Fingerprint {
	return Fingerprint{value: value}
}

// Unavailable records that hardware enumeration failed
func Unavailable(cause error) Fingerprint {
	if cause == nil {
		cause = ErrHardwareUnavailable
	}
	return Fingerprint{cause: cause}
}

// Available reports whether a real fingerprint was derived
func (f Fingerprint) Available() bool {
	return f.cause == nil && f.value != ""
}

// Value returns the derived value and whether it exists
func (f Fingerprint) Value() (string, bool) {
	return f.value, f.Available()
}

// Cause returns why derivation failed, or nil for a derived fingerprint
func (f Fingerprint) Cause() error {
	if f.Available() {
		return nil
	}
	if f.cause == nil {
		return ErrHardwareUnavailable
	}
	return f.cause
}

// String renders the wire form, substituting the sentinel when unavailable
func (f Fingerprint) String() string {
	if !f.Available() {
		return SentinelFingerprint
	}
	return f.value
}

// ComputeFingerprint hashes namespace and identifiers into the wire form.
// Identifiers are trimmed before hashing.
func ComputeFingerprint(namespace string, ids HardwareIdentifiers) string {
	material := fmt.Sprintf("%s-%s-%s",
		namespace,
		strings.TrimSpace(ids.ProcessorID),
		strings.TrimSpace(ids.BoardSerial),
	)
	sum := md5.Sum([]byte(material))
	return strings.ToUpper(hex.EncodeToString(sum[:]))[:FingerprintLength]
}

// Deriver turns host hardware identifiers into a machine fingerprint.
// It keeps no state between calls and is safe for concurrent use.
type Deriver struct {
	namespace string
	provider  HardwareProvider
	logger    *slog.Logger
}

// NewDeriver creates a fingerprint deriver
func NewDeriver(namespace string, provider HardwareProvider, logger *slog.Logger) *Deriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deriver{
		namespace: namespace,
		provider:  provider,
		logger:    logger.With(slog.String("component", "fingerprint")),
	}
}

// Derive reads the hardware identifiers and hashes them. It never fails:
// any provider error or panic yields an Unavailable fingerprint.
func (d *Deriver) Derive(ctx context.Context) (fp Fingerprint) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.ErrorContext(ctx, "hardware provider panicked",
				slog.Any("panic", r))
			fp = Unavailable(fmt.Errorf("%w: provider panic: %v", ErrHardwareUnavailable, r))
		}
	}()

	ids, err := d.provider.Read(ctx)
	if err != nil {
		d.logger.WarnContext(ctx, "hardware enumeration failed",
			slog.String("error", err.Error()))
		if !errors.Is(err, ErrHardwareUnavailable) {
			err = fmt.Errorf("%w: %v", ErrHardwareUnavailable, err)
		}
		return Unavailable(err)
	}

	value := ComputeFingerprint(d.namespace, ids)
	d.logger.DebugContext(ctx, "machine fingerprint derived",
		slog.String("fingerprint", value))
	return Derived(value)
}
