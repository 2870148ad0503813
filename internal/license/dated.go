package license

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"fbcarch/internal/security"
)

const (
	// dateLayout is the expiry prefix of a dated key
	dateLayout = "20060102"
	dateLength = len(dateLayout)

	// MaxSignatureLength is the length of a full hex SHA-256 signature
	MaxSignatureLength = sha256.Size * 2
)

// DatedPolicy accepts keys signed for this machine that have not expired
type DatedPolicy struct {
	secret       string
	minSignature int
	now          func() time.Time
	location     *time.Location
}

// DatedOption configures a DatedPolicy
type DatedOption func(*DatedPolicy)

// WithClock replaces time.Now
func WithClock(now func() time.Time) DatedOption {
	return func(p *DatedPolicy) { p.now = now }
}

// WithLocation sets the zone expiry dates are interpreted in. Defaults to
// time.Local.
func WithLocation(loc *time.Location) DatedOption {
	return func(p *DatedPolicy) { p.location = loc }
}

// NewDatedPolicy creates a dated policy. minSignature is clamped to
// [1, MaxSignatureLength].
func NewDatedPolicy(secret string, minSignature int, opts ...DatedOption) *DatedPolicy {
	if minSignature < 1 {
		minSignature = 1
	}
	if minSignature > MaxSignatureLength {
		minSignature = MaxSignatureLength
	}
	p := &DatedPolicy{
		secret:       secret,
		minSignature: minSignature,
		now:          time.Now,
		location:     time.Local,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Policy
func (p *DatedPolicy) Name() string { return PolicyDated }

// Decide implements Policy
func (p *DatedPolicy) Decide(_ context.Context, key string, fp security.Fingerprint) Result {
	machineID, ok := fp.Value()
	if !ok {
		return reject(PolicyDated, ReasonHardwareUnavailable)
	}

	clean := alphanumeric(key)
	if len(clean) < dateLength {
		return reject(PolicyDated, ReasonTooShort)
	}

	date := clean[:dateLength]
	expiry, err := time.ParseInLocation(dateLayout, date, p.location)
	if err != nil {
		return reject(PolicyDated, ReasonBadDate)
	}
	if p.now().After(expiry) {
		return reject(PolicyDated, ReasonExpired)
	}

	given := clean[dateLength:]
	if len(given) < p.minSignature {
		return reject(PolicyDated, ReasonSignatureTooShort)
	}

	expected := Signature(machineID, date, p.secret)
	if len(given) > len(expected) {
		return reject(PolicyDated, ReasonMismatch)
	}
	if subtle.ConstantTimeCompare([]byte(given), []byte(expected[:len(given)])) != 1 {
		return reject(PolicyDated, ReasonMismatch)
	}

	return accept(PolicyDated)
}

// Signature is upper(hex(SHA-256(machineID + date + secret)))
func Signature(machineID, date, secret string) string {
	sum := sha256.Sum256([]byte(machineID + date + secret))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

var machineIDPattern = regexp.MustCompile(fmt.Sprintf("^[0-9A-F]{%d}$", security.FingerprintLength))

// IssueDatedKey produces a key the dated policy accepts on the machine with
// the given fingerprint until the start of the expiry date. The machine id
// is matched case-insensitively. The policy also rejects signatures shorter
// than its configured minimum, which callers must check against.
func IssueDatedKey(machineID string, expiry time.Time, secret string, signatureLength int) (string, error) {
	machineID = strings.ToUpper(strings.TrimSpace(machineID))
	if !machineIDPattern.MatchString(machineID) {
		return "", fmt.Errorf("cannot issue a key for machine id %q: want %d hex characters", machineID, security.FingerprintLength)
	}
	if secret == "" {
		return "", fmt.Errorf("secret is required")
	}
	if signatureLength < 1 || signatureLength > MaxSignatureLength {
		return "", fmt.Errorf("signature length must be between 1 and %d, got %d", MaxSignatureLength, signatureLength)
	}

	date := expiry.Format(dateLayout)
	return date + Signature(machineID, date, secret)[:signatureLength], nil
}

// alphanumeric drops every rune that is not an ASCII letter or digit
func alphanumeric(s string) string {
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return -1
	}, s)
}
