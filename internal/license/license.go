package license

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fbcarch/internal/security"
)

// Policy names
const (
	PolicyReference = "reference"
	PolicyDated     = "dated"
	PolicyMaster    = "master"
)

// Rejection reasons carried in Result.Reason
const (
	ReasonHardwareUnavailable = "hardware fingerprint unavailable"
	ReasonTooShort            = "license key too short"
	ReasonBadDate             = "license key date is malformed"
	ReasonExpired             = "license key expired"
	ReasonSignatureTooShort   = "license key signature too short"
	ReasonMismatch            = "license key does not match this machine"
)

var (
	// ErrMalformedRequest marks a verify request whose body could not be decoded
	ErrMalformedRequest = errors.New("invalid format")

	// ErrInvalidKey marks a well-formed key the policy rejected
	ErrInvalidKey = errors.New("invalid license key")
)

// Result is the verdict for one key
type Result struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
	Policy string `json:"policy"`
}

// Err returns nil for a valid result, or ErrInvalidKey wrapped with the reason
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	if r.Reason == "" {
		return ErrInvalidKey
	}
	return fmt.Errorf("%w: %s", ErrInvalidKey, r.Reason)
}

func accept(policy string) Result {
	return Result{Valid: true, Policy: policy}
}

func reject(policy, reason string) Result {
	return Result{Valid: false, Reason: reason, Policy: policy}
}

// Policy decides on a normalized key for the current machine fingerprint.
// Implementations must be safe for concurrent use.
type Policy interface {
	Name() string
	Decide(ctx context.Context, key string, fp security.Fingerprint) Result
}

// NormalizeKey trims surrounding whitespace and uppercases the key
func NormalizeKey(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// ReferencePolicy accepts every key. It checks no signature, expiry,
// machine binding or allow-list.
type ReferencePolicy struct{}

// Name implements Policy
func (ReferencePolicy) Name() string { return PolicyReference }

// Decide implements Policy
func (ReferencePolicy) Decide(context.Context, string, security.Fingerprint) Result {
	return accept(PolicyReference)
}
