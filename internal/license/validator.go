package license

import (
	"context"
	"fmt"
	"log/slog"

	"fbcarch/internal/config"
	"fbcarch/internal/security"
)

// Validator applies the master override, the unavailable-fingerprint rule
// and then the configured policy. It holds no mutable state.
type Validator struct {
	masterKey       string
	policy          Policy
	denyUnavailable bool
	logger          *slog.Logger
}

// NewValidator creates a validator with an explicit policy
func NewValidator(masterKey string, policy Policy, denyUnavailable bool, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	if policy == nil {
		policy = ReferencePolicy{}
	}
	return &Validator{
		masterKey:       NormalizeKey(masterKey),
		policy:          policy,
		denyUnavailable: denyUnavailable,
		logger:          logger.With(slog.String("component", "license")),
	}
}

// NewValidatorFromConfig builds the validator described by cfg
func NewValidatorFromConfig(cfg config.LicenseConfig, logger *slog.Logger, opts ...DatedOption) (*Validator, error) {
	var policy Policy
	switch cfg.Policy {
	case PolicyReference, "":
		policy = ReferencePolicy{}
	case PolicyDated:
		if cfg.Secret == "" {
			return nil, fmt.Errorf("dated policy requires a secret")
		}
		policy = NewDatedPolicy(cfg.Secret, cfg.MinSignatureLength, opts...)
	default:
		return nil, fmt.Errorf("unknown license policy %q", cfg.Policy)
	}

	return NewValidator(cfg.MasterKey, policy, cfg.OnUnavailableFingerprint == "deny", logger), nil
}

// PolicyName returns the name of the configured policy
func (v *Validator) PolicyName() string {
	return v.policy.Name()
}

// Verify decides on rawKey for the machine identified by fp
func (v *Validator) Verify(ctx context.Context, rawKey string, fp security.Fingerprint) Result {
	key := NormalizeKey(rawKey)

	var result Result
	switch {
	case v.masterKey != "" && key == v.masterKey:
		result = accept(PolicyMaster)
	case v.denyUnavailable && !fp.Available():
		result = reject(v.policy.Name(), ReasonHardwareUnavailable)
	default:
		result = v.policy.Decide(ctx, key, fp)
	}

	attrs := []any{
		slog.String("license_key", maskLicenseKey(key)),
		slog.Bool("valid", result.Valid),
		slog.String("policy", result.Policy),
		slog.Bool("fingerprint_available", fp.Available()),
	}
	if result.Valid {
		v.logger.InfoContext(ctx, "license verified", attrs...)
	} else {
		v.logger.WarnContext(ctx, "license rejected", append(attrs, slog.String("reason", result.Reason))...)
	}

	return result
}

// maskLicenseKey keeps the first and last four characters of long keys
func maskLicenseKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
