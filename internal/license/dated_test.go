package license

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fbcarch/internal/security"
)

const (
	testSecret    = "FANG_BIAO_CENTURY_ARCH_SECURE_2025"
	testMachineID = "35308332D81E437B"
)

func fixedClock(year int, month time.Month, day, hour int) func() time.Time {
	return func() time.Time { return time.Date(year, month, day, hour, 0, 0, 0, time.UTC) }
}

func newTestDatedPolicy() *DatedPolicy {
	return NewDatedPolicy(testSecret, 8,
		WithClock(fixedClock(2029, time.June, 1, 12)),
		WithLocation(time.UTC))
}

func TestSignatureKnownVector(t *testing.T) {
	assert.Equal(t,
		"C32D67E31F5BE4B8E73A6BCBEA0DA66E6E469E62D285B299A197AA4FBC90AD54",
		Signature(testMachineID, "20300101", testSecret))
}

func TestDatedPolicyDecide(t *testing.T) {
	fp := security.Derived(testMachineID)

	tests := []struct {
		name       string
		key        string
		fp         security.Fingerprint
		wantValid  bool
		wantReason string
	}{
		{
			name:      "full signature",
			key:       "20300101C32D67E31F5BE4B8E73A6BCBEA0DA66E6E469E62D285B299A197AA4FBC90AD54",
			fp:        fp,
			wantValid: true,
		},
		{
			name:      "minimum prefix",
			key:       "20300101C32D67E3",
			fp:        fp,
			wantValid: true,
		},
		{
			name:      "separators are ignored",
			key:       "2030-0101-C32D-67E3",
			fp:        fp,
			wantValid: true,
		},
		{
			name:       "empty key",
			key:        "",
			fp:         fp,
			wantReason: ReasonTooShort,
		},
		{
			name:       "too short",
			key:        "2030010",
			fp:         fp,
			wantReason: ReasonTooShort,
		},
		{
			name:       "malformed date",
			key:        "20301340C32D67E3",
			fp:         fp,
			wantReason: ReasonBadDate,
		},
		{
			name:       "non numeric date",
			key:        "ABCDEFGHC32D67E3",
			fp:         fp,
			wantReason: ReasonBadDate,
		},
		{
			name:       "expired",
			key:        "20290101C32D67E3",
			fp:         fp,
			wantReason: ReasonExpired,
		},
		{
			name:       "signature shorter than minimum",
			key:        "20300101C32D",
			fp:         fp,
			wantReason: ReasonSignatureTooShort,
		},
		{
			name:       "date only",
			key:        "20300101",
			fp:         fp,
			wantReason: ReasonSignatureTooShort,
		},
		{
			name:       "wrong signature",
			key:        "20300101DEADBEEF",
			fp:         fp,
			wantReason: ReasonMismatch,
		},
		{
			name:       "other machine",
			key:        "20300101C32D67E3",
			fp:         security.Derived("0000000000000000"),
			wantReason: ReasonMismatch,
		},
		{
			name:       "signature longer than sha256",
			key:        "20300101C32D67E31F5BE4B8E73A6BCBEA0DA66E6E469E62D285B299A197AA4FBC90AD5400",
			fp:         fp,
			wantReason: ReasonMismatch,
		},
		{
			name:       "unavailable fingerprint",
			key:        "20300101C32D67E3",
			fp:         security.Unavailable(security.ErrHardwareUnavailable),
			wantReason: ReasonHardwareUnavailable,
		},
	}

	p := newTestDatedPolicy()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := p.Decide(context.Background(), NormalizeKey(tt.key), tt.fp)
			assert.Equal(t, tt.wantValid, r.Valid)
			assert.Equal(t, tt.wantReason, r.Reason)
			assert.Equal(t, PolicyDated, r.Policy)
		})
	}
}

func TestDatedPolicyExpiresAtStartOfDate(t *testing.T) {
	fp := security.Derived(testMachineID)
	key := "20300101C32D67E3"

	before := NewDatedPolicy(testSecret, 8, WithLocation(time.UTC),
		WithClock(func() time.Time { return time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC) }))
	assert.True(t, before.Decide(context.Background(), key, fp).Valid)

	after := NewDatedPolicy(testSecret, 8, WithLocation(time.UTC),
		WithClock(func() time.Time { return time.Date(2030, time.January, 1, 0, 0, 1, 0, time.UTC) }))
	assert.Equal(t, ReasonExpired, after.Decide(context.Background(), key, fp).Reason)
}

func TestDatedPolicyClampsMinimum(t *testing.T) {
	assert.Equal(t, 1, NewDatedPolicy(testSecret, 0).minSignature)
	assert.Equal(t, MaxSignatureLength, NewDatedPolicy(testSecret, 500).minSignature)
}

func TestIssueDatedKeyRoundTrip(t *testing.T) {
	p := newTestDatedPolicy()
	expiry := time.Date(2031, time.March, 15, 0, 0, 0, 0, time.UTC)

	for _, length := range []int{8, 16, MaxSignatureLength} {
		key, err := IssueDatedKey(testMachineID, expiry, testSecret, length)
		require.NoError(t, err)
		assert.Len(t, key, 8+length)
		assert.Equal(t, "20310315", key[:8])

		r := p.Decide(context.Background(), key, security.Derived(testMachineID))
		assert.True(t, r.Valid, "length %d", length)
	}
}

func TestIssueDatedKeyNormalizesMachineID(t *testing.T) {
	p := newTestDatedPolicy()
	expiry := time.Date(2031, time.March, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		machineID string
	}{
		{name: "lowercase", machineID: "35308332d81e437b"},
		{name: "mixed case with whitespace", machineID: "  35308332d81E437b\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := IssueDatedKey(tt.machineID, expiry, testSecret, 16)
			require.NoError(t, err)

			want, err := IssueDatedKey(testMachineID, expiry, testSecret, 16)
			require.NoError(t, err)
			assert.Equal(t, want, key)

			r := p.Decide(context.Background(), key, security.Derived(testMachineID))
			assert.True(t, r.Valid, "reason: %s", r.Reason)
		})
	}
}

func TestIssueDatedKeyErrors(t *testing.T) {
	expiry := time.Date(2031, time.March, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		machineID string
		secret    string
		length    int
	}{
		{name: "empty machine id", machineID: "", secret: testSecret, length: 8},
		{name: "sentinel machine id", machineID: security.SentinelFingerprint, secret: testSecret, length: 8},
		{name: "short machine id", machineID: "35308332D81E", secret: testSecret, length: 8},
		{name: "non hex machine id", machineID: "35308332D81E437Z", secret: testSecret, length: 8},
		{name: "empty secret", machineID: testMachineID, secret: "", length: 8},
		{name: "zero length", machineID: testMachineID, secret: testSecret, length: 0},
		{name: "length over sha256", machineID: testMachineID, secret: testSecret, length: MaxSignatureLength + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := IssueDatedKey(tt.machineID, expiry, tt.secret, tt.length)
			assert.Error(t, err)
		})
	}
}

func TestAlphanumeric(t *testing.T) {
	assert.Equal(t, "ABC123", alphanumeric("A-B C_1.2/3"))
	assert.Equal(t, "AB", alphanumeric("AÉB"))
}
