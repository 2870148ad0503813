package services

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"fbcarch/internal/infrastructure"
	"fbcarch/internal/license"
	"fbcarch/internal/security"
)

// MockDeriver is a mock implementation of FingerprintDeriver
type MockDeriver struct {
	mock.Mock
}

func (m *MockDeriver) Derive(ctx context.Context) security.Fingerprint {
	args := m.Called(ctx)
	return args.Get(0).(security.Fingerprint)
}

// MockVerifier is a mock implementation of KeyVerifier
type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, rawKey string, fp security.Fingerprint) license.Result {
	args := m.Called(ctx, rawKey, fp)
	return args.Get(0).(license.Result)
}

func (m *MockVerifier) PolicyName() string {
	return m.Called().String(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMetrics(t *testing.T) (*infrastructure.LicenseMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	metrics, err := infrastructure.CreateLicenseMetrics(mp.Meter("test"))
	require.NoError(t, err)
	return metrics, reader
}

// counterValues sums an int64 counter by the given attribute
func counterValues(t *testing.T, reader *sdkmetric.ManualReader, name, attr string) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value(attribute.Key(attr))
				out[v.Emit()] += dp.Value
			}
		}
	}
	return out
}

func TestLicenseServiceMachineID(t *testing.T) {
	tests := []struct {
		name        string
		fingerprint security.Fingerprint
		wantWire    string
		wantOutcome string
	}{
		{
			name:        "derived",
			fingerprint: security.Derived("35308332D81E437B"),
			wantWire:    "35308332D81E437B",
			wantOutcome: "derived",
		},
		{
			name:        "unavailable",
			fingerprint: security.Unavailable(security.ErrHardwareUnavailable),
			wantWire:    security.SentinelFingerprint,
			wantOutcome: "unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deriver := new(MockDeriver)
			deriver.On("Derive", mock.Anything).Return(tt.fingerprint).Once()
			verifier := new(MockVerifier)
			metrics, reader := newTestMetrics(t)

			svc := NewLicenseService(deriver, verifier, metrics, discardLogger())
			fp := svc.MachineID(context.Background())

			assert.Equal(t, tt.wantWire, fp.String())
			assert.Equal(t, map[string]int64{tt.wantOutcome: 1},
				counterValues(t, reader, "fingerprint_derivations_total", "outcome"))
			deriver.AssertExpectations(t)
			verifier.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestLicenseServiceVerify(t *testing.T) {
	fp := security.Derived("35308332D81E437B")

	tests := []struct {
		name      string
		key       string
		result    license.Result
		wantValid bool
	}{
		{
			name:      "accepted",
			key:       "anything",
			result:    license.Result{Valid: true, Policy: license.PolicyReference},
			wantValid: true,
		},
		{
			name:   "rejected",
			key:    "20200101DEADBEEF",
			result: license.Result{Valid: false, Policy: license.PolicyDated, Reason: license.ReasonExpired},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deriver := new(MockDeriver)
			deriver.On("Derive", mock.Anything).Return(fp).Once()
			verifier := new(MockVerifier)
			verifier.On("PolicyName").Return(tt.result.Policy)
			verifier.On("Verify", mock.Anything, tt.key, fp).Return(tt.result).Once()
			metrics, reader := newTestMetrics(t)

			svc := NewLicenseService(deriver, verifier, metrics, discardLogger())
			got := svc.Verify(context.Background(), tt.key)

			assert.Equal(t, tt.wantValid, got.Valid)
			assert.Equal(t, tt.result, got)

			verifications := counterValues(t, reader, "license_verifications_total", "valid")
			if tt.wantValid {
				assert.Equal(t, map[string]int64{"true": 1}, verifications)
			} else {
				assert.Equal(t, map[string]int64{"false": 1}, verifications)
			}
			deriver.AssertExpectations(t)
			verifier.AssertExpectations(t)
		})
	}
}

func TestLicenseServiceVerifyDerivesEveryCall(t *testing.T) {
	fp := security.Derived("35308332D81E437B")
	deriver := new(MockDeriver)
	deriver.On("Derive", mock.Anything).Return(fp).Times(3)
	verifier := new(MockVerifier)
	verifier.On("PolicyName").Return(license.PolicyReference)
	verifier.On("Verify", mock.Anything, mock.Anything, fp).Return(license.Result{Valid: true, Policy: license.PolicyReference})

	svc := NewLicenseService(deriver, verifier, nil, discardLogger())
	for i := 0; i < 3; i++ {
		assert.True(t, svc.Verify(context.Background(), "k").Valid)
	}
	deriver.AssertNumberOfCalls(t, "Derive", 3)
}

func TestLicenseServiceSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	deriver := new(MockDeriver)
	deriver.On("Derive", mock.Anything).Return(security.Unavailable(nil))
	verifier := new(MockVerifier)
	verifier.On("PolicyName").Return(license.PolicyReference)
	verifier.On("Verify", mock.Anything, "", mock.Anything).Return(license.Result{Valid: true, Policy: license.PolicyReference})

	svc := NewLicenseService(deriver, verifier, nil, discardLogger())
	svc.Verify(context.Background(), "")

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "license.verify", spans[0].Name())

	events := spans[0].Events()
	require.NotEmpty(t, events)
	assert.Equal(t, "fingerprint.unavailable", events[0].Name)
}
