// Package services composes the fingerprint deriver and the license
// validator for the HTTP layer.
//
// Each call derives a fresh fingerprint; nothing is cached between
// requests. Services add spans, metrics and structured logs around the
// domain packages and never return errors for domain outcomes: an
// unavailable fingerprint and a rejected key are both values.
//
//	svc := services.NewLicenseService(deriver, validator, metrics, logger)
//	fp := svc.MachineID(ctx)
//	result := svc.Verify(ctx, key)
package services
