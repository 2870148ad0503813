// Package app wires configuration, logging, telemetry, the license services
// and the HTTP router into a runnable Application.
//
// # Initialization Flow
//
//	1. The caller loads config.Config and the process logger
//	2. NewApplication initializes OpenTelemetry and the license metrics
//	3. The fingerprint deriver, license validator and services are built
//	4. The chi router and http.Server are created
//
// # Usage
//
//	application, err := app.NewApplication(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return application.Run(ctx)
//
// # Lifecycle
//
// Run binds the configured port, falling back to the next PortFallbacks
// ports when it is taken, and serves until the context is cancelled or
// SIGINT/SIGTERM arrives. Unless RUN_MAIN=true or open_browser is off, the
// default browser is opened once /api/health answers.
//
// The app does not call os.Exit(); errors are returned to main.
package app
