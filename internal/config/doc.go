// Package config loads the license gate configuration.
//
// # Configuration Sources
//
// Values are applied in this order, later sources winning:
//
//	1. Default()
//	2. A YAML file: FBC_CONFIG_FILE, ./config.yaml, ./configs/config.yaml
//	   or config.yaml next to the executable
//	3. Environment variables with the FBC_ prefix
//
// # Environment Variables
//
// Variables follow the struct layout, for example:
//
//	FBC_SERVER_PORT=8000
//	FBC_SECURITY_ALLOWED_ORIGINS=http://localhost:5173,http://127.0.0.1:8000
//	FBC_LOGGING_LEVEL=debug
//	FBC_FINGERPRINT_NAMESPACE=FBC-KPF-ARCH
//	FBC_LICENSE_POLICY=dated
//	FBC_LICENSE_ON_UNAVAILABLE_FINGERPRINT=deny
//
// # Paths
//
// Relative paths (dist/, logo.png, logs/app.log) are resolved against the
// directory of the running executable, never the working directory.
//
// # Validation
//
// Validate applies go-playground/validator struct tags and the cross-field
// rules the tags cannot express. Load returns an error instead of a
// partially valid Config.
package config
