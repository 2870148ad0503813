// Package http implements the HTTP handlers of the license gate.
// Handlers stay thin: they decode requests, call the services layer and
// render responses with go-chi/render.
//
// # Endpoints
//
//	GET     /api/machine-id      {"machine_id": "<16 hex | HARDWARE-ERR-ID>"}
//	POST    /api/verify-license  {"key": "..."} -> {"valid": bool}
//	OPTIONS /api/verify-license  "OK"
//	GET     /api/logo            logo file or {"error": "No logo found"}
//	GET     /api/health          liveness and fingerprint availability
//	GET     /api/version         build information
//	GET     /assets/*, /*        bundled front end with index.html fallback
//
// # Error Shape
//
// Verification failures that stem from the request itself render as
// 400 {"error": "Invalid format"}. A rejected key is not an error: it is a
// 200 response with "valid": false.
package http
