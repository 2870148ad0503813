// Package domain contains the wire contracts shared by the HTTP layer and
// its clients. Field names are fixed by the bundled front end.
package domain

// MachineIDResponse is the body of GET /api/machine-id. MachineID holds
// either 16 uppercase hex characters or the HARDWARE-ERR-ID sentinel.
type MachineIDResponse struct {
	MachineID string `json:"machine_id"`
}

// VerifyLicenseRequest is the body of POST /api/verify-license.
// A missing key is treated as the empty string.
type VerifyLicenseRequest struct {
	Key string `json:"key"`
}

// VerifyLicenseResponse is the decision returned for a well-formed request.
// Error carries the rejection reason and is omitted for valid keys.
type VerifyLicenseResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// OKResponse is the body returned to OPTIONS /api/verify-license
const OKResponse = "OK"
