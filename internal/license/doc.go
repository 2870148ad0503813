// Package license decides whether a license key unlocks this machine.
//
// A Validator normalizes the raw key (trim, uppercase), honours the
// configured master key, and otherwise delegates to a Policy:
//
//   - reference: accepts every key, including the empty one
//   - dated: the key is YYYYMMDD followed by a prefix of
//     upper(hex(SHA-256(fingerprint + YYYYMMDD + secret))); it expires at
//     local midnight starting that date and only works on the machine whose
//     fingerprint signed it
//
// Keys are never persisted. Verdicts are values, not errors: an invalid key
// is a Result with Valid=false and a reason. ErrMalformedRequest is reserved
// for requests that cannot be decoded at all.
package license
