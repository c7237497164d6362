// Package token mints credential values and derives log-safe fingerprints.
//
// Values are random UUIDs (122 random bits). Raw values never reach logs;
// callers log Fingerprint(value) instead, a short hex digest that is keyed with
// HMAC-SHA256 when CONSOLE_TOKEN_HMAC_KEY is set and plain SHA-256 otherwise.
package token
