// Package password hashes and verifies admin passwords with Argon2id.
//
// Encoded hashes use the PHC-like "$argon2id$v=19$m=..,t=..,p=..$salt$key"
// form. Hashes are treated as untrusted input during Verify: decoding is
// strict and parameters far above the configured maxima are refused.
package password
