// Package identity holds the console's admin directory: a small JSON file of
// users with Argon2id password hashes, and the credential verifier the
// session machine consults on sign-in.
package identity
