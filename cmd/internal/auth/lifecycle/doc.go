// Package lifecycle issues and slides the access/refresh credential pair of an
// owner on top of two credential.Store instances.
//
// GetOrCreate* reuse the owner's current credential and push its expiry to
// now+TTL, or mint a new one when the owner has none. Issue consumes a Grant:
// provider-issued tokens are adopted as-is, otherwise both kinds go through
// GetOrCreate.
package lifecycle
