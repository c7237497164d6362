// Package session decides, per request, what happens to the caller's session
// record.
//
// Machine.Evaluate takes the decoded record (or a fresh sign-in) and returns the
// state it ended in together with the record to hand back: passed through when
// the access token is still valid, refreshed through the lifecycle manager when
// it is not, or tagged with RefreshAccessTokenError when refreshing fails.
// Errors never escape Evaluate.
//
// Records travel to the client inside a signed container; Codec abstracts the
// format (PASETO v4.public by default, HS256 JWT as an alternative).
package session
