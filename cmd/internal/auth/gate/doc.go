// Package gate is the HTTP admission layer in front of the console pages.
//
// For requests whose path matches a configured pattern it opens the session
// cookie, runs the session machine (which refreshes expired access tokens),
// re-issues the cookie when the record changed and exposes the caller-facing
// view through the request context. A signed-in caller hitting the login page is
// sent to the landing page. Denying anonymous callers is opt-in (EnforceAuth).
package gate
