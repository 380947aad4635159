// Package middleware exposes the HTTP Auth Gate built on top of
// sessiongate.Engine.Authenticate.
//
// # Guards
//
//   - [Guard] reads the Authorization header, calls Engine.Authenticate and
//     injects the authenticated identity into the request context.
//
// A missing or non-Bearer header is rejected with 401. A token that fails
// verification, or whose session was logged out, evicted or expired, is
// rejected with 403. Session store failures surface as 500.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT implement
// authentication logic itself; all decisions are delegated to Engine.Authenticate.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject from Engine.Authenticate.
package middleware
