// Package sessiongate provides a session-backed authentication engine: user
// registration, credential login issuing signed bearer tokens, a per-user cap
// on concurrent sessions with oldest-session eviction, an Auth Gate that
// checks tokens against live session state, and a small bounded settings map
// per user.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// sessiongate is the public surface. It exposes [Engine], [Builder], [Config],
// the error taxonomy ([KindOf]) and value types (Profile, SessionInfo,
// MetricsSnapshot). Flow orchestration lives under internal/flows; Redis
// session layout lives in the session package; user persistence is behind
// [credential.Store].
//
// # Session state is authoritative
//
// A token is accepted only while a live session is bound to it. Logout,
// eviction and expiry revoke a token before its signed expiry. Session
// creation, pruning of expired sessions and eviction run as one Redis script,
// so concurrent logins of the same user never exceed the cap.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its public API.
//   - Store bearer tokens; only their SHA-256 hash reaches Redis.
//   - Keep a mutable connection counter; the count is always derived.
package sessiongate
