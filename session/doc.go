// Package session provides Redis-backed session persistence and compact binary session
// encoding for the authentication hot path.
//
// # Key layout
//
// Under a configurable prefix P the store keeps three kinds of keys:
//
//	P:s:<sessionID>  encoded Session, expires with the session
//	P:t:<tokenHash>  session ID, expires with the session
//	P:u:<userID>     sorted set of session IDs scored by creation time (ms)
//
// Bearer tokens are never stored; sessions are addressed by the SHA-256 hex hash
// of the token.
//
// # Capacity
//
// [Store.Create] runs a single Lua script that prunes expired index members,
// evicts the oldest sessions while the user is at capacity and inserts the new
// session. Ordering follows the sorted set: earliest creation time first, ties
// broken by the lexicographically lowest session ID. The live count is always
// read from the sorted set, so there is no separate counter to drift.
//
// # Binary encoding
//
// Sessions are stored as a version byte followed by fixed-offset fields. The
// token hash and user ID sit at known offsets so the Lua scripts can read them
// without a full decoder.
//
// # What this package must NOT do
//
//   - Import sessiongate or jwt (no upward imports).
//   - Store plaintext bearer tokens.
package session
