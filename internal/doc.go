// Package internal contains helpers private to sessiongate: identifier
// generation and token hashing.
//
// # Sub-packages
//
//   - config: server configuration file loading
//   - flows: pure-function orchestrators for every Engine operation
//
// # What this package must NOT do
//
//   - Export types that appear in the public sessiongate API.
package internal
