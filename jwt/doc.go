// Package jwt issues and verifies the bearer tokens handed out at login.
//
// A token carries the user identifier (uid), a random token ID (jti) and a
// fixed expiry. Verification alone never authenticates a request: the caller
// must also find a live session bound to the token.
package jwt
