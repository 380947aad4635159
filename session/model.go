package session

import "time"

// Session is a server-side record binding a bearer token to a user.
//
// CreatedAt and ExpiresAt are unix milliseconds. SessionID is not part of the
// encoded form; the store fills it from the key.
type Session struct {
	SessionID string
	UserID    string
	TokenHash string

	CreatedAt int64
	ExpiresAt int64
}

// CreatedTime returns CreatedAt as a time.Time.
func (s *Session) CreatedTime() time.Time { return time.UnixMilli(s.CreatedAt) }

// ExpiresTime returns ExpiresAt as a time.Time.
func (s *Session) ExpiresTime() time.Time { return time.UnixMilli(s.ExpiresAt) }

// Expired reports whether the session has passed its expiry at now.
func (s *Session) Expired(now time.Time) bool { return now.UnixMilli() >= s.ExpiresAt }
