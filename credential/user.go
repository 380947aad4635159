package credential

import (
	"strings"
	"time"

	"github.com/MrEthical07/sessiongate/settings"
)

// DefaultMaxConnections is the per-user session cap applied when a user is
// created without an explicit limit.
const DefaultMaxConnections = 20

// User is a persisted account record.
//
// The active connection count is not stored; it is derived from the session
// store whenever it is needed.
type User struct {
	ID             string
	FullName       string
	Email          string
	PasswordHash   string
	AvatarURL      string
	Settings       settings.Map
	MaxConnections int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NormalizeEmail returns the lookup form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
