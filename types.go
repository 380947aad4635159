package sessiongate

import (
	"time"

	"github.com/MrEthical07/sessiongate/settings"
)

// RegisterRequest is the registration input.
type RegisterRequest struct {
	Email     string
	Password  string
	FullName  string
	AvatarURL string
}

// RegisterResult carries the new profile and, when auto-login is enabled,
// the token of the first session.
type RegisterResult struct {
	Profile   *Profile
	Token     string
	SessionID string
	ExpiresAt time.Time
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Token     string
	SessionID string
	UserID    string
	ExpiresAt time.Time
	// Evicted lists the sessions removed to make room, oldest first.
	Evicted []string
}

// Identity is what the Auth Gate attaches to an authenticated request.
type Identity struct {
	UserID    string
	SessionID string
	ExpiresAt time.Time
}

// Profile is the public view of a user. The password hash never leaves the
// engine.
type Profile struct {
	ID             string       `json:"id"`
	FullName       string       `json:"fullName"`
	Email          string       `json:"email"`
	AvatarURL      string       `json:"avatarUrl,omitempty"`
	Settings       settings.Map `json:"settings"`
	Connections    int          `json:"connections"`
	MaxConnections int          `json:"maxConnections"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// SessionReport is the derived connection usage of a user.
type SessionReport struct {
	Connections    int `json:"connections"`
	MaxConnections int `json:"maxConnections"`
}

// SessionInfo describes one live session.
type SessionInfo struct {
	SessionID string    `json:"sessionId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// HealthReport summarizes backing store availability.
type HealthReport struct {
	RedisAvailable bool          `json:"redisAvailable"`
	RedisLatency   time.Duration `json:"redisLatencyNs"`
	UserStoreOK    bool          `json:"userStoreOk"`
}

// Healthy reports whether both stores answered.
func (h HealthReport) Healthy() bool {
	return h.RedisAvailable && h.UserStoreOK
}
