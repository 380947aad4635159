package sessiongate

import (
	"errors"

	"github.com/MrEthical07/sessiongate/credential"
	"github.com/MrEthical07/sessiongate/jwt"
	"github.com/MrEthical07/sessiongate/password"
	"github.com/MrEthical07/sessiongate/session"
	"github.com/MrEthical07/sessiongate/settings"
)

var (
	// ErrValidation is wrapped by every request validation failure.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials is returned for an unknown email and for a wrong
	// password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized means no credentials were presented.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTokenInvalid means the token failed signature, algorithm or expiry checks.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrSessionRevoked means the token is well formed but no live session is
	// bound to it.
	ErrSessionRevoked = errors.New("session revoked")
	// ErrSessionNotFound is returned by Logout when the token has no session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrUserNotFound is returned when a user referenced by a live session no
	// longer exists.
	ErrUserNotFound = errors.New("user not found")
	// ErrSettingNotFound is returned when a requested settings index is absent.
	ErrSettingNotFound = errors.New("setting not found")
	// ErrSettingsFull is returned when inserting a new index into a full settings map.
	ErrSettingsFull = errors.New("settings limit reached")
	// ErrInvalidSettingValue is returned for an empty settings value.
	ErrInvalidSettingValue = errors.New("invalid setting value")
	// ErrAccountExists is returned by Register for an already registered email.
	ErrAccountExists = errors.New("account already exists")
	// ErrPasswordPolicy is returned when a password is outside the length bounds.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrSessionCreationFailed is returned by Register when the account was
	// created but the automatic login failed.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrStoreFailure wraps backing store errors.
	ErrStoreFailure = errors.New("store failure")
	// ErrEngineNotReady is returned by a zero or partially built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// ErrorKind is the caller-facing classification of an error.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindValidation
	KindInvalidCredentials
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindSettingsFull
	KindConflict
	KindStoreFailure
)

var kindNames = [...]string{
	KindNone:               "none",
	KindValidation:         "validation_failed",
	KindInvalidCredentials: "invalid_credentials",
	KindUnauthorized:       "unauthorized",
	KindForbidden:          "forbidden",
	KindNotFound:           "not_found",
	KindSettingsFull:       "settings_full",
	KindConflict:           "conflict",
	KindStoreFailure:       "store_failure",
}

func (k ErrorKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// KindOf classifies err. Errors this package does not recognize are treated
// as store failures so that callers fail closed.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrPasswordPolicy),
		errors.Is(err, ErrInvalidSettingValue),
		errors.Is(err, settings.ErrInvalidIndex),
		errors.Is(err, settings.ErrEmptyValue),
		errors.Is(err, settings.ErrMalformedValue),
		errors.Is(err, settings.ErrScalarValue),
		errors.Is(err, settings.ErrUnknownKind),
		errors.Is(err, password.ErrPasswordLength):
		return KindValidation
	case errors.Is(err, ErrInvalidCredentials):
		return KindInvalidCredentials
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrSessionRevoked),
		errors.Is(err, jwt.ErrInvalidToken):
		return KindForbidden
	case errors.Is(err, ErrSettingsFull), errors.Is(err, settings.ErrFull):
		return KindSettingsFull
	case errors.Is(err, ErrAccountExists), errors.Is(err, credential.ErrDuplicateEmail):
		return KindConflict
	case errors.Is(err, ErrStoreFailure),
		errors.Is(err, session.ErrRedisUnavailable),
		errors.Is(err, ErrEngineNotReady),
		errors.Is(err, ErrSessionCreationFailed):
		return KindStoreFailure
	case errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrSettingNotFound),
		errors.Is(err, credential.ErrNotFound),
		errors.Is(err, session.ErrSessionNotFound):
		return KindNotFound
	default:
		return KindStoreFailure
	}
}
