package credential

import (
	"context"
	"errors"

	"github.com/MrEthical07/sessiongate/settings"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("credential: user not found")
	// ErrDuplicateEmail is returned by Create when the email is already registered.
	ErrDuplicateEmail = errors.New("credential: email already registered")
)

// Store persists user records.
//
// PutSetting must apply the overwrite-or-insert rule of [settings.Map.Put]
// atomically and return [settings.ErrFull] when a new index would exceed the
// capacity. DeleteSetting is idempotent. Both return the map as stored after
// the write.
type Store interface {
	Create(ctx context.Context, u *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	PutSetting(ctx context.Context, userID string, idx settings.Index, v settings.Value) (settings.Map, error)
	DeleteSetting(ctx context.Context, userID string, idx settings.Index) (settings.Map, error)
	Ping(ctx context.Context) error
	Close() error
}
