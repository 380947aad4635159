package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/sessiongate/credential"
	"github.com/MrEthical07/sessiongate/session"
)

// IntrospectionSessionStore is the read-only session surface used for
// reporting. It never mutates session state beyond pruning expired index
// members.
type IntrospectionSessionStore interface {
	CountForUser(ctx context.Context, userID string) (int, error)
	ListForUser(ctx context.Context, userID string) ([]*session.Session, error)
	Ping(ctx context.Context) (time.Duration, error)
}

type IntrospectionDeps struct {
	SessionStore          IntrospectionSessionStore
	FindUserByID          func(context.Context, string) (*credential.User, error)
	PingUserStore         func(context.Context) error
	DefaultMaxConnections int

	EngineNotReadyErr error
	UserNotFoundErr   error
}

// SessionReport summarizes a user's connection usage.
type SessionReport struct {
	UserID         string
	Connections    int
	MaxConnections int
}

// SessionInfo is the public view of a session. The token hash is never
// exposed.
type SessionInfo struct {
	SessionID string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// HealthReport is the readiness summary of both backing stores.
type HealthReport struct {
	RedisAvailable bool
	RedisLatency   time.Duration
	UserStoreOK    bool
}

func (d IntrospectionDeps) loadUser(ctx context.Context, userID string) (*credential.User, error) {
	if d.FindUserByID == nil {
		return nil, d.EngineNotReadyErr
	}
	user, err := d.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return nil, d.UserNotFoundErr
		}
		return nil, err
	}
	return user, nil
}

// RunProfile loads the user record behind an authenticated request.
func RunProfile(ctx context.Context, userID string, deps IntrospectionDeps) (*credential.User, error) {
	return deps.loadUser(ctx, userID)
}

// RunSessionReport derives the live connection count from the session store.
func RunSessionReport(ctx context.Context, userID string, deps IntrospectionDeps) (SessionReport, error) {
	if deps.SessionStore == nil {
		return SessionReport{}, deps.EngineNotReadyErr
	}
	user, err := deps.loadUser(ctx, userID)
	if err != nil {
		return SessionReport{}, err
	}
	n, err := deps.SessionStore.CountForUser(ctx, userID)
	if err != nil {
		return SessionReport{}, err
	}

	limit := user.MaxConnections
	if limit <= 0 {
		limit = deps.DefaultMaxConnections
	}
	return SessionReport{
		UserID:         userID,
		Connections:    n,
		MaxConnections: limit,
	}, nil
}

// RunListSessions returns the user's live sessions, oldest first.
func RunListSessions(ctx context.Context, userID string, deps IntrospectionDeps) ([]SessionInfo, error) {
	if deps.SessionStore == nil {
		return nil, deps.EngineNotReadyErr
	}
	sessions, err := deps.SessionStore.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionInfo{
			SessionID: s.SessionID,
			CreatedAt: s.CreatedTime(),
			ExpiresAt: s.ExpiresTime(),
		})
	}
	return out, nil
}

// RunHealth pings both stores. It never returns an error; failures are
// reported in the result.
func RunHealth(ctx context.Context, deps IntrospectionDeps) HealthReport {
	var report HealthReport
	if deps.SessionStore != nil {
		latency, err := deps.SessionStore.Ping(ctx)
		report.RedisLatency = latency
		report.RedisAvailable = err == nil
	}
	if deps.PingUserStore != nil {
		report.UserStoreOK = deps.PingUserStore(ctx) == nil
	}
	return report
}
