package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/sessiongate/session"
)

// LogoutMetrics carries metric IDs needed by logout flows.
type LogoutMetrics struct {
	Logout    int
	LogoutAll int
}

// LogoutErrors carries host-level sentinel errors used by logout flows.
type LogoutErrors struct {
	EngineNotReady  error
	SessionNotFound error
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	HashToken            func(string) string
	DeleteSessionByToken func(context.Context, string) (*session.Session, error)
	DeleteAllForUser     func(context.Context, string) (int, error)

	MetricInc func(int)
	Metrics   LogoutMetrics
	Errors    LogoutErrors
}

// RunLogout deletes the session bound to token. The live session count drops
// with the delete itself; there is no counter to adjust.
func RunLogout(ctx context.Context, token string, deps LogoutDeps) (*session.Session, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.HashToken == nil || deps.DeleteSessionByToken == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if token == "" {
		return nil, deps.Errors.SessionNotFound
	}

	sess, err := deps.DeleteSessionByToken(ctx, deps.HashToken(token))
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil, deps.Errors.SessionNotFound
		}
		return nil, err
	}
	deps.MetricInc(deps.Metrics.Logout)
	return sess, nil
}

// RunLogoutAll deletes every session of userID and returns how many were live.
func RunLogoutAll(ctx context.Context, userID string, deps LogoutDeps) (int, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.DeleteAllForUser == nil {
		return 0, deps.Errors.EngineNotReady
	}

	n, err := deps.DeleteAllForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	deps.MetricInc(deps.Metrics.LogoutAll)
	return n, nil
}
