package sessiongate

import (
	"context"
)

// SessionReport returns the live connection count of userID and its limit.
// The count is derived from the session store on every call.
func (e *Engine) SessionReport(ctx context.Context, userID string) (SessionReport, error) {
	if !e.ready() {
		return SessionReport{}, ErrEngineNotReady
	}
	r, err := e.flows.SessionReport(ctx, userID)
	if err != nil {
		return SessionReport{}, e.storeFailure("session_report", userID, err)
	}
	return SessionReport{
		Connections:    r.Connections,
		MaxConnections: r.MaxConnections,
	}, nil
}

// ListSessions returns the live sessions of userID, oldest first. Token
// material is never included.
func (e *Engine) ListSessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	list, err := e.flows.ListSessions(ctx, userID)
	if err != nil {
		return nil, e.storeFailure("list_sessions", userID, err)
	}
	out := make([]SessionInfo, 0, len(list))
	for _, s := range list {
		out = append(out, SessionInfo{
			SessionID: s.SessionID,
			CreatedAt: s.CreatedAt,
			ExpiresAt: s.ExpiresAt,
		})
	}
	return out, nil
}

// Health pings Redis and the credential store.
func (e *Engine) Health(ctx context.Context) HealthReport {
	if !e.ready() {
		return HealthReport{}
	}
	h := e.flows.Health(ctx)
	return HealthReport{
		RedisAvailable: h.RedisAvailable,
		RedisLatency:   h.RedisLatency,
		UserStoreOK:    h.UserStoreOK,
	}
}
