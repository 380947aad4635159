package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/sessiongate/credential"
	"github.com/MrEthical07/sessiongate/jwt"
	"github.com/MrEthical07/sessiongate/session"
)

// LoginResult is the flow-local login response shape.
type LoginResult struct {
	Token     string
	SessionID string
	UserID    string
	ExpiresAt time.Time
	// Evicted lists sessions removed to make room, oldest first.
	Evicted []string
}

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	LoginSuccess   int
	LoginFailure   int
	SessionCreated int
	SessionEvicted int
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady     error
	InvalidCredentials error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	PasswordUpgradeOnLogin bool
	DefaultMaxConnections  int

	Now             func() time.Time
	SessionLifetime func() time.Duration

	FindUserByEmail    func(context.Context, string) (*credential.User, error)
	UpdatePasswordHash func(context.Context, string, string) error

	VerifyPassword       func(string, string) (bool, error)
	PasswordNeedsUpgrade func(string) (bool, error)
	HashPassword         func(string) (string, error)

	IssueToken    func(string) (string, *jwt.Claims, error)
	HashToken     func(string) string
	NewSessionID  func() (string, error)
	CreateSession func(context.Context, *session.Session, time.Duration, int) ([]string, error)

	MetricInc func(int)
	Warn      func(string, ...any)

	Metrics LoginMetrics
	Errors  LoginErrors
}

func normalizeLoginDeps(deps *LoginDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.Warn == nil {
		deps.Warn = noopWarn
	}
}

// RunLogin verifies credentials and opens a new session. Unknown email and
// wrong password fail with the same error.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) (*LoginResult, error) {
	normalizeLoginDeps(&deps)
	if deps.FindUserByEmail == nil || deps.VerifyPassword == nil || deps.CreateSession == nil {
		return nil, deps.Errors.EngineNotReady
	}

	if email == "" || password == "" {
		deps.MetricInc(deps.Metrics.LoginFailure)
		return nil, deps.Errors.InvalidCredentials
	}

	user, err := deps.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			deps.MetricInc(deps.Metrics.LoginFailure)
			return nil, deps.Errors.InvalidCredentials
		}
		return nil, err
	}

	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		if err != nil {
			deps.Warn("sessiongate: password verification failed for user %s: %v", user.ID, err)
		}
		deps.MetricInc(deps.Metrics.LoginFailure)
		return nil, deps.Errors.InvalidCredentials
	}

	if deps.PasswordUpgradeOnLogin && deps.PasswordNeedsUpgrade != nil && deps.HashPassword != nil && deps.UpdatePasswordHash != nil {
		if needsUpgrade, err := deps.PasswordNeedsUpgrade(user.PasswordHash); err == nil && needsUpgrade {
			if upgradedHash, err := deps.HashPassword(password); err == nil {
				if err := deps.UpdatePasswordHash(ctx, user.ID, upgradedHash); err != nil {
					deps.Warn("sessiongate: password hash upgrade update failed for user %s: %v", user.ID, err)
				}
			} else {
				deps.Warn("sessiongate: password hash upgrade generation failed: %v", err)
			}
		}
	}
	password = ""

	res, err := RunIssueSession(ctx, user, deps)
	if err != nil {
		deps.MetricInc(deps.Metrics.LoginFailure)
		return nil, err
	}
	deps.MetricInc(deps.Metrics.LoginSuccess)
	return res, nil
}

// RunIssueSession signs a token for user and persists a session bound to it,
// evicting the user's oldest sessions when at capacity.
func RunIssueSession(ctx context.Context, user *credential.User, deps LoginDeps) (*LoginResult, error) {
	normalizeLoginDeps(&deps)
	if deps.IssueToken == nil || deps.HashToken == nil || deps.NewSessionID == nil ||
		deps.CreateSession == nil || deps.SessionLifetime == nil {
		return nil, deps.Errors.EngineNotReady
	}

	token, claims, err := deps.IssueToken(user.ID)
	if err != nil {
		return nil, err
	}
	sid, err := deps.NewSessionID()
	if err != nil {
		return nil, err
	}

	now := deps.Now()
	lifetime := deps.SessionLifetime()
	sess := &session.Session{
		SessionID: sid,
		UserID:    user.ID,
		TokenHash: deps.HashToken(token),
		CreatedAt: now.UnixMilli(),
		ExpiresAt: now.Add(lifetime).UnixMilli(),
	}

	maxSessions := user.MaxConnections
	if maxSessions <= 0 {
		maxSessions = deps.DefaultMaxConnections
	}

	evicted, err := deps.CreateSession(ctx, sess, lifetime, maxSessions)
	if err != nil {
		return nil, err
	}

	deps.MetricInc(deps.Metrics.SessionCreated)
	for range evicted {
		deps.MetricInc(deps.Metrics.SessionEvicted)
	}

	res := &LoginResult{
		Token:     token,
		SessionID: sid,
		UserID:    user.ID,
		Evicted:   evicted,
	}
	if claims != nil && claims.ExpiresAt != nil {
		res.ExpiresAt = claims.ExpiresAt.Time
	}
	return res, nil
}
