package sessiongate

import (
	"context"
	"time"

	"github.com/MrEthical07/sessiongate/credential"
	"github.com/MrEthical07/sessiongate/internal/flows"
	"github.com/MrEthical07/sessiongate/jwt"
	"github.com/MrEthical07/sessiongate/password"
	"github.com/MrEthical07/sessiongate/session"
	"github.com/sirupsen/logrus"
)

// Engine owns the session lifecycle: registration, login with oldest-session
// eviction, token authentication against live session state, logout and the
// bounded per-user settings map.
//
// An Engine is built once by a Builder and is safe for concurrent use. All
// durable state lives in Redis and the credential store.
type Engine struct {
	config       Config
	sessionStore *session.Store
	userStore    credential.Store
	metrics      *Metrics
	passwordHash *password.Argon2
	jwtManager   *jwt.Manager
	log          logrus.FieldLogger
	flows        flows.Service
}

// Close releases the credential store. The Redis client stays with the caller.
func (e *Engine) Close() error {
	if e == nil || e.userStore == nil {
		return nil
	}
	return e.userStore.Close()
}

// MetricsSnapshot returns a copy of the in-process counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.flows.Initialized()
}

// Register validates req, creates the user and, with Account.AutoLogin,
// opens the first session.
//
// Register returns an error wrapping ErrValidation for malformed input and
// ErrAccountExists when the email is taken. If the account is created but
// the automatic login fails, the result is returned together with
// ErrSessionCreationFailed.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	req, err := normalizeRegisterRequest(req)
	if err != nil {
		return nil, err
	}

	res, err := e.flows.CreateAccount(ctx, flows.AccountCreateRequest{
		Email:     req.Email,
		Password:  req.Password,
		FullName:  req.FullName,
		AvatarURL: req.AvatarURL,
	})
	if res == nil {
		return nil, e.storeFailure("register", "", err)
	}

	out := &RegisterResult{Profile: profileOf(res.User, 0)}
	if res.Session != nil {
		out.Token = res.Session.Token
		out.SessionID = res.Session.SessionID
		out.ExpiresAt = res.Session.ExpiresAt
		out.Profile.Connections = 1
	}
	if err != nil {
		return out, e.storeFailure("register", res.User.ID, err)
	}
	return out, nil
}

// Login verifies credentials and opens a new session. When the user is at
// their connection cap the oldest sessions are evicted first; login never
// fails because of load.
//
// Unknown email and wrong password both return ErrInvalidCredentials.
func (e *Engine) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	email, err := validateLogin(email, password)
	if err != nil {
		return nil, err
	}

	res, err := e.flows.Login(ctx, email, password)
	if err != nil {
		return nil, e.storeFailure("login", "", err)
	}
	if len(res.Evicted) > 0 {
		e.log.WithFields(logrus.Fields{
			"user_id": res.UserID,
			"evicted": len(res.Evicted),
		}).Info("connection limit reached, evicted oldest sessions")
	}
	return &LoginResult{
		Token:     res.Token,
		SessionID: res.SessionID,
		UserID:    res.UserID,
		ExpiresAt: res.ExpiresAt,
		Evicted:   res.Evicted,
	}, nil
}

// Logout deletes the session bound to token. It returns ErrSessionNotFound
// when the session was already removed.
func (e *Engine) Logout(ctx context.Context, token string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if _, err := e.flows.Logout(ctx, token); err != nil {
		return e.storeFailure("logout", "", err)
	}
	return nil
}

// LogoutAll deletes every session of userID and returns how many were live.
func (e *Engine) LogoutAll(ctx context.Context, userID string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	n, err := e.flows.LogoutAll(ctx, userID)
	if err != nil {
		return 0, e.storeFailure("logout_all", userID, err)
	}
	return n, nil
}

// Authenticate is the Auth Gate. It returns ErrUnauthorized for an empty
// token, ErrTokenInvalid when the token fails verification and
// ErrSessionRevoked when no live session is bound to a valid token. Session
// state is authoritative: a logged out or evicted token is rejected within
// its signed validity window.
func (e *Engine) Authenticate(ctx context.Context, token string) (*Identity, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	res := e.flows.Validate(ctx, token)
	e.metrics.Observe(MetricValidateLatency, time.Since(start))

	switch res.Failure {
	case flows.ValidateFailureNone:
	case flows.ValidateFailureMissingToken:
		e.metricInc(MetricAuthUnauthorized)
		return nil, ErrUnauthorized
	case flows.ValidateFailureTokenInvalid:
		e.metricInc(MetricAuthForbidden)
		return nil, ErrTokenInvalid
	case flows.ValidateFailureSessionRevoked:
		e.metricInc(MetricAuthForbidden)
		return nil, ErrSessionRevoked
	default:
		return nil, e.storeFailure("authenticate", "", res.Err)
	}

	e.metricInc(MetricAuthSuccess)
	return &Identity{
		UserID:    res.Session.UserID,
		SessionID: res.Session.SessionID,
		ExpiresAt: res.Session.ExpiresTime(),
	}, nil
}

// Me returns the profile of userID with the derived live connection count.
func (e *Engine) Me(ctx context.Context, userID string) (*Profile, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	user, err := e.flows.Profile(ctx, userID)
	if err != nil {
		return nil, e.storeFailure("me", userID, err)
	}
	report, err := e.flows.SessionReport(ctx, userID)
	if err != nil {
		return nil, e.storeFailure("me", userID, err)
	}
	p := profileOf(user, report.Connections)
	p.MaxConnections = report.MaxConnections
	return p, nil
}

func profileOf(u *credential.User, connections int) *Profile {
	return &Profile{
		ID:             u.ID,
		FullName:       u.FullName,
		Email:          u.Email,
		AvatarURL:      u.AvatarURL,
		Settings:       u.Settings.Clone(),
		Connections:    connections,
		MaxConnections: u.MaxConnections,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}
