package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/sessiongate/credential"
	"github.com/MrEthical07/sessiongate/password"
	"github.com/MrEthical07/sessiongate/settings"
)

// AccountCreateRequest is the flow-local registration input. Fields are
// expected to be validated by the caller; the flow only rejects empty values.
type AccountCreateRequest struct {
	Email     string
	Password  string
	FullName  string
	AvatarURL string
}

// AccountCreateResult describes the new account and, with auto-login, the
// session opened for it.
type AccountCreateResult struct {
	User    *credential.User
	Session *LoginResult
}

type AccountMetrics struct {
	AccountCreationSuccess   int
	AccountCreationDuplicate int
}

type AccountErrors struct {
	EngineNotReady         error
	AccountCreationInvalid error
	PasswordPolicy         error
	AccountExists          error
	SessionCreationFailed  error
}

type AccountDeps struct {
	AutoLogin             bool
	DefaultMaxConnections int

	Now       func() time.Time
	NewUserID func() (string, error)

	HashPassword func(string) (string, error)
	CreateUser   func(context.Context, *credential.User) error
	IssueSession func(context.Context, *credential.User) (*LoginResult, error)

	MetricInc func(int)
	Warn      func(string, ...any)

	Metrics AccountMetrics
	Errors  AccountErrors
}

func normalizeAccountDeps(deps *AccountDeps) {
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

// RunCreateAccount hashes the password and persists a new user with an empty
// settings map. With AutoLogin the first session is opened immediately so the
// returned token passes the gate.
func RunCreateAccount(ctx context.Context, req AccountCreateRequest, deps AccountDeps) (*AccountCreateResult, error) {
	normalizeAccountDeps(&deps)
	if deps.HashPassword == nil || deps.CreateUser == nil || deps.NewUserID == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if deps.AutoLogin && deps.IssueSession == nil {
		return nil, deps.Errors.EngineNotReady
	}

	if req.Email == "" || req.FullName == "" {
		return nil, deps.Errors.AccountCreationInvalid
	}
	if req.Password == "" {
		return nil, deps.Errors.PasswordPolicy
	}

	hash, err := deps.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, password.ErrPasswordLength) {
			return nil, deps.Errors.PasswordPolicy
		}
		return nil, err
	}
	req.Password = ""

	id, err := deps.NewUserID()
	if err != nil {
		return nil, err
	}

	maxConnections := deps.DefaultMaxConnections
	if maxConnections <= 0 {
		maxConnections = credential.DefaultMaxConnections
	}
	now := deps.Now().UTC()
	user := &credential.User{
		ID:             id,
		FullName:       req.FullName,
		Email:          req.Email,
		PasswordHash:   hash,
		AvatarURL:      req.AvatarURL,
		Settings:       settings.Map{},
		MaxConnections: maxConnections,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := deps.CreateUser(ctx, user); err != nil {
		if errors.Is(err, credential.ErrDuplicateEmail) {
			deps.MetricInc(deps.Metrics.AccountCreationDuplicate)
			return nil, deps.Errors.AccountExists
		}
		return nil, err
	}
	deps.MetricInc(deps.Metrics.AccountCreationSuccess)

	result := &AccountCreateResult{User: user}
	if !deps.AutoLogin {
		return result, nil
	}

	sess, err := deps.IssueSession(ctx, user)
	if err != nil {
		// The account exists at this point; the caller can still log in.
		deps.Warn("sessiongate: auto-login after registration failed for user %s: %v", user.ID, err)
		if deps.Errors.SessionCreationFailed != nil {
			return result, errors.Join(deps.Errors.SessionCreationFailed, err)
		}
		return result, err
	}
	result.Session = sess
	return result, nil
}
