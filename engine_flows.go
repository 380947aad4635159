package sessiongate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/sessiongate/credential"
	"github.com/MrEthical07/sessiongate/internal"
	"github.com/MrEthical07/sessiongate/internal/flows"
	"github.com/sirupsen/logrus"
)

func (e *Engine) flowDeps() flows.Deps {
	inc := func(id int) { e.metricInc(MetricID(id)) }
	warn := func(format string, args ...any) { e.log.Warnf(format, args...) }
	lifetime := func() time.Duration { return e.config.Session.Lifetime }

	login := flows.LoginDeps{
		PasswordUpgradeOnLogin: e.config.Password.UpgradeOnLogin,
		DefaultMaxConnections:  e.config.Session.DefaultMaxConnections,
		Now:                    time.Now,
		SessionLifetime:        lifetime,
		FindUserByEmail:        e.userStore.FindByEmail,
		UpdatePasswordHash:     e.userStore.UpdatePasswordHash,
		VerifyPassword:         e.passwordHash.Verify,
		PasswordNeedsUpgrade:   e.passwordHash.NeedsUpgrade,
		HashPassword:           e.passwordHash.Hash,
		IssueToken:             e.jwtManager.Issue,
		HashToken:              internal.HashToken,
		NewSessionID:           internal.NewSessionID,
		CreateSession:          e.sessionStore.Create,
		MetricInc:              inc,
		Warn:                   warn,
		Metrics: flows.LoginMetrics{
			LoginSuccess:   int(MetricLoginSuccess),
			LoginFailure:   int(MetricLoginFailure),
			SessionCreated: int(MetricSessionCreated),
			SessionEvicted: int(MetricSessionEvicted),
		},
		Errors: flows.LoginErrors{
			EngineNotReady:     ErrEngineNotReady,
			InvalidCredentials: ErrInvalidCredentials,
		},
	}

	return flows.Deps{
		Login: login,
		Account: flows.AccountDeps{
			AutoLogin:             e.config.Account.AutoLogin,
			DefaultMaxConnections: e.config.Session.DefaultMaxConnections,
			Now:                   time.Now,
			NewUserID:             internal.NewUserID,
			HashPassword:          e.passwordHash.Hash,
			CreateUser:            e.userStore.Create,
			IssueSession: func(ctx context.Context, u *credential.User) (*flows.LoginResult, error) {
				return flows.RunIssueSession(ctx, u, login)
			},
			MetricInc: inc,
			Warn:      warn,
			Metrics: flows.AccountMetrics{
				AccountCreationSuccess:   int(MetricAccountCreationSuccess),
				AccountCreationDuplicate: int(MetricAccountCreationDuplicate),
			},
			Errors: flows.AccountErrors{
				EngineNotReady:         ErrEngineNotReady,
				AccountCreationInvalid: ErrValidation,
				PasswordPolicy:         ErrPasswordPolicy,
				AccountExists:          ErrAccountExists,
				SessionCreationFailed:  ErrSessionCreationFailed,
			},
		},
		Logout: flows.LogoutDeps{
			HashToken:            internal.HashToken,
			DeleteSessionByToken: e.sessionStore.DeleteByToken,
			DeleteAllForUser:     e.sessionStore.DeleteAllForUser,
			MetricInc:            inc,
			Metrics: flows.LogoutMetrics{
				Logout:    int(MetricLogout),
				LogoutAll: int(MetricLogoutAll),
			},
			Errors: flows.LogoutErrors{
				EngineNotReady:  ErrEngineNotReady,
				SessionNotFound: ErrSessionNotFound,
			},
		},
		Validate: flows.ValidateDeps{
			VerifyToken:       e.jwtManager.Verify,
			HashToken:         internal.HashToken,
			GetSessionByToken: e.sessionStore.GetByToken,
			Now:               time.Now,
		},
		Settings: flows.SettingsDeps{
			FindUserByID:  e.userStore.FindByID,
			PutSetting:    e.userStore.PutSetting,
			DeleteSetting: e.userStore.DeleteSetting,
			MetricInc:     inc,
			Metrics: flows.SettingsMetrics{
				SettingsWrite:        int(MetricSettingsWrite),
				SettingsFullRejected: int(MetricSettingsFullRejected),
				SettingsDelete:       int(MetricSettingsDelete),
			},
			Errors: flows.SettingsErrors{
				EngineNotReady:  ErrEngineNotReady,
				UserNotFound:    ErrUserNotFound,
				SettingNotFound: ErrSettingNotFound,
				SettingsFull:    ErrSettingsFull,
				InvalidValue:    ErrInvalidSettingValue,
			},
		},
		Introspection: flows.IntrospectionDeps{
			SessionStore:          e.sessionStore,
			FindUserByID:          e.userStore.FindByID,
			PingUserStore:         e.userStore.Ping,
			DefaultMaxConnections: e.config.Session.DefaultMaxConnections,
			EngineNotReadyErr:     ErrEngineNotReady,
			UserNotFoundErr:       ErrUserNotFound,
		},
	}
}

// storeFailure logs err with op and userID and wraps it as ErrStoreFailure.
// Errors that already carry a caller-facing kind pass through unchanged.
func (e *Engine) storeFailure(op, userID string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindStoreFailure {
		return err
	}
	e.metricInc(MetricStoreFailure)
	fields := logrus.Fields{"op": op}
	if userID != "" {
		fields["user_id"] = userID
	}
	e.log.WithFields(fields).WithError(err).Error("store operation failed")
	if errors.Is(err, ErrStoreFailure) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreFailure, err)
}
