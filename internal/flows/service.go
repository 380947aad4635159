package flows

import (
	"context"

	"github.com/MrEthical07/sessiongate/credential"
	"github.com/MrEthical07/sessiongate/session"
	"github.com/MrEthical07/sessiongate/settings"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Validate.VerifyToken != nil
}

func (s Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	return RunLogin(ctx, email, password, s.deps.Login)
}

func (s Service) IssueSession(ctx context.Context, user *credential.User) (*LoginResult, error) {
	return RunIssueSession(ctx, user, s.deps.Login)
}

func (s Service) CreateAccount(ctx context.Context, req AccountCreateRequest) (*AccountCreateResult, error) {
	return RunCreateAccount(ctx, req, s.deps.Account)
}

func (s Service) Validate(ctx context.Context, token string) ValidateResult {
	return RunValidate(ctx, token, s.deps.Validate)
}

func (s Service) Logout(ctx context.Context, token string) (*session.Session, error) {
	return RunLogout(ctx, token, s.deps.Logout)
}

func (s Service) LogoutAll(ctx context.Context, userID string) (int, error) {
	return RunLogoutAll(ctx, userID, s.deps.Logout)
}

func (s Service) GetSettings(ctx context.Context, userID string) (settings.Map, error) {
	return RunGetSettings(ctx, userID, s.deps.Settings)
}

func (s Service) GetSetting(ctx context.Context, userID string, idx settings.Index) (settings.Value, error) {
	return RunGetSetting(ctx, userID, idx, s.deps.Settings)
}

func (s Service) SetSetting(ctx context.Context, userID string, idx settings.Index, v settings.Value) (settings.Map, error) {
	return RunSetSetting(ctx, userID, idx, v, s.deps.Settings)
}

func (s Service) DeleteSetting(ctx context.Context, userID string, idx settings.Index) (settings.Map, error) {
	return RunDeleteSetting(ctx, userID, idx, s.deps.Settings)
}

func (s Service) Profile(ctx context.Context, userID string) (*credential.User, error) {
	return RunProfile(ctx, userID, s.deps.Introspection)
}

func (s Service) SessionReport(ctx context.Context, userID string) (SessionReport, error) {
	return RunSessionReport(ctx, userID, s.deps.Introspection)
}

func (s Service) ListSessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	return RunListSessions(ctx, userID, s.deps.Introspection)
}

func (s Service) Health(ctx context.Context) HealthReport {
	return RunHealth(ctx, s.deps.Introspection)
}
