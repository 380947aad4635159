package flows

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/sessiongate/credential"
	"github.com/MrEthical07/sessiongate/jwt"
	"github.com/MrEthical07/sessiongate/password"
	"github.com/MrEthical07/sessiongate/session"
	"github.com/MrEthical07/sessiongate/settings"
	gjwt "github.com/golang-jwt/jwt/v5"
)

var (
	errNotReady      = errors.New("not ready")
	errBadCreds      = errors.New("invalid credentials")
	errNoSession     = errors.New("session not found")
	errUserMissing   = errors.New("user missing")
	errSettingAbsent = errors.New("setting absent")
	errFull          = errors.New("settings full")
	errInvalidValue  = errors.New("invalid value")
	errExists        = errors.New("account exists")
	errPolicy        = errors.New("password policy")
	errInvalidInput  = errors.New("invalid input")
)

type metricRecorder struct {
	mu     sync.Mutex
	counts map[int]int
}

func (r *metricRecorder) inc(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = make(map[int]int)
	}
	r.counts[id]++
}

func (r *metricRecorder) get(id int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[id]
}

type fakeSessions struct {
	mu       sync.Mutex
	byHash   map[string]*session.Session
	lastMax  int
	failWith error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{byHash: make(map[string]*session.Session)}
}

func (f *fakeSessions) create(_ context.Context, s *session.Session, _ time.Duration, max int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.lastMax = max
	f.byHash[s.TokenHash] = s
	return nil, nil
}

func (f *fakeSessions) getByToken(_ context.Context, hash string) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	s, ok := f.byHash[hash]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeSessions) deleteByToken(_ context.Context, hash string) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byHash[hash]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	delete(f.byHash, hash)
	return s, nil
}

func testUser(t *testing.T, pw string) *credential.User {
	t.Helper()
	h, err := password.NewArgon2(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	hash, err := h.Hash(pw)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	return &credential.User{ID: "u1", Email: "a@b.co", PasswordHash: hash}
}

func loginDeps(t *testing.T, user *credential.User, sessions *fakeSessions, m *metricRecorder) LoginDeps {
	t.Helper()
	h, err := password.NewArgon2(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	var n int
	return LoginDeps{
		DefaultMaxConnections: 20,
		SessionLifetime:       func() time.Duration { return time.Hour },
		FindUserByEmail: func(_ context.Context, email string) (*credential.User, error) {
			if user == nil || email != user.Email {
				return nil, credential.ErrNotFound
			}
			return user, nil
		},
		VerifyPassword: h.Verify,
		IssueToken: func(uid string) (string, *jwt.Claims, error) {
			n++
			tok := "tok-" + uid + "-" + string(rune('a'+n))
			return tok, &jwt.Claims{
				UID: uid,
				RegisteredClaims: gjwt.RegisteredClaims{
					ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Hour)),
				},
			}, nil
		},
		HashToken:     func(s string) string { return "h:" + s },
		NewSessionID:  func() (string, error) { return "sid", nil },
		CreateSession: sessions.create,
		MetricInc:     m.inc,
		Metrics:       LoginMetrics{LoginSuccess: 1, LoginFailure: 2, SessionCreated: 3, SessionEvicted: 4},
		Errors:        LoginErrors{EngineNotReady: errNotReady, InvalidCredentials: errBadCreds},
	}
}

func TestRunLoginSuccess(t *testing.T) {
	user := testUser(t, "hunter22")
	sessions := newFakeSessions()
	m := &metricRecorder{}

	res, err := RunLogin(context.Background(), "a@b.co", "hunter22", loginDeps(t, user, sessions, m))
	if err != nil {
		t.Fatalf("RunLogin failed: %v", err)
	}
	if res.Token == "" || res.UserID != "u1" || res.ExpiresAt.IsZero() {
		t.Fatalf("unexpected result: %+v", res)
	}
	if _, ok := sessions.byHash["h:"+res.Token]; !ok {
		t.Fatal("session not stored under token hash")
	}
	if sessions.lastMax != 20 {
		t.Fatalf("expected default max 20, got %d", sessions.lastMax)
	}
	if m.get(1) != 1 || m.get(3) != 1 {
		t.Fatalf("unexpected metrics: %+v", m.counts)
	}
}

func TestRunLoginUsesUserLimit(t *testing.T) {
	user := testUser(t, "hunter22")
	user.MaxConnections = 2
	sessions := newFakeSessions()

	if _, err := RunLogin(context.Background(), "a@b.co", "hunter22", loginDeps(t, user, sessions, &metricRecorder{})); err != nil {
		t.Fatalf("RunLogin failed: %v", err)
	}
	if sessions.lastMax != 2 {
		t.Fatalf("expected max 2, got %d", sessions.lastMax)
	}
}

func TestRunLoginFailuresAreIndistinguishable(t *testing.T) {
	user := testUser(t, "hunter22")
	m := &metricRecorder{}
	deps := loginDeps(t, user, newFakeSessions(), m)

	cases := []struct{ email, pw string }{
		{"a@b.co", "wrongpw"},
		{"nobody@b.co", "hunter22"},
		{"", "hunter22"},
		{"a@b.co", ""},
	}
	for _, tc := range cases {
		_, err := RunLogin(context.Background(), tc.email, tc.pw, deps)
		if !errors.Is(err, errBadCreds) {
			t.Fatalf("%q/%q: expected invalid credentials, got %v", tc.email, tc.pw, err)
		}
	}
	if m.get(2) != len(cases) {
		t.Fatalf("expected %d failures, got %d", len(cases), m.get(2))
	}
}

func TestRunLoginStoreErrorPassesThrough(t *testing.T) {
	boom := errors.New("db down")
	deps := loginDeps(t, nil, newFakeSessions(), &metricRecorder{})
	deps.FindUserByEmail = func(context.Context, string) (*credential.User, error) { return nil, boom }

	if _, err := RunLogin(context.Background(), "a@b.co", "hunter22", deps); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestRunLoginNotReady(t *testing.T) {
	_, err := RunLogin(context.Background(), "a@b.co", "x", LoginDeps{Errors: LoginErrors{EngineNotReady: errNotReady}})
	if !errors.Is(err, errNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
}

func validateDeps(sessions *fakeSessions) ValidateDeps {
	return ValidateDeps{
		VerifyToken: func(tok string) (*jwt.Claims, error) {
			if tok == "bad" {
				return nil, jwt.ErrInvalidToken
			}
			return &jwt.Claims{UID: "u1"}, nil
		},
		HashToken:         func(s string) string { return "h:" + s },
		GetSessionByToken: sessions.getByToken,
	}
}

func TestRunValidateClassification(t *testing.T) {
	sessions := newFakeSessions()
	now := time.Now()
	sessions.byHash["h:good"] = &session.Session{SessionID: "s1", UserID: "u1", ExpiresAt: now.Add(time.Hour).UnixMilli()}
	sessions.byHash["h:other"] = &session.Session{SessionID: "s2", UserID: "u2", ExpiresAt: now.Add(time.Hour).UnixMilli()}
	sessions.byHash["h:stale"] = &session.Session{SessionID: "s3", UserID: "u1", ExpiresAt: now.Add(-time.Second).UnixMilli()}
	deps := validateDeps(sessions)

	cases := map[string]ValidateFailureKind{
		"":        ValidateFailureMissingToken,
		"bad":     ValidateFailureTokenInvalid,
		"unknown": ValidateFailureSessionRevoked,
		"other":   ValidateFailureSessionRevoked,
		"stale":   ValidateFailureSessionRevoked,
		"good":    ValidateFailureNone,
	}
	for tok, want := range cases {
		res := RunValidate(context.Background(), tok, deps)
		if res.Failure != want {
			t.Fatalf("token %q: expected failure %d, got %d", tok, want, res.Failure)
		}
	}

	res := RunValidate(context.Background(), "good", deps)
	if res.Session == nil || res.Session.SessionID != "s1" || res.Claims.UID != "u1" {
		t.Fatalf("unexpected success payload: %+v", res)
	}
}

func TestRunValidateStoreFailure(t *testing.T) {
	sessions := newFakeSessions()
	sessions.failWith = session.ErrRedisUnavailable

	res := RunValidate(context.Background(), "good", validateDeps(sessions))
	if res.Failure != ValidateFailureStore || !errors.Is(res.Err, session.ErrRedisUnavailable) {
		t.Fatalf("expected store failure, got %+v", res)
	}
}

func TestRunLogoutThenValidateFails(t *testing.T) {
	sessions := newFakeSessions()
	sessions.byHash["h:good"] = &session.Session{SessionID: "s1", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour).UnixMilli()}
	m := &metricRecorder{}
	deps := LogoutDeps{
		HashToken:            func(s string) string { return "h:" + s },
		DeleteSessionByToken: sessions.deleteByToken,
		MetricInc:            m.inc,
		Metrics:              LogoutMetrics{Logout: 7},
		Errors:               LogoutErrors{EngineNotReady: errNotReady, SessionNotFound: errNoSession},
	}

	sess, err := RunLogout(context.Background(), "good", deps)
	if err != nil || sess.SessionID != "s1" {
		t.Fatalf("RunLogout failed: %v %+v", err, sess)
	}
	if _, err := RunLogout(context.Background(), "good", deps); !errors.Is(err, errNoSession) {
		t.Fatalf("expected session not found on second logout, got %v", err)
	}
	if res := RunValidate(context.Background(), "good", validateDeps(sessions)); res.Failure != ValidateFailureSessionRevoked {
		t.Fatalf("expected revoked after logout, got %d", res.Failure)
	}
	if m.get(7) != 1 {
		t.Fatalf("expected one logout metric, got %d", m.get(7))
	}
}

type fakeSettingsStore struct {
	mu    sync.Mutex
	users map[string]settings.Map
}

func (f *fakeSettingsStore) find(_ context.Context, id string) (*credential.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.users[id]
	if !ok {
		return nil, credential.ErrNotFound
	}
	return &credential.User{ID: id, Settings: m.Clone()}, nil
}

func (f *fakeSettingsStore) put(_ context.Context, id string, idx settings.Index, v settings.Value) (settings.Map, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.users[id]
	if !ok {
		return nil, credential.ErrNotFound
	}
	if err := m.Put(idx, v); err != nil {
		return nil, err
	}
	return m.Clone(), nil
}

func (f *fakeSettingsStore) del(_ context.Context, id string, idx settings.Index) (settings.Map, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.users[id]
	if !ok {
		return nil, credential.ErrNotFound
	}
	m.Delete(idx)
	return m.Clone(), nil
}

func settingsDeps(store *fakeSettingsStore, m *metricRecorder) SettingsDeps {
	return SettingsDeps{
		FindUserByID:  store.find,
		PutSetting:    store.put,
		DeleteSetting: store.del,
		MetricInc:     m.inc,
		Metrics:       SettingsMetrics{SettingsWrite: 1, SettingsFullRejected: 2, SettingsDelete: 3},
		Errors: SettingsErrors{
			EngineNotReady:  errNotReady,
			UserNotFound:    errUserMissing,
			SettingNotFound: errSettingAbsent,
			SettingsFull:    errFull,
			InvalidValue:    errInvalidValue,
		},
	}
}

func TestSettingsFlowCapacity(t *testing.T) {
	store := &fakeSettingsStore{users: map[string]settings.Map{"u1": {}}}
	m := &metricRecorder{}
	deps := settingsDeps(store, m)
	ctx := context.Background()
	v := settings.MustParse(`{"a":1}`)

	for i := 0; i < settings.MaxEntries; i++ {
		if _, err := RunSetSetting(ctx, "u1", settings.Index(strconv.Itoa(i)), v, deps); err != nil {
			t.Fatalf("set %d failed: %v", i, err)
		}
	}
	if _, err := RunSetSetting(ctx, "u1", settings.Index("99"), v, deps); !errors.Is(err, errFull) {
		t.Fatalf("expected settings full, got %v", err)
	}
	got, err := RunSetSetting(ctx, "u1", settings.Index("0"), settings.MustParse(`[1,2]`), deps)
	if err != nil {
		t.Fatalf("overwrite at capacity failed: %v", err)
	}
	if v0, _ := got.Get(settings.Index("0")); v0.Kind() != settings.KindList {
		t.Fatalf("overwrite not applied: %v", v0.Kind())
	}
	if m.get(2) != 1 || m.get(1) != settings.MaxEntries+1 {
		t.Fatalf("unexpected metrics: %+v", m.counts)
	}
}

func TestSettingsFlowErrors(t *testing.T) {
	store := &fakeSettingsStore{users: map[string]settings.Map{"u1": {}}}
	deps := settingsDeps(store, &metricRecorder{})
	ctx := context.Background()

	if _, err := RunSetSetting(ctx, "u1", "k", settings.Value{}, deps); !errors.Is(err, errInvalidValue) {
		t.Fatalf("expected invalid value, got %v", err)
	}
	if _, err := RunGetSettings(ctx, "ghost", deps); !errors.Is(err, errUserMissing) {
		t.Fatalf("expected user missing, got %v", err)
	}
	if _, err := RunGetSetting(ctx, "u1", "k", deps); !errors.Is(err, errSettingAbsent) {
		t.Fatalf("expected setting absent, got %v", err)
	}
	m, err := RunDeleteSetting(ctx, "u1", "k", deps)
	if err != nil || len(m) != 0 {
		t.Fatalf("idempotent delete failed: %v %v", err, m)
	}
}

func TestRunCreateAccountAutoLogin(t *testing.T) {
	var created *credential.User
	m := &metricRecorder{}
	deps := AccountDeps{
		AutoLogin:    true,
		NewUserID:    func() (string, error) { return "u-new", nil },
		HashPassword: func(pw string) (string, error) { return "hash:" + pw, nil },
		CreateUser: func(_ context.Context, u *credential.User) error {
			if created != nil && created.Email == u.Email {
				return credential.ErrDuplicateEmail
			}
			created = u
			return nil
		},
		IssueSession: func(_ context.Context, u *credential.User) (*LoginResult, error) {
			return &LoginResult{Token: "tok", UserID: u.ID}, nil
		},
		MetricInc: m.inc,
		Metrics:   AccountMetrics{AccountCreationSuccess: 1, AccountCreationDuplicate: 2},
		Errors: AccountErrors{
			EngineNotReady:         errNotReady,
			AccountCreationInvalid: errInvalidInput,
			PasswordPolicy:         errPolicy,
			AccountExists:          errExists,
		},
	}
	req := AccountCreateRequest{Email: "a@b.co", Password: "hunter22", FullName: "Ann"}

	res, err := RunCreateAccount(context.Background(), req, deps)
	if err != nil {
		t.Fatalf("RunCreateAccount failed: %v", err)
	}
	if res.User.ID != "u-new" || res.Session == nil || res.Session.Token != "tok" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.User.MaxConnections != credential.DefaultMaxConnections || res.User.Settings == nil {
		t.Fatalf("unexpected defaults: %+v", res.User)
	}
	if created.PasswordHash != "hash:hunter22" {
		t.Fatalf("password not hashed: %q", created.PasswordHash)
	}

	if _, err := RunCreateAccount(context.Background(), req, deps); !errors.Is(err, errExists) {
		t.Fatalf("expected account exists, got %v", err)
	}
	if m.get(1) != 1 || m.get(2) != 1 {
		t.Fatalf("unexpected metrics: %+v", m.counts)
	}
}

func TestRunCreateAccountPasswordPolicy(t *testing.T) {
	deps := AccountDeps{
		NewUserID: func() (string, error) { return "u", nil },
		HashPassword: func(string) (string, error) {
			return "", password.ErrPasswordLength
		},
		CreateUser: func(context.Context, *credential.User) error { return nil },
		Errors:     AccountErrors{PasswordPolicy: errPolicy, AccountCreationInvalid: errInvalidInput},
	}
	_, err := RunCreateAccount(context.Background(), AccountCreateRequest{Email: "a@b.co", Password: "abc", FullName: "Ann"}, deps)
	if !errors.Is(err, errPolicy) {
		t.Fatalf("expected password policy, got %v", err)
	}
	_, err = RunCreateAccount(context.Background(), AccountCreateRequest{Password: "abcdef", FullName: "Ann"}, deps)
	if !errors.Is(err, errInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
