package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrEthical07/sessiongate"
	"github.com/MrEthical07/sessiongate/credential/sqlite"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, maxConnections int) (http.Handler, *miniredis.Miniredis) {
	t.Helper()
	engine, mr := newTestEngine(t, maxConnections)
	return NewServer(engine, Options{}).Router(), mr
}

func newTestEngine(t *testing.T, maxConnections int) (*sessiongate.Engine, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)

	cfg := sessiongate.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Session.DefaultMaxConnections = maxConnections

	engine, err := sessiongate.New().WithConfig(cfg).WithRedis(rdb).WithUserStore(store).Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	return engine, mr
}

func do(t *testing.T, h http.Handler, method, path, token, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func register(t *testing.T, h http.Handler, email string) string {
	t.Helper()
	rec, body := do(t, h, http.MethodPost, "/auth/register", "",
		`{"email":"`+email+`","password":"secret","fullName":"Alice Example"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func login(t *testing.T, h http.Handler, email string) string {
	t.Helper()
	rec, body := do(t, h, http.MethodPost, "/auth/login", "",
		`{"email":"`+email+`","password":"secret"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestRegisterReturnsProfileAndToken(t *testing.T) {
	h, _ := newTestServer(t, 20)

	rec, body := do(t, h, http.MethodPost, "/auth/register", "",
		`{"email":"Alice@X.com","password":"secret","fullName":"Alice Example"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "alice@x.com", body["email"])
	assert.Equal(t, "Alice Example", body["fullName"])
	assert.NotEmpty(t, body["id"])
	assert.NotEmpty(t, body["token"])
	assert.Equal(t, map[string]any{}, body["settings"])
}

func TestRegisterRejections(t *testing.T) {
	h, _ := newTestServer(t, 20)
	register(t, h, "alice@x.com")

	tests := []struct {
		name string
		body string
	}{
		{name: "duplicate", body: `{"email":"alice@x.com","password":"secret","fullName":"Alice Example"}`},
		{name: "short password", body: `{"email":"bob@x.com","password":"abc","fullName":"Bob Example"}`},
		{name: "bad email", body: `{"email":"bob","password":"secret","fullName":"Bob Example"}`},
		{name: "malformed json", body: `{"email":`},
		{name: "empty body", body: ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, h, http.MethodPost, "/auth/register", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	h, _ := newTestServer(t, 20)
	register(t, h, "alice@x.com")

	wrong, wrongBody := do(t, h, http.MethodPost, "/auth/login", "", `{"email":"alice@x.com","password":"nope!"}`)
	unknown, unknownBody := do(t, h, http.MethodPost, "/auth/login", "", `{"email":"nobody@x.com","password":"secret"}`)

	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, wrongBody, unknownBody)

	rec, _ := do(t, h, http.MethodPost, "/auth/login", "", `{"email":"","password":"secret"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConnectionCapEvictsOldestToken(t *testing.T) {
	h, _ := newTestServer(t, 1)
	register(t, h, "alice@x.com")

	first := login(t, h, "alice@x.com")
	second := login(t, h, "alice@x.com")
	require.NotEqual(t, first, second)

	rec, _ := do(t, h, http.MethodGet, "/auth/me", first, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, body := do(t, h, http.MethodGet, "/auth/me", second, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1, body["connections"])
	assert.EqualValues(t, 1, body["maxConnections"])
}

func TestGateRejections(t *testing.T) {
	h, _ := newTestServer(t, 20)

	rec, _ := do(t, h, http.MethodGet, "/auth/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/auth/me", "not-a-jwt", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/save-settings", "", `{"index":0,"updatedSetting":{"a":1}}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	h, _ := newTestServer(t, 20)
	token := register(t, h, "alice@x.com")
	other := login(t, h, "alice@x.com")

	rec, body := do(t, h, http.MethodGet, "/auth/logout", token, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["success"])

	rec, _ = do(t, h, http.MethodGet, "/auth/me", token, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, body = do(t, h, http.MethodGet, "/auth/sessions", other, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["connections"])

	rec, body = do(t, h, http.MethodPost, "/auth/logout-all", other, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["removed"])

	rec, _ = do(t, h, http.MethodGet, "/auth/me", other, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSettingsRoutes(t *testing.T) {
	h, _ := newTestServer(t, 20)
	token := register(t, h, "alice@x.com")

	for i := 0; i < 5; i++ {
		rec, body := do(t, h, http.MethodPost, "/save-settings", token,
			`{"index":`+string(rune('0'+i))+`,"updatedSetting":{"theme":"dark"}}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		user := body["user"].(map[string]any)
		assert.Len(t, user["settings"], i+1)
	}

	rec, body := do(t, h, http.MethodPost, "/save-settings", token, `{"index":9,"updatedSetting":["x"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["message"], "maximum")

	rec, _ = do(t, h, http.MethodPost, "/save-settings", token, `{"index":2,"updatedSetting":["x"]}`)
	require.Equal(t, http.StatusOK, rec.Code, "overwrite of an existing index is allowed when full")

	rec, body = do(t, h, http.MethodPost, "/get-settings", token, `{"index":"2"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []any{"x"}, body["user"].(map[string]any)["settings"])

	rec, _ = do(t, h, http.MethodPost, "/delete-settings", token, `{"index":2}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/get-settings", token, `{"index":2}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = do(t, h, http.MethodPost, "/get-settings", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["user"].(map[string]any)["settings"], 4)

	rec, _ = do(t, h, http.MethodPost, "/save-settings", token, `{"index":-1,"updatedSetting":{"a":1}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/save-settings", token, `{"index":1,"updatedSetting":"scalar"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRedisFailureIsInternalError(t *testing.T) {
	h, mr := newTestServer(t, 20)
	token := register(t, h, "alice@x.com")

	mr.SetError("connection refused")
	defer mr.SetError("")

	rec, body := do(t, h, http.MethodGet, "/auth/me", token, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, internalErrorMessage, body["message"])
	assert.False(t, strings.Contains(rec.Body.String(), "connection refused"))

	rec, body = do(t, h, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", body["status"])
}

func TestUnknownRouteAndMethod(t *testing.T) {
	h, _ := newTestServer(t, 20)

	rec, _ := do(t, h, http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/auth/login", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func preflight(t *testing.T, h http.Handler, path, origin, method string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodOptions, path, nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", method)
	req.Header.Set("Access-Control-Request-Headers", "authorization, content-type")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCORS(t *testing.T) {
	const origin = "https://app.example.com"
	engine, _ := newTestEngine(t, 20)
	h := NewServer(engine, Options{CORSOrigins: []string{origin}}).Router()

	for _, tc := range []struct {
		path   string
		method string
	}{
		{"/auth/login", http.MethodPost},
		{"/auth/register", http.MethodPost},
		{"/auth/me", http.MethodGet},
		{"/save-settings", http.MethodPost},
	} {
		t.Run("preflight "+tc.path, func(t *testing.T) {
			rec := preflight(t, h, tc.path, origin, tc.method)
			assert.Equal(t, http.StatusNoContent, rec.Code)
			assert.Equal(t, origin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), tc.method)
			assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
			assert.Empty(t, rec.Body.String())
		})
	}

	token := register(t, h, "alice@example.com")
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, origin, rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Origin", origin)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, origin, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = preflight(t, h, "/auth/login", "https://evil.example.com", http.MethodPost)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSWildcard(t *testing.T) {
	engine, _ := newTestEngine(t, 20)
	h := NewServer(engine, Options{CORSOrigins: []string{"*"}}).Router()

	rec := preflight(t, h, "/auth/logout", "http://localhost:3000", http.MethodGet)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	rec, _ = do(t, h, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"), "no Origin header, no CORS headers")
}

func TestMetricsPath(t *testing.T) {
	engine, _ := newTestEngine(t, 20)
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("sessiongate_login_success_total 0\n"))
	})

	h := NewServer(engine, Options{MetricsHandler: metrics, MetricsPath: "/internal/metrics"}).Router()
	req := httptest.NewRequest(http.MethodGet, "/internal/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sessiongate_login_success_total")

	rec, _ = do(t, h, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	h = NewServer(engine, Options{MetricsHandler: metrics}).Router()
	req = httptest.NewRequest(http.MethodGet, DefaultMetricsPath, nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusOK, StatusFor(nil))
	assert.Equal(t, http.StatusBadRequest, StatusFor(sessiongate.ErrSettingsFull))
	assert.Equal(t, http.StatusUnauthorized, StatusFor(sessiongate.ErrInvalidCredentials))
	assert.Equal(t, http.StatusForbidden, StatusFor(sessiongate.ErrSessionRevoked))
	assert.Equal(t, http.StatusNotFound, StatusFor(sessiongate.ErrSettingNotFound))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("boom")))
}
