package httpapi

import (
	"net/http"
	"time"

	"github.com/MrEthical07/sessiongate"
	"github.com/MrEthical07/sessiongate/middleware"
)

type registerResponse struct {
	*sessiongate.Profile
	Token string `json:"token,omitempty"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type settingsUser struct {
	ID       string `json:"id"`
	Settings any    `json:"settings"`
}

type settingsResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	User    settingsUser `json:"user"`
}

type sessionsResponse struct {
	Success        bool                      `json:"success"`
	Connections    int                       `json:"connections"`
	MaxConnections int                       `json:"maxConnections"`
	Sessions       []sessiongate.SessionInfo `json:"sessions"`
}

// register handles POST /auth/register
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, s.maxBodyBytes, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.engine.Register(r.Context(), sessiongate.RegisterRequest{
		Email:     req.Email,
		Password:  req.Password,
		FullName:  req.FullName,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, registerResponse{Profile: res.Profile, Token: res.Token})
}

// login handles POST /auth/login
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, s.maxBodyBytes, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: res.Token, ExpiresAt: res.ExpiresAt})
}

// logout handles GET /auth/logout
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.BearerToken(r.Header.Get("Authorization"))
	if err := s.engine.Logout(r.Context(), token); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "logged out"})
}

// logoutAll handles POST /auth/logout-all
func (s *Server) logoutAll(w http.ResponseWriter, r *http.Request) {
	n, err := s.engine.LogoutAll(r.Context(), sessiongate.UserIDFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "removed": n})
}

// me handles GET /auth/me
func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	profile, err := s.engine.Me(r.Context(), sessiongate.UserIDFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// sessions handles GET /auth/sessions
func (s *Server) sessions(w http.ResponseWriter, r *http.Request) {
	uid := sessiongate.UserIDFromContext(r.Context())
	report, err := s.engine.SessionReport(r.Context(), uid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.engine.ListSessions(r.Context(), uid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionsResponse{
		Success:        true,
		Connections:    report.Connections,
		MaxConnections: report.MaxConnections,
		Sessions:       list,
	})
}

// saveSettings handles POST /save-settings
func (s *Server) saveSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeJSON(w, r, s.maxBodyBytes, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	idx, err := req.index()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	v, err := req.value()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	uid := sessiongate.UserIDFromContext(r.Context())
	m, err := s.engine.SetSetting(r.Context(), uid, idx, v)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, settingsResponse{
		Success: true,
		Message: "setting saved",
		User:    settingsUser{ID: uid, Settings: m},
	})
}

// getSettings handles POST /get-settings. Without an index the whole map is
// returned.
func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeJSON(w, r, s.maxBodyBytes, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}

	uid := sessiongate.UserIDFromContext(r.Context())
	if !req.hasIndex() {
		m, err := s.engine.GetSettings(r.Context(), uid)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, settingsResponse{
			Success: true,
			Message: "settings loaded",
			User:    settingsUser{ID: uid, Settings: m},
		})
		return
	}

	idx, err := req.index()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	v, err := s.engine.GetSetting(r.Context(), uid, idx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsResponse{
		Success: true,
		Message: "setting loaded",
		User:    settingsUser{ID: uid, Settings: v},
	})
}

// deleteSettings handles POST /delete-settings
func (s *Server) deleteSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeJSON(w, r, s.maxBodyBytes, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	idx, err := req.index()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	uid := sessiongate.UserIDFromContext(r.Context())
	m, err := s.engine.DeleteSetting(r.Context(), uid, idx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, settingsResponse{
		Success: true,
		Message: "setting deleted",
		User:    settingsUser{ID: uid, Settings: m},
	})
}

// healthz handles GET /healthz
func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	h := s.engine.Health(r.Context())
	status, code := "ok", http.StatusOK
	if !h.Healthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":         status,
		"redisAvailable": h.RedisAvailable,
		"userStoreOk":    h.UserStoreOK,
	})
}
