package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/MrEthical07/sessiongate"
	"github.com/sirupsen/logrus"
)

const internalErrorMessage = "internal server error"

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// StatusFor maps an engine error onto its HTTP status.
func StatusFor(err error) int {
	switch sessiongate.KindOf(err) {
	case sessiongate.KindNone:
		return http.StatusOK
	case sessiongate.KindValidation, sessiongate.KindSettingsFull, sessiongate.KindConflict:
		return http.StatusBadRequest
	case sessiongate.KindInvalidCredentials, sessiongate.KindUnauthorized:
		return http.StatusUnauthorized
	case sessiongate.KindForbidden:
		return http.StatusForbidden
	case sessiongate.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(err error) string {
	switch sessiongate.KindOf(err) {
	case sessiongate.KindInvalidCredentials:
		return "invalid email or password"
	case sessiongate.KindSettingsFull:
		return "cannot add more settings, the maximum is 5"
	case sessiongate.KindConflict:
		return "email is already registered"
	case sessiongate.KindStoreFailure:
		return internalErrorMessage
	default:
		return err.Error()
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).WithError(err).Error("request failed")
	}
	writeJSON(w, status, errorResponse{Success: false, Message: messageFor(err)})
}
