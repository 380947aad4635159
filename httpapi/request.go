package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/MrEthical07/sessiongate"
	"github.com/MrEthical07/sessiongate/settings"
)

// DefaultMaxBodyBytes bounds every request body.
const DefaultMaxBodyBytes = 1 << 20

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FullName  string `json:"fullName"`
	AvatarURL string `json:"avatarUrl"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type settingsRequest struct {
	Index          json.RawMessage `json:"index"`
	UpdatedSetting json.RawMessage `json:"updatedSetting"`
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", sessiongate.ErrValidation, fmt.Sprintf(format, args...))
}

// decodeJSON reads at most limit bytes into dest. An empty body leaves dest
// untouched when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dest any, allowEmpty bool) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return badRequest("request body exceeds %d bytes", tooLarge.Limit)
		}
		return badRequest("unreadable request body")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		if allowEmpty {
			return nil
		}
		return badRequest("request body is required")
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return badRequest("invalid JSON")
	}
	return nil
}

func (req settingsRequest) index() (settings.Index, error) {
	idx, err := settings.ParseIndex(req.Index)
	if err != nil {
		return "", fmt.Errorf("%w: %w", sessiongate.ErrValidation, err)
	}
	return idx, nil
}

func (req settingsRequest) hasIndex() bool {
	trimmed := bytes.TrimSpace(req.Index)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func (req settingsRequest) value() (settings.Value, error) {
	if len(bytes.TrimSpace(req.UpdatedSetting)) == 0 {
		return settings.Value{}, badRequest("updatedSetting is required")
	}
	v, err := settings.Parse(req.UpdatedSetting)
	if err != nil {
		return settings.Value{}, fmt.Errorf("%w: %w", sessiongate.ErrValidation, err)
	}
	return v, nil
}
