package sessiongate

import (
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/MrEthical07/sessiongate/credential"
)

const (
	minPasswordChars = 5
	minFullNameChars = 2
	maxFullNameChars = 128
	maxEmailBytes    = 254
	maxAvatarURLLen  = 2048
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func normalizeRegisterRequest(req RegisterRequest) (RegisterRequest, error) {
	req.Email = credential.NormalizeEmail(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)
	req.AvatarURL = strings.TrimSpace(req.AvatarURL)

	if err := validateEmail(req.Email); err != nil {
		return req, err
	}
	if utf8.RuneCountInString(req.Password) < minPasswordChars {
		return req, validationError("password must be at least %d characters", minPasswordChars)
	}
	n := utf8.RuneCountInString(req.FullName)
	if n < minFullNameChars {
		return req, validationError("fullName must be at least %d characters", minFullNameChars)
	}
	if n > maxFullNameChars {
		return req, validationError("fullName must be at most %d characters", maxFullNameChars)
	}
	if req.AvatarURL != "" {
		if err := validateAvatarURL(req.AvatarURL); err != nil {
			return req, err
		}
	}
	return req, nil
}

func validateEmail(email string) error {
	if email == "" {
		return validationError("email is required")
	}
	if len(email) > maxEmailBytes {
		return validationError("email is too long")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return validationError("email is invalid")
	}
	at := strings.LastIndexByte(email, '@')
	if at < 1 || !strings.Contains(email[at+1:], ".") {
		return validationError("email is invalid")
	}
	return nil
}

func validateAvatarURL(raw string) error {
	if len(raw) > maxAvatarURLLen {
		return validationError("avatarUrl is too long")
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return validationError("avatarUrl must be an absolute URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return validationError("avatarUrl must use http or https")
	}
	return nil
}

func validateLogin(email, password string) (string, error) {
	email = credential.NormalizeEmail(email)
	if email == "" {
		return "", validationError("email is required")
	}
	if password == "" {
		return "", validationError("password is required")
	}
	return email, nil
}
