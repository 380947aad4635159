package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/sessiongate/jwt"
	"github.com/MrEthical07/sessiongate/session"
)

// ValidateFailureKind classifies validation failures for root-level mapping.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	// ValidateFailureMissingToken means no credentials were supplied.
	ValidateFailureMissingToken
	// ValidateFailureTokenInvalid means the signature, algorithm or expiry check failed.
	ValidateFailureTokenInvalid
	// ValidateFailureSessionRevoked means the token is well formed but no live
	// session is bound to it.
	ValidateFailureSessionRevoked
	// ValidateFailureStore means the session store could not be queried.
	ValidateFailureStore
)

// ValidateResult returns either claims/session success payload or classified failure.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	Claims  *jwt.Claims
	Session *session.Session
}

// ValidateDeps captures token and session validation dependencies.
type ValidateDeps struct {
	VerifyToken       func(string) (*jwt.Claims, error)
	HashToken         func(string) string
	GetSessionByToken func(context.Context, string) (*session.Session, error)
	Now               func() time.Time
}

// RunValidate checks the token cryptographically, then requires a live session
// bound to it. Session state wins over token validity.
func RunValidate(ctx context.Context, tokenStr string, deps ValidateDeps) ValidateResult {
	if tokenStr == "" {
		return ValidateResult{Failure: ValidateFailureMissingToken}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	claims, err := deps.VerifyToken(tokenStr)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureTokenInvalid, Err: err}
	}

	sess, err := deps.GetSessionByToken(ctx, deps.HashToken(tokenStr))
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return ValidateResult{Failure: ValidateFailureSessionRevoked, Err: err}
		}
		return ValidateResult{Failure: ValidateFailureStore, Err: err}
	}
	if sess.UserID != claims.UID || sess.Expired(deps.Now()) {
		return ValidateResult{Failure: ValidateFailureSessionRevoked}
	}

	return ValidateResult{
		Claims:  claims,
		Session: sess,
	}
}
