package errors

import (
	"errors"
	"fmt"
)

// Protocol errors. Components convert transport failures into one of these at their boundary.
var (
	// Callback errors
	ErrInvalidState = errors.New("invalid state")
	ErrMissingCode  = errors.New("missing authorization code")

	// Platform errors
	ErrTokenExchange       = errors.New("token exchange failed")
	ErrVerification        = errors.New("platform verification failed")
	ErrPlatformUnreachable = errors.New("platform unreachable")

	// Session errors
	ErrNotConnected = errors.New("session not connected")
	ErrRevoked      = errors.New("session revoked")

	ErrInternal = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Sanitize maps err to a short message that is safe to put in a redirect URL.
// Unknown errors become a generic message so transport details never reach the browser.
func Sanitize(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidState):
		return "Invalid state"
	case errors.Is(err, ErrMissingCode):
		return "Missing authorization code"
	case errors.Is(err, ErrPlatformUnreachable):
		return "Platform unreachable"
	case errors.Is(err, ErrTokenExchange):
		return "Authentication failed"
	case errors.Is(err, ErrVerification):
		return "Platform verification failed"
	case errors.Is(err, ErrRevoked):
		return "Session revoked"
	case errors.Is(err, ErrNotConnected):
		return "Not connected"
	default:
		return "Authentication failed"
	}
}
