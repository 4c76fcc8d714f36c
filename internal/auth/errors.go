package auth

import "errors"

var (
	ErrNotFound     = errors.New("auth: not found")
	ErrConflict     = errors.New("auth: already exists")
	ErrInvalidInput = errors.New("auth: invalid input")
	ErrUnauthorized = errors.New("auth: unauthorized")
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrTokenExpired = errors.New("auth: token expired")
)

// AccessError reports a failed level-of-access check. It carries the required
// and actual levels so callers can surface diagnostics without re-reading the
// user.
type AccessError struct {
	Actual         int
	GreaterOrEqual int
	OneOf          []int
}

func (e *AccessError) Error() string {
	if len(e.OneOf) > 0 {
		return "auth: level of access not in required set"
	}
	return "auth: level of access lower than required"
}

func (e *AccessError) Unwrap() error { return ErrUnauthorized }
