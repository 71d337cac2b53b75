package auth

import "errors"

var (
	ErrInvalidInput      = errors.New("auth: invalid input")
	ErrUserNotFound      = errors.New("auth: user not found")
	ErrDuplicateEmail    = errors.New("auth: email already registered")
	ErrBadCredentials    = errors.New("auth: incorrect password")
	ErrMissingToken      = errors.New("auth: missing bearer token")
	ErrInvalidToken      = errors.New("auth: invalid token")
	ErrTokenStale        = errors.New("auth: password changed after token was issued")
	ErrResetTokenInvalid = errors.New("auth: reset token is invalid or expired")
	ErrForbidden         = errors.New("auth: insufficient role")
	ErrDelivery          = errors.New("auth: reset email delivery failed")
)
