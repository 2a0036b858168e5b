package services

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUserNotFound      = errors.New("user not found")
	ErrChallengeNotFound = errors.New("otp challenge not found")
	ErrChallengeExpired  = errors.New("otp challenge expired")
	ErrCodeMismatch      = errors.New("otp code mismatch")
	ErrTooManyAttempts   = errors.New("too many attempts")
	ErrInvalidToken      = errors.New("invalid session token")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrForbidden         = errors.New("forbidden")
	ErrUpstream          = errors.New("upstream failure")
	ErrStorageDisabled   = errors.New("object storage not configured")
	ErrPostNotFound      = errors.New("post not found")
)
