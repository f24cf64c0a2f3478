package session

import "errors"

var (
	ErrMissingToken   = errors.New("session: missing token")
	ErrInvalidToken   = errors.New("session: invalid token")
	ErrMissingSubject = errors.New("session: token has no subject")
	ErrMissingSecret  = errors.New("session: signing secret is required")
)
