package session

import "errors"

var (
	// ErrLoginExhausted is returned by Initialize when every login attempt failed.
	ErrLoginExhausted = errors.New("login attempts exhausted")
	// ErrInvalidCredentials marks a login rejected by the platform.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSessionProbeFailed marks a token that did not pass the verify probe.
	ErrSessionProbeFailed = errors.New("session probe failed")
	ErrClosed             = errors.New("session closed")
)
