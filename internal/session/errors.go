package session

import "errors"

var (
	// ErrSessionClosed is returned by Submit after the session stopped.
	ErrSessionClosed = errors.New("session closed")

	// ErrSessionNotFound is returned by Manager lookups for unknown ids.
	ErrSessionNotFound = errors.New("session not found")
)
