package storage

import "errors"

// Common storage errors
var (
	// ErrSessionNotFound indicates that session was not found in storage
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionClosed indicates a mutating operation on an ended session
	ErrSessionClosed = errors.New("session is closed")

	// ErrPresenceNotFound indicates that presence record was not found
	ErrPresenceNotFound = errors.New("presence record not found")

	// ErrActivityNotFound indicates that activity entry was not found
	ErrActivityNotFound = errors.New("activity not found")
)
