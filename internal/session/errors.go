package session

import "errors"

var (
	// ErrNotFound is returned when a session or message does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when creating a session with a taken ID.
	ErrAlreadyExists = errors.New("already exists")
	// ErrLocked is returned when another live process owns the session.
	ErrLocked = errors.New("session locked by another process")
)
