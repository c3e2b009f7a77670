package domain

import "errors"

var (
	// ErrNotConnected is returned when a session key is absent from the
	// registry. Workers record it as an item failure, never a crash.
	ErrNotConnected = errors.New("session not connected")

	// ErrAuthorizationFailed means the remote side rejected the session's
	// credentials during connect.
	ErrAuthorizationFailed = errors.New("authorization failed")

	ErrAlreadyExists    = errors.New("already exists")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")

	// ErrCapacityExceeded is returned at task creation when a create-channel
	// task would push the acting account past its channel ceiling.
	ErrCapacityExceeded = errors.New("channel capacity exceeded")

	// ErrDuplicateRunning rejects starting or deleting a task that is
	// already running.
	ErrDuplicateRunning = errors.New("task already running")

	ErrUnsupportedKind = errors.New("unsupported kind")
)
