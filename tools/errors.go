package tools

import "errors"

var (
	// ErrEmptyName is returned when registering a tool without a name.
	ErrEmptyName = errors.New("tool name is empty")

	// ErrAlreadyExists is returned when a tool name is registered twice.
	ErrAlreadyExists = errors.New("tool already registered")

	// ErrNoHandler is returned when executing a built tool without a handler.
	ErrNoHandler = errors.New("tool has no handler")
)
