package controller

import (
	"errors"
	"fmt"
)

var (
	ErrBlankInput         = errors.New("message is blank")
	ErrEmptyConversation  = errors.New("conversation is empty")
	ErrInertSuggestion    = errors.New("suggestion is not attached to the latest message")
	ErrNoSession          = errors.New("no session established")
	ErrAlreadyInitialized = errors.New("session already initialized")
	ErrBusy               = errors.New("another action is in flight")
)

// ValidationError reports an action rejected on the client before any
// network call was made.
type ValidationError struct {
	Action string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Action, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidation reports whether err was raised before reaching the network.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}
