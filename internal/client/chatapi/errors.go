package chatapi

import (
	"errors"
	"fmt"
)

// NetworkError reports a request that never produced an HTTP response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError reports a response the service marked as failed, or one whose
// body did not match the contract.
type ServerError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: server responded %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: server responded %d: %s", e.Op, e.StatusCode, e.Message)
}

func (e *ServerError) Unwrap() error { return e.Err }

// IsNetwork reports whether err is (or wraps) a NetworkError.
func IsNetwork(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}

// IsServer reports whether err is (or wraps) a ServerError.
func IsServer(err error) bool {
	var target *ServerError
	return errors.As(err, &target)
}
