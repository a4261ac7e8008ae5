package hacienda

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned when the client configuration is incomplete
	ErrInvalidConfig = errors.New("invalid hacienda client config")

	// ErrNetworkError is returned when there's a network communication error
	ErrNetworkError = errors.New("network error")

	// ErrUnexpectedResponse is returned when the authority answers with a body
	// the client cannot interpret
	ErrUnexpectedResponse = errors.New("unexpected authority response")
)

// AuthError carries the authority's status and message when authentication
// fails. The token store surfaces it to the caller untouched; it is never
// retried at this layer.
type AuthError struct {
	Status  string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("hacienda authentication failed: %s (%s)", e.Message, e.Status)
}
