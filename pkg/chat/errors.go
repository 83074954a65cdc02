package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled marks a cooperative abort. It is never shown to the user.
	ErrCancelled = errors.New("stream cancelled")

	// ErrOptimisticPending is returned when a second optimistic entry would be
	// appended while one is still awaiting resolution.
	ErrOptimisticPending = errors.New("an optimistic message is already pending")

	// ErrDuplicateMessage is returned when an entry id is already present.
	ErrDuplicateMessage = errors.New("message id already present")
)

// PreconditionError reports a send that could not start. No network call has
// been made when this error is returned.
type PreconditionError struct {
	Reason string
	Err    error
}

func (e *PreconditionError) Error() string {
	return "cannot send message: " + e.Reason
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}

// TransportError reports a non-success HTTP status, a missing or unreadable
// body, or any other failure of the byte transport.
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	case e.Err != nil:
		return "transport error: " + e.Err.Error()
	default:
		return "transport error"
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError carries the message of an error event emitted by the server.
// Error returns the server's message verbatim.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return e.Message
}

// DecodeError reports a malformed payload in a single event block. It is
// recovered locally: the event is dropped and the stream continues.
type DecodeError struct {
	EventType string
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %q event: %v", e.EventType, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// UserVisible reports whether err should be surfaced to the end user.
// Cancellation and decode errors are swallowed.
func UserVisible(err error) bool {
	if err == nil || errors.Is(err, ErrCancelled) {
		return false
	}

	var decodeErr *DecodeError
	return !errors.As(err, &decodeErr)
}
