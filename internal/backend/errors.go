package backend

import (
	"errors"
	"fmt"
)

// Kind classifies a dispatcher failure for the view layer.
type Kind int

const (
	// KindNetwork: the request never reached the backend or never
	// returned. Surfaced as a generic error banner.
	KindNetwork Kind = iota
	// KindServer: the backend rejected the request; Detail carries the
	// structured error text verbatim when present.
	KindServer
)

// Error is the only error type the dispatcher returns. Remote-call
// failures never cross a component boundary unwrapped.
type Error struct {
	Kind   Kind
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindServer:
		if e.Detail != "" {
			return fmt.Sprintf("backend: %d: %s", e.Status, e.Detail)
		}
		return fmt.Sprintf("backend: status %d", e.Status)
	default:
		return fmt.Sprintf("backend: request failed: %v", e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage is the text shown in the error banner: server detail
// verbatim when present, a generic message otherwise.
func (e *Error) UserMessage() string {
	if e.Kind == KindServer && e.Detail != "" {
		return e.Detail
	}
	return "An unexpected error occurred. Please try again."
}

func networkErr(err error) *Error {
	return &Error{Kind: KindNetwork, Err: err}
}

func serverErr(status int, detail string) *Error {
	return &Error{Kind: KindServer, Status: status, Detail: detail}
}

// AsError extracts the dispatcher error, if any.
func AsError(err error) (*Error, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// UserMessage converts any dispatcher failure into banner text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if be, ok := AsError(err); ok {
		return be.UserMessage()
	}
	return "An unexpected error occurred. Please try again."
}
