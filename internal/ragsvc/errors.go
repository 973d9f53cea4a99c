package ragsvc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Sentinel errors. Check with errors.Is().
var (
	// ErrUnauthorized indicates a missing, rejected, or expired credential.
	// The caller propagates it to the session guard; it is never retried.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidCredentials indicates the login endpoint rejected the
	// username/password pair.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// BadRequestError indicates a caller-correctable input problem. Detail
// carries the server-supplied text when present.
type BadRequestError struct {
	Detail string
}

func (e *BadRequestError) Error() string {
	if e.Detail == "" {
		return "bad request"
	}
	return "bad request: " + e.Detail
}

// TransientError indicates a network-level failure. Timeout distinguishes
// "try again" from "something is broken" in user-facing messages.
type TransientError struct {
	Timeout bool
	Err     error
}

func (e *TransientError) Error() string {
	if e.Timeout {
		return "request timed out: " + e.Err.Error()
	}
	return "request failed: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// transientFrom classifies a transport error as a TransientError, detecting
// timeouts across the shapes net/http produces: url.Error with Timeout set,
// net.Error timeouts, and context deadline expiry.
func transientFrom(err error) *TransientError {
	timeout := errors.Is(err, context.DeadlineExceeded)

	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		timeout = true
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		timeout = true
	}

	return &TransientError{Timeout: timeout, Err: err}
}

// Describe renders an error as a human-readable line for inline display in a
// transcript. It keeps timeout failures distinguishable from generic ones.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return "Your session is no longer valid. Please log in again."
	}

	var bad *BadRequestError
	if errors.As(err, &bad) {
		if bad.Detail != "" {
			return "The service rejected the request: " + bad.Detail
		}
		return "The service rejected the request."
	}

	var transient *TransientError
	if errors.As(err, &transient) {
		if transient.Timeout {
			return "The request timed out. The service may be busy — please try again."
		}
		return "Could not reach the service. Check your connection and try again."
	}

	return fmt.Sprintf("Something went wrong: %v", err)
}
