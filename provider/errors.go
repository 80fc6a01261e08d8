package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// UnavailableError marks a transient backend failure (timeout, rate limit,
// transport error). The failover helper retries these against the next
// provider in the chain; anything else fails the call immediately.
type UnavailableError struct {
	Backend string
	Err     error
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	return fmt.Sprintf("provider %s unavailable: %v", e.Backend, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *UnavailableError) Unwrap() error { return e.Err }

// IsUnavailable reports whether err represents a transient provider failure.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// Classify wraps transient-looking backend errors in UnavailableError so the
// failover chain can retry them. Timeouts, rate limits and transport errors
// count as transient; everything else is returned unchanged.
func Classify(backend string, err error) error {
	if err == nil {
		return nil
	}
	if IsUnavailable(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &UnavailableError{Backend: backend, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &UnavailableError{Backend: backend, Err: err}
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"429", "rate limit", "too many requests",
		"500", "502", "503", "server_error", "internal server error",
		"overloaded", "timeout", "connection refused", "connection reset",
	} {
		if strings.Contains(msg, marker) {
			return &UnavailableError{Backend: backend, Err: err}
		}
	}
	return err
}
