package core

import "errors"

var (
	// ErrTurnInProgress is returned when a turn is started on a session that
	// is already mid-turn. The overlapping turn is rejected, not queued; the
	// caller retries after the in-flight turn finishes.
	ErrTurnInProgress = errors.New("turn already in progress for session")

	// ErrSessionClosed is returned for operations on a closed conversation.
	ErrSessionClosed = errors.New("session closed")

	// ErrNoProtocol is returned when a risk category has no loaded protocol.
	ErrNoProtocol = errors.New("no protocol registered for category")

	// ErrUnknownTurn is returned when cancelling a turn that is not in flight.
	ErrUnknownTurn = errors.New("unknown turn id")
)
