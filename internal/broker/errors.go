package broker

import "errors"

var (
	// ErrInvalidName is returned before any provider interaction when a
	// display name fails the emptiness/length check.
	ErrInvalidName = errors.New("invalid name")
	// ErrUnknownChat covers both a missing chat session id and one the
	// provider rejects. Callers cannot tell the two apart; the merge keeps
	// responses from leaking which session ids exist.
	ErrUnknownChat = errors.New("unknown chat")
	// ErrProvider marks unexpected provider faults (network, service, or a
	// mint failure against a session that should be valid).
	ErrProvider = errors.New("provider failure")
)
