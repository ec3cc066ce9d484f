package model

import "errors"

// Error taxonomy shared across subsystems. The request surface maps these to
// HTTP status codes; the orchestrator and supervisor absorb the rest.
var (
	// ErrInvalidInput marks a request validation failure. Surfaced to the
	// caller with a message, never logged above debug.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCaptureBusy is returned when a capture is already running with
	// different parameters.
	ErrCaptureBusy = errors.New("capture already running")

	// ErrCaptureStartFailure is returned when the capture process could not
	// be spawned.
	ErrCaptureStartFailure = errors.New("capture start failure")

	// ErrUpstreamUnavailable marks a grader failure. It is folded into the
	// fusion policy and never surfaced to the detect caller.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
