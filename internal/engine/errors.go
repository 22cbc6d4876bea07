package engine

import "errors"

var (
	// ErrHandshake wraps a failed or cancelled session start.
	ErrHandshake = errors.New("session handshake failed")
	// ErrDelivery wraps a failed or cancelled batch delivery.
	ErrDelivery = errors.New("batch delivery failed")
	// ErrNotReady means the codec cannot serialize yet.
	ErrNotReady = errors.New("codec not ready")
	// ErrClosed is returned by operations on a closed engine.
	ErrClosed = errors.New("engine is closed")
	// ErrUndelivered is returned by Close when traces remain after the
	// retry budget ran out.
	ErrUndelivered = errors.New("traces left undelivered")
)
