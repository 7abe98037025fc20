package mqtt

import "errors"

var (
	// ErrNotConnected is returned when an operation needs a session.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrSubscribeFailed is returned when the broker rejects a subscription.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrInvalidConfig wraps configuration validation errors.
	ErrInvalidConfig = errors.New("mqtt: invalid config")

	// ErrPinMismatch is returned when the broker certificate fingerprint
	// does not match the pinned value.
	ErrPinMismatch = errors.New("mqtt: certificate pin mismatch")
)
