package xplpro

import "errors"

var (
	// ErrTransportNil indicates that a nil transport was provided to New.
	ErrTransportNil = errors.New("transport is nil")

	// ErrDeviceNameEmpty indicates that Begin was called with an empty device name.
	ErrDeviceNameEmpty = errors.New("device name is empty")

	// ErrNotStarted indicates that the engine is used before Begin.
	ErrNotStarted = errors.New("engine not started, call Begin first")

	// ErrNotConnected indicates an operation that requires an active session.
	ErrNotConnected = errors.New("not connected to host")
)

var (
	// ErrInvalidHandle indicates an operation on a handle that is not bound,
	// or that is bound to the wrong kind (dataref vs. command).
	ErrInvalidHandle = errors.New("invalid or unregistered handle")

	// ErrCommandHeld is returned by a command start on a handle whose previous
	// start has not been balanced by an end.
	ErrCommandHeld = errors.New("command already started, missing end")

	// ErrCommandNotHeld is returned by a command end with no unmatched start.
	ErrCommandNotHeld = errors.New("command not started")

	// ErrRegistrationTimeout indicates that no handle response arrived within
	// the response timeout. The engine treats this as a connection failure.
	ErrRegistrationTimeout = errors.New("registration response timeout")
)

var (
	// ErrFrameTooLarge indicates an outbound frame exceeding the configured
	// maximum frame size. The frame is not sent.
	ErrFrameTooLarge = errors.New("frame exceeds maximum frame size")

	// ErrDecodeField indicates a malformed field in a well-framed packet.
	ErrDecodeField = errors.New("malformed frame field")

	// ErrShortWrite indicates the transport accepted only part of a frame.
	ErrShortWrite = errors.New("transport short write")
)
