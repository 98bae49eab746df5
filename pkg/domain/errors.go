package domain

import "errors"

// ErrTransport wraps any read or write failure on the duplex stream.
// It is fatal to the session.
var ErrTransport = errors.New("transport failure")

// ErrInitialization is returned when the engine cannot be configured.
var ErrInitialization = errors.New("engine initialization failed")

// ErrInputTooLarge is returned when a request or answer exceeds the size limit.
var ErrInputTooLarge = errors.New("input exceeds maximum allowed size")

// ErrInvalidUTF8 is returned when a request or answer is not valid UTF-8.
var ErrInvalidUTF8 = errors.New("input contains invalid UTF-8 sequences")
