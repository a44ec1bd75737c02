package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrBufferUnderrun      = errors.New("protocol: buffer underrun")
	ErrUnknownWireType     = errors.New("protocol: unknown wire type")
	ErrLengthMismatch      = errors.New("protocol: length mismatch")
	ErrUnsupportedVersion  = errors.New("protocol: unsupported version")
	ErrSignatureMismatch   = errors.New("protocol: signature mismatch")
	ErrNonceNotReceived    = errors.New("protocol: nonce not received")
	ErrHandshakeIncomplete = errors.New("protocol: handshake incomplete")
	ErrTransport           = errors.New("protocol: transport error")
	ErrTimeout             = errors.New("protocol: idle timeout")
	ErrFrameTooLarge       = errors.New("protocol: frame too large")
	ErrKeyTooLong          = errors.New("protocol: table key too long")
	ErrNonASCIIKey         = errors.New("protocol: table key not ascii")
)

// UnknownWireTypeError carries the offending type tag.
type UnknownWireTypeError struct {
	Tag uint8
}

func (e UnknownWireTypeError) Error() string {
	return fmt.Sprintf("protocol: unknown wire type: %d", e.Tag)
}

func (e UnknownWireTypeError) Is(target error) bool {
	return target == ErrUnknownWireType
}

// TransportError wraps a fault raised by the underlying connection.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("protocol: transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// IsFatal reports whether err leaves the framing state unrecoverable.
func IsFatal(err error) bool {
	switch {
	case errors.Is(err, ErrBufferUnderrun),
		errors.Is(err, ErrUnknownWireType),
		errors.Is(err, ErrLengthMismatch),
		errors.Is(err, ErrUnsupportedVersion),
		errors.Is(err, ErrSignatureMismatch),
		errors.Is(err, ErrFrameTooLarge),
		errors.Is(err, ErrNonceNotReceived):
		return true
	}
	return false
}
