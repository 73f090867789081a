package domain

import (
	"errors"
	"fmt"
)

// Endpoint URI parse failures. Fatal at startup: the process reports them and
// exits, they never reach the relay loop.
var (
	ErrUnsupportedScheme = errors.New("unsupported scheme")
	ErrMissingHost       = errors.New("missing host")
	ErrMissingPort       = errors.New("missing port")
	ErrAmbiguousRole     = errors.New("ambiguous role")
)

// ParseError wraps one of the sentinel parse errors together with the
// offending URI (already redacted, safe to log).
type ParseError struct {
	URI string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URI, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ErrorKind classifies transport failures. The transient/fatal split drives
// the retry policy: transient kinds are absorbed by the pipe loop, fatal kinds
// tear the pipe down and hand control to the supervisor.
type ErrorKind int

const (
	KindTimeout ErrorKind = iota
	KindWouldBlock
	KindConnectionReset
	KindShortWrite
	KindInvalidState
	KindProtocolViolation
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindWouldBlock:
		return "would_block"
	case KindConnectionReset:
		return "connection_reset"
	case KindShortWrite:
		return "short_write"
	case KindInvalidState:
		return "invalid_state"
	case KindProtocolViolation:
		return "protocol_violation"
	default:
		return "unknown"
	}
}

// Transient reports whether an operation failing with this kind may simply be
// retried in place.
func (k ErrorKind) Transient() bool {
	return k == KindTimeout || k == KindWouldBlock
}

// TransportError is the error type every concrete transport must surface.
// Implementations translating native error codes (FFI bindings included) are
// required to preserve the Kind classification.
type TransportError struct {
	Kind  ErrorKind
	Op    string
	Cause error
}

func (e *TransportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// NewTransportError builds a TransportError for the given operation.
func NewTransportError(kind ErrorKind, op string, cause error) *TransportError {
	return &TransportError{Kind: kind, Op: op, Cause: cause}
}

// IsTransient reports whether err is a transport error the pipe may absorb
// locally (timeout or would-block).
func IsTransient(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Kind.Transient()
	}
	return false
}

// IsTimeout reports whether err is a transport read/write timeout.
func IsTimeout(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Kind == KindTimeout
	}
	return false
}

// KindOf extracts the classification of a transport error, or ok=false when
// err is not a TransportError.
func KindOf(err error) (ErrorKind, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Kind, true
	}
	return 0, false
}
