package common

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Sentinel Errors
// --------------------------------------------------------------------------

var (
	ErrTagMismatch        = errors.New("link: protocol tag mismatch")
	ErrUnknownKind        = errors.New("link: unknown frame kind")
	ErrEmptyFrame         = errors.New("link: empty frame")
	ErrFrameTooLarge      = errors.New("link: frame exceeds max frame size")
	ErrDelimiterInPayload = errors.New("link: payload contains the frame delimiter")
	ErrInvalidUTF8        = errors.New("link: payload is not valid utf-8")
	ErrNotListening       = errors.New("link: connection is not listening")
	ErrAlreadyStarted     = errors.New("link: connection already started")
	ErrPeerUnresponsive   = errors.New("link: peer did not answer timeout probes")
)

// --------------------------------------------------------------------------
// Error Kinds
// --------------------------------------------------------------------------

// ErrorKind classifies link errors. The kind decides how an error propagates:
// bind errors are returned to the caller of Start, liveness errors trigger the
// disconnect notification and everything else is absorbed by the protocol and
// only reported to the observability hook.
type ErrorKind uint8

const (
	ErrKindUnknown   ErrorKind = iota
	ErrKindBind                // Binding the local endpoint failed
	ErrKindFraming             // The byte stream could not be split into frames
	ErrKindCodec               // A frame could not be decoded or encoded
	ErrKindProtocol            // A frame or call violated the protocol
	ErrKindTransient           // A socket operation failed, the link keeps running
	ErrKindLiveness            // The peer stopped answering
)

// String returns the string representation of an ErrorKind.
func (k ErrorKind) String() string {
	switch k {
	case ErrKindBind:
		return "bind"
	case ErrKindFraming:
		return "framing"
	case ErrKindCodec:
		return "codec"
	case ErrKindProtocol:
		return "protocol"
	case ErrKindTransient:
		return "transient"
	case ErrKindLiveness:
		return "liveness"
	default:
		return "unknown"
	}
}

// LinkError is the error type reported by every layer of the link
type LinkError struct {
	Kind ErrorKind
	Op   string // operation that failed, e.g. "decode" or "receive"
	Err  error
}

// NewError creates a new LinkError
func NewError(kind ErrorKind, op string, err error) *LinkError {
	return &LinkError{
		Kind: kind,
		Op:   op,
		Err:  err,
	}
}

func (e *LinkError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s error (%s)", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s error (%s): %v", e.Kind, e.Op, e.Err)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or ErrKindUnknown if err is not a LinkError
func KindOf(err error) ErrorKind {
	var le *LinkError
	if errors.As(err, &le) {
		return le.Kind
	}
	return ErrKindUnknown
}

// IsKind reports whether err is a LinkError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
