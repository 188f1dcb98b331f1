package gateway

import (
	"errors"
	"fmt"

	"personal/cordterm/src/opcodes"
)

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrSchemaMismatch = errors.New("payload does not match opcode")

	ErrHandshakeRejected = errors.New("handshake rejected")
	ErrTransportFailure  = errors.New("transport failure")
	ErrConnectionClosed  = errors.New("connection closed")

	ErrOutboundClosed   = errors.New("outbound channel closed")
	ErrInboundFull      = errors.New("inbound channel full")
	ErrHeartbeatRunning = errors.New("heartbeat already started")
)

// DecodeError reports a frame that could not be turned into an Envelope.
// Raw keeps the offending frame for diagnostics.
type DecodeError struct {
	Kind  error // ErrMalformedFrame or ErrSchemaMismatch
	Op    opcodes.Opcode
	Event string
	Raw   string
	Err   error
}

func (e *DecodeError) Error() string {
	msg := "gateway: decode: " + e.Kind.Error()
	if errors.Is(e.Kind, ErrSchemaMismatch) {
		msg += fmt.Sprintf(" (op %s", e.Op)
		if e.Event != "" {
			msg += ", t " + e.Event
		}
		msg += ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ConnectError is returned by Connect. Status is the HTTP status of a
// rejected upgrade and zero otherwise.
type ConnectError struct {
	Kind   error // ErrHandshakeRejected or ErrTransportFailure
	URL    string
	Status int
	Err    error
}

func (e *ConnectError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("gateway: connect %s: %s (status %d)", e.URL, e.Kind, e.Status)
	}
	return fmt.Sprintf("gateway: connect %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *ConnectError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ClosedError is how the end of a connection is reported. Cause is nil when
// the connection ended cleanly.
type ClosedError struct {
	Loop  string // "read", "write" or "context"
	Cause error
}

func (e *ClosedError) Error() string {
	if e.Cause == nil {
		return "gateway: connection closed by " + e.Loop
	}
	return fmt.Sprintf("gateway: connection closed by %s: %v", e.Loop, e.Cause)
}

func (e *ClosedError) Is(target error) bool { return target == ErrConnectionClosed }

func (e *ClosedError) Unwrap() error { return e.Cause }
