package instrument

import (
	"errors"
	"strings"

	"github.com/arloliu/go-xsg/transport"
)

// Error kinds. Every *Error unwraps to exactly one of these.
var (
	// ErrConnection indicates an open, close or lock failure on the bus.
	ErrConnection = errors.New("connection error")
	// ErrFraming indicates a malformed block header or a block length mismatch.
	ErrFraming = errors.New("framing error")
	// ErrParse indicates a malformed catalog, identification or numeric response.
	ErrParse = errors.New("parse error")
	// ErrValidation indicates an invalid argument, detected before any I/O.
	ErrValidation = errors.New("validation error")
	// ErrTimeout indicates that a blocking call exceeded the effective timeout.
	ErrTimeout = errors.New("timeout")
	// ErrTransport indicates a raw I/O failure reported by the bus.
	ErrTransport = errors.New("transport error")
)

// Conditions carried in Error.Err.
var (
	ErrClosed         = errors.New("connection is closed")
	ErrInvalidFormat  = errors.New("invalid data format")
	ErrTruncatedBlock = errors.New("block ended before its declared length")
	ErrLengthMismatch = errors.New("block payload not followed by message terminator")
	ErrMalformedBlock = errors.New("block length is not a multiple of the element size")
	ErrNameTooLong    = errors.New("waveform name too long")
	ErrBlockTooLarge  = errors.New("payload too large for a definite-length block")
)

// Error describes a failed instrument operation.
type Error struct {
	// Kind is one of the error kind sentinels, e.g. ErrTimeout.
	Kind error
	// Op is the operation that failed, e.g. "query *IDN?" or "close: clear".
	Op string
	// Model and Serial identify the instrument when it has been identified.
	Model  string
	Serial string
	// Err is the underlying cause.
	Err error
}

func (e *Error) Error() string {
	var sb strings.Builder

	sb.WriteString("instrument: ")
	sb.WriteString(e.Op)
	if e.Model != "" || e.Serial != "" {
		sb.WriteString(" [")
		sb.WriteString(e.Model)
		sb.WriteByte(',')
		sb.WriteString(e.Serial)
		sb.WriteByte(']')
	}
	if e.Kind != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Kind.Error())
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}

	return sb.String()
}

// Unwrap returns the kind and the cause, so errors.Is matches both.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}

	return errs
}

func newError(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// classify maps a raw transport error to an error kind.
func classify(err error) error {
	switch {
	case transport.IsTimeout(err):
		return ErrTimeout
	case errors.Is(err, transport.ErrClosed):
		return ErrConnection
	default:
		return ErrTransport
	}
}
