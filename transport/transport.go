// Package transport defines the instrument-bus capability consumed by the
// instrument package.
//
// A bus (GPIB, USB-TMC, LAN) is reduced to a byte stream with a settable
// I/O timeout. Implementations only move bytes: SCPI framing, data formats
// and IEEE-488.2 blocks are handled by the instrument layer.
package transport

import (
	"context"
	"errors"
	"io"
	"time"
)

// NoTimeout disables the session timeout: Read and Write block indefinitely.
const NoTimeout time.Duration = 0

var (
	// ErrTimeout is returned (possibly wrapped) by Session.Read and Session.Write
	// when the bus timeout in effect elapses before the call completes.
	ErrTimeout = errors.New("transport: I/O timeout")

	// ErrClosed is returned by operations on a released session.
	ErrClosed = errors.New("transport: session closed")

	// ErrInvalidAddress indicates that an Opener cannot handle the resource address.
	ErrInvalidAddress = errors.New("transport: invalid resource address")
)

// Opener opens sessions to instruments by resource address.
type Opener interface {
	// Open opens a session to the instrument at address. ctx bounds the
	// connect phase only.
	Open(ctx context.Context, address string) (Session, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, address string) (Session, error)

// Open implements Opener.
func (f OpenerFunc) Open(ctx context.Context, address string) (Session, error) {
	return f(ctx, address)
}

// Session is an open, exclusively owned channel to a single instrument.
//
// Read and Write block until data is transferred or the current timeout
// elapses. A Session is not goroutine-safe; the bus is half-duplex.
type Session interface {
	io.Reader
	io.Writer

	// Timeout returns the I/O timeout applied to each Read and Write.
	Timeout() time.Duration
	// SetTimeout changes the I/O timeout for subsequent calls.
	// NoTimeout disables it.
	SetTimeout(d time.Duration) error
	// Clear performs a device clear, discarding pending input and output.
	Clear() error
	// Close releases the session.
	Close() error
}

// Locker is implemented by sessions on buses that support exclusive locks.
type Locker interface {
	// Locked reports whether the session holds an exclusive lock.
	Locked() bool
	// Unlock releases the exclusive lock.
	Unlock() error
}

// IsTimeout reports whether err is a bus timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, ErrTimeout) {
		return true
	}

	var te interface{ Timeout() bool }

	return errors.As(err, &te) && te.Timeout()
}
