// Package lan implements the transport capability over a raw SCPI socket
// (LAN instruments listening on TCP port 5025).
package lan

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/arloliu/go-xsg/logger"
	"github.com/arloliu/go-xsg/transport"
)

// Opener dials raw socket sessions.
type Opener struct {
	cfg *Config
}

var _ transport.Opener = (*Opener)(nil)

// NewOpener creates an Opener. opts are applied in order.
func NewOpener(opts ...Option) (*Opener, error) {
	cfg := &Config{
		connectTimeout: DefaultConnectTimeout,
		timeout:        DefaultTimeout,
		clearQuiet:     DefaultClearQuiet,
		logger:         logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return &Opener{cfg: cfg}, nil
}

// Config returns the opener configuration.
func (o *Opener) Config() *Config { return o.cfg }

// Open implements transport.Opener.
func (o *Opener) Open(ctx context.Context, address string) (transport.Session, error) {
	hostPort, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}

	dialer := net.Dialer{Timeout: o.cfg.connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", hostPort)
	if err != nil {
		return nil, fmt.Errorf("lan: dial %s: %w", hostPort, err)
	}

	o.cfg.logger.Debug("lan: session opened", "address", address, "remote", conn.RemoteAddr().String())

	return &Session{
		conn:    conn,
		cfg:     o.cfg,
		timeout: o.cfg.timeout,
	}, nil
}

// Session is a raw socket session. It is NOT goroutine-safe.
type Session struct {
	conn    net.Conn
	cfg     *Config
	timeout time.Duration
	closed  bool
}

var _ transport.Session = (*Session)(nil)

func (s *Session) deadline(d time.Duration) time.Time {
	if d == 0 {
		return time.Time{}
	}

	return time.Now().Add(d)
}

// Read implements io.Reader with the session timeout as deadline.
func (s *Session) Read(p []byte) (int, error) {
	if s.closed {
		return 0, transport.ErrClosed
	}

	if err := s.conn.SetReadDeadline(s.deadline(s.timeout)); err != nil {
		return 0, err
	}

	n, err := s.conn.Read(p)

	return n, mapError("read", err)
}

// Write implements io.Writer; it writes all of p or fails.
func (s *Session) Write(p []byte) (int, error) {
	if s.closed {
		return 0, transport.ErrClosed
	}

	if err := s.conn.SetWriteDeadline(s.deadline(s.timeout)); err != nil {
		return 0, err
	}

	written := 0
	for written < len(p) {
		n, err := s.conn.Write(p[written:])
		written += n

		if err != nil {
			return written, mapError("write", err)
		}
	}

	return written, nil
}

// Timeout implements transport.Session.
func (s *Session) Timeout() time.Duration { return s.timeout }

// SetTimeout implements transport.Session. Zero disables the timeout.
func (s *Session) SetTimeout(d time.Duration) error {
	if s.closed {
		return transport.ErrClosed
	}
	if d < 0 {
		return fmt.Errorf("lan: timeout %v must not be negative", d)
	}
	s.timeout = d

	return nil
}

// Clear discards pending input until the line is silent for the configured
// quiet interval. A raw socket has no device-clear message.
func (s *Session) Clear() error {
	if s.closed {
		return transport.ErrClosed
	}

	buf := make([]byte, 512)
	for {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.clearQuiet)); err != nil {
			return err
		}

		n, err := s.conn.Read(buf)
		if err != nil {
			if transport.IsTimeout(err) {
				return nil
			}

			return fmt.Errorf("lan: clear: %w", err)
		}

		s.cfg.logger.Debug("lan: discarded pending input", "bytes", n)
	}
}

// Close releases the socket. A second call returns transport.ErrClosed.
func (s *Session) Close() error {
	if s.closed {
		return transport.ErrClosed
	}
	s.closed = true

	return s.conn.Close()
}

func mapError(op string, err error) error {
	if err == nil || err == io.EOF {
		return err
	}

	if transport.IsTimeout(err) {
		return fmt.Errorf("lan: %s: %w: %w", op, transport.ErrTimeout, err)
	}

	return fmt.Errorf("lan: %s: %w", op, err)
}
