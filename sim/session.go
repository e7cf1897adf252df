package sim

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arloliu/go-xsg/instrument"
	"github.com/arloliu/go-xsg/internal/pool"
	"github.com/arloliu/go-xsg/internal/queue"
	"github.com/arloliu/go-xsg/transport"
)

// reply is a queued response message, available from readyAt on.
type reply struct {
	data    []byte
	readyAt time.Time
}

// session is a simulated bus session. Input is parsed into messages as
// soon as they are complete; replies are queued in order.
type session struct {
	inst *Instrument
	id   int32

	mu      sync.Mutex
	timeout time.Duration
	closed  bool
	locked  bool
	format  instrument.DataFormat
	input   []byte
	output  queue.Queue[reply]
	current []byte
}

var (
	_ transport.Session = (*session)(nil)
	_ transport.Locker  = (*session)(nil)
)

func newSession(in *Instrument, id int32) *session {
	return &session{
		inst:    in,
		id:      id,
		timeout: 2 * time.Second,
		locked:  in.lock,
		format:  instrument.ASCII,
		output:  queue.NewSliceQueue[reply](4),
	}
}

func timeoutError(d time.Duration) error {
	return fmt.Errorf("sim: read after %v: %w", d, transport.ErrTimeout)
}

// Read returns queued reply bytes. A read with nothing to deliver within
// the session timeout fails with transport.ErrTimeout; so does a read
// without timeout, since an idle simulator never produces output.
func (s *session) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, transport.ErrClosed
	}

	if len(s.current) == 0 {
		r, ok := s.output.Peek()
		if !ok {
			s.wait(s.timeout)
			return 0, timeoutError(s.timeout)
		}

		if delay := time.Until(r.readyAt); delay > 0 {
			if s.timeout != transport.NoTimeout && delay > s.timeout {
				s.wait(s.timeout)
				return 0, timeoutError(s.timeout)
			}
			s.wait(delay)
		}

		if s.closed {
			return 0, transport.ErrClosed
		}

		r, ok = s.output.Dequeue()
		if !ok {
			return 0, timeoutError(s.timeout)
		}
		s.current = r.data
	}

	n := copy(p, s.current)
	s.current = s.current[n:]

	return n, nil
}

// wait sleeps for d with the session unlocked.
func (s *session) wait(d time.Duration) {
	s.mu.Unlock()
	_ = pool.Sleep(context.Background(), d)
	s.mu.Lock()
}

// Write accepts raw bus bytes and executes every complete message.
func (s *session) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, transport.ErrClosed
	}

	s.input = append(s.input, p...)
	for {
		msg, rest, ok, err := nextMessage(s.input)
		if err != nil {
			s.inst.pushError(errInvalidBlockData, "Invalid block data")
			s.input = s.input[:0]

			break
		}
		if !ok {
			break
		}

		s.input = rest
		s.execute(msg)
	}

	if len(s.input) == 0 {
		s.input = nil
	}

	return len(p), nil
}

func (s *session) Timeout() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.timeout
}

func (s *session) SetTimeout(d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return transport.ErrClosed
	}
	s.timeout = d

	return nil
}

// Clear discards pending input and queued replies.
func (s *session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return transport.ErrClosed
	}

	s.input = nil
	s.current = nil
	s.output.Reset()

	return nil
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return transport.ErrClosed
	}
	s.closed = true
	s.inst.open.Add(-1)
	s.inst.logger.Debug("sim: session closed", "session", s.id)

	return nil
}

func (s *session) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.locked
}

func (s *session) Unlock() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return transport.ErrClosed
	}
	s.locked = false

	return nil
}

func (s *session) reply(data []byte, delay time.Duration) {
	s.output.Enqueue(reply{data: data, readyAt: time.Now().Add(delay)})
}

// message is one complete SCPI program message.
type message struct {
	text     string
	block    []byte
	hasBlock bool
}

// nextMessage extracts the first complete message from buf. ok is false
// when more input is needed. Quoted strings may contain '#' and
// newlines are permitted inside block payloads.
func nextMessage(buf []byte) (msg message, rest []byte, ok bool, err error) {
	var quote byte
	for i := 0; i < len(buf); i++ {
		c := buf[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '\n':
			return message{text: string(bytes.TrimRight(buf[:i], "\r"))}, buf[i+1:], true, nil
		case c == '#':
			payload, end, complete, err := parseBlock(buf[i:])
			if err != nil || !complete {
				return message{}, buf, false, err
			}

			return message{text: string(buf[:i]), block: payload, hasBlock: true}, buf[i+end:], true, nil
		}
	}

	return message{}, buf, false, nil
}

// parseBlock parses a definite-length block and its terminator at the
// start of buf and returns the payload and the number of bytes consumed.
func parseBlock(buf []byte) (payload []byte, n int, complete bool, err error) {
	if len(buf) < 2 {
		return nil, 0, false, nil
	}

	nd := buf[1]
	if nd < '1' || nd > '9' {
		return nil, 0, false, fmt.Errorf("invalid block digit count %q", nd)
	}

	header := 2 + int(nd-'0')
	if len(buf) < header {
		return nil, 0, false, nil
	}

	length := 0
	for _, d := range buf[2:header] {
		if d < '0' || d > '9' {
			return nil, 0, false, fmt.Errorf("invalid block length %q", buf[2:header])
		}
		length = length*10 + int(d-'0')
	}

	end := header + length
	if len(buf) <= end {
		return nil, 0, false, nil
	}

	switch {
	case buf[end] == '\n':
		return buf[header:end], end + 1, true, nil
	case buf[end] == '\r':
		if len(buf) <= end+1 {
			return nil, 0, false, nil
		}
		if buf[end+1] == '\n' {
			return buf[header:end], end + 2, true, nil
		}
	}

	return nil, 0, false, fmt.Errorf("block not terminated, got %q", buf[end])
}
