package instrument

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-xsg/logger"
	"github.com/arloliu/go-xsg/transport"
)

const testAddress = "TCPIP0::10.0.0.1::5025::SOCKET"

// fakeSession is a scripted transport session. Replies are queued in the
// read buffer, either directly or by the responder on each write; a read
// on an empty buffer times out like a silent instrument.
type fakeSession struct {
	rbuf    bytes.Buffer
	writes  [][]byte
	timeout time.Duration

	// timeouts records every SetTimeout value in order.
	timeouts []time.Duration

	respond func(cmd []byte) []byte

	writeErr      error
	readErr       error
	setTimeoutErr error
	clearErr      error
	closeErr      error

	reads      int
	clearCalls int
	closeCalls int
}

var _ transport.Session = (*fakeSession)(nil)

func newFakeSession() *fakeSession {
	return &fakeSession{}
}

func (s *fakeSession) Read(p []byte) (int, error) {
	s.reads++
	if s.readErr != nil {
		return 0, s.readErr
	}
	if s.rbuf.Len() == 0 {
		return 0, fmt.Errorf("fake: read: %w", transport.ErrTimeout)
	}

	return s.rbuf.Read(p)
}

func (s *fakeSession) Write(p []byte) (int, error) {
	if s.writeErr != nil {
		return 0, s.writeErr
	}

	data := bytes.Clone(p)
	s.writes = append(s.writes, data)
	if s.respond != nil {
		s.rbuf.Write(s.respond(data))
	}

	return len(p), nil
}

func (s *fakeSession) Timeout() time.Duration { return s.timeout }

func (s *fakeSession) SetTimeout(d time.Duration) error {
	if s.setTimeoutErr != nil {
		return s.setTimeoutErr
	}
	s.timeout = d
	s.timeouts = append(s.timeouts, d)

	return nil
}

// Clear drops queued replies like a device clear.
func (s *fakeSession) Clear() error {
	s.clearCalls++
	if s.clearErr != nil {
		return s.clearErr
	}
	s.rbuf.Reset()

	return nil
}

func (s *fakeSession) Close() error {
	s.closeCalls++
	return s.closeErr
}

// reply queues a raw response.
func (s *fakeSession) reply(data string) {
	s.rbuf.WriteString(data)
}

// written returns all writes as strings.
func (s *fakeSession) written() []string {
	out := make([]string, len(s.writes))
	for i, w := range s.writes {
		out[i] = string(w)
	}

	return out
}

// lockingSession is a fakeSession that holds an exclusive lock.
type lockingSession struct {
	*fakeSession
	locked    bool
	unlockErr error
	unlocked  bool
}

func (s *lockingSession) Locked() bool { return s.locked }

func (s *lockingSession) Unlock() error {
	if s.unlockErr != nil {
		return s.unlockErr
	}
	s.unlocked = true
	s.locked = false

	return nil
}

// mockOpener is a testify mock implementing transport.Opener.
type mockOpener struct {
	mock.Mock
}

func (m *mockOpener) Open(ctx context.Context, address string) (transport.Session, error) {
	args := m.Called(ctx, address)
	s, _ := args.Get(0).(transport.Session)

	return s, args.Error(1)
}

func quietLogger() logger.Logger {
	return logger.NewMockLogger().AllowAll()
}

// newTestConn connects a Conn to s.
func newTestConn(t *testing.T, s transport.Session, opts ...ConnOption) *Conn {
	t.Helper()

	opener := transport.OpenerFunc(func(context.Context, string) (transport.Session, error) {
		return s, nil
	})

	c, err := Connect(context.Background(), opener, testAddress, append([]ConnOption{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, err)

	return c
}

// opcResponder acknowledges *OPC? and answers *IDN?.
func opcResponder(idn string) func([]byte) []byte {
	return func(cmd []byte) []byte {
		switch string(cmd) {
		case "*OPC?\n":
			return []byte("1\n")
		case "*IDN?\n":
			return []byte(idn + "\n")
		default:
			return nil
		}
	}
}

var errBoom = errors.New("boom")
