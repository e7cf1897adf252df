package instrument

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/arloliu/go-xsg/logger"
	"github.com/arloliu/go-xsg/transport"
)

// Conn is an open connection to a single instrument.
//
// A Conn exclusively owns its transport session and is either open or
// closed; Connect never returns a partially opened Conn. Conn is NOT
// goroutine-safe: the bus is half-duplex and callers must serialize access.
type Conn struct {
	cfg        *Config
	baseLogger logger.Logger
	logger     logger.Logger
	address    string

	session transport.Session
	reader  *bufio.Reader

	format DataFormat
	idn    Identification
	closed bool

	metrics ConnectionMetrics
}

// Connect opens a session to the instrument at address using opener.
//
// ctx bounds the connect phase only; instrument operations are bounded by the
// bus timeout. The data format starts as ASCII, which is the power-on
// state of SCPI instruments. No query is sent; call Identify to read *IDN?.
func Connect(ctx context.Context, opener transport.Opener, address string, opts ...ConnOption) (*Conn, error) {
	op := "connect " + address

	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, newError(ErrValidation, op, err)
	}
	if opener == nil {
		return nil, newError(ErrValidation, op, errors.New("opener is nil"))
	}

	session, err := opener.Open(ctx, address)
	if err != nil {
		return nil, newError(ErrConnection, op, err)
	}

	if err := session.SetTimeout(cfg.timeout); err != nil {
		_ = session.Close()
		return nil, newError(ErrConnection, op, err)
	}

	c := &Conn{
		cfg:        cfg,
		baseLogger: cfg.logger.With("address", address),
		address:    address,
		session:    session,
		format:     ASCII,
	}
	c.logger = c.baseLogger
	c.reader = bufio.NewReaderSize(countingReader{r: session, m: &c.metrics}, cfg.readBufferSize)

	c.logger.Info("instrument: connected", "timeout", cfg.timeout)

	return c, nil
}

// Address returns the resource address the connection was opened with.
func (c *Conn) Address() string { return c.address }

// Config returns the connection configuration.
func (c *Conn) Config() *Config { return c.cfg }

// Metrics returns the connection metrics.
func (c *Conn) Metrics() *ConnectionMetrics { return &c.metrics }

// IsClosed reports whether Close has been called.
func (c *Conn) IsClosed() bool { return c.closed }

// Identification returns the result of the last successful Identify.
func (c *Conn) Identification() Identification { return c.idn }

// DataFormat returns the current data format without device I/O.
func (c *Conn) DataFormat() DataFormat { return c.format }

// Timeout returns the current bus timeout.
func (c *Conn) Timeout() time.Duration {
	if c.closed {
		return 0
	}

	return c.session.Timeout()
}

// SetTimeout sets the bus timeout for subsequent operations.
func (c *Conn) SetTimeout(d time.Duration) error {
	const op = "set timeout"

	if err := c.ensureOpen(op); err != nil {
		return err
	}
	if d < 0 {
		return c.wrap(ErrValidation, op, fmt.Errorf("timeout %v must not be negative", d))
	}

	if err := c.session.SetTimeout(d); err != nil {
		return c.fail(op, err)
	}

	return nil
}

// Close clears and releases the session.
//
// The teardown runs unlock (if the session holds an exclusive lock), device
// clear and release. The session is released even when an earlier step
// fails; the first failure is returned with the step that caused it, later
// failures are logged. Calling Close on a closed Conn returns an error
// matching ErrClosed.
func (c *Conn) Close() error {
	if c.closed {
		return c.wrap(ErrConnection, "close", ErrClosed)
	}
	c.closed = true

	var first error
	record := func(step string, err error) {
		if err == nil {
			return
		}
		if first == nil {
			first = c.wrap(ErrConnection, "close: "+step, err)
			return
		}
		c.logger.Warn("instrument: close step failed", "step", step, "error", err)
	}

	if lk, ok := c.session.(transport.Locker); ok && lk.Locked() {
		record("unlock", lk.Unlock())
	}
	record("clear", c.session.Clear())
	record("release", c.session.Close())

	c.logger.Info("instrument: closed", "error", first)

	return first
}

// Identify queries *IDN? and replaces the stored identification.
func (c *Conn) Identify() (Identification, error) {
	raw, err := c.QueryString("*IDN?")
	if err != nil {
		return Identification{}, err
	}

	id, err := ParseIdentification(raw)
	if err != nil {
		return Identification{}, c.fail("identify", err)
	}

	c.idn = id
	c.logger = c.baseLogger.With("model", id.Model, "serial", id.Serial)
	c.logger.Info("instrument: identified", "company", id.Company, "firmware", id.Firmware)

	return id, nil
}

// SetDataFormat negotiates the numeric transfer format with FORM:DATA.
//
// The format is stored only when the command was written successfully.
// The instrument is not queried to confirm the change.
func (c *Conn) SetDataFormat(f DataFormat) error {
	op := "set data format " + f.String()

	if err := c.ensureOpen(op); err != nil {
		return err
	}
	if !f.Valid() {
		return c.wrap(ErrValidation, op, ErrInvalidFormat)
	}

	if err := c.writeString(op, "FORM:DATA "+f.SCPI()); err != nil {
		return err
	}
	c.format = f

	return nil
}

// Command writes a SCPI command.
func (c *Conn) Command(cmd string) error {
	op := "command " + cmd

	if err := c.checkCommand(op, cmd); err != nil {
		return err
	}

	c.logger.Debug("instrument: command", "cmd", cmd)

	return c.writeString(op, cmd)
}

// WriteBlock writes prefix followed by payload framed as an IEEE-488.2
// definite-length block.
func (c *Conn) WriteBlock(prefix string, payload []byte) error {
	op := "write block " + prefix

	if err := c.checkCommand(op, prefix); err != nil {
		return err
	}

	c.logger.Debug("instrument: write block", "cmd", prefix, "bytes", len(payload))

	return c.writeBlock(op, prefix, payload)
}

// Query writes cmd and decodes the response according to the current data format.
func (c *Conn) Query(cmd string) (Response, error) {
	op := "query " + cmd

	if err := c.checkCommand(op, cmd); err != nil {
		return nil, err
	}

	c.logger.Debug("instrument: query", "cmd", cmd, "format", c.format.String())

	if err := c.writeString(op, cmd); err != nil {
		return nil, err
	}

	return c.readResponse(op)
}

// QueryBlock writes prefix with a framed payload and decodes the response
// according to the current data format.
func (c *Conn) QueryBlock(prefix string, payload []byte) (Response, error) {
	op := "query block " + prefix

	if err := c.checkCommand(op, prefix); err != nil {
		return nil, err
	}

	c.logger.Debug("instrument: query block", "cmd", prefix, "bytes", len(payload), "format", c.format.String())

	if err := c.writeBlock(op, prefix, payload); err != nil {
		return nil, err
	}

	return c.readResponse(op)
}

// QueryString writes cmd and reads a text response regardless of the data format.
func (c *Conn) QueryString(cmd string) (string, error) {
	op := "query " + cmd

	if err := c.checkCommand(op, cmd); err != nil {
		return "", err
	}

	c.logger.Debug("instrument: query", "cmd", cmd)

	if err := c.writeString(op, cmd); err != nil {
		return "", err
	}

	return c.readString(op)
}

// ReadString reads a text response with the terminator removed.
func (c *Conn) ReadString() (string, error) {
	const op = "read string"

	if err := c.ensureOpen(op); err != nil {
		return "", err
	}

	return c.readString(op)
}

// ReadStringTimeout reads a text response with the bus timeout raised to
// at least timeout for the duration of the read.
func (c *Conn) ReadStringTimeout(timeout time.Duration) (string, error) {
	const op = "read string"

	if err := c.ensureOpen(op); err != nil {
		return "", err
	}

	var s string
	err := c.withMinTimeout(op, timeout, func() error {
		var err error
		s, err = c.readString(op)

		return err
	})

	return s, err
}

// ReadResponse reads a response according to the current data format.
func (c *Conn) ReadResponse() (Response, error) {
	const op = "read response"

	if err := c.ensureOpen(op); err != nil {
		return nil, err
	}

	return c.readResponse(op)
}

// ReadBytes reads a definite-length block and returns its raw payload,
// independent of the data format.
func (c *Conn) ReadBytes() ([]byte, error) {
	const op = "read bytes"

	if err := c.ensureOpen(op); err != nil {
		return nil, err
	}

	payload, err := readBlock(c.reader)
	if err != nil {
		c.discard()
		return nil, c.fail(op, err)
	}
	c.metrics.incResponseCount()

	return payload, nil
}

// ScopedTimeout runs fn with the bus timeout raised to at least required.
// The previous timeout is restored when fn returns; it is never lowered.
func (c *Conn) ScopedTimeout(required time.Duration, fn func() error) error {
	const op = "scoped timeout"

	if err := c.ensureOpen(op); err != nil {
		return err
	}

	return c.withMinTimeout(op, required, fn)
}

// WaitForOperationComplete sends *OPC? and blocks until the instrument
// acknowledges, with the bus timeout raised to at least timeout.
// A zero timeout uses the configured OPC timeout.
//
// On timeout the pending acknowledgement is dropped with a device clear,
// so a late reply cannot be read by the next query.
func (c *Conn) WaitForOperationComplete(timeout time.Duration) error {
	const op = "wait for operation complete"

	if err := c.ensureOpen(op); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = c.cfg.opcTimeout
	}

	return c.withMinTimeout(op, timeout, func() error {
		if err := c.writeString(op, "*OPC?"); err != nil {
			return err
		}

		ack, err := c.readString(op)
		if err != nil {
			if errors.Is(err, ErrTimeout) {
				c.abandonReply(op)
			}

			return err
		}

		return c.checkOPC(op, ack)
	})
}

// Clear performs a device clear and discards buffered input.
func (c *Conn) Clear() error {
	const op = "clear"

	if err := c.ensureOpen(op); err != nil {
		return err
	}

	c.discard()
	if err := c.session.Clear(); err != nil {
		return c.fail(op, err)
	}

	return nil
}

// Reset sends *RST followed by *CLS.
func (c *Conn) Reset() error {
	if err := c.Command("*RST"); err != nil {
		return err
	}

	return c.ClearErrors()
}

// ClearErrors sends *CLS, clearing the status registers and error queue.
func (c *Conn) ClearErrors() error {
	return c.Command("*CLS")
}

// --- internal I/O ---

func (c *Conn) ensureOpen(op string) error {
	if c.closed {
		return c.wrap(ErrConnection, op, ErrClosed)
	}

	return nil
}

func (c *Conn) checkCommand(op, cmd string) error {
	if err := c.ensureOpen(op); err != nil {
		return err
	}
	if strings.TrimSpace(cmd) == "" {
		return c.wrap(ErrValidation, op, errors.New("empty command"))
	}
	if strings.ContainsAny(cmd, "\r\n") {
		return c.wrap(ErrValidation, op, errors.New("command contains a message terminator"))
	}

	return nil
}

func (c *Conn) write(op string, data []byte) error {
	n, err := c.session.Write(data)
	c.metrics.addBytesWritten(n)
	if err != nil {
		return c.fail(op, err)
	}

	return nil
}

func (c *Conn) writeString(op, cmd string) error {
	buf := make([]byte, 0, len(cmd)+1)
	buf = append(buf, cmd...)
	buf = append(buf, terminator)

	if err := c.write(op, buf); err != nil {
		return err
	}
	c.metrics.incCommandCount()

	return nil
}

func (c *Conn) writeBlock(op, prefix string, payload []byte) error {
	if err := CheckBlockLength(len(payload)); err != nil {
		return c.wrap(ErrValidation, op, err)
	}

	if err := c.write(op, append(EncodeBlock(prefix, payload), terminator)); err != nil {
		return err
	}
	c.metrics.incBlockWriteCount()

	return nil
}

func (c *Conn) readString(op string) (string, error) {
	line, err := readLine(c.reader)
	if err != nil {
		c.discard()
		return "", c.fail(op, err)
	}
	c.metrics.incResponseCount()

	return line, nil
}

func (c *Conn) readResponse(op string) (Response, error) {
	resp, err := DecodeBlock(c.format, c.cfg.byteOrder, c.reader)
	if err != nil {
		c.discard()
		return nil, c.fail(op, err)
	}
	c.metrics.incResponseCount()

	return resp, nil
}

// abandonReply clears the device so an unanswered query's late reply is
// dropped. A failed clear is logged; the caller reports the original error.
func (c *Conn) abandonReply(op string) {
	c.discard()
	if err := c.session.Clear(); err != nil {
		c.logger.Warn("instrument: clear after timeout failed", "op", op, "error", err)
	}
}

// discard drops buffered input so a partially read response never leaks
// into the next operation.
func (c *Conn) discard() {
	c.reader.Reset(countingReader{r: c.session, m: &c.metrics})
}

func (c *Conn) checkOPC(op, ack string) error {
	v, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(ack), "+"))
	if err != nil || v != 1 {
		return c.wrap(ErrParse, op, fmt.Errorf("unexpected *OPC? response %q", ack))
	}

	return nil
}

// wrap creates an Error of the given kind annotated with the instrument identity.
func (c *Conn) wrap(kind error, op string, err error) error {
	e := newError(kind, op, err)
	c.annotate(e)

	return e
}

// fail converts err into an annotated *Error. Raw transport errors are
// classified; errors that are already *Error keep their kind.
func (c *Conn) fail(op string, err error) error {
	if err == nil {
		return nil
	}

	var ie *Error
	if errors.As(err, &ie) {
		e := *ie
		if e.Op == "" {
			e.Op = op
		} else if e.Op != op {
			e.Op = op + ": " + e.Op
		}
		c.annotate(&e)

		return &e
	}

	e := newError(classify(err), op, err)
	c.annotate(e)

	return e
}

func (c *Conn) annotate(e *Error) {
	if e.Model == "" && e.Serial == "" {
		e.Model = c.idn.Model
		e.Serial = c.idn.Serial
	}

	c.metrics.incErrorCount()
	if e.Kind == ErrTimeout {
		c.metrics.incTimeoutCount()
		c.logger.Warn("instrument: timeout", "op", e.Op, "timeout", c.Timeout())
	}
}
