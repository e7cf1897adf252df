package instrument

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// DownloadPhase is the state of a waveform download.
type DownloadPhase int

const (
	PhaseIdle DownloadPhase = iota
	PhaseSending
	PhaseAwaitingCompletion
	PhaseDone
	PhaseFailed
)

func (p DownloadPhase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseSending:
		return "Sending"
	case PhaseAwaitingCompletion:
		return "AwaitingCompletion"
	case PhaseDone:
		return "Done"
	case PhaseFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// StoreCommand returns the MEM:DATA command prefix storing a waveform
// named name in catalog. A trailing ':' on catalog is ignored.
func StoreCommand(catalog, name string) string {
	return `MEM:DATA "` + strings.TrimRight(catalog, ":") + ":" + name + `",`
}

// ValidateWaveformName checks name against the instrument naming limit.
func ValidateWaveformName(name string, limit int) error {
	if name == "" {
		return errors.New("empty waveform name")
	}
	if strings.ContainsAny(name, "\":\r\n") {
		return fmt.Errorf("waveform name %q contains a reserved character", name)
	}
	if n := utf8.RuneCountInString(name); n > limit {
		return fmt.Errorf("%w: %q has %d characters, limit is %d", ErrNameTooLong, name, n, limit)
	}

	return nil
}

// DownloadWaveform loads the file at path and stores it as name in the
// instrument catalog (e.g. "SNVWFM" or "WFM1"), then waits for *OPC? with
// the bus timeout raised to at least timeout. A zero timeout uses the
// configured download timeout.
//
// The name is validated before any file or bus I/O. A failed download is
// not retried: the instrument may hold a partial file.
func (c *Conn) DownloadWaveform(catalog, name, path string, timeout time.Duration) error {
	op := "download waveform " + name

	if err := c.checkDownload(op, catalog, name); err != nil {
		return err
	}

	data, err := c.cfg.byteSource.ReadFile(path)
	if err != nil {
		return c.wrap(ErrValidation, op, fmt.Errorf("load %s: %w", path, err))
	}

	return c.download(op, catalog, name, data, timeout)
}

// SetMaxNameLength replaces the waveform name limit, e.g. with the limit
// of the identified instrument family.
func (c *Conn) SetMaxNameLength(n int) error {
	const op = "set max name length"

	if err := c.ensureOpen(op); err != nil {
		return err
	}
	if n < 1 {
		return c.wrap(ErrValidation, op, fmt.Errorf("max name length %d must be >= 1", n))
	}
	c.cfg.maxNameLength = n

	return nil
}

// DownloadWaveformBytes stores data as name in the instrument catalog.
// See DownloadWaveform.
func (c *Conn) DownloadWaveformBytes(catalog, name string, data []byte, timeout time.Duration) error {
	op := "download waveform " + name

	if err := c.checkDownload(op, catalog, name); err != nil {
		return err
	}

	return c.download(op, catalog, name, data, timeout)
}

func (c *Conn) checkDownload(op, catalog, name string) error {
	if err := c.ensureOpen(op); err != nil {
		return err
	}
	if strings.TrimRight(catalog, ":") == "" {
		return c.wrap(ErrValidation, op, errors.New("empty catalog name"))
	}
	if err := ValidateWaveformName(name, c.cfg.maxNameLength); err != nil {
		return c.wrap(ErrValidation, op, err)
	}

	return nil
}

func (c *Conn) download(op, catalog, name string, data []byte, timeout time.Duration) error {
	if err := CheckBlockLength(len(data)); err != nil {
		return c.wrap(ErrValidation, op, err)
	}
	if timeout <= 0 {
		timeout = c.cfg.downloadTimeout
	}

	target := strings.TrimRight(catalog, ":") + ":" + name
	c.notify(target, PhaseIdle, nil)

	c.notify(target, PhaseSending, nil)
	c.logger.Debug("instrument: download waveform", "target", target, "bytes", len(data))

	if err := c.writeBlock(op, StoreCommand(catalog, name), data); err != nil {
		c.notify(target, PhaseFailed, err)
		return err
	}

	c.notify(target, PhaseAwaitingCompletion, nil)

	if err := c.WaitForOperationComplete(timeout); err != nil {
		c.notify(target, PhaseFailed, err)
		return err
	}

	c.notify(target, PhaseDone, nil)

	return nil
}

func (c *Conn) notify(target string, phase DownloadPhase, err error) {
	c.logger.Debug("instrument: download phase", "target", target, "phase", phase.String())

	if c.cfg.observer != nil {
		c.cfg.observer(target, phase, err)
	}
}
