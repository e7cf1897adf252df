package instrument

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-xsg/fileutil"
	"github.com/arloliu/go-xsg/logger"
)

// Default values. The I/O and completion timeouts match the VISA defaults
// used by X-Series instrument drivers.
const (
	DefaultTimeout         = 2000 * time.Millisecond
	DefaultOPCTimeout      = 2000 * time.Millisecond
	DefaultDownloadTimeout = 5000 * time.Millisecond

	// DefaultMaxNameLength is the waveform name limit of MXG/EXG generators.
	DefaultMaxNameLength = 23

	DefaultReadBufferSize = 4096

	MinReadBufferSize = 16
)

// DownloadObserver is notified on each waveform download phase change.
// err is non-nil only for PhaseFailed.
type DownloadObserver func(target string, phase DownloadPhase, err error)

// Config holds the configuration of a Conn.
type Config struct {
	timeout         time.Duration
	opcTimeout      time.Duration
	downloadTimeout time.Duration
	maxNameLength   int
	readBufferSize  int
	byteOrder       binary.ByteOrder
	byteSource      fileutil.ByteSource
	observer        DownloadObserver
	logger          logger.Logger
}

// NewConfig creates a Config with defaults and applies opts in order.
func NewConfig(opts ...ConnOption) (*Config, error) {
	cfg := &Config{
		timeout:         DefaultTimeout,
		opcTimeout:      DefaultOPCTimeout,
		downloadTimeout: DefaultDownloadTimeout,
		maxNameLength:   DefaultMaxNameLength,
		readBufferSize:  DefaultReadBufferSize,
		byteOrder:       binary.BigEndian,
		byteSource:      fileutil.OSSource{},
		logger:          logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Timeout returns the I/O timeout applied when the session is opened.
func (cfg *Config) Timeout() time.Duration { return cfg.timeout }

// OPCTimeout returns the default minimum timeout for *OPC? synchronization.
func (cfg *Config) OPCTimeout() time.Duration { return cfg.opcTimeout }

// DownloadTimeout returns the default minimum completion timeout of a waveform download.
func (cfg *Config) DownloadTimeout() time.Duration { return cfg.downloadTimeout }

// MaxNameLength returns the waveform name length limit.
func (cfg *Config) MaxNameLength() int { return cfg.maxNameLength }

// ReadBufferSize returns the size of the response read buffer.
func (cfg *Config) ReadBufferSize() int { return cfg.readBufferSize }

// ByteOrder returns the byte order used to decode numeric blocks.
func (cfg *Config) ByteOrder() binary.ByteOrder { return cfg.byteOrder }

// ByteSource returns the source used to load waveform files.
func (cfg *Config) ByteSource() fileutil.ByteSource { return cfg.byteSource }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// ConnOption is a functional option for configuring a Conn.
type ConnOption interface {
	apply(*Config) error
}

type connOptFunc func(*Config) error

func (f connOptFunc) apply(cfg *Config) error { return f(cfg) }

// WithTimeout sets the I/O timeout applied when the session is opened.
func WithTimeout(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("instrument: timeout must be positive")
		}
		cfg.timeout = d

		return nil
	})
}

// WithOPCTimeout sets the default minimum timeout for WaitForOperationComplete.
func WithOPCTimeout(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("instrument: OPC timeout must be positive")
		}
		cfg.opcTimeout = d

		return nil
	})
}

// WithDownloadTimeout sets the default minimum completion timeout of waveform downloads.
func WithDownloadTimeout(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("instrument: download timeout must be positive")
		}
		cfg.downloadTimeout = d

		return nil
	})
}

// WithMaxNameLength sets the waveform name length limit of the instrument family.
func WithMaxNameLength(n int) ConnOption {
	return connOptFunc(func(cfg *Config) error {
		if n < 1 {
			return fmt.Errorf("instrument: max name length %d must be >= 1", n)
		}
		cfg.maxNameLength = n

		return nil
	})
}

// WithReadBufferSize sets the size of the response read buffer.
func WithReadBufferSize(size int) ConnOption {
	return connOptFunc(func(cfg *Config) error {
		if size < MinReadBufferSize {
			return fmt.Errorf("instrument: read buffer size %d must be >= %d", size, MinReadBufferSize)
		}
		cfg.readBufferSize = size

		return nil
	})
}

// WithByteOrder sets the byte order of numeric blocks. The default is big
// endian, matching FORM:BORD NORM.
func WithByteOrder(order binary.ByteOrder) ConnOption {
	return connOptFunc(func(cfg *Config) error {
		if order == nil {
			return errors.New("instrument: byte order must not be nil")
		}
		cfg.byteOrder = order

		return nil
	})
}

// WithByteSource sets the source used to load waveform files.
func WithByteSource(src fileutil.ByteSource) ConnOption {
	return connOptFunc(func(cfg *Config) error {
		if src == nil {
			return errors.New("instrument: byte source must not be nil")
		}
		cfg.byteSource = src

		return nil
	})
}

// WithDownloadObserver registers a callback for waveform download phases.
func WithDownloadObserver(fn DownloadObserver) ConnOption {
	return connOptFunc(func(cfg *Config) error {
		cfg.observer = fn

		return nil
	})
}

// WithLogger sets the logger for the connection.
func WithLogger(l logger.Logger) ConnOption {
	return connOptFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("instrument: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
