package lan

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-xsg/logger"
)

const (
	// DefaultPort is the raw SCPI socket port used by Keysight/Agilent instruments.
	DefaultPort = 5025

	DefaultConnectTimeout = 2 * time.Second
	DefaultTimeout        = 2 * time.Second
	DefaultClearQuiet     = 50 * time.Millisecond
)

// Config holds the settings shared by every session an Opener creates.
type Config struct {
	connectTimeout time.Duration
	timeout        time.Duration
	clearQuiet     time.Duration
	logger         logger.Logger
}

// ConnectTimeout returns the TCP dial timeout.
func (cfg *Config) ConnectTimeout() time.Duration { return cfg.connectTimeout }

// Timeout returns the initial I/O timeout of new sessions.
func (cfg *Config) Timeout() time.Duration { return cfg.timeout }

// ClearQuiet returns the silence interval that ends a Clear drain.
func (cfg *Config) ClearQuiet() time.Duration { return cfg.clearQuiet }

// Option is a functional option for configuring an Opener.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithConnectTimeout sets the TCP dial timeout.
func WithConnectTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("lan: connect timeout must be positive")
		}
		cfg.connectTimeout = d

		return nil
	})
}

// WithTimeout sets the initial I/O timeout of new sessions.
// Zero disables the timeout.
func WithTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 0 {
			return fmt.Errorf("lan: timeout %v must not be negative", d)
		}
		cfg.timeout = d

		return nil
	})
}

// WithClearQuiet sets how long the line must stay silent before Clear returns.
func WithClearQuiet(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("lan: clear quiet interval must be positive")
		}
		cfg.clearQuiet = d

		return nil
	})
}

// WithLogger sets the logger for the opener and its sessions.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("lan: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
