package sim

import (
	"errors"
	"time"

	"github.com/arloliu/go-xsg/logger"
)

// Default simulator settings.
const (
	DefaultIdentification = "Agilent Technologies,N5182B,MY53050101,B.01.86"
	DefaultMemorySize     = 1 << 30
)

// Option is a functional option for configuring an Instrument.
type Option interface {
	apply(*Instrument) error
}

type optFunc func(*Instrument) error

func (f optFunc) apply(in *Instrument) error { return f(in) }

// WithIdentification sets the *IDN? response.
func WithIdentification(idn string) Option {
	return optFunc(func(in *Instrument) error {
		if idn == "" {
			return errors.New("sim: identification must not be empty")
		}
		in.idn = idn

		return nil
	})
}

// WithCompletionDelay sets how long the instrument takes to acknowledge *OPC?.
// A read whose timeout is shorter than the remaining delay times out.
func WithCompletionDelay(d time.Duration) Option {
	return optFunc(func(in *Instrument) error {
		if d < 0 {
			return errors.New("sim: completion delay must not be negative")
		}
		in.opcDelay = d

		return nil
	})
}

// WithMemorySize sets the waveform memory size reported by MMEM:CAT?.
func WithMemorySize(size int64) Option {
	return optFunc(func(in *Instrument) error {
		if size <= 0 {
			return errors.New("sim: memory size must be positive")
		}
		in.memorySize = size

		return nil
	})
}

// WithTrace sets the values returned by TRAC?.
func WithTrace(values ...float64) Option {
	return optFunc(func(in *Instrument) error {
		in.trace = append([]float64(nil), values...)

		return nil
	})
}

// WithExclusiveLock makes sessions hold an exclusive lock until released.
func WithExclusiveLock() Option {
	return optFunc(func(in *Instrument) error {
		in.lock = true

		return nil
	})
}

// WithLogger sets the logger of the simulator.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(in *Instrument) error {
		if l == nil {
			return errors.New("sim: logger must not be nil")
		}
		in.logger = l

		return nil
	})
}
