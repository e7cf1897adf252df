// Package sim provides an in-process simulated X-Series signal generator.
//
// An Instrument implements transport.Opener, so it can stand in for a real
// generator behind instrument.Connect. It understands the subset of SCPI
// used by this module: *IDN?, *RST, *CLS, *OPC?, FORM:DATA, SYST:ERR?,
// MEM:DATA, MEM:COPY, MEM:DEL, MMEM:CAT? and TRAC?. Any other command is
// recorded as a setting and can be read back with a query of the same header.
//
// Waveform memory is shared by all sessions of an Instrument and safe for
// concurrent use.
package sim

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-xsg/internal/queue"
	"github.com/arloliu/go-xsg/internal/util"
	"github.com/arloliu/go-xsg/logger"
	"github.com/arloliu/go-xsg/transport"
)

// Memory catalogs.
const (
	NonvolatileCatalog = "SNVWFM"
	VolatileCatalog    = "SWFM1"
	// LoadedCatalog is an alias of the volatile catalog.
	LoadedCatalog = "WFM1"
)

// scpiError is an entry of the instrument error queue.
type scpiError struct {
	code    int
	message string
}

func (e scpiError) String() string {
	return fmt.Sprintf("%+d,%q", e.code, e.message)
}

var noError = scpiError{0, "No error"}

type waveform struct {
	catalog string
	name    string
	data    []byte
}

// Instrument is a simulated signal generator.
type Instrument struct {
	idn        string
	opcDelay   time.Duration
	memorySize int64
	trace      []float64
	lock       bool
	logger     logger.Logger

	memory   *xsync.MapOf[string, waveform]
	settings *xsync.MapOf[string, string]
	errors   queue.Queue[scpiError]

	mu       sync.Mutex
	commands []string

	sessionID atomic.Int32
	open      atomic.Int32
}

// New creates a simulated instrument.
func New(opts ...Option) (*Instrument, error) {
	in := &Instrument{
		idn:        DefaultIdentification,
		memorySize: DefaultMemorySize,
		trace:      []float64{0},
		logger:     logger.GetLogger(),
		memory:     xsync.NewMapOf[string, waveform](),
		settings:   xsync.NewMapOf[string, string](),
		errors:     queue.NewLockFreeQueue[scpiError](),
	}

	for _, opt := range opts {
		if err := opt.apply(in); err != nil {
			return nil, err
		}
	}

	return in, nil
}

var _ transport.Opener = (*Instrument)(nil)

// Open implements transport.Opener. Any address is accepted.
func (in *Instrument) Open(ctx context.Context, address string) (transport.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := in.sessionID.Add(1)
	in.open.Add(1)
	in.logger.Debug("sim: session opened", "address", address, "session", id)

	return newSession(in, id), nil
}

// OpenSessions returns the number of sessions not yet closed.
func (in *Instrument) OpenSessions() int {
	return int(in.open.Load())
}

// StoreWaveform puts data into catalog as name, as MEM:DATA would.
func (in *Instrument) StoreWaveform(catalog, name string, data []byte) {
	catalog = canonicalCatalog(catalog)
	in.memory.Store(memoryKey(catalog, name), waveform{
		catalog: catalog,
		name:    name,
		data:    util.CloneSlice(data, 0),
	})
}

// Waveform returns a copy of the waveform stored in catalog as name.
// Names are matched case-insensitively.
func (in *Instrument) Waveform(catalog, name string) ([]byte, bool) {
	w, ok := in.memory.Load(memoryKey(canonicalCatalog(catalog), name))
	if !ok {
		return nil, false
	}

	return util.CloneSlice(w.data, 0), true
}

// Setting returns the arguments of the last command with the given header,
// e.g. Setting("FREQ").
func (in *Instrument) Setting(header string) (string, bool) {
	return in.settings.Load(strings.ToUpper(header))
}

// Commands returns every message received, in order. Block payloads are
// summarized by their length.
func (in *Instrument) Commands() []string {
	in.mu.Lock()
	defer in.mu.Unlock()

	return slices.Clone(in.commands)
}

// ErrorCount returns the number of entries in the error queue.
func (in *Instrument) ErrorCount() int {
	return in.errors.Length()
}

func (in *Instrument) record(msg string) {
	in.mu.Lock()
	in.commands = append(in.commands, msg)
	in.mu.Unlock()
}

func (in *Instrument) pushError(code int, message string) {
	in.logger.Debug("sim: error queued", "code", code, "message", message)
	in.errors.Enqueue(scpiError{code: code, message: message})
}

func (in *Instrument) popError() scpiError {
	if e, ok := in.errors.Dequeue(); ok {
		return e
	}

	return noError
}

func (in *Instrument) clearErrors() {
	for !in.errors.IsEmpty() {
		in.errors.Dequeue()
	}
}

// catalog lists the entries of a catalog sorted by name.
func (in *Instrument) catalog(catalog string) []waveform {
	catalog = canonicalCatalog(catalog)

	var entries []waveform
	in.memory.Range(func(_ string, w waveform) bool {
		if w.catalog == catalog {
			entries = append(entries, w)
		}

		return true
	})

	slices.SortFunc(entries, func(a, b waveform) int {
		return strings.Compare(a.name, b.name)
	})

	return entries
}

func (in *Instrument) usedMemory() int64 {
	var used int64
	in.memory.Range(func(_ string, w waveform) bool {
		used += int64(len(w.data))
		return true
	})

	return used
}

func canonicalCatalog(catalog string) string {
	catalog = strings.ToUpper(strings.TrimRight(catalog, ":"))
	if catalog == LoadedCatalog {
		return VolatileCatalog
	}

	return catalog
}

func memoryKey(catalog, name string) string {
	return catalog + ":" + strings.ToUpper(name)
}
