package mxg

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/arloliu/go-xsg/instrument"
	"github.com/arloliu/go-xsg/logger"
	"github.com/arloliu/go-xsg/profile"
	"github.com/arloliu/go-xsg/transport"
)

// Generator is an MXG/EXG signal generator.
type Generator struct {
	conn         *instrument.Conn
	profile      profile.Profile
	profiles     *profile.Set
	fixedProfile bool
	logger       logger.Logger
}

// New identifies the instrument behind conn and selects its family profile.
// The profile's waveform name limit replaces the one configured on conn.
// The Generator takes ownership of conn.
func New(conn *instrument.Conn, opts ...Option) (*Generator, error) {
	g := &Generator{
		conn:     conn,
		profiles: profile.Default(),
		logger:   logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(g); err != nil {
			return nil, err
		}
	}

	id, err := conn.Identify()
	if err != nil {
		return nil, err
	}

	if !g.fixedProfile {
		p, ok := g.profiles.Lookup(id.Model)
		if !ok {
			g.logger.Warn("mxg: unknown model, using fallback profile", "model", id.Model, "family", p.Family)
		}
		if p.Family == "" {
			return nil, &instrument.Error{
				Kind:   instrument.ErrValidation,
				Op:     "select profile",
				Model:  id.Model,
				Serial: id.Serial,
				Err:    fmt.Errorf("no profile for model %q", id.Model),
			}
		}
		g.profile = p
	}

	// the connection validates names on its own download path
	if err := conn.SetMaxNameLength(g.profile.MaxNameLength); err != nil {
		return nil, err
	}

	g.logger = g.logger.With("address", conn.Address(), "model", id.Model, "serial", id.Serial)
	g.logger.Info("mxg: generator ready", "family", g.profile.Family, "firmware", id.Firmware)

	return g, nil
}

// Connect opens conn with connOpts and creates a Generator on it. The
// connection is closed again when identification fails.
func Connect(ctx context.Context, opener transport.Opener, address string, connOpts []instrument.ConnOption, opts ...Option) (*Generator, error) {
	conn, err := instrument.Connect(ctx, opener, address, connOpts...)
	if err != nil {
		return nil, err
	}

	g, err := New(conn, opts...)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return g, nil
}

// Conn returns the underlying instrument connection.
func (g *Generator) Conn() *instrument.Conn { return g.conn }

// Profile returns the family profile in use.
func (g *Generator) Profile() profile.Profile { return g.profile }

// Identification returns the identification read by New.
func (g *Generator) Identification() instrument.Identification {
	return g.conn.Identification()
}

// Close closes the underlying connection.
func (g *Generator) Close() error {
	return g.conn.Close()
}

// DownloadArbFile downloads the waveform file at path into catalog as name
// and waits for the instrument to finish storing it. A zero timeout uses the
// profile download timeout.
func (g *Generator) DownloadArbFile(catalog, name, path string, timeout time.Duration) error {
	if err := g.checkName("download arb file", name); err != nil {
		return err
	}

	if err := g.conn.DownloadWaveform(catalog, name, path, g.downloadTimeout(timeout)); err != nil {
		return err
	}
	g.logger.Info("mxg: waveform downloaded", "catalog", catalog, "name", name, "path", path)

	return nil
}

// DownloadArbBytes downloads data into catalog as name. See DownloadArbFile.
func (g *Generator) DownloadArbBytes(catalog, name string, data []byte, timeout time.Duration) error {
	if err := g.checkName("download arb", name); err != nil {
		return err
	}

	if err := g.conn.DownloadWaveformBytes(catalog, name, data, g.downloadTimeout(timeout)); err != nil {
		return err
	}
	g.logger.Info("mxg: waveform downloaded", "catalog", catalog, "name", name, "bytes", len(data))

	return nil
}

// LoadWaveform copies name from non-volatile to volatile memory so it can
// be played back.
func (g *Generator) LoadWaveform(name string) error {
	if err := g.checkName("load waveform", name); err != nil {
		return err
	}

	return g.conn.Command(fmt.Sprintf(`MEM:COPY "%s:%s", "%s:%s"`,
		g.profile.NonvolatileCatalog, name, g.profile.VolatileCatalog, name))
}

// SelectWaveform selects the waveform played by the arb generator.
func (g *Generator) SelectWaveform(name string) error {
	if name == "" || strings.Contains(name, `"`) {
		return g.validationError("select waveform", fmt.Errorf("invalid waveform name %q", name))
	}

	return g.conn.Command(`SOUR:RADio:ARB:WAVeform "` + name + `"`)
}

// MemoryCatalog queries the named memory catalog.
func (g *Generator) MemoryCatalog(name string) (instrument.Catalog, error) {
	return g.conn.Catalog(name)
}

// IsWaveformLoaded reports whether name is loaded for playback.
func (g *Generator) IsWaveformLoaded(name string) (bool, error) {
	return g.conn.CatalogContains(g.profile.LoadedCatalog, name, 0)
}

// HasWaveform reports whether name is stored in volatile or non-volatile memory.
func (g *Generator) HasWaveform(name string) (bool, error) {
	ok, err := g.IsInVolatileMemory(name)
	if err != nil || ok {
		return ok, err
	}

	return g.IsInNonvolatileMemory(name)
}

// IsInVolatileMemory reports whether name is in volatile (playback) memory.
func (g *Generator) IsInVolatileMemory(name string) (bool, error) {
	return g.conn.CatalogContains(g.profile.VolatileCatalog, name, 0)
}

// IsInNonvolatileMemory reports whether name is in non-volatile memory.
func (g *Generator) IsInNonvolatileMemory(name string) (bool, error) {
	return g.conn.CatalogContains(g.profile.NonvolatileCatalog, name, 0)
}

// IsInCatalog reports whether catalog holds name. A positive size must match
// the stored size too.
func (g *Generator) IsInCatalog(catalog, name string, size int64) (bool, error) {
	return g.conn.CatalogContains(catalog, name, size)
}

// SetArbOutput turns the arbitrary waveform generator on or off.
func (g *Generator) SetArbOutput(on bool) error {
	return g.conn.Command("RAD:ARB " + onOff(on))
}

// SetModulationOutput turns modulation of the RF output on or off.
func (g *Generator) SetModulationOutput(on bool) error {
	return g.conn.Command("OUTP:MOD " + onOff(on))
}

// SetRFOutput turns the RF output on or off.
func (g *Generator) SetRFOutput(on bool) error {
	return g.conn.Command("OUTP " + onOff(on))
}

// SetFrequency sets the carrier frequency in Hz.
func (g *Generator) SetFrequency(hz float64) error {
	if hz <= 0 || math.IsNaN(hz) || math.IsInf(hz, 0) {
		return g.validationError("set frequency", fmt.Errorf("invalid frequency %v", hz))
	}

	return g.conn.Command("FREQ " + formatFloat(hz))
}

// SetPower sets the RF output power in dBm.
func (g *Generator) SetPower(dbm float64) error {
	if math.IsNaN(dbm) || math.IsInf(dbm, 0) {
		return g.validationError("set power", fmt.Errorf("invalid power %v", dbm))
	}

	return g.conn.Command("POW " + formatFloat(dbm))
}

func (g *Generator) checkName(op, name string) error {
	if err := instrument.ValidateWaveformName(name, g.profile.MaxNameLength); err != nil {
		return g.validationError(op+" "+name, err)
	}

	return nil
}

func (g *Generator) downloadTimeout(timeout time.Duration) time.Duration {
	if timeout > 0 {
		return timeout
	}

	return g.profile.DownloadTimeout()
}

func (g *Generator) validationError(op string, err error) error {
	id := g.conn.Identification()

	return &instrument.Error{
		Kind:   instrument.ErrValidation,
		Op:     op,
		Model:  id.Model,
		Serial: id.Serial,
		Err:    err,
	}
}

func onOff(on bool) string {
	if on {
		return "1"
	}

	return "0"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
