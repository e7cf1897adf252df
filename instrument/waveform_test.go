package instrument

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-xsg/fileutil"
)

type phaseEvent struct {
	target string
	phase  DownloadPhase
	err    error
}

func recordPhases(events *[]phaseEvent) ConnOption {
	return WithDownloadObserver(func(target string, phase DownloadPhase, err error) {
		*events = append(*events, phaseEvent{target: target, phase: phase, err: err})
	})
}

func TestValidateWaveformName(t *testing.T) {
	tests := []struct {
		description string
		name        string
		valid       bool
	}{
		{description: "short", name: "TONE", valid: true},
		{description: "at limit", name: strings.Repeat("A", 23), valid: true},
		{description: "over limit", name: strings.Repeat("A", 24), valid: false},
		{description: "empty", name: "", valid: false},
		{description: "quote", name: `A"B`, valid: false},
		{description: "colon", name: "WFM1:A", valid: false},
		{description: "newline", name: "A\nB", valid: false},
		{description: "multibyte at limit", name: strings.Repeat("é", 23), valid: true},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			err := ValidateWaveformName(tt.name, 23)
			if tt.valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}

	require.ErrorIs(t, ValidateWaveformName(strings.Repeat("A", 24), 23), ErrNameTooLong)
}

func TestStoreCommand(t *testing.T) {
	assert.Equal(t, `MEM:DATA "SNVWFM:TONE",`, StoreCommand("SNVWFM", "TONE"))
	assert.Equal(t, `MEM:DATA "WFM1:TONE",`, StoreCommand("WFM1:", "TONE"))
}

func TestConn_DownloadWaveformBytes(t *testing.T) {
	s := newFakeSession()
	s.respond = opcResponder("")

	var events []phaseEvent
	c := newTestConn(t, s, WithTimeout(time.Second), recordPhases(&events))

	err := c.DownloadWaveformBytes("SNVWFM", "TONE", []byte{0x01, 0x02, 0x03, 0x04}, 8*time.Second)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"MEM:DATA \"SNVWFM:TONE\",#14\x01\x02\x03\x04\n",
		"*OPC?\n",
	}, s.written())
	assert.Equal(t, []time.Duration{time.Second, 8 * time.Second, time.Second}, s.timeouts)

	phases := make([]DownloadPhase, 0, len(events))
	for _, e := range events {
		assert.Equal(t, "SNVWFM:TONE", e.target)
		require.NoError(t, e.err)
		phases = append(phases, e.phase)
	}
	assert.Equal(t, []DownloadPhase{PhaseIdle, PhaseSending, PhaseAwaitingCompletion, PhaseDone}, phases)
}

func TestConn_DownloadWaveform_NameTooLong(t *testing.T) {
	s := newFakeSession()
	reads := 0
	src := fileutil.ByteSourceFunc(func(string) ([]byte, error) {
		reads++
		return []byte{0, 0, 0, 0}, nil
	})

	var events []phaseEvent
	c := newTestConn(t, s, WithByteSource(src), recordPhases(&events))

	err := c.DownloadWaveform("SNVWFM", strings.Repeat("N", 24), "tone.bin", 0)
	require.ErrorIs(t, err, ErrValidation)
	require.ErrorIs(t, err, ErrNameTooLong)

	assert.Zero(t, reads, "file must not be read")
	assert.Empty(t, s.writes, "nothing may reach the bus")
	assert.Empty(t, events)

	s.respond = opcResponder("")
	require.NoError(t, c.DownloadWaveform("SNVWFM", strings.Repeat("N", 23), "tone.bin", 0))
	assert.Equal(t, 1, reads)
}

func TestConn_DownloadWaveform_CustomLimit(t *testing.T) {
	s := newFakeSession()
	s.respond = opcResponder("")
	c := newTestConn(t, s, WithMaxNameLength(8))

	require.ErrorIs(t, c.DownloadWaveformBytes("WFM1", "NINECHARS", []byte{0}, 0), ErrNameTooLong)
	require.NoError(t, c.DownloadWaveformBytes("WFM1", "EIGHTCHR", []byte{0}, 0))

	require.ErrorIs(t, c.SetMaxNameLength(0), ErrValidation)
	require.NoError(t, c.SetMaxNameLength(31))
	assert.Equal(t, 31, c.Config().MaxNameLength())
	require.NoError(t, c.DownloadWaveformBytes("WFM1", strings.Repeat("L", 31), []byte{0}, 0))
	require.ErrorIs(t, c.DownloadWaveformBytes("WFM1", strings.Repeat("L", 32), []byte{0}, 0), ErrNameTooLong)

	require.NoError(t, c.Close())
	require.ErrorIs(t, c.SetMaxNameLength(8), ErrClosed)
}

func TestConn_DownloadWaveform_File(t *testing.T) {
	s := newFakeSession()
	s.respond = opcResponder("")

	var gotPath string
	src := fileutil.ByteSourceFunc(func(path string) ([]byte, error) {
		gotPath = path
		return []byte("IQIQ"), nil
	})
	c := newTestConn(t, s, WithByteSource(src))

	require.NoError(t, c.DownloadWaveform("WFM1", "IQ", "/data/iq.bin", 0))
	assert.Equal(t, "/data/iq.bin", gotPath)
	assert.Equal(t, "MEM:DATA \"WFM1:IQ\",#14IQIQ\n", s.written()[0])
}

func TestConn_DownloadWaveform_FileNotFound(t *testing.T) {
	s := newFakeSession()
	c := newTestConn(t, s)

	err := c.DownloadWaveform("WFM1", "IQ", t.TempDir()+"/missing.bin", 0)
	require.ErrorIs(t, err, ErrValidation)
	require.ErrorIs(t, err, fileutil.ErrNotFound)
	assert.Empty(t, s.writes)
}

func TestConn_DownloadWaveform_CompletionTimeout(t *testing.T) {
	s := newFakeSession()
	s.respond = opcResponder("Agilent Technologies,N5182A,US51990230,A.01.86")

	var events []phaseEvent
	c := newTestConn(t, s, WithTimeout(time.Second), recordPhases(&events))
	_, err := c.Identify()
	require.NoError(t, err)
	require.NoError(t, c.SetDataFormat(Int32))

	// the instrument stays silent after the payload
	s.respond = nil
	err = c.DownloadWaveformBytes("SNVWFM", "TONE", []byte{1, 2, 3, 4}, 5*time.Second)
	require.ErrorIs(t, err, ErrTimeout)
	assert.Contains(t, err.Error(), "N5182A")

	assert.Equal(t, Int32, c.DataFormat())
	assert.Equal(t, time.Second, c.Timeout())

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, PhaseFailed, last.phase)
	require.ErrorIs(t, last.err, ErrTimeout)
}

func TestConn_DownloadWaveform_WriteFailure(t *testing.T) {
	s := newFakeSession()
	s.writeErr = errBoom

	var events []phaseEvent
	c := newTestConn(t, s, recordPhases(&events))

	err := c.DownloadWaveformBytes("SNVWFM", "TONE", []byte{1}, 0)
	require.ErrorIs(t, err, ErrTransport)

	phases := make([]DownloadPhase, 0, len(events))
	for _, e := range events {
		phases = append(phases, e.phase)
	}
	assert.Equal(t, []DownloadPhase{PhaseIdle, PhaseSending, PhaseFailed}, phases)
}

func TestConn_DownloadWaveform_Validation(t *testing.T) {
	s := newFakeSession()
	c := newTestConn(t, s)

	require.ErrorIs(t, c.DownloadWaveformBytes("", "TONE", nil, 0), ErrValidation)
	require.ErrorIs(t, c.DownloadWaveformBytes(":", "TONE", nil, 0), ErrValidation)
	require.ErrorIs(t, c.DownloadWaveformBytes("WFM1", "", nil, 0), ErrValidation)

	require.NoError(t, c.Close())
	require.ErrorIs(t, c.DownloadWaveformBytes("WFM1", "TONE", nil, 0), ErrClosed)
	assert.Empty(t, s.writes)
}

func TestDownloadPhase_String(t *testing.T) {
	assert.Equal(t, "Idle", PhaseIdle.String())
	assert.Equal(t, "AwaitingCompletion", PhaseAwaitingCompletion.String())
	assert.Equal(t, "Failed", PhaseFailed.String())
	assert.Equal(t, "Unknown", DownloadPhase(42).String())
}
