package instrument

import (
	"io"
	"sync/atomic"
)

// ConnectionMetrics contains atomic counters for a Conn.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type ConnectionMetrics struct {
	// CommandCount indicates the number of text commands written.
	CommandCount atomic.Uint64
	// BlockWriteCount indicates the number of framed blocks written.
	BlockWriteCount atomic.Uint64
	// ResponseCount indicates the number of responses read.
	ResponseCount atomic.Uint64
	// BytesWritten indicates the number of bytes written to the bus.
	BytesWritten atomic.Uint64
	// BytesRead indicates the number of bytes read from the bus.
	BytesRead atomic.Uint64
	// TimeoutCount indicates the number of operations that timed out.
	TimeoutCount atomic.Uint64
	// ErrorCount indicates the number of failed operations, timeouts included.
	ErrorCount atomic.Uint64
}

func (m *ConnectionMetrics) incCommandCount() {
	m.CommandCount.Add(1)
}

func (m *ConnectionMetrics) incBlockWriteCount() {
	m.BlockWriteCount.Add(1)
}

func (m *ConnectionMetrics) incResponseCount() {
	m.ResponseCount.Add(1)
}

func (m *ConnectionMetrics) addBytesWritten(n int) {
	m.BytesWritten.Add(uint64(n))
}

func (m *ConnectionMetrics) incTimeoutCount() {
	m.TimeoutCount.Add(1)
}

func (m *ConnectionMetrics) incErrorCount() {
	m.ErrorCount.Add(1)
}

// countingReader counts the bytes read from the session.
type countingReader struct {
	r io.Reader
	m *ConnectionMetrics
}

func (cr countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.m.BytesRead.Add(uint64(n))
	}

	return n, err
}
