// Package instrument implements the SCPI communication core for bench
// instruments such as Keysight/Agilent X-Series signal generators.
//
// A [Conn] owns one bus session ([transport.Session]) and provides:
//
//   - connection lifecycle: [Connect], [Conn.Identify], [Conn.Close]
//   - data format negotiation: [Conn.SetDataFormat]
//   - text and IEEE-488.2 block I/O: [Conn.Command], [Conn.WriteBlock],
//     [Conn.Query], [Conn.QueryBlock], [Conn.ReadBytes]
//   - completion synchronization with a scoped minimum timeout:
//     [Conn.WaitForOperationComplete]
//   - memory catalogs: [Conn.Catalog], [ParseCatalog]
//   - waveform download: [Conn.DownloadWaveform]
//
// # Block format
//
// Binary payloads use the IEEE-488.2 definite-length arbitrary block:
//
//	#<ndigits><length><payload>
//
// where ndigits is a single digit 1-9 giving the number of digits in length.
// Numeric responses in INT,32 / REAL,32 / REAL,64 format arrive as blocks and
// are decoded into [Int32s], [Float32s] or [Float64s]; ASCII responses are
// returned as [Text].
//
// # Concurrency
//
// The instrument bus is half-duplex: each operation writes once and reads at
// most once. A Conn performs no locking; callers must serialize access.
//
// # Errors
//
// Every failure is an [*Error] whose Kind is one of [ErrConnection],
// [ErrFraming], [ErrParse], [ErrValidation], [ErrTimeout] or [ErrTransport],
// so callers can branch with errors.Is. Errors carry the instrument model and
// serial number once the instrument has been identified.
package instrument
