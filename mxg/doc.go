// Package mxg controls Keysight (Agilent) MXG and EXG X-Series vector
// signal generators: arbitrary waveform download, memory catalog queries
// and the basic RF output settings.
//
// A Generator wraps an instrument.Conn. New identifies the instrument and
// selects the family profile (waveform naming limit, memory catalogs and
// default download timeout) from its model number:
//
//	conn, err := instrument.Connect(ctx, lan.NewOpener(), "TCPIP0::192.168.1.20::5025::SOCKET")
//	if err != nil {
//		return err
//	}
//	gen, err := mxg.New(conn)
//	if err != nil {
//		return err
//	}
//	defer gen.Close()
//
//	err = gen.DownloadArbFile("SNVWFM", "TONE_1MHZ", "/data/tone.bin", 0)
//
// Like instrument.Conn, a Generator is not goroutine-safe.
package mxg
