package sim

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/arloliu/go-xsg/instrument"
)

// SCPI error codes reported through SYST:ERR?.
const (
	errDataTypeMismatch = -104
	errMissingParameter = -109
	errUndefinedHeader  = -113
	errInvalidBlockData = -161
	errIllegalParameter = -224
	errFileNameNotFound = -256
	errMemoryFull       = -321
)

// execute runs a single message. Called with s.mu held.
func (s *session) execute(msg message) {
	in := s.inst

	text := strings.TrimSpace(msg.text)
	if msg.hasBlock {
		in.record(fmt.Sprintf("%s#<%d bytes>", text, len(msg.block)))
	} else {
		in.record(text)
	}

	header, args, _ := strings.Cut(text, " ")
	header = strings.ToUpper(header)
	args = strings.TrimSpace(args)

	if msg.hasBlock {
		s.executeBlock(header, args, msg.block)
		return
	}

	switch header {
	case "":
		return
	case "*IDN?":
		s.replyText(in.idn)
	case "*RST":
		s.format = instrument.ASCII
		in.settings.Clear()
	case "*CLS":
		in.clearErrors()
	case "*OPC?":
		s.reply([]byte("1\n"), in.opcDelay)
	case "*OPC", "*WAI":
	case "FORM", "FORM:DATA", "FORMAT", "FORMAT:DATA":
		f, err := instrument.ParseDataFormat(args)
		if err != nil {
			in.pushError(errIllegalParameter, "Illegal parameter value")
			return
		}
		s.format = f
	case "FORM?", "FORM:DATA?", "FORMAT?", "FORMAT:DATA?":
		s.replyText(s.format.SCPI())
	case "SYST:ERR?", "SYST:ERR:NEXT?", "SYSTEM:ERROR?", "SYSTEM:ERROR:NEXT?":
		s.replyText(in.popError().String())
	case "MEM:COPY", "MEMORY:COPY":
		s.copyWaveform(args)
	case "MEM:DEL", "MEM:DELETE", "MEMORY:DELETE":
		s.deleteWaveform(args)
	case "MMEM:CAT?", "MEM:CAT?", "MMEMORY:CATALOG?", "MEMORY:CATALOG?":
		s.listCatalog(args)
	case "TRAC?", "TRACE?", "TRAC:DATA?", "TRACE:DATA?":
		s.replyTrace()
	default:
		if name, ok := strings.CutSuffix(header, "?"); ok {
			v, ok := in.settings.Load(name)
			if !ok {
				in.pushError(errUndefinedHeader, "Undefined header")
				return
			}
			s.replyText(v)

			return
		}
		in.settings.Store(header, args)
	}
}

func (s *session) executeBlock(header, args string, data []byte) {
	in := s.inst

	switch header {
	case "MEM:DATA", "MEMORY:DATA", "MMEM:DATA", "MMEMORY:DATA":
	default:
		in.pushError(errDataTypeMismatch, "Data type error")
		return
	}

	targets := quotedArgs(args)
	if len(targets) != 1 {
		in.pushError(errMissingParameter, "Missing parameter")
		return
	}

	catalog, name, ok := strings.Cut(targets[0], ":")
	if !ok || name == "" {
		in.pushError(errIllegalParameter, "Illegal parameter value")
		return
	}

	if in.usedMemory()+int64(len(data)) > in.memorySize {
		in.pushError(errMemoryFull, "Out of memory")
		return
	}

	in.StoreWaveform(catalog, name, data)
	in.logger.Debug("sim: waveform stored", "catalog", catalog, "name", name, "bytes", len(data))
}

func (s *session) copyWaveform(args string) {
	in := s.inst

	files := quotedArgs(args)
	if len(files) != 2 {
		in.pushError(errMissingParameter, "Missing parameter")
		return
	}

	srcCatalog, srcName, _ := strings.Cut(files[0], ":")
	dstCatalog, dstName, _ := strings.Cut(files[1], ":")

	data, ok := in.Waveform(srcCatalog, srcName)
	if !ok {
		in.pushError(errFileNameNotFound, "File name not found")
		return
	}

	in.StoreWaveform(dstCatalog, dstName, data)
}

func (s *session) deleteWaveform(args string) {
	in := s.inst

	files := quotedArgs(args)
	if len(files) != 1 {
		in.pushError(errMissingParameter, "Missing parameter")
		return
	}

	catalog, name, _ := strings.Cut(files[0], ":")
	if _, ok := in.memory.LoadAndDelete(memoryKey(canonicalCatalog(catalog), name)); !ok {
		in.pushError(errFileNameNotFound, "File name not found")
	}
}

// listCatalog replies in the MXG format: used,free,"name,type,size",...
func (s *session) listCatalog(args string) {
	in := s.inst

	names := quotedArgs(args)
	if len(names) != 1 {
		in.pushError(errMissingParameter, "Missing parameter")
		return
	}

	used := in.usedMemory()

	var sb strings.Builder
	sb.WriteString(strconv.FormatInt(used, 10))
	sb.WriteByte(',')
	sb.WriteString(strconv.FormatInt(in.memorySize-used, 10))
	for _, w := range in.catalog(names[0]) {
		fmt.Fprintf(&sb, `,"%s,BIN,%d"`, w.name, len(w.data))
	}

	s.replyText(sb.String())
}

// replyTrace sends the trace in the session data format.
func (s *session) replyTrace() {
	trace := s.inst.trace

	var resp instrument.Response
	switch s.format {
	case instrument.Int32:
		values := make(instrument.Int32s, len(trace))
		for i, v := range trace {
			values[i] = int32(math.Round(v))
		}
		resp = values
	case instrument.Float32:
		values := make(instrument.Float32s, len(trace))
		for i, v := range trace {
			values[i] = float32(v)
		}
		resp = values
	case instrument.Float64:
		resp = instrument.Float64s(trace)
	default:
		fields := make([]string, len(trace))
		for i, v := range trace {
			fields[i] = strconv.FormatFloat(v, 'E', -1, 64)
		}
		resp = instrument.Text(strings.Join(fields, ","))
	}

	s.reply(instrument.EncodeResponse(binary.BigEndian, resp), 0)
}

func (s *session) replyText(text string) {
	s.reply(append([]byte(text), '\n'), 0)
}

// quotedArgs returns the single or double quoted strings in args.
func quotedArgs(args string) []string {
	var out []string
	for {
		start := strings.IndexAny(args, `"'`)
		if start < 0 {
			return out
		}

		quote := args[start]
		end := strings.IndexByte(args[start+1:], quote)
		if end < 0 {
			return out
		}

		out = append(out, args[start+1:start+1+end])
		args = args[start+end+2:]
	}
}
