package instrument

import (
	"fmt"
	"strings"
)

// DataFormat is the numeric transfer encoding negotiated with FORM:DATA.
type DataFormat uint8

const (
	// ASCII transfers numbers as comma separated text.
	ASCII DataFormat = iota
	// Int32 transfers numbers as a block of 4-byte signed integers.
	Int32
	// Float32 transfers numbers as a block of 4-byte IEEE-754 floats.
	Float32
	// Float64 transfers numbers as a block of 8-byte IEEE-754 floats.
	Float64
)

func (f DataFormat) String() string {
	switch f {
	case ASCII:
		return "ASCII"
	case Int32:
		return "INT32"
	case Float32:
		return "REAL32"
	case Float64:
		return "REAL64"
	default:
		return fmt.Sprintf("DataFormat(%d)", uint8(f))
	}
}

// Valid reports whether f is a known format.
func (f DataFormat) Valid() bool {
	return f <= Float64
}

// SCPI returns the FORM:DATA argument for f.
func (f DataFormat) SCPI() string {
	switch f {
	case Int32:
		return "INT,32"
	case Float32:
		return "REAL,32"
	case Float64:
		return "REAL,64"
	default:
		return "ASCII"
	}
}

// ElementSize returns the byte width of one element, or 0 for ASCII.
func (f DataFormat) ElementSize() int {
	switch f {
	case Int32, Float32:
		return 4
	case Float64:
		return 8
	default:
		return 0
	}
}

// ParseDataFormat parses a FORM:DATA argument or query response,
// e.g. "ASC", "ASCII", "INT,32", "REAL,64" or "REAL 32".
func ParseDataFormat(s string) (DataFormat, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "", "\"", "").Replace(s)

	kind, width, _ := strings.Cut(s, ",")
	switch {
	case strings.HasPrefix(kind, "ASC"):
		return ASCII, nil
	case kind == "INT" && (width == "32" || width == ""):
		return Int32, nil
	case kind == "INT32":
		return Int32, nil
	case kind == "REAL" && (width == "32" || width == ""):
		return Float32, nil
	case kind == "REAL" && width == "64", kind == "REAL64":
		return Float64, nil
	case kind == "REAL32":
		return Float32, nil
	default:
		return ASCII, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
}
