package instrument

import (
	"fmt"
	"strings"
)

// Identification is the parsed *IDN? response of an instrument.
type Identification struct {
	Company  string
	Model    string
	Serial   string
	Firmware string
}

// IsZero reports whether the instrument has not been identified.
func (id Identification) IsZero() bool {
	return id == Identification{}
}

func (id Identification) String() string {
	return id.Company + "," + id.Model + "," + id.Serial + "," + id.Firmware
}

// ParseIdentification parses a *IDN? response such as
//
//	Agilent Technologies,N9020A,MY52091380,A.13.50_R0010
//	Agilent Technologies, N5182A, US51990230, A.01.86
//
// The company field is kept verbatim; spaces are removed from model, serial
// and firmware, which manufacturers pad inconsistently. Fields after the
// fourth are ignored.
func ParseIdentification(raw string) (Identification, error) {
	raw = strings.TrimRight(raw, "\r\n")

	fields := strings.Split(raw, ",")
	if len(fields) < 4 {
		return Identification{}, newError(ErrParse, "parse identification",
			fmt.Errorf("expected 4 fields, got %d in %q", len(fields), raw))
	}

	return Identification{
		Company:  fields[0],
		Model:    removeSpaces(fields[1]),
		Serial:   removeSpaces(fields[2]),
		Firmware: removeSpaces(fields[3]),
	}, nil
}

func removeSpaces(s string) string {
	return strings.ReplaceAll(s, " ", "")
}
