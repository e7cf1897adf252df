package instrument

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arloliu/go-xsg/internal/util"
)

// Response is a decoded query result. Its concrete type depends on the
// DataFormat in effect when it was read:
//
//	ASCII   -> Text
//	Int32   -> Int32s
//	Float32 -> Float32s
//	Float64 -> Float64s
//
// Callers use a type switch to access the values.
type Response interface {
	// Format returns the data format the response was decoded with.
	Format() DataFormat
	// Len returns the number of elements, or bytes for Text.
	Len() int

	response()
}

// Text is an ASCII response with the message terminator removed.
type Text string

// Int32s is a block of 4-byte signed integers.
type Int32s []int32

// Float32s is a block of 4-byte floats.
type Float32s []float32

// Float64s is a block of 8-byte floats.
type Float64s []float64

func (Text) Format() DataFormat     { return ASCII }
func (Int32s) Format() DataFormat   { return Int32 }
func (Float32s) Format() DataFormat { return Float32 }
func (Float64s) Format() DataFormat { return Float64 }

func (r Text) Len() int     { return len(r) }
func (r Int32s) Len() int   { return len(r) }
func (r Float32s) Len() int { return len(r) }
func (r Float64s) Len() int { return len(r) }

func (Text) response()     {}
func (Int32s) response()   {}
func (Float32s) response() {}
func (Float64s) response() {}

// String returns the text.
func (r Text) String() string { return string(r) }

// Float64Values returns the elements of r as float64. Text responses are
// parsed as comma separated numbers; an empty text yields no values.
func Float64Values(r Response) ([]float64, error) {
	switch v := r.(type) {
	case Text:
		s := strings.TrimSpace(string(v))
		if s == "" {
			return []float64{}, nil
		}

		fields := strings.Split(s, ",")
		values := make([]float64, len(fields))
		for i, f := range fields {
			x, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, newError(ErrParse, "parse values", fmt.Errorf("element %d: %q is not a number", i, f))
			}
			values[i] = x
		}

		return values, nil
	case Int32s:
		return util.AppendFloat64Slice(make([]float64, 0, len(v)), v), nil
	case Float32s:
		return util.AppendFloat64Slice(make([]float64, 0, len(v)), v), nil
	case Float64s:
		return util.CloneSlice(v, 0), nil
	default:
		return nil, newError(ErrValidation, "parse values", fmt.Errorf("unsupported response %T", r))
	}
}
