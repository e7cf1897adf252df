package instrument

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"math"
	"math/rand"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeBlock(t *testing.T) {
	tests := []struct {
		description string
		prefix      string
		payload     []byte
		expected    string
	}{
		{
			description: "empty payload",
			prefix:      "",
			payload:     nil,
			expected:    "#10",
		},
		{
			description: "single digit length",
			prefix:      `MEM:DATA "WFM1:A",`,
			payload:     []byte("abc"),
			expected:    `MEM:DATA "WFM1:A",#13abc`,
		},
		{
			description: "two digit length",
			prefix:      "TRAC ",
			payload:     bytes.Repeat([]byte{0xAA}, 10),
			expected:    "TRAC #210" + strings.Repeat("\xaa", 10),
		},
		{
			description: "four digit length",
			prefix:      "",
			payload:     make([]byte, 1000),
			expected:    "#41000" + strings.Repeat("\x00", 1000),
		},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(EncodeBlock(tt.prefix, tt.payload)))
		})
	}
}

func TestBlock_RawRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(488))

	lengths := []int{0, 1, 9, 10, 99, 100, 255, 1000, 4096, 65537}
	for i := 0; i < 50; i++ {
		lengths = append(lengths, rng.Intn(3000))
	}

	for _, n := range lengths {
		payload := make([]byte, n)
		rng.Read(payload)
		// payload bytes equal to the terminator must not confuse the decoder
		if n > 2 {
			payload[n/2] = '\n'
		}

		wire := append(EncodeBlock("", payload), '\n')
		got, err := readBlock(bufio.NewReader(bytes.NewReader(wire)))
		require.NoError(t, err, "length %d", n)
		assert.Equal(t, payload, got, "length %d", n)
	}
}

func TestBlock_TypedRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(32))

	for _, order := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian} {
		for _, n := range []int{0, 1, 2, 17, 256} {
			ints := make(Int32s, n)
			f32 := make(Float32s, n)
			f64 := make(Float64s, n)
			for i := 0; i < n; i++ {
				ints[i] = rng.Int31() - math.MaxInt32/2
				f32[i] = rng.Float32()*2000 - 1000
				f64[i] = rng.NormFloat64() * 1e9
			}

			for _, resp := range []Response{ints, f32, f64} {
				wire := EncodeResponse(order, resp)

				got, err := DecodeBlock(resp.Format(), order, bytes.NewReader(wire))
				require.NoError(t, err)
				assert.Equal(t, resp, got, "%s %s n=%d", order, resp.Format(), n)
				assert.Equal(t, n, got.Len())
			}
		}
	}
}

func TestBlock_ByteOrderIsNotNormalized(t *testing.T) {
	// 0x00000001 big endian is 16777216 when read little endian
	wire := []byte("#14\x00\x00\x00\x01\n")

	be, err := DecodeBlock(Int32, binary.BigEndian, bytes.NewReader(wire))
	require.NoError(t, err)
	assert.Equal(t, Int32s{1}, be)

	le, err := DecodeBlock(Int32, binary.LittleEndian, bytes.NewReader(wire))
	require.NoError(t, err)
	assert.Equal(t, Int32s{16777216}, le)
}

func TestDecodeBlock_ASCII(t *testing.T) {
	tests := []struct {
		input    string
		expected Text
	}{
		{input: "+1.00000000E+009\n", expected: "+1.00000000E+009"},
		{input: "1,2,3\r\n", expected: "1,2,3"},
		{input: "no terminator", expected: "no terminator"},
		{input: "\n", expected: ""},
	}

	for _, tt := range tests {
		got, err := DecodeBlock(ASCII, binary.BigEndian, strings.NewReader(tt.input))
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.expected, got)
		assert.Equal(t, ASCII, got.Format())
	}
}

func TestDecodeBlock_Errors(t *testing.T) {
	tests := []struct {
		description string
		format      DataFormat
		input       string
		kind        error
		cond        error
	}{
		{description: "missing marker", format: Int32, input: "X14abcd\n", kind: ErrFraming},
		{description: "non-numeric digit count", format: Int32, input: "#A4abcd\n", kind: ErrFraming},
		{description: "indefinite length", format: Int32, input: "#0abcd\n", kind: ErrFraming},
		{description: "non-numeric length", format: Float32, input: "#2x4abcd\n", kind: ErrFraming},
		{description: "header truncated", format: Float32, input: "#3", kind: ErrFraming, cond: ErrTruncatedBlock},
		{description: "payload truncated", format: Int32, input: "#18abcd\n", kind: ErrFraming, cond: ErrTruncatedBlock},
		{description: "payload longer than declared", format: Int32, input: "#14abcdefgh\n", kind: ErrFraming, cond: ErrLengthMismatch},
		{description: "not a multiple of int32", format: Int32, input: "#13abc\n", kind: ErrFraming, cond: ErrMalformedBlock},
		{description: "not a multiple of float64", format: Float64, input: "#14abcd\n", kind: ErrFraming, cond: ErrMalformedBlock},
		{description: "invalid format", format: DataFormat(9), input: "#14abcd\n", kind: ErrValidation, cond: ErrInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			_, err := DecodeBlock(tt.format, binary.BigEndian, strings.NewReader(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
			if tt.cond != nil {
				assert.ErrorIs(t, err, tt.cond)
			}
		})
	}
}

func TestDecodeBlock_OversizedHeader(t *testing.T) {
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)

	_, err := DecodeBlock(Int32, binary.BigEndian, bytes.NewReader([]byte("#9999999999\n")))

	runtime.ReadMemStats(&after)
	require.ErrorIs(t, err, ErrFraming)
	require.ErrorIs(t, err, ErrTruncatedBlock)
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(1<<20),
		"allocation must follow the bytes received, not the declared length")
}

func TestDecodeBlock_LargePayload(t *testing.T) {
	payload := make([]byte, 3*blockReadChunk+4)
	for i := range payload {
		payload[i] = byte(i)
	}

	got, err := readBlock(bufio.NewReader(bytes.NewReader(append(EncodeBlock("", payload), '\n'))))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestCheckBlockLength(t *testing.T) {
	require.NoError(t, CheckBlockLength(0))
	require.NoError(t, CheckBlockLength(MaxBlockLength))
	require.ErrorIs(t, CheckBlockLength(MaxBlockLength+1), ErrBlockTooLarge)

	// the largest block still has a single-digit digit count
	assert.Len(t, strconv.Itoa(MaxBlockLength), 9)
}

func TestDecodeBlock_CRLFTerminator(t *testing.T) {
	got, err := DecodeBlock(Float64, binary.BigEndian,
		bytes.NewReader(EncodeResponse(binary.BigEndian, Float64s{1.5})[:11]))
	require.NoError(t, err, "end of stream ends the message")
	assert.Equal(t, Float64s{1.5}, got)

	wire := append(EncodeBlock("", []byte{0x3f, 0xc0, 0, 0}), '\r', '\n')
	got, err = DecodeBlock(Float32, binary.BigEndian, bytes.NewReader(wire))
	require.NoError(t, err)
	assert.Equal(t, Float32s{1.5}, got)
}

func TestDecodeBlock_ConsumesExactlyOneMessage(t *testing.T) {
	wire := append(EncodeResponse(binary.BigEndian, Int32s{7, -7}), []byte("next\n")...)
	r := bufio.NewReader(bytes.NewReader(wire))

	got, err := DecodeBlock(Int32, binary.BigEndian, r)
	require.NoError(t, err)
	assert.Equal(t, Int32s{7, -7}, got)

	rest, err := DecodeBlock(ASCII, binary.BigEndian, r)
	require.NoError(t, err)
	assert.Equal(t, Text("next"), rest)
}
