package instrument

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

const (
	blockMarker = '#'
	terminator  = '\n'

	// MaxBlockLength is the largest payload a definite-length block header
	// can declare with its nine length digits.
	MaxBlockLength = 999_999_999

	// blockReadChunk bounds the up-front allocation for a block payload;
	// larger payloads grow with the bytes actually received.
	blockReadChunk = 64 << 10
)

// EncodeBlock frames payload as an IEEE-488.2 definite-length block
// appended to prefix: prefix + "#" + ndigits + length + payload.
//
// The message terminator is not included. payload must not exceed
// MaxBlockLength; see CheckBlockLength.
func EncodeBlock(prefix string, payload []byte) []byte {
	length := strconv.Itoa(len(payload))

	buf := make([]byte, 0, len(prefix)+2+len(length)+len(payload))
	buf = append(buf, prefix...)
	buf = append(buf, blockMarker)
	buf = append(buf, byte('0'+len(length)))
	buf = append(buf, length...)
	buf = append(buf, payload...)

	return buf
}

// CheckBlockLength reports an ErrBlockTooLarge error when n bytes cannot
// be framed as a definite-length block.
func CheckBlockLength(n int) error {
	if n > MaxBlockLength {
		return fmt.Errorf("%w: %d bytes, limit is %d", ErrBlockTooLarge, n, MaxBlockLength)
	}

	return nil
}

// EncodeResponse encodes resp the way an instrument sends it: Text as a
// terminated line, numeric responses as a terminated block with elements
// in the given byte order.
func EncodeResponse(order binary.ByteOrder, resp Response) []byte {
	var payload []byte

	switch r := resp.(type) {
	case Text:
		return append([]byte(r), terminator)
	case Int32s:
		payload = make([]byte, 4*len(r))
		for i, v := range r {
			order.PutUint32(payload[4*i:], uint32(v))
		}
	case Float32s:
		payload = make([]byte, 4*len(r))
		for i, v := range r {
			order.PutUint32(payload[4*i:], math.Float32bits(v))
		}
	case Float64s:
		payload = make([]byte, 8*len(r))
		for i, v := range r {
			order.PutUint64(payload[8*i:], math.Float64bits(v))
		}
	}

	return append(EncodeBlock("", payload), terminator)
}

// DecodeBlock reads one response from r according to format.
//
// ASCII responses are read up to the message terminator. Numeric formats
// read a definite-length block and reinterpret its payload as elements in
// the given byte order.
func DecodeBlock(format DataFormat, order binary.ByteOrder, r io.Reader) (Response, error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}

	if format == ASCII {
		line, err := readLine(br)
		if err != nil {
			return nil, err
		}

		return Text(line), nil
	}

	if !format.Valid() {
		return nil, newError(ErrValidation, "decode block", fmt.Errorf("%w: %d", ErrInvalidFormat, format))
	}

	payload, err := readBlock(br)
	if err != nil {
		return nil, err
	}

	return decodeElements(format, order, payload)
}

// readLine reads a text response and trims the terminator. End of stream
// after at least one byte ends the message.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString(terminator)
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}

	return strings.TrimRight(line, "\r\n"), nil
}

// readBlock reads a definite-length block including its terminator and
// returns the payload.
func readBlock(r *bufio.Reader) ([]byte, error) {
	length, err := readBlockHeader(r)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(min(length, blockReadChunk))
	if n, err := io.CopyN(&buf, r, int64(length)); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, newError(ErrFraming, "decode block",
				fmt.Errorf("%w: declared %d bytes, got %d", ErrTruncatedBlock, length, n))
		}

		return nil, err
	}
	payload := buf.Bytes()

	if err := readTerminator(r); err != nil {
		return nil, err
	}

	return payload, nil
}

// readBlockHeader consumes "#<n><length>" and returns length.
func readBlockHeader(r *bufio.Reader) (int, error) {
	marker, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	if marker != blockMarker {
		return 0, newError(ErrFraming, "decode block",
			fmt.Errorf("expected block marker '#', got %q", marker))
	}

	nd, err := r.ReadByte()
	if err != nil {
		return 0, truncatedHeader(err)
	}
	if nd < '1' || nd > '9' {
		// "#0" introduces an indefinite-length block, which is not supported.
		return 0, newError(ErrFraming, "decode block",
			fmt.Errorf("invalid block digit count %q", nd))
	}

	digits := make([]byte, int(nd-'0'))
	if _, err := io.ReadFull(r, digits); err != nil {
		return 0, truncatedHeader(err)
	}

	length := 0
	for _, d := range digits {
		if d < '0' || d > '9' {
			return 0, newError(ErrFraming, "decode block",
				fmt.Errorf("invalid block length %q", digits))
		}
		length = length*10 + int(d-'0')
	}

	return length, nil
}

func truncatedHeader(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return newError(ErrFraming, "decode block", fmt.Errorf("%w: incomplete header", ErrTruncatedBlock))
	}

	return err
}

// readTerminator consumes the message terminator following a block payload.
// A CR before the LF is tolerated; end of stream also ends the message.
func readTerminator(r *bufio.Reader) error {
	b, err := r.ReadByte()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return err
	}

	if b == '\r' {
		b, err = r.ReadByte()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}

	if b != terminator {
		return newError(ErrFraming, "decode block",
			fmt.Errorf("%w: got %q after payload", ErrLengthMismatch, b))
	}

	return nil
}

func decodeElements(format DataFormat, order binary.ByteOrder, payload []byte) (Response, error) {
	width := format.ElementSize()
	if len(payload)%width != 0 {
		return nil, newError(ErrFraming, "decode block",
			fmt.Errorf("%w: %d bytes for %s", ErrMalformedBlock, len(payload), format))
	}

	n := len(payload) / width

	switch format {
	case Int32:
		values := make(Int32s, n)
		for i := range values {
			values[i] = int32(order.Uint32(payload[4*i:]))
		}

		return values, nil
	case Float32:
		values := make(Float32s, n)
		for i := range values {
			values[i] = math.Float32frombits(order.Uint32(payload[4*i:]))
		}

		return values, nil
	default:
		values := make(Float64s, n)
		for i := range values {
			values[i] = math.Float64frombits(order.Uint64(payload[8*i:]))
		}

		return values, nil
	}
}
