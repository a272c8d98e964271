package amf

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Cursor reads little-endian primitives from an in-memory scene file.
// It is not safe for concurrent use; decoders that jump elsewhere in the
// file go through At so the logical position is always restored.
type Cursor struct {
	data    []byte
	off     int64
	strings StringEncoding
}

func NewCursor(data []byte, enc StringEncoding) *Cursor {
	return &Cursor{data: data, strings: enc}
}

// Tell returns the current absolute position.
func (c *Cursor) Tell() int64 {
	return c.off
}

// Len returns the size of the underlying buffer.
func (c *Cursor) Len() int64 {
	return int64(len(c.data))
}

// SeekTo moves to an absolute offset. Seeking to the end of the buffer is
// allowed, past it is not.
func (c *Cursor) SeekTo(offset int64) error {
	if offset < 0 || offset > int64(len(c.data)) {
		return newDecodeError(ErrMalformedOffset, c.off, "seek to %d outside %d byte buffer", offset, len(c.data))
	}
	c.off = offset
	return nil
}

// At runs fn with the cursor positioned at offset and restores the current
// position afterwards, including when fn fails.
func (c *Cursor) At(offset int64, fn func() error) error {
	pos := c.off
	defer func() { c.off = pos }()
	if err := c.SeekTo(offset); err != nil {
		return err
	}
	return fn()
}

func (c *Cursor) Skip(n int64) error {
	if _, err := c.take(n); err != nil {
		return err
	}
	return nil
}

func (c *Cursor) take(n int64) ([]byte, error) {
	if n < 0 || c.off+n > int64(len(c.data)) {
		return nil, newDecodeError(ErrTruncatedInput, c.off, "need %d bytes, %d left", n, int64(len(c.data))-c.off)
	}
	b := c.data[c.off : c.off+n]
	c.off += n
	return b, nil
}

func (c *Cursor) ReadU8() (uint8, error) {
	b, err := c.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *Cursor) ReadI8() (int8, error) {
	v, err := c.ReadU8()
	return int8(v), err
}

func (c *Cursor) ReadBool() (bool, error) {
	v, err := c.ReadU8()
	return v == 1, err
}

func (c *Cursor) ReadU16() (uint16, error) {
	b, err := c.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (c *Cursor) ReadI16() (int16, error) {
	v, err := c.ReadU16()
	return int16(v), err
}

func (c *Cursor) ReadU32() (uint32, error) {
	b, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *Cursor) ReadI32() (int32, error) {
	v, err := c.ReadU32()
	return int32(v), err
}

func (c *Cursor) ReadF32() (float32, error) {
	v, err := c.ReadU32()
	return math.Float32frombits(v), err
}

// ReadF32s fills dst with consecutive float32 values.
func (c *Cursor) ReadF32s(dst []float32) error {
	for i := range dst {
		v, err := c.ReadF32()
		if err != nil {
			return err
		}
		dst[i] = v
	}
	return nil
}

// ReadString reads one string framed according to the cursor's encoding.
func (c *Cursor) ReadString() (string, error) {
	if c.strings == NullTerminated {
		rest := c.data[c.off:]
		n := bytes.IndexByte(rest, 0)
		if n < 0 {
			return "", newDecodeError(ErrTruncatedInput, c.off, "unterminated string")
		}
		s := string(rest[:n])
		c.off += int64(n) + 1
		return s, nil
	}
	start := c.off
	n, err := c.ReadU32()
	if err != nil {
		return "", err
	}
	b, err := c.take(int64(n))
	if err != nil {
		c.off = start
		return "", err
	}
	return string(b), nil
}

// Table reads a (u32 count, u32 offset) pair and checks that count records
// of at least minRecord bytes can start at offset.
func (c *Cursor) Table(minRecord int64) (count int, offset int64, err error) {
	at := c.off
	n, err := c.ReadU32()
	if err != nil {
		return 0, 0, err
	}
	o, err := c.ReadU32()
	if err != nil {
		return 0, 0, err
	}
	if n == 0 {
		return 0, int64(o), nil
	}
	size := int64(len(c.data))
	if int64(o) >= size {
		return 0, 0, newDecodeError(ErrMalformedOffset, at, "table offset %d outside %d byte buffer", o, size)
	}
	if minRecord > 0 && int64(n) > (size-int64(o))/minRecord {
		return 0, 0, newDecodeError(ErrMalformedOffset, at, "%d records at %d exceed buffer", n, o)
	}
	return int(n), int64(o), nil
}
