package codec

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Reader walks a byte slice with a fixed byte order. Every read is bounds
// checked and fails with ErrTruncatedData.
type Reader struct {
	format string
	data   []byte
	order  binary.ByteOrder
	pos    int
}

// NewReader creates a reader over data. format labels errors.
func NewReader(format string, data []byte, order binary.ByteOrder) *Reader {
	return &Reader{format: format, data: data, order: order}
}

// At returns a reader over the same data positioned at offset.
func (r *Reader) At(offset int) *Reader {
	return &Reader{format: r.format, data: r.data, order: r.order, pos: offset}
}

// Order is the reader's byte order.
func (r *Reader) Order() binary.ByteOrder { return r.order }

// SetOrder switches the byte order.
func (r *Reader) SetOrder(order binary.ByteOrder) { r.order = order }

// Pos returns the current offset.
func (r *Reader) Pos() int { return r.pos }

// Len is the total size of the underlying data.
func (r *Reader) Len() int { return len(r.data) }

// Remaining is the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.pos }

// Seek moves to an absolute offset.
func (r *Reader) Seek(offset int) error {
	if offset < 0 || offset > len(r.data) {
		return ErrorAt(r.format, ErrTruncatedData, int64(offset), "seek beyond %d bytes", len(r.data))
	}
	r.pos = offset
	return nil
}

// Bytes returns the next n bytes without copying.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if n < 0 || r.pos < 0 || r.pos > len(r.data) || n > len(r.data)-r.pos {
		return nil, &Error{
			Format: r.format,
			Kind:   ErrTruncatedData,
			Offset: int64(r.pos),
			Detail: fmt.Sprintf("need %d bytes, have %d", n, len(r.data)-r.pos),
			Err:    io.ErrUnexpectedEOF,
		}
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Skip advances n bytes.
func (r *Reader) Skip(n int) error {
	_, err := r.Bytes(n)
	return err
}

// Uint8 reads one byte.
func (r *Reader) Uint8() (uint8, error) {
	b, err := r.Bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Uint16 reads an unsigned 16-bit integer.
func (r *Reader) Uint16() (uint16, error) {
	b, err := r.Bytes(2)
	if err != nil {
		return 0, err
	}
	return r.order.Uint16(b), nil
}

// Uint32 reads an unsigned 32-bit integer.
func (r *Reader) Uint32() (uint32, error) {
	b, err := r.Bytes(4)
	if err != nil {
		return 0, err
	}
	return r.order.Uint32(b), nil
}

// Uint64 reads an unsigned 64-bit integer.
func (r *Reader) Uint64() (uint64, error) {
	b, err := r.Bytes(8)
	if err != nil {
		return 0, err
	}
	return r.order.Uint64(b), nil
}

// Int32 reads a signed 32-bit integer.
func (r *Reader) Int32() (int32, error) {
	v, err := r.Uint32()
	return int32(v), err
}

// Float64 reads an IEEE 754 double.
func (r *Reader) Float64() (float64, error) {
	v, err := r.Uint64()
	return math.Float64frombits(v), err
}

// Align advances to the next multiple of n.
func (r *Reader) Align(n int) error {
	if rem := r.pos % n; rem != 0 {
		return r.Skip(n - rem)
	}
	return nil
}
