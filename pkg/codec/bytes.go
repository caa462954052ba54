package codec

import (
	"encoding/binary"

	"hsicube/pkg/cube"
)

// SwapBytes reverses the byte order of every size-byte element of b in place.
func SwapBytes(b []byte, size int) {
	if size < 2 {
		return
	}
	for off := 0; off+size <= len(b); off += size {
		e := b[off : off+size]
		for i, j := 0, size-1; i < j; i, j = i+1, j-1 {
			e[i], e[j] = e[j], e[i]
		}
	}
}

// LittleEndianCopy returns data as little-endian elements. Little-endian
// input is copied unchanged.
func LittleEndianCopy(data []byte, size int, order binary.ByteOrder) []byte {
	out := append([]byte(nil), data...)
	if order == binary.BigEndian {
		SwapBytes(out, size)
	}
	return out
}

// Encoded returns c's buffer in the given byte order.
func Encoded(c *cube.Cube, order binary.ByteOrder) []byte {
	return LittleEndianCopy(c.Data, c.DType.Size(), order)
}

// Widen decodes n elements of src with fn and stores them in a new cube of
// type dtype. It backs the storage-only types that cube does not hold
// natively, such as uint32 or float16.
func Widen(dims []int, order cube.Order, dtype cube.DType, n int, fn func(i int) float64) (*cube.Cube, error) {
	c, err := cube.New(dims, dtype, order)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		if err := c.Set(i, fn(i)); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Uint32At decodes element i of a uint32 buffer.
func Uint32At(data []byte, i int, order binary.ByteOrder) float64 {
	return float64(order.Uint32(data[4*i:]))
}
