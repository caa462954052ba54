package npy

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"

	"hsicube/internal/logging"
	"hsicube/pkg/codec"
	"hsicube/pkg/cube"
)

func init() {
	logging.SetLogger(nil)
}

// rawFile assembles an .npy file from a header dict and body.
func rawFile(major byte, dict string, body []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(Magic)
	buf.WriteByte(major)
	buf.WriteByte(0)
	if major == 1 {
		binary.Write(&buf, binary.LittleEndian, uint16(len(dict)))
	} else {
		binary.Write(&buf, binary.LittleEndian, uint32(len(dict)))
	}
	buf.WriteString(dict)
	buf.Write(body)
	return buf.Bytes()
}

func TestFormatHeaderMatchesNumpy(t *testing.T) {
	hdr := FormatHeader(Header{Descr: "<f4", Shape: []int{4, 3, 5}})
	require.Len(t, hdr, 128)
	assert.Equal(t, Magic+"\x01\x00", string(hdr[:8]))
	assert.Equal(t, uint16(118), binary.LittleEndian.Uint16(hdr[8:10]))

	want := "{'descr': '<f4', 'fortran_order': False, 'shape': (4, 3, 5), }"
	assert.Equal(t, want, string(hdr[10:10+len(want)]))
	assert.Equal(t, byte('\n'), hdr[len(hdr)-1])
	assert.Equal(t, string(bytes.Repeat([]byte{' '}, 128-11-len(want))), string(hdr[10+len(want):127]))

	f := FormatHeader(Header{Descr: "|u1", FortranOrder: true, Shape: []int{2, 7}})
	assert.Zero(t, len(f)%64)
	assert.Contains(t, string(f), "'fortran_order': True, 'shape': (2, 7), }")
}

func TestRoundTripEveryDType(t *testing.T) {
	for _, dtype := range cube.DTypes {
		for _, order := range []cube.Order{cube.RowMajor, cube.ColumnMajor} {
			values := make([]float64, 2*3*4)
			for i := range values {
				values[i] = float64(i*7%23) - 5
			}
			if dtype == cube.Uint8 || dtype == cube.Uint16 {
				for i := range values {
					values[i] = math.Abs(values[i])
				}
			}
			src, err := cube.FromFloats([]int{2, 3, 4}, dtype, order, values)
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, src))
			got, err := Decode(buf.Bytes())
			require.NoError(t, err, "%s %s", dtype, order)

			assert.Equal(t, dtype, got.DType)
			assert.Equal(t, order, got.Order)
			assert.Equal(t, src.Dims, got.Dims)
			assert.True(t, bytes.Equal(src.Data, got.Data), "%s %s body differs", dtype, order)
		}
	}
}

func TestFortranOrderDecode(t *testing.T) {
	// shape (2, 3) in Fortran order: columns are contiguous
	body := []byte{1, 4, 2, 5, 3, 6}
	data := rawFile(1, "{'descr': '|u1', 'fortran_order': True, 'shape': (2, 3), }\n", body)
	c, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, cube.ColumnMajor, c.Order)

	i, err := c.LinearIndex(0, 2)
	require.NoError(t, err)
	v, _ := c.At(i)
	assert.Equal(t, 3.0, v)
	i, _ = c.LinearIndex(1, 0)
	v, _ = c.At(i)
	assert.Equal(t, 4.0, v)
}

func TestBigEndianAndWidenedTypes(t *testing.T) {
	t.Run("big endian float64", func(t *testing.T) {
		body := make([]byte, 16)
		binary.BigEndian.PutUint64(body, math.Float64bits(1.5))
		binary.BigEndian.PutUint64(body[8:], math.Float64bits(-2))
		c, err := Decode(rawFile(1, "{'descr': '>f8', 'fortran_order': False, 'shape': (1, 2), }", body))
		require.NoError(t, err)
		assert.Equal(t, []float64{1.5, -2}, c.Floats())
	})

	t.Run("float16", func(t *testing.T) {
		body := make([]byte, 6)
		for i, v := range []float32{0.5, -3, 1024} {
			binary.LittleEndian.PutUint16(body[2*i:], float16.Fromfloat32(v).Bits())
		}
		c, err := Decode(rawFile(1, "{'descr': '<f2', 'fortran_order': False, 'shape': (3, 1), }", body))
		require.NoError(t, err)
		assert.Equal(t, cube.Float32, c.DType)
		assert.Equal(t, []float64{0.5, -3, 1024}, c.Floats())
	})

	t.Run("uint32", func(t *testing.T) {
		body := make([]byte, 8)
		binary.BigEndian.PutUint32(body, 4000000000)
		binary.BigEndian.PutUint32(body[4:], 7)
		c, err := Decode(rawFile(2, "{'descr': '>u4', 'fortran_order': False, 'shape': (2, 1), }", body))
		require.NoError(t, err)
		assert.Equal(t, cube.Float64, c.DType)
		assert.Equal(t, []float64{4000000000, 7}, c.Floats())
	})

	t.Run("bool", func(t *testing.T) {
		c, err := Decode(rawFile(3, "{'descr': '|b1', 'fortran_order': False, 'shape': (1, 2), }", []byte{1, 0}))
		require.NoError(t, err)
		assert.Equal(t, cube.Uint8, c.DType)
	})
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte("\x93NUMPZ\x01\x00"))
	assert.ErrorIs(t, err, codec.ErrMalformedHeader)

	_, err = Decode(rawFile(1, "{'descr': '<c8', 'fortran_order': False, 'shape': (1, 1), }", make([]byte, 8)))
	assert.ErrorIs(t, err, codec.ErrUnsupportedDType)

	_, err = Decode(rawFile(1, "{'descr': '<f4', 'fortran_order': False, 'shape': (7,), }", make([]byte, 28)))
	assert.ErrorIs(t, err, codec.ErrMalformedHeader)

	_, err = Decode(rawFile(1, "{'descr': '<f4', 'fortran_order': False, 'shape': (2, 2), }", make([]byte, 15)))
	assert.ErrorIs(t, err, codec.ErrTruncatedData)

	_, err = Decode(rawFile(9, "{}", nil))
	assert.ErrorIs(t, err, codec.ErrMalformedHeader)
}

func TestDecodeRejectsOversizedShapes(t *testing.T) {
	for name, dict := range map[string]string{
		// 2^32 * 2^32 * 2 wraps the element count to zero.
		"wrapping count": "{'descr': '|u1', 'fortran_order': False, 'shape': (4294967296, 4294967296, 2), }",
		"byte size":      "{'descr': '<f8', 'fortran_order': False, 'shape': (1152921504606846976, 2, 2), }",
		"zero axis":      "{'descr': '<f4', 'fortran_order': False, 'shape': (0, 2, 2), }",
	} {
		t.Run(name, func(t *testing.T) {
			c, err := Decode(rawFile(1, dict, make([]byte, 16)))
			assert.ErrorIs(t, err, codec.ErrMalformedHeader)
			assert.Nil(t, c)
		})
	}

	_, err := Decode(rawFile(1, "{'descr': '<f8', 'fortran_order': False, 'shape': (1073741824, 1024, 2), }", make([]byte, 16)))
	assert.ErrorIs(t, err, codec.ErrTruncatedData)
}

func TestParseHeader(t *testing.T) {
	data := FormatHeader(Header{Descr: "<i2", Shape: []int{10, 20, 3}})
	h, off, err := ParseHeader(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), off)
	want := &Header{Major: 1, Descr: "<i2", Shape: []int{10, 20, 3}}
	if diff := cmp.Diff(want, h); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
}
