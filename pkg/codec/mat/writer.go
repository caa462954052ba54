package mat

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/klauspost/compress/zlib"

	"hsicube/pkg/codec"
	"hsicube/pkg/cube"
)

// DefaultDescription is the header text written when none is given.
const DefaultDescription = "MATLAB 5.0 MAT-file, Platform: Go, Created by hsicube"

// WriterOptions configures a Writer.
type WriterOptions struct {
	// Compress wraps every variable in a zlib miCOMPRESSED element.
	Compress bool
	// Description is the header text, truncated to 116 bytes.
	Description string
}

// Writer emits a little-endian MAT-file variable by variable.
type Writer struct {
	w    io.Writer
	opts WriterOptions
}

// NewWriter creates a writer. Call WriteHeader before any variable.
func NewWriter(w io.Writer, opts WriterOptions) *Writer {
	if opts.Description == "" {
		opts.Description = DefaultDescription
	}
	return &Writer{w: w, opts: opts}
}

// WriteHeader writes the 128-byte file header.
func (w *Writer) WriteHeader() error {
	hdr := make([]byte, headerSize)
	text := w.opts.Description
	if len(text) > 116 {
		text = text[:116]
	}
	copy(hdr, text)
	for i := len(text); i < 116; i++ {
		hdr[i] = ' '
	}
	// bytes 116..123 are the zeroed subsystem offset
	binary.LittleEndian.PutUint16(hdr[124:], 0x0100)
	hdr[126], hdr[127] = 'I', 'M'
	return w.write(hdr)
}

// WriteCube stores c under name in column-major order.
func (w *Writer) WriteCube(name string, c *cube.Cube) error {
	if err := c.Validate(); err != nil {
		return err
	}
	cm := c
	if c.Order != cube.ColumnMajor {
		cm = c.ToOrder(cube.ColumnMajor)
	}
	return w.WriteMatrix(name, cm.Dims, cm.DType, cm.Data)
}

// WriteMatrix stores a numeric array. data holds little-endian elements of
// dtype in column-major order.
func (w *Writer) WriteMatrix(name string, dims []int, dtype cube.DType, data []byte) error {
	class, mi, err := classOf(dtype)
	if err != nil {
		return codec.Wrap(format, codec.ErrUnsupportedDType, err, "variable %q", name)
	}
	n := 1
	for _, d := range dims {
		n *= d
	}
	if len(data) != n*dtype.Size() {
		return fmt.Errorf("%w: %d bytes for %v %s", cube.ErrDimensionMismatch, len(data), dims, dtype)
	}
	if len(data) > math.MaxUint32-64 {
		return codec.Errorf(format, codec.ErrUnsupportedDType, "variable %q exceeds 4 GiB", name)
	}
	return w.writeMatrix(name, class, dims, mi, data)
}

// WriteColumn stores values as an Nx1 double vector.
func (w *Writer) WriteColumn(name string, values []float64) error {
	data := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(data[8*i:], math.Float64bits(v))
	}
	return w.writeMatrix(name, ClassDouble, []int{len(values), 1}, miDOUBLE, data)
}

// WriteInt32Column stores values as an Nx1 int32 vector.
func (w *Writer) WriteInt32Column(name string, values []int32) error {
	data := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[4*i:], uint32(v))
	}
	return w.writeMatrix(name, ClassInt32, []int{len(values), 1}, miINT32, data)
}

// WriteStrings stores rows as an NxL char matrix, padding short rows with
// blanks.
func (w *Writer) WriteStrings(name string, rows []string) error {
	width := 0
	runes := make([][]rune, len(rows))
	for i, s := range rows {
		runes[i] = []rune(s)
		width = max(width, len(runes[i]))
	}
	data := make([]byte, 2*len(rows)*width)
	for i, r := range runes {
		for j := 0; j < width; j++ {
			ch := ' '
			if j < len(r) {
				ch = r[j]
			}
			if ch > 0xffff {
				ch = '?'
			}
			binary.LittleEndian.PutUint16(data[2*(j*len(rows)+i):], uint16(ch))
		}
	}
	return w.writeMatrix(name, ClassChar, []int{len(rows), width}, miUINT16, data)
}

func (w *Writer) writeMatrix(name string, class Class, dims []int, mi uint32, data []byte) error {
	var body bytes.Buffer
	flags := make([]byte, 8)
	binary.LittleEndian.PutUint32(flags, uint32(class))
	putElement(&body, miUINT32, flags)

	dimBytes := make([]byte, 4*len(dims))
	for i, d := range dims {
		binary.LittleEndian.PutUint32(dimBytes[4*i:], uint32(d))
	}
	putElement(&body, miINT32, dimBytes)
	putElement(&body, miINT8, []byte(name))
	putElement(&body, mi, data)

	var el bytes.Buffer
	putElement(&el, miMATRIX, body.Bytes())
	if !w.opts.Compress {
		return w.write(el.Bytes())
	}

	var z bytes.Buffer
	zw := zlib.NewWriter(&z)
	if _, err := zw.Write(el.Bytes()); err != nil {
		return codec.Wrap(format, codec.ErrIOFailure, err, "compressing %q", name)
	}
	if err := zw.Close(); err != nil {
		return codec.Wrap(format, codec.ErrIOFailure, err, "compressing %q", name)
	}
	tag := make([]byte, 8)
	binary.LittleEndian.PutUint32(tag, miCOMPRESSED)
	binary.LittleEndian.PutUint32(tag[4:], uint32(z.Len()))
	if err := w.write(tag); err != nil {
		return err
	}
	return w.write(z.Bytes())
}

// putElement writes a full tag, the payload and its padding.
func putElement(buf *bytes.Buffer, typ uint32, payload []byte) {
	var tag [8]byte
	binary.LittleEndian.PutUint32(tag[:], typ)
	binary.LittleEndian.PutUint32(tag[4:], uint32(len(payload)))
	buf.Write(tag[:])
	buf.Write(payload)
	buf.Write(make([]byte, pad8(len(payload))))
}

func (w *Writer) write(b []byte) error {
	if _, err := w.w.Write(b); err != nil {
		return codec.Wrap(format, codec.ErrIOFailure, err, "writing %d bytes", len(b))
	}
	return nil
}

// EncodeOptions controls Encode.
type EncodeOptions struct {
	// Name is the variable name; empty means "cube".
	Name     string
	Compress bool
	// Wavelengths adds <name>_wavelengths when the cube has them.
	Wavelengths bool
}

// Encode writes a complete file holding c and, optionally, its wavelengths.
func Encode(w io.Writer, c *cube.Cube, opts EncodeOptions) error {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = "cube"
	}
	mw := NewWriter(w, WriterOptions{Compress: opts.Compress})
	if err := mw.WriteHeader(); err != nil {
		return err
	}
	if err := mw.WriteCube(name, c); err != nil {
		return err
	}
	if opts.Wavelengths && len(c.Wavelengths) > 0 {
		return mw.WriteColumn(name+"_wavelengths", c.Wavelengths)
	}
	return nil
}
