// Package npy reads and writes NumPy .npy files holding 2-D or 3-D arrays.
package npy

import (
	"encoding/binary"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/x448/float16"

	"hsicube/internal/logging"
	"hsicube/pkg/codec"
	"hsicube/pkg/cube"
)

const format = "npy"

// Magic starts every .npy file.
const Magic = "\x93NUMPY"

const (
	align = 64
	// growthDigits mirrors numpy's spare room for the growth axis, so headers
	// can be rewritten in place when the array is appended to.
	growthDigits = 21
)

// Header is the parsed array description.
type Header struct {
	Major, Minor byte
	Descr        string
	FortranOrder bool
	Shape        []int
}

var (
	descrRe   = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	fortranRe = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	shapeRe   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// ParseHeader parses the preamble of data and returns the header and the
// offset of the array body.
func ParseHeader(data []byte) (*Header, int, error) {
	r := codec.NewReader(format, data, binary.LittleEndian)
	magic, err := r.Bytes(len(Magic))
	if err != nil {
		return nil, 0, err
	}
	if string(magic) != Magic {
		return nil, 0, codec.ErrorAt(format, codec.ErrMalformedHeader, 0, "bad magic %q", magic)
	}
	h := &Header{}
	if h.Major, err = r.Uint8(); err != nil {
		return nil, 0, err
	}
	if h.Minor, err = r.Uint8(); err != nil {
		return nil, 0, err
	}

	var hlen int
	switch h.Major {
	case 1:
		n, err := r.Uint16()
		if err != nil {
			return nil, 0, err
		}
		hlen = int(n)
	case 2, 3:
		n, err := r.Uint32()
		if err != nil {
			return nil, 0, err
		}
		hlen = int(n)
	default:
		return nil, 0, codec.ErrorAt(format, codec.ErrMalformedHeader, 6, "unsupported version %d.%d", h.Major, h.Minor)
	}
	text, err := r.Bytes(hlen)
	if err != nil {
		return nil, 0, err
	}
	if err := h.parseDict(string(text)); err != nil {
		return nil, 0, err
	}
	return h, r.Pos(), nil
}

func (h *Header) parseDict(s string) error {
	m := descrRe.FindStringSubmatch(s)
	if m == nil {
		return codec.Errorf(format, codec.ErrMalformedHeader, "missing descr in %q", s)
	}
	h.Descr = m[1]

	m = fortranRe.FindStringSubmatch(s)
	if m == nil {
		return codec.Errorf(format, codec.ErrMalformedHeader, "missing fortran_order in %q", s)
	}
	h.FortranOrder = m[1] == "True"

	m = shapeRe.FindStringSubmatch(s)
	if m == nil {
		return codec.Errorf(format, codec.ErrMalformedHeader, "missing shape in %q", s)
	}
	h.Shape = h.Shape[:0]
	for _, part := range strings.Split(m[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(part, "L"))
		if err != nil || n < 0 {
			return codec.Errorf(format, codec.ErrMalformedHeader, "bad shape entry %q", part)
		}
		h.Shape = append(h.Shape, n)
	}
	return nil
}

// elemType is a parsed descr: byte order, kind letter and size.
type elemType struct {
	order binary.ByteOrder
	kind  byte
	size  int
}

func parseDescr(descr string) (elemType, error) {
	if len(descr) < 3 {
		return elemType{}, codec.Errorf(format, codec.ErrUnsupportedDType, "descr %q", descr)
	}
	et := elemType{order: binary.LittleEndian, kind: descr[1]}
	switch descr[0] {
	case '<', '|', '=':
	case '>':
		et.order = binary.BigEndian
	default:
		return elemType{}, codec.Errorf(format, codec.ErrUnsupportedDType, "descr %q", descr)
	}
	size, err := strconv.Atoi(descr[2:])
	if err != nil {
		return elemType{}, codec.Errorf(format, codec.ErrUnsupportedDType, "descr %q", descr)
	}
	et.size = size
	return et, nil
}

// nativeDType maps descr kinds the cube stores without conversion.
func (et elemType) nativeDType() (cube.DType, bool) {
	switch {
	case et.kind == 'f' && et.size == 8:
		return cube.Float64, true
	case et.kind == 'f' && et.size == 4:
		return cube.Float32, true
	case et.kind == 'i' && et.size == 1:
		return cube.Int8, true
	case et.kind == 'i' && et.size == 2:
		return cube.Int16, true
	case et.kind == 'i' && et.size == 4:
		return cube.Int32, true
	case (et.kind == 'u' || et.kind == 'b') && et.size == 1:
		return cube.Uint8, true
	case et.kind == 'u' && et.size == 2:
		return cube.Uint16, true
	}
	return 0, false
}

// Decode parses a complete .npy file.
func Decode(data []byte) (*cube.Cube, error) {
	h, off, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	if len(h.Shape) != 2 && len(h.Shape) != 3 {
		return nil, codec.Errorf(format, codec.ErrMalformedHeader, "shape %v: only 2-D and 3-D arrays are supported", h.Shape)
	}
	et, err := parseDescr(h.Descr)
	if err != nil {
		return nil, err
	}
	order := cube.RowMajor
	if h.FortranOrder {
		order = cube.ColumnMajor
	}

	n, err := cube.ElementCount(h.Shape)
	if err != nil {
		return nil, codec.Wrap(format, codec.ErrMalformedHeader, err, "shape %v", h.Shape)
	}
	size, ok := cube.Product(n, et.size)
	if !ok {
		return nil, codec.Errorf(format, codec.ErrMalformedHeader, "shape %v of %d-byte elements overflows", h.Shape, et.size)
	}
	body, err := codec.NewReader(format, data, binary.LittleEndian).At(off).Bytes(size)
	if err != nil {
		return nil, err
	}

	var c *cube.Cube
	if dt, ok := et.nativeDType(); ok {
		c, err = cube.FromBytes(h.Shape, dt, order, codec.LittleEndianCopy(body, et.size, et.order))
	} else {
		c, err = widen(h, et, order, n, body)
	}
	if err != nil {
		return nil, err
	}
	c.Source = format
	return c, nil
}

func widen(h *Header, et elemType, order cube.Order, n int, body []byte) (*cube.Cube, error) {
	switch {
	case et.kind == 'f' && et.size == 2:
		logging.Logf("npy: widening float16 array %v to float32", h.Shape)
		return codec.Widen(h.Shape, order, cube.Float32, n, func(i int) float64 {
			return float64(float16.Frombits(et.order.Uint16(body[2*i:])).Float32())
		})
	case et.kind == 'u' && et.size == 4:
		logging.Logf("npy: widening uint32 array %v to float64", h.Shape)
		return codec.Widen(h.Shape, order, cube.Float64, n, func(i int) float64 {
			return codec.Uint32At(body, i, et.order)
		})
	}
	return nil, codec.Errorf(format, codec.ErrUnsupportedDType, "descr %q", h.Descr)
}

// Descr returns the numpy type string for dtype.
func Descr(dtype cube.DType) (string, error) {
	switch dtype {
	case cube.Float64:
		return "<f8", nil
	case cube.Float32:
		return "<f4", nil
	case cube.Int8:
		return "|i1", nil
	case cube.Int16:
		return "<i2", nil
	case cube.Int32:
		return "<i4", nil
	case cube.Uint8:
		return "|u1", nil
	case cube.Uint16:
		return "<u2", nil
	}
	return "", codec.Errorf(format, codec.ErrUnsupportedDType, "%s", dtype)
}

// FormatHeader renders the full preamble for h the way numpy writes it:
// the dict with sorted keys, spare room for the growth axis, space padding
// to a 64-byte boundary and a closing newline. Version 1.0 is used unless
// the header needs the 4-byte length of version 2.0.
func FormatHeader(h Header) []byte {
	var dict strings.Builder
	dict.WriteString("{'descr': '")
	dict.WriteString(h.Descr)
	dict.WriteString("', 'fortran_order': ")
	if h.FortranOrder {
		dict.WriteString("True")
	} else {
		dict.WriteString("False")
	}
	dict.WriteString(", 'shape': ")
	dict.WriteString(shapeRepr(h.Shape))
	dict.WriteString(", }")
	if len(h.Shape) > 0 {
		growth := h.Shape[0]
		if h.FortranOrder {
			growth = h.Shape[len(h.Shape)-1]
		}
		dict.WriteString(strings.Repeat(" ", growthDigits-len(strconv.Itoa(growth))))
	}

	text := dict.String()
	major, lenSize := byte(1), 2
	hlen := len(text) + 1
	pad := align - (len(Magic)+2+lenSize+hlen)%align
	if hlen+pad > 0xffff {
		major, lenSize = 2, 4
		pad = align - (len(Magic)+2+lenSize+hlen)%align
	}

	buf := make([]byte, 0, len(Magic)+2+lenSize+hlen+pad)
	buf = append(buf, Magic...)
	buf = append(buf, major, 0)
	if lenSize == 2 {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(hlen+pad))
	} else {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(hlen+pad))
	}
	buf = append(buf, text...)
	buf = append(buf, strings.Repeat(" ", pad)...)
	return append(buf, '\n')
}

func shapeRepr(shape []int) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = strconv.Itoa(d)
	}
	if len(parts) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Encode writes c as an .npy file. The body keeps c's memory order, which
// the header records as fortran_order.
func Encode(w io.Writer, c *cube.Cube) error {
	if err := c.Validate(); err != nil {
		return err
	}
	descr, err := Descr(c.DType)
	if err != nil {
		return err
	}
	hdr := FormatHeader(Header{Descr: descr, FortranOrder: c.Order == cube.ColumnMajor, Shape: c.Dims})
	if _, err := w.Write(hdr); err != nil {
		return codec.Wrap(format, codec.ErrIOFailure, err, "writing header")
	}
	if _, err := w.Write(c.Data); err != nil {
		return codec.Wrap(format, codec.ErrIOFailure, err, "writing %d bytes of data", len(c.Data))
	}
	return nil
}

// String renders the header like numpy's repr, for diagnostics.
func (h Header) String() string {
	return fmt.Sprintf("v%d.%d descr=%s fortran_order=%t shape=%v", h.Major, h.Minor, h.Descr, h.FortranOrder, h.Shape)
}
