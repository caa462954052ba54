package mat

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/zlib"

	"hsicube/internal/logging"
	"hsicube/pkg/codec"
	"hsicube/pkg/cube"
)

// Variable is one decoded variable.
type Variable struct {
	Name    string
	Class   Class
	Dims    []int
	Complex bool
	Global  bool
	Logical bool

	// Data is the real part of a numeric variable as little-endian
	// elements of Class.DType, column-major.
	Data []byte

	// Rows holds the rows of a char matrix with trailing blanks removed.
	Rows []string
}

// Numeric reports whether v holds a rank 2 or 3 array this package can
// turn into a cube.
func (v *Variable) Numeric() bool {
	_, ok := v.Class.DType()
	return ok && v.Data != nil && (len(v.Dims) == 2 || len(v.Dims) == 3)
}

// Info describes a numeric variable without its data.
type Info struct {
	Name  string
	Dims  []int
	DType cube.DType
}

// Info returns the variable summary. It is only meaningful for numeric
// variables.
func (v *Variable) Info() Info {
	dt, _ := v.Class.DType()
	return Info{Name: v.Name, Dims: append([]int(nil), v.Dims...), DType: dt}
}

// Cube wraps the variable data in a column-major cube.
func (v *Variable) Cube() (*cube.Cube, error) {
	if !v.Numeric() {
		return nil, codec.Errorf(format, codec.ErrUnsupportedDType, "variable %q is %s %v", v.Name, v.Class, v.Dims)
	}
	dt, _ := v.Class.DType()
	c, err := cube.FromBytes(v.Dims, dt, cube.ColumnMajor, v.Data)
	if err != nil {
		return nil, err
	}
	c.Name = v.Name
	c.Source = format
	return c, nil
}

// Floats returns the numeric data in column-major order.
func (v *Variable) Floats() []float64 {
	c, err := v.Cube()
	if err != nil {
		return nil
	}
	return c.Floats()
}

// IsVector reports whether a numeric variable is Nx1 or 1xN.
func (v *Variable) IsVector() bool {
	return v.Numeric() && len(v.Dims) == 2 && (v.Dims[0] == 1 || v.Dims[1] == 1)
}

// ParseHeader checks the 128-byte header and returns the file byte order.
func ParseHeader(data []byte) (binary.ByteOrder, string, error) {
	if len(data) < headerSize {
		return nil, "", &codec.Error{Format: format, Kind: codec.ErrTruncatedData, Offset: int64(len(data)),
			Detail: "file shorter than the 128-byte header", Err: io.ErrUnexpectedEOF}
	}
	var order binary.ByteOrder
	switch string(data[126:128]) {
	case "IM":
		order = binary.LittleEndian
	case "MI":
		order = binary.BigEndian
	default:
		return nil, "", codec.ErrorAt(format, codec.ErrMalformedHeader, 126, "bad endian indicator %q", data[126:128])
	}
	text := strings.TrimRight(string(data[:116]), " \x00")
	if version := order.Uint16(data[124:126]); version == 0x0200 || strings.HasPrefix(text, "MATLAB 7.3") {
		return nil, "", codec.ErrorAt(format, codec.ErrMalformedHeader, 124, "MAT v7.3 (HDF5) files are not supported")
	}
	return order, text, nil
}

// ReadVariables decodes every variable in data. Variables of unsupported
// classes are kept with their name, class and dims but no data.
func ReadVariables(data []byte) ([]*Variable, error) {
	order, _, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	var vars []*Variable
	err = scan(codec.NewReader(format, data, order).At(headerSize), func(v *Variable) {
		vars = append(vars, v)
	})
	if err != nil {
		if !errors.Is(err, codec.ErrTruncatedData) || len(vars) == 0 {
			return nil, err
		}
		logging.Warnf("mat: ignoring truncated tail after %d variables: %v", len(vars), err)
	}
	return vars, nil
}

// ListVariables lists the numeric rank 2 and 3 variables.
func ListVariables(data []byte) ([]Info, error) {
	vars, err := ReadVariables(data)
	if err != nil {
		return nil, err
	}
	var out []Info
	for _, v := range vars {
		if v.Numeric() {
			out = append(out, v.Info())
		}
	}
	return out, nil
}

// Decode loads the variable called name, or the first rank 3 numeric
// variable when name is empty. A vector called <name>_wavelengths or
// wavelengths becomes the cube's wavelength list.
func Decode(data []byte, name string) (*cube.Cube, error) {
	vars, err := ReadVariables(data)
	if err != nil {
		return nil, err
	}
	target := find(vars, name)
	if target == nil {
		if name == "" {
			return nil, codec.Errorf(format, codec.ErrVariableNotFound, "no 3-D numeric variable")
		}
		return nil, codec.Errorf(format, codec.ErrVariableNotFound, "%q", name)
	}
	c, err := target.Cube()
	if err != nil {
		return nil, err
	}
	for _, wname := range []string{target.Name + "_wavelengths", "wavelengths"} {
		if w := lookup(vars, wname); w != nil && w.IsVector() {
			c.Wavelengths = w.Floats()
			break
		}
	}
	return c, nil
}

func find(vars []*Variable, name string) *Variable {
	for _, v := range vars {
		if !v.Numeric() {
			continue
		}
		if name == "" && len(v.Dims) == 3 {
			return v
		}
		if name != "" && v.Name == name {
			return v
		}
	}
	return nil
}

func lookup(vars []*Variable, name string) *Variable {
	for _, v := range vars {
		if v.Name == name {
			return v
		}
	}
	return nil
}

type element struct {
	typ     uint32
	offset  int
	payload []byte
}

func readElement(r *codec.Reader) (element, error) {
	off := r.Pos()
	word0, err := r.Uint32()
	if err != nil {
		return element{}, err
	}
	if n := word0 >> 16; n != 0 {
		if n > 4 {
			return element{}, codec.ErrorAt(format, codec.ErrMalformedHeader, int64(off), "small element of %d bytes", n)
		}
		b, err := r.Bytes(4)
		if err != nil {
			return element{}, err
		}
		return element{typ: word0 & 0xffff, offset: off, payload: b[:n]}, nil
	}
	n, err := r.Uint32()
	if err != nil {
		return element{}, err
	}
	b, err := r.Bytes(int(n))
	if err != nil {
		return element{}, err
	}
	// some writers leave out the padding of the last element
	_ = r.Skip(min(pad8(int(n)), r.Remaining()))
	return element{typ: word0, offset: off, payload: b}, nil
}

func scan(r *codec.Reader, visit func(*Variable)) error {
	for r.Remaining() >= 8 {
		el, err := readElement(r)
		if err != nil {
			return err
		}
		switch el.typ {
		case miMATRIX:
			v, err := parseMatrix(codec.NewReader(format, el.payload, r.Order()))
			if err != nil {
				return err
			}
			visit(v)
		case miCOMPRESSED:
			zr, err := zlib.NewReader(bytes.NewReader(el.payload))
			if err != nil {
				return &codec.Error{Format: format, Kind: codec.ErrMalformedHeader, Offset: int64(el.offset),
					Detail: "compressed element", Err: err}
			}
			inflated, err := io.ReadAll(zr)
			zr.Close()
			if err != nil {
				return &codec.Error{Format: format, Kind: codec.ErrTruncatedData, Offset: int64(el.offset),
					Detail: "inflating compressed element", Err: err}
			}
			if err := scan(codec.NewReader(format, inflated, r.Order()), visit); err != nil {
				return err
			}
		default:
			logging.Debugf("mat: skipping element type %d at offset %d", el.typ, el.offset)
		}
	}
	return nil
}

func parseMatrix(r *codec.Reader) (*Variable, error) {
	v := &Variable{}
	if r.Remaining() == 0 {
		// empty [] arrays are written as a bare miMATRIX tag
		return v, nil
	}

	flags, err := readElement(r)
	if err != nil {
		return nil, err
	}
	if flags.typ != miUINT32 || len(flags.payload) < 8 {
		return nil, codec.ErrorAt(format, codec.ErrMalformedHeader, int64(flags.offset), "array flags of type %d", flags.typ)
	}
	f0 := r.Order().Uint32(flags.payload)
	v.Class = Class(f0 & 0xff)
	v.Complex = f0&flagComplex != 0
	v.Global = f0&flagGlobal != 0
	v.Logical = f0&flagLogical != 0

	dimsEl, err := readElement(r)
	if err != nil {
		return nil, err
	}
	if v.Dims, err = parseDims(dimsEl, r.Order()); err != nil {
		return nil, err
	}

	nameEl, err := readElement(r)
	if err != nil {
		return nil, err
	}
	v.Name = string(nameEl.payload)

	switch {
	case v.Class == ClassChar:
		data, err := readElement(r)
		if err != nil {
			return nil, err
		}
		v.Rows = charRows(data, v.Dims, r.Order())
	case v.Complex:
		logging.Debugf("mat: skipping complex variable %q", v.Name)
	default:
		dt, ok := v.Class.DType()
		if !ok {
			logging.Debugf("mat: skipping %s variable %q", v.Class, v.Name)
			return v, nil
		}
		if len(v.Dims) != 2 && len(v.Dims) != 3 {
			logging.Debugf("mat: skipping %d-D variable %q", len(v.Dims), v.Name)
			return v, nil
		}
		re, err := readElement(r)
		if err != nil {
			return nil, err
		}
		v.Data, err = numericData(re, v, dt, r.Order())
		if err != nil {
			return nil, err
		}
	}
	return v, nil
}

func parseDims(el element, order binary.ByteOrder) ([]int, error) {
	size := miSize(el.typ)
	switch el.typ {
	case miINT32, miUINT32, miINT64, miUINT64:
	default:
		return nil, codec.ErrorAt(format, codec.ErrMalformedHeader, int64(el.offset), "dimensions of type %d", el.typ)
	}
	if len(el.payload) == 0 || len(el.payload)%size != 0 {
		return nil, codec.ErrorAt(format, codec.ErrMalformedHeader, int64(el.offset), "dimensions of %d bytes", len(el.payload))
	}
	dims := make([]int, len(el.payload)/size)
	for i := range dims {
		var d int64
		switch el.typ {
		case miINT32:
			d = int64(int32(order.Uint32(el.payload[4*i:])))
		case miUINT32:
			d = int64(order.Uint32(el.payload[4*i:]))
		default:
			d = int64(order.Uint64(el.payload[8*i:]))
		}
		if d < 0 || d > math.MaxInt32 {
			return nil, codec.ErrorAt(format, codec.ErrMalformedHeader, int64(el.offset), "dimension %d", d)
		}
		dims[i] = int(d)
	}
	return dims, nil
}

// numericData converts the stored real part to the class element type.
// MATLAB may store data in a narrower type than the class to save space.
func numericData(el element, v *Variable, dt cube.DType, order binary.ByteOrder) ([]byte, error) {
	size := miSize(el.typ)
	if size == 0 || el.typ == miUTF8 || el.typ == miUTF16 || el.typ == miUTF32 {
		return nil, codec.ErrorAt(format, codec.ErrUnsupportedDType, int64(el.offset), "variable %q stored as type %d", v.Name, el.typ)
	}
	n := 1
	for _, d := range v.Dims {
		n *= d
	}
	if n == 0 {
		logging.Debugf("mat: skipping empty variable %q", v.Name)
		return nil, nil
	}
	if len(el.payload) != n*size {
		return nil, codec.ErrorAt(format, codec.ErrTruncatedData, int64(el.offset),
			"variable %q has %d data bytes, want %d", v.Name, len(el.payload), n*size)
	}

	_, stored, _ := classOf(dt)
	if stored == el.typ {
		return codec.LittleEndianCopy(el.payload, size, order), nil
	}
	c, err := codec.Widen(v.Dims, cube.ColumnMajor, dt, n, func(i int) float64 {
		return miValue(el.typ, el.payload[i*size:], order)
	})
	if err != nil {
		return nil, err
	}
	return c.Data, nil
}

func miValue(t uint32, b []byte, order binary.ByteOrder) float64 {
	switch t {
	case miINT8:
		return float64(int8(b[0]))
	case miUINT8:
		return float64(b[0])
	case miINT16:
		return float64(int16(order.Uint16(b)))
	case miUINT16:
		return float64(order.Uint16(b))
	case miINT32:
		return float64(int32(order.Uint32(b)))
	case miUINT32:
		return float64(order.Uint32(b))
	case miSINGLE:
		return float64(math.Float32frombits(order.Uint32(b)))
	case miDOUBLE:
		return math.Float64frombits(order.Uint64(b))
	case miINT64:
		return float64(int64(order.Uint64(b)))
	case miUINT64:
		return float64(order.Uint64(b))
	}
	return 0
}

// charRows decodes a column-major char matrix into its rows.
func charRows(el element, dims []int, order binary.ByteOrder) []string {
	if len(dims) != 2 {
		return nil
	}
	n := dims[0] * dims[1]
	var runes []rune
	switch el.typ {
	case miUINT16, miUTF16:
		for i := 0; i+1 < len(el.payload); i += 2 {
			runes = append(runes, rune(order.Uint16(el.payload[i:])))
		}
	default:
		if len(el.payload) == n {
			for _, b := range el.payload {
				runes = append(runes, rune(b))
			}
		} else if utf8.Valid(el.payload) {
			runes = []rune(string(el.payload))
		}
	}
	if len(runes) != n {
		return nil
	}
	rows := make([]string, dims[0])
	line := make([]rune, dims[1])
	for i := range rows {
		for j := range line {
			line[j] = runes[j*dims[0]+i]
		}
		rows[i] = strings.TrimRight(string(line), " \x00")
	}
	return rows
}
