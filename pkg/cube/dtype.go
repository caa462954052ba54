package cube

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// DType is the numeric element type of a cube buffer.
type DType int

const (
	Float64 DType = iota
	Float32
	Int8
	Int16
	Int32
	Uint8
	Uint16
)

// DTypes lists every supported element type.
var DTypes = []DType{Float64, Float32, Int8, Int16, Int32, Uint8, Uint16}

// Size returns the element size in bytes.
func (d DType) Size() int {
	switch d {
	case Float64:
		return 8
	case Float32, Int32:
		return 4
	case Int16, Uint16:
		return 2
	case Int8, Uint8:
		return 1
	default:
		return 0
	}
}

// IsFloat reports whether d is a floating point type.
func (d DType) IsFloat() bool {
	return d == Float64 || d == Float32
}

// Valid reports whether d is one of the supported types.
func (d DType) Valid() bool {
	return d >= Float64 && d <= Uint16
}

// Range returns the smallest and largest representable values of d.
func (d DType) Range() (lo, hi float64) {
	switch d {
	case Float64:
		return -math.MaxFloat64, math.MaxFloat64
	case Float32:
		return -math.MaxFloat32, math.MaxFloat32
	case Int8:
		return math.MinInt8, math.MaxInt8
	case Int16:
		return math.MinInt16, math.MaxInt16
	case Int32:
		return math.MinInt32, math.MaxInt32
	case Uint8:
		return 0, math.MaxUint8
	case Uint16:
		return 0, math.MaxUint16
	default:
		return 0, 0
	}
}

func (d DType) String() string {
	switch d {
	case Float64:
		return "float64"
	case Float32:
		return "float32"
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	default:
		return fmt.Sprintf("DType(%d)", int(d))
	}
}

// ParseDType parses the names produced by String. "double" and "single"
// are accepted as MATLAB-style aliases.
func ParseDType(s string) (DType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "float64", "double", "f8":
		return Float64, nil
	case "float32", "single", "f4":
		return Float32, nil
	case "int8", "i1":
		return Int8, nil
	case "int16", "i2":
		return Int16, nil
	case "int32", "i4":
		return Int32, nil
	case "uint8", "u1":
		return Uint8, nil
	case "uint16", "u2":
		return Uint16, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedDType, s)
}

// MarshalText implements encoding.TextMarshaler so dtypes read naturally in
// YAML and JSON documents.
func (d DType) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedDType, int(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DType) UnmarshalText(text []byte) error {
	parsed, err := ParseDType(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// decode reads one little-endian element of type d from b.
func (d DType) decode(b []byte) float64 {
	switch d {
	case Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	case Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case Int8:
		return float64(int8(b[0]))
	case Int16:
		return float64(int16(binary.LittleEndian.Uint16(b)))
	case Int32:
		return float64(int32(binary.LittleEndian.Uint32(b)))
	case Uint8:
		return float64(b[0])
	case Uint16:
		return float64(binary.LittleEndian.Uint16(b))
	}
	return 0
}

// encode writes v into b as a little-endian element of type d. v must
// already be representable (see Saturate).
func (d DType) encode(b []byte, v float64) {
	switch d {
	case Float64:
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	case Float32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
	case Int8:
		b[0] = byte(int8(v))
	case Int16:
		binary.LittleEndian.PutUint16(b, uint16(int16(v)))
	case Int32:
		binary.LittleEndian.PutUint32(b, uint32(int32(v)))
	case Uint8:
		b[0] = byte(v)
	case Uint16:
		binary.LittleEndian.PutUint16(b, uint16(v))
	}
}

// Saturate maps v onto a value representable by d. For integer types v is
// rounded half away from zero and clamped to Range, NaN becomes 0, +Inf the
// maximum and -Inf the minimum. Float types keep NaN and infinities; finite
// values outside the float32 range clamp to it.
func (d DType) Saturate(v float64) float64 {
	lo, hi := d.Range()
	if d.IsFloat() && (math.IsNaN(v) || math.IsInf(v, 0)) {
		return v
	}
	switch {
	case math.IsNaN(v):
		return 0
	case math.IsInf(v, 1):
		return hi
	case math.IsInf(v, -1):
		return lo
	}
	if !d.IsFloat() {
		v = math.Round(v)
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
