// Package mat reads and writes MATLAB level 5 MAT-files.
//
// A file is a 128-byte header followed by data elements. Each element has
// an 8-byte tag (type, byte count) and a payload padded to 8 bytes; payloads
// of at most 4 bytes may use the packed "small element" tag instead.
// Variables are miMATRIX elements holding array flags, dimensions, a name
// and the real part, optionally wrapped in a zlib miCOMPRESSED element.
package mat

import (
	"fmt"

	"hsicube/pkg/cube"
)

const format = "mat"

const headerSize = 128

// Data element types.
const (
	miINT8       = 1
	miUINT8      = 2
	miINT16      = 3
	miUINT16     = 4
	miINT32      = 5
	miUINT32     = 6
	miSINGLE     = 7
	miDOUBLE     = 9
	miINT64      = 12
	miUINT64     = 13
	miMATRIX     = 14
	miCOMPRESSED = 15
	miUTF8       = 16
	miUTF16      = 17
	miUTF32      = 18
)

// Array flag bits above the class byte.
const (
	flagLogical = 0x0200
	flagGlobal  = 0x0400
	flagComplex = 0x0800
)

// Class is a MATLAB array class.
type Class uint8

const (
	ClassCell   Class = 1
	ClassStruct Class = 2
	ClassObject Class = 3
	ClassChar   Class = 4
	ClassSparse Class = 5
	ClassDouble Class = 6
	ClassSingle Class = 7
	ClassInt8   Class = 8
	ClassUint8  Class = 9
	ClassInt16  Class = 10
	ClassUint16 Class = 11
	ClassInt32  Class = 12
	ClassUint32 Class = 13
	ClassInt64  Class = 14
	ClassUint64 Class = 15
)

func (c Class) String() string {
	switch c {
	case ClassCell:
		return "cell"
	case ClassStruct:
		return "struct"
	case ClassObject:
		return "object"
	case ClassChar:
		return "char"
	case ClassSparse:
		return "sparse"
	case ClassDouble:
		return "double"
	case ClassSingle:
		return "single"
	case ClassInt8:
		return "int8"
	case ClassUint8:
		return "uint8"
	case ClassInt16:
		return "int16"
	case ClassUint16:
		return "uint16"
	case ClassInt32:
		return "int32"
	case ClassUint32:
		return "uint32"
	case ClassInt64:
		return "int64"
	case ClassUint64:
		return "uint64"
	}
	return fmt.Sprintf("class(%d)", uint8(c))
}

// DType maps numeric classes to the cube element type.
func (c Class) DType() (cube.DType, bool) {
	switch c {
	case ClassDouble:
		return cube.Float64, true
	case ClassSingle:
		return cube.Float32, true
	case ClassInt8:
		return cube.Int8, true
	case ClassUint8:
		return cube.Uint8, true
	case ClassInt16:
		return cube.Int16, true
	case ClassUint16:
		return cube.Uint16, true
	case ClassInt32:
		return cube.Int32, true
	}
	return 0, false
}

// classOf is the inverse of Class.DType.
func classOf(dtype cube.DType) (Class, uint32, error) {
	switch dtype {
	case cube.Float64:
		return ClassDouble, miDOUBLE, nil
	case cube.Float32:
		return ClassSingle, miSINGLE, nil
	case cube.Int8:
		return ClassInt8, miINT8, nil
	case cube.Uint8:
		return ClassUint8, miUINT8, nil
	case cube.Int16:
		return ClassInt16, miINT16, nil
	case cube.Uint16:
		return ClassUint16, miUINT16, nil
	case cube.Int32:
		return ClassInt32, miINT32, nil
	}
	return 0, 0, fmt.Errorf("%w: %s", cube.ErrUnsupportedDType, dtype)
}

// miSize is the element size of numeric data types, 0 for others.
func miSize(t uint32) int {
	switch t {
	case miINT8, miUINT8, miUTF8:
		return 1
	case miINT16, miUINT16, miUTF16:
		return 2
	case miINT32, miUINT32, miSINGLE, miUTF32:
		return 4
	case miDOUBLE, miINT64, miUINT64:
		return 8
	}
	return 0
}

func pad8(n int) int { return (8 - n%8) % 8 }
