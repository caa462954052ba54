package cube

import "errors"

// Error kinds shared by every component that operates on a cube.
// Callers test for them with errors.Is; the wrapped message carries the
// offending index, dimension or rectangle.
var (
	ErrIndexOutOfRange      = errors.New("index out of range")
	ErrLayoutUnavailable    = errors.New("layout unavailable")
	ErrDimensionMismatch    = errors.New("dimension mismatch")
	ErrInsufficientChannels = errors.New("insufficient channels")
	ErrRectOutOfBounds      = errors.New("rect out of bounds")
	ErrEmptyRect            = errors.New("empty rect")
	ErrDuplicateClassID     = errors.New("duplicate class id")
	ErrInvalidClassID       = errors.New("invalid class id")
	ErrUnsupportedDType     = errors.New("unsupported dtype")
)
