// Package cube holds the in-memory representation of a hyperspectral cube:
// a typed little-endian buffer with two or three physical dimensions, its
// memory order, optional wavelengths and the layout logic that interprets
// the physical axes as height, width and channel.
package cube

import (
	"fmt"
	"math"
	"math/bits"
)

// Order is the memory order of a cube buffer.
type Order int

const (
	// RowMajor is C order: the last index varies fastest.
	RowMajor Order = iota
	// ColumnMajor is Fortran order: the first index varies fastest.
	ColumnMajor
)

func (o Order) String() string {
	if o == ColumnMajor {
		return "F"
	}
	return "C"
}

// Cube is a hyperspectral (3-D) or plain (2-D) image buffer.
type Cube struct {
	// Dims are the physical dimension sizes in storage order. Their
	// semantic roles are assigned by a Layout.
	Dims []int

	// DType is the element type of Data.
	DType DType

	// Order is the memory order of Data.
	Order Order

	// Data holds len(Dims) product elements, little-endian.
	Data []byte

	// Wavelengths has one entry per channel when known.
	Wavelengths []float64

	// WavelengthUnits is free text such as "Nanometers".
	WavelengthUnits string

	// Source names the format the cube was decoded from.
	Source string

	// Name is the variable or file stem the cube was loaded under.
	Name string

	// LayoutHint is the format's natural layout, used in place of Auto.
	LayoutHint Layout
}

// New allocates a zeroed cube.
func New(dims []int, dtype DType, order Order) (*Cube, error) {
	n, err := elementCount(dims)
	if err != nil {
		return nil, err
	}
	if !dtype.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedDType, int(dtype))
	}
	size, ok := Product(n, dtype.Size())
	if !ok {
		return nil, fmt.Errorf("%w: %v %s overflows the buffer size", ErrDimensionMismatch, dims, dtype)
	}
	return &Cube{
		Dims:  append([]int(nil), dims...),
		DType: dtype,
		Order: order,
		Data:  make([]byte, size),
	}, nil
}

// FromBytes wraps data without copying it.
func FromBytes(dims []int, dtype DType, order Order, data []byte) (*Cube, error) {
	c := &Cube{Dims: append([]int(nil), dims...), DType: dtype, Order: order, Data: data}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// FromFloats builds a cube of type dtype from values given in physical
// linear order. Values are stored with the Set write policy.
func FromFloats(dims []int, dtype DType, order Order, values []float64) (*Cube, error) {
	c, err := New(dims, dtype, order)
	if err != nil {
		return nil, err
	}
	if len(values) != c.Len() {
		return nil, fmt.Errorf("%w: %d values for %v", ErrDimensionMismatch, len(values), dims)
	}
	for i, v := range values {
		c.set(i, v)
	}
	return c, nil
}

// NewLike allocates a zeroed cube with c's shape, order and metadata but
// element type dtype.
func NewLike(c *Cube, dtype DType) (*Cube, error) {
	out, err := New(c.Dims, dtype, c.Order)
	if err != nil {
		return nil, err
	}
	out.copyMeta(c)
	return out, nil
}

func elementCount(dims []int) (int, error) {
	if len(dims) != 2 && len(dims) != 3 {
		return 0, fmt.Errorf("%w: rank %d (want 2 or 3)", ErrDimensionMismatch, len(dims))
	}
	for i, d := range dims {
		if d <= 0 {
			return 0, fmt.Errorf("%w: axis %d has size %d", ErrDimensionMismatch, i, d)
		}
	}
	n, ok := Product(dims...)
	if !ok {
		return 0, fmt.Errorf("%w: %v overflows the element count", ErrDimensionMismatch, dims)
	}
	return n, nil
}

// ElementCount returns the number of elements of a 2-D or 3-D shape. Shapes
// with a non-positive axis or a product that overflows int are rejected.
func ElementCount(dims []int) (int, error) { return elementCount(dims) }

// Product multiplies non-negative factors. ok is false when a factor is
// negative or the product does not fit in an int.
func Product(factors ...int) (n int, ok bool) {
	p := uint64(1)
	for _, f := range factors {
		if f < 0 {
			return 0, false
		}
		hi, lo := bits.Mul64(p, uint64(f))
		if hi != 0 || lo > math.MaxInt {
			return 0, false
		}
		p = lo
	}
	return int(p), true
}

// Validate checks the buffer length invariant.
func (c *Cube) Validate() error {
	n, err := elementCount(c.Dims)
	if err != nil {
		return err
	}
	if !c.DType.Valid() {
		return fmt.Errorf("%w: %d", ErrUnsupportedDType, int(c.DType))
	}
	want, ok := Product(n, c.DType.Size())
	if !ok {
		return fmt.Errorf("%w: %v %s overflows the buffer size", ErrDimensionMismatch, c.Dims, c.DType)
	}
	if len(c.Data) != want {
		return fmt.Errorf("%w: buffer has %d bytes, %v %s needs %d",
			ErrDimensionMismatch, len(c.Data), c.Dims, c.DType, want)
	}
	return nil
}

// Rank is the number of physical dimensions.
func (c *Cube) Rank() int { return len(c.Dims) }

// Len is the number of elements.
func (c *Cube) Len() int {
	if c.DType.Size() == 0 {
		return 0
	}
	return len(c.Data) / c.DType.Size()
}

// At reads element i as float64.
func (c *Cube) At(i int) (float64, error) {
	if i < 0 || i >= c.Len() {
		return 0, fmt.Errorf("%w: element %d of %d", ErrIndexOutOfRange, i, c.Len())
	}
	return c.at(i), nil
}

// Set stores v at element i using DType.Saturate.
func (c *Cube) Set(i int, v float64) error {
	if i < 0 || i >= c.Len() {
		return fmt.Errorf("%w: element %d of %d", ErrIndexOutOfRange, i, c.Len())
	}
	c.set(i, v)
	return nil
}

func (c *Cube) at(i int) float64 {
	s := c.DType.Size()
	return c.DType.decode(c.Data[i*s : i*s+s])
}

func (c *Cube) set(i int, v float64) {
	s := c.DType.Size()
	c.DType.encode(c.Data[i*s:i*s+s], c.DType.Saturate(v))
}

// Scan calls fn for elements start, start+stride, ... in linear order.
func (c *Cube) Scan(start, stride int, fn func(i int, v float64)) {
	if stride < 1 {
		stride = 1
	}
	n := c.Len()
	for i := start; i < n; i += stride {
		fn(i, c.at(i))
	}
}

// ElementBytes returns the raw little-endian bytes of element i.
func (c *Cube) ElementBytes(i int) ([]byte, error) {
	if i < 0 || i >= c.Len() {
		return nil, fmt.Errorf("%w: element %d of %d", ErrIndexOutOfRange, i, c.Len())
	}
	s := c.DType.Size()
	return c.Data[i*s : i*s+s], nil
}

// Strides returns the linear-index step of each physical axis.
func (c *Cube) Strides() []int {
	return strides(c.Dims, c.Order)
}

func strides(dims []int, order Order) []int {
	st := make([]int, len(dims))
	step := 1
	if order == ColumnMajor {
		for i := 0; i < len(dims); i++ {
			st[i] = step
			step *= dims[i]
		}
		return st
	}
	for i := len(dims) - 1; i >= 0; i-- {
		st[i] = step
		step *= dims[i]
	}
	return st
}

// LinearIndex converts per-axis indices into an element index honouring the
// memory order: i0*d1*d2 + i1*d2 + i2 for row-major and
// i0 + i1*d0 + i2*d0*d1 for column-major.
func (c *Cube) LinearIndex(idx ...int) (int, error) {
	if len(idx) != len(c.Dims) {
		return 0, fmt.Errorf("%w: %d indices for rank %d", ErrIndexOutOfRange, len(idx), len(c.Dims))
	}
	st := c.Strides()
	linear := 0
	for axis, i := range idx {
		if i < 0 || i >= c.Dims[axis] {
			return 0, fmt.Errorf("%w: axis %d index %d (size %d)", ErrIndexOutOfRange, axis, i, c.Dims[axis])
		}
		linear += i * st[axis]
	}
	return linear, nil
}

// Clone returns a deep copy.
func (c *Cube) Clone() *Cube {
	out := &Cube{
		Dims:  append([]int(nil), c.Dims...),
		DType: c.DType,
		Order: c.Order,
		Data:  append([]byte(nil), c.Data...),
	}
	out.copyMeta(c)
	return out
}

func (c *Cube) copyMeta(src *Cube) {
	if src.Wavelengths != nil {
		c.Wavelengths = append([]float64(nil), src.Wavelengths...)
	}
	c.WavelengthUnits = src.WavelengthUnits
	c.Source = src.Source
	c.Name = src.Name
	c.LayoutHint = src.LayoutHint
}

// Floats returns a float64 copy of the buffer in physical linear order.
func (c *Cube) Floats() []float64 {
	out := make([]float64, c.Len())
	for i := range out {
		out[i] = c.at(i)
	}
	return out
}

// ToOrder returns a copy whose buffer is laid out in order o. Dims and every
// logical element (i0, i1, i2) are unchanged.
func (c *Cube) ToOrder(o Order) *Cube {
	if o == c.Order {
		return c.Clone()
	}
	out := &Cube{
		Dims:  append([]int(nil), c.Dims...),
		DType: c.DType,
		Order: o,
		Data:  make([]byte, len(c.Data)),
	}
	out.copyMeta(c)

	src := c.Strides()
	dst := out.Strides()
	size := c.DType.Size()
	idx := make([]int, len(c.Dims))
	for n := 0; n < c.Len(); n++ {
		s, d := 0, 0
		for axis, i := range idx {
			s += i * src[axis]
			d += i * dst[axis]
		}
		copy(out.Data[d*size:d*size+size], c.Data[s*size:s*size+size])

		// odometer over the logical index, last axis fastest
		for axis := len(idx) - 1; axis >= 0; axis-- {
			idx[axis]++
			if idx[axis] < c.Dims[axis] {
				break
			}
			idx[axis] = 0
		}
	}
	return out
}

// Axes resolves layout against the cube, substituting LayoutHint for Auto
// when the hint is concrete.
func (c *Cube) Axes(layout Layout) (Axes, error) {
	if layout == Auto && c.LayoutHint != Auto {
		layout = c.LayoutHint
	}
	return Resolve(layout, c.Dims)
}

// CheckWavelengths verifies that the wavelength list, if any, has one entry
// per channel under layout.
func (c *Cube) CheckWavelengths(layout Layout) error {
	if len(c.Wavelengths) == 0 {
		return nil
	}
	v, err := c.View(layout)
	if err != nil {
		return err
	}
	if len(c.Wavelengths) != v.Channels {
		return fmt.Errorf("%w: %d wavelengths for %d channels",
			ErrDimensionMismatch, len(c.Wavelengths), v.Channels)
	}
	return nil
}
