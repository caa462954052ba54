package cube

import "fmt"

// View binds a 3-D cube to resolved axes so callers can address elements by
// (y, x, channel) without caring about the physical layout.
type View struct {
	Cube     *Cube
	Axes     Axes
	Height   int
	Width    int
	Channels int

	sy, sx, sc int
}

// View resolves layout and returns a spatial view of c.
func (c *Cube) View(layout Layout) (*View, error) {
	axes, err := c.Axes(layout)
	if err != nil {
		return nil, err
	}
	st := c.Strides()
	return &View{
		Cube:     c,
		Axes:     axes,
		Height:   c.Dims[axes.Height],
		Width:    c.Dims[axes.Width],
		Channels: c.Dims[axes.Channel],
		sy:       st[axes.Height],
		sx:       st[axes.Width],
		sc:       st[axes.Channel],
	}, nil
}

// Index returns the linear element index of (y, x, ch). The caller
// guarantees the coordinates are in range.
func (v *View) Index(y, x, ch int) int {
	return y*v.sy + x*v.sx + ch*v.sc
}

// Value reads (y, x, ch) without bounds checks. Callers validate coordinates
// first, typically through Rect.Validate or InBounds.
func (v *View) Value(y, x, ch int) float64 {
	return v.Cube.at(v.Index(y, x, ch))
}

// At reads (y, x, ch) with bounds checks.
func (v *View) At(y, x, ch int) (float64, error) {
	if !v.InBounds(x, y) || ch < 0 || ch >= v.Channels {
		return 0, fmt.Errorf("%w: pixel (%d,%d) channel %d of %dx%dx%d",
			ErrIndexOutOfRange, x, y, ch, v.Width, v.Height, v.Channels)
	}
	return v.Value(y, x, ch), nil
}

// InBounds reports whether pixel (x, y) lies inside the spatial extent.
func (v *View) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < v.Width && y < v.Height
}

// Pixels is Height*Width.
func (v *View) Pixels() int { return v.Height * v.Width }
