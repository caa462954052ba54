// Package mask merges per-class segmentation layers into a single label
// raster and renders it for export.
package mask

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"hsicube/pkg/cube"
)

// ErrNoLayers is returned when there is nothing to merge.
var ErrNoLayers = errors.New("no mask layers")

// Background is the label of pixels no layer marks.
const Background uint16 = 0

// Layer is one class of a segmentation. Pixels is row-major, Width*Height.
type Layer struct {
	ClassID uint16
	Name    string
	Color   colorful.Color
	Width   int
	Height  int
	Pixels  []bool
}

// NewLayer allocates an empty layer with the default color for id.
func NewLayer(id uint16, name string, width, height int) (*Layer, error) {
	n, err := layerSize(width, height)
	if err != nil {
		return nil, fmt.Errorf("layer %q: %w", name, err)
	}
	return &Layer{
		ClassID: id,
		Name:    name,
		Color:   DefaultColor(id),
		Width:   width,
		Height:  height,
		Pixels:  make([]bool, n),
	}, nil
}

func layerSize(width, height int) (int, error) {
	n, ok := cube.Product(width, height)
	if width <= 0 || height <= 0 || !ok {
		return 0, fmt.Errorf("%w: size %dx%d", cube.ErrDimensionMismatch, width, height)
	}
	return n, nil
}

// Set marks or clears pixel (x, y).
func (l *Layer) Set(x, y int, on bool) error {
	if x < 0 || y < 0 || x >= l.Width || y >= l.Height {
		return fmt.Errorf("%w: pixel (%d,%d) outside %dx%d", cube.ErrIndexOutOfRange, x, y, l.Width, l.Height)
	}
	l.Pixels[y*l.Width+x] = on
	return nil
}

// At reports whether pixel (x, y) is marked. Out-of-range pixels are not.
func (l *Layer) At(x, y int) bool {
	if x < 0 || y < 0 || x >= l.Width || y >= l.Height {
		return false
	}
	return l.Pixels[y*l.Width+x]
}

// Fill marks every pixel inside rect.
func (l *Layer) Fill(rect cube.Rect) error {
	if err := rect.Validate(l.Width, l.Height); err != nil {
		return err
	}
	for y := rect.MinY; y <= rect.MaxY(); y++ {
		for x := rect.MinX; x <= rect.MaxX(); x++ {
			l.Pixels[y*l.Width+x] = true
		}
	}
	return nil
}

// Count is the number of marked pixels.
func (l *Layer) Count() int {
	n := 0
	for _, on := range l.Pixels {
		if on {
			n++
		}
	}
	return n
}

// DefaultColor returns a stable color for a class id.
func DefaultColor(id uint16) colorful.Color {
	h := math.Mod(float64(id)*137.508+20, 360)
	return colorful.Hsv(h, 0.75, 0.95)
}

// Raster is a merged label image, one class id per pixel, row-major.
type Raster struct {
	Width  int
	Height int
	Labels []uint16
}

// Merge composites layers in order. Later layers overwrite earlier ones
// where both mark a pixel; unmarked pixels stay Background.
func Merge(layers []*Layer) (*Raster, error) {
	if len(layers) == 0 {
		return nil, ErrNoLayers
	}
	w, h := layers[0].Width, layers[0].Height
	n, err := layerSize(w, h)
	if err != nil {
		return nil, fmt.Errorf("layer %q: %w", layers[0].Name, err)
	}
	seen := make(map[uint16]string, len(layers))
	for _, l := range layers {
		if l.ClassID == Background {
			return nil, fmt.Errorf("%w: layer %q uses background id 0", cube.ErrInvalidClassID, l.Name)
		}
		if prev, dup := seen[l.ClassID]; dup {
			return nil, fmt.Errorf("%w: id %d used by %q and %q", cube.ErrDuplicateClassID, l.ClassID, prev, l.Name)
		}
		seen[l.ClassID] = l.Name
		if l.Width != w || l.Height != h || len(l.Pixels) != n {
			return nil, fmt.Errorf("%w: layer %q is %dx%d, want %dx%d",
				cube.ErrDimensionMismatch, l.Name, l.Width, l.Height, w, h)
		}
	}

	r := &Raster{Width: w, Height: h, Labels: make([]uint16, n)}
	for _, l := range layers {
		for i, on := range l.Pixels {
			if on {
				r.Labels[i] = l.ClassID
			}
		}
	}
	return r, nil
}

// At returns the label at (x, y).
func (r *Raster) At(x, y int) uint16 { return r.Labels[y*r.Width+x] }

// Count is the number of non-background pixels.
func (r *Raster) Count() int {
	n := 0
	for _, v := range r.Labels {
		if v != Background {
			n++
		}
	}
	return n
}

// MaxLabel is the largest label present.
func (r *Raster) MaxLabel() uint16 {
	var m uint16
	for _, v := range r.Labels {
		m = max(m, v)
	}
	return m
}

// Cube returns the labels as a 2-D HxW row-major cube, uint8 when every
// label fits and uint16 otherwise.
func (r *Raster) Cube() (*cube.Cube, error) {
	dtype := cube.Uint8
	if r.MaxLabel() > math.MaxUint8 {
		dtype = cube.Uint16
	}
	c, err := cube.New([]int{r.Height, r.Width}, dtype, cube.RowMajor)
	if err != nil {
		return nil, err
	}
	if len(r.Labels) != c.Len() {
		return nil, fmt.Errorf("%w: %d labels for %dx%d", cube.ErrDimensionMismatch, len(r.Labels), r.Width, r.Height)
	}
	for i, v := range r.Labels {
		if err := c.Set(i, float64(v)); err != nil {
			return nil, err
		}
	}
	c.Name = "mask"
	return c, nil
}

// GrayImage encodes labels as gray levels: 8-bit when every label fits,
// 16-bit otherwise.
func (r *Raster) GrayImage() image.Image {
	rect := image.Rect(0, 0, r.Width, r.Height)
	if r.MaxLabel() <= math.MaxUint8 {
		img := image.NewGray(rect)
		for i, v := range r.Labels {
			img.Pix[i] = uint8(v)
		}
		return img
	}
	img := image.NewGray16(rect)
	for i, v := range r.Labels {
		img.Pix[2*i] = uint8(v >> 8)
		img.Pix[2*i+1] = uint8(v)
	}
	return img
}

// ColorImage paints each pixel with its class color. Background and labels
// without metadata are black.
func (r *Raster) ColorImage(classes []ClassInfo) *image.RGBA {
	palette := make(map[uint16]color.RGBA, len(classes))
	for _, ci := range classes {
		cr, cg, cb := ci.Color.Clamped().RGB255()
		palette[ci.ID] = color.RGBA{R: cr, G: cg, B: cb, A: 0xff}
	}
	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	black := color.RGBA{A: 0xff}
	for i, v := range r.Labels {
		c, ok := palette[v]
		if !ok || v == Background {
			c = black
		}
		img.Pix[4*i] = c.R
		img.Pix[4*i+1] = c.G
		img.Pix[4*i+2] = c.B
		img.Pix[4*i+3] = c.A
	}
	return img
}

// ClassInfo is the exported metadata of one class.
type ClassInfo struct {
	ID    uint16
	Name  string
	Color colorful.Color
}

type classJSON struct {
	ID    uint16 `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// MarshalJSON writes the color as a hex string.
func (ci ClassInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(classJSON{ID: ci.ID, Name: ci.Name, Color: ci.Color.Clamped().Hex()})
}

// UnmarshalJSON reads the form written by MarshalJSON.
func (ci *ClassInfo) UnmarshalJSON(data []byte) error {
	var raw classJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c, err := colorful.Hex(raw.Color)
	if err != nil {
		return fmt.Errorf("class %d: %w", raw.ID, err)
	}
	*ci = ClassInfo{ID: raw.ID, Name: raw.Name, Color: c}
	return nil
}

// ClassMetadata projects layers to their metadata, in layer order.
func ClassMetadata(layers []*Layer) []ClassInfo {
	out := make([]ClassInfo, len(layers))
	for i, l := range layers {
		out[i] = ClassInfo{ID: l.ClassID, Name: l.Name, Color: l.Color}
	}
	return out
}
