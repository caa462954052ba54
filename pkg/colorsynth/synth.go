// Package colorsynth derives 8-bit RGB previews from hyperspectral cubes.
//
// Three strategies are available: Direct maps one channel per color, Range
// averages a channel range per color, and PCA projects every spectrum onto
// the top three principal components. Each output color plane is scaled to
// [0, 255] by its own finite min/max; a flat plane renders black.
package colorsynth

import (
	"fmt"
	"image"
	"math"
	"strings"

	"hsicube/pkg/cube"
)

// Mode selects the synthesis strategy.
type Mode int

const (
	Direct Mode = iota
	Range
	PCA
)

func (m Mode) String() string {
	switch m {
	case Range:
		return "range"
	case PCA:
		return "pca"
	default:
		return "direct"
	}
}

// ParseMode parses "direct", "range" or "pca".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "direct":
		return Direct, nil
	case "range":
		return Range, nil
	case "pca":
		return PCA, nil
	}
	return Direct, fmt.Errorf("unknown color synthesis mode %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Params carries everything a synthesis call needs.
type Params struct {
	Mode    Mode
	Mapping RGBChannelMapping
	Ranges  RGBChannelRangeMapping
	PCA     PCAOptions
}

// WithDefaults fills a zero Mapping with DefaultMapping and zero Ranges
// with DefaultRangeMapping for c. An all-zero mapping is therefore never
// used as an explicit choice.
func (p Params) WithDefaults(c *cube.Cube, layout cube.Layout) (Params, error) {
	v, err := c.View(layout)
	if err != nil {
		return p, err
	}
	if p.Mapping == (RGBChannelMapping{}) {
		p.Mapping = DefaultMapping(c.Wavelengths, v.Channels)
	}
	if p.Ranges == (RGBChannelRangeMapping{}) {
		p.Ranges = DefaultRangeMapping(v.Channels)
	}
	return p, nil
}

// Synthesize dispatches on p.Mode.
func Synthesize(c *cube.Cube, layout cube.Layout, p Params) (*image.RGBA, error) {
	switch p.Mode {
	case Direct:
		return DirectRGB(c, layout, p.Mapping)
	case Range:
		return RangeRGB(c, layout, p.Ranges)
	case PCA:
		return PCARGB(c, layout, p.PCA)
	}
	return nil, fmt.Errorf("unknown color synthesis mode %d", int(p.Mode))
}

// DirectRGB renders the channels selected by m.
func DirectRGB(c *cube.Cube, layout cube.Layout, m RGBChannelMapping) (*image.RGBA, error) {
	v, err := c.View(layout)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(v.Channels); err != nil {
		return nil, err
	}
	var planes [3][]float64
	for k, ch := range m.Channels() {
		plane := make([]float64, v.Pixels())
		for y := 0; y < v.Height; y++ {
			for x := 0; x < v.Width; x++ {
				plane[y*v.Width+x] = v.Value(y, x, ch)
			}
		}
		planes[k] = plane
	}
	return toRGBA(v.Width, v.Height, planes), nil
}

// RangeRGB renders the per-pixel mean of each color's channel range.
// Non-finite values are left out of the mean.
func RangeRGB(c *cube.Cube, layout cube.Layout, m RGBChannelRangeMapping) (*image.RGBA, error) {
	v, err := c.View(layout)
	if err != nil {
		return nil, err
	}
	var planes [3][]float64
	for k, r := range m.Ranges(v.Channels) {
		plane := make([]float64, v.Pixels())
		for y := 0; y < v.Height; y++ {
			for x := 0; x < v.Width; x++ {
				var sum float64
				n := 0
				for ch := r.Start; ch <= r.End; ch++ {
					if val := v.Value(y, x, ch); finite(val) {
						sum += val
						n++
					}
				}
				if n == 0 {
					plane[y*v.Width+x] = math.NaN()
					continue
				}
				plane[y*v.Width+x] = sum / float64(n)
			}
		}
		planes[k] = plane
	}
	return toRGBA(v.Width, v.Height, planes), nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// planeRange returns the finite min and max of plane.
func planeRange(plane []float64) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range plane {
		if !finite(v) {
			continue
		}
		ok = true
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi, ok
}

// toRGBA scales each plane independently to [0, 255].
func toRGBA(width, height int, planes [3][]float64) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for k, plane := range planes {
		lo, hi, ok := planeRange(plane)
		span := hi - lo
		for i, v := range plane {
			var b uint8
			if ok && span > 0 && finite(v) {
				b = uint8(math.Round((v - lo) / span * 255))
			}
			img.Pix[4*i+k] = b
		}
	}
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img
}
