// Package spectrum extracts single-pixel spectra and aggregates rectangular
// regions of interest into one value per channel.
package spectrum

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"

	"hsicube/pkg/cube"
)

// Aggregation reduces the in-rect values of one channel to a single value.
type Aggregation int

const (
	Mean Aggregation = iota
	Median
	Min
	Max
)

func (a Aggregation) String() string {
	switch a {
	case Median:
		return "median"
	case Min:
		return "min"
	case Max:
		return "max"
	default:
		return "mean"
	}
}

// ParseAggregation parses "mean", "median", "min" or "max".
func ParseAggregation(s string) (Aggregation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mean", "avg", "average":
		return Mean, nil
	case "median":
		return Median, nil
	case "min":
		return Min, nil
	case "max":
		return Max, nil
	}
	return Mean, fmt.Errorf("unknown aggregation %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (a Aggregation) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Aggregation) UnmarshalText(text []byte) error {
	parsed, err := ParseAggregation(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// PixelSpectrum returns one value per channel at pixel (x, y).
func PixelSpectrum(c *cube.Cube, layout cube.Layout, x, y int) ([]float64, error) {
	v, err := c.View(layout)
	if err != nil {
		return nil, err
	}
	if !v.InBounds(x, y) {
		return nil, fmt.Errorf("%w: pixel (%d,%d) outside %dx%d",
			cube.ErrIndexOutOfRange, x, y, v.Width, v.Height)
	}
	out := make([]float64, v.Channels)
	for ch := range out {
		out[ch] = v.Value(y, x, ch)
	}
	return out, nil
}

// ROISpectrum aggregates every channel over rect with the given mode. A
// channel with a NaN inside rect aggregates to NaN.
func ROISpectrum(c *cube.Cube, layout cube.Layout, rect cube.Rect, mode Aggregation) ([]float64, error) {
	v, err := c.View(layout)
	if err != nil {
		return nil, err
	}
	if err := rect.Validate(v.Width, v.Height); err != nil {
		return nil, err
	}

	out := make([]float64, v.Channels)
	values := make([]float64, 0, rect.Area())
	for ch := range out {
		values = values[:0]
		for y := rect.MinY; y <= rect.MaxY(); y++ {
			for x := rect.MinX; x <= rect.MaxX(); x++ {
				values = append(values, v.Value(y, x, ch))
			}
		}
		out[ch] = aggregate(values, mode)
	}
	return out, nil
}

// aggregate reduces a non-empty slice. It may reorder values. Any NaN
// makes the result NaN whatever the mode.
func aggregate(values []float64, mode Aggregation) float64 {
	if floats.HasNaN(values) {
		return math.NaN()
	}
	switch mode {
	case Median:
		return median(values)
	case Min:
		return floats.Min(values)
	case Max:
		return floats.Max(values)
	default:
		return floats.Sum(values) / float64(len(values))
	}
}

// median averages the two middle values when the count is even.
func median(values []float64) float64 {
	sort.Float64s(values)
	n := len(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}
