// Package stats computes summary statistics over cube buffers in a single
// streaming pass.
//
// Large cubes are summarised over a deterministic stride-sampled subset: when
// a cube holds more than Options.MaxSamples elements, every Stride-th linear
// element starting at element 0 is visited, with
// Stride = ceil(len / MaxSamples). The returned Summary always reports the
// stride used and whether sampling happened.
package stats

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"hsicube/internal/logging"
	"hsicube/pkg/cube"
)

// DefaultMaxSamples is the element count above which passes are sampled.
const DefaultMaxSamples = 1 << 24

// Options controls sampling.
type Options struct {
	// MaxSamples bounds the number of visited elements. Zero selects
	// DefaultMaxSamples; a negative value disables sampling.
	MaxSamples int
}

// Summary is the result of a statistics pass. Non-finite elements are
// skipped and counted in NonFinite.
type Summary struct {
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64 // population standard deviation

	Count     int
	NonFinite int

	Stride  int
	Sampled bool
}

// Stride returns the sampling step for n elements.
func Stride(n, maxSamples int) int {
	if maxSamples == 0 {
		maxSamples = DefaultMaxSamples
	}
	if maxSamples < 0 || n <= maxSamples {
		return 1
	}
	return (n + maxSamples - 1) / maxSamples
}

// accumulator is a Welford mean/variance accumulator with min/max tracking.
type accumulator struct {
	n         int
	nonFinite int
	mean, m2  float64
	min, max  float64
}

func (a *accumulator) add(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		a.nonFinite++
		return
	}
	a.n++
	if a.n == 1 {
		a.min, a.max = v, v
	} else {
		if v < a.min {
			a.min = v
		}
		if v > a.max {
			a.max = v
		}
	}
	delta := v - a.mean
	a.mean += delta / float64(a.n)
	a.m2 += delta * (v - a.mean)
}

func (a *accumulator) summary() Summary {
	s := Summary{Count: a.n, NonFinite: a.nonFinite, Stride: 1}
	if a.n == 0 {
		return s
	}
	s.Min, s.Max = a.min, a.max
	// rounding must not push the mean outside [min, max]
	s.Mean = math.Min(math.Max(a.mean, a.min), a.max)
	if a.m2 > 0 {
		s.StdDev = math.Sqrt(a.m2 / float64(a.n))
	}
	return s
}

// Compute summarises c with default options.
func Compute(c *cube.Cube) Summary {
	return ComputeWithOptions(c, Options{})
}

// ComputeWithOptions summarises c in one pass.
func ComputeWithOptions(c *cube.Cube, opts Options) Summary {
	stride := Stride(c.Len(), opts.MaxSamples)
	var acc accumulator
	c.Scan(0, stride, func(_ int, v float64) {
		acc.add(v)
	})
	s := acc.summary()
	s.Stride = stride
	s.Sampled = stride > 1
	if s.Sampled {
		logging.Debugf("stats: sampled every %d of %d elements", stride, c.Len())
	}
	return s
}

// Percentile returns the p-th percentile (0 <= p <= 100) of the finite
// elements of c, linearly interpolated, over the same deterministic sample
// used by ComputeWithOptions.
func Percentile(c *cube.Cube, p float64) (float64, error) {
	return PercentileWithOptions(c, p, Options{})
}

// PercentileWithOptions is Percentile with explicit sampling options.
func PercentileWithOptions(c *cube.Cube, p float64, opts Options) (float64, error) {
	values, err := sortedSample(c, opts)
	if err != nil {
		return 0, err
	}
	return quantile(values, p)
}

// Percentiles evaluates several percentiles over one sorted sample.
func Percentiles(c *cube.Cube, ps []float64, opts Options) ([]float64, error) {
	values, err := sortedSample(c, opts)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(ps))
	for i, p := range ps {
		if out[i], err = quantile(values, p); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func sortedSample(c *cube.Cube, opts Options) ([]float64, error) {
	stride := Stride(c.Len(), opts.MaxSamples)
	values := make([]float64, 0, c.Len()/stride+1)
	c.Scan(0, stride, func(_ int, v float64) {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			values = append(values, v)
		}
	})
	if len(values) == 0 {
		return nil, fmt.Errorf("percentile: cube has no finite values")
	}
	sort.Float64s(values)
	return values, nil
}

func quantile(sorted []float64, p float64) (float64, error) {
	if math.IsNaN(p) || p < 0 || p > 100 {
		return 0, fmt.Errorf("percentile %v outside [0, 100]", p)
	}
	return stat.Quantile(p/100, stat.LinInterp, sorted, nil), nil
}

// Channels summarises every channel of c under layout.
func Channels(c *cube.Cube, layout cube.Layout) ([]Summary, error) {
	v, err := c.View(layout)
	if err != nil {
		return nil, err
	}
	return region(v, cube.Rect{Width: v.Width, Height: v.Height}), nil
}

// ROI summarises every channel of c inside rect.
func ROI(c *cube.Cube, layout cube.Layout, rect cube.Rect) ([]Summary, error) {
	v, err := c.View(layout)
	if err != nil {
		return nil, err
	}
	if err := rect.Validate(v.Width, v.Height); err != nil {
		return nil, err
	}
	return region(v, rect), nil
}

func region(v *cube.View, rect cube.Rect) []Summary {
	out := make([]Summary, v.Channels)
	for ch := 0; ch < v.Channels; ch++ {
		var acc accumulator
		for y := rect.MinY; y <= rect.MaxY(); y++ {
			for x := rect.MinX; x <= rect.MaxX(); x++ {
				acc.add(v.Value(y, x, ch))
			}
		}
		out[ch] = acc.summary()
	}
	return out
}

// Histogram holds equal-width bin counts between Min and Max.
type Histogram struct {
	Min, Max float64
	Counts   []int
}

// BinWidth is the width of one bin.
func (h Histogram) BinWidth() float64 {
	if len(h.Counts) == 0 {
		return 0
	}
	return (h.Max - h.Min) / float64(len(h.Counts))
}

// ComputeHistogram bins the finite elements of c into bins equal-width bins
// spanning the sampled min and max. The max value falls in the last bin.
func ComputeHistogram(c *cube.Cube, bins int, opts Options) (Histogram, error) {
	if bins <= 0 {
		return Histogram{}, fmt.Errorf("histogram: %d bins", bins)
	}
	s := ComputeWithOptions(c, opts)
	h := Histogram{Min: s.Min, Max: s.Max, Counts: make([]int, bins)}
	if s.Count == 0 {
		return h, nil
	}
	span := s.Max - s.Min
	c.Scan(0, s.Stride, func(_ int, v float64) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return
		}
		bin := 0
		if span > 0 {
			bin = int((v - s.Min) / span * float64(bins))
		}
		if bin >= bins {
			bin = bins - 1
		}
		h.Counts[bin]++
	})
	return h, nil
}
