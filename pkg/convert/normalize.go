package convert

import (
	"fmt"
	"math"
	"strings"

	"hsicube/pkg/cube"
	"hsicube/pkg/stats"
)

// Method is a normalization method.
type Method int

const (
	None Method = iota
	MinMax
	Percentile
	ZScore
	Log
	Fraction
)

var methodNames = map[Method]string{
	None:       "none",
	MinMax:     "minmax",
	Percentile: "percentile",
	ZScore:     "zscore",
	Log:        "log",
	Fraction:   "fraction",
}

func (m Method) String() string {
	if s, ok := methodNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// ParseMethod parses a method name.
func ParseMethod(s string) (Method, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range methodNames {
		if name == s {
			return m, nil
		}
	}
	return None, fmt.Errorf("unknown normalization method %q", s)
}

// NormalizeParams configures Normalize.
type NormalizeParams struct {
	Method Method

	// Lower and Upper are percentiles in [0, 100] used by Percentile.
	Lower, Upper float64

	Stats stats.Options
}

// DefaultNormalizeParams is min-max normalization with 2/98 percentile
// bounds preset for the Percentile method.
func DefaultNormalizeParams() NormalizeParams {
	return NormalizeParams{Method: MinMax, Lower: 2, Upper: 98}
}

// Normalize returns a float64 copy of c rescaled by p.Method:
//
//	MinMax      (v - min) / (max - min)
//	Percentile  values clipped to [P(lower), P(upper)], then scaled to [0, 1]
//	ZScore      (v - mean) / stddev
//	Log         log1p(v - min)
//	Fraction    v / dtype max, for integer sources
//
// NaN elements stay NaN. Degenerate ranges (max == min, stddev == 0) map
// every finite value to 0.
func Normalize(c *cube.Cube, p NormalizeParams) (*cube.Cube, error) {
	out, err := cube.NewLike(c, cube.Float64)
	if err != nil {
		return nil, err
	}

	var fn func(float64) float64
	switch p.Method {
	case None:
		fn = func(v float64) float64 { return v }
	case MinMax:
		s := stats.ComputeWithOptions(c, p.Stats)
		fn = scaler(s.Min, s.Max, false)
	case Percentile:
		if p.Lower >= p.Upper {
			return nil, fmt.Errorf("percentile bounds %v >= %v", p.Lower, p.Upper)
		}
		bounds, err := stats.Percentiles(c, []float64{p.Lower, p.Upper}, p.Stats)
		if err != nil {
			return nil, err
		}
		fn = scaler(bounds[0], bounds[1], true)
	case ZScore:
		s := stats.ComputeWithOptions(c, p.Stats)
		fn = func(v float64) float64 {
			if s.StdDev == 0 {
				return 0
			}
			return (v - s.Mean) / s.StdDev
		}
	case Log:
		s := stats.ComputeWithOptions(c, p.Stats)
		fn = func(v float64) float64 { return math.Log1p(v - s.Min) }
	case Fraction:
		_, hi := c.DType.Range()
		if c.DType.IsFloat() {
			hi = 1
		}
		fn = func(v float64) float64 { return v / hi }
	default:
		return nil, fmt.Errorf("unknown normalization method %d", int(p.Method))
	}

	c.Scan(0, 1, func(i int, v float64) {
		if !math.IsNaN(v) {
			v = fn(v)
		}
		// in range by construction
		_ = out.Set(i, v)
	})
	return out, nil
}

func scaler(lo, hi float64, clip bool) func(float64) float64 {
	return func(v float64) float64 {
		if hi <= lo {
			return 0
		}
		if clip {
			v = math.Min(math.Max(v, lo), hi)
		}
		return (v - lo) / (hi - lo)
	}
}
