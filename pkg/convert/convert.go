// Package convert converts cube buffers between element types and
// normalizes their values. Every function returns a new cube; the source
// buffer is never modified.
//
// Non-finite sources follow one policy in every mode: NaN maps to 0, +Inf to
// the upper bound of the mode's target range and -Inf to its lower bound.
package convert

import (
	"fmt"
	"math"
	"strings"

	"hsicube/pkg/cube"
	"hsicube/pkg/stats"
)

// Mode selects how values are brought into the target type.
type Mode int

const (
	// AutoScale maps the source [min, max] linearly onto the target's
	// representable range, or onto [0, 1] for float targets.
	AutoScale Mode = iota
	// Clamp casts each value and clamps it to the target's range.
	Clamp
)

func (m Mode) String() string {
	if m == Clamp {
		return "clamp"
	}
	return "autoScale"
}

// ParseMode parses "autoScale" or "clamp", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "autoscale", "auto", "scale":
		return AutoScale, nil
	case "clamp":
		return Clamp, nil
	}
	return AutoScale, fmt.Errorf("unknown conversion mode %q", s)
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

// TargetRange is the output range used for target under mode.
func TargetRange(target cube.DType, mode Mode) (lo, hi float64) {
	if mode == AutoScale && target.IsFloat() {
		return 0, 1
	}
	return target.Range()
}

// Converter maps single values for a fixed source range, target and mode.
type Converter struct {
	Target   cube.DType
	Mode     Mode
	Min, Max float64 // finite source range, used by AutoScale

	lo, hi float64
}

// NewConverter builds a converter for values spanning [min, max].
func NewConverter(target cube.DType, mode Mode, min, max float64) *Converter {
	lo, hi := TargetRange(target, mode)
	return &Converter{Target: target, Mode: mode, Min: min, Max: max, lo: lo, hi: hi}
}

// Value converts one source value. The result is representable by Target.
func (cv *Converter) Value(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case math.IsInf(v, 1):
		return cv.hi
	case math.IsInf(v, -1):
		return cv.lo
	}
	if cv.Mode == AutoScale {
		if cv.Max > cv.Min {
			v = cv.lo + (v-cv.Min)/(cv.Max-cv.Min)*(cv.hi-cv.lo)
		} else {
			v = cv.lo
		}
	}
	return cv.Target.Saturate(math.Min(math.Max(v, cv.lo), cv.hi))
}

// Convert returns a copy of c with element type target. Dims, order,
// wavelengths and metadata are kept.
func Convert(c *cube.Cube, target cube.DType, mode Mode) (*cube.Cube, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: %d", cube.ErrUnsupportedDType, int(target))
	}
	out, err := cube.NewLike(c, target)
	if err != nil {
		return nil, err
	}

	var min, max float64
	if mode == AutoScale {
		s := stats.ComputeWithOptions(c, stats.Options{MaxSamples: -1})
		min, max = s.Min, s.Max
	}
	cv := NewConverter(target, mode, min, max)

	var setErr error
	c.Scan(0, 1, func(i int, v float64) {
		if setErr == nil {
			setErr = out.Set(i, cv.Value(v))
		}
	})
	if setErr != nil {
		return nil, setErr
	}
	return out, nil
}
