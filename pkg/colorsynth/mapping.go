package colorsynth

import (
	"fmt"
	"math"

	"hsicube/pkg/cube"
)

// RGBChannelMapping selects one channel per display color.
type RGBChannelMapping struct {
	Red   int `yaml:"red" json:"red"`
	Green int `yaml:"green" json:"green"`
	Blue  int `yaml:"blue" json:"blue"`
}

// Channels returns the mapping in red, green, blue order.
func (m RGBChannelMapping) Channels() [3]int {
	return [3]int{m.Red, m.Green, m.Blue}
}

// Validate checks every index against the channel count.
func (m RGBChannelMapping) Validate(channels int) error {
	for i, ch := range m.Channels() {
		if ch < 0 || ch >= channels {
			return fmt.Errorf("%w: %s channel %d of %d", cube.ErrIndexOutOfRange, colorNames[i], ch, channels)
		}
	}
	return nil
}

var colorNames = [3]string{"red", "green", "blue"}

// ChannelRange is an inclusive range of channel indices.
type ChannelRange struct {
	Start int `yaml:"start" json:"start"`
	End   int `yaml:"end" json:"end"`
}

// Normalized orders the range so Start <= End and clamps both ends to
// [0, channels-1].
func (r ChannelRange) Normalized(channels int) ChannelRange {
	if r.Start > r.End {
		r.Start, r.End = r.End, r.Start
	}
	last := channels - 1
	if last < 0 {
		last = 0
	}
	r.Start = min(max(r.Start, 0), last)
	r.End = min(max(r.End, 0), last)
	return r
}

// Len is the number of channels in the range.
func (r ChannelRange) Len() int { return r.End - r.Start + 1 }

// RGBChannelRangeMapping averages a channel range per display color.
type RGBChannelRangeMapping struct {
	Red   ChannelRange `yaml:"red" json:"red"`
	Green ChannelRange `yaml:"green" json:"green"`
	Blue  ChannelRange `yaml:"blue" json:"blue"`
}

// Ranges returns the normalized ranges in red, green, blue order.
func (m RGBChannelRangeMapping) Ranges(channels int) [3]ChannelRange {
	return [3]ChannelRange{
		m.Red.Normalized(channels),
		m.Green.Normalized(channels),
		m.Blue.Normalized(channels),
	}
}

// Reference wavelengths in nanometers for the default true-color mapping.
const (
	RedNM   = 630.0
	GreenNM = 532.0
	BlueNM  = 465.0
)

// DefaultMapping picks the channels closest to RedNM, GreenNM and BlueNM
// when wavelengths cover the visible range, and otherwise spreads the three
// colors over the channel axis with red on the last channel.
func DefaultMapping(wavelengths []float64, channels int) RGBChannelMapping {
	if channels <= 0 {
		return RGBChannelMapping{}
	}
	if len(wavelengths) == channels && coversVisible(wavelengths) {
		return RGBChannelMapping{
			Red:   nearest(wavelengths, RedNM),
			Green: nearest(wavelengths, GreenNM),
			Blue:  nearest(wavelengths, BlueNM),
		}
	}
	last := channels - 1
	return RGBChannelMapping{Red: last, Green: last / 2, Blue: 0}
}

// DefaultRangeMapping splits the channel axis into thirds, blue first.
func DefaultRangeMapping(channels int) RGBChannelRangeMapping {
	third := channels / 3
	if third < 1 {
		third = 1
	}
	m := RGBChannelRangeMapping{
		Blue:  ChannelRange{Start: 0, End: third - 1},
		Green: ChannelRange{Start: third, End: 2*third - 1},
		Red:   ChannelRange{Start: 2 * third, End: channels - 1},
	}
	m.Red = m.Red.Normalized(channels)
	m.Green = m.Green.Normalized(channels)
	m.Blue = m.Blue.Normalized(channels)
	return m
}

func coversVisible(wavelengths []float64) bool {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, w := range wavelengths {
		lo = math.Min(lo, w)
		hi = math.Max(hi, w)
	}
	return lo <= BlueNM+20 && hi >= RedNM-20
}

func nearest(wavelengths []float64, target float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, w := range wavelengths {
		if d := math.Abs(w - target); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
