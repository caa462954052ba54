package spectrum

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/google/uuid"
	"github.com/lucasb-eyer/go-colorful"

	"hsicube/pkg/cube"
)

// Kind tells pixel samples from ROI samples.
type Kind int

const (
	PixelKind Kind = iota
	ROIKind
)

func (k Kind) String() string {
	if k == ROIKind {
		return "roi"
	}
	return "pixel"
}

// Sample is a captured spectrum. Values and wavelengths are copies taken at
// capture time, so later edits to the cube do not reach the sample. Only
// Name and Color are meant to change after capture.
type Sample struct {
	ID    uuid.UUID
	Name  string
	Color colorful.Color
	Kind  Kind

	// X and Y locate a pixel sample.
	X, Y int

	// Rect and Aggregation describe an ROI sample.
	Rect        cube.Rect
	Aggregation Aggregation

	Values          []float64
	Wavelengths     []float64
	WavelengthUnits string
}

// NewPixelSample captures the spectrum at (x, y).
func NewPixelSample(c *cube.Cube, layout cube.Layout, x, y int) (*Sample, error) {
	values, err := PixelSpectrum(c, layout, x, y)
	if err != nil {
		return nil, err
	}
	s := newSample(c, values)
	s.Kind = PixelKind
	s.X, s.Y = x, y
	s.Name = fmt.Sprintf("Pixel (%d, %d)", x, y)
	return s, nil
}

// NewROISample captures the aggregated spectrum of rect.
func NewROISample(c *cube.Cube, layout cube.Layout, rect cube.Rect, mode Aggregation) (*Sample, error) {
	values, err := ROISpectrum(c, layout, rect, mode)
	if err != nil {
		return nil, err
	}
	s := newSample(c, values)
	s.Kind = ROIKind
	s.Rect = rect
	s.Aggregation = mode
	s.Name = fmt.Sprintf("ROI %s %s", rect, mode)
	return s, nil
}

func newSample(c *cube.Cube, values []float64) *Sample {
	s := &Sample{
		ID:              uuid.New(),
		Color:           PaletteColor(0),
		Values:          values,
		WavelengthUnits: c.WavelengthUnits,
	}
	if len(c.Wavelengths) == len(values) {
		s.Wavelengths = append([]float64(nil), c.Wavelengths...)
	}
	return s
}

// XValues returns the wavelengths when known and channel indices otherwise.
func (s *Sample) XValues() []float64 {
	if len(s.Wavelengths) == len(s.Values) {
		return s.Wavelengths
	}
	xs := make([]float64, len(s.Values))
	for i := range xs {
		xs[i] = float64(i)
	}
	return xs
}

// PaletteColor returns the i-th color of a fixed palette. Hues advance by
// the golden angle so neighbouring samples stay distinguishable.
func PaletteColor(i int) colorful.Color {
	h := math.Mod(float64(i)*137.508, 360)
	return colorful.Hcl(h, 0.7, 0.6).Clamped()
}

// Collection is an ordered set of samples that hands out palette colors in
// capture order.
type Collection struct {
	Samples []*Sample
	next    int
}

// Add appends s, assigning the next palette color.
func (col *Collection) Add(s *Sample) {
	s.Color = PaletteColor(col.next)
	col.next++
	col.Samples = append(col.Samples, s)
}

// Get returns the sample with the given id.
func (col *Collection) Get(id uuid.UUID) (*Sample, bool) {
	for _, s := range col.Samples {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

// Remove deletes the sample with the given id.
func (col *Collection) Remove(id uuid.UUID) bool {
	for i, s := range col.Samples {
		if s.ID == id {
			col.Samples = append(col.Samples[:i], col.Samples[i+1:]...)
			return true
		}
	}
	return false
}

// Rename changes the display name of a sample.
func (col *Collection) Rename(id uuid.UUID, name string) error {
	s, ok := col.Get(id)
	if !ok {
		return fmt.Errorf("sample %s not found", id)
	}
	s.Name = name
	return nil
}

// Recolor sets the display color of a sample from a hex string.
func (col *Collection) Recolor(id uuid.UUID, hex string) error {
	s, ok := col.Get(id)
	if !ok {
		return fmt.Errorf("sample %s not found", id)
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return fmt.Errorf("invalid color %q: %w", hex, err)
	}
	s.Color = c
	return nil
}

// WriteCSV writes one row per channel: the x value, then one column per
// sample. All samples must have the same channel count.
func WriteCSV(w io.Writer, samples []*Sample) error {
	if len(samples) == 0 {
		return fmt.Errorf("no samples to write")
	}
	n := len(samples[0].Values)
	header := []string{"channel"}
	if len(samples[0].Wavelengths) == n {
		header[0] = "wavelength"
	}
	for _, s := range samples {
		if len(s.Values) != n {
			return fmt.Errorf("%w: sample %q has %d channels, want %d",
				cube.ErrDimensionMismatch, s.Name, len(s.Values), n)
		}
		header = append(header, s.Name)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	xs := samples[0].XValues()
	row := make([]string, len(header))
	for i := 0; i < n; i++ {
		row[0] = strconv.FormatFloat(xs[i], 'g', -1, 64)
		for j, s := range samples {
			row[j+1] = strconv.FormatFloat(s.Values[i], 'g', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
