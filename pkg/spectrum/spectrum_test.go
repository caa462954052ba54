package spectrum

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hsicube/pkg/cube"
)

// rampCube is the 4x3x5 float32 HWC cube holding 0..59 in C order.
func rampCube(t *testing.T) *cube.Cube {
	t.Helper()
	values := make([]float64, 60)
	for i := range values {
		values[i] = float64(i)
	}
	c, err := cube.FromFloats([]int{4, 3, 5}, cube.Float32, cube.RowMajor, values)
	require.NoError(t, err)
	return c
}

func TestPixelSpectrum(t *testing.T) {
	c := rampCube(t)
	got, err := PixelSpectrum(c, cube.HWC, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{25, 26, 27, 28, 29}, got)

	_, err = PixelSpectrum(c, cube.HWC, 3, 0)
	assert.ErrorIs(t, err, cube.ErrIndexOutOfRange)
	_, err = PixelSpectrum(c, cube.HWC, 0, -1)
	assert.ErrorIs(t, err, cube.ErrIndexOutOfRange)
}

func TestROIMeanOverCornerBlock(t *testing.T) {
	c := rampCube(t)
	got, err := ROISpectrum(c, cube.HWC, cube.Rect{Width: 2, Height: 2}, Mean)
	require.NoError(t, err)
	// channel 0 of pixels (0,0), (1,0), (0,1), (1,1)
	assert.Equal(t, (0.0+5+15+20)/4, got[0])
	assert.Len(t, got, 5)
}

func TestSinglePixelROIMatchesPixelSpectrum(t *testing.T) {
	c := rampCube(t)
	for _, layout := range []cube.Layout{cube.HWC, cube.CHW, cube.WCH} {
		v, err := c.View(layout)
		require.NoError(t, err)
		for y := 0; y < v.Height; y++ {
			for x := 0; x < v.Width; x++ {
				want, err := PixelSpectrum(c, layout, x, y)
				require.NoError(t, err)
				for _, mode := range []Aggregation{Mean, Median, Min, Max} {
					got, err := ROISpectrum(c, layout, cube.Rect{MinX: x, MinY: y, Width: 1, Height: 1}, mode)
					require.NoError(t, err)
					assert.Equal(t, want, got, "%s (%d,%d) %s", layout, x, y, mode)
				}
			}
		}
	}
}

func TestAggregations(t *testing.T) {
	// one channel 2x2: 4, 1, 3, 10
	c, err := cube.FromFloats([]int{2, 2, 1}, cube.Float64, cube.RowMajor, []float64{4, 1, 3, 10})
	require.NoError(t, err)
	rect := cube.Rect{Width: 2, Height: 2}

	tests := []struct {
		mode Aggregation
		want float64
	}{
		{Mean, 4.5},
		{Median, 3.5},
		{Min, 1},
		{Max, 10},
	}
	for _, tt := range tests {
		got, err := ROISpectrum(c, cube.HWC, rect, tt.mode)
		require.NoError(t, err)
		assert.Equal(t, []float64{tt.want}, got, tt.mode.String())
	}

	got, err := ROISpectrum(c, cube.HWC, cube.Rect{Width: 2, Height: 1}, Median)
	require.NoError(t, err)
	assert.Equal(t, []float64{2.5}, got)
	assert.Equal(t, []float64{4, 1, 3, 10}, c.Floats(), "aggregation must not touch the cube")
}

func TestNaNPropagatesThroughEveryAggregation(t *testing.T) {
	nan := math.NaN()
	// two channels over a 1x3 row; channel 1 is finite
	for _, row := range [][]float64{
		{nan, 0, 1, 1, 2, 2},
		{1, 0, nan, 1, 2, 2},
		{1, 0, 2, 1, nan, 2},
	} {
		c, err := cube.FromFloats([]int{1, 3, 2}, cube.Float64, cube.RowMajor, row)
		require.NoError(t, err)
		for _, mode := range []Aggregation{Mean, Median, Min, Max} {
			got, err := ROISpectrum(c, cube.HWC, cube.Rect{Width: 3, Height: 1}, mode)
			require.NoError(t, err)
			assert.True(t, math.IsNaN(got[0]), "%s of %v", mode, row)
			assert.False(t, math.IsNaN(got[1]), "%s of %v", mode, row)
		}
	}
}

func TestROIErrors(t *testing.T) {
	c := rampCube(t)
	_, err := ROISpectrum(c, cube.HWC, cube.Rect{MinX: -4, Width: 0, Height: 1}, Mean)
	assert.ErrorIs(t, err, cube.ErrEmptyRect)
	_, err = ROISpectrum(c, cube.HWC, cube.Rect{MinX: 2, Width: 2, Height: 1}, Mean)
	assert.ErrorIs(t, err, cube.ErrRectOutOfBounds)
	_, err = ROISpectrum(c, cube.HWC, cube.Rect{MinY: 3, Width: 1, Height: 2}, Max)
	assert.ErrorIs(t, err, cube.ErrRectOutOfBounds)
}

func TestSampleCopiesAtCapture(t *testing.T) {
	c := rampCube(t)
	c.Wavelengths = []float64{400, 450, 500, 550, 600}

	s, err := NewPixelSample(c, cube.HWC, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, PixelKind, s.Kind)
	assert.NotEqual(t, uuid.Nil, s.ID)

	c.Wavelengths[0] = 1
	require.NoError(t, c.Set(0, 99))
	assert.Equal(t, 400.0, s.Wavelengths[0])
	assert.Equal(t, 0.0, s.Values[0])
	assert.Equal(t, s.Wavelengths, s.XValues())

	r, err := NewROISample(c, cube.HWC, cube.Rect{Width: 3, Height: 4}, Max)
	require.NoError(t, err)
	assert.Equal(t, ROIKind, r.Kind)
	assert.Equal(t, Max, r.Aggregation)
	assert.Equal(t, []float64{99, 56, 57, 58, 59}, r.Values)
}

func TestCollection(t *testing.T) {
	c := rampCube(t)
	var col Collection
	for x := 0; x < 3; x++ {
		s, err := NewPixelSample(c, cube.HWC, x, 0)
		require.NoError(t, err)
		col.Add(s)
	}
	assert.Len(t, col.Samples, 3)
	assert.NotEqual(t, col.Samples[0].Color.Hex(), col.Samples[1].Color.Hex())

	id := col.Samples[1].ID
	require.NoError(t, col.Rename(id, "leaf"))
	require.NoError(t, col.Recolor(id, "#ff0000"))
	s, ok := col.Get(id)
	require.True(t, ok)
	assert.Equal(t, "leaf", s.Name)
	assert.Equal(t, "#ff0000", s.Color.Hex())
	assert.Error(t, col.Recolor(id, "red"))

	assert.True(t, col.Remove(id))
	assert.False(t, col.Remove(id))
	assert.Len(t, col.Samples, 2)
}

func TestWriteCSV(t *testing.T) {
	c := rampCube(t)
	a, err := NewPixelSample(c, cube.HWC, 0, 0)
	require.NoError(t, err)
	a.Name = "a"
	b, err := NewPixelSample(c, cube.HWC, 1, 0)
	require.NoError(t, err)
	b.Name = "b"

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []*Sample{a, b}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "channel,a,b", lines[0])
	assert.Equal(t, "0,0,5", lines[1])
	assert.Equal(t, "4,4,9", lines[5])
}

func TestPlot(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping chart rendering in short mode")
	}
	c := rampCube(t)
	c.Wavelengths = []float64{400, 450, 500, 550, 600}
	c.WavelengthUnits = "nm"
	s, err := NewPixelSample(c, cube.HWC, 1, 1)
	require.NoError(t, err)

	var buf bytes.Buffer
	opts := DefaultPlotOptions()
	require.NoError(t, Plot([]*Sample{s}, opts, &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))

	buf.Reset()
	opts.Format = "svg"
	require.NoError(t, Plot([]*Sample{s}, opts, &buf))
	assert.Contains(t, buf.String(), "<svg")

	assert.Equal(t, "Wavelength (nm)", xLabel([]*Sample{s}))
	assert.Error(t, Plot(nil, opts, &buf))
}
