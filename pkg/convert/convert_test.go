package convert

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hsicube/pkg/cube"
)

func floatsCube(t *testing.T, dims []int, dtype cube.DType, values []float64) *cube.Cube {
	t.Helper()
	c, err := cube.FromFloats(dims, dtype, cube.RowMajor, values)
	require.NoError(t, err)
	return c
}

func sequence(n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = float64(i)
	}
	return values
}

func TestAutoScaleToUint8(t *testing.T) {
	src := floatsCube(t, []int{4, 3, 5}, cube.Float32, sequence(60))
	src.Wavelengths = []float64{1, 2, 3, 4, 5}
	before := append([]byte(nil), src.Data...)

	out, err := Convert(src, cube.Uint8, AutoScale)
	require.NoError(t, err)

	assert.Equal(t, cube.Uint8, out.DType)
	assert.Equal(t, src.Dims, out.Dims)
	assert.Equal(t, src.Wavelengths, out.Wavelengths)
	first, _ := out.At(0)
	last, _ := out.At(59)
	assert.Equal(t, 0.0, first)
	assert.Equal(t, 255.0, last)
	assert.Equal(t, before, src.Data, "source must not change")
}

func TestAutoScaleToFloatUsesUnitRange(t *testing.T) {
	src := floatsCube(t, []int{2, 3}, cube.Uint16, []float64{100, 200, 300, 400, 500, 600})
	out, err := Convert(src, cube.Float32, AutoScale)
	require.NoError(t, err)

	got := out.Floats()
	assert.Equal(t, 0.0, got[0])
	assert.InDelta(t, 0.4, got[2], 1e-6)
	assert.Equal(t, 1.0, got[5])
}

func TestAutoScaleIsMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	values := make([]float64, 500)
	for i := range values {
		values[i] = rng.NormFloat64() * 1000
	}
	src := floatsCube(t, []int{5, 10, 10}, cube.Float64, values)

	for _, target := range cube.DTypes {
		out, err := Convert(src, target, AutoScale)
		require.NoError(t, err)
		conv := out.Floats()

		order := make([]int, len(values))
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(a, b int) bool { return values[order[a]] < values[order[b]] })
		for k := 1; k < len(order); k++ {
			if conv[order[k-1]] > conv[order[k]] {
				t.Fatalf("%s: not monotonic at %v -> %v", target, values[order[k-1]], values[order[k]])
			}
		}
	}
}

func TestClampStaysInRange(t *testing.T) {
	values := []float64{-1e6, -300, -1.5, 0, 0.4, 127.6, 255.5, 70000, 3e9, 1e40}
	src := floatsCube(t, []int{2, 5}, cube.Float64, values)

	for _, target := range cube.DTypes {
		out, err := Convert(src, target, Clamp)
		require.NoError(t, err)
		lo, hi := target.Range()
		for i, v := range out.Floats() {
			if v < lo || v > hi {
				t.Errorf("%s: element %d = %v outside [%v, %v]", target, i, v, lo, hi)
			}
		}
	}

	out, err := Convert(src, cube.Uint8, Clamp)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 128, 255, 255, 255, 255}, out.Floats())
}

func TestNonFinitePolicy(t *testing.T) {
	values := []float64{math.NaN(), math.Inf(1), math.Inf(-1), 10, 20, 30}
	src := floatsCube(t, []int{2, 3}, cube.Float64, values)

	scaled, err := Convert(src, cube.Uint8, AutoScale)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 255, 0, 0, 128, 255}, scaled.Floats())

	clamped, err := Convert(src, cube.Int16, Clamp)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 32767, -32768, 10, 20, 30}, clamped.Floats())

	f, err := Convert(src, cube.Float32, AutoScale)
	require.NoError(t, err)
	got := f.Floats()
	assert.Equal(t, 0.0, got[0])
	assert.Equal(t, 1.0, got[1])
	assert.Equal(t, 0.0, got[2])
}

func TestConstantCubeMapsToRangeMinimum(t *testing.T) {
	src := floatsCube(t, []int{2, 2}, cube.Float32, []float64{5, 5, 5, 5})
	out, err := Convert(src, cube.Int8, AutoScale)
	require.NoError(t, err)
	assert.Equal(t, []float64{-128, -128, -128, -128}, out.Floats())
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("clamp")
	require.NoError(t, err)
	assert.Equal(t, Clamp, m)
	m, err = ParseMode("autoScale")
	require.NoError(t, err)
	assert.Equal(t, AutoScale, m)
	_, err = ParseMode("wrap")
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	src := floatsCube(t, []int{2, 5}, cube.Uint16, sequence(10))

	t.Run("minmax", func(t *testing.T) {
		out, err := Normalize(src, NormalizeParams{Method: MinMax})
		require.NoError(t, err)
		got := out.Floats()
		assert.Equal(t, cube.Float64, out.DType)
		assert.Equal(t, 0.0, got[0])
		assert.Equal(t, 1.0, got[9])
	})

	t.Run("zscore", func(t *testing.T) {
		out, err := Normalize(src, NormalizeParams{Method: ZScore})
		require.NoError(t, err)
		var sum float64
		for _, v := range out.Floats() {
			sum += v
		}
		assert.InDelta(t, 0, sum, 1e-9)
	})

	t.Run("percentile clips", func(t *testing.T) {
		out, err := Normalize(src, NormalizeParams{Method: Percentile, Lower: 10, Upper: 90})
		require.NoError(t, err)
		for _, v := range out.Floats() {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
		_, err = Normalize(src, NormalizeParams{Method: Percentile, Lower: 90, Upper: 10})
		assert.Error(t, err)
	})

	t.Run("fraction", func(t *testing.T) {
		out, err := Normalize(src, NormalizeParams{Method: Fraction})
		require.NoError(t, err)
		assert.InDelta(t, 9.0/65535, out.Floats()[9], 1e-15)
	})

	t.Run("log", func(t *testing.T) {
		out, err := Normalize(src, NormalizeParams{Method: Log})
		require.NoError(t, err)
		assert.Equal(t, 0.0, out.Floats()[0])
		assert.InDelta(t, math.Log(10), out.Floats()[9], 1e-12)
	})
}
