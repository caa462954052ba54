package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hsicube/internal/logging"
	"hsicube/internal/models"
	"hsicube/pkg/config"
	"hsicube/pkg/cube"
	"hsicube/pkg/hsio"
)

func init() { logging.SetLogger(nil) }

func TestParseRect(t *testing.T) {
	r, err := parseRect("1, 2,30,40")
	require.NoError(t, err)
	assert.Equal(t, cube.Rect{MinX: 1, MinY: 2, Width: 30, Height: 40}, r)

	_, err = parseRect("1,2,3")
	assert.Error(t, err)
	_, err = parseRect("1,2,3,x")
	assert.Error(t, err)

	fs, err := parseFloats("2, 50,,98.5")
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 50, 98.5}, fs)
}

func TestBuildLayers(t *testing.T) {
	// 3x4 HWC, two channels; channel 1 holds x + 10*y
	vals := make([]float64, 3*4*2)
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			vals[(y*4+x)*2+1] = float64(x + 10*y)
		}
	}
	c, err := cube.FromFloats([]int{3, 4, 2}, cube.Float32, cube.RowMajor, vals)
	require.NoError(t, err)

	layers, err := buildLayers(c, cube.HWC,
		[]string{"2:road:0,0,2,1", "5:roof:3,2,1,1", "2:road:0,1,1,1"},
		[]string{"7:bright:1:20:21"})
	require.NoError(t, err)
	require.Len(t, layers, 3)
	assert.Equal(t, "road", layers[0].Name)
	assert.Equal(t, 3, layers[0].Count())
	assert.True(t, layers[1].At(3, 2))
	assert.Equal(t, []bool{
		false, false, false, false,
		false, false, false, false,
		true, true, false, false,
	}, layers[2].Pixels)

	for _, bad := range [][2][]string{
		{{"0:bg:0,0,1,1"}, nil},
		{{"1:a:0,0,9,1"}, nil},
		{{"1:a:0,0"}, nil},
		{nil, {"1:a:2:0:1"}},
		{nil, {"1:a:0:x:1"}},
	} {
		_, err := buildLayers(c, cube.HWC, bad[0], bad[1])
		assert.Error(t, err, "%v", bad)
	}
}

func TestConvertAll(t *testing.T) {
	if testing.Short() {
		t.Skip("writes files")
	}
	dir := t.TempDir()
	vals := make([]float64, 6*8*4)
	for i := range vals {
		vals[i] = float64(i)
	}
	src, err := cube.FromFloats([]int{6, 8, 4}, cube.Float32, cube.RowMajor, vals)
	require.NoError(t, err)
	in := filepath.Join(dir, "scan.npy")
	require.NoError(t, hsio.Save(in, src, hsio.DefaultSaveOptions()))

	jobs := []models.Job{
		{
			Input:   in,
			Output:  filepath.Join(dir, "scan.mat"),
			Layout:  "HWC",
			DType:   "uint8",
			Preview: filepath.Join(dir, "scan.png"),
			Crop:    &models.Region{X: 1, Y: 1, Width: 4, Height: 3},
		},
		{Input: filepath.Join(dir, "missing.npy"), Output: filepath.Join(dir, "x.npy")},
	}
	results := convertAll(config.DefaultConfig(), jobs, 2)
	require.Len(t, results, 2)

	require.NoError(t, results[0].Err)
	assert.Len(t, results[0].Files, 2)
	assert.Error(t, results[1].Err)

	res, err := hsio.Load(filepath.Join(dir, "scan.mat"), hsio.LoadOptions{Layout: cube.HWC})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4, 4}, res.Cube.Dims)
	assert.Equal(t, cube.Uint8, res.Cube.DType)

	_, err = os.Stat(filepath.Join(dir, "scan.png"))
	assert.NoError(t, err)
}
