package visualization

import (
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hsicube/internal/logging"
	"hsicube/pkg/codec/raster"
	"hsicube/pkg/cube"
)

func init() { logging.SetLogger(nil) }

const (
	testH, testW, testC = 4, 5, 3
)

// testCube is an HWC float cube whose value at (y, x, ch) is
// ch*100 + y*10 + x, so every element is distinguishable.
func testCube(t *testing.T) *cube.Cube {
	t.Helper()
	vals := make([]float64, testH*testW*testC)
	for y := 0; y < testH; y++ {
		for x := 0; x < testW; x++ {
			for ch := 0; ch < testC; ch++ {
				vals[(y*testW+x)*testC+ch] = float64(ch*100 + y*10 + x)
			}
		}
	}
	c, err := cube.FromFloats([]int{testH, testW, testC}, cube.Float64, cube.RowMajor, vals)
	require.NoError(t, err)
	c.Name = "scene"
	c.Wavelengths = []float64{450, 550, 650}
	return c
}

func TestNewViewer(t *testing.T) {
	v, err := NewViewer(testCube(t), cube.HWC)
	require.NoError(t, err)

	h, w, c := v.Size()
	if h != testH || w != testW || c != testC {
		t.Errorf("Expected size %dx%dx%d, got %dx%dx%d", testH, testW, testC, h, w, c)
	}
	assert.Equal(t, raster.Scale{Lo: 0, Hi: 234}, v.Scale())

	_, err = NewViewer(testCube(t), cube.CHW)
	assert.NoError(t, err, "any layout resolves against a 3-D cube")
}

func TestNewViewer2D(t *testing.T) {
	c, err := cube.FromFloats([]int{2, 3}, cube.Uint8, cube.ColumnMajor, []float64{0, 1, 2, 3, 4, 255})
	require.NoError(t, err)
	v, err := NewViewer(c, cube.Auto)
	require.NoError(t, err)

	h, w, ch := v.Size()
	assert.Equal(t, []int{2, 3, 1}, []int{h, w, ch})

	img, err := v.ExtractChannel(0)
	require.NoError(t, err)
	// column-major: (y=1, x=2) is the last element
	assert.Equal(t, uint16(65535), img.Gray16At(2, 1).Y)
	assert.Equal(t, uint16(0), img.Gray16At(0, 0).Y)
}

func TestExtractChannel(t *testing.T) {
	v, err := NewViewer(testCube(t), cube.HWC)
	require.NoError(t, err)

	for ch := 0; ch < testC; ch++ {
		img, err := v.ExtractChannel(ch)
		if err != nil {
			t.Fatalf("Failed to extract channel %d: %v", ch, err)
		}
		b := img.Bounds()
		if b.Dx() != testW || b.Dy() != testH {
			t.Errorf("Expected channel dimensions %dx%d, got %dx%d", testW, testH, b.Dx(), b.Dy())
		}
	}

	first, err := v.ExtractChannel(0)
	require.NoError(t, err)
	last, err := v.ExtractChannel(testC - 1)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), first.Gray16At(0, 0).Y)
	assert.Equal(t, uint16(65535), last.Gray16At(testW-1, testH-1).Y)
	assert.Less(t, first.Gray16At(testW-1, testH-1).Y, last.Gray16At(0, 0).Y,
		"channels share one scale")

	_, err = v.ExtractChannel(testC)
	assert.True(t, errors.Is(err, cube.ErrIndexOutOfRange))
}

func TestExtractSlice(t *testing.T) {
	v, err := NewViewer(testCube(t), cube.HWC)
	require.NoError(t, err)

	tests := []struct {
		axis       string
		pos        int
		wantW      int
		wantH      int
		px, py     int
		wantSource float64
	}{
		{"channel", 1, testW, testH, 2, 3, 132},
		{"height", 2, testW, testC, 4, 1, 124},
		{"width", 3, testC, testH, 2, 1, 213},
	}
	for _, tt := range tests {
		t.Run(tt.axis, func(t *testing.T) {
			img, err := v.ExtractSlice(tt.axis, tt.pos)
			require.NoError(t, err)
			b := img.Bounds()
			assert.Equal(t, tt.wantW, b.Dx())
			assert.Equal(t, tt.wantH, b.Dy())

			want := uint16(tt.wantSource/234*65535 + 0.5)
			assert.Equal(t, want, img.Gray16At(tt.px, tt.py).Y)
		})
	}

	_, err = v.ExtractSlice("invalid", 0)
	if err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
	_, err = v.ExtractSlice("height", testH)
	assert.True(t, errors.Is(err, cube.ErrIndexOutOfRange))
	_, err = v.ExtractSlice("width", -1)
	assert.True(t, errors.Is(err, cube.ErrIndexOutOfRange))
}

func TestExtractRegion(t *testing.T) {
	src := testCube(t)
	v, err := NewViewer(src, cube.HWC)
	require.NoError(t, err)

	region, err := v.ExtractRegion(cube.Rect{MinX: 1, MinY: 2, Width: 3, Height: 2})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, testC}, region.Dims)
	assert.Equal(t, src.Wavelengths, region.Wavelengths)
	assert.Equal(t, "scene", region.Name)

	rv, err := region.View(cube.HWC)
	require.NoError(t, err)
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			for ch := 0; ch < testC; ch++ {
				want := float64(ch*100 + (y+2)*10 + (x + 1))
				if got := rv.Value(y, x, ch); got != want {
					t.Errorf("region (%d,%d,%d) = %v, want %v", y, x, ch, got, want)
				}
			}
		}
	}

	region.Wavelengths[0] = 0
	assert.Equal(t, 450.0, src.Wavelengths[0], "region owns its wavelengths")

	_, err = v.ExtractRegion(cube.Rect{MinX: 4, MinY: 0, Width: 2, Height: 1})
	assert.True(t, errors.Is(err, cube.ErrRectOutOfBounds))
	_, err = v.ExtractRegion(cube.Rect{Width: 0, Height: 1})
	assert.True(t, errors.Is(err, cube.ErrEmptyRect))
}

func TestExtractRegionChannelFirst(t *testing.T) {
	vals := make([]float64, 2*3*4)
	for i := range vals {
		vals[i] = float64(i)
	}
	src, err := cube.FromFloats([]int{2, 3, 4}, cube.Int16, cube.ColumnMajor, vals)
	require.NoError(t, err)
	v, err := NewViewer(src, cube.CHW)
	require.NoError(t, err)

	region, err := v.ExtractRegion(cube.Rect{MinX: 1, MinY: 1, Width: 2, Height: 1})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 2}, region.Dims)
	assert.Equal(t, cube.ColumnMajor, region.Order)

	sv, _ := src.View(cube.CHW)
	rv, _ := region.View(cube.CHW)
	for ch := 0; ch < 2; ch++ {
		for x := 0; x < 2; x++ {
			assert.Equal(t, sv.Value(1, x+1, ch), rv.Value(0, x, ch))
		}
	}
}

func TestSaveChannelSequence(t *testing.T) {
	if testing.Short() {
		t.Skip("writes files")
	}
	v, err := NewViewer(testCube(t), cube.HWC)
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "channels")
	paths, err := v.SaveChannelSequence(dir, "scene", raster.Depth8)
	require.NoError(t, err)
	require.Len(t, paths, testC)
	assert.Equal(t, filepath.Join(dir, "scene_ch002.png"), paths[2])

	for _, p := range paths {
		f, err := os.Open(p)
		require.NoError(t, err)
		cfg, err := png.DecodeConfig(f)
		f.Close()
		require.NoError(t, err)
		assert.Equal(t, testW, cfg.Width)
		assert.Equal(t, testH, cfg.Height)
	}

	_, err = v.SaveChannelSequence(dir, "scene", raster.Depth(12))
	assert.Error(t, err)
}
