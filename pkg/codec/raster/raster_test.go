package raster

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"math"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hsicube/pkg/codec"
	"hsicube/pkg/cube"
	"hsicube/pkg/mask"
)

func TestEncodeChannelUint8(t *testing.T) {
	// 2x3 pixels, 2 channels, HWC
	c, err := cube.FromFloats([]int{2, 3, 2}, cube.Uint8, cube.RowMajor,
		[]float64{0, 9, 10, 9, 20, 9, 30, 9, 40, 9, 255, 9})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, EncodeChannel(&buf, c, cube.HWC, 0, Depth8))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	gray, ok := img.(*image.Gray)
	require.True(t, ok, "got %T", img)
	assert.Equal(t, []uint8{0, 10, 20, 30, 40, 255}, gray.Pix)

	_, err = Channel(c, cube.HWC, 2, Depth8)
	assert.ErrorIs(t, err, cube.ErrIndexOutOfRange)
	_, err = Channel(c, cube.HWC, 0, Depth(12))
	assert.ErrorIs(t, err, codec.ErrUnsupportedDType)
}

func TestChannelFloatScaling(t *testing.T) {
	c, err := cube.FromFloats([]int{1, 4}, cube.Float32, cube.RowMajor,
		[]float64{-1, 0, 1, math.NaN()})
	require.NoError(t, err)

	img, err := Channel(c, cube.Auto, 0, Depth16)
	require.NoError(t, err)
	g := img.(*image.Gray16)
	assert.Equal(t, uint16(0), g.Gray16At(0, 0).Y)
	assert.Equal(t, uint16(32768), g.Gray16At(1, 0).Y)
	assert.Equal(t, uint16(65535), g.Gray16At(2, 0).Y)
	assert.Equal(t, uint16(0), g.Gray16At(3, 0).Y)

	assert.Equal(t, Scale{Lo: -1, Hi: 1}, ScaleFor(c))
	assert.Equal(t, 0.0, Scale{Lo: 2, Hi: 2}.Unit(5))
}

func TestEncodeMask(t *testing.T) {
	a, err := mask.NewLayer(1, "water", 2, 2)
	require.NoError(t, err)
	require.NoError(t, a.Set(0, 0, true))
	b, err := mask.NewLayer(300, "rock", 2, 2)
	require.NoError(t, err)
	require.NoError(t, b.Set(1, 1, true))
	layers := []*mask.Layer{a, b}
	r, err := mask.Merge(layers)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, EncodeMask(&buf, r, nil, false))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	g, ok := img.(*image.Gray16)
	require.True(t, ok, "got %T", img)
	assert.Equal(t, uint16(1), g.Gray16At(0, 0).Y)
	assert.Equal(t, uint16(300), g.Gray16At(1, 1).Y)

	a.Color = colorful.Color{R: 1, G: 0, B: 0}
	buf.Reset()
	require.NoError(t, EncodeMask(&buf, r, mask.ClassMetadata(layers), true))
	img, err = png.Decode(&buf)
	require.NoError(t, err)
	cr, cg, cb, _ := img.At(0, 0).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0, 0}, [3]uint32{cr, cg, cb})
	cr, cg, cb, _ = img.At(1, 0).RGBA()
	assert.Equal(t, [3]uint32{0, 0, 0}, [3]uint32{cr, cg, cb})
}

func TestDecode(t *testing.T) {
	gray := image.NewGray16(image.Rect(0, 0, 2, 1))
	gray.SetGray16(0, 0, color.Gray16{Y: 1000})
	gray.SetGray16(1, 0, color.Gray16{Y: 65535})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, gray))
	c, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, "png", c.Source)
	assert.Equal(t, cube.Uint16, c.DType)
	assert.Equal(t, []int{1, 2}, c.Dims)
	assert.Equal(t, []float64{1000, 65535}, c.Floats())

	pal := image.NewPaletted(image.Rect(0, 0, 2, 1), color.Palette{
		color.RGBA{R: 255, A: 255}, color.RGBA{B: 255, A: 255},
	})
	pal.SetColorIndex(1, 0, 1)
	buf.Reset()
	require.NoError(t, gif.Encode(&buf, pal, nil))
	c, err = Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, "gif", c.Source)
	assert.Equal(t, []int{1, 2, 3}, c.Dims)
	assert.Equal(t, cube.HWC, c.LayoutHint)
	assert.Equal(t, []float64{255, 0, 0, 0, 0, 255}, c.Floats())

	_, err = Decode(bytes.NewReader([]byte("not an image")))
	assert.ErrorIs(t, err, codec.ErrMalformedHeader)
	assert.ErrorIs(t, err, image.ErrFormat)
}

func TestEncodeRGB(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.Set(2, 1, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	var buf bytes.Buffer
	require.NoError(t, EncodeRGB(&buf, img))
	got, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), got.Bounds())
	r, g, b, _ := got.At(2, 1).RGBA()
	assert.Equal(t, [3]uint32{1 * 257, 2 * 257, 3 * 257}, [3]uint32{r, g, b})
}
