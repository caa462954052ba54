package mask

import (
	"encoding/json"
	"image"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hsicube/pkg/cube"
)

func newLayer(t *testing.T, id uint16, name string, width, height int) *Layer {
	t.Helper()
	l, err := NewLayer(id, name, width, height)
	require.NoError(t, err)
	return l
}

func TestMergeDisjointLayers(t *testing.T) {
	a := newLayer(t, 1, "soil", 4, 3)
	require.NoError(t, a.Fill(cube.Rect{Width: 2, Height: 2}))
	b := newLayer(t, 2, "leaf", 4, 3)
	require.NoError(t, b.Fill(cube.Rect{MinX: 2, MinY: 1, Width: 2, Height: 2}))
	c := newLayer(t, 7, "water", 4, 3)
	require.NoError(t, c.Set(0, 2, true))

	r, err := Merge([]*Layer{a, b, c})
	require.NoError(t, err)
	assert.Equal(t, a.Count()+b.Count()+c.Count(), r.Count())
	assert.Equal(t, []uint16{
		1, 1, 0, 0,
		1, 1, 2, 2,
		7, 0, 2, 2,
	}, r.Labels)
}

func TestMergeLastLayerWins(t *testing.T) {
	a := newLayer(t, 1, "a", 2, 2)
	require.NoError(t, a.Fill(cube.Rect{Width: 2, Height: 2}))
	b := newLayer(t, 2, "b", 2, 2)
	require.NoError(t, b.Set(1, 1, true))

	r, err := Merge([]*Layer{a, b})
	require.NoError(t, err)
	assert.Equal(t, []uint16{1, 1, 1, 2}, r.Labels)

	r, err = Merge([]*Layer{b, a})
	require.NoError(t, err)
	assert.Equal(t, []uint16{1, 1, 1, 1}, r.Labels)
}

func TestMergeErrors(t *testing.T) {
	a := newLayer(t, 1, "a", 2, 2)
	_, err := Merge([]*Layer{a, a})
	assert.ErrorIs(t, err, cube.ErrDuplicateClassID)

	_, err = Merge([]*Layer{a, newLayer(t, 2, "b", 3, 2)})
	assert.ErrorIs(t, err, cube.ErrDimensionMismatch)

	_, err = Merge([]*Layer{newLayer(t, 0, "bg", 2, 2)})
	assert.ErrorIs(t, err, cube.ErrInvalidClassID)

	_, err = Merge(nil)
	assert.ErrorIs(t, err, ErrNoLayers)

	for _, size := range [][2]int{{0, 0}, {3, 0}, {-1, 4}} {
		l, err := NewLayer(1, "empty", size[0], size[1])
		assert.ErrorIs(t, err, cube.ErrDimensionMismatch, "%v", size)
		assert.Nil(t, l)
	}
	// layers built by hand bypass NewLayer
	_, err = Merge([]*Layer{{ClassID: 1, Name: "empty"}})
	assert.ErrorIs(t, err, cube.ErrDimensionMismatch)

	r := &Raster{Width: 2, Height: 2, Labels: []uint16{1}}
	_, err = r.Cube()
	assert.ErrorIs(t, err, cube.ErrDimensionMismatch)

	assert.ErrorIs(t, a.Set(2, 0, true), cube.ErrIndexOutOfRange)
	assert.False(t, a.At(-1, 0))
}

func TestRasterCube(t *testing.T) {
	a := newLayer(t, 3, "a", 3, 2)
	require.NoError(t, a.Set(2, 1, true))
	r, err := Merge([]*Layer{a})
	require.NoError(t, err)

	c, err := r.Cube()
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, c.Dims)
	assert.Equal(t, cube.Uint8, c.DType)
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 3}, c.Floats())

	big := newLayer(t, 300, "big", 3, 2)
	require.NoError(t, big.Set(0, 0, true))
	r, err = Merge([]*Layer{a, big})
	require.NoError(t, err)
	c, err = r.Cube()
	require.NoError(t, err)
	assert.Equal(t, cube.Uint16, c.DType)
	gray, ok := r.GrayImage().(*image.Gray16)
	require.True(t, ok)
	assert.Equal(t, uint16(300), gray.Gray16At(0, 0).Y)
}

func TestColorImage(t *testing.T) {
	a := newLayer(t, 1, "red", 2, 1)
	a.Color = colorful.Color{R: 1}
	require.NoError(t, a.Set(1, 0, true))
	layers := []*Layer{a}
	r, err := Merge(layers)
	require.NoError(t, err)

	img := r.ColorImage(ClassMetadata(layers))
	assert.Equal(t, []uint8{0, 0, 0, 255, 255, 0, 0, 255}, img.Pix)

	gray, ok := r.GrayImage().(*image.Gray)
	require.True(t, ok)
	assert.Equal(t, []uint8{0, 1}, gray.Pix)
}

func TestClassMetadataJSON(t *testing.T) {
	a := newLayer(t, 4, "road", 1, 1)
	a.Color = colorful.Color{R: 0, G: 0.5019607843137255, B: 1}
	meta := ClassMetadata([]*Layer{a})

	data, err := json.Marshal(meta)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":4,"name":"road","color":"#0080ff"}]`, string(data))

	var back []ClassInfo
	require.NoError(t, json.Unmarshal(data, &back))
	if diff := cmp.Diff(meta[0].Color.Hex(), back[0].Color.Hex()); diff != "" {
		t.Errorf("color mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, uint16(4), back[0].ID)
	assert.Equal(t, "road", back[0].Name)
}
