// Package visualization renders grayscale views of a cube: single channels,
// cross sections through the channel axis, and channel sequences on disk.
package visualization

import (
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"path/filepath"

	"hsicube/internal/fsutil"
	"hsicube/internal/logging"
	"hsicube/pkg/codec/raster"
	"hsicube/pkg/cube"
)

// Viewer extracts images from a cube under a fixed layout. Every image it
// produces uses the same display scale, so intensities are comparable
// between channels and cross sections.
type Viewer struct {
	cube   *cube.Cube
	view   *cube.View
	layout cube.Layout
	scale  raster.Scale
}

// NewViewer resolves layout against c. A 2-D cube is viewed as a single
// channel.
func NewViewer(c *cube.Cube, layout cube.Layout) (*Viewer, error) {
	if c.Rank() == 2 {
		flat, err := cube.FromBytes([]int{c.Dims[0], c.Dims[1], 1}, c.DType, c.Order, c.Data)
		if err != nil {
			return nil, err
		}
		flat.Name = c.Name
		c, layout = flat, cube.HWC
	}
	v, err := c.View(layout)
	if err != nil {
		return nil, err
	}
	return &Viewer{
		cube:   c,
		view:   v,
		layout: layout,
		scale:  raster.ScaleFor(c),
	}, nil
}

// Size returns the spatial size and channel count.
func (v *Viewer) Size() (height, width, channels int) {
	return v.view.Height, v.view.Width, v.view.Channels
}

// Scale is the display range shared by every extracted image.
func (v *Viewer) Scale() raster.Scale { return v.scale }

func (v *Viewer) gray16(x, y int, val float64, img *image.Gray16) {
	g := uint16(math.Round(v.scale.Unit(val) * 65535))
	i := y*img.Stride + 2*x
	img.Pix[i], img.Pix[i+1] = byte(g>>8), byte(g)
}

// ExtractChannel renders channel ch as a Width x Height 16-bit image.
func (v *Viewer) ExtractChannel(ch int) (*image.Gray16, error) {
	img, err := raster.ChannelScaled(v.cube, v.layout, ch, raster.Depth16, v.scale)
	if err != nil {
		return nil, err
	}
	return img.(*image.Gray16), nil
}

// ExtractSlice cuts the cube along one semantic axis:
//
//	"channel": the spatial plane of channel pos (Width x Height)
//	"height":  row pos, channels down the image (Width x Channels)
//	"width":   column pos, channels across the image (Channels x Height)
func (v *Viewer) ExtractSlice(axis string, pos int) (*image.Gray16, error) {
	if pos < 0 {
		return nil, fmt.Errorf("%w: position %d", cube.ErrIndexOutOfRange, pos)
	}
	vw := v.view
	switch axis {
	case "channel", "c", "C":
		return v.ExtractChannel(pos)

	case "height", "h", "H", "y", "Y":
		if pos >= vw.Height {
			return nil, fmt.Errorf("%w: row %d exceeds height %d", cube.ErrIndexOutOfRange, pos, vw.Height)
		}
		img := image.NewGray16(image.Rect(0, 0, vw.Width, vw.Channels))
		for ch := 0; ch < vw.Channels; ch++ {
			for x := 0; x < vw.Width; x++ {
				v.gray16(x, ch, vw.Value(pos, x, ch), img)
			}
		}
		return img, nil

	case "width", "w", "W", "x", "X":
		if pos >= vw.Width {
			return nil, fmt.Errorf("%w: column %d exceeds width %d", cube.ErrIndexOutOfRange, pos, vw.Width)
		}
		img := image.NewGray16(image.Rect(0, 0, vw.Channels, vw.Height))
		for y := 0; y < vw.Height; y++ {
			for ch := 0; ch < vw.Channels; ch++ {
				v.gray16(ch, y, vw.Value(y, pos, ch), img)
			}
		}
		return img, nil
	}
	return nil, fmt.Errorf("invalid axis: %s (must be channel, height or width)", axis)
}

// ExtractRegion crops the spatial rect out of the cube. The result keeps
// the physical axis order, dtype, storage order and wavelengths of the
// source.
func (v *Viewer) ExtractRegion(r cube.Rect) (*cube.Cube, error) {
	vw := v.view
	if err := r.Validate(vw.Width, vw.Height); err != nil {
		return nil, err
	}
	dims := append([]int(nil), v.cube.Dims...)
	dims[vw.Axes.Height] = r.Height
	dims[vw.Axes.Width] = r.Width
	out, err := cube.New(dims, v.cube.DType, v.cube.Order)
	if err != nil {
		return nil, err
	}
	dst, err := out.View(v.layout)
	if err != nil {
		return nil, err
	}

	size := v.cube.DType.Size()
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			for ch := 0; ch < vw.Channels; ch++ {
				si := vw.Index(r.MinY+y, r.MinX+x, ch) * size
				di := dst.Index(y, x, ch) * size
				copy(out.Data[di:di+size], v.cube.Data[si:si+size])
			}
		}
	}

	out.Wavelengths = append([]float64(nil), v.cube.Wavelengths...)
	out.WavelengthUnits = v.cube.WavelengthUnits
	out.Source = v.cube.Source
	out.Name = v.cube.Name
	out.LayoutHint = v.cube.LayoutHint
	return out, nil
}

// SaveSlice writes an extracted image as PNG.
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	return fsutil.AtomicWrite(filename, func(w io.Writer) error {
		return raster.EncodeImage(w, img)
	})
}

// SaveChannelSequence writes every channel to dir as <base>_chNNN.png and
// returns the file names in channel order.
func (v *Viewer) SaveChannelSequence(dir, base string, depth raster.Depth) ([]string, error) {
	if _, err := raster.ParseDepth(int(depth)); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	paths := make([]string, 0, v.view.Channels)
	for ch := 0; ch < v.view.Channels; ch++ {
		img, err := raster.ChannelScaled(v.cube, v.layout, ch, depth, v.scale)
		if err != nil {
			return paths, err
		}
		filename := filepath.Join(dir, fmt.Sprintf("%s_ch%03d.png", base, ch))
		if err := v.SaveSlice(img, filename); err != nil {
			return paths, err
		}
		paths = append(paths, filename)
	}
	logging.Logf("visualization: wrote %d channels of %s to %s", len(paths), v.cube.Name, dir)
	return paths, nil
}
