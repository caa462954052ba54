// Package raster writes PNG views of cubes and masks and reads ordinary
// images back as cubes.
package raster

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"math"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"hsicube/pkg/codec"
	"hsicube/pkg/cube"
	"hsicube/pkg/mask"
	"hsicube/pkg/stats"
)

const format = "png"

// Depth is the bit depth of a grayscale export.
type Depth int

const (
	Depth8  Depth = 8
	Depth16 Depth = 16
)

// ParseDepth accepts 8 or 16.
func ParseDepth(bits int) (Depth, error) {
	switch Depth(bits) {
	case Depth8, Depth16:
		return Depth(bits), nil
	}
	return 0, codec.Errorf(format, codec.ErrUnsupportedDType, "%d-bit grayscale", bits)
}

// Scale maps cube values onto display intensity.
type Scale struct {
	Lo, Hi float64
}

// ScaleFor returns the display range of c: the representable range of
// integer types, the finite min and max of float cubes.
func ScaleFor(c *cube.Cube) Scale {
	if !c.DType.IsFloat() {
		lo, hi := c.DType.Range()
		return Scale{Lo: lo, Hi: hi}
	}
	s := stats.ComputeWithOptions(c, stats.Options{MaxSamples: -1})
	if s.Count == 0 {
		return Scale{}
	}
	return Scale{Lo: s.Min, Hi: s.Max}
}

// Unit maps v into [0, 1]. NaN and degenerate ranges map to 0.
func (s Scale) Unit(v float64) float64 {
	if math.IsNaN(v) || s.Hi <= s.Lo {
		return 0
	}
	u := (v - s.Lo) / (s.Hi - s.Lo)
	return math.Max(0, math.Min(1, u))
}

// Channel renders one channel as *image.Gray or *image.Gray16. A 2-D cube
// has a single channel 0.
func Channel(c *cube.Cube, layout cube.Layout, ch int, depth Depth) (image.Image, error) {
	return ChannelScaled(c, layout, ch, depth, ScaleFor(c))
}

// ChannelScaled is Channel with an explicit scale, so a sequence of channels
// can share one.
func ChannelScaled(c *cube.Cube, layout cube.Layout, ch int, depth Depth, s Scale) (image.Image, error) {
	if _, err := ParseDepth(int(depth)); err != nil {
		return nil, err
	}
	height, width, at, err := plane(c, layout, ch)
	if err != nil {
		return nil, err
	}
	rect := image.Rect(0, 0, width, height)
	if depth == Depth8 {
		img := image.NewGray(rect)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				img.Pix[y*img.Stride+x] = uint8(math.Round(s.Unit(at(y, x)) * 255))
			}
		}
		return img, nil
	}
	img := image.NewGray16(rect)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := uint16(math.Round(s.Unit(at(y, x)) * 65535))
			i := y*img.Stride + 2*x
			img.Pix[i], img.Pix[i+1] = byte(v>>8), byte(v)
		}
	}
	return img, nil
}

// plane returns the spatial size of c and an accessor for channel ch.
func plane(c *cube.Cube, layout cube.Layout, ch int) (int, int, func(y, x int) float64, error) {
	if c.Rank() == 2 {
		if ch != 0 {
			return 0, 0, nil, fmt.Errorf("%w: channel %d of a 2-D cube", cube.ErrIndexOutOfRange, ch)
		}
		st := c.Strides()
		return c.Dims[0], c.Dims[1], func(y, x int) float64 {
			v, _ := c.At(y*st[0] + x*st[1])
			return v
		}, nil
	}
	v, err := c.View(layout)
	if err != nil {
		return 0, 0, nil, err
	}
	if ch < 0 || ch >= v.Channels {
		return 0, 0, nil, fmt.Errorf("%w: channel %d of %d", cube.ErrIndexOutOfRange, ch, v.Channels)
	}
	return v.Height, v.Width, func(y, x int) float64 { return v.Value(y, x, ch) }, nil
}

// EncodeChannel writes channel ch as a grayscale PNG.
func EncodeChannel(w io.Writer, c *cube.Cube, layout cube.Layout, ch int, depth Depth) error {
	img, err := Channel(c, layout, ch, depth)
	if err != nil {
		return err
	}
	return EncodeImage(w, img)
}

// EncodeRGB writes a synthesized preview.
func EncodeRGB(w io.Writer, img *image.RGBA) error {
	return EncodeImage(w, img)
}

// EncodeMask writes the label raster, either as raw class ids (8 or 16-bit
// gray, whichever holds the largest id) or through the class colors.
func EncodeMask(w io.Writer, r *mask.Raster, classes []mask.ClassInfo, colorMapped bool) error {
	if colorMapped {
		return EncodeImage(w, r.ColorImage(classes))
	}
	return EncodeImage(w, r.GrayImage())
}

// EncodeImage writes img as PNG.
func EncodeImage(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := enc.Encode(w, img); err != nil {
		return codec.Wrap(format, codec.ErrIOFailure, err, "encoding %v image", img.Bounds().Size())
	}
	return nil
}

// Decode reads a png, jpeg, gif, bmp, tiff or webp image. Gray images
// become (H, W) cubes, color images (H, W, 3).
func Decode(r io.Reader) (*cube.Cube, error) {
	img, name, err := image.Decode(r)
	if err != nil {
		return nil, codec.Wrap("image", codec.ErrMalformedHeader, err, "decoding")
	}
	c, err := codec.FromImage(img)
	if err != nil {
		return nil, err
	}
	c.Source = name
	return c, nil
}
