package codec

import (
	"image"
	"image/color"

	"hsicube/pkg/cube"
)

// FromImage converts a decoded image into a cube. Gray images become 2-D
// (H, W) cubes; everything else becomes an (H, W, 3) RGB cube with alpha
// removed. 16-bit sources keep 16 bits.
func FromImage(img image.Image) (*cube.Cube, error) {
	b := img.Bounds()
	h, w := b.Dy(), b.Dx()

	switch src := img.(type) {
	case *image.Gray:
		c, err := cube.New([]int{h, w}, cube.Uint8, cube.RowMajor)
		if err != nil {
			return nil, err
		}
		for y := 0; y < h; y++ {
			row := src.Pix[y*src.Stride:]
			copy(c.Data[y*w:(y+1)*w], row[:w])
		}
		return c, nil
	case *image.Gray16:
		c, err := cube.New([]int{h, w}, cube.Uint16, cube.RowMajor)
		if err != nil {
			return nil, err
		}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				v := src.Gray16At(b.Min.X+x, b.Min.Y+y).Y
				i := 2 * (y*w + x)
				c.Data[i], c.Data[i+1] = byte(v), byte(v>>8)
			}
		}
		return c, nil
	}

	deep := false
	switch img.(type) {
	case *image.RGBA64, *image.NRGBA64:
		deep = true
	}
	dtype := cube.Uint8
	if deep {
		dtype = cube.Uint16
	}
	c, err := cube.New([]int{h, w, 3}, dtype, cube.RowMajor)
	if err != nil {
		return nil, err
	}
	c.LayoutHint = cube.HWC
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px := color.NRGBA64Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
			base := 3 * (y*w + x)
			for ch, v := range [3]uint16{px.R, px.G, px.B} {
				if deep {
					i := 2 * (base + ch)
					c.Data[i], c.Data[i+1] = byte(v), byte(v>>8)
				} else {
					c.Data[base+ch] = byte(v >> 8)
				}
			}
		}
	}
	return c, nil
}
