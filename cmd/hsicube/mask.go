package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"hsicube/pkg/config"
	"hsicube/pkg/cube"
	"hsicube/pkg/hsio"
	"hsicube/pkg/mask"
)

func runMask(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("mask", flag.ExitOnError)
	variable := fs.String("variable", "", "MAT variable to load")
	output := fs.String("o", "", "Output mask (png, npy or mat)")
	format := fs.String("format", "", "Mask format; default from the extension")
	colors := fs.Bool("colors", cfg.Mask.ColorMapped, "Render PNG masks with the class colors")
	var rects, bands listFlag
	fs.Var(&rects, "rect", "Class region id:name:x,y,w,h (repeatable)")
	fs.Var(&bands, "band", "Class threshold id:name:channel:lo:hi (repeatable)")
	path, err := singleInput(fs, args)
	if err != nil {
		return err
	}
	if *output == "" {
		return fmt.Errorf("mask needs -o")
	}
	if len(rects) == 0 && len(bands) == 0 {
		return fmt.Errorf("mask needs at least one -rect or -band")
	}

	if *format != "" {
		cfg.Mask.Format = *format
	}
	cfg.Mask.ColorMapped = *colors
	opts, err := cfg.MaskOptions()
	if err != nil {
		return err
	}
	if *format == "" {
		// a mask extension on -o wins over the configured default
		switch f, _ := hsio.FormatFromPath(*output); f {
		case hsio.PNG, hsio.NPY, hsio.MAT:
			opts.Format = hsio.Unknown
		}
	}

	c, layout, err := loadCube(cfg, path, *variable)
	if err != nil {
		return err
	}
	layers, err := buildLayers(c, layout, rects, bands)
	if err != nil {
		return err
	}
	if err := hsio.SaveMask(*output, layers, opts); err != nil {
		return err
	}
	marked := 0
	for _, l := range layers {
		marked += l.Count()
	}
	fmt.Printf("Wrote %s: %d classes, %d marked pixels\n", *output, len(layers), marked)
	return nil
}

// buildLayers turns -rect and -band specs into one layer per class id, in
// order of first appearance. Specs sharing an id add to the same layer.
func buildLayers(c *cube.Cube, layout cube.Layout, rects, bands []string) ([]*mask.Layer, error) {
	v, err := c.View(layout)
	if err != nil {
		return nil, err
	}
	var layers []*mask.Layer
	byID := map[uint16]*mask.Layer{}
	layer := func(id uint16, name string) (*mask.Layer, error) {
		if l, ok := byID[id]; ok {
			return l, nil
		}
		l, err := mask.NewLayer(id, name, v.Width, v.Height)
		if err != nil {
			return nil, err
		}
		byID[id] = l
		layers = append(layers, l)
		return l, nil
	}

	for _, spec := range rects {
		id, name, rest, err := parseClass(spec, 3)
		if err != nil {
			return nil, err
		}
		rect, err := parseRect(rest[0])
		if err != nil {
			return nil, err
		}
		l, err := layer(id, name)
		if err != nil {
			return nil, err
		}
		if err := l.Fill(rect); err != nil {
			return nil, fmt.Errorf("class %d: %w", id, err)
		}
	}
	for _, spec := range bands {
		id, name, rest, err := parseClass(spec, 5)
		if err != nil {
			return nil, err
		}
		ch, err := strconv.Atoi(rest[0])
		if err != nil || ch < 0 || ch >= v.Channels {
			return nil, fmt.Errorf("%w: channel %q of %d", cube.ErrIndexOutOfRange, rest[0], v.Channels)
		}
		bounds, err := parseFloats(rest[1] + "," + rest[2])
		if err != nil || len(bounds) != 2 {
			return nil, fmt.Errorf("bad band range in %q", spec)
		}
		l, err := layer(id, name)
		if err != nil {
			return nil, err
		}
		for y := 0; y < v.Height; y++ {
			for x := 0; x < v.Width; x++ {
				if val := v.Value(y, x, ch); val >= bounds[0] && val <= bounds[1] {
					l.Pixels[y*l.Width+x] = true
				}
			}
		}
	}
	return layers, nil
}

// parseClass splits "id:name:rest..." into n colon separated fields.
func parseClass(spec string, n int) (uint16, string, []string, error) {
	parts := strings.SplitN(spec, ":", n)
	if len(parts) != n {
		return 0, "", nil, fmt.Errorf("want %d colon separated fields, got %q", n, spec)
	}
	id, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 16)
	if err != nil || id == uint64(mask.Background) {
		return 0, "", nil, fmt.Errorf("%w: %q", cube.ErrInvalidClassID, parts[0])
	}
	rest := parts[2:]
	for i := range rest {
		rest[i] = strings.TrimSpace(rest[i])
	}
	return uint16(id), strings.TrimSpace(parts[1]), rest, nil
}
