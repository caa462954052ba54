package hsio

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"hsicube/internal/fsutil"
	"hsicube/internal/logging"
	"hsicube/pkg/codec/mat"
	"hsicube/pkg/codec/npy"
	"hsicube/pkg/codec/raster"
	"hsicube/pkg/convert"
	"hsicube/pkg/cube"
	"hsicube/pkg/mask"
	"hsicube/pkg/visualization"
)

// Save writes c to path. The format comes from opts.Format, or from the
// extension when that is Unknown. The output files and the wavelength
// sidecar are renamed into place only after all of them were written.
func Save(path string, c *cube.Cube, opts SaveOptions) error {
	f := opts.Format
	if f == Unknown {
		var err error
		if f, err = FormatFromPath(path); err != nil {
			return err
		}
	}
	cd, err := Lookup(f)
	if err != nil {
		return err
	}
	if opts.DType != nil && *opts.DType != c.DType {
		if c, err = convert.Convert(c, *opts.DType, opts.ConvertMode); err != nil {
			return err
		}
	}
	targets, err := cd.Targets(path, c, opts)
	if err != nil {
		return err
	}
	if opts.WavelengthSidecar && len(c.Wavelengths) > 0 {
		targets = append(targets, wavelengthTarget(SidecarPath(path), c.Wavelengths))
	}
	if err := fsutil.AtomicWriteAll(targets); err != nil {
		return err
	}
	logging.Debugf("hsio: saved %s as %s %v %s (%d files)", path, f, c.Dims, c.DType, len(targets))
	return nil
}

// SaveChannels writes every channel as <dir>/<base>_chNNN.png and returns
// the paths in channel order. All channels share one display scale.
func SaveChannels(dir, base string, c *cube.Cube, layout cube.Layout, depth raster.Depth) ([]string, error) {
	v, err := visualization.NewViewer(c, layout)
	if err != nil {
		return nil, err
	}
	return v.SaveChannelSequence(dir, base, depth)
}

// MaskOptions controls SaveMask.
type MaskOptions struct {
	// Format is PNG, NPY or MAT; Unknown takes it from the extension.
	Format Format
	// ColorMapped renders PNG masks with the class colors instead of raw
	// class ids.
	ColorMapped bool
	// Metadata writes the class list: a <stem>_classes.json sidecar for PNG
	// and NPY, extra variables for MAT.
	Metadata bool
	// KeyPrefix is prepended to the MAT metadata variable names.
	KeyPrefix string
	// VariableName is the MAT label variable; empty means "mask".
	VariableName string
}

// SaveMask merges layers and writes the label raster.
func SaveMask(path string, layers []*mask.Layer, opts MaskOptions) error {
	r, err := mask.Merge(layers)
	if err != nil {
		return err
	}
	classes := mask.ClassMetadata(layers)

	f := opts.Format
	if f == Unknown {
		if f, err = FormatFromPath(path); err != nil {
			return err
		}
	}

	var write func(io.Writer) error
	switch f {
	case PNG:
		write = func(w io.Writer) error {
			return raster.EncodeMask(w, r, classes, opts.ColorMapped)
		}
	case NPY:
		c, err := r.Cube()
		if err != nil {
			return err
		}
		write = func(w io.Writer) error { return npy.Encode(w, c) }
	case MAT:
		return fsutil.AtomicWrite(path, func(w io.Writer) error {
			return writeMaskMAT(w, r, classes, opts)
		})
	default:
		return fmt.Errorf("%w: masks are written as png, npy or mat, not %s", ErrUnsupportedFormat, f)
	}

	targets := []fsutil.Target{{Path: path, Write: write}}
	if opts.Metadata {
		targets = append(targets, fsutil.Target{
			Path: ClassSidecarPath(path),
			Write: func(w io.Writer) error {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(classes)
			},
		})
	}
	return fsutil.AtomicWriteAll(targets)
}

func writeMaskMAT(w io.Writer, r *mask.Raster, classes []mask.ClassInfo, opts MaskOptions) error {
	name := strings.TrimSpace(opts.VariableName)
	if name == "" {
		name = "mask"
	}
	c, err := r.Cube()
	if err != nil {
		return err
	}
	mw := mat.NewWriter(w, mat.WriterOptions{})
	if err := mw.WriteHeader(); err != nil {
		return err
	}
	if err := mw.WriteCube(name, c); err != nil {
		return err
	}
	if !opts.Metadata {
		return nil
	}

	n := len(classes)
	ids := make([]int32, n)
	names := make([]string, n)
	colors := make([]byte, 3*n)
	for i, ci := range classes {
		ids[i] = int32(ci.ID)
		names[i] = ci.Name
		cr, cg, cb := ci.Color.Clamped().RGB255()
		// n x 3, column-major
		colors[i], colors[n+i], colors[2*n+i] = cr, cg, cb
	}
	p := opts.KeyPrefix
	if err := mw.WriteInt32Column(p+"class_ids", ids); err != nil {
		return err
	}
	if err := mw.WriteStrings(p+"class_names", names); err != nil {
		return err
	}
	return mw.WriteMatrix(p+"class_colors", []int{n, 3}, cube.Uint8, colors)
}

// ReadClassSidecar reads a <stem>_classes.json file.
func ReadClassSidecar(data []byte) ([]mask.ClassInfo, error) {
	var classes []mask.ClassInfo
	if err := json.Unmarshal(data, &classes); err != nil {
		return nil, err
	}
	for _, ci := range classes {
		if ci.ID == mask.Background {
			return nil, fmt.Errorf("%w: %d", cube.ErrInvalidClassID, ci.ID)
		}
	}
	return classes, nil
}
