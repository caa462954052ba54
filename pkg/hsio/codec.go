package hsio

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"hsicube/internal/fsutil"
	"hsicube/pkg/codec"
	"hsicube/pkg/codec/envi"
	"hsicube/pkg/codec/mat"
	"hsicube/pkg/codec/npy"
	"hsicube/pkg/codec/raster"
	"hsicube/pkg/codec/tiff"
	"hsicube/pkg/colorsynth"
	"hsicube/pkg/cube"
)

// Codec reads and writes one format on disk.
type Codec interface {
	Format() Format
	Extensions() []string
	Load(path string, opts LoadOptions) (*Result, error)
	// Targets describes the files that writing c to path produces. Save
	// commits them together with any sidecar in one atomic write.
	Targets(path string, c *cube.Cube, opts SaveOptions) ([]fsutil.Target, error)
}

var registry = map[Format]Codec{}

// Register installs c for its format, replacing any previous codec.
func Register(c Codec) {
	registry[c.Format()] = c
}

func init() {
	Register(npyCodec{})
	Register(matCodec{})
	Register(enviCodec{})
	Register(tiffCodec{})
	Register(pngCodec{})
	Register(imageCodec{})
}

// Lookup returns the codec for f.
func Lookup(f Format) (Codec, error) {
	c, ok := registry[f]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
	return c, nil
}

// ForPath returns the codec for the extension of path.
func ForPath(path string) (Codec, error) {
	f, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	return Lookup(f)
}

// Formats lists the registered formats in enum order.
func Formats() []Format {
	out := make([]Format, 0, len(registry))
	for f := range registry {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func readFile(format, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, codec.Wrap(format, codec.ErrIOFailure, err, "reading %s", path)
	}
	return data, nil
}

type npyCodec struct{}

func (npyCodec) Format() Format       { return NPY }
func (npyCodec) Extensions() []string { return []string{".npy"} }

func (npyCodec) Load(path string, _ LoadOptions) (*Result, error) {
	data, err := readFile("npy", path)
	if err != nil {
		return nil, err
	}
	c, err := npy.Decode(data)
	if err != nil {
		return nil, err
	}
	return &Result{Cube: c, Format: NPY}, nil
}

func (npyCodec) Targets(path string, c *cube.Cube, _ SaveOptions) ([]fsutil.Target, error) {
	return []fsutil.Target{{Path: path, Write: func(w io.Writer) error {
		return npy.Encode(w, c)
	}}}, nil
}

type matCodec struct{}

func (matCodec) Format() Format       { return MAT }
func (matCodec) Extensions() []string { return []string{".mat"} }

func (matCodec) Load(path string, opts LoadOptions) (*Result, error) {
	data, err := readFile("mat", path)
	if err != nil {
		return nil, err
	}
	return decodeMAT(data, opts)
}

func decodeMAT(data []byte, opts LoadOptions) (*Result, error) {
	if opts.Variable == "" {
		infos, err := mat.ListVariables(data)
		if err != nil {
			return nil, err
		}
		var cands []mat.Info
		for _, info := range infos {
			if len(info.Dims) == 3 {
				cands = append(cands, info)
			}
		}
		if len(cands) > 1 {
			return &Result{Format: MAT, Candidates: cands}, nil
		}
		if len(cands) == 0 && len(infos) > 0 {
			// a lone 2-D variable is still an image
			opts.Variable = infos[0].Name
		}
	}
	c, err := mat.Decode(data, opts.Variable)
	if err != nil {
		return nil, err
	}
	return &Result{Cube: c, Format: MAT}, nil
}

func (matCodec) Targets(path string, c *cube.Cube, opts SaveOptions) ([]fsutil.Target, error) {
	name := opts.MATVariable
	if name == "" {
		name = c.Name
	}
	return []fsutil.Target{{Path: path, Write: func(w io.Writer) error {
		return mat.Encode(w, c, mat.EncodeOptions{
			Name:        matName(name),
			Compress:    opts.MATCompress,
			Wavelengths: opts.MATWavelengths,
		})
	}}}, nil
}

// matName turns a file stem into a valid MATLAB identifier.
func matName(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9' || r == '_':
			if i == 0 {
				b.WriteString("x")
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() > 63 {
		return b.String()[:63]
	}
	return b.String()
}

type enviCodec struct{}

func (enviCodec) Format() Format { return ENVI }
func (enviCodec) Extensions() []string {
	return []string{".hdr", ".dat", ".raw", ".img", ".bsq", ".bil", ".bip"}
}

// enviPaths resolves the header and body paths from either file.
func enviPaths(path string) (hdr, body string, err error) {
	if strings.EqualFold(filepath.Ext(path), ".hdr") {
		hdr = path
		stem := Stem(path)
		for _, ext := range envi.DataExtensions {
			if _, err := os.Stat(stem + ext); err == nil {
				return hdr, stem + ext, nil
			}
		}
		return "", "", codec.Errorf("envi", codec.ErrIOFailure, "no data file next to %s", path)
	}
	for _, cand := range []string{Stem(path) + ".hdr", path + ".hdr"} {
		if _, err := os.Stat(cand); err == nil {
			return cand, path, nil
		}
	}
	return "", "", codec.Errorf("envi", codec.ErrIOFailure, "no header next to %s", path)
}

func (enviCodec) Load(path string, _ LoadOptions) (*Result, error) {
	hdrPath, bodyPath, err := enviPaths(path)
	if err != nil {
		return nil, err
	}
	text, err := readFile("envi", hdrPath)
	if err != nil {
		return nil, err
	}
	h, err := envi.ParseHeader(bytes.NewReader(text))
	if err != nil {
		return nil, err
	}
	body, err := readFile("envi", bodyPath)
	if err != nil {
		return nil, err
	}
	c, err := envi.Decode(h, body)
	if err != nil {
		return nil, err
	}
	return &Result{Cube: c, Format: ENVI, ENVI: h.Metadata()}, nil
}

func (enviCodec) Targets(path string, c *cube.Cube, opts SaveOptions) ([]fsutil.Target, error) {
	stem := Stem(path)
	dataExt := opts.dataExtension()
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".hdr" && extensionFormats[ext] == ENVI {
		dataExt = ext
	}
	eo := envi.EncodeOptions{Interleave: opts.Interleave, Metadata: opts.ENVIMetadata}
	h, err := envi.HeaderFor(c, opts.Layout, eo)
	if err != nil {
		return nil, err
	}
	if len(h.DefaultBands) == 0 {
		m := colorsynth.DefaultMapping(h.Wavelength, h.Bands)
		h.DefaultBands = []int{m.Red + 1, m.Green + 1, m.Blue + 1}
	}
	body, err := envi.Body(c, opts.Layout, opts.Interleave)
	if err != nil {
		return nil, err
	}
	return []fsutil.Target{
		{Path: stem + ".hdr", Write: h.Format},
		{Path: stem + dataExt, Write: func(w io.Writer) error {
			_, err := w.Write(body)
			return err
		}},
	}, nil
}

type tiffCodec struct{}

func (tiffCodec) Format() Format       { return TIFF }
func (tiffCodec) Extensions() []string { return []string{".tif", ".tiff"} }

func (tiffCodec) Load(path string, _ LoadOptions) (*Result, error) {
	data, err := readFile("tiff", path)
	if err != nil {
		return nil, err
	}
	c, err := tiff.Decode(data)
	if err != nil {
		return nil, err
	}
	return &Result{Cube: c, Format: TIFF}, nil
}

func (tiffCodec) Targets(path string, c *cube.Cube, opts SaveOptions) ([]fsutil.Target, error) {
	return []fsutil.Target{{Path: path, Write: func(w io.Writer) error {
		return tiff.Encode(w, c, opts.Layout, tiff.Options{Mode: opts.TIFFMode})
	}}}, nil
}

// pngCodec writes 2-D cubes as grayscale and 3-D cubes as a color preview.
type pngCodec struct{}

func (pngCodec) Format() Format       { return PNG }
func (pngCodec) Extensions() []string { return []string{".png"} }

func (pngCodec) Load(path string, _ LoadOptions) (*Result, error) {
	return loadImage(path, PNG)
}

func (pngCodec) Targets(path string, c *cube.Cube, opts SaveOptions) ([]fsutil.Target, error) {
	if c.Rank() == 2 {
		return []fsutil.Target{{Path: path, Write: func(w io.Writer) error {
			return raster.EncodeChannel(w, c, opts.Layout, 0, opts.pngDepth())
		}}}, nil
	}
	t, err := previewTarget(path, c, opts.Layout, opts.Color)
	if err != nil {
		return nil, err
	}
	return []fsutil.Target{t}, nil
}

// imageCodec reads jpeg, gif, bmp and webp files.
type imageCodec struct{}

func (imageCodec) Format() Format { return Image }
func (imageCodec) Extensions() []string {
	return []string{".jpg", ".jpeg", ".gif", ".bmp", ".webp"}
}

func (imageCodec) Load(path string, _ LoadOptions) (*Result, error) {
	return loadImage(path, Image)
}

func (imageCodec) Targets(path string, _ *cube.Cube, _ SaveOptions) ([]fsutil.Target, error) {
	return nil, fmt.Errorf("%w: writing %s", ErrUnsupportedFormat, filepath.Ext(path))
}

func loadImage(path string, f Format) (*Result, error) {
	data, err := readFile("image", path)
	if err != nil {
		return nil, err
	}
	c, err := raster.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return &Result{Cube: c, Format: f}, nil
}

// SaveQuickPNG synthesizes an RGB preview of c and writes it as PNG. Zero
// channel mappings in p are filled from the cube's wavelengths.
func SaveQuickPNG(path string, c *cube.Cube, layout cube.Layout, p colorsynth.Params) error {
	t, err := previewTarget(path, c, layout, p)
	if err != nil {
		return err
	}
	return fsutil.AtomicWriteAll([]fsutil.Target{t})
}

func previewTarget(path string, c *cube.Cube, layout cube.Layout, p colorsynth.Params) (fsutil.Target, error) {
	p, err := p.WithDefaults(c, layout)
	if err != nil {
		return fsutil.Target{}, err
	}
	img, err := colorsynth.Synthesize(c, layout, p)
	if err != nil {
		return fsutil.Target{}, err
	}
	return fsutil.Target{Path: path, Write: func(w io.Writer) error {
		return raster.EncodeRGB(w, img)
	}}, nil
}
