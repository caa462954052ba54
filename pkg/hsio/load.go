package hsio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"hsicube/internal/logging"
	"hsicube/pkg/codec/npy"
	"hsicube/pkg/codec/raster"
	"hsicube/pkg/codec/tiff"
	"hsicube/pkg/cube"
)

// Load reads the cube at path with the codec chosen by its extension.
//
// Cubes without wavelengths pick them up from <stem>_wavelengths.txt when
// that file exists. A wavelength list whose length does not match the
// channel count under opts.Layout is dropped with a log line.
func Load(path string, opts LoadOptions) (*Result, error) {
	cd, err := ForPath(path)
	if err != nil {
		return nil, err
	}
	res, err := cd.Load(path, opts)
	if err != nil {
		return nil, err
	}
	if res.Cube == nil {
		return res, nil
	}
	c := res.Cube
	if c.Name == "" {
		c.Name = filepath.Base(Stem(path))
	}
	if len(c.Wavelengths) == 0 && !opts.NoSidecar {
		wl, err := ReadWavelengthSidecar(SidecarPath(path))
		switch {
		case err == nil:
			c.Wavelengths = wl
		case !errors.Is(err, os.ErrNotExist):
			logging.Warnf("hsio: ignoring wavelength sidecar of %s: %v", path, err)
		}
	}
	checkWavelengths(c, opts.Layout)
	logging.Debugf("hsio: loaded %s as %s %v %s", path, res.Format, c.Dims, c.DType)
	return res, nil
}

// Sniff guesses the format of an in-memory file from its leading bytes.
func Sniff(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, []byte("\x93NUMPY")):
		return NPY
	case bytes.HasPrefix(data, []byte("MATLAB")):
		return MAT
	case bytes.HasPrefix(data, []byte("II*\x00")), bytes.HasPrefix(data, []byte("MM\x00*")):
		return TIFF
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return PNG
	case bytes.HasPrefix(data, []byte("ENVI")):
		return ENVI
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		return Image
	}
	return Unknown
}

// Decode reads an in-memory file. hint names the format; Unknown sniffs it
// from the content. ENVI needs two files and is only available through Load.
func Decode(data []byte, hint Format, opts LoadOptions) (*Result, error) {
	if hint == Unknown {
		hint = Sniff(data)
	}
	var c *cube.Cube
	var err error
	switch hint {
	case NPY:
		c, err = npy.Decode(data)
	case MAT:
		var res *Result
		if res, err = decodeMAT(data, opts); err != nil || res.Cube == nil {
			return res, err
		}
		c = res.Cube
	case TIFF:
		c, err = tiff.Decode(data)
	case PNG, Image:
		c, err = raster.Decode(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("%w: decoding %s from memory", ErrUnsupportedFormat, hint)
	}
	if err != nil {
		return nil, err
	}
	checkWavelengths(c, opts.Layout)
	return &Result{Cube: c, Format: hint}, nil
}

func checkWavelengths(c *cube.Cube, layout cube.Layout) {
	if len(c.Wavelengths) == 0 || c.Rank() != 3 {
		return
	}
	if err := c.CheckWavelengths(layout); err != nil {
		logging.Warnf("hsio: dropping wavelengths of %s: %v", c.Name, err)
		c.Wavelengths = nil
	}
}
