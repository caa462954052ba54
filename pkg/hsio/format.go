// Package hsio loads and saves cubes on disk. It picks the codec from the
// file extension, applies the export options (dtype conversion, wavelength
// sidecars) and writes every file atomically.
package hsio

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for extensions and operations no codec
// handles.
var ErrUnsupportedFormat = errors.New("unsupported format")

// Format identifies a file format.
type Format int

const (
	Unknown Format = iota
	NPY
	MAT
	ENVI
	TIFF
	PNG
	// Image covers the read-only raster formats: jpeg, gif, bmp and webp.
	Image
)

var formatNames = map[Format]string{
	Unknown: "unknown",
	NPY:     "npy",
	MAT:     "mat",
	ENVI:    "envi",
	TIFF:    "tiff",
	PNG:     "png",
	Image:   "image",
}

func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ParseFormat parses a format name or a bare extension.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))
	for f, name := range formatNames {
		if f != Unknown && s == name {
			return f, nil
		}
	}
	if f, ok := extensionFormats["."+s]; ok {
		return f, nil
	}
	return Unknown, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Format) UnmarshalText(text []byte) error {
	parsed, err := ParseFormat(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

var extensionFormats = map[string]Format{
	".npy":  NPY,
	".mat":  MAT,
	".hdr":  ENVI,
	".dat":  ENVI,
	".raw":  ENVI,
	".img":  ENVI,
	".bsq":  ENVI,
	".bil":  ENVI,
	".bip":  ENVI,
	".tif":  TIFF,
	".tiff": TIFF,
	".png":  PNG,
	".jpg":  Image,
	".jpeg": Image,
	".gif":  Image,
	".bmp":  Image,
	".webp": Image,
}

// FormatFromPath maps the extension of path to a format.
func FormatFromPath(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if f, ok := extensionFormats[ext]; ok {
		return f, nil
	}
	return Unknown, fmt.Errorf("%w: extension %q of %s", ErrUnsupportedFormat, ext, path)
}

// Stem is path without its extension.
func Stem(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}
