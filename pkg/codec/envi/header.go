// Package envi reads and writes ENVI raster files: a text .hdr header next
// to a raw binary body in BSQ, BIL or BIP interleave.
package envi

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"hsicube/pkg/codec"
	"hsicube/pkg/cube"
)

const format = "envi"

// Interleave is the body element order.
type Interleave int

const (
	// BSQ stores band after band: (bands, lines, samples).
	BSQ Interleave = iota
	// BIL stores each line band after band: (lines, bands, samples).
	BIL
	// BIP stores each pixel's bands together: (lines, samples, bands).
	BIP
)

func (i Interleave) String() string {
	switch i {
	case BIL:
		return "bil"
	case BIP:
		return "bip"
	default:
		return "bsq"
	}
}

// ParseInterleave parses "bsq", "bil" or "bip".
func ParseInterleave(s string) (Interleave, error) {
	switch strings.ToLower(strings.Trim(strings.TrimSpace(s), "{} ")) {
	case "bsq":
		return BSQ, nil
	case "bil":
		return BIL, nil
	case "bip":
		return BIP, nil
	}
	return BSQ, codec.Errorf(format, codec.ErrUnsupportedInterleave, "%q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (i Interleave) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *Interleave) UnmarshalText(text []byte) error {
	parsed, err := ParseInterleave(string(text))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Layout is the cube layout of a body read in this interleave.
func (i Interleave) Layout() cube.Layout {
	switch i {
	case BIL:
		return cube.HCW
	case BIP:
		return cube.HWC
	default:
		return cube.CHW
	}
}

// Field is a header entry this package does not interpret.
type Field struct {
	Key   string
	Value string
}

// Header is a parsed .hdr file.
type Header struct {
	Description            string
	Samples                int
	Lines                  int
	Bands                  int
	HeaderOffset           int
	FileType               string
	DataType               int
	Interleave             Interleave
	ByteOrder              int
	DefaultBands           []int
	WavelengthUnits        string
	Wavelength             []float64
	FWHM                   []float64
	BandNames              []string
	AcquisitionTime        string
	MapInfo                string
	CoordinateSystemString string
	GeoPoints              []float64

	// Extra keeps unknown keys in file order.
	Extra []Field
}

// Dims returns the body dimensions in interleave order.
func (h *Header) Dims() []int {
	switch h.Interleave {
	case BIL:
		return []int{h.Lines, h.Bands, h.Samples}
	case BIP:
		return []int{h.Lines, h.Samples, h.Bands}
	default:
		return []int{h.Bands, h.Lines, h.Samples}
	}
}

// DType maps the data type code. widened reports codes that have no cube
// type of their own and are decoded into a wider one.
func (h *Header) DType() (dtype cube.DType, widened bool, err error) {
	switch h.DataType {
	case 1:
		return cube.Uint8, false, nil
	case 2:
		return cube.Int16, false, nil
	case 3:
		return cube.Int32, false, nil
	case 4:
		return cube.Float32, false, nil
	case 5:
		return cube.Float64, false, nil
	case 12:
		return cube.Uint16, false, nil
	case 13:
		return cube.Float64, true, nil
	}
	return 0, false, codec.Errorf(format, codec.ErrUnsupportedDType, "data type %d", h.DataType)
}

// ElementSize is the stored byte size of one element.
func (h *Header) ElementSize() int {
	switch h.DataType {
	case 1:
		return 1
	case 2, 12:
		return 2
	case 3, 4, 13:
		return 4
	case 5:
		return 8
	}
	return 0
}

// DataTypeCode returns the header code for dtype. ENVI has no signed byte.
func DataTypeCode(dtype cube.DType) (int, error) {
	switch dtype {
	case cube.Uint8:
		return 1, nil
	case cube.Int16:
		return 2, nil
	case cube.Int32:
		return 3, nil
	case cube.Float32:
		return 4, nil
	case cube.Float64:
		return 5, nil
	case cube.Uint16:
		return 12, nil
	}
	return 0, codec.Errorf(format, codec.ErrUnsupportedDType, "%s has no ENVI data type", dtype)
}

// ParseHeader reads a .hdr file. The first non-blank line must be "ENVI";
// values in braces may span several lines.
func ParseHeader(r io.Reader) (*Header, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, codec.Wrap(format, codec.ErrIOFailure, err, "reading header")
	}
	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	if start == len(lines) || !strings.EqualFold(strings.TrimSpace(lines[start]), "ENVI") {
		return nil, codec.Errorf(format, codec.ErrMalformedHeader, "missing ENVI signature")
	}

	h := &Header{ByteOrder: 0}
	seen := map[string]bool{}
	var key, value string
	open := false
	for n, line := range lines[start+1:] {
		trimmed := strings.TrimSpace(line)
		if open {
			value += " " + trimmed
			if strings.Contains(trimmed, "}") {
				open = false
				if err := h.set(key, value, seen); err != nil {
					return nil, err
				}
			}
			continue
		}
		if trimmed == "" || strings.HasPrefix(trimmed, ";") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			return nil, codec.Errorf(format, codec.ErrMalformedHeader, "line %d: %q", start+n+2, line)
		}
		key = strings.Join(strings.Fields(strings.ToLower(k)), " ")
		value = strings.TrimSpace(v)
		if strings.Contains(value, "{") && !strings.Contains(value, "}") {
			open = true
			continue
		}
		if err := h.set(key, value, seen); err != nil {
			return nil, err
		}
	}
	if open {
		return nil, codec.Errorf(format, codec.ErrMalformedHeader, "unterminated value for %q", key)
	}
	for _, k := range []string{"samples", "lines", "bands", "data type"} {
		if !seen[k] {
			return nil, codec.Errorf(format, codec.ErrMalformedHeader, "missing %q", k)
		}
	}
	if !seen["interleave"] {
		h.Interleave = BSQ
	}
	return h, nil
}

func (h *Header) set(key, value string, seen map[string]bool) error {
	seen[key] = true
	var err error
	switch key {
	case "description":
		h.Description = unbrace(value)
	case "samples":
		h.Samples, err = positive(key, value)
	case "lines":
		h.Lines, err = positive(key, value)
	case "bands":
		h.Bands, err = positive(key, value)
	case "header offset":
		h.HeaderOffset, err = integer(key, value)
	case "file type":
		h.FileType = value
	case "data type":
		h.DataType, err = integer(key, value)
	case "interleave":
		h.Interleave, err = ParseInterleave(value)
	case "byte order":
		h.ByteOrder, err = integer(key, value)
		if err == nil && h.ByteOrder != 0 && h.ByteOrder != 1 {
			err = codec.Errorf(format, codec.ErrMalformedHeader, "byte order %d", h.ByteOrder)
		}
	case "default bands":
		var fs []float64
		fs, err = floatList(key, value)
		for _, f := range fs {
			h.DefaultBands = append(h.DefaultBands, int(f))
		}
	case "wavelength units":
		h.WavelengthUnits = unbrace(value)
	case "wavelength":
		h.Wavelength, err = floatList(key, value)
	case "fwhm":
		h.FWHM, err = floatList(key, value)
	case "band names":
		h.BandNames = stringList(value)
	case "acquisition time":
		h.AcquisitionTime = value
	case "map info":
		h.MapInfo = unbrace(value)
	case "coordinate system string":
		h.CoordinateSystemString = unbrace(value)
	case "geo points":
		h.GeoPoints, err = floatList(key, value)
	default:
		h.Extra = append(h.Extra, Field{Key: key, Value: value})
	}
	return err
}

func unbrace(v string) string {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "{") && strings.HasSuffix(v, "}") {
		v = v[1 : len(v)-1]
	}
	return strings.TrimSpace(v)
}

func stringList(v string) []string {
	inner := unbrace(v)
	if inner == "" {
		return nil
	}
	parts := strings.Split(inner, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func floatList(key, v string) ([]float64, error) {
	parts := stringList(v)
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, codec.Errorf(format, codec.ErrMalformedHeader, "%s entry %q", key, p)
		}
		out = append(out, f)
	}
	return out, nil
}

func integer(key, v string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, codec.Errorf(format, codec.ErrMalformedHeader, "%s = %q", key, v)
	}
	return n, nil
}

func positive(key, v string) (int, error) {
	n, err := integer(key, v)
	if err == nil && n <= 0 {
		return 0, codec.Errorf(format, codec.ErrMalformedHeader, "%s = %d", key, n)
	}
	return n, err
}

// Format writes the header in the usual ENVI key order.
func (h *Header) Format(w io.Writer) error {
	var b strings.Builder
	b.WriteString("ENVI\n")
	if h.Description != "" {
		fmt.Fprintf(&b, "description = {%s}\n", h.Description)
	}
	fmt.Fprintf(&b, "samples = %d\n", h.Samples)
	fmt.Fprintf(&b, "lines = %d\n", h.Lines)
	fmt.Fprintf(&b, "bands = %d\n", h.Bands)
	fmt.Fprintf(&b, "header offset = %d\n", h.HeaderOffset)
	fileType := h.FileType
	if fileType == "" {
		fileType = "ENVI Standard"
	}
	fmt.Fprintf(&b, "file type = %s\n", fileType)
	fmt.Fprintf(&b, "data type = %d\n", h.DataType)
	fmt.Fprintf(&b, "interleave = %s\n", h.Interleave)
	fmt.Fprintf(&b, "byte order = %d\n", h.ByteOrder)
	if len(h.DefaultBands) > 0 {
		parts := make([]string, len(h.DefaultBands))
		for i, d := range h.DefaultBands {
			parts[i] = strconv.Itoa(d)
		}
		fmt.Fprintf(&b, "default bands = {%s}\n", strings.Join(parts, ", "))
	}
	if h.AcquisitionTime != "" {
		fmt.Fprintf(&b, "acquisition time = %s\n", h.AcquisitionTime)
	}
	if h.MapInfo != "" {
		fmt.Fprintf(&b, "map info = {%s}\n", h.MapInfo)
	}
	if h.CoordinateSystemString != "" {
		fmt.Fprintf(&b, "coordinate system string = {%s}\n", h.CoordinateSystemString)
	}
	if len(h.GeoPoints) > 0 {
		fmt.Fprintf(&b, "geo points = {%s}\n", joinFloats(h.GeoPoints))
	}
	if h.WavelengthUnits != "" {
		fmt.Fprintf(&b, "wavelength units = %s\n", h.WavelengthUnits)
	}
	if len(h.Wavelength) > 0 {
		fmt.Fprintf(&b, "wavelength = {%s}\n", joinFloats(h.Wavelength))
	}
	if len(h.FWHM) > 0 {
		fmt.Fprintf(&b, "fwhm = {%s}\n", joinFloats(h.FWHM))
	}
	if len(h.BandNames) > 0 {
		fmt.Fprintf(&b, "band names = {%s}\n", strings.Join(h.BandNames, ", "))
	}
	for _, f := range h.Extra {
		fmt.Fprintf(&b, "%s = %s\n", f.Key, f.Value)
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return codec.Wrap(format, codec.ErrIOFailure, err, "writing header")
	}
	return nil
}

func joinFloats(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ", ")
}
