package envi

import (
	"encoding/binary"
	"io"
	"math"
	"strconv"
	"strings"

	"hsicube/internal/logging"
	"hsicube/pkg/codec"
	"hsicube/pkg/cube"
)

// DataExtensions are the body file extensions tried next to a .hdr, in
// order.
var DataExtensions = []string{".dat", ".raw", ".img", ".bsq", ".bil", ".bip", ""}

// Decode reads body as described by h. The cube is row-major with dims in
// interleave order and a LayoutHint to match.
func Decode(h *Header, body []byte) (*cube.Cube, error) {
	dtype, widened, err := h.DType()
	if err != nil {
		return nil, err
	}
	if h.Samples <= 0 || h.Lines <= 0 || h.Bands <= 0 {
		return nil, codec.Errorf(format, codec.ErrMalformedHeader,
			"size %dx%dx%d", h.Samples, h.Lines, h.Bands)
	}
	if h.HeaderOffset < 0 {
		return nil, codec.Errorf(format, codec.ErrMalformedHeader, "header offset %d", h.HeaderOffset)
	}

	dims := h.Dims()
	n, err := cube.ElementCount(dims)
	if err != nil {
		return nil, codec.Wrap(format, codec.ErrMalformedHeader, err, "size %dx%dx%d", h.Samples, h.Lines, h.Bands)
	}
	size := h.ElementSize()
	nbytes, ok := cube.Product(n, size)
	if ok {
		ok = nbytes <= math.MaxInt-h.HeaderOffset
	}
	if !ok {
		return nil, codec.Errorf(format, codec.ErrMalformedHeader,
			"size %dx%dx%d at offset %d overflows", h.Samples, h.Lines, h.Bands, h.HeaderOffset)
	}
	need := h.HeaderOffset + nbytes
	if len(body) < need {
		return nil, codec.ErrorAt(format, codec.ErrTruncatedData, int64(len(body)),
			"body has %d bytes, %d needed for %v %s", len(body), need, dims, h.Interleave)
	}
	raw := body[h.HeaderOffset:need]

	var order binary.ByteOrder = binary.LittleEndian
	if h.ByteOrder == 1 {
		order = binary.BigEndian
	}

	var c *cube.Cube
	if widened {
		logging.Logf("envi: widening uint32 body %v to float64", dims)
		c, err = codec.Widen(dims, cube.RowMajor, dtype, n, func(i int) float64 {
			return codec.Uint32At(raw, i, order)
		})
	} else {
		c, err = cube.FromBytes(dims, dtype, cube.RowMajor, codec.LittleEndianCopy(raw, size, order))
	}
	if err != nil {
		return nil, err
	}
	c.Source = format
	c.LayoutHint = h.Interleave.Layout()
	c.WavelengthUnits = h.WavelengthUnits
	if len(h.Wavelength) == h.Bands {
		c.Wavelengths = append([]float64(nil), h.Wavelength...)
	} else if len(h.Wavelength) > 0 {
		logging.Warnf("envi: ignoring %d wavelengths for %d bands", len(h.Wavelength), h.Bands)
	}
	return c, nil
}

// Metadata is the descriptive part of a header that a conversion carries
// over: display bands, acquisition time and georeference.
type Metadata struct {
	// DefaultBands are the 1-based red, green and blue display bands.
	DefaultBands           []int
	AcquisitionTime        string
	MapInfo                string
	CoordinateSystemString string
	GeoPoints              []float64
}

// Metadata returns a copy of the descriptive fields of h.
func (h *Header) Metadata() *Metadata {
	return &Metadata{
		DefaultBands:           append([]int(nil), h.DefaultBands...),
		AcquisitionTime:        h.AcquisitionTime,
		MapInfo:                h.MapInfo,
		CoordinateSystemString: h.CoordinateSystemString,
		GeoPoints:              append([]float64(nil), h.GeoPoints...),
	}
}

// Shifted returns the metadata of a crop whose top-left pixel is (x, y)
// in the source. The map info reference pixel and the geo point pixel
// coordinates move with the crop. A nil receiver yields nil.
func (m *Metadata) Shifted(x, y int) *Metadata {
	if m == nil {
		return nil
	}
	out := *m
	out.DefaultBands = append([]int(nil), m.DefaultBands...)
	out.GeoPoints = append([]float64(nil), m.GeoPoints...)
	for i := 0; i+3 < len(out.GeoPoints); i += 4 {
		out.GeoPoints[i] -= float64(x)
		out.GeoPoints[i+1] -= float64(y)
	}
	if m.MapInfo != "" {
		parts := strings.Split(m.MapInfo, ",")
		if len(parts) >= 3 {
			px, errX := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
			py, errY := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
			if errX == nil && errY == nil {
				parts[1] = " " + strconv.FormatFloat(px-float64(x), 'f', -1, 64)
				parts[2] = " " + strconv.FormatFloat(py-float64(y), 'f', -1, 64)
				out.MapInfo = strings.Join(parts, ",")
			} else {
				logging.Warnf("envi: dropping unparsable map info %q from crop", m.MapInfo)
				out.MapInfo = ""
			}
		}
	}
	return &out
}

// EncodeOptions controls Encode.
type EncodeOptions struct {
	Interleave  Interleave
	Description string
	// Metadata is copied into the header when set. Default bands outside
	// 1..bands are dropped.
	Metadata *Metadata
}

// HeaderFor describes c, read under layout, as an ENVI file in the given
// interleave.
func HeaderFor(c *cube.Cube, layout cube.Layout, opts EncodeOptions) (*Header, error) {
	code, err := DataTypeCode(c.DType)
	if err != nil {
		return nil, err
	}
	v, err := c.View(layout)
	if err != nil {
		return nil, err
	}
	h := &Header{
		Description:     opts.Description,
		Samples:         v.Width,
		Lines:           v.Height,
		Bands:           v.Channels,
		FileType:        "ENVI Standard",
		DataType:        code,
		Interleave:      opts.Interleave,
		WavelengthUnits: c.WavelengthUnits,
	}
	if h.Description == "" {
		h.Description = "hsicube export"
	}
	if len(c.Wavelengths) == v.Channels {
		h.Wavelength = append([]float64(nil), c.Wavelengths...)
		if h.WavelengthUnits == "" {
			h.WavelengthUnits = "Nanometers"
		}
	}
	if m := opts.Metadata; m != nil {
		h.AcquisitionTime = m.AcquisitionTime
		h.MapInfo = m.MapInfo
		h.CoordinateSystemString = m.CoordinateSystemString
		h.GeoPoints = append([]float64(nil), m.GeoPoints...)
		if validBands(m.DefaultBands, v.Channels) {
			h.DefaultBands = append([]int(nil), m.DefaultBands...)
		} else if len(m.DefaultBands) > 0 {
			logging.Warnf("envi: dropping default bands %v for %d bands", m.DefaultBands, v.Channels)
		}
	}
	return h, nil
}

func validBands(bands []int, n int) bool {
	if len(bands) == 0 {
		return false
	}
	for _, b := range bands {
		if b < 1 || b > n {
			return false
		}
	}
	return true
}

// Encode writes the header to hdrW and the little-endian body to bodyW.
// The cube may be in any layout and memory order.
func Encode(hdrW, bodyW io.Writer, c *cube.Cube, layout cube.Layout, opts EncodeOptions) error {
	switch opts.Interleave {
	case BSQ, BIL, BIP:
	default:
		return codec.Errorf(format, codec.ErrUnsupportedInterleave, "%d", int(opts.Interleave))
	}
	h, err := HeaderFor(c, layout, opts)
	if err != nil {
		return err
	}
	body, err := Body(c, layout, opts.Interleave)
	if err != nil {
		return err
	}
	if err := h.Format(hdrW); err != nil {
		return err
	}
	if _, err := bodyW.Write(body); err != nil {
		return codec.Wrap(format, codec.ErrIOFailure, err, "writing %d body bytes", len(body))
	}
	return nil
}

// Body returns c's elements in interleave order.
func Body(c *cube.Cube, layout cube.Layout, il Interleave) ([]byte, error) {
	v, err := c.View(layout)
	if err != nil {
		return nil, err
	}
	size := c.DType.Size()
	out := make([]byte, 0, len(c.Data))
	put := func(y, x, ch int) {
		i := v.Index(y, x, ch) * size
		out = append(out, c.Data[i:i+size]...)
	}
	switch il {
	case BSQ:
		for ch := 0; ch < v.Channels; ch++ {
			for y := 0; y < v.Height; y++ {
				for x := 0; x < v.Width; x++ {
					put(y, x, ch)
				}
			}
		}
	case BIL:
		for y := 0; y < v.Height; y++ {
			for ch := 0; ch < v.Channels; ch++ {
				for x := 0; x < v.Width; x++ {
					put(y, x, ch)
				}
			}
		}
	case BIP:
		for y := 0; y < v.Height; y++ {
			for x := 0; x < v.Width; x++ {
				for ch := 0; ch < v.Channels; ch++ {
					put(y, x, ch)
				}
			}
		}
	default:
		return nil, codec.Errorf(format, codec.ErrUnsupportedInterleave, "%d", int(il))
	}
	return out, nil
}
