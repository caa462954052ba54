package tiff

import (
	"bytes"
	"encoding/binary"
	"errors"

	xtiff "golang.org/x/image/tiff"

	"hsicube/internal/logging"
	"hsicube/pkg/codec"
	"hsicube/pkg/cube"
)

// maxPages bounds the IFD chain walk.
const maxPages = 1 << 16

// page is the subset of an IFD this package understands.
type page struct {
	width, height int
	spp           int
	bits          int
	sampleFormat  int
	compression   int
	photometric   int
	planar        int
	rowsPerStrip  int
	offsets       []uint64
	counts        []uint64
	tiled         bool
}

// Decode reads a TIFF file into a cube.
//
// A single page with one sample is a 2-D (H, W) cube. A single page with
// several samples is (H, W, C) when contiguous and (C, H, W) when planar.
// A stack of single-sample pages is (C, H, W), one channel per page.
func Decode(data []byte) (*cube.Cube, error) {
	order, first, err := readHeader(data)
	if err != nil {
		return nil, err
	}
	pages, err := readPages(data, order, first)
	if err != nil {
		return nil, err
	}

	for _, p := range pages {
		if p.needsFallback() {
			if len(pages) > 1 {
				return nil, codec.Errorf(format, codec.ErrUnsupportedCompression,
					"compression %d in a %d-page file", p.compression, len(pages))
			}
			return decodeFallback(data)
		}
	}

	p := pages[0]
	dtype, widened, err := p.dtype()
	if err != nil {
		return nil, err
	}

	var dims []int
	var hint cube.Layout
	switch {
	case len(pages) > 1:
		for i, q := range pages[1:] {
			if q.width != p.width || q.height != p.height || q.spp != 1 || p.spp != 1 ||
				q.bits != p.bits || q.sampleFormat != p.sampleFormat {
				return nil, codec.Errorf(format, codec.ErrMalformedHeader,
					"page %d (%dx%d, %d samples of %d bits) does not match page 0 (%dx%d, %d samples of %d bits)",
					i+1, q.width, q.height, q.spp, q.bits, p.width, p.height, p.spp, p.bits)
			}
		}
		dims, hint = []int{len(pages), p.height, p.width}, cube.CHW
	case p.spp == 1:
		dims = []int{p.height, p.width}
	case p.planar == planarSeparate:
		dims, hint = []int{p.spp, p.height, p.width}, cube.CHW
	default:
		dims, hint = []int{p.height, p.width, p.spp}, cube.HWC
	}

	size := p.bits / 8
	var raw []byte
	// Strips of a valid file never overlap, so the pixel data cannot
	// exceed the file.
	budget := len(data)
	for _, q := range pages {
		b, err := q.readStrips(data, budget)
		if err != nil {
			return nil, err
		}
		budget -= len(b)
		raw = append(raw, b...)
	}

	n := len(raw) / size
	var c *cube.Cube
	if widened {
		logging.Logf("tiff: widening uint32 samples %v to float64", dims)
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
	c.LayoutHint = hint
	return c, nil
}

func readHeader(data []byte) (binary.ByteOrder, int, error) {
	if len(data) < 8 {
		return nil, 0, codec.ErrorAt(format, codec.ErrTruncatedData, int64(len(data)), "file shorter than header")
	}
	var order binary.ByteOrder
	switch string(data[:4]) {
	case leHeader:
		order = binary.LittleEndian
	case beHeader:
		order = binary.BigEndian
	default:
		if string(data[:2]) == "II" || string(data[:2]) == "MM" {
			return nil, 0, codec.ErrorAt(format, codec.ErrMalformedHeader, 2, "unsupported version (BigTIFF?)")
		}
		return nil, 0, codec.ErrorAt(format, codec.ErrMalformedHeader, 0, "bad byte order mark %q", data[:2])
	}
	return order, int(order.Uint32(data[4:8])), nil
}

func readPages(data []byte, order binary.ByteOrder, first int) ([]page, error) {
	var pages []page
	seen := map[int]bool{}
	for off := first; off != 0; {
		if seen[off] || len(pages) >= maxPages {
			return nil, codec.ErrorAt(format, codec.ErrMalformedHeader, int64(off), "IFD chain loops")
		}
		seen[off] = true
		p, next, err := readIFD(codec.NewReader(format, data, order), off)
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
		off = next
	}
	if len(pages) == 0 {
		return nil, codec.Errorf(format, codec.ErrMalformedHeader, "no image directory")
	}
	return pages, nil
}

func readIFD(r *codec.Reader, off int) (page, int, error) {
	p := page{spp: 1, bits: 1, sampleFormat: sfUint, compression: cNone, planar: planarContig}
	if err := r.Seek(off); err != nil {
		return p, 0, err
	}
	n, err := r.Uint16()
	if err != nil {
		return p, 0, err
	}

	seen := map[uint16]bool{}
	for i := 0; i < int(n); i++ {
		entry, err := r.Bytes(ifdLen)
		if err != nil {
			return p, 0, err
		}
		tag := r.Order().Uint16(entry[0:])
		typ := r.Order().Uint16(entry[2:])
		count := int(r.Order().Uint32(entry[4:]))
		if typ == 0 || int(typ) >= len(lengths) {
			continue
		}
		size := lengths[typ] * count
		value := entry[8:12]
		if size > 4 {
			vr := r.At(int(r.Order().Uint32(entry[8:])))
			if value, err = vr.Bytes(size); err != nil {
				return p, 0, err
			}
		}
		seen[tag] = true
		vals := uints(value, typ, count, r.Order())
		if len(vals) == 0 {
			continue
		}
		switch tag {
		case tImageWidth:
			p.width = int(vals[0])
		case tImageLength:
			p.height = int(vals[0])
		case tBitsPerSample:
			p.bits = int(vals[0])
			for _, b := range vals[1:] {
				if int(b) != p.bits {
					return p, 0, codec.ErrorAt(format, codec.ErrUnsupportedDType, int64(off),
						"mixed bits per sample %v", vals)
				}
			}
		case tCompression:
			p.compression = int(vals[0])
		case tPhotometricInterpretation:
			p.photometric = int(vals[0])
		case tStripOffsets:
			p.offsets = vals
		case tSamplesPerPixel:
			p.spp = int(vals[0])
		case tRowsPerStrip:
			p.rowsPerStrip = int(vals[0])
		case tStripByteCounts:
			p.counts = vals
		case tPlanarConfiguration:
			p.planar = int(vals[0])
		case tTileWidth, tTileOffsets:
			p.tiled = true
		case tSampleFormat:
			p.sampleFormat = int(vals[0])
		}
	}
	next, err := r.Uint32()
	if err != nil {
		return p, 0, err
	}
	if p.width <= 0 || p.height <= 0 || p.spp <= 0 {
		return p, 0, codec.ErrorAt(format, codec.ErrMalformedHeader, int64(off),
			"image %dx%d with %d samples", p.width, p.height, p.spp)
	}
	if !p.tiled && !seen[tStripOffsets] {
		return p, 0, codec.ErrorAt(format, codec.ErrMalformedHeader, int64(off), "missing strip offsets")
	}
	if p.rowsPerStrip <= 0 || p.rowsPerStrip > p.height {
		p.rowsPerStrip = p.height
	}
	return p, int(next), nil
}

// uints decodes the integer types; other types yield nil.
func uints(b []byte, typ uint16, count int, order binary.ByteOrder) []uint64 {
	out := make([]uint64, 0, count)
	for i := 0; i < count; i++ {
		switch typ {
		case dtByte, dtUndefined:
			out = append(out, uint64(b[i]))
		case dtSByte:
			out = append(out, uint64(int8(b[i])))
		case dtShort:
			out = append(out, uint64(order.Uint16(b[2*i:])))
		case dtSShort:
			out = append(out, uint64(int16(order.Uint16(b[2*i:]))))
		case dtLong:
			out = append(out, uint64(order.Uint32(b[4*i:])))
		case dtSLong:
			out = append(out, uint64(int32(order.Uint32(b[4*i:]))))
		default:
			return nil
		}
	}
	return out
}

// needsFallback reports pages that only x/image/tiff can decode.
func (p page) needsFallback() bool {
	if p.compression != cNone || p.tiled || p.photometric == 3 {
		return true
	}
	switch p.bits {
	case 8, 16, 32, 64:
		return false
	}
	return true
}

func (p page) dtype() (dtype cube.DType, widened bool, err error) {
	switch {
	case p.bits == 8 && p.sampleFormat == sfUint:
		return cube.Uint8, false, nil
	case p.bits == 8 && p.sampleFormat == sfInt:
		return cube.Int8, false, nil
	case p.bits == 16 && p.sampleFormat == sfUint:
		return cube.Uint16, false, nil
	case p.bits == 16 && p.sampleFormat == sfInt:
		return cube.Int16, false, nil
	case p.bits == 32 && p.sampleFormat == sfInt:
		return cube.Int32, false, nil
	case p.bits == 32 && p.sampleFormat == sfUint:
		return cube.Float64, true, nil
	case p.bits == 32 && p.sampleFormat == sfFloat:
		return cube.Float32, false, nil
	case p.bits == 64 && p.sampleFormat == sfFloat:
		return cube.Float64, false, nil
	}
	return 0, false, codec.Errorf(format, codec.ErrUnsupportedDType,
		"%d-bit samples with sample format %d", p.bits, p.sampleFormat)
}

// readStrips concatenates the strips of an uncompressed page, trimming each
// to the rows it holds. A page needing more than budget bytes is rejected
// before anything is allocated.
func (p page) readStrips(data []byte, budget int) ([]byte, error) {
	size := p.bits / 8
	planes, samples := 1, p.spp
	if p.planar == planarSeparate && p.spp > 1 {
		planes, samples = p.spp, 1
	}
	rowBytes, ok := cube.Product(p.width, samples, size)
	var total int
	if ok {
		total, ok = cube.Product(planes, p.height, rowBytes)
	}
	if !ok {
		return nil, codec.Errorf(format, codec.ErrMalformedHeader,
			"%dx%d image with %d samples of %d bits overflows", p.width, p.height, p.spp, p.bits)
	}
	if total > budget {
		return nil, codec.Errorf(format, codec.ErrTruncatedData,
			"%dx%d image with %d samples of %d bits needs %d bytes, file has %d",
			p.width, p.height, p.spp, p.bits, total, len(data))
	}
	perPlane := (p.height + p.rowsPerStrip - 1) / p.rowsPerStrip
	if len(p.offsets) < perPlane*planes {
		return nil, codec.Errorf(format, codec.ErrMalformedHeader,
			"%d strip offsets, %d expected", len(p.offsets), perPlane*planes)
	}

	out := make([]byte, 0, total)
	for plane := 0; plane < planes; plane++ {
		for s := 0; s < perPlane; s++ {
			rows := min(p.rowsPerStrip, p.height-s*p.rowsPerStrip)
			want := rows * rowBytes
			k := plane*perPlane + s
			if k < len(p.counts) && int(p.counts[k]) < want {
				return nil, codec.Errorf(format, codec.ErrTruncatedData,
					"strip %d holds %d bytes, %d expected", k, p.counts[k], want)
			}
			off := p.offsets[k]
			if off > uint64(len(data)-want) {
				return nil, codec.ErrorAt(format, codec.ErrTruncatedData, int64(off),
					"strip %d needs %d bytes", k, want)
			}
			out = append(out, data[off:off+uint64(want)]...)
		}
	}
	return out, nil
}

func decodeFallback(data []byte) (*cube.Cube, error) {
	img, err := xtiff.Decode(bytes.NewReader(data))
	if err != nil {
		var unsupported xtiff.UnsupportedError
		if errors.As(err, &unsupported) {
			return nil, codec.Wrap(format, codec.ErrUnsupportedCompression, err, "decoding")
		}
		return nil, codec.Wrap(format, codec.ErrMalformedHeader, err, "decoding")
	}
	c, err := codec.FromImage(img)
	if err != nil {
		return nil, err
	}
	c.Source = format
	return c, nil
}
