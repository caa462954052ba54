package tiff

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"strings"

	"hsicube/pkg/codec"
	"hsicube/pkg/cube"
)

// Mode selects how channels are stored.
type Mode int

const (
	// MultiPage writes one grayscale page per channel.
	MultiPage Mode = iota
	// Interleaved writes one page with every channel as a sample.
	Interleaved
)

func (m Mode) String() string {
	if m == Interleaved {
		return "interleaved"
	}
	return "multipage"
}

// ParseMode parses "multipage" or "interleaved".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "multipage", "multi-page", "pages":
		return MultiPage, nil
	case "interleaved", "contiguous":
		return Interleaved, nil
	}
	return MultiPage, codec.Errorf(format, codec.ErrUnsupportedInterleave, "tiff mode %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Options controls Encode.
type Options struct {
	Mode Mode
}

// sampleFormatOf returns BitsPerSample and SampleFormat for dtype.
func sampleFormatOf(dtype cube.DType) (bits, sf uint16, err error) {
	switch dtype {
	case cube.Uint8:
		return 8, sfUint, nil
	case cube.Int8:
		return 8, sfInt, nil
	case cube.Uint16:
		return 16, sfUint, nil
	case cube.Int16:
		return 16, sfInt, nil
	case cube.Int32:
		return 32, sfInt, nil
	case cube.Float32:
		return 32, sfFloat, nil
	case cube.Float64:
		return 64, sfFloat, nil
	}
	return 0, 0, codec.Errorf(format, codec.ErrUnsupportedDType, "%s", dtype)
}

// entry is one IFD field; data is already little-endian.
type entry struct {
	tag, typ uint16
	count    uint32
	data     []byte
}

func shorts(tag uint16, vals ...uint16) entry {
	var b []byte
	for _, v := range vals {
		b = binary.LittleEndian.AppendUint16(b, v)
	}
	return entry{tag: tag, typ: dtShort, count: uint32(len(vals)), data: b}
}

func long(tag uint16, v uint32) entry {
	return entry{tag: tag, typ: dtLong, count: 1, data: binary.LittleEndian.AppendUint32(nil, v)}
}

func repeat(v uint16, n int) []uint16 {
	out := make([]uint16, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// ifdSize is the encoded size of an IFD and its out-of-line values.
func ifdSize(es []entry) int {
	n := 2 + len(es)*ifdLen + 4
	for _, e := range es {
		if len(e.data) > 4 {
			n += len(e.data) + len(e.data)%2
		}
	}
	return n
}

// putIFD appends an IFD at the end of buf. Entries must be sorted by tag.
func putIFD(buf *bytes.Buffer, es []entry, next uint32) {
	le := binary.LittleEndian
	extra := buf.Len() + 2 + len(es)*ifdLen + 4
	b := le.AppendUint16(nil, uint16(len(es)))
	var overflow []byte
	for _, e := range es {
		b = le.AppendUint16(b, e.tag)
		b = le.AppendUint16(b, e.typ)
		b = le.AppendUint32(b, e.count)
		if len(e.data) <= 4 {
			var v [4]byte
			copy(v[:], e.data)
			b = append(b, v[:]...)
			continue
		}
		b = le.AppendUint32(b, uint32(extra+len(overflow)))
		overflow = append(overflow, e.data...)
		if len(e.data)%2 == 1 {
			overflow = append(overflow, 0)
		}
	}
	b = le.AppendUint32(b, next)
	buf.Write(b)
	buf.Write(overflow)
}

// Encode writes c as a little-endian TIFF. A 2-D cube is a single
// grayscale page whatever the mode.
func Encode(w io.Writer, c *cube.Cube, layout cube.Layout, opts Options) error {
	if err := c.Validate(); err != nil {
		return err
	}
	bits, sf, err := sampleFormatOf(c.DType)
	if err != nil {
		return err
	}
	size := c.DType.Size()

	var height, width, channels int
	var at func(y, x, ch int) int
	if c.Rank() == 2 {
		height, width, channels = c.Dims[0], c.Dims[1], 1
		st := c.Strides()
		at = func(y, x, _ int) int { return y*st[0] + x*st[1] }
	} else {
		v, err := c.View(layout)
		if err != nil {
			return err
		}
		height, width, channels = v.Height, v.Width, v.Channels
		at = v.Index
	}

	type pageData struct {
		spp  int
		data []byte
	}
	var pages []pageData
	put := func(dst []byte, y, x, ch int) []byte {
		i := at(y, x, ch) * size
		return append(dst, c.Data[i:i+size]...)
	}
	if opts.Mode == Interleaved || channels == 1 {
		data := make([]byte, 0, len(c.Data))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				for ch := 0; ch < channels; ch++ {
					data = put(data, y, x, ch)
				}
			}
		}
		pages = append(pages, pageData{spp: channels, data: data})
	} else {
		for ch := 0; ch < channels; ch++ {
			data := make([]byte, 0, height*width*size)
			for y := 0; y < height; y++ {
				for x := 0; x < width; x++ {
					data = put(data, y, x, ch)
				}
			}
			pages = append(pages, pageData{spp: 1, data: data})
		}
	}

	var buf bytes.Buffer
	buf.WriteString(leHeader)
	buf.Write(make([]byte, 4))

	offsets := make([]int, len(pages))
	for i, p := range pages {
		offsets[i] = buf.Len()
		buf.Write(p.data)
		if buf.Len()%2 == 1 {
			buf.WriteByte(0)
		}
	}

	ifds := make([][]entry, len(pages))
	for i, p := range pages {
		es := []entry{
			long(tImageWidth, uint32(width)),
			long(tImageLength, uint32(height)),
			shorts(tBitsPerSample, repeat(bits, p.spp)...),
			shorts(tCompression, cNone),
			shorts(tPhotometricInterpretation, pBlackIsZero),
			long(tStripOffsets, uint32(offsets[i])),
			shorts(tSamplesPerPixel, uint16(p.spp)),
			long(tRowsPerStrip, uint32(height)),
			long(tStripByteCounts, uint32(len(p.data))),
			shorts(tPlanarConfiguration, planarContig),
		}
		if len(pages) > 1 {
			es = append(es, shorts(tPageNumber, uint16(i), uint16(len(pages))))
		}
		if p.spp > 1 {
			es = append(es, shorts(tExtraSamples, repeat(0, p.spp-1)...))
		}
		es = append(es, shorts(tSampleFormat, repeat(sf, p.spp)...))
		ifds[i] = es
	}

	next := buf.Len()
	binary.LittleEndian.PutUint32(buf.Bytes()[4:], uint32(next))
	for i, es := range ifds {
		next += ifdSize(es)
		link := uint32(0)
		if i < len(ifds)-1 {
			link = uint32(next)
		}
		putIFD(&buf, es, link)
	}
	if int64(buf.Len()) > math.MaxUint32 {
		return codec.Errorf(format, codec.ErrUnsupportedDType, "%d bytes exceed the classic TIFF limit", buf.Len())
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return codec.Wrap(format, codec.ErrIOFailure, err, "writing %d bytes", buf.Len())
	}
	return nil
}
