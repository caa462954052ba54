// Package tiff reads and writes hyperspectral cubes as baseline TIFF.
//
// Two layouts are written: one grayscale page per channel, or a single page
// whose pixels carry every channel as a sample. Uncompressed strips are read
// directly, in either byte order and planar configuration; a compressed
// single-page file is handed to golang.org/x/image/tiff.
package tiff

const format = "tiff"

const (
	leHeader = "II\x2A\x00"
	beHeader = "MM\x00\x2A"

	ifdLen = 12
)

// Data types.
const (
	dtByte      = 1
	dtASCII     = 2
	dtShort     = 3
	dtLong      = 4
	dtRational  = 5
	dtSByte     = 6
	dtUndefined = 7
	dtSShort    = 8
	dtSLong     = 9
	dtSRational = 10
	dtFloat     = 11
	dtDouble    = 12
)

var lengths = [...]int{0, 1, 1, 2, 4, 8, 1, 1, 2, 4, 8, 4, 8}

// Tags.
const (
	tImageWidth                = 256
	tImageLength               = 257
	tBitsPerSample             = 258
	tCompression               = 259
	tPhotometricInterpretation = 262
	tImageDescription          = 270
	tStripOffsets              = 273
	tSamplesPerPixel           = 277
	tRowsPerStrip              = 278
	tStripByteCounts           = 279
	tPlanarConfiguration       = 284
	tPageNumber                = 297
	tTileWidth                 = 322
	tTileOffsets               = 324
	tExtraSamples              = 338
	tSampleFormat              = 339
)

const (
	cNone = 1

	pBlackIsZero = 1

	planarContig   = 1
	planarSeparate = 2

	sfUint  = 1
	sfInt   = 2
	sfFloat = 3
)
