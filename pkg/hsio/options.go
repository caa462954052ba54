package hsio

import (
	"hsicube/pkg/codec/envi"
	"hsicube/pkg/codec/mat"
	"hsicube/pkg/codec/raster"
	"hsicube/pkg/codec/tiff"
	"hsicube/pkg/colorsynth"
	"hsicube/pkg/convert"
	"hsicube/pkg/cube"
)

// LoadOptions controls Load and Decode.
type LoadOptions struct {
	// Variable selects a MAT variable. Empty means the only 3-D candidate.
	Variable string
	// Layout is used to check the wavelength count against the channels.
	Layout cube.Layout
	// NoSidecar skips the <name>_wavelengths.txt lookup.
	NoSidecar bool
}

// Result is the outcome of a load. When a MAT file holds several 3-D
// variables and none was requested, Cube is nil and Candidates lists them.
type Result struct {
	Cube       *cube.Cube
	Format     Format
	Candidates []mat.Info
	// ENVI holds the descriptive header fields of an ENVI source so a
	// conversion can pass them on through SaveOptions.ENVIMetadata.
	ENVI *envi.Metadata
}

// NeedsSelection reports a load that must be repeated with a Variable.
func (r *Result) NeedsSelection() bool {
	return r.Cube == nil && len(r.Candidates) > 0
}

// SaveOptions is the fully resolved export request.
type SaveOptions struct {
	// Format overrides the extension of the target path.
	Format Format
	// Layout tells layout-aware writers (ENVI, TIFF, PNG) where the
	// channels are.
	Layout cube.Layout

	// DType converts the cube before writing; nil keeps its type.
	DType       *cube.DType
	ConvertMode convert.Mode

	// WavelengthSidecar writes <name>_wavelengths.txt next to the output.
	WavelengthSidecar bool

	MATVariable string
	MATCompress bool
	// MATWavelengths stores the wavelengths as <variable>_wavelengths.
	MATWavelengths bool

	Interleave        envi.Interleave
	ENVIDataExtension string
	// ENVIMetadata adds acquisition and georeference fields to ENVI
	// headers. Missing default bands are derived from the wavelengths.
	ENVIMetadata *envi.Metadata

	TIFFMode tiff.Mode

	// PNGDepth is used for 2-D cubes; 3-D cubes are written as an RGB
	// preview synthesized with Color.
	PNGDepth raster.Depth
	Color    colorsynth.Params
}

// DefaultSaveOptions keeps the dtype and writes the common defaults.
func DefaultSaveOptions() SaveOptions {
	return SaveOptions{
		ConvertMode:       convert.AutoScale,
		Interleave:        envi.BSQ,
		ENVIDataExtension: ".dat",
		MATWavelengths:    true,
		TIFFMode:          tiff.MultiPage,
		PNGDepth:          raster.Depth8,
		Color:             colorsynth.Params{Mode: colorsynth.Direct},
	}
}

func (o SaveOptions) pngDepth() raster.Depth {
	if o.PNGDepth == 0 {
		return raster.Depth8
	}
	return o.PNGDepth
}

func (o SaveOptions) dataExtension() string {
	switch o.ENVIDataExtension {
	case "":
		return ".dat"
	case ".hdr":
		return ".dat"
	}
	if o.ENVIDataExtension[0] != '.' {
		return "." + o.ENVIDataExtension
	}
	return o.ENVIDataExtension
}
