package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hsicube/internal/logging"
	"hsicube/pkg/codec/envi"
	"hsicube/pkg/codec/raster"
	"hsicube/pkg/codec/tiff"
	"hsicube/pkg/colorsynth"
	"hsicube/pkg/convert"
	"hsicube/pkg/cube"
	"hsicube/pkg/hsio"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	if cfg.Processing.NumCores < 1 {
		t.Errorf("Expected at least one core, got %d", cfg.Processing.NumCores)
	}

	opts, err := cfg.SaveOptions()
	require.NoError(t, err)
	assert.Equal(t, hsio.Unknown, opts.Format)
	assert.Nil(t, opts.DType)
	assert.Equal(t, convert.AutoScale, opts.ConvertMode)
	assert.Equal(t, envi.BSQ, opts.Interleave)
	assert.Equal(t, tiff.MultiPage, opts.TIFFMode)
	assert.Equal(t, raster.Depth8, opts.PNGDepth)
	assert.Equal(t, colorsynth.Direct, opts.Color.Mode)

	mo, err := cfg.MaskOptions()
	require.NoError(t, err)
	assert.Equal(t, hsio.MaskOptions{Format: hsio.PNG, Metadata: true, VariableName: "mask"}, mo)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("missing file should give defaults (-want +got):\n%s", diff)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hsicube.yaml")
	doc := `
processing:
  numCores: 3
load:
  defaultLayout: chw
  matVariable: radiance
export:
  format: envi
  dtype: uint16
  convertMode: clamp
  interleave: bip
  tiffMode: interleaved
  pngBitDepth: 16
  wavelengthSidecar: true
color:
  mode: range
  ranges:
    red: {start: 20, end: 29}
    green: {start: 10, end: 19}
    blue: {start: 0, end: 9}
mask:
  format: mat
  keyPrefix: seg_
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workers())

	lo, err := cfg.LoadOptions()
	require.NoError(t, err)
	assert.Equal(t, hsio.LoadOptions{Variable: "radiance", Layout: cube.CHW}, lo)

	opts, err := cfg.SaveOptions()
	require.NoError(t, err)
	assert.Equal(t, hsio.ENVI, opts.Format)
	require.NotNil(t, opts.DType)
	assert.Equal(t, cube.Uint16, *opts.DType)
	assert.Equal(t, convert.Clamp, opts.ConvertMode)
	assert.Equal(t, envi.BIP, opts.Interleave)
	assert.Equal(t, tiff.Interleaved, opts.TIFFMode)
	assert.Equal(t, raster.Depth16, opts.PNGDepth)
	assert.True(t, opts.WavelengthSidecar)
	assert.Equal(t, cube.CHW, opts.Layout)
	assert.Equal(t, colorsynth.Range, opts.Color.Mode)
	assert.Equal(t, colorsynth.ChannelRange{Start: 20, End: 29}, opts.Color.Ranges.Red)

	mo, err := cfg.MaskOptions()
	require.NoError(t, err)
	assert.Equal(t, hsio.MAT, mo.Format)
	assert.Equal(t, "seg_", mo.KeyPrefix)
	assert.True(t, mo.Metadata, "unset keys keep their defaults")
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"layout":      "load:\n  defaultLayout: XYZ\n",
		"dtype":       "export:\n  dtype: complex64\n",
		"interleave":  "export:\n  interleave: bsx\n",
		"depth":       "export:\n  pngBitDepth: 12\n",
		"color mode":  "color:\n  mode: hue\n",
		"mask format": "mask:\n  format: tiff\n",
		"cores":       "processing:\n  numCores: -2\n",
		"log level":   "output:\n  logLevel: chatty\n",
		"yaml":        "processing: [\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			require.NoError(t, os.WriteFile(path, []byte(doc), 0644))
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestLogLevelAndMATWavelengths(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.Export.MATWavelengths)
	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, logging.Info, level)

	cfg.Output.LogLevel = "debug"
	level, err = cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, logging.Debug, level)

	// without verbose only warnings get through
	cfg.Output.Verbose = false
	level, err = cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, logging.Warn, level)

	cfg.Output.LogLevel = "quiet"
	level, err = cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, logging.Quiet, level)

	cfg.Export.MATWavelengths = false
	opts, err := cfg.SaveOptions()
	require.NoError(t, err)
	assert.False(t, opts.MATWavelengths)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "hsicube.yaml")
	cfg := DefaultConfig()
	cfg.Export.DType = "float32"
	cfg.Color.Mapping = colorsynth.RGBChannelMapping{Red: 5, Green: 3, Blue: 1}
	require.NoError(t, SaveConfig(cfg, path))

	got, err := LoadConfig(path)
	require.NoError(t, err)
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, CreateDefaultConfigFile(path))
	got, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "", got.Export.DType)
}
