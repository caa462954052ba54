package models

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJobs(t *testing.T) {
	doc := `
jobs:
  - input: scans/leaf.mat
    output: out/leaf.hdr
    variable: radiance
    layout: HWC
    dtype: uint16
    preview: out/leaf.png
    crop: {x: 10, y: 20, width: 64, height: 32}
  - input: scans/bark.npy
    output: out/bark.tif
`
	list, err := ParseJobs([]byte(doc))
	require.NoError(t, err)
	require.Len(t, list.Jobs, 2)

	first := list.Jobs[0]
	assert.Equal(t, "radiance", first.Variable)
	assert.Equal(t, "HWC", first.Layout)
	require.NotNil(t, first.Crop)
	assert.Equal(t, Region{X: 10, Y: 20, Width: 64, Height: 32}, *first.Crop)
	assert.Nil(t, list.Jobs[1].Crop)
}

func TestParseJobsErrors(t *testing.T) {
	_, err := ParseJobs([]byte("jobs: []\n"))
	assert.True(t, errors.Is(err, ErrNoJobs))

	_, err = ParseJobs([]byte("jobs:\n  - output: a.npy\n"))
	assert.ErrorContains(t, err, "job 1")

	_, err = ParseJobs([]byte("jobs:\n  - input: a.mat\n"))
	assert.ErrorContains(t, err, "no output")

	_, err = ParseJobs([]byte("jobs:\n  - input: a.mat\n    output: b.npy\n    crop: {width: 0, height: 3}\n"))
	assert.ErrorContains(t, err, "empty crop")

	_, err = ParseJobs([]byte("jobs: {"))
	assert.Error(t, err)
}

func TestLoadJobs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("jobs:\n  - input: a.mat\n    output: a.npy\n"), 0644))
	list, err := LoadJobs(path)
	require.NoError(t, err)
	assert.Equal(t, "a.npy", list.Jobs[0].Output)

	_, err = LoadJobs(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
