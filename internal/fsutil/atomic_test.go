package fsutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeString(s string) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	}
}

func entries(t *testing.T, dir string) []string {
	t.Helper()
	des, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, de := range des {
		names = append(names, de.Name())
	}
	return names
}

func TestAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.npy")

	require.NoError(t, AtomicWrite(path, writeString("first")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	boom := errors.New("boom")
	err = AtomicWrite(path, func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
	assert.Equal(t, []string{"out.npy"}, entries(t, dir))
}

func TestAtomicWriteAllIsAllOrNothing(t *testing.T) {
	dir := t.TempDir()
	hdr := filepath.Join(dir, "cube.hdr")
	dat := filepath.Join(dir, "cube.dat")

	boom := errors.New("disk full")
	err := AtomicWriteAll([]Target{
		{Path: hdr, Write: writeString("ENVI\n")},
		{Path: dat, Write: func(io.Writer) error { return boom }},
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, entries(t, dir))

	require.NoError(t, AtomicWriteAll([]Target{
		{Path: hdr, Write: writeString("ENVI\n")},
		{Path: dat, Write: writeString("\x00\x01")},
	}))
	assert.ElementsMatch(t, []string{"cube.hdr", "cube.dat"}, entries(t, dir))
}

func TestAtomicWriteAllRollsBackRenames(t *testing.T) {
	dir := t.TempDir()
	cube := filepath.Join(dir, "cube.npy")
	old := filepath.Join(dir, "old.npy")
	require.NoError(t, os.WriteFile(old, []byte("previous"), 0o644))
	// a non-empty directory cannot be replaced by a file
	blocked := filepath.Join(dir, "cube_wavelengths.txt")
	require.NoError(t, os.MkdirAll(filepath.Join(blocked, "keep"), 0o755))

	err := AtomicWriteAll([]Target{
		{Path: cube, Write: writeString("new cube")},
		{Path: old, Write: writeString("replaced")},
		{Path: blocked, Write: writeString("400\n")},
	})
	require.Error(t, err)

	_, err = os.Stat(cube)
	assert.True(t, errors.Is(err, os.ErrNotExist), "new file must be removed")
	data, err := os.ReadFile(old)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))
	assert.ElementsMatch(t, []string{"old.npy", "cube_wavelengths.txt"}, entries(t, dir))
	assert.DirExists(t, filepath.Join(blocked, "keep"))
}

func TestAtomicWriteMissingDir(t *testing.T) {
	err := AtomicWrite(filepath.Join(t.TempDir(), "nope", "x.png"), writeString("x"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
