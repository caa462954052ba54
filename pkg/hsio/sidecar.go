package hsio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"hsicube/internal/fsutil"
)

// SidecarPath is <stem>_wavelengths.txt for a cube file.
func SidecarPath(path string) string {
	return Stem(path) + "_wavelengths.txt"
}

// ClassSidecarPath is <stem>_classes.json for a mask file.
func ClassSidecarPath(path string) string {
	return Stem(path) + "_classes.json"
}

// ReadWavelengthSidecar reads one wavelength per line. Blank lines and
// lines starting with '#' are skipped.
func ReadWavelengthSidecar(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseWavelengths(f)
}

func parseWavelengths(r io.Reader) ([]float64, error) {
	var out []float64
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, ","), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, v)
	}
	return out, sc.Err()
}

// WriteWavelengthSidecar writes one wavelength per line, atomically.
func WriteWavelengthSidecar(path string, wavelengths []float64) error {
	return fsutil.AtomicWriteAll([]fsutil.Target{wavelengthTarget(path, wavelengths)})
}

func wavelengthTarget(path string, wavelengths []float64) fsutil.Target {
	return fsutil.Target{Path: path, Write: func(w io.Writer) error {
		for _, v := range wavelengths {
			if _, err := fmt.Fprintln(w, strconv.FormatFloat(v, 'f', -1, 64)); err != nil {
				return err
			}
		}
		return nil
	}}
}
