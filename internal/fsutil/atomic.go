// Package fsutil provides the atomic file writes used by every save.
package fsutil

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Target is one file of an atomic write.
type Target struct {
	Path  string
	Write func(w io.Writer) error
}

// AtomicWrite writes path through a temporary file in the same directory and
// renames it into place. On any failure the temporary file is removed and
// an existing file at path is left untouched.
func AtomicWrite(path string, write func(w io.Writer) error) error {
	return AtomicWriteAll([]Target{{Path: path, Write: write}})
}

// AtomicWriteAll writes every target to a temporary file first and renames
// them only when all writes have succeeded. If a rename fails, the targets
// already renamed are rolled back: new files are removed and replaced
// regular files get their previous content back.
func AtomicWriteAll(targets []Target) error {
	temps := make([]string, 0, len(targets))
	cleanup := func() {
		for _, t := range temps {
			_ = os.Remove(t)
		}
	}

	for _, t := range targets {
		tmp, err := writeTemp(t)
		if tmp != "" {
			temps = append(temps, tmp)
		}
		if err != nil {
			cleanup()
			return err
		}
	}

	type commit struct{ path, backup string }
	var done []commit
	rollback := func() {
		for i := len(done) - 1; i >= 0; i-- {
			if d := done[i]; d.backup != "" {
				_ = os.Rename(d.backup, d.path)
			} else {
				_ = os.Remove(d.path)
			}
		}
	}
	for i, t := range targets {
		backup, err := moveAside(t.Path, temps[i])
		if err == nil {
			if err = os.Rename(temps[i], t.Path); err != nil && backup != "" {
				_ = os.Rename(backup, t.Path)
			}
		}
		if err != nil {
			temps = temps[i:]
			cleanup()
			rollback()
			return fmt.Errorf("rename %s: %w", t.Path, err)
		}
		done = append(done, commit{path: t.Path, backup: backup})
	}
	for _, d := range done {
		if d.backup != "" {
			_ = os.Remove(d.backup)
		}
	}
	return nil
}

// moveAside renames an existing regular file at path next to tmp and
// returns its new name. Anything else at path is left for the rename to
// report.
func moveAside(path, tmp string) (string, error) {
	fi, err := os.Lstat(path)
	if err != nil || !fi.Mode().IsRegular() {
		return "", nil
	}
	backup := tmp + ".bak"
	if err := os.Rename(path, backup); err != nil {
		return "", err
	}
	return backup, nil
}

func writeTemp(t Target) (string, error) {
	dir := filepath.Dir(t.Path)
	f, err := os.CreateTemp(dir, "."+filepath.Base(t.Path)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp for %s: %w", t.Path, err)
	}
	name := f.Name()

	bw := bufio.NewWriterSize(f, 1<<20)
	werr := t.Write(bw)
	if werr == nil {
		werr = bw.Flush()
	}
	if werr == nil {
		werr = f.Sync()
	}
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		return name, fmt.Errorf("write %s: %w", t.Path, err)
	}
	if err := os.Chmod(name, 0o644); err != nil {
		return name, fmt.Errorf("chmod %s: %w", t.Path, err)
	}
	return name, nil
}
