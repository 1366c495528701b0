package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotDatabase is returned by RemoveFiles for a directory that holds none
// of the marker files.
var ErrNotDatabase = errors.New("kv-store: not a database directory")

// Layout names the files an engine owns inside its directory, as
// filepath.Match patterns. Markers must include at least one file present in
// every database the engine creates.
type Layout struct {
	Markers []string
	Files   []string
}

// With returns a copy of l that also owns and recognises names.
func (l Layout) With(names ...string) Layout {
	return Layout{
		Markers: append(append([]string(nil), l.Markers...), names...),
		Files:   append(append([]string(nil), l.Files...), names...),
	}
}

// RemoveFiles deletes the files of dir matched by l.Files, then dir itself if
// nothing else is left in it. Sub-directories and unmatched files are kept.
// A missing dir is not an error.
func RemoveFiles(dir string, l Layout) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("destroy %q: %w", dir, err)
	}

	if !anyMatch(entries, l.Markers) {
		return fmt.Errorf("destroy %q: %w", dir, ErrNotDatabase)
	}

	kept := 0
	for _, e := range entries {
		if e.IsDir() || !matches(e.Name(), l.Files) {
			kept++
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("destroy %q: %w", dir, err)
		}
	}
	if kept > 0 {
		return nil
	}
	if err := os.Remove(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("destroy %q: %w", dir, err)
	}
	return nil
}

func anyMatch(entries []os.DirEntry, patterns []string) bool {
	for _, e := range entries {
		if !e.IsDir() && matches(e.Name(), patterns) {
			return true
		}
	}
	return false
}

func matches(name string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}
