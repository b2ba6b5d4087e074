// Package fsutil provides file system utility functions.
package fsutil

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FindFiles recursively lists every regular file under rootPath, returned in
// sorted order so callers iterate deterministically. A missing root is not an
// error; it simply yields no files.
func FindFiles(rootPath string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == rootPath {
				return filepath.SkipAll
			}
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// FirstLineContains reports whether the first line of the file at path
// contains the given marker string. Used to recognize previously generated
// files without reading whole file contents.
func FirstLineContains(path, marker string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	// Marker lines are short comments; cap the scan so a binary first "line"
	// cannot blow the buffer. A first line too long for the cap cannot be a
	// marker line, so the file counts as unmarked.
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil && !errors.Is(err, bufio.ErrTooLong) {
			return false, err
		}
		return false, nil
	}
	return strings.Contains(scanner.Text(), marker), nil
}
