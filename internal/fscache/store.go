// Cubeflow - Lazy Chunked Execution of Spatiotemporal Data Cubes
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubeflow

package fscache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/tomtom215/cubeflow/internal/chunk"
)

// tempPrefix marks files that are still being written.
const tempPrefix = ".tmp-"

// store reads and writes chunk files in one worker directory.
type store struct {
	dir string
}

func (s store) path(id chunk.ID) string {
	return filepath.Join(s.dir, strconv.FormatUint(uint64(id), 10))
}

// read decodes the file of id. A missing file returns fs.ErrNotExist.
func (s store) read(id chunk.ID) (*chunk.Buffer, int64, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return nil, 0, err
	}
	buf, err := chunk.Unmarshal(data)
	if err != nil {
		return nil, 0, err
	}
	return buf, int64(len(data)), nil
}

// write stores data as the file of id. Readers never observe a partial file.
func (s store) write(id chunk.ID, data []byte) error {
	f, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path(id)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func (s store) remove(id chunk.ID) error {
	err := os.Remove(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (s store) exists(id chunk.ID) bool {
	_, err := os.Stat(s.path(id))
	return err == nil
}

// scan lists chunk files in the directory and removes leftover temp files.
func (s store) scan() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, de := range dirEntries {
		name := de.Name()
		if strings.HasPrefix(name, tempPrefix) {
			_ = os.Remove(filepath.Join(s.dir, name))
			continue
		}
		if de.IsDir() {
			continue
		}
		n, err := strconv.ParseUint(name, 10, 32)
		if err != nil {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		out = append(out, Entry{ID: chunk.ID(n), Size: info.Size(), Accessed: info.ModTime()})
	}
	return out, nil
}

func sortByAccess(entries []Entry) {
	slices.SortFunc(entries, func(a, b Entry) int { return a.Accessed.Compare(b.Accessed) })
}
