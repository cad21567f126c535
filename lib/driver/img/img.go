// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package img provides a file-backed storage mux driver, registered
// as the "img" variant. The media is a plain disk image on the
// agent's filesystem; attachment to host or target is bookkeeping
// only. Intended for development benches and CI, where real mux
// hardware is absent.
package img

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/bench/lib/driver"
)

func init() {
	driver.RegisterSDMux("img", func() driver.SDMux { return &Mux{} })
}

// Mux is a storage mux backed by a disk image file. An exclusive
// flock held for the duration of a write session keeps concurrent
// bench daemons (or stray tooling) off the image.
type Mux struct {
	path     string
	filesDir string
	position string
	file     *os.File
}

var _ driver.SDMux = (*Mux)(nil)

func (m *Mux) Configure(options driver.Options) error {
	path, ok := options["path"]
	if !ok {
		return fmt.Errorf("img: missing required option %q", "path")
	}
	m.path = path
	m.filesDir = path + ".files"
	if dir, ok := options["files"]; ok {
		m.filesDir = dir
	}
	return nil
}

func (m *Mux) Probe() error {
	dir := filepath.Dir(m.path)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("img: image directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("img: %s is not a directory", dir)
	}
	return nil
}

// Open starts a write session: the image is opened, truncated, and
// locked against other writers.
func (m *Mux) Open() error {
	if m.file != nil {
		return nil
	}
	file, err := os.OpenFile(m.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("img: opening image: %w", err)
	}
	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		return fmt.Errorf("img: locking image %s: %w", m.path, err)
	}
	m.file = file
	return nil
}

// Close ends the write session, flushing the image and releasing the
// lock.
func (m *Mux) Close() error {
	if m.file == nil {
		return nil
	}
	file := m.file
	m.file = nil
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("img: syncing image: %w", err)
	}
	unix.Flock(int(file.Fd()), unix.LOCK_UN)
	if err := file.Close(); err != nil {
		return fmt.Errorf("img: closing image: %w", err)
	}
	return nil
}

// Mount is bookkeeping only: a plain image file has nothing to mount,
// its sidecar files directory is always reachable.
func (m *Mux) Mount(partition string) error {
	return os.MkdirAll(m.filesDir, 0o755)
}

func (m *Mux) Write(data []byte) error {
	if m.file == nil {
		return fmt.Errorf("img: image not opened for writing")
	}
	if _, err := m.file.Write(data); err != nil {
		return fmt.Errorf("img: writing image: %w", err)
	}
	return nil
}

// Update writes data at offset within a file in the sidecar files
// directory. Destinations must stay inside that directory.
func (m *Mux) Update(destination string, offset int64, data []byte) (int, error) {
	cleaned := filepath.Clean(destination)
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return 0, fmt.Errorf("img: destination %q escapes the files directory", destination)
	}
	path := filepath.Join(m.filesDir, cleaned)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("img: creating destination directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return 0, fmt.Errorf("img: opening destination: %w", err)
	}
	defer file.Close()
	n, err := file.WriteAt(data, offset)
	if err != nil {
		return n, fmt.Errorf("img: writing destination: %w", err)
	}
	return n, nil
}

func (m *Mux) ToHost() error {
	m.position = driver.SDOnHost
	return nil
}

func (m *Mux) ToTarget() error {
	m.position = driver.SDOnTarget
	return nil
}

func (m *Mux) Status() (string, error) {
	if m.position == "" {
		return driver.SDOnHost, nil
	}
	return m.position, nil
}
