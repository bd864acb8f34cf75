// SPDX-License-Identifier: MPL-2.0

// Package flock provides lazily created directory trees and cross-process
// advisory file locks. Directories are materialized on first use only, so
// handles to not-yet-existing paths (the target dir before the first build)
// are cheap to pass around. The kernel releases every flock automatically
// when its fd is closed, including on process crash, so orphaned zero-byte
// lock files are harmless.
package flock

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"scarb/internal/fsx"
)

// cachedirTag is written into top-level output directories so that backup
// tools following the Cache Directory Tagging Specification skip them.
const cachedirTag = "CACHEDIR.TAG"

const cachedirTagContent = "Signature: 8a477f597d28d172789f06886806bc55\n" +
	"# This file is a cache directory tag created by scarb.\n" +
	"# For information about cache directory tags, see https://bford.info/cachedir/\n"

// Filesystem is a handle to a directory that is created on first use.
// Child handles form a tree; materializing a child materializes all its
// ancestors first. Creation is idempotent per process.
type Filesystem struct {
	path   string
	parent *Filesystem
	// outputDir marks top-level output directories, which additionally
	// receive a CACHEDIR.TAG on creation.
	outputDir bool

	createOnce sync.Once
	createErr  error
}

// RootFilesystem is a Filesystem without a parent.
type RootFilesystem = Filesystem

// NewFilesystem returns a handle rooted at path. The directory is not
// created.
func NewFilesystem(path string) *Filesystem {
	return &Filesystem{path: path}
}

// NewOutputFilesystem returns a handle for a top-level output directory
// (target dir, cache dir). On creation it is tagged for backup exclusion.
func NewOutputFilesystem(path string) *Filesystem {
	return &Filesystem{path: path, outputDir: true}
}

// Child returns a handle to a subdirectory. The directory is NOT created.
func (f *Filesystem) Child(path string) *Filesystem {
	return &Filesystem{path: filepath.Join(f.path, path), parent: f}
}

// Path returns the root path without ensuring it exists.
func (f *Filesystem) Path() string {
	return f.path
}

// PathExistent returns the root path, creating the directory tree from the
// topmost ancestor down on first call.
func (f *Filesystem) PathExistent() (string, error) {
	if err := f.ensureCreated(); err != nil {
		return "", err
	}
	return f.path, nil
}

func (f *Filesystem) ensureCreated() error {
	if f.parent != nil {
		if err := f.parent.ensureCreated(); err != nil {
			return err
		}
	}
	f.createOnce.Do(func() {
		f.createErr = f.create()
	})
	return f.createErr
}

func (f *Filesystem) create() error {
	if err := fsx.CreateDirAll(f.path); err != nil {
		return err
	}
	if f.outputDir {
		tag := filepath.Join(f.path, cachedirTag)
		if !fsx.Exists(tag) {
			if err := os.WriteFile(tag, []byte(cachedirTagContent), 0o644); err != nil {
				return fmt.Errorf("failed to create directory tag %s: %w", tag, err)
			}
		}
	}
	return nil
}

// RemoveAll deletes the directory tree rooted at this handle. The handle
// stays usable; the next PathExistent call recreates the tree.
func (f *Filesystem) RemoveAll() error {
	err := fsx.RemoveDirAll(f.path)
	// Reset creation state so a later use recreates the directory.
	f.createOnce = sync.Once{}
	f.createErr = nil
	return err
}

func (f *Filesystem) String() string { return f.path }
