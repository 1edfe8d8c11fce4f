// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bmpfs

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/blockimage/bmpfs/lib/clock"
)

// Options configures a Filesystem. All fields are optional; Open
// fills in defaults matching the teacher's convention of defaulting a
// nil logger to a quiet handler rather than requiring every caller to
// construct one.
type Options struct {
	// Clock sources created/modified/accessed timestamps. Defaults to
	// clock.Real().
	Clock clock.Clock

	// Logger receives diagnostic messages. Defaults to a handler that
	// only prints errors to stderr.
	Logger *slog.Logger

	// Width and Height size a freshly created backing image (ignored
	// if the image at imagePath already exists). Both default to
	// DefaultWidth/DefaultHeight; tests use a much smaller image to
	// exercise data-region boundaries without allocating a multi-
	// megabyte file per test.
	Width, Height uint32
}

// Filesystem is the mounted state of a bmpfs backing image: the open
// file handle, the computed layout, and the in-memory bitmap +
// metadata table mirror. It implements spec.md §4.6's VFS operation
// semantics directly — a FUSE binding (see the fuse subpackage) is a
// thin adapter from go-fuse's Inode callbacks onto these methods.
//
// Filesystem is safe for concurrent use: every operation method takes
// an internal mutex for its entire duration. Per spec.md §5, this is
// the "single coarse lock" option — equivalent to requiring the host
// bridge to serialize callbacks, but enforced regardless of how the
// bridge is configured.
type Filesystem struct {
	mu sync.Mutex

	file      *os.File
	imagePath string
	layout    Layout
	region    *metadataRegion

	clock  clock.Clock
	logger *slog.Logger
}

// Open mounts a bmpfs filesystem backed by the image at imagePath. If
// the image does not exist, a fresh one is created at DefaultWidth x
// DefaultHeight (spec.md §4.6 init). The backing file is opened
// read-write; headers are validated, the layout is computed, and the
// metadata region is read into memory. Any failure aborts the mount.
func Open(imagePath string, opts Options) (*Filesystem, error) {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}
	if opts.Width == 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height == 0 {
		opts.Height = DefaultHeight
	}

	if _, err := os.Stat(imagePath); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("statting backing image %s: %w", imagePath, err)
		}
		if err := CreateContainer(imagePath, opts.Width, opts.Height); err != nil {
			return nil, fmt.Errorf("creating backing image %s: %w", imagePath, err)
		}
		opts.Logger.Info("created backing image", "path", imagePath, "width", opts.Width, "height", opts.Height)
	}

	file, err := os.OpenFile(imagePath, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening backing image %s: %w", imagePath, err)
	}

	success := false
	defer func() {
		if !success {
			file.Close()
		}
	}()

	_, infoHeader, err := ReadHeaders(file)
	if err != nil {
		return nil, fmt.Errorf("reading backing image headers: %w", err)
	}

	layout := ComputeLayout(uint32(infoHeader.Width), uint32(infoHeader.Height))

	region, err := readMetadata(file, layout)
	if err != nil {
		return nil, fmt.Errorf("reading metadata region: %w", err)
	}

	success = true
	return &Filesystem{
		file:      file,
		imagePath: imagePath,
		layout:    layout,
		region:    region,
		clock:     opts.Clock,
		logger:    opts.Logger,
	}, nil
}

// Destroy persists the metadata region one final time (best-effort —
// a failure is logged but does not prevent the backing file from
// closing) and releases the backing file handle, per spec.md §4.6.
func (f *Filesystem) Destroy() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := writeMetadata(f.file, f.layout, f.region); err != nil {
		f.logger.Error("final metadata flush failed", "path", f.imagePath, "error", err)
	}

	if err := f.file.Close(); err != nil {
		return fmt.Errorf("closing backing image %s: %w", f.imagePath, err)
	}
	return nil
}

// Layout returns the filesystem's computed geometry.
func (f *Filesystem) Layout() Layout { return f.layout }

// persist rewrites the entire metadata region and flushes. Called at
// the end of every mutating operation, so the on-disk region mirrors
// memory between operations, with one exception: Open and Read update
// the accessed timestamp in memory only, and that change reaches disk
// with the next persist. A flush failure is a fatal I/O error surfaced
// to the caller as EIO.
func (f *Filesystem) persist(op, path string) error {
	if err := writeMetadata(f.file, f.layout, f.region); err != nil {
		f.logger.Error("metadata persist failed", "op", op, "path", path, "error", err)
		return wrapErrno(op, path, syscall.EIO, err)
	}
	return nil
}

// splitPath validates path per spec.md §4.6's path model and returns
// the bare name (without the leading slash) plus whether path is the
// synthetic root. A path must start with '/', must be at most 255
// bytes long, and must contain no further '/'.
func splitPath(op, path string) (name string, isRoot bool, err error) {
	if path == "/" {
		return "", true, nil
	}
	if len(path) == 0 || path[0] != '/' {
		return "", false, newErrno(op, path, syscall.EINVAL)
	}
	if len(path) > 255 {
		return "", false, newErrno(op, path, syscall.ENAMETOOLONG)
	}

	name = path[1:]
	if name == "" || strings.IndexByte(name, '/') >= 0 {
		return "", false, newErrno(op, path, syscall.EINVAL)
	}

	return name, false, nil
}

// findSlot returns the index of the slot named name, or -1 if none is
// in use under that name.
func (f *Filesystem) findSlot(name string) int {
	for i := range f.region.records {
		if !f.region.records[i].Free() && f.region.records[i].Name == name {
			return i
		}
	}
	return -1
}

// findFreeSlot returns the lowest-index unused slot, or -1 if the
// table is full.
func (f *Filesystem) findFreeSlot() int {
	for i := range f.region.records {
		if f.region.records[i].Free() {
			return i
		}
	}
	return -1
}

// modeFileType reports the S_IFDIR/S_IFREG type bits implied by
// isDir, enforcing spec.md invariant 2 (is_dir matches the type bits
// in mode) at every point mode is constructed.
func modeFileType(isDir bool) uint32 {
	if isDir {
		return syscall.S_IFDIR
	}
	return syscall.S_IFREG
}
