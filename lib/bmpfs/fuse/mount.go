// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fuse adapts lib/bmpfs.Filesystem onto go-fuse's Inode-tree
// API, so a bmpfs backing image can be mounted as a real kernel
// filesystem. It is a thin binding: every method here does argument
// translation and error-type conversion, then calls straight into the
// Filesystem methods that hold the actual semantics.
package fuse

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/blockimage/bmpfs/lib/bmpfs"
	"github.com/blockimage/bmpfs/lib/clock"
	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// cacheTimeout is the kernel attribute/entry cache lifetime bmpfs
// asks the host bridge to use (spec.md §5: "the init function enables
// kernel caching and sets entry_timeout = attr_timeout = 60s").
const cacheTimeout = 60 * time.Second

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is the directory where the filesystem is mounted.
	Mountpoint string

	// Image is the path to the BMP backing image. Created with
	// bmpfs.DefaultWidth x bmpfs.DefaultHeight if it does not exist.
	Image string

	// Clock sources timestamps. Defaults to clock.Real().
	Clock clock.Clock

	// AllowOther permits other users (including root) to access the
	// mount. Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Logger receives diagnostic messages. If nil, a handler that only
	// prints errors to stderr is used.
	Logger *slog.Logger
}

// Mount opens the backing image and mounts the bmpfs filesystem at
// the configured mountpoint. The caller must call Unmount on the
// returned Server when done, then call Destroy on the returned
// Filesystem to run bmpfs's destroy path (final metadata flush and
// backing-file close).
func Mount(options Options) (*fuse.Server, *bmpfs.Filesystem, error) {
	if options.Mountpoint == "" {
		return nil, nil, fmt.Errorf("mountpoint is required")
	}
	if options.Image == "" {
		return nil, nil, fmt.Errorf("image path is required")
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	filesystem, err := bmpfs.Open(options.Image, bmpfs.Options{
		Clock:  options.Clock,
		Logger: options.Logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening backing image %s: %w", options.Image, err)
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		filesystem.Destroy()
		return nil, nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	root := &rootNode{fs: filesystem, logger: options.Logger}

	entryTimeout := cacheTimeout
	attrTimeout := cacheTimeout

	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout: &entryTimeout,
		AttrTimeout:  &attrTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     "bmpfs",
			Name:       "bmpfs",
			AllowOther: options.AllowOther,
		},
	})
	if err != nil {
		filesystem.Destroy()
		return nil, nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("bmpfs mounted", "mountpoint", options.Mountpoint, "image", options.Image)
	return server, filesystem, nil
}
