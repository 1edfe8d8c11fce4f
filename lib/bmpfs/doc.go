// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bmpfs implements a flat userspace filesystem whose backing
// store is the pixel region of a 24-bit uncompressed BMP image. The
// image's file header and info header are kept valid; the pixel bytes
// that follow are reinterpreted as [free-block bitmap][file-metadata
// table][512-byte data blocks].
//
// The package is organized in layers, each usable independently:
//
//   - Container: reads and writes the two BMP headers and the
//     zero-filled pixel region of a freshly created backing image.
//
//   - Layout: pure arithmetic over image dimensions — row stride,
//     data region size, block count, metadata region size.
//
//   - Record: the packed 309-byte little-endian encoding of one
//     file-metadata slot, normative down to the byte position.
//
//   - Metadata: persists the free-block bitmap and the fixed-capacity
//     metadata table as a single contiguous run starting at the data
//     offset, read and written as one unit on every mount and every
//     mutating operation.
//
//   - Alloc: first-fit scanning over the bitmap to find a run of free
//     blocks. Does not mutate the bitmap itself — callers set bits
//     after confirming an allocation succeeded.
//
//   - Block I/O: positioned reads and writes of whole 512-byte blocks
//     in the data region, which begins immediately after the metadata
//     region.
//
//   - Filesystem: the namespace and operation semantics (getattr,
//     readdir, create, unlink, open, read, write, truncate, utimens,
//     fsync, mkdir, rmdir) that compose the layers above. This is the
//     type a FUSE binding (see the fuse subpackage) drives.
//
// The namespace is intentionally flat: directory entries exist (for
// mkdir/rmdir) but cannot contain children. Filesystem holds a single
// coarse mutex for the duration of every operation, so callers (the
// FUSE binding) need not serialize calls themselves.
package bmpfs
