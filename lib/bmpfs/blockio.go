// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bmpfs

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// blockOffset returns the file offset of block index relative to
// layout's data region.
func blockOffset(layout Layout, index uint32) int64 {
	return int64(layout.BlocksOffset) + int64(index)*BlockSize
}

// readBlocks reads n consecutive 512-byte blocks starting at start
// into buf, which must be exactly n*BlockSize bytes. A short read is
// reported as an I/O error (spec.md §4.5).
func readBlocks(file *os.File, layout Layout, start, n uint32, buf []byte) error {
	want := int(n) * BlockSize
	if len(buf) != want {
		return fmt.Errorf("readBlocks: buffer is %d bytes, want %d", len(buf), want)
	}
	if n == 0 {
		return nil
	}

	if _, err := file.Seek(blockOffset(layout, start), io.SeekStart); err != nil {
		return fmt.Errorf("seeking to block %d: %w", start, err)
	}
	if _, err := io.ReadFull(file, buf); err != nil {
		return fmt.Errorf("reading %d block(s) from %d: %w", n, start, err)
	}
	return nil
}

// writeBlocks writes n consecutive 512-byte blocks starting at start
// from buf, which must be exactly n*BlockSize bytes, then flushes.
func writeBlocks(file *os.File, layout Layout, start, n uint32, buf []byte) error {
	want := int(n) * BlockSize
	if len(buf) != want {
		return fmt.Errorf("writeBlocks: buffer is %d bytes, want %d", len(buf), want)
	}
	if n == 0 {
		return nil
	}

	if _, err := file.Seek(blockOffset(layout, start), io.SeekStart); err != nil {
		return fmt.Errorf("seeking to block %d: %w", start, err)
	}
	written, err := file.Write(buf)
	if err != nil {
		return fmt.Errorf("writing %d block(s) to %d: %w", n, start, err)
	}
	if written != want {
		return fmt.Errorf("short write of %d block(s) to %d: wrote %d of %d bytes", n, start, written, want)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("flushing %d block(s) written to %d: %w", n, start, err)
	}
	return nil
}

// flushBackingFile flushes the backing image. When dataSync is true
// it uses a data-only flush (fdatasync) where the platform supports
// one, matching the distinction spec.md §4.6 draws between fsync and
// datasync. Falls back to a full Sync on platforms or errors where
// fdatasync isn't meaningful.
func flushBackingFile(file *os.File, dataSync bool) error {
	if dataSync {
		if err := unix.Fdatasync(int(file.Fd())); err == nil {
			return nil
		}
		// Fall through to a full sync — some platforms (and some
		// filesystems under Linux, e.g. tmpfs) don't support
		// fdatasync and return ENOSYS/EINVAL for it.
	}
	return file.Sync()
}
