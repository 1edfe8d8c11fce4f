// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bmpfs

import "syscall"

// Create allocates a new regular-file slot at path (spec.md §4.6
// create). Fails with EEXIST if the name is already in use, ENOMEM if
// the metadata table is full.
func (f *Filesystem) Create(path string, mode, uid, gid uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	name, isRoot, err := splitPath("create", path)
	if err != nil {
		return err
	}
	if isRoot {
		return newErrno("create", path, syscall.EEXIST)
	}

	if f.findSlot(name) >= 0 {
		return newErrno("create", path, syscall.EEXIST)
	}

	idx := f.findFreeSlot()
	if idx < 0 {
		return newErrno("create", path, syscall.ENOMEM)
	}

	now := uint64(f.clock.Now().Unix())
	f.region.records[idx] = Record{
		Name:       name,
		Created:    now,
		Modified:   now,
		Accessed:   now,
		FirstBlock: -1,
		Mode:       modeFileType(false) | (mode & 0o777),
		UID:        uid,
		GID:        gid,
		IsDir:      false,
	}

	f.logger.Debug("create", "path", path, "slot", idx)
	return f.persist("create", path)
}

// Unlink removes a regular-file slot at path, freeing its blocks.
// Fails with EISDIR if the slot is a directory (spec.md §4.6 unlink).
func (f *Filesystem) Unlink(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	name, isRoot, err := splitPath("unlink", path)
	if err != nil {
		return err
	}
	if isRoot {
		return newErrno("unlink", path, syscall.EISDIR)
	}

	idx := f.findSlot(name)
	if idx < 0 {
		return newErrno("unlink", path, syscall.ENOENT)
	}

	record := &f.region.records[idx]
	if record.IsDir {
		return newErrno("unlink", path, syscall.EISDIR)
	}

	if record.NumBlocks > 0 {
		markBlocks(f.region.bitmap, uint32(record.FirstBlock), record.NumBlocks, false)
	}
	f.region.records[idx] = Record{}

	return f.persist("unlink", path)
}

// Open validates access to path against the requested intent and
// updates its accessed timestamp. Write flags on a directory are
// always rejected. Matching the original implementation, the updated
// accessed timestamp is not flushed to disk here — it is picked up by
// the next mutating operation's persist (spec.md §4.6 open).
func (f *Filesystem) Open(path string, wantRead, wantWrite bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	name, isRoot, err := splitPath("open", path)
	if err != nil {
		return err
	}
	if isRoot {
		if wantWrite {
			return newErrno("open", path, syscall.EACCES)
		}
		return nil
	}

	idx := f.findSlot(name)
	if idx < 0 {
		return newErrno("open", path, syscall.ENOENT)
	}

	record := &f.region.records[idx]
	if record.IsDir && wantWrite {
		return newErrno("open", path, syscall.EACCES)
	}
	if wantWrite && record.Mode&syscall.S_IWUSR == 0 {
		return newErrno("open", path, syscall.EACCES)
	}
	if wantRead && record.Mode&syscall.S_IRUSR == 0 {
		return newErrno("open", path, syscall.EACCES)
	}

	record.Accessed = uint64(f.clock.Now().Unix())
	return nil
}

// Read fills buf with up to len(buf) bytes of path's content starting
// at offset, returning the number of bytes actually read. Reading at
// or past the end of the file returns 0, not an error (spec.md §4.6
// read).
func (f *Filesystem) Read(path string, buf []byte, offset int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name, isRoot, err := splitPath("read", path)
	if err != nil {
		return 0, err
	}
	if isRoot {
		return 0, newErrno("read", path, syscall.EISDIR)
	}

	idx := f.findSlot(name)
	if idx < 0 {
		return 0, newErrno("read", path, syscall.ENOENT)
	}

	record := &f.region.records[idx]
	if record.IsDir {
		return 0, newErrno("read", path, syscall.EISDIR)
	}

	record.Accessed = uint64(f.clock.Now().Unix())

	if offset < 0 {
		return 0, newErrno("read", path, syscall.EINVAL)
	}
	if uint64(offset) >= record.Size {
		return 0, nil
	}

	size := uint64(len(buf))
	if offset+int64(size) > int64(record.Size) {
		size = record.Size - uint64(offset)
	}
	if size == 0 {
		return 0, nil
	}

	startBlock := uint32(record.FirstBlock) + uint32(offset/BlockSize)
	inBlock := uint32(offset % BlockSize)
	blocks := (uint32(size) + inBlock + BlockSize - 1) / BlockSize

	scratch := make([]byte, int(blocks)*BlockSize)
	if err := readBlocks(f.file, f.layout, startBlock, blocks, scratch); err != nil {
		f.logger.Error("read failed", "path", path, "offset", offset, "error", err)
		return 0, wrapErrno("read", path, syscall.EIO, err)
	}

	copy(buf[:size], scratch[inBlock:])
	return int(size), nil
}

// Write writes len(buf) bytes to path at offset, growing the file
// (via the relocation grow policy) if necessary, and returns the
// number of bytes written (spec.md §4.6 write).
func (f *Filesystem) Write(path string, buf []byte, offset int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name, isRoot, err := splitPath("write", path)
	if err != nil {
		return 0, err
	}
	if isRoot {
		return 0, newErrno("write", path, syscall.EISDIR)
	}

	idx := f.findSlot(name)
	if idx < 0 {
		return 0, newErrno("write", path, syscall.ENOENT)
	}

	record := &f.region.records[idx]
	if record.IsDir {
		return 0, newErrno("write", path, syscall.EISDIR)
	}
	if offset < 0 {
		return 0, newErrno("write", path, syscall.EINVAL)
	}

	size := uint64(len(buf))
	newSize := uint64(offset) + size
	if newSize < uint64(offset) {
		return 0, newErrno("write", path, syscall.EFBIG)
	}

	newBlocks := blocksFor(newSize)
	if newBlocks > record.NumBlocks {
		if err := f.growBlocks("write", path, idx, newBlocks); err != nil {
			return 0, err
		}
	}

	startBlock := uint32(record.FirstBlock) + uint32(offset/BlockSize)
	inBlock := uint32(offset % BlockSize)
	blocks := (uint32(size) + inBlock + BlockSize - 1) / BlockSize

	scratch := make([]byte, int(blocks)*BlockSize)
	if inBlock == 0 && size%BlockSize == 0 {
		// Block-aligned, block-sized write: no need to preserve any
		// existing bytes in the affected range.
	} else if err := readBlocks(f.file, f.layout, startBlock, blocks, scratch); err != nil {
		f.logger.Error("write read-modify-write failed", "path", path, "offset", offset, "error", err)
		return 0, wrapErrno("write", path, syscall.EIO, err)
	}

	copy(scratch[inBlock:], buf)

	if err := writeBlocks(f.file, f.layout, startBlock, blocks, scratch); err != nil {
		f.logger.Error("write failed", "path", path, "offset", offset, "error", err)
		return 0, wrapErrno("write", path, syscall.EIO, err)
	}

	if newSize > record.Size {
		record.Size = newSize
	}
	record.Modified = uint64(f.clock.Now().Unix())

	if err := f.persist("write", path); err != nil {
		return 0, err
	}
	return int(size), nil
}

// Truncate resizes path to newSize (spec.md §4.6 truncate). Shrinking
// clears only the trailing blocks in place; growing relocates via the
// grow policy. Newly appended blocks from a grow are not zero-filled
// here — any bytes a prior tenant of those disk positions left behind
// will surface on a subsequent read, a known imperfection carried over
// unchanged from the original implementation (spec.md §9).
func (f *Filesystem) Truncate(path string, newSize int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if newSize < 0 {
		return newErrno("truncate", path, syscall.EINVAL)
	}

	name, isRoot, err := splitPath("truncate", path)
	if err != nil {
		return err
	}
	if isRoot {
		return newErrno("truncate", path, syscall.EISDIR)
	}

	idx := f.findSlot(name)
	if idx < 0 {
		return newErrno("truncate", path, syscall.ENOENT)
	}

	record := &f.region.records[idx]
	if record.IsDir {
		return newErrno("truncate", path, syscall.EISDIR)
	}

	size := uint64(newSize)
	newBlocks := blocksFor(size)

	switch {
	case size == 0:
		if record.NumBlocks > 0 {
			markBlocks(f.region.bitmap, uint32(record.FirstBlock), record.NumBlocks, false)
		}
		record.FirstBlock = -1
		record.NumBlocks = 0
		record.Size = 0

	case newBlocks < record.NumBlocks:
		markBlocks(f.region.bitmap, uint32(record.FirstBlock)+newBlocks, record.NumBlocks-newBlocks, false)
		record.NumBlocks = newBlocks
		record.Size = size

	case newBlocks > record.NumBlocks:
		if err := f.growBlocks("truncate", path, idx, newBlocks); err != nil {
			return err
		}
		record.Size = size

	default:
		// Same block count: only the logical size changes.
		record.Size = size
	}

	record.Modified = uint64(f.clock.Now().Unix())
	return f.persist("truncate", path)
}

// blocksFor returns the number of 512-byte blocks needed to hold size
// bytes: ceil(size / BlockSize).
func blocksFor(size uint64) uint32 {
	return uint32((size + BlockSize - 1) / BlockSize)
}

// growBlocks implements the relocation grow policy (spec.md §4.4):
// allocate a fresh run elsewhere via first-fit, copy any existing
// content into it, free the old run, and update the record in place.
// Used by both Write and Truncate when a file needs more blocks than
// it currently owns.
func (f *Filesystem) growBlocks(op, path string, idx int, newBlocks uint32) error {
	record := &f.region.records[idx]

	newStart, ok := findFreeRun(f.region.bitmap, newBlocks)
	if !ok {
		return newErrno(op, path, syscall.ENOSPC)
	}
	f.logger.Debug("grow", "op", op, "path", path, "from_blocks", record.NumBlocks, "to_blocks", newBlocks, "new_start", newStart)

	if record.NumBlocks > 0 {
		existing := make([]byte, int(record.NumBlocks)*BlockSize)
		if err := readBlocks(f.file, f.layout, uint32(record.FirstBlock), record.NumBlocks, existing); err != nil {
			return wrapErrno(op, path, syscall.EIO, err)
		}
		if err := writeBlocks(f.file, f.layout, newStart, record.NumBlocks, existing); err != nil {
			return wrapErrno(op, path, syscall.EIO, err)
		}
		markBlocks(f.region.bitmap, uint32(record.FirstBlock), record.NumBlocks, false)
	}

	markBlocks(f.region.bitmap, newStart, newBlocks, true)
	record.FirstBlock = int64(newStart)
	record.NumBlocks = newBlocks
	return nil
}

// Fsync flushes the backing image. dataSync selects a data-only flush
// where the platform supports one (spec.md §4.6 fsync).
func (f *Filesystem) Fsync(path string, dataSync bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	name, isRoot, err := splitPath("fsync", path)
	if err != nil {
		return err
	}
	if !isRoot {
		if f.findSlot(name) < 0 {
			return newErrno("fsync", path, syscall.ENOENT)
		}
	}

	if err := flushBackingFile(f.file, dataSync); err != nil {
		return wrapErrno("fsync", path, syscall.EIO, err)
	}
	return nil
}
