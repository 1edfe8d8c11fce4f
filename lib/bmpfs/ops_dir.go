// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bmpfs

import "syscall"

// Mkdir creates a directory entry at path. As with Create, it fails
// if the name already exists or the table is full. The flat
// namespace means a bmpfs directory can never contain children — it
// exists only to be stat'd, listed in readdir, and removed (spec.md
// §4.6 mkdir).
func (f *Filesystem) Mkdir(path string, mode, uid, gid uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	name, isRoot, err := splitPath("mkdir", path)
	if err != nil {
		return err
	}
	if isRoot {
		return newErrno("mkdir", path, syscall.EEXIST)
	}

	if f.findSlot(name) >= 0 {
		return newErrno("mkdir", path, syscall.EEXIST)
	}

	idx := f.findFreeSlot()
	if idx < 0 {
		return newErrno("mkdir", path, syscall.ENOMEM)
	}

	now := uint64(f.clock.Now().Unix())
	f.region.records[idx] = Record{
		Name:       name,
		Created:    now,
		Modified:   now,
		Accessed:   now,
		FirstBlock: -1,
		Mode:       modeFileType(true) | (mode & 0o777),
		UID:        uid,
		GID:        gid,
		IsDir:      true,
	}

	return f.persist("mkdir", path)
}

// Rmdir removes the directory entry at path. Fails with ENOTDIR if
// the slot is a regular file. The flat namespace makes emptiness
// trivially true, so unlike a real filesystem, rmdir never
// re-verifies that the directory is empty (spec.md §4.6 rmdir,
// §9 open question).
func (f *Filesystem) Rmdir(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	name, isRoot, err := splitPath("rmdir", path)
	if err != nil {
		return err
	}
	if isRoot {
		return newErrno("rmdir", path, syscall.EBUSY)
	}

	idx := f.findSlot(name)
	if idx < 0 {
		return newErrno("rmdir", path, syscall.ENOENT)
	}
	if !f.region.records[idx].IsDir {
		return newErrno("rmdir", path, syscall.ENOTDIR)
	}

	f.region.records[idx] = Record{}

	return f.persist("rmdir", path)
}
