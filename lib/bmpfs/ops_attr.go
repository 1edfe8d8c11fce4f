// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bmpfs

import "syscall"

// rootMode is the synthetic root directory's mode: S_IFDIR | 0755
// (spec.md §4.6 getattr).
const rootMode = syscall.S_IFDIR | 0o755

// Attr is the subset of file attributes a VFS binding's getattr /
// readdir callbacks need, independent of any particular FUSE library's
// wire types.
type Attr struct {
	Mode     uint32
	Size     uint64
	UID      uint32
	GID      uint32
	Created  uint64
	Modified uint64
	Accessed uint64
	Nlink    uint32
	Blocks   uint64
	IsDir    bool
}

// DirEntry is one entry returned by Readdir: a name plus its
// attributes, synthesized the same way a direct Getattr on that name
// would be (spec.md §4.6 readdir).
type DirEntry struct {
	Name string
	Attr Attr
}

func attrFromRecord(r Record) Attr {
	nlink := uint32(1)
	if r.IsDir {
		nlink = 2
	}
	return Attr{
		Mode:     r.Mode,
		Size:     r.Size,
		UID:      r.UID,
		GID:      r.GID,
		Created:  r.Created,
		Modified: r.Modified,
		Accessed: r.Accessed,
		Nlink:    nlink,
		Blocks:   (r.Size + BlockSize - 1) / BlockSize,
		IsDir:    r.IsDir,
	}
}

// rootAttr synthesizes the root directory's attributes: it is never
// stored in the metadata table (spec.md §4.6).
func (f *Filesystem) rootAttr() Attr {
	now := uint64(f.clock.Now().Unix())
	return Attr{
		Mode:     rootMode,
		Size:     0,
		Nlink:    2,
		Created:  now,
		Modified: now,
		Accessed: now,
		IsDir:    true,
	}
}

// GetAttr returns the attributes of path: the synthetic root
// directory, or a copy of a metadata slot's fields (spec.md §4.6
// getattr).
func (f *Filesystem) GetAttr(path string) (Attr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name, isRoot, err := splitPath("getattr", path)
	if err != nil {
		return Attr{}, err
	}
	if isRoot {
		return f.rootAttr(), nil
	}

	idx := f.findSlot(name)
	if idx < 0 {
		return Attr{}, newErrno("getattr", path, syscall.ENOENT)
	}
	return attrFromRecord(f.region.records[idx]), nil
}

// Readdir lists the contents of path, which must be the root — the
// namespace is flat, so no other directory can hold children
// (spec.md §4.6 readdir). Entries are "." and ".." followed by every
// occupied slot, in table order.
func (f *Filesystem) Readdir(path string) ([]DirEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, isRoot, err := splitPath("readdir", path)
	if err != nil {
		return nil, err
	}
	if !isRoot {
		return nil, newErrno("readdir", path, syscall.ENOENT)
	}

	rootAttr := f.rootAttr()
	entries := []DirEntry{
		{Name: ".", Attr: rootAttr},
		{Name: "..", Attr: rootAttr},
	}
	for _, r := range f.region.records {
		if r.Free() {
			continue
		}
		entries = append(entries, DirEntry{Name: r.Name, Attr: attrFromRecord(r)})
	}
	return entries, nil
}

// Utimens updates path's accessed and modified timestamps. If both
// atime and mtime are supplied, they are used directly; otherwise
// both are set to the current time (spec.md §4.6 utimens).
func (f *Filesystem) Utimens(path string, atime, mtime *uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	name, isRoot, err := splitPath("utimens", path)
	if err != nil {
		return err
	}
	if isRoot {
		// The root is synthetic and not persisted; nothing to update.
		return nil
	}

	idx := f.findSlot(name)
	if idx < 0 {
		return newErrno("utimens", path, syscall.ENOENT)
	}

	now := uint64(f.clock.Now().Unix())
	record := &f.region.records[idx]
	if atime != nil && mtime != nil {
		record.Accessed = *atime
		record.Modified = *mtime
	} else {
		record.Accessed = now
		record.Modified = now
	}

	return f.persist("utimens", path)
}
