// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fuse

import (
	"context"
	"log/slog"
	"syscall"

	"github.com/blockimage/bmpfs/lib/bmpfs"
	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// rootNode is the filesystem root. Every other entry is a direct
// child of root — the namespace is flat (spec.md §4.6's path model).
type rootNode struct {
	gofuse.Inode
	fs     *bmpfs.Filesystem
	logger *slog.Logger
}

var _ gofuse.InodeEmbedder = (*rootNode)(nil)
var _ gofuse.NodeGetattrer = (*rootNode)(nil)
var _ gofuse.NodeLookuper = (*rootNode)(nil)
var _ gofuse.NodeReaddirer = (*rootNode)(nil)
var _ gofuse.NodeCreater = (*rootNode)(nil)
var _ gofuse.NodeMkdirer = (*rootNode)(nil)
var _ gofuse.NodeUnlinker = (*rootNode)(nil)
var _ gofuse.NodeRmdirer = (*rootNode)(nil)

func (r *rootNode) Getattr(_ context.Context, _ gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	attr, err := r.fs.GetAttr("/")
	if err != nil {
		return bmpfs.ErrnoOf(err)
	}
	fillAttr(&out.Attr, attr)
	return 0
}

func (r *rootNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	attr, err := r.fs.GetAttr("/" + name)
	if err != nil {
		return nil, bmpfs.ErrnoOf(err)
	}

	fillAttr(&out.Attr, attr)
	child := r.NewPersistentInode(ctx, &entryNode{fs: r.fs, logger: r.logger, name: name}, gofuse.StableAttr{
		Mode: entryInodeMode(attr.IsDir),
	})
	return child, 0
}

func (r *rootNode) Readdir(_ context.Context) (gofuse.DirStream, syscall.Errno) {
	entries, err := r.fs.Readdir("/")
	if err != nil {
		return nil, bmpfs.ErrnoOf(err)
	}

	var out []fuse.DirEntry
	for _, entry := range entries {
		if entry.Name == "." || entry.Name == ".." {
			continue
		}
		out = append(out, fuse.DirEntry{
			Name: entry.Name,
			Mode: entryInodeMode(entry.Attr.IsDir),
		})
	}
	return gofuse.NewListDirStream(out), 0
}

func (r *rootNode) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, gofuse.FileHandle, uint32, syscall.Errno) {
	uid, gid := callerIDs(ctx)
	if err := r.fs.Create("/"+name, mode, uid, gid); err != nil {
		return nil, nil, 0, bmpfs.ErrnoOf(err)
	}

	attr, err := r.fs.GetAttr("/" + name)
	if err != nil {
		return nil, nil, 0, bmpfs.ErrnoOf(err)
	}
	fillAttr(&out.Attr, attr)

	child := r.NewPersistentInode(ctx, &entryNode{fs: r.fs, logger: r.logger, name: name}, gofuse.StableAttr{
		Mode: entryInodeMode(false),
	})
	return child, nil, 0, 0
}

func (r *rootNode) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	uid, gid := callerIDs(ctx)
	if err := r.fs.Mkdir("/"+name, mode, uid, gid); err != nil {
		return nil, bmpfs.ErrnoOf(err)
	}

	attr, err := r.fs.GetAttr("/" + name)
	if err != nil {
		return nil, bmpfs.ErrnoOf(err)
	}
	fillAttr(&out.Attr, attr)

	child := r.NewPersistentInode(ctx, &entryNode{fs: r.fs, logger: r.logger, name: name}, gofuse.StableAttr{
		Mode: entryInodeMode(true),
	})
	return child, 0
}

func (r *rootNode) Unlink(_ context.Context, name string) syscall.Errno {
	return bmpfs.ErrnoOf(r.fs.Unlink("/" + name))
}

func (r *rootNode) Rmdir(_ context.Context, name string) syscall.Errno {
	return bmpfs.ErrnoOf(r.fs.Rmdir("/" + name))
}

// entryNode represents one occupied metadata slot, file or directory.
// Lookups are by name alone (the flat namespace means a slot's
// identity is its name, not a stable index the node caches), so every
// method re-resolves the slot through the Filesystem on each call.
type entryNode struct {
	gofuse.Inode
	fs     *bmpfs.Filesystem
	logger *slog.Logger
	name   string
}

var _ gofuse.InodeEmbedder = (*entryNode)(nil)
var _ gofuse.NodeGetattrer = (*entryNode)(nil)
var _ gofuse.NodeSetattrer = (*entryNode)(nil)
var _ gofuse.NodeOpener = (*entryNode)(nil)
var _ gofuse.NodeReader = (*entryNode)(nil)
var _ gofuse.NodeWriter = (*entryNode)(nil)
var _ gofuse.NodeFsyncer = (*entryNode)(nil)
var _ gofuse.NodeReaddirer = (*entryNode)(nil)

func (e *entryNode) path() string { return "/" + e.name }

func (e *entryNode) Getattr(_ context.Context, _ gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	attr, err := e.fs.GetAttr(e.path())
	if err != nil {
		return bmpfs.ErrnoOf(err)
	}
	fillAttr(&out.Attr, attr)
	return 0
}

// Setattr handles both truncate (FATTR_SIZE) and utimens
// (FATTR_ATIME/FATTR_MTIME) — go-fuse routes both through the same
// callback (spec.md §4.6 truncate, utimens).
func (e *entryNode) Setattr(_ context.Context, _ gofuse.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if in.Valid&fuse.FATTR_SIZE != 0 {
		if err := e.fs.Truncate(e.path(), int64(in.Size)); err != nil {
			return bmpfs.ErrnoOf(err)
		}
	}

	if in.Valid&(fuse.FATTR_ATIME|fuse.FATTR_MTIME) != 0 {
		var atime, mtime *uint64
		if in.Valid&fuse.FATTR_ATIME != 0 {
			v := in.Atime
			atime = &v
		}
		if in.Valid&fuse.FATTR_MTIME != 0 {
			v := in.Mtime
			mtime = &v
		}
		if err := e.fs.Utimens(e.path(), atime, mtime); err != nil {
			return bmpfs.ErrnoOf(err)
		}
	}

	attr, err := e.fs.GetAttr(e.path())
	if err != nil {
		return bmpfs.ErrnoOf(err)
	}
	fillAttr(&out.Attr, attr)
	return 0
}

func (e *entryNode) Open(_ context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	wantWrite := flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0
	wantRead := flags&syscall.O_WRONLY == 0
	if err := e.fs.Open(e.path(), wantRead, wantWrite); err != nil {
		return nil, 0, bmpfs.ErrnoOf(err)
	}
	return nil, 0, 0
}

func (e *entryNode) Read(_ context.Context, _ gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n, err := e.fs.Read(e.path(), dest, off)
	if err != nil {
		return nil, bmpfs.ErrnoOf(err)
	}
	return fuse.ReadResultData(dest[:n]), 0
}

func (e *entryNode) Write(_ context.Context, _ gofuse.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	n, err := e.fs.Write(e.path(), data, off)
	if err != nil {
		return 0, bmpfs.ErrnoOf(err)
	}
	return uint32(n), 0
}

func (e *entryNode) Fsync(_ context.Context, _ gofuse.FileHandle, flags uint32) syscall.Errno {
	const fuseFsyncDatasync = 1
	return bmpfs.ErrnoOf(e.fs.Fsync(e.path(), flags&fuseFsyncDatasync != 0))
}

// Readdir on a directory entry always reports empty: the flat
// namespace means a bmpfs directory can never contain children
// (spec.md §1 Non-goals, §4.6 mkdir).
func (e *entryNode) Readdir(_ context.Context) (gofuse.DirStream, syscall.Errno) {
	return gofuse.NewListDirStream(nil), 0
}

func fillAttr(out *fuse.Attr, attr bmpfs.Attr) {
	out.Mode = attr.Mode
	out.Size = attr.Size
	out.Uid = attr.UID
	out.Gid = attr.GID
	out.Atime = attr.Accessed
	out.Mtime = attr.Modified
	out.Ctime = attr.Modified
	out.Nlink = attr.Nlink
	out.Blocks = attr.Blocks
	out.Blksize = bmpfs.BlockSize
}

func entryInodeMode(isDir bool) uint32 {
	if isDir {
		return syscall.S_IFDIR
	}
	return syscall.S_IFREG
}

// callerIDs extracts the calling process's uid/gid from the FUSE
// request context, matching spec.md §4.6's "uid/gid from the calling
// process" for create and mkdir.
func callerIDs(ctx context.Context) (uid, gid uint32) {
	caller, ok := fuse.FromContext(ctx)
	if !ok {
		return 0, 0
	}
	return caller.Uid, caller.Gid
}
