// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archivefs

import (
	"context"
	"errors"
	"os"
	"path"
	"syscall"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/bureau-foundation/archivist/lib/layout"
	"github.com/bureau-foundation/archivist/lib/logging"
	"github.com/bureau-foundation/archivist/lib/replica"
)

// node is any file, directory, or special file in the mount. Nodes
// hold no state of their own: every operation resolves the node's
// current logical path and works on the replicas directly.
//
// Files are opened with direct I/O so that every read reaches the
// replica set and is verified, rather than being served from the page
// cache.
type node struct {
	gofuse.Inode
	fs *filesystem
}

var (
	_ gofuse.InodeEmbedder = (*node)(nil)
	_ gofuse.NodeGetattrer = (*node)(nil)
	_ gofuse.NodeSetattrer = (*node)(nil)
	_ gofuse.NodeLookuper  = (*node)(nil)
	_ gofuse.NodeReaddirer = (*node)(nil)
	_ gofuse.NodeOpener    = (*node)(nil)
	_ gofuse.NodeCreater   = (*node)(nil)
	_ gofuse.NodeMknoder   = (*node)(nil)
	_ gofuse.NodeMkdirer   = (*node)(nil)
	_ gofuse.NodeUnlinker  = (*node)(nil)
	_ gofuse.NodeRmdirer   = (*node)(nil)
	_ gofuse.NodeRenamer   = (*node)(nil)
	_ gofuse.NodeStatfser  = (*node)(nil)
)

func (n *node) logical() string {
	return "/" + n.Path(nil)
}

func (n *node) child(name string) string {
	return path.Join(n.logical(), name)
}

// done logs an operation's outcome and converts err to the errno
// returned to the kernel.
func (fs *filesystem) done(op, logical string, err error, args ...any) syscall.Errno {
	if err != nil {
		return logging.Error(fs.logger, op, logical, replica.Errno(err), append(args, "cause", err)...)
	}
	logging.Status(fs.logger, op, logical, 0, args...)
	return 0
}

// fillAttr copies replica 0's metadata into out, reporting regular
// files at their logical size.
func fillAttr(stat *syscall.Stat_t, out *fuse.Attr) {
	out.FromStat(stat)
	if stat.Mode&syscall.S_IFMT == syscall.S_IFREG {
		out.Size = uint64(layout.LogicalSize(stat.Size))
	}
}

// lookupChild stats a newly reached child and returns its inode.
func (n *node) lookupChild(ctx context.Context, logical string, out *fuse.EntryOut) (*gofuse.Inode, error) {
	stat, err := n.fs.tree.Lstat(logical)
	if err != nil {
		return nil, err
	}
	fillAttr(stat, &out.Attr)
	child := n.NewInode(ctx, &node{fs: n.fs}, gofuse.StableAttr{
		Mode: stat.Mode & syscall.S_IFMT,
		Ino:  stat.Ino,
	})
	return child, nil
}

func (n *node) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	logical := n.logical()
	logging.Info(n.fs.logger, "getattr", logical)
	stat, err := n.fs.tree.Lstat(logical)
	if err != nil {
		return n.fs.done("getattr", logical, err)
	}
	fillAttr(stat, &out.Attr)
	// An open handle knows the size through its own replica set.
	if handle, ok := f.(*fileHandle); ok {
		size, err := handle.size()
		if err != nil {
			return n.fs.done("getattr", logical, err)
		}
		out.Size = uint64(size)
	}
	return n.fs.done("getattr", logical, nil)
}

func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	logical := n.child(name)
	logging.Info(n.fs.logger, "lookup", logical)
	child, err := n.lookupChild(ctx, logical, out)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Negative lookups are routine; they are not failures.
			return nil, syscall.ENOENT
		}
		return nil, n.fs.done("lookup", logical, err)
	}
	return child, n.fs.done("lookup", logical, nil)
}

func (n *node) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	logical := n.logical()
	logging.Info(n.fs.logger, "readdir", logical)
	entries, err := n.fs.tree.ReadDir(logical)
	if err != nil {
		return nil, n.fs.done("readdir", logical, err)
	}
	list := make([]fuse.DirEntry, len(entries))
	for i, entry := range entries {
		list[i] = fuse.DirEntry{Name: entry.Name, Mode: entry.Mode, Ino: entry.Ino}
	}
	return gofuse.NewListDirStream(list), n.fs.done("readdir", logical, nil, "entries", len(list))
}

func (n *node) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	logical := n.logical()
	logging.Info(n.fs.logger, "open", logical, "flags", flags)
	handle, err := n.fs.open(logical)
	if err != nil {
		return nil, 0, n.fs.done("open", logical, err)
	}
	if flags&syscall.O_TRUNC != 0 {
		if err := handle.truncate(0); err != nil {
			handle.release()
			return nil, 0, n.fs.done("open", logical, err)
		}
	}
	return handle, fuse.FOPEN_DIRECT_IO, n.fs.done("open", logical, nil, "session", handle.session)
}

func (n *node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, gofuse.FileHandle, uint32, syscall.Errno) {
	logical := n.child(name)
	logging.Info(n.fs.logger, "create", logical, "mode", mode)
	err := n.fs.tree.Mknod(logical, syscall.S_IFREG|mode&0o7777, 0)
	if err != nil && !(errors.Is(err, os.ErrExist) && flags&syscall.O_EXCL == 0) {
		return nil, nil, 0, n.fs.done("create", logical, err)
	}
	handle, err := n.fs.open(logical)
	if err != nil {
		return nil, nil, 0, n.fs.done("create", logical, err)
	}
	child, err := n.lookupChild(ctx, logical, out)
	if err != nil {
		handle.release()
		return nil, nil, 0, n.fs.done("create", logical, err)
	}
	return child, handle, fuse.FOPEN_DIRECT_IO, n.fs.done("create", logical, nil, "session", handle.session)
}

func (n *node) Mknod(ctx context.Context, name string, mode uint32, dev uint32, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	logical := n.child(name)
	logging.Info(n.fs.logger, "mknod", logical, "mode", mode)
	if err := n.fs.tree.Mknod(logical, mode, uint64(dev)); err != nil {
		return nil, n.fs.done("mknod", logical, err)
	}
	child, err := n.lookupChild(ctx, logical, out)
	return child, n.fs.done("mknod", logical, err)
}

func (n *node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	logical := n.child(name)
	logging.Info(n.fs.logger, "mkdir", logical, "mode", mode)
	if err := n.fs.tree.Mkdir(logical, mode); err != nil {
		return nil, n.fs.done("mkdir", logical, err)
	}
	child, err := n.lookupChild(ctx, logical, out)
	return child, n.fs.done("mkdir", logical, err)
}

func (n *node) Unlink(ctx context.Context, name string) syscall.Errno {
	logical := n.child(name)
	logging.Info(n.fs.logger, "unlink", logical)
	return n.fs.done("unlink", logical, n.fs.tree.Unlink(logical))
}

func (n *node) Rmdir(ctx context.Context, name string) syscall.Errno {
	logical := n.child(name)
	logging.Info(n.fs.logger, "rmdir", logical)
	return n.fs.done("rmdir", logical, n.fs.tree.Rmdir(logical))
}

func (n *node) Rename(ctx context.Context, name string, newParent gofuse.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	from := n.child(name)
	to := path.Join("/"+newParent.EmbeddedInode().Path(nil), newName)
	logging.Info(n.fs.logger, "rename", from, "to", to)
	if flags != 0 {
		// RENAME_EXCHANGE and RENAME_NOREPLACE cannot be applied
		// atomically across replicas.
		return n.fs.done("rename", from, syscall.EINVAL, "to", to)
	}
	return n.fs.done("rename", from, n.fs.tree.Rename(from, to), "to", to)
}

func (n *node) Setattr(ctx context.Context, f gofuse.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	logical := n.logical()

	if mode, ok := in.GetMode(); ok {
		logging.Info(n.fs.logger, "chmod", logical, "mode", mode)
		if errno := n.fs.done("chmod", logical, n.fs.tree.Chmod(logical, mode)); errno != 0 {
			return errno
		}
	}

	uid, uidOK := in.GetUID()
	gid, gidOK := in.GetGID()
	if uidOK || gidOK {
		owner, group := -1, -1
		if uidOK {
			owner = int(uid)
		}
		if gidOK {
			group = int(gid)
		}
		logging.Info(n.fs.logger, "chown", logical, "uid", owner, "gid", group)
		if errno := n.fs.done("chown", logical, n.fs.tree.Lchown(logical, owner, group)); errno != 0 {
			return errno
		}
	}

	if size, ok := in.GetSize(); ok {
		logging.Info(n.fs.logger, "truncate", logical, "size", size)
		var err error
		if handle, isHandle := f.(*fileHandle); isHandle {
			err = handle.truncate(int64(size))
		} else {
			err = n.fs.truncatePath(logical, int64(size))
		}
		if errno := n.fs.done("truncate", logical, err, "size", size); errno != 0 {
			return errno
		}
	}

	atime, atimeOK := in.GetATime()
	mtime, mtimeOK := in.GetMTime()
	if atimeOK || mtimeOK {
		logging.Info(n.fs.logger, "utimens", logical)
		var atimePointer, mtimePointer = &atime, &mtime
		if !atimeOK {
			atimePointer = nil
		}
		if !mtimeOK {
			mtimePointer = nil
		}
		if errno := n.fs.done("utimens", logical, n.fs.tree.Utimens(logical, atimePointer, mtimePointer)); errno != 0 {
			return errno
		}
	}

	return n.Getattr(ctx, f, out)
}

func (n *node) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(n.fs.tree.Roots()[0], &stat); err != nil {
		return n.fs.done("statfs", "/", err)
	}
	out.FromStatfsT(&stat)
	return 0
}

// truncatePath truncates a file that has no open handle.
func (fs *filesystem) truncatePath(logical string, size int64) error {
	set, err := replica.Open(fs.tree.Paths(logical), os.O_RDWR, 0, fs.logger.With("path", logical))
	if err != nil {
		return err
	}
	if err := set.Truncate(size); err != nil {
		set.Close()
		return err
	}
	return set.Close()
}
