// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mirror

import (
	"os"
	"sort"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Mkdir creates the directory in every replica.
func (t *Tree) Mkdir(logical string, mode uint32) error {
	return t.each(logical, func(path string) error {
		return os.Mkdir(path, os.FileMode(mode&0o7777))
	})
}

// Mknod creates a filesystem node in every replica. Regular files are
// created empty and exclusively, FIFOs with mkfifo, and anything else
// with mknod and the given device number.
func (t *Tree) Mknod(logical string, mode uint32, dev uint64) error {
	return t.each(logical, func(path string) error {
		switch mode & unix.S_IFMT {
		case unix.S_IFREG, 0:
			file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, os.FileMode(mode&0o7777))
			if err != nil {
				return err
			}
			return file.Close()
		case unix.S_IFIFO:
			return wrapPath("mkfifo", path, unix.Mkfifo(path, mode))
		default:
			return wrapPath("mknod", path, unix.Mknod(path, mode, int(dev)))
		}
	})
}

// Unlink removes a non-directory from every replica.
func (t *Tree) Unlink(logical string) error {
	return t.each(logical, func(path string) error {
		return wrapPath("unlink", path, unix.Unlink(path))
	})
}

// Rmdir removes an empty directory from every replica.
func (t *Tree) Rmdir(logical string) error {
	return t.each(logical, func(path string) error {
		return wrapPath("rmdir", path, unix.Rmdir(path))
	})
}

// Rename moves a node within every replica.
func (t *Tree) Rename(from, to string) error {
	var first error
	for i := range t.roots {
		if err := os.Rename(t.Path(from, i), t.Path(to, i)); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Chmod changes permission bits in every replica.
func (t *Tree) Chmod(logical string, mode uint32) error {
	return t.each(logical, func(path string) error {
		return os.Chmod(path, os.FileMode(mode&0o7777))
	})
}

// Lchown changes ownership in every replica without following
// symlinks. An id of -1 leaves that id unchanged.
func (t *Tree) Lchown(logical string, uid, gid int) error {
	return t.each(logical, func(path string) error {
		return os.Lchown(path, uid, gid)
	})
}

// Utimens sets access and modification times in every replica. A nil
// time is left unchanged.
func (t *Tree) Utimens(logical string, atime, mtime *time.Time) error {
	times := []unix.Timespec{timespec(atime), timespec(mtime)}
	return t.each(logical, func(path string) error {
		return wrapPath("utimensat", path,
			unix.UtimesNanoAt(unix.AT_FDCWD, path, times, unix.AT_SYMLINK_NOFOLLOW))
	})
}

func timespec(value *time.Time) unix.Timespec {
	if value == nil {
		return unix.Timespec{Nsec: unix.UTIME_OMIT}
	}
	return unix.NsecToTimespec(value.UnixNano())
}

// Lstat returns replica 0's metadata for the node. The result is a
// syscall.Stat_t because that is what FUSE attribute conversion takes.
func (t *Tree) Lstat(logical string) (*syscall.Stat_t, error) {
	path := t.Path(logical, 0)
	var stat syscall.Stat_t
	if err := syscall.Lstat(path, &stat); err != nil {
		return nil, wrapPath("lstat", path, err)
	}
	return &stat, nil
}

// Entry is one logical directory entry.
type Entry struct {
	Name string
	Mode uint32
	Ino  uint64
}

// ReadDir lists a logical directory from replica 0, sorted by name.
// Stored entries without the suffix are skipped.
func (t *Tree) ReadDir(logical string) ([]Entry, error) {
	path := t.Path(logical, 0)
	stored, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(stored))
	for _, entry := range stored {
		name, ok := DisplayName(entry.Name())
		if !ok {
			continue
		}
		var stat unix.Stat_t
		if err := unix.Lstat(path+"/"+entry.Name(), &stat); err != nil {
			continue
		}
		entries = append(entries, Entry{Name: name, Mode: stat.Mode, Ino: stat.Ino})
	}
	// Stored names sort differently from logical ones ("a@" after "a.b@").
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func wrapPath(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &os.PathError{Op: op, Path: path, Err: err}
}
