// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archivefs

import (
	"context"
	"fmt"
	"os"
	"sync"
	"syscall"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/bureau-foundation/archivist/lib/logging"
	"github.com/bureau-foundation/archivist/lib/replica"
	"github.com/bureau-foundation/archivist/lib/session"
)

// fileHandle is one open file. Its replica set lives in the session
// table and is looked up by handle on every call. go-fuse may call a
// handle's methods concurrently, and a replica set is single-owner, so
// every use holds mu.
type fileHandle struct {
	fs      *filesystem
	logical string
	session session.Handle

	mu sync.Mutex
}

var (
	_ gofuse.FileReader   = (*fileHandle)(nil)
	_ gofuse.FileWriter   = (*fileHandle)(nil)
	_ gofuse.FileReleaser = (*fileHandle)(nil)
)

// open opens every replica of logical read-write, whatever the
// caller's access mode: reading may need to repair. The set occupies a
// session slot until release.
func (fs *filesystem) open(logical string) (*fileHandle, error) {
	set, err := replica.Open(fs.tree.Paths(logical), os.O_RDWR, 0, fs.logger.With("path", logical))
	if err != nil {
		return nil, err
	}
	handle, err := fs.sessions.Open(set)
	if err != nil {
		set.Close()
		return nil, err
	}
	return &fileHandle{fs: fs, logical: logical, session: handle}, nil
}

// with runs operation on the handle's replica set under mu. A handle
// already released fails with EBADF.
func (h *fileHandle) with(operation func(set *replica.Set) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.fs.sessions.Get(h.session)
	if !ok {
		return fmt.Errorf("%s: %w", h.logical, session.ErrUnknownSession)
	}
	return operation(set)
}

func (h *fileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	logging.Info(h.fs.logger, "read", h.logical, "offset", off, "size", len(dest))
	var n int
	err := h.with(func(set *replica.Set) (err error) {
		n, err = set.Read(dest, off)
		return err
	})
	if err != nil {
		return nil, h.fs.done("read", h.logical, err, "offset", off)
	}
	h.fs.done("read", h.logical, nil, "bytes", n)
	return fuse.ReadResultData(dest[:n]), 0
}

func (h *fileHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	logging.Info(h.fs.logger, "write", h.logical, "offset", off, "size", len(data))
	var n int
	err := h.with(func(set *replica.Set) (err error) {
		n, err = set.Write(data, off)
		return err
	})
	if err != nil {
		return 0, h.fs.done("write", h.logical, err, "offset", off, "written", n)
	}
	h.fs.done("write", h.logical, nil, "bytes", n)
	return uint32(n), 0
}

func (h *fileHandle) Release(ctx context.Context) syscall.Errno {
	logging.Info(h.fs.logger, "release", h.logical, "session", h.session)
	return h.fs.done("release", h.logical, h.release())
}

// release frees the session slot and closes the replicas.
func (h *fileHandle) release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, err := h.fs.sessions.Close(h.session)
	if err != nil {
		return fmt.Errorf("%s: %w", h.logical, err)
	}
	return set.Close()
}

func (h *fileHandle) truncate(size int64) error {
	return h.with(func(set *replica.Set) error {
		return set.Truncate(size)
	})
}

func (h *fileHandle) size() (size int64, err error) {
	err = h.with(func(set *replica.Set) error {
		size, err = set.Size()
		return err
	})
	return size, err
}
