// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package archivefs serves a replica tree as a FUSE filesystem.
//
// The mounted namespace mirrors the authority replica's tree with the
// "@" suffix removed. Regular files are block sequences in every
// replica: reads and writes go through a [replica.Set], so every block
// a caller touches is verified and, where possible, repaired. Metadata
// operations are applied to every replica by [mirror.Tree].
//
// Each operation is logged at INFO on arrival and at STATUS or ERROR
// on completion, with the errno returned to the kernel.
package archivefs

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/bureau-foundation/archivist/lib/mirror"
	"github.com/bureau-foundation/archivist/lib/replica"
	"github.com/bureau-foundation/archivist/lib/session"
)

// DefaultMaxOpenFiles bounds concurrently open files when Options
// leaves MaxOpenFiles at zero.
const DefaultMaxOpenFiles = 128

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is the directory where the filesystem is mounted.
	Mountpoint string

	// Tree is the replica tree served by the mount.
	Tree *mirror.Tree

	// MaxOpenFiles bounds the number of open files. Opens beyond it
	// fail with ENFILE. Zero uses DefaultMaxOpenFiles.
	MaxOpenFiles int

	// AllowOther permits other users to access the mount. Requires
	// user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Debug enables go-fuse's request tracing on stderr.
	Debug bool

	// Logger receives the operation log. If nil, errors are written
	// to stderr and everything else is dropped.
	Logger *slog.Logger
}

// filesystem is the state shared by every node of one mount.
type filesystem struct {
	tree     *mirror.Tree
	sessions *session.Table[*replica.Set]
	logger   *slog.Logger
}

// Mount mounts the replica tree at the configured mountpoint. The
// caller must call Unmount on the returned Server when done.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.Tree == nil {
		return nil, fmt.Errorf("replica tree is required")
	}
	if options.MaxOpenFiles == 0 {
		options.MaxOpenFiles = DefaultMaxOpenFiles
	}
	if options.MaxOpenFiles < 0 {
		return nil, fmt.Errorf("max open files must be positive, got %d", options.MaxOpenFiles)
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	fs := &filesystem{
		tree:     options.Tree,
		sessions: session.NewTable[*replica.Set](options.MaxOpenFiles),
		logger:   options.Logger,
	}
	root := &node{fs: fs}

	entryTimeout := 1 * time.Second
	attrTimeout := 1 * time.Second
	negativeTimeout := 100 * time.Millisecond

	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout:    &entryTimeout,
		AttrTimeout:     &attrTimeout,
		NegativeTimeout: &negativeTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     options.Tree.Roots()[0],
			Name:       "archivist",
			AllowOther: options.AllowOther,
			Debug:      options.Debug,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("archivist filesystem mounted",
		"mountpoint", options.Mountpoint,
		"replicas", options.Tree.Roots(),
		"max_open_files", options.MaxOpenFiles)
	return server, nil
}
