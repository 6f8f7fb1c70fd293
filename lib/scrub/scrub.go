// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package scrub read-repairs every block of every file in a replica
// tree.
//
// Normal reads only repair the blocks they touch. A scrub walks the
// authority replica's tree, opens each regular file as a replica set,
// and reads each block index up to the longest replica, so damage in
// cold data is found and fixed before a second fault makes it
// unrecoverable.
package scrub

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bureau-foundation/archivist/lib/block"
	"github.com/bureau-foundation/archivist/lib/mirror"
	"github.com/bureau-foundation/archivist/lib/replica"
)

// Options configures a scrub.
type Options struct {
	// Tree is the replica tree to scrub.
	Tree *mirror.Tree

	// Logger receives per-file progress and repair messages. Nil
	// discards them.
	Logger *slog.Logger
}

// Report summarizes a scrub.
type Report struct {
	Roots    []string        `json:"roots"`
	Files    int64           `json:"files"`
	Blocks   int64           `json:"blocks"`
	Repairs  replica.Repairs `json:"repairs"`
	Failures []Failure       `json:"failures,omitempty"`
}

// Failure is a file, or one block of a file, that could not be
// verified or repaired.
type Failure struct {
	// Path is the logical path of the file.
	Path string `json:"path"`

	// Block is the failing block index, or -1 when the file could not
	// be opened or sized.
	Block int64 `json:"block"`

	Errno int    `json:"errno"`
	Error string `json:"error"`
}

// Clean reports whether every block verified or was repaired.
func (r *Report) Clean() bool {
	return len(r.Failures) == 0
}

// Run scrubs the tree. Per-file failures are collected in the report
// and do not stop the scrub; a cancelled context or a failure to walk
// the authority tree does.
func Run(ctx context.Context, options Options) (*Report, error) {
	if options.Tree == nil {
		return nil, errors.New("scrub: Tree is required")
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	report := &Report{Roots: options.Tree.Roots()}
	root := report.Roots[0]

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == root || !entry.Type().IsRegular() {
			return nil
		}
		logical, ok := logicalPath(root, path)
		if !ok {
			return nil
		}
		scrubFile(ctx, options.Tree, logical, logger, report)
		return ctx.Err()
	})
	if err != nil {
		return report, fmt.Errorf("scrubbing %s: %w", root, err)
	}
	logger.Info("scrub complete",
		"files", report.Files,
		"blocks", report.Blocks,
		"repairs", report.Repairs.Total(),
		"failures", len(report.Failures))
	return report, nil
}

// logicalPath converts a stored path under root to its logical path.
// Paths with any component lacking the suffix are outside the mirrored
// namespace.
func logicalPath(root, stored string) (string, bool) {
	relative, err := filepath.Rel(root, stored)
	if err != nil {
		return "", false
	}
	components := strings.Split(filepath.ToSlash(relative), "/")
	for i, component := range components {
		name, ok := mirror.DisplayName(component)
		if !ok {
			return "", false
		}
		components[i] = name
	}
	return "/" + strings.Join(components, "/"), true
}

func scrubFile(ctx context.Context, tree *mirror.Tree, logical string, logger *slog.Logger, report *Report) {
	fail := func(index int64, err error) {
		logger.Error("scrub failure", "path", logical, "block", index, "error", err)
		report.Failures = append(report.Failures, Failure{
			Path:  logical,
			Block: index,
			Errno: int(replica.Errno(err)),
			Error: err.Error(),
		})
	}

	paths := tree.Paths(logical)
	set, err := replica.Open(paths, os.O_RDWR, 0, logger.With("path", logical))
	if err != nil {
		fail(-1, err)
		return
	}
	defer func() {
		report.Repairs.Add(set.Stats())
		set.Close()
	}()
	report.Files++

	var longest int64
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			fail(-1, err)
			return
		}
		longest = max(longest, info.Size())
	}

	blocks := (longest + block.Size - 1) / block.Size
	for index := range blocks {
		if ctx.Err() != nil {
			return
		}
		report.Blocks++
		if err := set.ReadBlock(index * block.Size); err != nil {
			fail(index, err)
		}
	}
}
