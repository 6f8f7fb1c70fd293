// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package mirror maps a logical namespace onto N replica directory
// trees and applies metadata operations to all of them.
//
// Every component of a logical path is stored with an "@" suffix in
// each replica root, so "/docs/report.txt" lives at
// "<root>/docs@/report.txt@". The suffix keeps replica trees from being
// mistaken for plain copies of the files they hold: a replica file is a
// block sequence, not the file's content. Directory listings strip the
// suffix and hide entries that lack it.
//
// Fan-out operations are attempted on every replica in index order and
// report the first failure by index, so one bad replica does not stop
// the others from being updated.
package mirror

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Suffix marks every stored path component.
const Suffix = "@"

// Tree is an ordered set of replica roots. Root 0 is the authority.
type Tree struct {
	roots []string
}

// NewTree resolves roots to absolute, symlink-free paths and checks
// that each is a directory.
func NewTree(roots []string) (*Tree, error) {
	if len(roots) == 0 {
		return nil, errors.New("mirror: at least one replica root is required")
	}
	resolved := make([]string, len(roots))
	for i, root := range roots {
		absolute, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolving replica root %q: %w", root, err)
		}
		absolute, err = filepath.EvalSymlinks(absolute)
		if err != nil {
			return nil, fmt.Errorf("resolving replica root %q: %w", root, err)
		}
		info, err := os.Stat(absolute)
		if err != nil {
			return nil, fmt.Errorf("replica root %q: %w", root, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("replica root %q is not a directory", root)
		}
		resolved[i] = absolute
	}
	return &Tree{roots: resolved}, nil
}

// Roots returns the resolved replica roots.
func (t *Tree) Roots() []string {
	return append([]string(nil), t.roots...)
}

// Len returns the number of replicas.
func (t *Tree) Len() int {
	return len(t.roots)
}

// Path maps a logical path to its location under replica i. Empty
// components and "." are dropped; the logical root maps to the replica
// root itself. Paths containing ".." components are cleaned first, so
// they cannot escape the root.
func (t *Tree) Path(logical string, i int) string {
	var builder strings.Builder
	builder.WriteString(t.roots[i])
	for _, component := range strings.Split(filepath.Clean("/"+logical), "/") {
		if component == "" || component == "." {
			continue
		}
		builder.WriteByte('/')
		builder.WriteString(component)
		builder.WriteString(Suffix)
	}
	return builder.String()
}

// Paths maps a logical path under every replica, in index order.
func (t *Tree) Paths(logical string) []string {
	paths := make([]string, len(t.roots))
	for i := range t.roots {
		paths[i] = t.Path(logical, i)
	}
	return paths
}

// DisplayName converts a stored directory entry name to its logical
// name. The second result is false for entries without the suffix,
// which are not part of the mirrored namespace.
func DisplayName(stored string) (string, bool) {
	name, ok := strings.CutSuffix(stored, Suffix)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// StoredName converts a logical name to its stored form.
func StoredName(name string) string {
	return name + Suffix
}

// each applies operation to every replica path of logical and returns
// the first error by index. Every replica is attempted.
func (t *Tree) each(logical string, operation func(path string) error) error {
	var first error
	for i := range t.roots {
		if err := operation(t.Path(logical, i)); err != nil && first == nil {
			first = err
		}
	}
	return first
}
