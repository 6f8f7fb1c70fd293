// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mirror

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func newTree(t *testing.T, count int) *Tree {
	t.Helper()
	roots := make([]string, count)
	for i := range roots {
		roots[i] = t.TempDir()
	}
	tree, err := NewTree(roots)
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}
	return tree
}

func TestPath(t *testing.T) {
	tree := newTree(t, 2)
	root := tree.Roots()[1]
	tests := []struct {
		logical string
		want    string
	}{
		{"/", root},
		{"", root},
		{"/a", root + "/a@"},
		{"/a/b.txt", root + "/a@/b.txt@"},
		{"a//b/", root + "/a@/b@"},
		{"/a/./b", root + "/a@/b@"},
		{"/../../etc", root + "/etc@"},
	}
	for _, test := range tests {
		if got := tree.Path(test.logical, 1); got != test.want {
			t.Errorf("Path(%q) = %q, want %q", test.logical, got, test.want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		stored string
		name   string
		ok     bool
	}{
		{"file@", "file", true},
		{"a@b@", "a@b", true},
		{"plain", "", false},
		{"@", "", false},
	}
	for _, test := range tests {
		name, ok := DisplayName(test.stored)
		if name != test.name || ok != test.ok {
			t.Errorf("DisplayName(%q) = %q, %v; want %q, %v", test.stored, name, ok, test.name, test.ok)
		}
	}
	if got := StoredName("file"); got != "file@" {
		t.Errorf("StoredName = %q", got)
	}
}

func TestNewTreeRejectsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := NewTree([]string{file}); err == nil {
		t.Fatal("NewTree accepted a regular file as a root")
	}
	if _, err := NewTree(nil); err == nil {
		t.Fatal("NewTree accepted no roots")
	}
}

func TestFanOut(t *testing.T) {
	tree := newTree(t, 3)

	if err := tree.Mkdir("/docs", 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := tree.Mknod("/docs/a.txt", unix.S_IFREG|0o640, 0); err != nil {
		t.Fatalf("Mknod: %v", err)
	}
	if err := tree.Mknod("/docs/pipe", unix.S_IFIFO|0o600, 0); err != nil {
		t.Fatalf("Mknod fifo: %v", err)
	}
	for i := range tree.Len() {
		info, err := os.Stat(tree.Path("/docs/a.txt", i))
		if err != nil {
			t.Fatalf("replica %d: %v", i, err)
		}
		if info.Mode().Perm() != 0o640&^currentUmask() {
			t.Errorf("replica %d mode = %v", i, info.Mode())
		}
		info, err = os.Lstat(tree.Path("/docs/pipe", i))
		if err != nil || info.Mode()&os.ModeNamedPipe == 0 {
			t.Errorf("replica %d pipe: %v, %v", i, info, err)
		}
	}

	if err := tree.Mknod("/docs/a.txt", unix.S_IFREG|0o640, 0); !errors.Is(err, os.ErrExist) {
		t.Errorf("second Mknod: got %v, want ErrExist", err)
	}

	if err := tree.Chmod("/docs/a.txt", 0o600); err != nil {
		t.Fatalf("Chmod: %v", err)
	}
	mtime := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := tree.Utimens("/docs/a.txt", nil, &mtime); err != nil {
		t.Fatalf("Utimens: %v", err)
	}
	if err := tree.Rename("/docs/a.txt", "/docs/b.txt"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	for i := range tree.Len() {
		info, err := os.Stat(tree.Path("/docs/b.txt", i))
		if err != nil {
			t.Fatalf("replica %d after rename: %v", i, err)
		}
		if info.Mode().Perm() != 0o600 {
			t.Errorf("replica %d mode = %v, want 0600", i, info.Mode().Perm())
		}
		if !info.ModTime().Equal(mtime) {
			t.Errorf("replica %d mtime = %v, want %v", i, info.ModTime(), mtime)
		}
	}

	if err := tree.Unlink("/docs/b.txt"); err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	if err := tree.Unlink("/docs/pipe"); err != nil {
		t.Fatalf("Unlink pipe: %v", err)
	}
	if err := tree.Rmdir("/docs"); err != nil {
		t.Fatalf("Rmdir: %v", err)
	}
	for i := range tree.Len() {
		if _, err := os.Lstat(tree.Path("/docs", i)); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("replica %d still has /docs: %v", i, err)
		}
	}
}

func TestFanOutAttemptsEveryReplica(t *testing.T) {
	tree := newTree(t, 2)
	// Pre-create the directory in replica 0 only.
	if err := os.Mkdir(tree.Path("/dir", 0), 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	err := tree.Mkdir("/dir", 0o755)
	if !errors.Is(err, os.ErrExist) {
		t.Fatalf("Mkdir error = %v, want ErrExist from replica 0", err)
	}
	if _, err := os.Stat(tree.Path("/dir", 1)); err != nil {
		t.Errorf("replica 1 was not attempted: %v", err)
	}
}

func TestReadDir(t *testing.T) {
	tree := newTree(t, 2)
	for _, name := range []string{"/b", "/a.b", "/a"} {
		if err := tree.Mknod(name, unix.S_IFREG|0o644, 0); err != nil {
			t.Fatalf("Mknod(%s): %v", name, err)
		}
	}
	if err := tree.Mkdir("/sub", 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tree.Roots()[0], "stray"), nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	entries, err := tree.ReadDir("/")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name)
	}
	want := []string{"a", "a.b", "b", "sub"}
	if len(names) != len(want) {
		t.Fatalf("ReadDir names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("ReadDir names = %v, want %v", names, want)
		}
	}
	if entries[3].Mode&unix.S_IFMT != unix.S_IFDIR {
		t.Errorf("sub mode = %o, want directory", entries[3].Mode)
	}

	stat, err := tree.Lstat("/sub")
	if err != nil {
		t.Fatalf("Lstat: %v", err)
	}
	if stat.Mode&unix.S_IFMT != unix.S_IFDIR {
		t.Errorf("Lstat mode = %o", stat.Mode)
	}
	if _, err := tree.Lstat("/missing"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Lstat(missing) = %v, want ErrNotExist", err)
	}
}

func currentUmask() os.FileMode {
	mask := unix.Umask(0)
	unix.Umask(mask)
	return os.FileMode(mask)
}
