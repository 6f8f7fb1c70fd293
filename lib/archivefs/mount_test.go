// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archivefs

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"syscall"
	"testing"

	"github.com/bureau-foundation/archivist/lib/block"
	"github.com/bureau-foundation/archivist/lib/logging"
	"github.com/bureau-foundation/archivist/lib/mirror"
)

// fuseAvailable checks whether /dev/fuse is accessible and a
// fusermount helper is installed. Tests that need a real FUSE mount
// call this and skip otherwise.
func fuseAvailable(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/dev/fuse"); err != nil {
		t.Skip("skipping: /dev/fuse not available")
	}
	_, errFuse3 := exec.LookPath("fusermount3")
	_, errFuse := exec.LookPath("fusermount")
	if errFuse3 != nil && errFuse != nil {
		t.Skip("skipping: fusermount not installed")
	}
}

// testMount mounts a fresh two-replica tree and returns the mountpoint
// and tree. The mount is unmounted when the test ends.
func testMount(t *testing.T, maxOpenFiles int) (string, *mirror.Tree) {
	t.Helper()
	fuseAvailable(t)

	root := t.TempDir()
	roots := []string{filepath.Join(root, "primary"), filepath.Join(root, "secondary")}
	for _, replicaRoot := range roots {
		if err := os.Mkdir(replicaRoot, 0o755); err != nil {
			t.Fatalf("Mkdir: %v", err)
		}
	}
	tree, err := mirror.NewTree(roots)
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}

	mountpoint := filepath.Join(root, "mount")
	server, err := Mount(Options{
		Mountpoint:   mountpoint,
		Tree:         tree,
		MaxOpenFiles: maxOpenFiles,
		Logger:       logging.New(&bytes.Buffer{}),
	})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	t.Cleanup(func() {
		if err := server.Unmount(); err != nil {
			t.Errorf("Unmount: %v", err)
		}
	})
	return mountpoint, tree
}

func TestWriteThroughMountReplicatesBlocks(t *testing.T) {
	mountpoint, tree := testMount(t, 0)

	data := bytes.Repeat([]byte("replicated "), 100)
	path := filepath.Join(mountpoint, "file.txt")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("read back %d bytes, want %d", len(got), len(data))
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() != int64(len(data)) {
		t.Errorf("logical size = %d, want %d", info.Size(), len(data))
	}

	primary, err := os.ReadFile(tree.Path("/file.txt", 0))
	if err != nil {
		t.Fatalf("reading primary replica: %v", err)
	}
	secondary, err := os.ReadFile(tree.Path("/file.txt", 1))
	if err != nil {
		t.Fatalf("reading secondary replica: %v", err)
	}
	if !bytes.Equal(primary, secondary) {
		t.Error("replicas differ")
	}
	// 1100 bytes is two full blocks and one of 140 bytes.
	if want := 2*block.Size + block.HeaderSize + 140; len(primary) != want {
		t.Errorf("replica size = %d, want %d", len(primary), want)
	}
}

func TestReadRepairsCorruptReplica(t *testing.T) {
	mountpoint, tree := testMount(t, 0)
	path := filepath.Join(mountpoint, "data")
	if err := os.WriteFile(path, []byte("precious"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	secondary := tree.Path("/data", 1)
	raw, err := os.ReadFile(secondary)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	raw[block.HeaderSize] ^= 0xff
	if err := os.WriteFile(secondary, raw, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile through mount: %v", err)
	}
	if string(got) != "precious" {
		t.Errorf("read %q", got)
	}
	primary, _ := os.ReadFile(tree.Path("/data", 0))
	repaired, _ := os.ReadFile(secondary)
	if !bytes.Equal(primary, repaired) {
		t.Error("secondary replica was not repaired")
	}
}

func TestNamespaceOperations(t *testing.T) {
	mountpoint, tree := testMount(t, 0)

	directory := filepath.Join(mountpoint, "docs")
	if err := os.Mkdir(directory, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	for _, name := range []string{"b.txt", "a.txt"} {
		if err := os.WriteFile(filepath.Join(directory, name), []byte(name), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	if err := os.Rename(filepath.Join(directory, "b.txt"), filepath.Join(mountpoint, "moved.txt")); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if err := os.Chmod(filepath.Join(mountpoint, "moved.txt"), 0o600); err != nil {
		t.Fatalf("Chmod: %v", err)
	}

	entries, err := os.ReadDir(directory)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "a.txt" {
		t.Errorf("docs entries = %v, want [a.txt]", entries)
	}
	rootEntries, err := os.ReadDir(mountpoint)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var names []string
	for _, entry := range rootEntries {
		names = append(names, entry.Name())
	}
	if !slices.Equal(names, []string{"docs", "moved.txt"}) {
		t.Errorf("root entries = %v", names)
	}

	for i := range tree.Len() {
		info, err := os.Stat(tree.Path("/moved.txt", i))
		if err != nil {
			t.Fatalf("replica %d: %v", i, err)
		}
		if info.Mode().Perm() != 0o600 {
			t.Errorf("replica %d mode = %v", i, info.Mode().Perm())
		}
	}

	if err := os.Remove(filepath.Join(directory, "a.txt")); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := os.Remove(directory); err != nil {
		t.Fatalf("Remove directory: %v", err)
	}
	for i := range tree.Len() {
		if _, err := os.Stat(tree.Path("/docs", i)); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("replica %d still has docs: %v", i, err)
		}
	}
}

func TestTruncateThroughMount(t *testing.T) {
	mountpoint, tree := testMount(t, 0)
	path := filepath.Join(mountpoint, "shrink")
	if err := os.WriteFile(path, make([]byte, block.PayloadSize+10), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.Truncate(path, block.PayloadSize+3); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() != block.PayloadSize+3 {
		t.Errorf("logical size = %d, want %d", info.Size(), block.PayloadSize+3)
	}
	for i := range tree.Len() {
		info, err := os.Stat(tree.Path("/shrink", i))
		if err != nil {
			t.Fatalf("replica %d: %v", i, err)
		}
		if info.Size() != block.Size+block.HeaderSize+3 {
			t.Errorf("replica %d physical size = %d", i, info.Size())
		}
	}
}

func TestOpenBeyondSessionLimit(t *testing.T) {
	mountpoint, tree := testMount(t, 1)
	// Create the file behind the mount: a write through it would hold
	// the only slot until the kernel's asynchronous release arrives.
	if err := tree.Mknod("/limited", syscall.S_IFREG|0o644, 0); err != nil {
		t.Fatalf("Mknod: %v", err)
	}
	path := filepath.Join(mountpoint, "limited")
	first, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer first.Close()

	_, err = os.Open(path)
	if !errors.Is(err, syscall.ENFILE) {
		t.Errorf("second Open error = %v, want ENFILE", err)
	}
}
