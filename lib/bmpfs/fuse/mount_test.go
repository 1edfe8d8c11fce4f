// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fuse

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// fuseAvailable checks whether /dev/fuse is accessible. Tests that
// need a real FUSE mount call this and skip if the device is absent.
func fuseAvailable(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/dev/fuse"); err != nil {
		t.Skip("skipping: /dev/fuse not available")
	}
}

// testMount creates a fresh backing image, mounts it, and returns the
// mountpoint plus a cleanup-registered teardown.
func testMount(t *testing.T) (mountpoint string) {
	t.Helper()
	fuseAvailable(t)

	root := t.TempDir()
	mountpoint = filepath.Join(root, "mnt")

	server, filesystem, err := Mount(Options{
		Mountpoint: mountpoint,
		Image:      filepath.Join(root, "image.bmp"),
	})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}

	t.Cleanup(func() {
		if err := server.Unmount(); err != nil {
			t.Errorf("Unmount: %v", err)
		}
		if err := filesystem.Destroy(); err != nil {
			t.Errorf("Destroy: %v", err)
		}
	})

	return mountpoint
}

func TestMountRootStartsEmpty(t *testing.T) {
	mountpoint := testMount(t)

	entries, err := os.ReadDir(mountpoint)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("fresh mount has %d entries, want 0", len(entries))
	}
}

func TestMountCreateWriteReadFile(t *testing.T) {
	mountpoint := testMount(t)

	path := filepath.Join(mountpoint, "hello.txt")
	content := []byte("hello from bmpfs")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("content = %q, want %q", got, content)
	}

	entries, err := os.ReadDir(mountpoint)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "hello.txt" {
		t.Fatalf("ReadDir = %v, want [hello.txt]", entries)
	}
}

func TestMountMkdirAndStat(t *testing.T) {
	mountpoint := testMount(t)

	dirPath := filepath.Join(mountpoint, "sub")
	if err := os.Mkdir(dirPath, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	info, err := os.Stat(dirPath)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("created entry should be a directory")
	}

	if err := os.Remove(dirPath); err != nil {
		t.Fatalf("Remove (rmdir): %v", err)
	}
	if _, err := os.Stat(dirPath); !os.IsNotExist(err) {
		t.Fatalf("Stat after Remove = %v, want not-exist", err)
	}
}

func TestMountUnlink(t *testing.T) {
	mountpoint := testMount(t)

	path := filepath.Join(mountpoint, "gone.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("Stat after Remove = %v, want not-exist", err)
	}
}

func TestMountTruncate(t *testing.T) {
	mountpoint := testMount(t)

	path := filepath.Join(mountpoint, "grow.txt")
	if err := os.WriteFile(path, []byte("short"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := os.Truncate(path, 4096); err != nil {
		t.Fatalf("Truncate: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() != 4096 {
		t.Fatalf("Size after Truncate = %d, want 4096", info.Size())
	}
}

func TestMountReuseNameAfterUnlink(t *testing.T) {
	mountpoint := testMount(t)

	path := filepath.Join(mountpoint, "reused.txt")
	if err := os.WriteFile(path, []byte("first"), 0o644); err != nil {
		t.Fatalf("WriteFile (first): %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := os.WriteFile(path, []byte("second"), 0o644); err != nil {
		t.Fatalf("WriteFile (second): %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "second" {
		t.Fatalf("content = %q, want second", got)
	}
}

func TestMountOptionsRequireMountpointAndImage(t *testing.T) {
	if _, _, err := Mount(Options{Image: "whatever.bmp"}); err == nil {
		t.Fatal("Mount should fail without a mountpoint")
	}
	if _, _, err := Mount(Options{Mountpoint: "/tmp/whatever"}); err == nil {
		t.Fatal("Mount should fail without an image path")
	}
}
