// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bmpfs

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/blockimage/bmpfs/lib/clock"
)

var testEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// testWidth and testHeight size the backing image openTestFilesystem
// creates: 512x256 gives a 393,216-byte pixel region (768 blocks by the
// layout's count). The metadata region (768-byte bitmap plus the
// 309,000-byte table) takes the front of it, leaving 162 whole blocks
// inside the image file: room for a multi-block file, while a single
// write of under 400 KiB still drives the data region to ENOSPC.
const (
	testWidth  = 512
	testHeight = 256
)

// openTestFilesystem creates a small backing image (small enough that
// tests can exhaust the data region deliberately) and opens it with a
// deterministic fake clock.
func openTestFilesystem(t *testing.T) (*Filesystem, *clock.FakeClock) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "image.bmp")
	fake := clock.Fake(testEpoch)

	fs, err := Open(path, Options{Clock: fake, Width: testWidth, Height: testHeight})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { fs.Destroy() })

	return fs, fake
}

func TestOpenCreatesImageWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.bmp")
	fs, err := Open(path, Options{Clock: clock.Fake(testEpoch)})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer fs.Destroy()

	layout := fs.Layout()
	if layout.Width != DefaultWidth || layout.Height != DefaultHeight {
		t.Fatalf("layout dimensions = %dx%d, want %dx%d",
			layout.Width, layout.Height, DefaultWidth, DefaultHeight)
	}
}

func TestOpenRejectsInvalidBMP(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.bmp")
	// CreateContainer then corrupt the signature byte.
	if err := CreateContainer(path, 16, 16); err != nil {
		t.Fatalf("CreateContainer: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading image: %v", err)
	}
	data[0] = 'X'
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing corrupted image: %v", err)
	}

	if _, err := Open(path, Options{}); err == nil {
		t.Fatal("Open should reject an image with a corrupted signature")
	}
}

func TestOpenReopenPreservesState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.bmp")
	fake := clock.Fake(testEpoch)

	fs, err := Open(path, Options{Clock: fake})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := fs.Create("/persisted.txt", 0o644, 1000, 1000); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := fs.Write("/persisted.txt", []byte("hello"), 0); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := fs.Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}

	reopened, err := Open(path, Options{Clock: fake})
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer reopened.Destroy()

	attr, err := reopened.GetAttr("/persisted.txt")
	if err != nil {
		t.Fatalf("GetAttr after reopen: %v", err)
	}
	if attr.Size != 5 {
		t.Fatalf("Size after reopen = %d, want 5", attr.Size)
	}

	buf := make([]byte, 5)
	n, err := reopened.Read("/persisted.txt", buf, 0)
	if err != nil {
		t.Fatalf("Read after reopen: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("content after reopen = %q, want hello", string(buf[:n]))
	}
}

func TestSplitPathBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr syscall.Errno
		isRoot  bool
	}{
		{"root", "/", 0, true},
		{"simple", "/a", 0, false},
		{"no-leading-slash", "a", syscall.EINVAL, false},
		{"embedded-slash", "/a/b", syscall.EINVAL, false},
		{"empty-name", "/", 0, true},
		{"max-length-255-succeeds", "/" + strings.Repeat("a", 254), 0, false},
		{"length-256-fails", "/" + strings.Repeat("a", 255), syscall.ENAMETOOLONG, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, isRoot, err := splitPath("test", tc.path)
			if tc.wantErr == 0 {
				if err != nil {
					t.Fatalf("splitPath(%q) = %v, want success", tc.path, err)
				}
				if isRoot != tc.isRoot {
					t.Fatalf("splitPath(%q) isRoot = %v, want %v", tc.path, isRoot, tc.isRoot)
				}
				return
			}
			if ErrnoOf(err) != tc.wantErr {
				t.Fatalf("splitPath(%q) errno = %v, want %v", tc.path, ErrnoOf(err), tc.wantErr)
			}
		})
	}
}

func TestFindFreeSlotExhaustion(t *testing.T) {
	fs, _ := openTestFilesystem(t)

	for i := 0; i < MaxFiles; i++ {
		name := "/file" + strconv.Itoa(i)
		if err := fs.Create(name, 0o644, 0, 0); err != nil {
			t.Fatalf("Create #%d: %v", i, err)
		}
	}

	if err := fs.Create("/one-too-many", 0o644, 0, 0); ErrnoOf(err) != syscall.ENOMEM {
		t.Fatalf("create past capacity errno = %v, want ENOMEM", ErrnoOf(err))
	}
}
