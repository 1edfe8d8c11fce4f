// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bmpfs

import "testing"

func TestComputeLayoutDefaultDimensions(t *testing.T) {
	layout := ComputeLayout(DefaultWidth, DefaultHeight)

	wantStride := uint32(DefaultWidth * 3) // already a multiple of 4
	if layout.Stride != wantStride {
		t.Fatalf("Stride = %d, want %d", layout.Stride, wantStride)
	}
	if layout.DataOffset != bmpDataOffset {
		t.Fatalf("DataOffset = %d, want %d", layout.DataOffset, bmpDataOffset)
	}
	if layout.BlocksOffset != layout.DataOffset+layout.MetadataBytes {
		t.Fatalf("BlocksOffset = %d, want DataOffset+MetadataBytes = %d",
			layout.BlocksOffset, layout.DataOffset+layout.MetadataBytes)
	}
	if layout.TotalBlocks != layout.DataSize/BlockSize {
		t.Fatalf("TotalBlocks = %d, want %d", layout.TotalBlocks, layout.DataSize/BlockSize)
	}
}

func TestComputeLayoutRowStridePadding(t *testing.T) {
	// Width 1 pixel -> 3 bytes per row, padded up to 4.
	layout := ComputeLayout(1, 1)
	if layout.Stride != 4 {
		t.Fatalf("Stride = %d, want 4", layout.Stride)
	}

	// Width 4 pixels -> 12 bytes per row, already aligned.
	layout = ComputeLayout(4, 1)
	if layout.Stride != 12 {
		t.Fatalf("Stride = %d, want 12", layout.Stride)
	}
}

func TestComputeLayoutMetadataBytesIncludesBitmapAndTable(t *testing.T) {
	layout := ComputeLayout(DefaultWidth, DefaultHeight)
	want := layout.BitmapBytes + uint64(MaxFiles)*recordSize
	if layout.MetadataBytes != want {
		t.Fatalf("MetadataBytes = %d, want %d", layout.MetadataBytes, want)
	}
}
