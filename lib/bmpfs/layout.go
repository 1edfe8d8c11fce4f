// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bmpfs

// BlockSize is the fixed allocation unit within the data region
// (spec.md §3).
const BlockSize = 512

// MaxFiles is the fixed capacity of the file-metadata table
// (spec.md §3).
const MaxFiles = 1000

// Layout is the pure-arithmetic geometry of a backing image, derived
// from its pixel dimensions (spec.md §4.2). It never changes for the
// lifetime of a mount — the image is never resized.
type Layout struct {
	Width  uint32
	Height uint32

	// Stride is the row length in bytes, padded to a 4-byte boundary:
	// (width*3 + 3) &^ 3.
	Stride uint32

	// DataSize is the total size of the pixel region: Stride * Height.
	DataSize uint64

	// BitmapBytes is the size of the free-block bitmap: DataSize /
	// BlockSize, one byte per block.
	BitmapBytes uint64

	// MetadataBytes is the total size of the metadata region:
	// BitmapBytes + MaxFiles * recordSize.
	MetadataBytes uint64

	// TotalBlocks is the number of 512-byte blocks in the data
	// region: DataSize / BlockSize.
	TotalBlocks uint64

	// DataOffset is the file offset where the pixel region begins
	// (54: 14-byte file header + 40-byte info header).
	DataOffset uint64

	// BlocksOffset is the file offset of block 0, immediately after
	// the metadata region: DataOffset + MetadataBytes.
	BlocksOffset uint64
}

// ComputeLayout derives the full geometry of a backing image from its
// pixel dimensions. The row stride rounds each row up to a multiple
// of 4 bytes, matching the BMP format's row-alignment requirement.
func ComputeLayout(width, height uint32) Layout {
	stride := (width*3 + 3) &^ 3
	dataSize := uint64(stride) * uint64(height)
	bitmapBytes := dataSize / BlockSize
	metadataBytes := bitmapBytes + uint64(MaxFiles)*recordSize

	return Layout{
		Width:         width,
		Height:        height,
		Stride:        stride,
		DataSize:      dataSize,
		BitmapBytes:   bitmapBytes,
		MetadataBytes: metadataBytes,
		TotalBlocks:   dataSize / BlockSize,
		DataOffset:    bmpDataOffset,
		BlocksOffset:  bmpDataOffset + metadataBytes,
	}
}
