// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bmpfs

import (
	"fmt"
	"io"
	"os"
)

// metadataRegion is the in-memory mirror of the bitmap and the
// file-metadata table. Per spec.md §4.3, the two are persisted and
// restored as a single contiguous byte run starting at
// layout.DataOffset: [bitmap][table]. There is no journal or
// shadow copy — a crash mid-write can leave this region inconsistent
// (spec.md §9), which is an accepted non-goal.
type metadataRegion struct {
	bitmap  []byte
	records [MaxFiles]Record
}

func newMetadataRegion(layout Layout) *metadataRegion {
	return &metadataRegion{
		bitmap: make([]byte, layout.BitmapBytes),
	}
}

// readMetadata reads the entire metadata region from file in a single
// read and decodes it into a fresh metadataRegion.
func readMetadata(file *os.File, layout Layout) (*metadataRegion, error) {
	if _, err := file.Seek(int64(layout.DataOffset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("seeking to metadata region: %w", err)
	}

	buf := make([]byte, layout.MetadataBytes)
	if _, err := io.ReadFull(file, buf); err != nil {
		return nil, fmt.Errorf("reading metadata region: %w", err)
	}

	region := &metadataRegion{}
	region.bitmap = make([]byte, layout.BitmapBytes)
	copy(region.bitmap, buf[:layout.BitmapBytes])

	tableBuf := buf[layout.BitmapBytes:]
	for i := 0; i < MaxFiles; i++ {
		record, err := decodeRecord(tableBuf[i*recordSize : (i+1)*recordSize])
		if err != nil {
			return nil, fmt.Errorf("decoding metadata slot %d: %w", i, err)
		}
		region.records[i] = record
	}

	return region, nil
}

// writeMetadata serializes the entire metadata region into one
// contiguous buffer and writes it with a single seek + write, then
// flushes. A flush failure is treated as fatal, per spec.md §4.3.
func writeMetadata(file *os.File, layout Layout, region *metadataRegion) error {
	buf := make([]byte, layout.MetadataBytes)
	copy(buf, region.bitmap)

	tableBuf := buf[layout.BitmapBytes:]
	for i := 0; i < MaxFiles; i++ {
		encoded, err := encodeRecord(region.records[i])
		if err != nil {
			return fmt.Errorf("encoding metadata slot %d: %w", i, err)
		}
		copy(tableBuf[i*recordSize:(i+1)*recordSize], encoded[:])
	}

	if _, err := file.Seek(int64(layout.DataOffset), io.SeekStart); err != nil {
		return fmt.Errorf("seeking to metadata region: %w", err)
	}
	if _, err := file.Write(buf); err != nil {
		return fmt.Errorf("writing metadata region: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("flushing metadata region: %w", err)
	}

	return nil
}
