// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bmpfs

import "testing"

func TestRecordRoundTrip(t *testing.T) {
	record := Record{
		Name:       "notes.txt",
		Size:       4096,
		Created:    1000,
		Modified:   2000,
		Accessed:   3000,
		FirstBlock: 7,
		NumBlocks:  8,
		Mode:       modeFileType(false) | 0o644,
		UID:        1000,
		GID:        1000,
		IsDir:      false,
	}

	buf, err := encodeRecord(record)
	if err != nil {
		t.Fatalf("encodeRecord: %v", err)
	}
	if len(buf) != recordSize {
		t.Fatalf("encoded record is %d bytes, want %d", len(buf), recordSize)
	}

	got, err := decodeRecord(buf[:])
	if err != nil {
		t.Fatalf("decodeRecord: %v", err)
	}
	if got != record {
		t.Fatalf("decodeRecord round-trip = %+v, want %+v", got, record)
	}
}

func TestRecordFreeSlotSentinel(t *testing.T) {
	buf, err := encodeRecord(Record{FirstBlock: -1})
	if err != nil {
		t.Fatalf("encodeRecord: %v", err)
	}

	got, err := decodeRecord(buf[:])
	if err != nil {
		t.Fatalf("decodeRecord: %v", err)
	}
	if !got.Free() {
		t.Fatal("zero-name record should report Free() == true")
	}
	if got.FirstBlock != -1 {
		t.Fatalf("FirstBlock = %d, want -1", got.FirstBlock)
	}
}

func TestRecordNameTooLong(t *testing.T) {
	long := make([]byte, recordNameSize)
	for i := range long {
		long[i] = 'a'
	}

	_, err := encodeRecord(Record{Name: string(long)})
	if err == nil {
		t.Fatal("encodeRecord should reject a name filling the entire 256-byte field")
	}
}

func TestRecordNameMaxLengthSucceeds(t *testing.T) {
	max := make([]byte, recordNameSize-1)
	for i := range max {
		max[i] = 'a'
	}

	buf, err := encodeRecord(Record{Name: string(max)})
	if err != nil {
		t.Fatalf("encodeRecord: %v", err)
	}

	got, err := decodeRecord(buf[:])
	if err != nil {
		t.Fatalf("decodeRecord: %v", err)
	}
	if got.Name != string(max) {
		t.Fatalf("decoded name has length %d, want %d", len(got.Name), len(max))
	}
}

func TestDecodeRecordRejectsShortBuffer(t *testing.T) {
	if _, err := decodeRecord(make([]byte, recordSize-1)); err == nil {
		t.Fatal("decodeRecord should reject a buffer shorter than recordSize")
	}
}
