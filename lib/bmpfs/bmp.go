// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bmpfs

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// BMP header constants, all per spec.md §6 (byte positions are
// normative: this is what keeps the backing image a structurally
// valid BMP to any reader that doesn't know about bmpfs).
const (
	bmpSignature   = 0x4D42 // "BM", little-endian uint16
	fileHeaderSize = 14
	infoHeaderSize = 40
	bmpDataOffset  = fileHeaderSize + infoHeaderSize // 54

	bmpPlanes          = 1
	bmpBitsPerPixel    = 24
	bmpCompression     = 0
	bmpXPixelsPerMetre = 2835
	bmpYPixelsPerMetre = 2835

	// DefaultWidth and DefaultHeight size the backing image created
	// by CreateContainer when none exists yet (spec.md §3).
	DefaultWidth  = 2048
	DefaultHeight = 2048
)

// FileHeader is the 14-byte BMP file header.
type FileHeader struct {
	Signature  uint16
	FileSize   uint32
	Reserved1  uint16
	Reserved2  uint16
	DataOffset uint32
}

// InfoHeader is the 40-byte BMP info (DIB) header, BITMAPINFOHEADER
// layout, fields restricted to what spec.md §6 names.
type InfoHeader struct {
	HeaderSize        uint32
	Width             int32
	Height            int32
	Planes            uint16
	BitsPerPixel      uint16
	Compression       uint32
	ImageSize         uint32
	XPixelsPerMetre   int32
	YPixelsPerMetre   int32
	ColorsUsed        uint32
	ColorsImportant   uint32
}

func encodeFileHeader(h FileHeader) [fileHeaderSize]byte {
	var buf [fileHeaderSize]byte
	binary.LittleEndian.PutUint16(buf[0:2], h.Signature)
	binary.LittleEndian.PutUint32(buf[2:6], h.FileSize)
	binary.LittleEndian.PutUint16(buf[6:8], h.Reserved1)
	binary.LittleEndian.PutUint16(buf[8:10], h.Reserved2)
	binary.LittleEndian.PutUint32(buf[10:14], h.DataOffset)
	return buf
}

func decodeFileHeader(buf []byte) (FileHeader, error) {
	if len(buf) < fileHeaderSize {
		return FileHeader{}, fmt.Errorf("file header too short: %d bytes", len(buf))
	}
	return FileHeader{
		Signature:  binary.LittleEndian.Uint16(buf[0:2]),
		FileSize:   binary.LittleEndian.Uint32(buf[2:6]),
		Reserved1:  binary.LittleEndian.Uint16(buf[6:8]),
		Reserved2:  binary.LittleEndian.Uint16(buf[8:10]),
		DataOffset: binary.LittleEndian.Uint32(buf[10:14]),
	}, nil
}

func encodeInfoHeader(h InfoHeader) [infoHeaderSize]byte {
	var buf [infoHeaderSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], h.HeaderSize)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(h.Width))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(h.Height))
	binary.LittleEndian.PutUint16(buf[12:14], h.Planes)
	binary.LittleEndian.PutUint16(buf[14:16], h.BitsPerPixel)
	binary.LittleEndian.PutUint32(buf[16:20], h.Compression)
	binary.LittleEndian.PutUint32(buf[20:24], h.ImageSize)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(h.XPixelsPerMetre))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(h.YPixelsPerMetre))
	binary.LittleEndian.PutUint32(buf[32:36], h.ColorsUsed)
	binary.LittleEndian.PutUint32(buf[36:40], h.ColorsImportant)
	return buf
}

func decodeInfoHeader(buf []byte) (InfoHeader, error) {
	if len(buf) < infoHeaderSize {
		return InfoHeader{}, fmt.Errorf("info header too short: %d bytes", len(buf))
	}
	return InfoHeader{
		HeaderSize:      binary.LittleEndian.Uint32(buf[0:4]),
		Width:           int32(binary.LittleEndian.Uint32(buf[4:8])),
		Height:          int32(binary.LittleEndian.Uint32(buf[8:12])),
		Planes:          binary.LittleEndian.Uint16(buf[12:14]),
		BitsPerPixel:    binary.LittleEndian.Uint16(buf[14:16]),
		Compression:     binary.LittleEndian.Uint32(buf[16:20]),
		ImageSize:       binary.LittleEndian.Uint32(buf[20:24]),
		XPixelsPerMetre: int32(binary.LittleEndian.Uint32(buf[24:28])),
		YPixelsPerMetre: int32(binary.LittleEndian.Uint32(buf[28:32])),
		ColorsUsed:      binary.LittleEndian.Uint32(buf[32:36]),
		ColorsImportant: binary.LittleEndian.Uint32(buf[36:40]),
	}, nil
}

// CreateContainer writes a fresh 24bpp uncompressed BMP of the given
// dimensions to path: the file header, the info header, and a
// zero-filled pixel region sized to the 4-byte-padded row stride
// (spec.md §4.1). The zero fill doubles as the initial (empty)
// metadata region, which occupies the leading layout.MetadataBytes
// bytes of the pixel region. No separate metadata write is made, so
// an image whose pixel region is shorter than MetadataBytes ends
// inside the metadata region and Open cannot read it.
func CreateContainer(path string, width, height uint32) error {
	layout := ComputeLayout(width, height)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating backing image %s: %w", path, err)
	}
	defer file.Close()

	fileHeader := encodeFileHeader(FileHeader{
		Signature:  bmpSignature,
		FileSize:   uint32(bmpDataOffset + layout.DataSize),
		DataOffset: bmpDataOffset,
	})
	if _, err := file.Write(fileHeader[:]); err != nil {
		return fmt.Errorf("writing BMP file header: %w", err)
	}

	infoHeader := encodeInfoHeader(InfoHeader{
		HeaderSize:      infoHeaderSize,
		Width:           int32(width),
		Height:          int32(height),
		Planes:          bmpPlanes,
		BitsPerPixel:    bmpBitsPerPixel,
		Compression:     bmpCompression,
		ImageSize:       uint32(layout.DataSize),
		XPixelsPerMetre: bmpXPixelsPerMetre,
		YPixelsPerMetre: bmpYPixelsPerMetre,
	})
	if _, err := file.Write(infoHeader[:]); err != nil {
		return fmt.Errorf("writing BMP info header: %w", err)
	}

	// Zero-filled pixel region. Written in chunks rather than one
	// giant allocation — the default 2048x2048 image already needs a
	// 12MB data region.
	const chunkSize = 1 << 20
	zeros := make([]byte, chunkSize)
	remaining := layout.DataSize
	for remaining > 0 {
		n := uint64(len(zeros))
		if remaining < n {
			n = remaining
		}
		if _, err := file.Write(zeros[:n]); err != nil {
			return fmt.Errorf("writing pixel region: %w", err)
		}
		remaining -= n
	}

	if err := file.Sync(); err != nil {
		return fmt.Errorf("flushing new backing image: %w", err)
	}
	return nil
}

// ReadHeaders reads and validates the BMP file header and info header
// from the start of file. Fails with an invalid-format error if the
// signature is not "BM".
func ReadHeaders(file *os.File) (FileHeader, InfoHeader, error) {
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return FileHeader{}, InfoHeader{}, fmt.Errorf("seeking to start of backing image: %w", err)
	}

	var headerBuf [fileHeaderSize + infoHeaderSize]byte
	if _, err := io.ReadFull(file, headerBuf[:]); err != nil {
		return FileHeader{}, InfoHeader{}, fmt.Errorf("reading BMP headers: %w", err)
	}

	fileHeader, err := decodeFileHeader(headerBuf[:fileHeaderSize])
	if err != nil {
		return FileHeader{}, InfoHeader{}, err
	}
	if fileHeader.Signature != bmpSignature {
		return FileHeader{}, InfoHeader{}, fmt.Errorf("invalid BMP signature: got %#04x, want %#04x",
			fileHeader.Signature, bmpSignature)
	}

	infoHeader, err := decodeInfoHeader(headerBuf[fileHeaderSize:])
	if err != nil {
		return FileHeader{}, InfoHeader{}, err
	}

	return fileHeader, infoHeader, nil
}
