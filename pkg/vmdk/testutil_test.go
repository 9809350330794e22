package vmdk

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/zlib"
)

// memAdapter is a minimal in-memory IOAdapter used by every test in this
// package so no test needs a real file on disk.
type memAdapter struct {
	buf    []byte
	closed bool
}

func newMemAdapter(buf []byte) *memAdapter {
	return &memAdapter{buf: buf}
}

func (m *memAdapter) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(m.buf)) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *memAdapter) Size() (int64, error) {
	return int64(len(m.buf)), nil
}

func (m *memAdapter) Close() error {
	m.closed = true
	return nil
}

// sparseFixture is a hand-built single-extent "KDMV" sparse image: 4 grains
// of 16 sectors (8192 bytes) each, grains 0 and 2 allocated with a
// recognizable repeating byte pattern, grains 1 and 3 left sparse.
type sparseFixture struct {
	buf         []byte
	grainSize   int64
	grainBytes  map[int64][]byte // grain index -> expected decoded bytes
	totalGrains int64
}

func buildSparseFixture() *sparseFixture {
	const (
		grainSectors    = 16
		grainTableSize  = 4
		gdSector        = 1
		gtSector        = 2
		grain0Sector    = 3
		grain2Sector    = 3 + grainSectors
	)

	grainSize := int64(grainSectors) * SectorSize
	totalSectors := grain2Sector + grainSectors

	buf := make([]byte, int64(totalSectors)*SectorSize)

	// Header at sector 0.
	h := buf[0:512]
	copy(h[0:4], vmdkSignature[:])
	binary.LittleEndian.PutUint32(h[4:8], 1)            // version
	binary.LittleEndian.PutUint32(h[8:12], flagValidNewLineTest) // flags
	binary.LittleEndian.PutUint64(h[0x0C:0x14], uint64(grainTableSize*grainSectors)) // capacity sectors = 4 grains * 16
	binary.LittleEndian.PutUint64(h[0x14:0x1C], uint64(grainSectors))                // grain size sectors
	binary.LittleEndian.PutUint64(h[0x1C:0x24], 0)                                   // descriptor offset (none)
	binary.LittleEndian.PutUint64(h[0x24:0x2C], 0)                                   // descriptor size
	binary.LittleEndian.PutUint32(h[0x2C:0x30], grainTableSize)                      // num GTEs per GT
	binary.LittleEndian.PutUint64(h[0x30:0x38], 0)                                   // secondary GD offset
	binary.LittleEndian.PutUint64(h[0x38:0x40], gdSector)                            // primary GD sector
	binary.LittleEndian.PutUint64(h[0x40:0x48], uint64(grain2Sector+grainSectors))   // overhead sectors
	h[0x48] = 0    // clean shutdown
	h[0x49] = 0x0A // single EOL
	h[0x4A] = 0x20 // non EOL
	h[0x4B] = 0x0D // double EOL 1
	h[0x4C] = 0x0A // double EOL 2
	binary.LittleEndian.PutUint16(h[0x4D:0x4F], 0)       // compression: none

	// Grain directory: one entry pointing at the grain table sector.
	gd := buf[gdSector*SectorSize : gdSector*SectorSize+512]
	binary.LittleEndian.PutUint32(gd[0:4], gtSector)

	// Grain table: 4 entries, grains 0 and 2 allocated.
	gt := buf[gtSector*SectorSize : gtSector*SectorSize+512]
	binary.LittleEndian.PutUint32(gt[0:4], grain0Sector)
	binary.LittleEndian.PutUint32(gt[4:8], 0)
	binary.LittleEndian.PutUint32(gt[8:12], grain2Sector)
	binary.LittleEndian.PutUint32(gt[12:16], 0)

	grain0 := bytes.Repeat([]byte{0xAB}, int(grainSize))
	grain2 := bytes.Repeat([]byte{0xCD}, int(grainSize))
	copy(buf[grain0Sector*SectorSize:], grain0)
	copy(buf[grain2Sector*SectorSize:], grain2)

	return &sparseFixture{
		buf:       buf,
		grainSize: grainSize,
		grainBytes: map[int64][]byte{
			0: grain0,
			1: bytes.Repeat([]byte{0}, int(grainSize)),
			2: grain2,
			3: bytes.Repeat([]byte{0}, int(grainSize)),
		},
		totalGrains: grainTableSize,
	}
}

// buildCowdFixture builds a single-extent legacy "COWD" sparse image per §8
// scenario S4: one allocated grain at table index 0, the fixed 4096-entry
// grain table otherwise empty.
func buildCowdFixture() (buf []byte, grainSize int64, grainContent []byte) {
	const (
		grainSectors = 16 // grainSize = 8192 bytes
		gdSector     = 1
		gtSector     = 2               // CowdGrainTableEntries*4 bytes = 32 sectors: 2..33
		grainSector  = gtSector + 32   // first sector after the grain table
		maxDataSectors = 8192
	)

	grainSize = int64(grainSectors) * SectorSize
	totalSectors := grainSector + grainSectors
	buf = make([]byte, int64(totalSectors)*SectorSize)

	h := buf[0:512]
	copy(h[0:4], cowdSignature[:])
	binary.LittleEndian.PutUint32(h[4:8], 1)             // version
	binary.LittleEndian.PutUint32(h[8:12], 0)             // flags
	binary.LittleEndian.PutUint32(h[0x0C:0x10], maxDataSectors)
	binary.LittleEndian.PutUint32(h[0x10:0x14], grainSectors)
	binary.LittleEndian.PutUint32(h[0x14:0x18], gdSector)
	binary.LittleEndian.PutUint32(h[0x18:0x1C], 1) // gd entry count (advisory)

	gd := buf[gdSector*SectorSize : gdSector*SectorSize+512]
	binary.LittleEndian.PutUint32(gd[0:4], gtSector)

	gt := buf[gtSector*SectorSize : gtSector*SectorSize+CowdGrainTableEntries*4]
	binary.LittleEndian.PutUint32(gt[0:4], grainSector) // table index 0 allocated

	grainContent = bytes.Repeat([]byte{0x5A}, int(grainSize))
	copy(buf[grainSector*SectorSize:], grainContent)

	return buf, grainSize, grainContent
}

// compressedFixture is a single-extent stream-optimized "KDMV" image: two
// grains, each stored as a {lba, data_size} marker followed by a zlib
// stream (§6 "grain marker", §3 "stream-optimized").
type compressedFixture struct {
	buf       []byte
	grainSize int64
	// decoded[i] is the expected decompressed content of grain i.
	decoded [][]byte
}

func buildCompressedFixture() *compressedFixture {
	const (
		grainSectors   = 16 // grainSize = 8192 bytes
		grainTableSize = 2
		gdSector       = 1
		gtSector       = 2
		grain0Sector   = 3
	)
	grainSize := int64(grainSectors) * SectorSize

	grain0 := bytes.Repeat([]byte{0x00}, int(grainSize))       // all-zero: empty block
	grain1 := bytes.Repeat([]byte{0x11, 0x22}, int(grainSize)/2) // non-uniform pattern

	marker0 := compressGrainMarker(0, grain0)
	marker1 := compressGrainMarker(uint64(grainSectors), grain1)

	grain1Sector := grain0Sector + (len(marker0)+int(SectorSize)-1)/int(SectorSize)

	totalSectors := grain1Sector + (len(marker1)+int(SectorSize)-1)/int(SectorSize) + 1
	buf := make([]byte, int64(totalSectors)*SectorSize)

	h := buf[0:512]
	copy(h[0:4], vmdkSignature[:])
	binary.LittleEndian.PutUint32(h[4:8], 1)
	binary.LittleEndian.PutUint32(h[8:12], flagValidNewLineTest|flagCompressedGrains|flagMarkersPresent)
	binary.LittleEndian.PutUint64(h[0x0C:0x14], uint64(grainTableSize*grainSectors))
	binary.LittleEndian.PutUint64(h[0x14:0x1C], uint64(grainSectors))
	binary.LittleEndian.PutUint64(h[0x1C:0x24], 0)
	binary.LittleEndian.PutUint64(h[0x24:0x2C], 0)
	binary.LittleEndian.PutUint32(h[0x2C:0x30], grainTableSize)
	binary.LittleEndian.PutUint64(h[0x30:0x38], 0)
	binary.LittleEndian.PutUint64(h[0x38:0x40], gdSector)
	binary.LittleEndian.PutUint64(h[0x40:0x48], uint64(totalSectors))
	h[0x48] = 0
	h[0x49] = 0x0A
	h[0x4A] = 0x20
	h[0x4B] = 0x0D
	h[0x4C] = 0x0A
	binary.LittleEndian.PutUint16(h[0x4D:0x4F], 1) // compression: deflate

	gd := buf[gdSector*SectorSize : gdSector*SectorSize+512]
	binary.LittleEndian.PutUint32(gd[0:4], gtSector)

	gt := buf[gtSector*SectorSize : gtSector*SectorSize+512]
	binary.LittleEndian.PutUint32(gt[0:4], grain0Sector)
	binary.LittleEndian.PutUint32(gt[4:8], uint32(grain1Sector))

	copy(buf[grain0Sector*SectorSize:], marker0)
	copy(buf[grain1Sector*SectorSize:], marker1)

	return &compressedFixture{
		buf:       buf,
		grainSize: grainSize,
		decoded:   [][]byte{grain0, grain1},
	}
}

// compressGrainMarker zlib-compresses content and prefixes it with the
// 12-byte grain marker {lba, data_size} (§6).
func compressGrainMarker(lba uint64, content []byte) []byte {
	var zbuf bytes.Buffer
	zw := zlib.NewWriter(&zbuf)
	if _, err := zw.Write(content); err != nil {
		panic(err)
	}
	if err := zw.Close(); err != nil {
		panic(err)
	}

	out := make([]byte, markerSize+zbuf.Len())
	binary.LittleEndian.PutUint64(out[0:8], lba)
	binary.LittleEndian.PutUint32(out[8:12], uint32(zbuf.Len()))
	copy(out[markerSize:], zbuf.Bytes())
	return out
}
