package vmdk

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// markerSize is the fixed width of the grain marker stream-optimized VMDKs
// prefix every allocated grain with (§6): an 8-byte little-endian sector
// number (the grain's own virtual LBA) followed by a 4-byte little-endian
// compressed payload length.
const markerSize = 12

// readGrain resolves grain (gdIndex, gtIndex) within e to its decoded
// payload (§4.F). The bool return is true when the grain reads back as a
// single repeated byte — either because it is sparse (fillByte 0) or
// because the empty-block detector found a compressed grain that decodes
// to one (§4.I) — in which case the caller should synthesize fillByte
// rather than index into the returned (possibly nil) slice.
func (e *Extent) readGrain(gdIndex, gtIndex int64) (data []byte, isFill bool, fillByte byte, err error) {
	table, err := e.grainTable(gdIndex)
	if err != nil {
		return nil, false, 0, err
	}
	if table == nil {
		return nil, true, 0, nil
	}
	if gtIndex < 0 || gtIndex >= int64(len(table)) {
		return nil, false, 0, newErr(KindOutOfBounds, fmt.Sprintf("grain table index %d out of range (%d entries)", gtIndex, len(table)))
	}
	sector := table[gtIndex]
	if sector == 0 {
		return nil, true, 0, nil
	}

	key := grainKey{extentID: e.id, gdIndex: gdIndex, gtIndex: gtIndex}
	if dg, ok := e.grains.get(key); ok {
		return dg.data, dg.isFill, dg.fillByte, nil
	}

	g := e.geometry
	offset := int64(sector) * SectorSize

	var raw []byte
	if g.HasMarkers() {
		grainsPerTable := int64(g.GrainTableEntries)
		virtualGrainIndex := gdIndex*grainsPerTable + gtIndex
		expectedLBA := uint64(virtualGrainIndex) * uint64(g.GrainSize/SectorSize)
		raw, err = e.readCompressedGrain(offset, expectedLBA)
	} else {
		raw = make([]byte, g.GrainSize)
		err = readFull(e.io, raw, offset, "grain data")
	}
	if err != nil {
		return nil, false, 0, err
	}

	dg := decodedGrain{data: raw}
	if g.HasMarkers() && isEmptyBlock(raw) {
		dg.isFill = true
		dg.fillByte = raw[0]
	}
	e.grains.add(key, dg)
	return dg.data, dg.isFill, dg.fillByte, nil
}

// readCompressedGrain reads a marker-delimited, DEFLATE-compressed grain
// starting at offset and inflates it to exactly geometry.GrainSize bytes.
// It rejects a stream that under- or over-produces that many bytes, and one
// that leaves compressed input unconsumed (§4.F: "fail ... on ... residual
// input").
func (e *Extent) readCompressedGrain(offset int64, expectedLBA uint64) ([]byte, error) {
	g := e.geometry

	marker := make([]byte, markerSize)
	if err := readFull(e.io, marker, offset, "grain marker"); err != nil {
		return nil, err
	}
	lba := binary.LittleEndian.Uint64(marker[0:8])
	size := binary.LittleEndian.Uint32(marker[8:12])

	if lba != expectedLBA {
		return nil, newErr(KindMalformedGrain, fmt.Sprintf("grain marker LBA %d does not match expected %d", lba, expectedLBA))
	}
	if size == 0 || int64(size) > g.GrainSize*2 {
		return nil, newErr(KindMalformedGrain, fmt.Sprintf("grain marker declares implausible compressed size %d", size))
	}

	compressed := make([]byte, size)
	if err := readFull(e.io, compressed, offset+markerSize, "compressed grain payload"); err != nil {
		return nil, err
	}
	src := bytes.NewReader(compressed)

	zr, err := zlib.NewReader(src)
	if err != nil {
		return nil, wrapErr(KindDecompressError, "opening zlib stream", err)
	}
	defer zr.Close()

	out := make([]byte, g.GrainSize)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, wrapErr(KindDecompressError, "inflating grain", err)
	}

	var extra [1]byte
	if n, err := zr.Read(extra[:]); n > 0 || (err != nil && err != io.EOF) {
		return nil, newErr(KindDecompressError, "inflated grain produced more than grain_size bytes")
	}
	if src.Len() > 0 {
		return nil, newErr(KindDecompressError, fmt.Sprintf("%d bytes of compressed payload left unconsumed", src.Len()))
	}

	return out, nil
}
