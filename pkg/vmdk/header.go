package vmdk

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"fmt"
)

// Geometry holds everything downstream components need to navigate a
// sparse extent, normalized to bytes (§3 "Header-derived geometry"). It is
// immutable once returned from ParseHeader — callers pass it by value or
// hold a borrowed pointer; nothing in this package mutates it after parse.
type Geometry struct {
	Kind Kind

	MaximumDataSize int64 // bytes; total virtual span this extent's index covers

	GrainSize             int64 // bytes per grain
	GrainTableEntries     int32 // pointers per grain table
	GrainDirectoryEntries int64 // grain-directory entries covering MaximumDataSize

	GrainTableBytes     int64 // grain_table_entries*4, rounded up to SectorSize
	GrainDirectoryBytes int64 // grain_directory_entries*4, rounded up to SectorSize

	PrimaryGDOffset   int64 // bytes
	SecondaryGDOffset int64 // bytes; 0 if absent

	DescriptorOffset int64 // bytes; 0 if absent (e.g. COWD, or descriptor lives in a separate file)
	DescriptorSize   int64 // bytes

	Compression Compression
	Flags       uint32
	IsDirty     bool

	// HeaderEnd is the first byte offset a grain is allowed to start at
	// (invariant 1 in §3): the end of the metadata region for VMDK, which
	// also holds the grain directories and tables, and the end of the
	// 512-byte header for COWD.
	HeaderEnd int64
}

// HasMarkers reports whether this extent's allocated grains are prefixed
// with the 12-byte {lba, data_size} marker described in §6. Stream-optimized
// VMDK images (compressed + markers-present) use markers; everything else
// stores raw grain_size-byte payloads.
func (g *Geometry) HasMarkers() bool {
	return g.Kind == SparseVmdk && g.Compression == CompressionDeflate && g.Flags&flagMarkersPresent != 0
}

func roundUp512(n int64) int64 {
	if n%SectorSize == 0 {
		return n
	}
	return (n/SectorSize + 1) * SectorSize
}

func ceilDiv(a, b int64) int64 {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// ParseHeader reads the first 4 bytes of buf to identify the sparse header
// variant, then parses and validates the rest (§4.B). buf must contain at
// least 512 bytes; a 2048-byte buffer is large enough for either variant's
// full header plus padding and is the size the resolver reads up front.
func ParseHeader(buf []byte) (*Geometry, error) {
	if len(buf) < SectorSize {
		return nil, newErr(KindMalformedHeader, fmt.Sprintf("header buffer too small: %d bytes", len(buf)))
	}

	r := newByteReader(buf)
	sig, err := r.bytes4(0)
	if err != nil {
		return nil, err
	}

	switch sig {
	case vmdkSignature:
		return parseVMDKHeader(r)
	case cowdSignature:
		return parseCOWDHeader(r)
	default:
		return nil, newErr(KindMalformedHeader, fmt.Sprintf("unrecognized signature %q", sig))
	}
}

func parseVMDKHeader(r *byteReader) (*Geometry, error) {
	version, err := r.u32(4)
	if err != nil {
		return nil, err
	}
	if version != 1 && version != 2 && version != 3 {
		return nil, newErr(KindUnsupportedFeature, fmt.Sprintf("unsupported VMDK header version %d", version))
	}

	flags, err := r.u32(8)
	if err != nil {
		return nil, err
	}
	capacitySectors, err := r.u64(0x0C)
	if err != nil {
		return nil, err
	}
	grainSectors, err := r.u64(0x14)
	if err != nil {
		return nil, err
	}
	descriptorSector, err := r.u64(0x1C)
	if err != nil {
		return nil, err
	}
	descriptorSectors, err := r.u64(0x24)
	if err != nil {
		return nil, err
	}
	gtEntries, err := r.u32(0x2C)
	if err != nil {
		return nil, err
	}
	secondaryGDSector, err := r.u64(0x30)
	if err != nil {
		return nil, err
	}
	primaryGDSector, err := r.u64(0x38)
	if err != nil {
		return nil, err
	}
	overheadSectors, err := r.u64(0x40)
	if err != nil {
		return nil, err
	}
	isDirty, err := r.u8(0x48)
	if err != nil {
		return nil, err
	}
	singleEOL, err := r.u8(0x49)
	if err != nil {
		return nil, err
	}
	nonEOL, err := r.u8(0x4A)
	if err != nil {
		return nil, err
	}
	doubleEOL1, err := r.u8(0x4B)
	if err != nil {
		return nil, err
	}
	doubleEOL2, err := r.u8(0x4C)
	if err != nil {
		return nil, err
	}
	compressionMethod, err := r.u16(0x4D)
	if err != nil {
		return nil, err
	}

	if singleEOL != 0x0A {
		return nil, newErr(KindMalformedHeader, fmt.Sprintf("single-EOL sentinel byte is 0x%02x, want 0x0a", singleEOL))
	}
	if nonEOL != 0x20 {
		return nil, newErr(KindMalformedHeader, fmt.Sprintf("non-EOL sentinel byte is 0x%02x, want 0x20", nonEOL))
	}
	if doubleEOL1 != 0x0D || doubleEOL2 != 0x0A {
		return nil, newErr(KindMalformedHeader, fmt.Sprintf("double-EOL sentinel bytes are 0x%02x 0x%02x, want 0x0d 0x0a", doubleEOL1, doubleEOL2))
	}

	var compression Compression
	switch compressionMethod {
	case 0:
		compression = CompressionNone
	case 1:
		compression = CompressionDeflate
	default:
		return nil, newErr(KindUnsupportedFeature, fmt.Sprintf("unsupported compression method %d", compressionMethod))
	}

	if grainSectors <= 8 || grainSectors%2 != 0 {
		return nil, newErr(KindMalformedHeader, fmt.Sprintf("grain size %d sectors must be > 8 and even", grainSectors))
	}
	if gtEntries == 0 || gtEntries > 1<<31-1 {
		return nil, newErr(KindMalformedHeader, fmt.Sprintf("grain table entry count %d out of range", gtEntries))
	}

	grainSize := int64(grainSectors) * SectorSize
	maxDataSize := int64(capacitySectors) * SectorSize
	gdEntries := ceilDiv(maxDataSize, int64(gtEntries)*grainSize)

	g := &Geometry{
		Kind:                  SparseVmdk,
		MaximumDataSize:       maxDataSize,
		GrainSize:             grainSize,
		GrainTableEntries:     int32(gtEntries),
		GrainDirectoryEntries: gdEntries,
		GrainTableBytes:       roundUp512(int64(gtEntries) * 4),
		GrainDirectoryBytes:   roundUp512(gdEntries * 4),
		PrimaryGDOffset:       int64(primaryGDSector) * SectorSize,
		Compression:           compression,
		Flags:                 flags,
		IsDirty:               isDirty != 0,
		HeaderEnd:             int64(overheadSectors) * SectorSize,
		DescriptorSize:        int64(descriptorSectors) * SectorSize,
	}
	if descriptorSector != 0 {
		g.DescriptorOffset = int64(descriptorSector) * SectorSize
	}
	if flags&flagUseSecondaryGD != 0 && secondaryGDSector != 0 {
		g.SecondaryGDOffset = int64(secondaryGDSector) * SectorSize
	}

	return g, nil
}

func parseCOWDHeader(r *byteReader) (*Geometry, error) {
	_, err := r.u32(4) // version: accepted as-is, COWD has no documented version gate
	if err != nil {
		return nil, err
	}
	flags, err := r.u32(8)
	if err != nil {
		return nil, err
	}
	maxDataSectors, err := r.u32(0x0C)
	if err != nil {
		return nil, err
	}
	grainSectors, err := r.u32(0x10)
	if err != nil {
		return nil, err
	}
	primaryGDSector, err := r.u32(0x14)
	if err != nil {
		return nil, err
	}
	gdEntryCount, err := r.u32(0x18)
	if err != nil {
		return nil, err
	}

	if grainSectors == 0 {
		return nil, newErr(KindMalformedHeader, "grain size must be > 0")
	}

	grainSize := int64(grainSectors) * SectorSize
	maxDataSize := int64(maxDataSectors) * SectorSize

	_ = gdEntryCount // on-disk value is advisory; we derive it ourselves below

	gdEntries := ceilDiv(maxDataSize, int64(CowdGrainTableEntries)*grainSize)

	g := &Geometry{
		Kind:                  SparseCowd,
		MaximumDataSize:       maxDataSize,
		GrainSize:             grainSize,
		GrainTableEntries:     CowdGrainTableEntries,
		GrainDirectoryEntries: gdEntries,
		GrainTableBytes:       roundUp512(CowdGrainTableEntries * 4),
		GrainDirectoryBytes:   roundUp512(gdEntries * 4),
		PrimaryGDOffset:       int64(primaryGDSector) * SectorSize,
		Compression:           CompressionNone,
		Flags:                 flags,
		HeaderEnd:             SectorSize,
	}

	return g, nil
}
