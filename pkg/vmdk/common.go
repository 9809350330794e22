package vmdk

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

// On-disk constants shared by both sparse header variants (§6). The two
// signatures are matched against the raw 4-byte prefix, not as integers —
// the libvmdk reference implementation stores and compares the COWD magic
// as the literal ASCII string, and getting its byte order right as an
// integer constant is a classic off-by-endian trap.
var (
	vmdkSignature = [4]byte{'K', 'D', 'M', 'V'}
	cowdSignature = [4]byte{'C', 'O', 'W', 'D'}
)

const (
	// VMDKMagic is "KDMV" read as a little-endian uint32, kept for callers
	// that already have a decoded uint32 (e.g. a fast-path dispatch).
	VMDKMagic = 0x564d444b
	// SectorSize is the fixed on-disk sector width every "number of
	// sectors" field is expressed in.
	SectorSize = 0x200
	// CowdGrainTableEntries is the grain-table entry count COWD images
	// always use; the VMDK variant carries its own value in the header.
	CowdGrainTableEntries = 4096
)

// Compression identifies how an extent's allocated grains are stored on
// disk.
type Compression int

const (
	// CompressionNone means a grain's physical payload is exactly
	// grain_size bytes, copied verbatim.
	CompressionNone Compression = iota
	// CompressionDeflate means a grain's physical payload is a 12-byte
	// marker followed by a DEFLATE (zlib-framed) stream.
	CompressionDeflate
)

// Kind distinguishes the three extent encodings an Image may be built from.
// Only the two sparse kinds are implemented end to end; FlatRaw is a
// pass-through the resolver special-cases.
type Kind int

const (
	// SparseVmdk is the modern "KDMV" sparse variant, optionally
	// stream-optimized (compressed, marker-delimited grains).
	SparseVmdk Kind = iota
	// SparseCowd is the legacy "COWD" sparse variant used by very old
	// VMware products and some emulators.
	SparseCowd
	// FlatRaw is an extent with no index at all: virtual offset equals
	// physical offset.
	FlatRaw
)

// VMDK header flag bits (§6). header.go reads each field at its documented
// byte offset through byteReader rather than overlaying a Go struct on the
// buffer, so the wire layout lives only in header.go's field offsets (the
// layout table in §6 is the normative reference).

const (
	flagValidNewLineTest = 1 << 0
	flagUseSecondaryGD   = 1 << 1
	flagCompressedGrains = 1 << 16
	flagMarkersPresent   = 1 << 17
)
