package vmdk

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"encoding/binary"
	"fmt"
)

// byteReader is a small bounds-checked little-endian field extractor over a
// fixed buffer. It exists so header parsing never panics on a truncated or
// hostile file: every extraction checks its slice bounds up front and
// returns a *Error instead of letting a slice index panic escape to the
// caller.
type byteReader struct {
	buf []byte
}

func newByteReader(buf []byte) *byteReader {
	return &byteReader{buf: buf}
}

func (r *byteReader) slice(offset, length int) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > len(r.buf) {
		return nil, newErr(KindMalformedHeader,
			fmt.Sprintf("field at offset %d length %d exceeds buffer of %d bytes", offset, length, len(r.buf)))
	}
	return r.buf[offset : offset+length], nil
}

func (r *byteReader) u8(offset int) (uint8, error) {
	b, err := r.slice(offset, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *byteReader) u16(offset int) (uint16, error) {
	b, err := r.slice(offset, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *byteReader) u32(offset int) (uint32, error) {
	b, err := r.slice(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *byteReader) u64(offset int) (uint64, error) {
	b, err := r.slice(offset, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *byteReader) bytes4(offset int) ([4]byte, error) {
	var out [4]byte
	b, err := r.slice(offset, 4)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

// grainPointers decodes a packed little-endian uint32 array of count
// entries starting at the beginning of buf. Used by both the grain-directory and
// grain-table loaders (§4.D/§4.E) — the two are the same on-disk shape.
func grainPointers(buf []byte, count int) ([]uint32, error) {
	need := count * 4
	if need > len(buf) {
		return nil, newErr(KindMalformedHeader,
			fmt.Sprintf("pointer array of %d entries needs %d bytes, only %d available", count, need, len(buf)))
	}
	out := make([]uint32, count)
	for i := 0; i < count; i++ {
		out[i] = binary.LittleEndian.Uint32(buf[i*4 : i*4+4])
	}
	return out, nil
}
