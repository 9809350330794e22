package vmdk

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import "encoding/binary"

// isEmptyBlock reports whether every byte of buf equals buf[0] (§4.I). It is
// ported from libvmdk_extent_file_check_for_empty_block: that function
// compares the first byte against the rest one word at a time once the
// buffer is long enough to do so, falling back to a byte loop for the
// remainder. A grain that passes this check can be represented as a single
// fill byte instead of grain_size bytes of storage.
func isEmptyBlock(buf []byte) bool {
	if len(buf) == 0 {
		return true
	}
	fill := buf[0]
	i := 0

	if len(buf) >= 8 {
		var word uint64
		for j := 0; j < 8; j++ {
			word = word<<8 | uint64(fill)
		}
		for ; i+8 <= len(buf); i += 8 {
			if binary.LittleEndian.Uint64(buf[i:i+8]) != word {
				return false
			}
		}
	}

	for ; i < len(buf); i++ {
		if buf[i] != fill {
			return false
		}
	}
	return true
}
