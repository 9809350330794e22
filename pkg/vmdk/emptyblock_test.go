package vmdk

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"bytes"
	"testing"
)

func TestIsEmptyBlock(t *testing.T) {
	cases := []struct {
		name string
		buf  []byte
		want bool
	}{
		{"empty slice", nil, true},
		{"single byte", []byte{0x42}, true},
		{"all zero, word aligned", bytes.Repeat([]byte{0}, 8192), true},
		{"all fill, unaligned length", bytes.Repeat([]byte{0x7F}, 8191), true},
		{"one differing byte at start", append([]byte{0x01}, bytes.Repeat([]byte{0}, 8191)...), false},
		{"one differing byte at end", append(bytes.Repeat([]byte{0}, 8191), 0x01), false},
		{"one differing byte in the middle", func() []byte {
			b := bytes.Repeat([]byte{0x55}, 4096)
			b[2048] = 0x56
			return b
		}(), false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := isEmptyBlock(c.buf)
			if got != c.want {
				t.Fatalf("isEmptyBlock(%s) = %v, want %v", c.name, got, c.want)
			}
		})
	}
}
