package vio

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"io"
)

type zeroesReader struct {
}

func (rdr *zeroesReader) Read(p []byte) (n int, err error) {

	if len(p) == 0 {
		return
	}
	p[0] = 0
	for bp := 1; bp < len(p); bp *= 2 {
		copy(p[bp:], p[:bp])
	}

	return len(p), nil
}

// Zeroes is an infinite io.Reader that fills any buffer handed to it with
// zero bytes. It doubles the already-zeroed prefix on every pass rather than
// writing one byte at a time, which keeps synthesizing a sparse region cheap
// even for large grains.
var Zeroes = io.Reader(&zeroesReader{})
