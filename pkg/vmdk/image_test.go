package vmdk

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func openFixture(t *testing.T) *Image {
	t.Helper()
	fx := buildSparseFixture()
	img, err := Open([]ExtentSource{
		{IO: newMemAdapter(fx.buf), Kind: SparseVmdk},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = img.Close() })
	return img
}

func TestOpenAndSize(t *testing.T) {
	img := openFixture(t)
	size, err := img.Size()
	require.NoError(t, err)
	require.Equal(t, int64(32768), size)
}

func TestReadAtWholeGrains(t *testing.T) {
	img := openFixture(t)
	fx := buildSparseFixture()

	for grain := int64(0); grain < fx.totalGrains; grain++ {
		buf := make([]byte, fx.grainSize)
		n, err := img.ReadAt(buf, grain*fx.grainSize)
		require.NoError(t, err)
		require.Equal(t, len(buf), n)
		require.True(t, bytes.Equal(buf, fx.grainBytes[grain]), "grain %d mismatch", grain)
	}
}

func TestReadAtCrossesGrainBoundary(t *testing.T) {
	img := openFixture(t)
	fx := buildSparseFixture()

	// Read spanning the end of allocated grain 0 and the start of sparse
	// grain 1.
	buf := make([]byte, 256)
	off := fx.grainSize - 128
	n, err := img.ReadAt(buf, off)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)

	require.Equal(t, fx.grainBytes[0][fx.grainSize-128:], buf[:128])
	require.Equal(t, make([]byte, 128), buf[128:])
}

func TestReadAtRejectsOutOfBounds(t *testing.T) {
	img := openFixture(t)
	size, err := img.Size()
	require.NoError(t, err)

	buf := make([]byte, 16)
	_, err = img.ReadAt(buf, size+1)
	require.Error(t, err)
	require.True(t, errorIsKind(err, KindOutOfBounds))

	_, err = img.ReadAt(buf, -1)
	require.Error(t, err)
}

func TestSignalAbortStopsMultiGrainRead(t *testing.T) {
	img := openFixture(t)
	fx := buildSparseFixture()

	img.SignalAbort()
	buf := make([]byte, fx.grainSize*2)
	_, err := img.ReadAt(buf, 0)
	require.Error(t, err)
	require.True(t, errorIsKind(err, KindAborted))

	img.ClearAbort()
	n, err := img.ReadAt(buf, 0)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
}

func TestCloseIsIdempotentAndBlocksFurtherReads(t *testing.T) {
	img := openFixture(t)
	require.NoError(t, img.Close())
	require.NoError(t, img.Close())

	_, err := img.ReadAt(make([]byte, 1), 0)
	require.Error(t, err)
	require.True(t, errorIsKind(err, KindClosed))
}

func TestMultiExtentReadFusesFlatAndSparse(t *testing.T) {
	fx := buildSparseFixture()

	flatData := bytes.Repeat([]byte{0xEE}, 4096)
	img, err := Open([]ExtentSource{
		{IO: newMemAdapter(flatData), Kind: FlatRaw},
		{IO: newMemAdapter(fx.buf), Kind: SparseVmdk},
	})
	require.NoError(t, err)
	defer img.Close()

	size, err := img.Size()
	require.NoError(t, err)
	require.Equal(t, int64(len(flatData))+int64(32768), size)

	// Read straddling the boundary between the flat extent and the sparse
	// extent's first (allocated) grain.
	buf := make([]byte, 32)
	n, err := img.ReadAt(buf, int64(len(flatData)-16))
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.Equal(t, bytes.Repeat([]byte{0xEE}, 16), buf[:16])
	require.Equal(t, fx.grainBytes[0][:16], buf[16:])
}

func TestSeekAndRead(t *testing.T) {
	img := openFixture(t)
	fx := buildSparseFixture()

	pos, err := img.Seek(fx.grainSize, 0)
	require.NoError(t, err)
	require.Equal(t, fx.grainSize, pos)

	buf := make([]byte, 64)
	n, err := img.Read(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.Equal(t, make([]byte, 64), buf) // grain 1 is sparse
}
