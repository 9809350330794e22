package vmdk

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHeaderVMDK(t *testing.T) {
	fx := buildSparseFixture()

	g, err := ParseHeader(fx.buf[:2048])
	require.NoError(t, err)
	require.Equal(t, SparseVmdk, g.Kind)
	require.Equal(t, int64(8192), g.GrainSize)
	require.Equal(t, int32(4), g.GrainTableEntries)
	require.Equal(t, int64(1), g.GrainDirectoryEntries)
	require.Equal(t, int64(32768), g.MaximumDataSize)
	require.Equal(t, int64(512), g.GrainTableBytes)
	require.Equal(t, int64(512), g.GrainDirectoryBytes)
	require.Equal(t, CompressionNone, g.Compression)
	require.False(t, g.HasMarkers())
}

func TestParseHeaderRejectsBadSignature(t *testing.T) {
	buf := make([]byte, 512)
	copy(buf, []byte("XXXX"))
	_, err := ParseHeader(buf)
	require.Error(t, err)

	var verr *Error
	require.ErrorAs(t, err, &verr)
	require.Equal(t, KindMalformedHeader, verr.Kind)
}

func TestParseHeaderRejectsTruncatedBuffer(t *testing.T) {
	_, err := ParseHeader(make([]byte, 10))
	require.Error(t, err)
	require.True(t, errorIsKind(err, KindMalformedHeader))
}

func TestParseHeaderRejectsBadEOLSentinels(t *testing.T) {
	fx := buildSparseFixture()
	buf := append([]byte(nil), fx.buf[:2048]...)
	buf[0x49] = 0x00 // corrupt single-EOL sentinel
	_, err := ParseHeader(buf)
	require.Error(t, err)
	require.True(t, errorIsKind(err, KindMalformedHeader))
}

func TestParseHeaderRejectsBadEOLSentinelsWithFlagBitClear(t *testing.T) {
	fx := buildSparseFixture()
	buf := append([]byte(nil), fx.buf[:2048]...)
	flags := binary.LittleEndian.Uint32(buf[8:12])
	binary.LittleEndian.PutUint32(buf[8:12], flags&^flagValidNewLineTest)
	buf[0x49] = 0x00 // corrupt single-EOL sentinel

	_, err := ParseHeader(buf)
	require.Error(t, err)
	require.True(t, errorIsKind(err, KindMalformedHeader))
}

func TestParseHeaderCOWD(t *testing.T) {
	buf, grainSize, _ := buildCowdFixture()

	g, err := ParseHeader(buf[:2048])
	require.NoError(t, err)
	require.Equal(t, SparseCowd, g.Kind)
	require.Equal(t, grainSize, g.GrainSize)
	require.Equal(t, int32(CowdGrainTableEntries), g.GrainTableEntries)
	require.Equal(t, CompressionNone, g.Compression)
}

func TestParseHeaderCowdRejectsZeroGrainSize(t *testing.T) {
	buf, _, _ := buildCowdFixture()
	binary.LittleEndian.PutUint32(buf[0x10:0x14], 0)

	_, err := ParseHeader(buf[:512])
	require.Error(t, err)
	require.True(t, errorIsKind(err, KindMalformedHeader))
}

func TestParseHeaderRejectsUnsupportedCompression(t *testing.T) {
	fx := buildSparseFixture()
	buf := append([]byte(nil), fx.buf[:2048]...)
	buf[0x4D] = 2 // neither 0 (none) nor 1 (deflate)
	_, err := ParseHeader(buf)
	require.Error(t, err)
	require.True(t, errorIsKind(err, KindUnsupportedFeature))
}

func errorIsKind(err error, kind ErrKind) bool {
	verr, ok := err.(*Error)
	return ok && verr.Kind == kind
}
