package vmdk

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"io"
	"os"
)

// IOAdapter is the only way this package touches storage (§4.J). Every
// extent, whatever file it came from, is read through one of these so the
// resolver never assumes a local filesystem: a caller can back an Extent
// with a network volume or an in-memory fixture by implementing this
// interface instead of handing over an *os.File.
type IOAdapter interface {
	// ReadAt fills p starting at off, exactly like io.ReaderAt. Short reads
	// without io.EOF are a caller bug, not a format detail; implementations
	// should behave like os.File.ReadAt.
	ReadAt(p []byte, off int64) (int, error)
	// Size reports the total addressable length of the underlying extent
	// file in bytes.
	Size() (int64, error)
	// Close releases any resources the adapter holds open.
	Close() error
}

// fileAdapter is the default IOAdapter, backed by a single local file.
type fileAdapter struct {
	f *os.File
}

// OpenFileAdapter opens path for reading and wraps it as an IOAdapter.
func OpenFileAdapter(path string) (IOAdapter, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapErr(KindIO, "opening extent file "+path, err)
	}
	return &fileAdapter{f: f}, nil
}

func (a *fileAdapter) ReadAt(p []byte, off int64) (int, error) {
	n, err := a.f.ReadAt(p, off)
	if err != nil && err != io.EOF {
		return n, wrapErr(KindIO, "reading extent data", err)
	}
	return n, err
}

func (a *fileAdapter) Size() (int64, error) {
	fi, err := a.f.Stat()
	if err != nil {
		return 0, wrapErr(KindIO, "statting extent file", err)
	}
	return fi.Size(), nil
}

func (a *fileAdapter) Close() error {
	if err := a.f.Close(); err != nil {
		return wrapErr(KindIO, "closing extent file", err)
	}
	return nil
}

// readFull reads exactly len(p) bytes at off, translating a short read at
// EOF into a malformed-structure error: every fixed-size structure this
// package reads (headers, grain directories, grain tables, markers) is
// expected to be fully present, so an early EOF always means the file is
// truncated, not that the caller asked for too much.
func readFull(a IOAdapter, p []byte, off int64, what string) error {
	n, err := a.ReadAt(p, off)
	if err == io.EOF && n == len(p) {
		err = nil
	}
	if err != nil {
		if err == io.EOF {
			return newErr(KindMalformedHeader, "truncated file reading "+what)
		}
		return err
	}
	if n != len(p) {
		return newErr(KindMalformedHeader, "truncated file reading "+what)
	}
	return nil
}
