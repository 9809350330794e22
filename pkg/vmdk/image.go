package vmdk

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/vorteil/vmdksparse/pkg/vio"
)

// headerProbeSize is how many bytes Open reads up front to identify and
// parse a sparse extent's header. 2048 covers both header variants'
// 512-byte structures plus slack; nothing in this package ever needs more
// of the header than that.
const headerProbeSize = 2048

// Lifecycle states an Image moves through exactly once, forward only (§4.H
// "state machine"). A failed transition leaves the Image unusable; every
// public method checks it first. Stored as a plain int32 so it can be
// loaded and stored atomically without a second lock nested inside mu.
const (
	stateUninitialized int32 = iota
	stateHeaderRead
	stateDirectoryLoaded
	stateReadReady
	stateClosed
)

// ExtentSource describes one extent to be opened, in virtual-address order.
// Kind selects how Open interprets it: SparseVmdk and SparseCowd extents
// are identified by reading and validating their own on-disk signature, and
// Open fails if that signature does not match the declared Kind; FlatRaw
// extents are addressed byte-for-byte with no on-disk index.
type ExtentSource struct {
	IO   IOAdapter
	Kind Kind
}

// Image is a read-only view over a virtual disk built from one or more
// extents (§2 "Data model"). It implements the Random-Access Resolver
// (§4.H): offset-ordered extents, binary-searched per read, fused across an
// arbitrary byte range with zero-filled sparse grains synthesized in place.
type Image struct {
	mu      sync.Mutex
	state   int32
	extents []*Extent
	size    int64
	offset  int64
	aborted int32
}

// Open builds an Image from sources, in the order given, and drives it
// through every lifecycle state up to ReadReady. Sources are assigned
// contiguous, back-to-back virtual offsets in the order supplied; there is
// no gap or overlap to validate because Open is what assigns the offsets.
func Open(sources []ExtentSource) (*Image, error) {
	if len(sources) == 0 {
		return nil, newErr(KindInvalidArgument, "no extents supplied")
	}

	img := &Image{state: stateUninitialized}

	var cursor int64
	for i, src := range sources {
		if src.IO == nil {
			return nil, newErr(KindInvalidArgument, fmt.Sprintf("extent %d has a nil IOAdapter", i))
		}

		ext, err := openExtent(i, cursor, src)
		if err != nil {
			return nil, err
		}
		img.extents = append(img.extents, ext)
		cursor += ext.VirtualSize
	}
	atomic.StoreInt32(&img.state, stateHeaderRead)

	for _, ext := range img.extents {
		if err := ext.loadGrainDirectory(); err != nil {
			return nil, err
		}
	}
	atomic.StoreInt32(&img.state, stateDirectoryLoaded)

	img.size = cursor
	atomic.StoreInt32(&img.state, stateReadReady)

	return img, nil
}

func openExtent(id int, virtualOffset int64, src ExtentSource) (*Extent, error) {
	if src.Kind == FlatRaw {
		size, err := src.IO.Size()
		if err != nil {
			return nil, err
		}
		return newFlatExtent(id, virtualOffset, size, src.IO), nil
	}

	probe := make([]byte, headerProbeSize)
	n, err := src.IO.ReadAt(probe, 0)
	if err != nil && n < SectorSize {
		return nil, wrapErr(KindIO, fmt.Sprintf("reading header of extent %d", id), err)
	}
	probe = probe[:n]

	geometry, err := ParseHeader(probe)
	if err != nil {
		return nil, err
	}
	if src.Kind != geometry.Kind {
		return nil, newErr(KindMalformedHeader, fmt.Sprintf("extent %d: declared kind does not match on-disk signature", id))
	}

	return newSparseExtent(id, virtualOffset, geometry, src.IO)
}

// Size returns the total virtual disk size in bytes.
func (img *Image) Size() (int64, error) {
	if err := img.checkOpen(); err != nil {
		return 0, err
	}
	return img.size, nil
}

// SignalAbort requests cooperative cancellation of any in-progress
// multi-grain read (§4.H). It is safe to call from another goroutine; the
// next grain boundary a read loop crosses observes it and returns
// ErrAborted. ReadAt also checks it before its first grain, so while the
// flag is set every read, single-grain reads included, returns ErrAborted.
func (img *Image) SignalAbort() {
	atomic.StoreInt32(&img.aborted, 1)
}

// ClearAbort resets a prior SignalAbort so the Image can service reads
// again. SignalAbort is sticky on purpose (a caller that tears down a read
// loop shouldn't have to race a clear against it), so resuming use is an
// explicit, separate call.
func (img *Image) ClearAbort() {
	atomic.StoreInt32(&img.aborted, 0)
}

func (img *Image) isAborted() bool {
	return atomic.LoadInt32(&img.aborted) != 0
}

// Close releases every extent's IOAdapter and transitions the Image to its
// terminal state. Calling Close again returns nil; every other method
// returns ErrClosed afterwards.
func (img *Image) Close() error {
	img.mu.Lock()
	defer img.mu.Unlock()

	if atomic.LoadInt32(&img.state) == stateClosed {
		return nil
	}
	var firstErr error
	for _, ext := range img.extents {
		if err := ext.io.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	atomic.StoreInt32(&img.state, stateClosed)
	return firstErr
}

func (img *Image) checkOpen() error {
	s := atomic.LoadInt32(&img.state)
	if s != stateReadReady {
		if s == stateClosed {
			return ErrClosed
		}
		return newErr(KindClosed, "image is not in a readable state")
	}
	return nil
}

// extentForOffset locates the extent covering virtual byte off using a
// binary search over extent end offsets (§4.H), mirroring the
// std::upper_bound-style lookup a fused multi-extent reader needs so a
// single ReadAt spanning extent boundaries never degrades to a linear scan.
func (img *Image) extentForOffset(off int64) (*Extent, error) {
	n := len(img.extents)
	idx := sort.Search(n, func(i int) bool {
		return img.extents[i].VirtualOffset+img.extents[i].VirtualSize > off
	})
	if idx == n || off < img.extents[idx].VirtualOffset {
		return nil, newErr(KindOutOfBounds, fmt.Sprintf("offset %d has no covering extent", off))
	}
	return img.extents[idx], nil
}

// ReadAt implements io.ReaderAt over the fused virtual address space,
// synthesizing zeroes for sparse grains and crossing extent boundaries
// transparently (§8 scenario S3/S5). It checks for SignalAbort once per
// grain (or flat-extent chunk) crossed, never mid-grain.
func (img *Image) ReadAt(p []byte, off int64) (int, error) {
	if err := img.checkOpen(); err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, ErrOutOfBounds
	}
	if off >= img.size {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, newErr(KindOutOfBounds, fmt.Sprintf("offset %d is past media size %d", off, img.size))
	}

	total := 0
	for total < len(p) {
		if img.isAborted() {
			return total, ErrAborted
		}

		cur := off + int64(total)
		if cur >= img.size {
			break
		}

		ext, err := img.extentForOffset(cur)
		if err != nil {
			return total, err
		}

		n, err := readFromExtent(ext, cur-ext.VirtualOffset, p[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
	}

	return total, nil
}

// readFromExtent services one contiguous chunk of a read from a single
// extent, never crossing a grain boundary on the sparse path so the caller
// can re-check SignalAbort between calls.
func readFromExtent(ext *Extent, localOff int64, p []byte) (int, error) {
	max := ext.VirtualSize - localOff
	if max <= 0 {
		return 0, nil
	}
	want := int64(len(p))
	if want > max {
		want = max
	}

	if ext.geometry == nil {
		n, err := ext.io.ReadAt(p[:want], localOff)
		return n, err
	}

	g := ext.geometry
	grainsPerTable := int64(g.GrainTableEntries)
	grainIndex := localOff / g.GrainSize
	grainOffset := localOff % g.GrainSize
	gdIndex := grainIndex / grainsPerTable
	gtIndex := grainIndex % grainsPerTable

	chunk := g.GrainSize - grainOffset
	if chunk > want {
		chunk = want
	}

	grain, isFill, fillByte, err := ext.readGrain(gdIndex, gtIndex)
	if err != nil {
		return 0, err
	}
	if isFill {
		if fillByte == 0 {
			n, _ := io.ReadFull(vio.Zeroes, p[:chunk])
			return n, nil
		}
		for i := int64(0); i < chunk; i++ {
			p[i] = fillByte
		}
		return int(chunk), nil
	}
	copy(p[:chunk], grain[grainOffset:grainOffset+chunk])
	return int(chunk), nil
}

// Seek and Read give *Image the familiar io.ReadSeeker shape over the
// random-access ReadAt core, for callers that want streaming rather than
// positional access.
func (img *Image) Seek(offset int64, whence int) (int64, error) {
	img.mu.Lock()
	defer img.mu.Unlock()

	if err := img.checkOpen(); err != nil {
		return 0, err
	}

	var next int64
	switch whence {
	case 0:
		next = offset
	case 1:
		next = img.offset + offset
	case 2:
		next = img.size + offset
	default:
		return 0, newErr(KindInvalidArgument, "invalid whence")
	}
	if next < 0 || next > img.size {
		return 0, ErrOutOfBounds
	}
	img.offset = next
	return next, nil
}

func (img *Image) Read(p []byte) (int, error) {
	img.mu.Lock()
	off := img.offset
	img.mu.Unlock()

	n, err := img.ReadAt(p, off)

	img.mu.Lock()
	img.offset += int64(n)
	img.mu.Unlock()

	return n, err
}
