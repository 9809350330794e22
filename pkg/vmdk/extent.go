package vmdk

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import "fmt"

// Extent is one segment of a virtual disk's address space, backed by one
// file through one IOAdapter (§3 "Extent"). A flat raw extent has no
// Geometry at all; a sparse extent (VMDK or COWD) carries the geometry
// ParseHeader derived plus the caches its grain lookups are memoized in.
type Extent struct {
	id int

	Kind          Kind
	VirtualOffset int64 // first virtual byte this extent covers
	VirtualSize   int64 // number of virtual bytes this extent covers

	geometry *Geometry // nil for FlatRaw
	io       IOAdapter

	gdir    []uint32 // decoded grain directory: sector offset per entry, 0 = sparse
	gtables *grainTableCache
	grains  *grainCache
}

func newSparseExtent(id int, virtualOffset int64, geometry *Geometry, io IOAdapter) (*Extent, error) {
	gtables, err := newGrainTableCache(defaultGrainTableCacheSize)
	if err != nil {
		return nil, err
	}
	grains, err := newGrainCache(defaultGrainCacheSize)
	if err != nil {
		return nil, err
	}
	return &Extent{
		id:            id,
		Kind:          geometry.Kind,
		VirtualOffset: virtualOffset,
		VirtualSize:   geometry.MaximumDataSize,
		geometry:      geometry,
		io:            io,
		gtables:       gtables,
		grains:        grains,
	}, nil
}

func newFlatExtent(id int, virtualOffset, size int64, io IOAdapter) *Extent {
	return &Extent{
		id:            id,
		Kind:          FlatRaw,
		VirtualOffset: virtualOffset,
		VirtualSize:   size,
		io:            io,
	}
}

// loadGrainDirectory reads and decodes the primary grain directory (§4.D).
// It must run once, after header parsing and before any grain lookup; the
// resolver calls it during the HeaderRead -> DirectoryLoaded transition.
func (e *Extent) loadGrainDirectory() error {
	if e.geometry == nil {
		return nil // FlatRaw has no index to load
	}
	g := e.geometry

	buf := make([]byte, g.GrainDirectoryBytes)
	if err := readFull(e.io, buf, g.PrimaryGDOffset, "grain directory"); err != nil {
		return err
	}

	entries, err := grainPointers(buf, int(g.GrainDirectoryEntries))
	if err != nil {
		return err
	}
	e.gdir = entries
	return nil
}

// grainTable returns the decoded grain table for grain-directory entry
// gdIndex, loading and caching it on first use (§4.E). A nil, nil result
// means the entire grain group is sparse: gdir[gdIndex] was 0.
func (e *Extent) grainTable(gdIndex int64) ([]uint32, error) {
	if gdIndex < 0 || gdIndex >= int64(len(e.gdir)) {
		return nil, newErr(KindOutOfBounds, fmt.Sprintf("grain directory index %d out of range (%d entries)", gdIndex, len(e.gdir)))
	}
	sector := e.gdir[gdIndex]
	if sector == 0 {
		return nil, nil
	}

	key := gtableKey{extentID: e.id, gdIndex: gdIndex}
	if table, ok := e.gtables.get(key); ok {
		return table, nil
	}

	g := e.geometry
	offset := int64(sector) * SectorSize
	buf := make([]byte, g.GrainTableBytes)
	if err := readFull(e.io, buf, offset, "grain table"); err != nil {
		return nil, err
	}

	table, err := grainPointers(buf, int(g.GrainTableEntries))
	if err != nil {
		return nil, err
	}
	e.gtables.add(key, table)
	return table, nil
}

// VerifyBackupDirectory re-reads the secondary (backup) grain directory, if
// one is present, and compares it entry-by-entry against the primary one
// already loaded. It is never called on the read path; it exists for
// diagnostic tooling that wants to confirm a stream-optimized image wasn't
// left with a stale backup copy after an interrupted write elsewhere.
func (e *Extent) VerifyBackupDirectory() error {
	if e.geometry == nil || e.geometry.SecondaryGDOffset == 0 {
		return nil
	}
	g := e.geometry

	buf := make([]byte, g.GrainDirectoryBytes)
	if err := readFull(e.io, buf, g.SecondaryGDOffset, "secondary grain directory"); err != nil {
		return err
	}

	backup, err := grainPointers(buf, int(g.GrainDirectoryEntries))
	if err != nil {
		return err
	}

	if len(backup) != len(e.gdir) {
		return newErr(KindMalformedHeader, fmt.Sprintf("backup grain directory has %d entries, primary has %d", len(backup), len(e.gdir)))
	}
	for i := range backup {
		if backup[i] != e.gdir[i] {
			return newErr(KindMalformedHeader, fmt.Sprintf("backup grain directory entry %d (sector %d) disagrees with primary (sector %d)", i, backup[i], e.gdir[i]))
		}
	}
	return nil
}
