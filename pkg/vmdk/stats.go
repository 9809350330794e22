package vmdk

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

// Progress receives incremental progress updates while a Scan walks a
// potentially large grain index. It is satisfied by elog.Progress without
// this package importing elog: the core stays a silent library and only
// reports counts, leaving formatting and terminal output to the caller.
type Progress interface {
	Increment(n int64)
}

func tick(p Progress) {
	if p != nil {
		p.Increment(1)
	}
}

// GrainStats summarizes one extent's allocation, from an exhaustive scan of
// its grain directory and tables.
type GrainStats struct {
	ExtentID        int
	GrainSize       int64
	TotalGrains     int64
	SparseGrains    int64
	AllocatedGrains int64
	// EmptyGrains counts allocated grains whose decoded payload is a single
	// repeated fill byte (§4.I). These are grains a writer materialized
	// without ever storing real data in them, distinct from SparseGrains,
	// which were never allocated at all.
	EmptyGrains int64
}

// GrainCount returns the total number of grain slots this extent's index
// covers, without reading any of them. It lets a caller size a progress bar
// for Scan before paying for a single I/O.
func (ext *Extent) GrainCount() int64 {
	if ext.geometry == nil {
		return 0
	}
	return ext.geometry.GrainDirectoryEntries * int64(ext.geometry.GrainTableEntries)
}

// Scan walks every grain directory and grain table entry of ext, decoding
// and fill-checking each allocated grain. It is an exhaustive, single-pass
// operation intended for diagnostic tooling (cmd/vmdkinfo), not the hot
// read path: a large thin-provisioned disk can have millions of grains.
// progress, if non-nil, is ticked once per grain slot visited, sparse or
// allocated.
func (ext *Extent) Scan(progress Progress) (GrainStats, error) {
	stats := GrainStats{ExtentID: ext.id}
	if ext.geometry == nil {
		return stats, nil // FlatRaw has no grain index to scan
	}
	g := ext.geometry
	stats.GrainSize = g.GrainSize
	stats.TotalGrains = ext.GrainCount()

	for gdIndex := int64(0); gdIndex < int64(len(ext.gdir)); gdIndex++ {
		table, err := ext.grainTable(gdIndex)
		if err != nil {
			return stats, err
		}
		if table == nil {
			stats.SparseGrains += int64(g.GrainTableEntries)
			for i := int32(0); i < g.GrainTableEntries; i++ {
				tick(progress)
			}
			continue
		}
		for gtIndex := range table {
			grain, isFill, _, err := ext.readGrain(gdIndex, int64(gtIndex))
			if err != nil {
				return stats, err
			}
			if grain == nil {
				stats.SparseGrains++
			} else {
				stats.AllocatedGrains++
				if isFill || isEmptyBlock(grain) {
					stats.EmptyGrains++
				}
			}
			tick(progress)
		}
	}

	return stats, nil
}

// VerifyBackupDirectory runs Extent.VerifyBackupDirectory over every extent
// that carries a secondary grain directory, returning the first mismatch
// found. It is debug tooling, not a correctness requirement of Open.
func (img *Image) VerifyBackupDirectory() error {
	if err := img.checkOpen(); err != nil {
		return err
	}
	for _, ext := range img.extents {
		if err := ext.VerifyBackupDirectory(); err != nil {
			return err
		}
	}
	return nil
}

// GrainCount sums GrainCount across every extent, for sizing a progress bar
// before calling Scan.
func (img *Image) GrainCount() (int64, error) {
	if err := img.checkOpen(); err != nil {
		return 0, err
	}
	var total int64
	for _, ext := range img.extents {
		total += ext.GrainCount()
	}
	return total, nil
}

// Scan runs Extent.Scan over every extent in the image, in virtual order.
// progress, if non-nil, is ticked once per grain slot visited across every
// extent; its total should be img.GrainCount().
func (img *Image) Scan(progress Progress) ([]GrainStats, error) {
	if err := img.checkOpen(); err != nil {
		return nil, err
	}
	out := make([]GrainStats, 0, len(img.extents))
	for _, ext := range img.extents {
		s, err := ext.Scan(progress)
		if err != nil {
			return out, err
		}
		out = append(out, s)
	}
	return out, nil
}
