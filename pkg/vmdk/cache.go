package vmdk

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	lru "github.com/hashicorp/golang-lru"
)

// Default bounded-cache sizes (§4.G). Neither bound is configurable through
// the public API yet; vmdkinfo never opens more than a handful of extents
// at once so the defaults are generous rather than tuned.
const (
	defaultGrainTableCacheSize = 16
	defaultGrainCacheSize      = 64
)

// gtableKey identifies one grain table within one extent's grain directory.
type gtableKey struct {
	extentID int
	gdIndex  int64
}

// grainKey identifies one decompressed grain within one extent.
type grainKey struct {
	extentID int
	gdIndex  int64
	gtIndex  int64
}

// grainTableCache memoizes decoded grain tables, each a []uint32 of
// per-grain physical sector pointers (§4.E). Loading a grain table means a
// seek plus a GrainTableBytes read off the I/O adapter; the cache exists so
// sequential reads within one grain group don't re-fetch it per grain.
type grainTableCache struct {
	lru *lru.Cache
}

func newGrainTableCache(size int) (*grainTableCache, error) {
	if size <= 0 {
		size = defaultGrainTableCacheSize
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, wrapErr(KindIO, "allocating grain table cache", err)
	}
	return &grainTableCache{lru: c}, nil
}

func (c *grainTableCache) get(key gtableKey) ([]uint32, bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return v.([]uint32), true
}

func (c *grainTableCache) add(key gtableKey, table []uint32) {
	c.lru.Add(key, table)
}

// decodedGrain is what the grain cache stores for one decompressed grain:
// the payload plus the empty-block detector's verdict on it (§4.F/§4.I), so
// a repeated hit on the same grain never re-runs the byte scan.
type decodedGrain struct {
	data     []byte
	isFill   bool
	fillByte byte
}

// grainCache memoizes decompressed, empty-block-checked grain payloads
// (§4.F/§4.G). Keyed per physical grain, not per extent, because callers
// re-reading the same grain at different virtual offsets within it (e.g.
// small unaligned reads) should hit without re-inflating the DEFLATE stream.
type grainCache struct {
	lru *lru.Cache
}

func newGrainCache(size int) (*grainCache, error) {
	if size <= 0 {
		size = defaultGrainCacheSize
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, wrapErr(KindIO, "allocating grain cache", err)
	}
	return &grainCache{lru: c}, nil
}

func (c *grainCache) get(key grainKey) (decodedGrain, bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		return decodedGrain{}, false
	}
	return v.(decodedGrain), true
}

func (c *grainCache) add(key grainKey, grain decodedGrain) {
	c.lru.Add(key, grain)
}
