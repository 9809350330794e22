package vmdkdesc

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// The descriptor file vmdk pairs use a handful of section markers and one
// line grammar for extent entries; the patterns below mirror the ones a
// reference Go VMDK reader matches against, not a general INI parser.
var (
	startDiskDescriptorRegex = regexp.MustCompile(`^# Disk DescriptorFile`)
	startExtentRegex         = regexp.MustCompile(`^# Extent description`)
	startDiskDatabaseRegex   = regexp.MustCompile(`^# The Disk Data Base`)
	extentLineRegex          = regexp.MustCompile(`^(RW|RDONLY|NOACCESS) (\d+) (FLAT|SPARSE|ZERO|VMFS|VMFSSPARSE|VMFSRDM|VMFSRAW) "([^"]+)"(?: (\d+))?`)
	kvLineRegex              = regexp.MustCompile(`^([\w.]+)\s*=\s*"?([^"]*?)"?\s*$`)
)

// ExtentAccess mirrors the access keyword on an extent description line.
type ExtentAccess string

const (
	AccessReadWrite  ExtentAccess = "RW"
	AccessReadOnly   ExtentAccess = "RDONLY"
	AccessNoAccess   ExtentAccess = "NOACCESS"
)

// ExtentType is the on-disk encoding keyword an extent line names.
type ExtentType string

const (
	ExtentFlat       ExtentType = "FLAT"
	ExtentSparse     ExtentType = "SPARSE"
	ExtentZero       ExtentType = "ZERO"
	ExtentVMFS       ExtentType = "VMFS"
	ExtentVMFSSparse ExtentType = "VMFSSPARSE"
	ExtentVMFSRDM    ExtentType = "VMFSRDM"
	ExtentVMFSRaw    ExtentType = "VMFSRAW"
)

// ExtentLine is one parsed "# Extent description" entry.
type ExtentLine struct {
	Access     ExtentAccess
	Sectors    int64
	Type       ExtentType
	Filename   string
	// StartSector is only present on FLAT/VMFS extents that describe an
	// offset into a shared backing file; it is 0 when absent.
	StartSector int64
}

// Descriptor is the parsed contents of a VMDK descriptor file: the
// key/value header fields and the ordered list of extent lines (§2 "Data
// model", descriptor metadata). A descriptor can live embedded inside a
// sparse extent's own DescriptorOffset/DescriptorSize region or as a
// free-standing ".vmdk" text file paired with one or more ".vmdk"/"-flat"
// data files; this package doesn't care which, it only parses bytes.
type Descriptor struct {
	Fields  map[string]string
	Extents []ExtentLine
}

// Parse reads a descriptor file from r. Lines are grouped by the "#"
// section markers that precede them; every line outside the extent section
// (before "# Extent description" or in the disk database after it) that
// matches key = value is stored as a field.
func Parse(r io.Reader) (*Descriptor, error) {
	d := &Descriptor{Fields: make(map[string]string)}

	inExtents := false
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case startDiskDescriptorRegex.MatchString(line):
			continue
		case startExtentRegex.MatchString(line):
			inExtents = true
			continue
		case startDiskDatabaseRegex.MatchString(line):
			inExtents = false
			continue
		case strings.HasPrefix(line, "#"):
			continue
		}

		if inExtents {
			m := extentLineRegex.FindStringSubmatch(line)
			if m == nil {
				// The Disk Data Base section also appears after extent
				// lines without its own marker line in some writers; a
				// non-matching line just means we've left the section.
				inExtents = false
			} else {
				sectors, err := strconv.ParseInt(m[2], 10, 64)
				if err != nil {
					return nil, errors.Wrapf(err, "line %d: extent sector count", lineNo)
				}
				ext := ExtentLine{
					Access:   ExtentAccess(m[1]),
					Sectors:  sectors,
					Type:     ExtentType(m[3]),
					Filename: m[4],
				}
				if m[5] != "" {
					start, err := strconv.ParseInt(m[5], 10, 64)
					if err != nil {
						return nil, errors.Wrapf(err, "line %d: extent start sector", lineNo)
					}
					ext.StartSector = start
				}
				d.Extents = append(d.Extents, ext)
				continue
			}
		}

		if m := kvLineRegex.FindStringSubmatch(line); m != nil {
			d.Fields[m[1]] = m[2]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning descriptor")
	}

	return d, nil
}

// CID returns the descriptor's content ID field, used by VMware to detect a
// parent/child snapshot chain going stale. An empty string means the field
// was absent.
func (d *Descriptor) CID() string {
	return d.Fields["CID"]
}

// AdapterType returns the "ddb.adapterType" field (ide, buslogic, lsilogic,
// ...), or "" if unset.
func (d *Descriptor) AdapterType() string {
	return d.Fields["ddb.adapterType"]
}
