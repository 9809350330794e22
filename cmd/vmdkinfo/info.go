/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sisatech/tablewriter"
	"github.com/spf13/cobra"

	"github.com/vorteil/vmdksparse/pkg/vmdk"
	"github.com/vorteil/vmdksparse/pkg/vmdkdesc"
)

var infoCmd = &cobra.Command{
	Use:   "info DESCRIPTOR.vmdk",
	Short: "print extent layout and geometry for a VMDK descriptor",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := info(args[0]); err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}
	},
}

// openDescribed opens every extent a descriptor file names, in order, and
// returns a ready Image. Extent filenames are resolved relative to the
// descriptor's own directory, matching how every VMware product lays a
// split VMDK out on disk.
func openDescribed(path string) (*vmdk.Image, *vmdkdesc.Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	desc, err := vmdkdesc.Parse(f)
	if err != nil {
		return nil, nil, err
	}
	if len(desc.Extents) == 0 {
		return nil, nil, fmt.Errorf("%s: no extent description lines", path)
	}

	dir := filepath.Dir(path)
	sources := make([]vmdk.ExtentSource, 0, len(desc.Extents))
	for _, e := range desc.Extents {
		adapter, err := vmdk.OpenFileAdapter(filepath.Join(dir, e.Filename))
		if err != nil {
			return nil, nil, err
		}

		var kind vmdk.Kind
		switch e.Type {
		case vmdkdesc.ExtentSparse, vmdkdesc.ExtentVMFSSparse:
			kind = vmdk.SparseVmdk
		default:
			kind = vmdk.FlatRaw
		}
		sources = append(sources, vmdk.ExtentSource{IO: adapter, Kind: kind})
	}

	img, err := vmdk.Open(sources)
	if err != nil {
		return nil, nil, err
	}
	return img, desc, nil
}

func info(path string) error {
	img, desc, err := openDescribed(path)
	if err != nil {
		return err
	}
	defer img.Close()

	size, err := img.Size()
	if err != nil {
		return err
	}

	rows := [][]string{
		{"field", "value"}, // header row, skipped by PlainTable below
		{"descriptor", path},
		{"virtual size", fmt.Sprintf("%d bytes", size)},
		{"content ID", desc.CID()},
		{"adapter type", desc.AdapterType()},
		{"extent count", fmt.Sprintf("%d", len(desc.Extents))},
	}
	PlainTable(rows)

	if debugFlag.Value {
		if err := img.VerifyBackupDirectory(); err != nil {
			return err
		}
	}

	if scanFlag.Value {
		total, err := img.GrainCount()
		if err != nil {
			return err
		}
		bar := log.NewProgress("scanning grains", "", total)
		stats, err := img.Scan(bar)
		bar.Finish(err == nil)
		if err != nil {
			return err
		}
		scanRows := [][]string{
			{"extent", "grain size", "total", "sparse", "allocated", "empty"},
		}
		for _, s := range stats {
			scanRows = append(scanRows, []string{
				fmt.Sprintf("%d", s.ExtentID),
				fmt.Sprintf("%d", s.GrainSize),
				fmt.Sprintf("%d", s.TotalGrains),
				fmt.Sprintf("%d", s.SparseGrains),
				fmt.Sprintf("%d", s.AllocatedGrains),
				fmt.Sprintf("%d", s.EmptyGrains),
			})
		}
		PlainTable(scanRows)
	}

	return nil
}

// PlainTable prints data in a grid, handling alignment automatically. The
// first row is treated as a header and not rendered; it exists only so
// callers can describe each column inline with the data.
func PlainTable(vals [][]string) {
	if len(vals) == 0 {
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetColumnSeparator("")
	for i := 1; i < len(vals); i++ {
		table.Append(vals[i])
	}
	table.Render()
	fmt.Println()
}
