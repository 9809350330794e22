/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vorteil/vmdksparse/pkg/elog"
	"github.com/vorteil/vmdksparse/pkg/flag"
)

var log elog.View

var (
	verboseFlag = flag.BoolFlag{FlagPart: flag.NewFlagPart("verbose", "enable verbose output", false)}
	debugFlag   = flag.BoolFlag{FlagPart: flag.NewFlagPart("debug", "enable debug output", false)}
	scanFlag    = flag.BoolFlag{FlagPart: flag.NewFlagPart("scan", "walk every grain and report allocation statistics (slow on large disks)", false)}
)

func commandInit() {
	verboseFlag.AddTo(rootCmd.PersistentFlags())
	debugFlag.AddTo(rootCmd.PersistentFlags())
	scanFlag.AddTo(infoCmd.Flags())

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		logger := &elog.CLI{}
		logrus.SetFormatter(logger)
		logrus.SetLevel(logrus.TraceLevel)

		if debugFlag.Value {
			logger.IsDebug = true
			logger.IsVerbose = true
		} else if verboseFlag.Value {
			logger.IsVerbose = true
		}

		log = logger
		return nil
	}

	rootCmd.AddCommand(infoCmd)
}

var rootCmd = &cobra.Command{
	Use:   "vmdkinfo",
	Short: "vmdkinfo inspects VMDK sparse disk images without writing to them",
}

func main() {
	commandInit()

	if err := rootCmd.Execute(); err != nil {
		if log != nil {
			log.Errorf("%v", err)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}
